package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"ccm_server/core/service/report"
	"ccm_server/pkg/apperr"
	"ccm_server/pkg/response"
)

// ReportHandler serves the cached datasets.
type ReportHandler struct {
	service *report.Service
}

func NewReportHandler(service *report.Service) *ReportHandler {
	return &ReportHandler{service: service}
}

func (h *ReportHandler) Register(router fiber.Router) {
	router.Get("/reports/:dataset", h.GetDataset)
	router.Get("/cache/metrics", h.CacheMetrics)
}

// GetDataset builds or serves one dataset. branch_id defaults to the
// configured branch; generation_date pins a generation, otherwise the
// current one is used.
func (h *ReportHandler) GetDataset(c *fiber.Ctx) error {
	datasetID := c.Params("dataset")

	branchID := 0
	if raw := c.Query("branch_id"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return apperr.BadRequest("branch_id must be an integer")
		}
		branchID = parsed
	}
	generationDate := c.Query("generation_date")

	result, err := h.service.Dataset(c.Context(), datasetID, branchID, generationDate)
	if err != nil {
		return err
	}
	return response.OK(c, result)
}

// CacheMetrics exposes the cumulative cache counters.
func (h *ReportHandler) CacheMetrics(c *fiber.Ctx) error {
	return response.OK(c, h.service.CacheMetrics())
}
