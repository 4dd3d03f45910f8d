package http

import (
	"github.com/gofiber/fiber/v2"

	"ccm_server/core/port/in"
	"ccm_server/pkg/apperr"
	"ccm_server/pkg/response"
)

// SyncHandler exposes the spreadsheet-to-database import.
type SyncHandler struct {
	service in.SyncService
}

func NewSyncHandler(service in.SyncService) *SyncHandler {
	return &SyncHandler{service: service}
}

func (h *SyncHandler) Register(router fiber.Router) {
	router.Post("/extraccion_generacion", h.SyncGeneration)
}

type syncGenerationRequest struct {
	FechaGeneracion string `json:"fecha_generacion"`
	DriveFolderID   string `json:"drive_folder_id"`
	Force           bool   `json:"force"`
}

func (h *SyncHandler) SyncGeneration(c *fiber.Ctx) error {
	var req syncGenerationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	report, err := h.service.SyncGeneration(c.Context(), req.FechaGeneracion, req.DriveFolderID, req.Force)
	if err != nil {
		return err
	}
	return response.OK(c, report)
}
