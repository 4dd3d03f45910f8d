package http

import (
	"github.com/gofiber/fiber/v2"

	"ccm_server/core/port/in"
	"ccm_server/pkg/logger"
	"ccm_server/pkg/response"
)

// IngestHandler exposes the mailbox processing cycle.
type IngestHandler struct {
	service in.IngestService
}

func NewIngestHandler(service in.IngestService) *IngestHandler {
	return &IngestHandler{service: service}
}

func (h *IngestHandler) Register(router fiber.Router) {
	router.Post("/process-emails", h.ProcessEmails)
	router.Get("/emails/search", h.SearchEmails)
}

// ProcessEmails runs one full mailbox pass and returns the per-message
// outcomes. A failure to even list the mailbox yields a 500 with a single
// detail message; per-message failures travel inside the run report.
func (h *IngestHandler) ProcessEmails(c *fiber.Ctx) error {
	run, err := h.service.ProcessIncoming(c.Context())
	if err != nil {
		logger.Error("[IngestHandler.ProcessEmails] run failed: %v", err)
		return response.Detail(c, err.Error())
	}
	return response.OK(c, run)
}

// SearchEmails is the debug read-through over the mailbox.
func (h *IngestHandler) SearchEmails(c *fiber.Ctx) error {
	query := c.Query("query")
	messages, err := h.service.SearchMessages(c.Context(), query)
	if err != nil {
		return err
	}
	return response.OK(c, fiber.Map{
		"query":    query,
		"count":    len(messages),
		"messages": messages,
	})
}
