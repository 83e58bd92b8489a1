package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kb-advisor/backend/internal/extract"
	"github.com/kb-advisor/backend/internal/ingest"
	"github.com/kb-advisor/backend/internal/storage/models"
	"github.com/kb-advisor/backend/internal/suggest"
	"github.com/kb-advisor/backend/pkg/logger"
)

type DocumentHandler struct {
	engine *suggest.Engine
}

func NewDocumentHandler(engine *suggest.Engine) *DocumentHandler {
	return &DocumentHandler{engine: engine}
}

// HandleIngest accepts a raw document and persists cases from it. The
// default format runs pattern extraction on plain text or HTML and
// yields one draft case; "structured" and "csv" bulk-import every case
// the payload carries.
func (h *DocumentHandler) HandleIngest(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content"`
		Format  string `json:"format"`
	}
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse document payload", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "content is required",
		})
	}

	switch req.Format {
	case "structured", "csv":
		return h.handleImport(c, req.Format, req.Content)
	case "":
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "format must be structured, csv or empty",
		})
	}

	cs, err := h.engine.IngestDocumentText(c.Context(), req.Content)
	if err != nil {
		logger.Error("Failed to ingest document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to ingest document",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"case":           cs,
		"solution_steps": extract.FormatSolutionSteps(cs.Solution),
	})
}

func (h *DocumentHandler) handleImport(c *fiber.Ctx, format, content string) error {
	var (
		cases []*models.Case
		err   error
	)
	if format == "csv" {
		cases, err = h.engine.ImportStructuredCSV(c.Context(), content)
	} else {
		cases, err = h.engine.ImportStructuredText(c.Context(), content)
	}

	if err != nil {
		if errors.Is(err, ingest.ErrNoCasesFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "No cases found in document",
			})
		}
		logger.Error("Failed to import document",
			zap.String("format", format),
			zap.Int("imported", len(cases)),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to import document",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"cases": cases,
		"count": len(cases),
	})
}
