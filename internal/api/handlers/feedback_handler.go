package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kb-advisor/backend/internal/ranker"
	"github.com/kb-advisor/backend/internal/storage/models"
	"github.com/kb-advisor/backend/internal/storage/sqlite"
	"github.com/kb-advisor/backend/internal/suggest"
	"github.com/kb-advisor/backend/pkg/logger"
)

type FeedbackHandler struct {
	engine *suggest.Engine
}

func NewFeedbackHandler(engine *suggest.Engine) *FeedbackHandler {
	return &FeedbackHandler{engine: engine}
}

func (h *FeedbackHandler) HandleSubmit(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid case id",
		})
	}

	var req struct {
		Rating           int    `json:"rating"`
		ResolutionMethod string `json:"resolution_method"`
		CustomSolution   string `json:"custom_solution"`
	}
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse feedback payload", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	fb := &models.CaseFeedback{
		CaseID:           int64(id),
		Rating:           req.Rating,
		ResolutionMethod: req.ResolutionMethod,
		CustomSolution:   req.CustomSolution,
		CreatedAt:        time.Now(),
	}

	if err := h.engine.SubmitFeedback(c.Context(), fb); err != nil {
		switch {
		case errors.Is(err, ranker.ErrMalformedRating):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "rating must be between 1 and 5",
			})
		case errors.Is(err, sqlite.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Case not found",
			})
		default:
			logger.Error("Failed to submit feedback", zap.Int("case_id", id), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to submit feedback",
			})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fb)
}
