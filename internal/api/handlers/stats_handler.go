package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kb-advisor/backend/internal/learning"
	"github.com/kb-advisor/backend/internal/storage/sqlite"
	"github.com/kb-advisor/backend/internal/suggest"
	"github.com/kb-advisor/backend/pkg/logger"
)

type StatsHandler struct {
	engine *suggest.Engine
	store  *sqlite.Client
}

func NewStatsHandler(engine *suggest.Engine, store *sqlite.Client) *StatsHandler {
	return &StatsHandler{engine: engine, store: store}
}

func (h *StatsHandler) HandleStats(c *fiber.Ctx) error {
	stats, err := h.engine.Stats(c.Context())
	if err != nil {
		logger.Error("Failed to collect learning stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to collect learning stats",
		})
	}
	return c.JSON(stats)
}

// HandleDashboard serves the corpus overview plus recent activity.
func (h *StatsHandler) HandleDashboard(c *fiber.Ctx) error {
	stats, err := h.store.DashboardStats(c.Context())
	if err != nil {
		logger.Error("Failed to collect dashboard stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to collect dashboard stats",
		})
	}

	recent, err := h.store.RecentCases(c.Context(), 5)
	if err != nil {
		logger.Error("Failed to load recent cases", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load recent cases",
		})
	}

	return c.JSON(fiber.Map{
		"stats":        stats,
		"recent_cases": recent,
	})
}

// HandleRetrain forces a synchronous refit of the models.
func (h *StatsHandler) HandleRetrain(c *fiber.Ctx) error {
	if err := h.engine.RetrainNow(c.Context()); err != nil {
		if errors.Is(err, learning.ErrInsufficientData) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Not enough cases to train",
			})
		}
		logger.Error("Manual retrain failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Retrain failed",
		})
	}

	stats, err := h.engine.Stats(c.Context())
	if err != nil {
		logger.Error("Failed to collect learning stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to collect learning stats",
		})
	}
	return c.JSON(stats)
}
