package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kb-advisor/backend/internal/extract"
	"github.com/kb-advisor/backend/internal/storage/models"
	"github.com/kb-advisor/backend/internal/suggest"
	"github.com/kb-advisor/backend/pkg/logger"
)

type SuggestHandler struct {
	engine *suggest.Engine
}

func NewSuggestHandler(engine *suggest.Engine) *SuggestHandler {
	return &SuggestHandler{engine: engine}
}

func (h *SuggestHandler) HandleSuggest(c *fiber.Ctx) error {
	var req struct {
		ProblemDescription string `json:"problem_description"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse suggest request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.ProblemDescription == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "problem_description is required",
		})
	}

	suggestions, err := h.engine.Suggest(c.Context(), req.ProblemDescription)
	if err != nil {
		logger.Error("Failed to compute suggestions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute suggestions",
		})
	}

	return c.JSON(fiber.Map{
		"suggestions": enrichWithSteps(suggestions),
		"count":       len(suggestions),
	})
}

// enrichWithSteps attaches the formatted solution steps that the
// original suggestion struct does not carry.
func enrichWithSteps(suggestions []models.SolutionSuggestion) []fiber.Map {
	out := make([]fiber.Map, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, fiber.Map{
			"case_id":             s.CaseID,
			"problem_description": s.ProblemDescription,
			"solution":            s.Solution,
			"solution_steps":      extract.FormatSolutionSteps(s.Solution),
			"system_type":         s.SystemType,
			"similarity":          s.Similarity,
			"confidence":          s.Confidence,
			"rank":                s.Rank,
			"created_at":          s.CreatedAt,
		})
	}
	return out
}
