package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kb-advisor/backend/internal/extract"
	"github.com/kb-advisor/backend/internal/storage/models"
	"github.com/kb-advisor/backend/internal/storage/sqlite"
	"github.com/kb-advisor/backend/internal/suggest"
	"github.com/kb-advisor/backend/pkg/logger"
)

type CaseHandler struct {
	store  *sqlite.Client
	engine *suggest.Engine
}

func NewCaseHandler(store *sqlite.Client, engine *suggest.Engine) *CaseHandler {
	return &CaseHandler{store: store, engine: engine}
}

type casePayload struct {
	ProblemDescription string   `json:"problem_description"`
	Solution           string   `json:"solution"`
	SystemType         string   `json:"system_type"`
	Tags               []string `json:"tags"`
}

func (h *CaseHandler) HandleCreate(c *fiber.Ctx) error {
	var req casePayload
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse case payload", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.ProblemDescription == "" || req.Solution == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "problem_description and solution are required",
		})
	}

	cs := &models.Case{
		ProblemDescription: req.ProblemDescription,
		Solution:           req.Solution,
		SystemType:         req.SystemType,
		Tags:               req.Tags,
		CreatedAt:          time.Now(),
	}

	if err := h.engine.CreateCase(c.Context(), cs); err != nil {
		logger.Error("Failed to create case", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create case",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(cs)
}

func (h *CaseHandler) HandleList(c *fiber.Ctx) error {
	query := c.Query("q")
	system := c.Query("system")

	cases, err := h.store.SearchCases(c.Context(), query, system)
	if err != nil {
		logger.Error("Failed to search cases", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to search cases",
		})
	}

	return c.JSON(fiber.Map{
		"cases": cases,
		"count": len(cases),
	})
}

func (h *CaseHandler) HandleGet(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid case id",
		})
	}

	cs, err := h.store.GetCase(c.Context(), int64(id))
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Case not found",
			})
		}
		logger.Error("Failed to get case", zap.Int("case_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get case",
		})
	}

	return c.JSON(fiber.Map{
		"case":           cs,
		"solution_steps": extract.FormatSolutionSteps(cs.Solution),
	})
}

func (h *CaseHandler) HandleUpdate(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid case id",
		})
	}

	var req casePayload
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	cs, err := h.store.GetCase(c.Context(), int64(id))
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Case not found",
			})
		}
		logger.Error("Failed to load case for update", zap.Int("case_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update case",
		})
	}

	if req.ProblemDescription != "" {
		cs.ProblemDescription = req.ProblemDescription
	}
	if req.Solution != "" {
		cs.Solution = req.Solution
	}
	if req.SystemType != "" {
		cs.SystemType = req.SystemType
	}
	if req.Tags != nil {
		cs.Tags = req.Tags
	}

	if err := h.store.UpdateCase(c.Context(), cs); err != nil {
		logger.Error("Failed to update case", zap.Int("case_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update case",
		})
	}

	return c.JSON(cs)
}

func (h *CaseHandler) HandleDelete(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid case id",
		})
	}

	if err := h.store.DeleteCase(c.Context(), int64(id)); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Case not found",
			})
		}
		logger.Error("Failed to delete case", zap.Int("case_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete case",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
