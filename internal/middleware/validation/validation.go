package validation

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kb-advisor/backend/pkg/logger"
)

type Config struct {
	MaxProblemLength int
	MaxDocumentSize  int
}

// Middleware enforces payload limits on the write endpoints before
// handlers touch the body.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxProblemLength <= 0 {
		cfg.MaxProblemLength = 5000
	}
	if cfg.MaxDocumentSize <= 0 {
		cfg.MaxDocumentSize = 1 << 20
	}

	return func(c *fiber.Ctx) error {
		method := c.Method()
		if method != fiber.MethodPost && method != fiber.MethodPut {
			return c.Next()
		}

		if ct := c.Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/json") {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		path := c.Path()
		switch {
		case strings.HasSuffix(path, "/suggest"):
			var req struct {
				ProblemDescription string `json:"problem_description"`
			}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}
			if len(req.ProblemDescription) > cfg.MaxProblemLength {
				logger.Warn("Oversized problem description rejected",
					zap.String("ip", c.IP()),
					zap.Int("length", len(req.ProblemDescription)),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "problem_description exceeds maximum length",
				})
			}

		case strings.HasSuffix(path, "/documents"):
			if len(c.Body()) > cfg.MaxDocumentSize {
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "Document content exceeds maximum size",
				})
			}
		}

		return c.Next()
	}
}
