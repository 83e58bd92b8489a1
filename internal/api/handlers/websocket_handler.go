package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/kb-advisor/backend/internal/suggest"
	"github.com/kb-advisor/backend/pkg/logger"
)

type WebSocketHandler struct {
	engine *suggest.Engine
}

func NewWebSocketHandler(engine *suggest.Engine) *WebSocketHandler {
	return &WebSocketHandler{engine: engine}
}

// HandleConnection serves a message loop that accepts "suggest" and
// "stats" requests and streams results back.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type    string `json:"type"`
			Content string `json:"content"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		switch msg.Type {
		case "suggest":
			if err := h.streamSuggestions(c, msg.Content); err != nil {
				logger.Error("Failed to stream suggestions", zap.Error(err))
				h.sendError(c, "Failed to compute suggestions")
			}
		case "stats":
			if err := h.sendStats(c); err != nil {
				logger.Error("Failed to send learning stats", zap.Error(err))
				h.sendError(c, "Failed to collect learning stats")
			}
		}
	}
}

func (h *WebSocketHandler) streamSuggestions(c *websocket.Conn, problemText string) error {
	ctx := context.Background()

	suggestions, err := h.engine.Suggest(ctx, problemText)
	if err != nil {
		return err
	}

	for _, s := range suggestions {
		if err := c.WriteJSON(map[string]interface{}{
			"type":       "suggestion",
			"suggestion": s,
		}); err != nil {
			return err
		}
	}

	return c.WriteJSON(map[string]interface{}{
		"type":  "complete",
		"count": len(suggestions),
	})
}

func (h *WebSocketHandler) sendStats(c *websocket.Conn) error {
	stats, err := h.engine.Stats(context.Background())
	if err != nil {
		return err
	}
	return c.WriteJSON(map[string]interface{}{
		"type":  "stats",
		"stats": stats,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}
