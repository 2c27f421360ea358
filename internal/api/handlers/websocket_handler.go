package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/websocket/v2"
	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/campus-assist/backend/internal/chat"
	"github.com/campus-assist/backend/internal/middleware/validation"
	"github.com/campus-assist/backend/pkg/logger"
)

type WebSocketHandler struct {
	pipeline Asker
}

func NewWebSocketHandler(pipeline Asker) *WebSocketHandler {
	return &WebSocketHandler{
		pipeline: pipeline,
	}
}

type askMessage struct {
	Type      string `json:"type"`
	Question  string `json:"question"`
	Language  string `json:"language"`
	SessionID string `json:"session_id"`
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg askMessage
		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			return
		}

		if msg.Type != "ask" {
			continue
		}

		req := AskRequest{
			Question:  validation.Sanitize(msg.Question),
			SessionID: msg.SessionID,
			Language:  msg.Language,
		}
		if err := validation.Struct(req); err != nil {
			h.sendError(c, err.Error())
			continue
		}

		if err := h.streamAnswer(ctx, c, req); err != nil {
			logger.Error("Failed to stream answer", zap.Error(err))
			return
		}
	}
}

func (h *WebSocketHandler) streamAnswer(ctx context.Context, c *websocket.Conn, req AskRequest) error {
	if err := h.send(c, "status", "Thinking..."); err != nil {
		return err
	}

	if req.Language == "" {
		req.Language = "auto"
	}

	res := h.pipeline.Process(ctx, chat.Request{
		Question:  req.Question,
		Language:  req.Language,
		SessionID: req.SessionID,
	})

	for _, sentence := range splitSentences(res.Answer) {
		if err := h.send(c, "chunk", sentence); err != nil {
			return err
		}
	}

	return c.WriteJSON(map[string]interface{}{
		"type":              "complete",
		"answer":            res.Answer,
		"confidence":        res.Confidence,
		"language_detected": res.Language,
		"session_id":        res.SessionID,
		"conversation_id":   res.ConversationID,
		"error":             res.Failure != nil,
	})
}

func (h *WebSocketHandler) send(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	if err := c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}); err != nil {
		logger.Warn("Failed to send WebSocket error", zap.Error(err))
	}
}

// splitSentences breaks an answer into sentence-sized chunks. Text the
// tokenizer cannot segment goes out as a single chunk.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return []string{text}
	}

	var out []string
	for _, s := range doc.Sentences() {
		if t := strings.TrimSpace(s.Text); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return []string{text}
	}
	return out
}
