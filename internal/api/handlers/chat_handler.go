package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/campus-assist/backend/internal/chat"
	"github.com/campus-assist/backend/internal/metrics"
	"github.com/campus-assist/backend/internal/middleware/validation"
	"github.com/campus-assist/backend/internal/storage/models"
	"github.com/campus-assist/backend/internal/storage/sqlite"
	"github.com/campus-assist/backend/pkg/logger"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type Asker interface {
	Process(ctx context.Context, req chat.Request) chat.Result
}

type ConversationStore interface {
	UpdateFeedback(ctx context.Context, id int64, vote int) error
	ForwardToAdmin(ctx context.Context, id int64, note string) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.Conversation, error)
	ListForwarded(ctx context.Context, limit int) ([]models.Conversation, error)
}

type ChatHandler struct {
	pipeline Asker
	store    ConversationStore
}

func NewChatHandler(pipeline Asker, store ConversationStore) *ChatHandler {
	return &ChatHandler{
		pipeline: pipeline,
		store:    store,
	}
}

type AskRequest struct {
	Question  string `json:"question" validate:"required,max=2000"`
	SessionID string `json:"session_id"`
	Language  string `json:"language"`
}

type AskResponse struct {
	Answer         string        `json:"answer"`
	Confidence     float64       `json:"confidence"`
	Language       string        `json:"language_detected"`
	SessionID      string        `json:"session_id"`
	ConversationID *int64        `json:"conversation_id"`
	Error          bool          `json:"error"`
	Failure        *chat.Failure `json:"failure,omitempty"`
}

func newAskResponse(res chat.Result) AskResponse {
	return AskResponse{
		Answer:         res.Answer,
		Confidence:     res.Confidence,
		Language:       res.Language,
		SessionID:      res.SessionID,
		ConversationID: res.ConversationID,
		Error:          res.Failure != nil,
		Failure:        res.Failure,
	}
}

func (h *ChatHandler) Ask(c *fiber.Ctx) error {
	var req AskRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	req.Question = validation.Sanitize(req.Question)
	if err := validation.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if req.Language == "" {
		req.Language = "auto"
	}

	res := h.pipeline.Process(c.UserContext(), chat.Request{
		Question:  req.Question,
		Language:  req.Language,
		SessionID: req.SessionID,
	})

	return c.JSON(newAskResponse(res))
}

type FeedbackRequest struct {
	ConversationID int64 `json:"conversation_id" validate:"required,gt=0"`
	Feedback       *int  `json:"feedback" validate:"required,oneof=-1 0 1"`
}

func (h *ChatHandler) Feedback(c *fiber.Ctx) error {
	var req FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := validation.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	err := h.store.UpdateFeedback(c.UserContext(), req.ConversationID, *req.Feedback)
	switch {
	case errors.Is(err, sqlite.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Conversation not found",
		})
	case errors.Is(err, sqlite.ErrInvalidFeedback):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case err != nil:
		logger.Error("Failed to record feedback", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record feedback",
		})
	}

	metrics.FeedbackTotal.WithLabelValues(voteLabel(*req.Feedback)).Inc()

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Feedback recorded",
	})
}

type ForwardRequest struct {
	ConversationID    int64  `json:"conversation_id" validate:"required,gt=0"`
	AdditionalContext string `json:"additional_context" validate:"max=2000"`
}

func (h *ChatHandler) ForwardToAdmin(c *fiber.Ctx) error {
	var req ForwardRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	req.AdditionalContext = validation.Sanitize(req.AdditionalContext)
	if err := validation.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	err := h.store.ForwardToAdmin(c.UserContext(), req.ConversationID, req.AdditionalContext)
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Conversation not found",
		})
	}
	if err != nil {
		logger.Error("Failed to forward conversation", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to forward conversation",
		})
	}

	metrics.ForwardedTotal.Inc()

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Question forwarded to admin team",
	})
}

func (h *ChatHandler) SessionHistory(c *fiber.Ctx) error {
	sessionID := c.Params("id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session id is required",
		})
	}

	history, err := h.store.ListBySession(c.UserContext(), sessionID, listLimit(c))
	if err != nil {
		logger.Error("Failed to load session history", zap.String("session_id", sessionID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load history",
		})
	}

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"history":    history,
	})
}

func (h *ChatHandler) Forwarded(c *fiber.Ctx) error {
	items, err := h.store.ListForwarded(c.UserContext(), listLimit(c))
	if err != nil {
		logger.Error("Failed to list forwarded conversations", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list forwarded conversations",
		})
	}

	return c.JSON(fiber.Map{
		"count":         len(items),
		"conversations": items,
	})
}

func listLimit(c *fiber.Ctx) int {
	limit := c.QueryInt("limit", defaultListLimit)
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func voteLabel(vote int) string {
	switch vote {
	case models.FeedbackPositive:
		return "positive"
	case models.FeedbackNegative:
		return "negative"
	default:
		return "neutral"
	}
}
