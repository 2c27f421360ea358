package handlers

import (
	"context"
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/campus-assist/backend/internal/chat"
	"github.com/campus-assist/backend/internal/middleware/validation"
	"github.com/campus-assist/backend/internal/voice"
	"github.com/campus-assist/backend/pkg/logger"
)

type Speech interface {
	Configured() bool
	Prepare(ctx context.Context, audio []byte, contentType string) ([]byte, string)
	Transcribe(ctx context.Context, audio []byte, contentType string) (string, error)
	Synthesize(ctx context.Context, text string) (*voice.Speech, error)
	Status() voice.Status
}

type VoiceHandler struct {
	speech   Speech
	pipeline Asker
}

func NewVoiceHandler(speech Speech, pipeline Asker) *VoiceHandler {
	return &VoiceHandler{
		speech:   speech,
		pipeline: pipeline,
	}
}

func (h *VoiceHandler) STT(c *fiber.Ctx) error {
	if !h.speech.Configured() {
		return voiceError(c, voice.ErrNotConfigured)
	}

	audio, contentType, err := readUpload(c)
	if err != nil {
		return voiceError(c, err)
	}

	prepared, preparedType := h.speech.Prepare(c.UserContext(), audio, contentType)
	meta := voice.Sniff(prepared)

	transcript, err := h.speech.Transcribe(c.UserContext(), prepared, preparedType)
	if err != nil {
		return voiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"transcript": transcript,
		"provider":   voice.Provider,
		"meta":       meta,
	})
}

type TTSRequest struct {
	Text string `json:"text" validate:"required,max=5000"`
}

func (h *VoiceHandler) TTS(c *fiber.Ctx) error {
	if !h.speech.Configured() {
		return voiceError(c, voice.ErrNotConfigured)
	}

	var req TTSRequest
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

	speech, err := h.speech.Synthesize(c.UserContext(), req.Text)
	if err != nil {
		return voiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"audio_base64": speech.AudioBase64,
		"format":       speech.Format,
		"provider":     voice.Provider,
	})
}

// Chat transcribes the upload, answers it through the pipeline and speaks
// the answer back.
func (h *VoiceHandler) Chat(c *fiber.Ctx) error {
	if !h.speech.Configured() {
		return voiceError(c, voice.ErrNotConfigured)
	}

	audio, contentType, err := readUpload(c)
	if err != nil {
		return voiceError(c, err)
	}

	ctx := c.UserContext()
	prepared, preparedType := h.speech.Prepare(ctx, audio, contentType)

	transcript, err := h.speech.Transcribe(ctx, prepared, preparedType)
	if err != nil {
		return voiceError(c, err)
	}

	language := formOrQuery(c, "language")
	if language == "" {
		language = "auto"
	}

	res := h.pipeline.Process(ctx, chat.Request{
		Question:  transcript,
		Language:  language,
		SessionID: formOrQuery(c, "session_id"),
	})

	speech, err := h.speech.Synthesize(ctx, res.Answer)
	if err != nil {
		return voiceError(c, err)
	}

	logger.Info("Voice chat answered",
		zap.String("session_id", res.SessionID),
		zap.Int("transcript_chars", len(transcript)),
	)

	return c.JSON(fiber.Map{
		"transcript":        transcript,
		"answer":            res.Answer,
		"confidence":        res.Confidence,
		"language_detected": res.Language,
		"session_id":        res.SessionID,
		"conversation_id":   res.ConversationID,
		"audio_base64":      speech.AudioBase64,
		"audio_format":      speech.Format,
		"stt_provider":      voice.Provider,
		"tts_provider":      voice.Provider,
		"error":             res.Failure != nil,
	})
}

func (h *VoiceHandler) Status(c *fiber.Ctx) error {
	return c.JSON(h.speech.Status())
}

func readUpload(c *fiber.Ctx) ([]byte, string, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, "", voice.ErrEmptyAudio
	}

	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	audio, err := io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}
	if len(audio) == 0 {
		return nil, "", voice.ErrEmptyAudio
	}

	return audio, fh.Header.Get("Content-Type"), nil
}

func formOrQuery(c *fiber.Ctx, key string) string {
	if v := c.FormValue(key); v != "" {
		return v
	}
	return c.Query(key)
}

func voiceError(c *fiber.Ctx, err error) error {
	var upErr *voice.UpstreamError

	switch {
	case errors.Is(err, voice.ErrNotConfigured):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, voice.ErrEmptyAudio), errors.Is(err, voice.ErrEmptyText):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.As(err, &upErr):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": upErr.Error(),
		})
	default:
		logger.Error("Voice request failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Voice service unavailable",
		})
	}
}
