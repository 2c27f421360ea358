// Package voice wraps a hosted speech API for speech-to-text and
// text-to-speech. Both calls need an API key and fail fast without one.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"go.uber.org/zap"

	"github.com/campus-assist/backend/internal/metrics"
	"github.com/campus-assist/backend/pkg/circuitbreaker"
	"github.com/campus-assist/backend/pkg/logger"
)

const (
	BuildTag = "voice-real-only-v1"
	Provider = "sarvam"

	DefaultSTTEndpoint = "https://api.sarvam.ai/v1/audio/transcribe"
	DefaultTTSEndpoint = "https://api.sarvam.ai/v1/audio/synthesize"
)

var (
	ErrNotConfigured = errors.New("sarvam API key not configured (set SARVAM_API_KEY)")
	ErrEmptyAudio    = errors.New("empty audio upload")
	ErrEmptyText     = errors.New("text is required")
)

// UpstreamError reports a speech API failure.
type UpstreamError struct {
	Op     string
	Status int
	Detail string
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("Sarvam %s failed (%d)", e.Op, e.Status)
	}
	return fmt.Sprintf("Sarvam %s %s", e.Op, e.Detail)
}

type Config struct {
	APIKey      string
	STTEndpoint string
	TTSEndpoint string
	Voice       string
	Format      string
	Timeout     time.Duration
	FFmpegPath  string
}

type Speech struct {
	AudioBase64 string `json:"audio_base64"`
	Format      string `json:"format"`
}

type Client struct {
	apiKey      string
	sttEndpoint string
	ttsEndpoint string
	voice       string
	format      string
	timeout     time.Duration
	httpClient  *http.Client
	transcoder  *Transcoder
	cb          *circuitbreaker.CircuitBreaker
}

func NewClient(cfg Config) *Client {
	if cfg.STTEndpoint == "" {
		cfg.STTEndpoint = DefaultSTTEndpoint
	}
	if cfg.TTSEndpoint == "" {
		cfg.TTSEndpoint = DefaultTTSEndpoint
	}
	if cfg.Voice == "" {
		cfg.Voice = "default"
	}
	if cfg.Format == "" {
		cfg.Format = "wav"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &Client{
		apiKey:      cfg.APIKey,
		sttEndpoint: cfg.STTEndpoint,
		ttsEndpoint: cfg.TTSEndpoint,
		voice:       cfg.Voice,
		format:      cfg.Format,
		timeout:     cfg.Timeout,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		transcoder: NewTranscoder(cfg.FFmpegPath),
		cb: circuitbreaker.New("sarvam", circuitbreaker.Config{
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
			SuccessThreshold: 1,
			IsFailure:        breakerFailure,
			OnStateChange:    metrics.RecordBreakerState,
			Logger:           logger.GetLogger(),
		}),
	}

	logger.Info("Voice client initialized",
		zap.String("build", BuildTag),
		zap.Bool("configured", c.Configured()),
		zap.Bool("ffmpeg_available", c.transcoder.Available()),
	)

	return c
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Prepare converts browser container formats to WAV when possible.
func (c *Client) Prepare(ctx context.Context, audio []byte, contentType string) ([]byte, string) {
	return c.transcoder.Prepare(ctx, audio, contentType)
}

// Transcribe uploads audio as multipart field "file" and returns the transcript.
func (c *Client) Transcribe(ctx context.Context, audio []byte, contentType string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="audio"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("failed to write audio: %w", err)
	}
	writer.Close()

	var result struct {
		Text       string `json:"text"`
		Transcript string `json:"transcript"`
	}
	err = c.do(ctx, "stt", c.sttEndpoint, writer.FormDataContentType(), body, &result)
	if err != nil {
		return "", err
	}

	transcript := result.Text
	if transcript == "" {
		transcript = result.Transcript
	}
	if transcript == "" {
		return "", &UpstreamError{Op: "STT", Detail: "returned no transcript"}
	}

	logger.Info("Speech transcribed",
		zap.Int("audio_bytes", len(audio)),
		zap.Int("transcript_chars", len(transcript)),
	)

	return transcript, nil
}

// Synthesize posts {text, voice, format} and returns the encoded audio.
func (c *Client) Synthesize(ctx context.Context, text string) (*Speech, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if text == "" {
		return nil, ErrEmptyText
	}

	payload, err := json.Marshal(map[string]string{
		"text":   text,
		"voice":  c.voice,
		"format": c.format,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var result struct {
		AudioBase64 string `json:"audio_base64"`
		Audio       string `json:"audio"`
		Format      string `json:"format"`
	}
	err = c.do(ctx, "tts", c.ttsEndpoint, "application/json", bytes.NewReader(payload), &result)
	if err != nil {
		return nil, err
	}

	speech := &Speech{
		AudioBase64: result.AudioBase64,
		Format:      result.Format,
	}
	if speech.AudioBase64 == "" {
		speech.AudioBase64 = result.Audio
	}
	if speech.Format == "" {
		speech.Format = c.format
	}
	if speech.AudioBase64 == "" {
		return nil, &UpstreamError{Op: "TTS", Detail: "returned no audio"}
	}

	logger.Info("Speech synthesized",
		zap.Int("text_chars", len(text)),
		zap.String("format", speech.Format),
	)

	return speech, nil
}

func (c *Client) do(ctx context.Context, op, endpoint, contentType string, body io.Reader, out any) error {
	start := time.Now()
	upstream := "sarvam_" + op

	err := c.cb.Execute(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", contentType)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			logger.Error("Sarvam network error", zap.String("op", op), zap.Error(err))
			return &UpstreamError{Op: opName(op), Detail: "network error"}
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
			logger.Error("Sarvam returned an error status",
				zap.String("op", op),
				zap.Int("status", resp.StatusCode),
				zap.ByteString("body", snippet),
			)
			return &UpstreamError{Op: opName(op), Status: resp.StatusCode}
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &UpstreamError{Op: opName(op), Detail: "returned invalid JSON"}
		}
		return nil
	})

	metrics.UpstreamDuration.WithLabelValues(upstream).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamCalls.WithLabelValues(upstream, "error").Inc()
		return err
	}
	metrics.UpstreamCalls.WithLabelValues(upstream, "success").Inc()
	return nil
}

// breakerFailure counts network faults, 5xx and 429 against Sarvam. Other 4xx
// replies are caused by the request (bad upload, oversized text).
func breakerFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var upErr *UpstreamError
	if errors.As(err, &upErr) && upErr.Status >= 400 && upErr.Status < 500 {
		return upErr.Status == http.StatusTooManyRequests
	}
	return true
}

func opName(op string) string {
	if op == "stt" {
		return "STT"
	}
	return "TTS"
}

type Status struct {
	Build                 string  `json:"build"`
	Configured            bool    `json:"configured"`
	RequiresFFmpegForWebm bool    `json:"requires_ffmpeg_for_webm"`
	FFmpegAvailable       bool    `json:"ffmpeg_available"`
	STTEndpoint           string  `json:"stt_endpoint"`
	TTSEndpoint           string  `json:"tts_endpoint"`
	Voice                 string  `json:"voice"`
	Format                string  `json:"format"`
	TimeoutSec            float64 `json:"timeout_sec"`
	Breaker               string  `json:"breaker"`
}

func (c *Client) Status() Status {
	return Status{
		Build:                 BuildTag,
		Configured:            c.Configured(),
		RequiresFFmpegForWebm: true,
		FFmpegAvailable:       c.transcoder.Available(),
		STTEndpoint:           c.sttEndpoint,
		TTSEndpoint:           c.ttsEndpoint,
		Voice:                 c.voice,
		Format:                c.format,
		TimeoutSec:            c.timeout.Seconds(),
		Breaker:               c.cb.State().String(),
	}
}

// Meta describes uploaded audio.
type Meta struct {
	Format string `json:"format"`
	Bytes  int    `json:"bytes"`
}

// Sniff labels RIFF/WAVE payloads as "wav" and everything else "unknown".
func Sniff(audio []byte) Meta {
	meta := Meta{Format: "unknown", Bytes: len(audio)}
	if len(audio) >= 12 && bytes.Equal(audio[:4], []byte("RIFF")) && bytes.Equal(audio[8:12], []byte("WAVE")) {
		meta.Format = "wav"
	}
	return meta
}
