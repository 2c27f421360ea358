package voice

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/campus-assist/backend/pkg/logger"
)

// Transcoder turns webm/ogg uploads into 16 kHz mono PCM WAV with ffmpeg.
// Any problem falls back to the original bytes.
type Transcoder struct {
	path string
}

func NewTranscoder(ffmpegPath string) *Transcoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Transcoder{path: ffmpegPath}
}

func (t *Transcoder) Available() bool {
	_, err := exec.LookPath(t.path)
	return err == nil
}

func needsTranscode(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "webm") || strings.Contains(ct, "ogg")
}

func (t *Transcoder) Prepare(ctx context.Context, audio []byte, contentType string) ([]byte, string) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if !needsTranscode(contentType) {
		return audio, contentType
	}

	bin, err := exec.LookPath(t.path)
	if err != nil {
		logger.Warn("ffmpeg not found; sending original audio", zap.String("content_type", contentType))
		return audio, contentType
	}

	inputFormat := "webm"
	if strings.Contains(strings.ToLower(contentType), "ogg") {
		inputFormat = "ogg"
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin,
		"-hide_banner", "-loglevel", "error",
		"-f", inputFormat, "-i", "pipe:0",
		"-f", "wav", "-acodec", "pcm_s16le", "-ac", "1", "-ar", "16000",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(audio)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := stderr.String()
		if len(msg) > 200 {
			msg = msg[:200]
		}
		logger.Error("ffmpeg conversion failed", zap.Error(err), zap.String("stderr", msg))
		return audio, contentType
	}

	wav := stdout.Bytes()
	if !bytes.HasPrefix(wav, []byte("RIFF")) {
		logger.Warn("ffmpeg output has no RIFF header; sending original audio")
		return audio, contentType
	}

	logger.Info("Converted audio to wav",
		zap.String("from", inputFormat),
		zap.Int("in_bytes", len(audio)),
		zap.Int("out_bytes", len(wav)),
	)

	return wav, "audio/wav"
}
