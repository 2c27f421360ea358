package voice

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func fakeFFmpeg(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPreparePassesThroughWav(t *testing.T) {
	tr := NewTranscoder(fakeFFmpeg(t, "exit 1\n"))

	out, ct := tr.Prepare(context.Background(), []byte("RIFF"), "audio/wav")

	assert.Equal(t, []byte("RIFF"), out)
	assert.Equal(t, "audio/wav", ct)
}

func TestPrepareConvertsWebm(t *testing.T) {
	tr := NewTranscoder(fakeFFmpeg(t, "cat >/dev/null\nprintf 'RIFF\\000\\000\\000\\000WAVE'\n"))

	out, ct := tr.Prepare(context.Background(), []byte("webm-bytes"), "audio/webm;codecs=opus")

	assert.Equal(t, "audio/wav", ct)
	assert.Equal(t, "wav", Sniff(out).Format)
}

func TestPrepareFallsBackOnFailure(t *testing.T) {
	tr := NewTranscoder(fakeFFmpeg(t, "cat >/dev/null\necho broken >&2\nexit 1\n"))

	out, ct := tr.Prepare(context.Background(), []byte("ogg-bytes"), "audio/ogg")

	assert.Equal(t, []byte("ogg-bytes"), out)
	assert.Equal(t, "audio/ogg", ct)
}

func TestPrepareRejectsNonRIFFOutput(t *testing.T) {
	tr := NewTranscoder(fakeFFmpeg(t, "cat >/dev/null\nprintf 'garbage'\n"))

	out, ct := tr.Prepare(context.Background(), []byte("webm-bytes"), "audio/webm")

	assert.Equal(t, []byte("webm-bytes"), out)
	assert.Equal(t, "audio/webm", ct)
}

func TestPrepareWithoutFFmpeg(t *testing.T) {
	tr := NewTranscoder(filepath.Join(t.TempDir(), "missing-ffmpeg"))

	assert.False(t, tr.Available())
	out, ct := tr.Prepare(context.Background(), []byte("webm-bytes"), "audio/webm")
	assert.Equal(t, []byte("webm-bytes"), out)
	assert.Equal(t, "audio/webm", ct)
}

func TestPrepareDefaultsContentType(t *testing.T) {
	tr := NewTranscoder("")

	_, ct := tr.Prepare(context.Background(), []byte("x"), "")
	assert.Equal(t, "application/octet-stream", ct)
}
