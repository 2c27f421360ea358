package translation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoogleBackendTranslate(t *testing.T) {
	var gotQuery, gotText string
	var gotDT []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotQuery = r.URL.Query().Get("tl")
		gotDT = r.URL.Query()["dt"]
		gotText = r.PostForm.Get("q")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[[["नमस्ते ","Hello ",null,null,10],["दुनिया","world",null,null,10],[null,null,"namaste duniya","Hello world"]],null,"en",null,null,null,1]`))
	}))
	defer srv.Close()

	b := NewGoogleBackend(srv.URL, time.Second)
	tr, err := b.Translate(context.Background(), "Hello world", "en", "hi")
	require.NoError(t, err)

	assert.Equal(t, "hi", gotQuery)
	assert.ElementsMatch(t, []string{"t", "rm"}, gotDT)
	assert.Equal(t, "Hello world", gotText)
	assert.Equal(t, "नमस्ते दुनिया", tr.Text)
	assert.Equal(t, "namaste duniya", tr.Pronunciation)
	assert.Equal(t, "en", tr.SourceLang)
}

func TestGoogleBackendDetect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "auto", r.URL.Query().Get("sl"))
		w.Write([]byte(`[[["Hello","Bonjour",null,null,1]],null,"fr"]`))
	}))
	defer srv.Close()

	lang, err := NewGoogleBackend(srv.URL, time.Second).Detect(context.Background(), "Bonjour")
	require.NoError(t, err)
	assert.Equal(t, "fr", lang)
}

func TestGoogleBackendNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewGoogleBackend(srv.URL, time.Second).Translate(context.Background(), "x", "en", "fr")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestParseGoogleResponseRejectsGarbage(t *testing.T) {
	_, err := parseGoogleResponse([]byte(`{"not":"an array"}`))
	assert.Error(t, err)

	_, err = parseGoogleResponse([]byte(`[]`))
	assert.Error(t, err)
}
