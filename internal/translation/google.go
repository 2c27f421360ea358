package translation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campus-assist/backend/pkg/logger"
)

const DefaultGoogleEndpoint = "https://translate.googleapis.com/translate_a/single"

// GoogleBackend talks to the public Google Translate web endpoint.
type GoogleBackend struct {
	endpoint   string
	httpClient *http.Client
}

func NewGoogleBackend(endpoint string, timeout time.Duration) *GoogleBackend {
	if endpoint == "" {
		endpoint = DefaultGoogleEndpoint
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &GoogleBackend{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (b *GoogleBackend) Detect(ctx context.Context, text string) (string, error) {
	tr, err := b.Translate(ctx, text, "auto", English)
	if err != nil {
		return "", err
	}
	return tr.SourceLang, nil
}

func (b *GoogleBackend) Translate(ctx context.Context, text, src, dest string) (*Translation, error) {
	if src == "" {
		src = "auto"
	}

	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", src)
	params.Set("tl", dest)
	params.Add("dt", "t")
	params.Add("dt", "rm")
	params.Set("ie", "UTF-8")
	params.Set("oe", "UTF-8")

	form := url.Values{}
	form.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s?%s", b.endpoint, params.Encode()),
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; campus-assist/1.0)")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call translate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("translate returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	tr, err := parseGoogleResponse(body)
	if err != nil {
		return nil, err
	}

	logger.Debug("Translated text",
		zap.String("src", tr.SourceLang),
		zap.String("dest", dest),
		zap.Int("chars", len(text)),
	)

	return tr, nil
}

// parseGoogleResponse decodes the positional array returned by the gtx client.
// Element 0 holds sentence segments: translated segments start with a string,
// the romanization segment has a nil head and the target pronunciation at
// index 2. Element 2 is the detected source language.
func parseGoogleResponse(body []byte) (*Translation, error) {
	var top []json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, fmt.Errorf("failed to decode translate response: %w", err)
	}
	if len(top) == 0 {
		return nil, fmt.Errorf("empty translate response")
	}

	var segments [][]any
	if err := json.Unmarshal(top[0], &segments); err != nil {
		return nil, fmt.Errorf("failed to decode translate segments: %w", err)
	}

	var text, pronunciation strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		if s, ok := seg[0].(string); ok {
			text.WriteString(s)
			continue
		}
		if len(seg) > 2 {
			if s, ok := seg[2].(string); ok {
				pronunciation.WriteString(s)
			}
		}
	}

	tr := &Translation{
		Text:          text.String(),
		Pronunciation: pronunciation.String(),
	}

	if len(top) > 2 {
		var src string
		if err := json.Unmarshal(top[2], &src); err == nil {
			tr.SourceLang = strings.ToLower(src)
		}
	}

	return tr, nil
}
