// Package knowledge provides the institution document handed to the model
// as context. The document is free text and is never chunked or indexed.
package knowledge

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/campus-assist/backend/pkg/logger"
)

//go:embed college_info.txt
var collegeInfo string

var ErrEmptyDocument = errors.New("knowledge document is empty")

var (
	horizontalSpace = regexp.MustCompile(`[ \t\r\f\v]+`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
)

// Default returns the built-in State Institute of Technology info sheet.
func Default() string {
	return collegeInfo
}

// Load reads an override document. An empty path yields Default.
func Load(path string) (string, error) {
	if path == "" {
		return Default(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read knowledge document: %w", err)
	}

	var text string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		text, err = ExtractHTML(string(raw))
		if err != nil {
			return "", err
		}
	default:
		text = string(raw)
	}

	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyDocument
	}

	logger.Info("Knowledge document loaded",
		zap.String("path", path),
		zap.Int("chars", len(text)),
	)

	return text, nil
}

// ExtractHTML returns the visible body text of an HTML page with page chrome
// removed and whitespace collapsed.
func ExtractHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, nav, footer, header, aside, noscript").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	// Block elements end a line so section headings survive extraction.
	doc.Find("p, div, li, h1, h2, h3, h4, h5, h6, tr").Each(func(i int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	text := doc.Find("body").Text()

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text), nil
}
