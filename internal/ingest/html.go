package ingest

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// NormalizeDocument prepares an uploaded document for case extraction.
// HTML payloads are stripped to visible text; plain text passes through
// with whitespace tidied.
func NormalizeDocument(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if !looksLikeHTML(trimmed) {
		return collapseBlankLines(trimmed), nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed))
	if err != nil {
		return "", fmt.Errorf("failed to parse html document: %w", err)
	}

	doc.Find("script, style, noscript, head").Remove()

	var lines []string
	doc.Find("p, li, h1, h2, h3, h4, br, div, td").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			lines = append(lines, text)
		}
	})

	text := strings.Join(lines, "\n")
	if strings.TrimSpace(text) == "" {
		// Fallback for markup without block elements.
		text = doc.Text()
	}
	return collapseBlankLines(strings.TrimSpace(text)), nil
}

func looksLikeHTML(s string) bool {
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html") {
		return true
	}
	for _, tag := range []string{"<p>", "<p ", "<div", "<body", "<table", "<br", "<li>", "<span"} {
		if strings.Contains(lower, tag) {
			return true
		}
	}
	return false
}

// collapseBlankLines trims each line and squeezes runs of blank lines
// down to one so section headers stay detectable.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
