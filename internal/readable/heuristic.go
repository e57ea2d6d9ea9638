// Package readable implements the pre-extraction heuristics: whether a
// document is worth sending to the pool at all, and whether its markup
// looks like a script-rendered shell that needs a headless pass first.
package readable

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Config controls the heuristic thresholds.
type Config struct {
	MinHTMLBytes   int
	MinParagraphs  int
	ShellMaxText   int
	ShellSelectors []string
	ShellKeywords  []string
}

// Heuristic implements readability.Preflight using simple HTML signals.
type Heuristic struct {
	minHTMLBytes   int
	minParagraphs  int
	shellMaxText   int
	shellSelectors []string
	shellKeywords  [][]byte
}

// New constructs a Heuristic with the configured thresholds.
func New(cfg Config) *Heuristic {
	if cfg.MinHTMLBytes <= 0 {
		cfg.MinHTMLBytes = 512
	}
	if cfg.MinParagraphs <= 0 {
		cfg.MinParagraphs = 1
	}
	if cfg.ShellMaxText <= 0 {
		cfg.ShellMaxText = 150
	}
	if len(cfg.ShellSelectors) == 0 {
		cfg.ShellSelectors = []string{"#root:empty", "#app:empty", "[data-reactroot]:empty"}
	}
	keywords := make([][]byte, 0, len(cfg.ShellKeywords))
	for _, kw := range cfg.ShellKeywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		keywords = append(keywords, bytes.ToLower([]byte(kw)))
	}
	if len(keywords) == 0 {
		keywords = [][]byte{
			[]byte("enable javascript"),
			[]byte("requires javascript"),
		}
	}
	return &Heuristic{
		minHTMLBytes:   cfg.MinHTMLBytes,
		minParagraphs:  cfg.MinParagraphs,
		shellMaxText:   cfg.ShellMaxText,
		shellSelectors: cfg.ShellSelectors,
		shellKeywords:  keywords,
	}
}

// WorthExtracting reports whether the document has enough prose-bearing
// structure to justify a pool slot.
func (h *Heuristic) WorthExtracting(body []byte) bool {
	if h == nil || len(body) < h.minHTMLBytes {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	return doc.Find("p").Length() >= h.minParagraphs
}

// LooksScriptRendered reports whether the markup is an empty application
// shell whose content only exists after script execution.
func (h *Heuristic) LooksScriptRendered(body []byte) bool {
	if h == nil || len(body) == 0 {
		return false
	}
	lowerBody := bytes.ToLower(body)
	for _, kw := range h.shellKeywords {
		if bytes.Contains(lowerBody, kw) {
			return true
		}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	for _, sel := range h.shellSelectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	text := strings.TrimSpace(doc.Find("body").Text())
	return len(text) < h.shellMaxText && doc.Find("script").Length() > 0
}
