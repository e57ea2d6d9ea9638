// Package extract implements the synchronous article-extraction algorithm
// executed inside pool units. It is pure CPU work over the document string:
// no I/O, no shared state, safe to abandon mid-run.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/pagescope/readability-server/internal/readability"
)

// Config tunes the candidate scoring thresholds.
type Config struct {
	// MinTextLength is the smallest body text accepted as a real article.
	MinTextLength int
	// MinScore is the lowest candidate score accepted without force.
	MinScore float64
	// MaxLinkDensity rejects candidates that are mostly navigation.
	MaxLinkDensity float64
}

// Extractor scores block-level containers and picks the most article-like
// one. A document where no container clears the thresholds yields a nil
// result unless the caller forces extraction.
type Extractor struct {
	cfg Config
}

var (
	positiveHint = regexp.MustCompile(`(?i)article|body|content|entry|main|page|post|story|text`)
	negativeHint = regexp.MustCompile(`(?i)banner|combx|comment|community|disqus|footer|masthead|menu|nav|promo|related|shoutbox|sidebar|sponsor|widget`)
	whitespace   = regexp.MustCompile(`[\s\x{00a0}]+`)
)

const noiseSelector = "script, style, noscript, template, link, object, embed"

// New builds an Extractor, filling unset thresholds with defaults.
func New(cfg Config) *Extractor {
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = 250
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = 20
	}
	if cfg.MaxLinkDensity <= 0 {
		cfg.MaxLinkDensity = 0.5
	}
	return &Extractor{cfg: cfg}
}

// Task adapts Extract to the pool's task signature. Arguments are
// (html string, url string, force bool); the result is a
// *readability.Result or nil when the page is not worth extracting.
func (e *Extractor) Task(args ...any) (any, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("extract task: want 3 arguments (html, url, force), got %d", len(args))
	}
	htmlSrc, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("extract task: html argument must be a string")
	}
	pageURL, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("extract task: url argument must be a string")
	}
	force, ok := args[2].(bool)
	if !ok {
		return nil, fmt.Errorf("extract task: force argument must be a bool")
	}
	result, err := e.Extract(htmlSrc, pageURL, force)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result, nil
}

// Extract parses the document and returns the readable portion, or nil when
// nothing article-like is found and force is false. With force set, the
// best candidate (falling back to the whole body) is returned regardless of
// score.
func (e *Extractor) Extract(htmlSrc, pageURL string, force bool) (*readability.Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlSrc))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	title := documentTitle(doc)
	byline := documentByline(doc)

	doc.Find(noiseSelector).Remove()

	candidate, score := e.bestCandidate(doc)
	if candidate == nil {
		candidate = doc.Find("body").First()
		if candidate.Length() == 0 {
			return nil, nil
		}
		score = 0
	}

	text := normalizeText(candidate.Text())
	if !force {
		if score < e.cfg.MinScore ||
			len(text) < e.cfg.MinTextLength ||
			linkDensity(candidate) > e.cfg.MaxLinkDensity {
			return nil, nil
		}
	}

	contentHTML, err := goquery.OuterHtml(candidate)
	if err != nil {
		return nil, fmt.Errorf("serialize content: %w", err)
	}

	candidate.Remove()
	residueHTML, err := doc.Find("body").First().Html()
	if err != nil {
		return nil, fmt.Errorf("serialize residue: %w", err)
	}

	return &readability.Result{
		URL:         pageURL,
		Title:       title,
		Byline:      byline,
		TextBody:    text,
		ContentHTML: contentHTML,
		ResidueHTML: residueHTML,
		WordCount:   len(strings.Fields(text)),
	}, nil
}

// bestCandidate scores every paragraph's container and returns the highest
// scoring one. Scoring follows the usual arc90 shape: length and comma
// counts vote a paragraph's parent up, class/id hints and link density
// adjust the total.
func (e *Extractor) bestCandidate(doc *goquery.Document) (*goquery.Selection, float64) {
	scores := map[*html.Node]float64{}
	nodes := map[*html.Node]*goquery.Selection{}

	doc.Find("p, pre, td").Each(func(_ int, p *goquery.Selection) {
		text := normalizeText(p.Text())
		if len(text) < 25 {
			return
		}
		parent := p.Parent()
		if parent.Length() == 0 {
			return
		}
		node := parent.Get(0)
		if _, seen := scores[node]; !seen {
			scores[node] = hintWeight(parent)
			nodes[node] = parent
		}
		scores[node] += 1 + float64(strings.Count(text, ","))
		scores[node] += min(float64(len(text))/100, 3)
	})

	var (
		best      *goquery.Selection
		bestScore float64
	)
	for node, sel := range nodes {
		adjusted := scores[node] * (1 - linkDensity(sel))
		if best == nil || adjusted > bestScore {
			best = sel
			bestScore = adjusted
		}
	}
	return best, bestScore
}

func hintWeight(sel *goquery.Selection) float64 {
	var weight float64
	hint := sel.AttrOr("class", "") + " " + sel.AttrOr("id", "")
	if positiveHint.MatchString(hint) {
		weight += 25
	}
	if negativeHint.MatchString(hint) {
		weight -= 25
	}
	switch goquery.NodeName(sel) {
	case "article", "main":
		weight += 25
	case "div", "section":
		weight += 5
	case "td", "pre", "blockquote":
		weight += 3
	case "form", "ul", "ol", "dl":
		weight -= 3
	}
	return weight
}

// linkDensity is the share of a container's text that sits inside anchors.
func linkDensity(sel *goquery.Selection) float64 {
	total := len(normalizeText(sel.Text()))
	if total == 0 {
		return 0
	}
	linked := 0
	sel.Find("a").Each(func(_ int, a *goquery.Selection) {
		linked += len(normalizeText(a.Text()))
	})
	return float64(linked) / float64(total)
}

func documentTitle(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if t := strings.TrimSpace(og); t != "" {
			return t
		}
	}
	if t := normalizeText(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return normalizeText(doc.Find("h1").First().Text())
}

func documentByline(doc *goquery.Document) string {
	if author, ok := doc.Find(`meta[name="author"]`).Attr("content"); ok {
		if b := strings.TrimSpace(author); b != "" {
			return b
		}
	}
	return normalizeText(doc.Find(`[rel="author"], .byline, .author`).First().Text())
}

func normalizeText(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
