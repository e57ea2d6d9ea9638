package readability

import (
	"net/http"
	"time"
)

// Result is the structured output of a successful content extraction.
// A nil *Result means the document was not worth extracting.
type Result struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Byline      string `json:"byline,omitempty"`
	TextBody    string `json:"text"`
	ContentHTML string `json:"content"`
	ResidueHTML string `json:"residue"`
	WordCount   int    `json:"word_count"`
}

// FetchRequest captures everything needed to retrieve a page for /proxy.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Rendered   bool
}

// ExtractionOutcome classifies how a pool task settled.
type ExtractionOutcome string

// Outcome values recorded in the history store.
const (
	OutcomeReadable   ExtractionOutcome = "readable"
	OutcomeUnreadable ExtractionOutcome = "unreadable"
	OutcomeTimedOut   ExtractionOutcome = "timed_out"
	OutcomeFailed     ExtractionOutcome = "failed"
)

// ExtractionRecord is persisted for each extraction attempt.
type ExtractionRecord struct {
	ID          string            `json:"id"`
	URL         string            `json:"url"`
	Host        string            `json:"host"`
	ContentHash string            `json:"content_hash,omitempty"`
	Outcome     ExtractionOutcome `json:"outcome"`
	DurationMs  int64             `json:"duration_ms"`
	ErrorText   string            `json:"error_text,omitempty"`
	ArchiveURI  string            `json:"archive_uri,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// HostSummary aggregates extraction outcomes per host for reporting.
type HostSummary struct {
	Host       string `json:"host"`
	Total      int    `json:"total"`
	Readable   int    `json:"readable"`
	Unreadable int    `json:"unreadable"`
	TimedOut   int    `json:"timed_out"`
	Failed     int    `json:"failed"`
}
