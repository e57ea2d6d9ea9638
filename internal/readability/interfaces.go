package readability

import (
	"context"
	"time"
)

// Fetcher retrieves a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Renderer produces the DOM of a page after script execution. Used when a
// plain fetch returns a script-rendered shell.
type Renderer interface {
	Render(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Preflight decides whether a document is worth sending to the extraction
// pool, and whether it looks like it needs rendering first.
type Preflight interface {
	WorthExtracting(body []byte) bool
	LooksScriptRendered(body []byte) bool
}

// ArchiveStore writes raw artifacts and returns a URI.
type ArchiveStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// HistoryStore persists extraction attempts and serves report aggregates.
type HistoryStore interface {
	RecordExtraction(ctx context.Context, record ExtractionRecord) error
	HostSummaries(ctx context.Context, since time.Time) ([]HostSummary, error)
	Close()
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for archive keys and deduplication.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
