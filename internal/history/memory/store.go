// Package memory keeps extraction history in-memory for development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pagescope/readability-server/internal/readability"
)

// Store keeps extraction records in a slice guarded by a mutex.
type Store struct {
	mu      sync.RWMutex
	records []readability.ExtractionRecord
}

// New creates a new in-memory history store.
func New() *Store {
	return &Store{}
}

// RecordExtraction appends the record.
func (s *Store) RecordExtraction(_ context.Context, record readability.ExtractionRecord) error {
	if record.ID == "" {
		return fmt.Errorf("record id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

// HostSummaries aggregates outcomes per host for records created at or
// after since.
func (s *Store) HostSummaries(_ context.Context, since time.Time) ([]readability.HostSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byHost := make(map[string]*readability.HostSummary)
	for _, rec := range s.records {
		if rec.CreatedAt.Before(since) {
			continue
		}
		summary, ok := byHost[rec.Host]
		if !ok {
			summary = &readability.HostSummary{Host: rec.Host}
			byHost[rec.Host] = summary
		}
		summary.Total++
		switch rec.Outcome {
		case readability.OutcomeReadable:
			summary.Readable++
		case readability.OutcomeUnreadable:
			summary.Unreadable++
		case readability.OutcomeTimedOut:
			summary.TimedOut++
		case readability.OutcomeFailed:
			summary.Failed++
		}
	}

	summaries := make([]readability.HostSummary, 0, len(byHost))
	for _, summary := range byHost {
		summaries = append(summaries, *summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Host < summaries[j].Host
	})
	return summaries, nil
}

// Records returns a copy of everything stored. Intended for tests.
func (s *Store) Records() []readability.ExtractionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]readability.ExtractionRecord(nil), s.records...)
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() {}
