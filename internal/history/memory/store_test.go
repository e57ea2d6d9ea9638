package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pagescope/readability-server/internal/readability"
)

func record(id, host string, outcome readability.ExtractionOutcome, at time.Time) readability.ExtractionRecord {
	return readability.ExtractionRecord{
		ID:        id,
		URL:       "https://" + host + "/page",
		Host:      host,
		Outcome:   outcome,
		CreatedAt: at,
	}
}

func TestRecordExtractionRequiresID(t *testing.T) {
	t.Parallel()

	store := New()
	err := store.RecordExtraction(context.Background(), readability.ExtractionRecord{})
	require.Error(t, err)
}

func TestHostSummariesAggregateAndFilter(t *testing.T) {
	t.Parallel()

	store := New()
	now := time.Unix(1700000000, 0).UTC()
	old := now.Add(-48 * time.Hour)

	ctx := context.Background()
	require.NoError(t, store.RecordExtraction(ctx, record("1", "example.com", readability.OutcomeReadable, now)))
	require.NoError(t, store.RecordExtraction(ctx, record("2", "example.com", readability.OutcomeTimedOut, now)))
	require.NoError(t, store.RecordExtraction(ctx, record("3", "example.org", readability.OutcomeUnreadable, now)))
	require.NoError(t, store.RecordExtraction(ctx, record("4", "example.com", readability.OutcomeReadable, old)))

	summaries, err := store.HostSummaries(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	require.Equal(t, "example.com", summaries[0].Host)
	require.Equal(t, 2, summaries[0].Total)
	require.Equal(t, 1, summaries[0].Readable)
	require.Equal(t, 1, summaries[0].TimedOut)

	require.Equal(t, "example.org", summaries[1].Host)
	require.Equal(t, 1, summaries[1].Unreadable)
}
