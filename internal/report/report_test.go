package report

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	archivememory "github.com/pagescope/readability-server/internal/archive/memory"
	historymemory "github.com/pagescope/readability-server/internal/history/memory"
	"github.com/pagescope/readability-server/internal/readability"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func TestGenerateWritesCSVArtifact(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	history := historymemory.New()
	archive := archivememory.New()

	ctx := context.Background()
	require.NoError(t, history.RecordExtraction(ctx, readability.ExtractionRecord{
		ID: "1", URL: "https://example.com/a", Host: "example.com",
		Outcome: readability.OutcomeReadable, CreatedAt: now.Add(-time.Hour),
	}))
	require.NoError(t, history.RecordExtraction(ctx, readability.ExtractionRecord{
		ID: "2", URL: "https://example.com/b", Host: "example.com",
		Outcome: readability.OutcomeTimedOut, CreatedAt: now.Add(-time.Hour),
	}))
	// Outside the 24h window, must not appear.
	require.NoError(t, history.RecordExtraction(ctx, readability.ExtractionRecord{
		ID: "3", URL: "https://old.example.net/c", Host: "old.example.net",
		Outcome: readability.OutcomeReadable, CreatedAt: now.Add(-48 * time.Hour),
	}))

	g, err := New(Config{Prefix: "reports"}, history, archive, fixedClock{now: now}, zap.NewNop())
	require.NoError(t, err)

	uri, err := g.Generate(ctx)
	require.NoError(t, err)
	require.Contains(t, uri, "memory://reports/host-summary-")

	key := strings.TrimPrefix(uri, "memory://")
	data, ok := archive.Object(key)
	require.True(t, ok)

	csv := string(data)
	require.Contains(t, csv, "host,total,readable,unreadable,timed_out,failed")
	require.Contains(t, csv, "example.com,2,1,0,1,0")
	require.NotContains(t, csv, "old.example.net")
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	history := historymemory.New()
	archive := archivememory.New()
	clk := fixedClock{now: time.Now()}

	_, err := New(Config{}, nil, archive, clk, nil)
	require.Error(t, err)
	_, err = New(Config{}, history, nil, clk, nil)
	require.Error(t, err)
	_, err = New(Config{}, history, archive, nil, nil)
	require.Error(t, err)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	g, err := New(Config{Interval: time.Millisecond}, historymemory.New(), archivememory.New(), fixedClock{now: time.Now()}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = g.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
