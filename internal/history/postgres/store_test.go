package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/pagescope/readability-server/internal/readability"
)

func TestRecordExtractionInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "extractions")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()

	rec := readability.ExtractionRecord{
		ID:          "uuid-v7",
		URL:         "https://example.com/article",
		Host:        "example.com",
		ContentHash: "abc123",
		Outcome:     readability.OutcomeReadable,
		DurationMs:  42,
		ArchiveURI:  "gs://bucket/path",
		CreatedAt:   now,
	}

	mock.ExpectExec("INSERT INTO extractions").
		WithArgs(
			rec.ID,
			rec.URL,
			rec.Host,
			rec.ContentHash,
			string(rec.Outcome),
			rec.DurationMs,
			rec.ErrorText,
			rec.ArchiveURI,
			rec.CreatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.RecordExtraction(context.Background(), rec)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordExtractionRequiresID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "extractions")
	require.NoError(t, err)

	err = store.RecordExtraction(context.Background(), readability.ExtractionRecord{})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHostSummariesAggregatesRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "extractions")
	require.NoError(t, err)

	since := time.Unix(1700000000, 0).UTC()

	rows := pgxmock.NewRows([]string{"host", "total", "readable", "unreadable", "timed_out", "failed"}).
		AddRow("example.com", 5, 3, 1, 1, 0).
		AddRow("example.org", 2, 2, 0, 0, 0)

	mock.ExpectQuery("SELECT").
		WithArgs(since).
		WillReturnRows(rows)

	summaries, err := store.HostSummaries(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	require.Equal(t, "example.com", summaries[0].Host)
	require.Equal(t, 5, summaries[0].Total)
	require.Equal(t, 3, summaries[0].Readable)
	require.Equal(t, 1, summaries[0].TimedOut)
	require.Equal(t, "example.org", summaries[1].Host)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolRejectsBadTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "extractions; DROP TABLE users")
	require.Error(t, err)
}
