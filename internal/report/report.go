// Package report exports periodic per-host extraction summaries as CSV
// artifacts.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/pagescope/readability-server/internal/readability"
)

// Config controls report generation.
type Config struct {
	Interval time.Duration
	Window   time.Duration
	Prefix   string
}

// Generator renders host summaries from the history store into the archive.
type Generator struct {
	cfg     Config
	history readability.HistoryStore
	archive readability.ArchiveStore
	clock   readability.Clock
	logger  *zap.Logger
}

// New creates a Generator.
func New(cfg Config, history readability.HistoryStore, archive readability.ArchiveStore, clock readability.Clock, logger *zap.Logger) (*Generator, error) {
	if history == nil {
		return nil, fmt.Errorf("history store is required")
	}
	if archive == nil {
		return nil, fmt.Errorf("archive store is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "reports"
	}
	return &Generator{
		cfg:     cfg,
		history: history,
		archive: archive,
		clock:   clock,
		logger:  logger,
	}, nil
}

// Run generates a report every interval until the context is canceled.
func (g *Generator) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if uri, err := g.Generate(ctx); err != nil {
				g.logger.Warn("report generation failed", zap.Error(err))
			} else {
				g.logger.Info("report generated", zap.String("uri", uri))
			}
		}
	}
}

// Generate renders one CSV summary and writes it to the archive, returning
// the artifact URI.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	now := g.clock.Now()
	since := now.Add(-g.cfg.Window)

	summaries, err := g.history.HostSummaries(ctx, since)
	if err != nil {
		return "", fmt.Errorf("load host summaries: %w", err)
	}

	data, err := renderCSV(summaries)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("host-summary-%s.csv", now.Format("20060102T150405Z"))
	uri, err := g.archive.PutObject(ctx, path.Join(g.cfg.Prefix, name), "text/csv", data)
	if err != nil {
		return "", fmt.Errorf("write report artifact: %w", err)
	}
	return uri, nil
}

func renderCSV(summaries []readability.HostSummary) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"host", "total", "readable", "unreadable", "timed_out", "failed"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, s := range summaries {
		row := []string{
			s.Host,
			strconv.Itoa(s.Total),
			strconv.Itoa(s.Readable),
			strconv.Itoa(s.Unreadable),
			strconv.Itoa(s.TimedOut),
			strconv.Itoa(s.Failed),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
