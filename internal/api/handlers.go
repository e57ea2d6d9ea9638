package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/pagescope/readability-server/internal/readability"
	"github.com/pagescope/readability-server/internal/telemetry"
	"github.com/pagescope/readability-server/internal/workpool"
)

// Error payloads returned to clients. Callers are expected to treat any
// status >= 400 as "no readable content".
const (
	errTimedOut     = "TIMEDOUT"
	errNotReadable  = "UNREADABLE"
	errUpstreamBad  = "UPSTREAM_ERROR"
	errInvalidInput = "INVALID_REQUEST"
)

type parseRequest struct {
	HTML  string `json:"html"`
	URL   string `json:"url"`
	Force bool   `json:"force"`
}

// proxy fetches the URL server-side and extracts its readable content.
func (s *Server) proxy(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if !validTargetURL(rawURL) {
		writeError(w, http.StatusBadRequest, errInvalidInput)
		return
	}
	force := queryBool(r, "force")

	resp, err := s.fetcher.Fetch(r.Context(), readability.FetchRequest{URL: rawURL})
	if err != nil {
		s.logger.Warn("fetch failed", zap.String("url", rawURL), zap.Error(err))
		writeError(w, http.StatusBadGateway, errUpstreamBad)
		return
	}
	if resp.StatusCode >= http.StatusBadRequest {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":           errNotReadable,
			"upstream_status": resp.StatusCode,
		})
		return
	}

	if s.renderer != nil && s.cfg.Headless.Enabled && s.preflight.LooksScriptRendered(resp.Body) {
		rendered, renderErr := s.renderer.Render(r.Context(), readability.FetchRequest{URL: rawURL})
		if renderErr != nil {
			s.logger.Warn("headless render failed, using plain fetch",
				zap.String("url", rawURL), zap.Error(renderErr))
		} else {
			resp = rendered
		}
	}

	if !force && !s.preflight.WorthExtracting(resp.Body) {
		s.recordOutcome(rawURL, readability.OutcomeUnreadable, 0, "", resp.Body)
		writeError(w, http.StatusUnprocessableEntity, errNotReadable)
		return
	}

	s.extractAndRespond(r.Context(), w, string(resp.Body), resp.URL, force, resp.Body)
}

// parse extracts readable content from HTML supplied by the caller.
func (s *Server) parse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.HTML == "" {
		writeError(w, http.StatusBadRequest, errInvalidInput)
		return
	}
	if req.URL == "" {
		req.URL = "about:blank"
	}
	s.extractAndRespond(r.Context(), w, req.HTML, req.URL, req.Force, []byte(req.HTML))
}

// extractAndRespond runs the extraction task on the pool and maps its
// settlement onto the HTTP response.
func (s *Server) extractAndRespond(ctx context.Context, w http.ResponseWriter, html, pageURL string, force bool, raw []byte) {
	start := time.Now()
	value, err := s.pool.Send(ctx, workpool.Options{}, html, pageURL, force)
	elapsed := time.Since(start)

	switch {
	case errors.Is(err, workpool.ErrTimedOut), errors.Is(err, workpool.ErrTerminated):
		s.recordOutcome(pageURL, readability.OutcomeTimedOut, elapsed, err.Error(), raw)
		writeError(w, http.StatusInternalServerError, errTimedOut)
		return
	case err != nil:
		var taskErr *workpool.TaskError
		if errors.As(err, &taskErr) {
			s.recordOutcome(pageURL, readability.OutcomeFailed, elapsed, taskErr.Message, raw)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": taskErr.Message,
				"stack": taskErr.Stack,
			})
			return
		}
		s.recordOutcome(pageURL, readability.OutcomeFailed, elapsed, err.Error(), raw)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result, ok := value.(*readability.Result)
	if !ok || result == nil {
		s.recordOutcome(pageURL, readability.OutcomeUnreadable, elapsed, "", raw)
		writeError(w, http.StatusUnprocessableEntity, errNotReadable)
		return
	}

	s.recordOutcome(pageURL, readability.OutcomeReadable, elapsed, "", raw)
	writeJSON(w, http.StatusOK, result)
}

// recordOutcome persists one extraction attempt: raw artifact, history row,
// completion event, metrics. Persistence failures are logged, never
// surfaced to the client.
func (s *Server) recordOutcome(pageURL string, outcome readability.ExtractionOutcome, elapsed time.Duration, errText string, raw []byte) {
	telemetry.ObserveExtraction(pageURL, string(outcome), elapsed)

	// Detached from the request so a client disconnect cannot lose the row.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id, err := s.idGen.NewID()
	if err != nil {
		s.logger.Warn("generate record id failed", zap.Error(err))
		return
	}

	var hash, archiveURI string
	if len(raw) > 0 {
		if hash, err = s.hasher.Hash(raw); err != nil {
			s.logger.Warn("hash artifact failed", zap.Error(err))
		} else if s.archive != nil {
			key := path.Join(s.cfg.Archive.Prefix, telemetry.SanitizeHost(pageURL), hash+".html")
			archiveURI, err = s.archive.PutObject(ctx, key, s.cfg.Archive.ContentType, raw)
			if err != nil {
				s.logger.Warn("archive artifact failed", zap.String("url", pageURL), zap.Error(err))
				archiveURI = ""
			}
		}
	}

	record := readability.ExtractionRecord{
		ID:          id,
		URL:         pageURL,
		Host:        telemetry.SanitizeHost(pageURL),
		ContentHash: hash,
		Outcome:     outcome,
		DurationMs:  elapsed.Milliseconds(),
		ErrorText:   errText,
		ArchiveURI:  archiveURI,
		CreatedAt:   s.clock.Now(),
	}
	if s.history != nil {
		if err := s.history.RecordExtraction(ctx, record); err != nil {
			s.logger.Warn("record extraction failed", zap.String("url", pageURL), zap.Error(err))
		}
	}
	if s.publisher != nil && s.cfg.PubSub.Enabled {
		if _, err := s.publisher.Publish(ctx, s.cfg.PubSub.TopicName, record); err != nil {
			s.logger.Warn("publish extraction event failed", zap.String("url", pageURL), zap.Error(err))
		}
	}
}

func validTargetURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func queryBool(r *http.Request, name string) bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}
