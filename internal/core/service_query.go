package core

// service_query.go is the public read path: single results with ranks,
// filtered search and published sessions with their statistics.
//
// The cache is best effort. A cache failure is logged and the store answers.

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/natijti/internal/metrics"
)

// ErrResultNotFound is returned for unknown or unpublished results.
var ErrResultNotFound = errors.New("result not found")

// ResultView is a published result with its session and live ranks.
type ResultView struct {
	Record
	Ranks
	Session *ExamSession `json:"session"`
}

// GetResult returns a published result with its ranks and counts the view.
func (s *Service) GetResult(ctx context.Context, id uuid.UUID) (*ResultView, error) {
	rec, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.Published {
		return nil, ErrResultNotFound
	}

	sess, err := s.store.FindSession(ctx, rec.SessionID)
	if err != nil {
		return nil, fmt.Errorf("find session %d: %w", rec.SessionID, err)
	}

	start := time.Now()
	ranks, err := s.ranker.Compute(ctx, rec, sess.ExamType)
	metrics.RecordStep("rank", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("compute ranks: %w", err)
	}

	if err := s.store.IncrementViewCount(ctx, id); err != nil {
		slog.Warn("view count not updated", "result_id", id, "error", err)
	} else {
		rec.ViewCount++
	}

	return &ResultView{Record: *rec, Ranks: ranks, Session: sess}, nil
}

// Search returns one page of published results matching p, best score first.
func (s *Service) Search(ctx context.Context, p SearchParams) (*SearchPage, error) {
	p = s.normalizePage(p)
	key := searchCacheKey(s.searchGeneration(ctx), p)

	var page SearchPage
	if s.cacheGet(ctx, "search", key, &page) {
		return &page, nil
	}

	start := time.Now()
	results, total, err := s.store.SearchRecords(ctx, p)
	metrics.RecordStep("search", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("search results: %w", err)
	}
	if results == nil {
		results = []Record{}
	}

	totalPages := (total + p.Size - 1) / p.Size
	page = SearchPage{
		Results:    results,
		Total:      total,
		Page:       p.Page,
		Size:       p.Size,
		TotalPages: totalPages,
		HasNext:    p.Page < totalPages,
		HasPrev:    p.Page > 1,
	}
	s.cacheSet(ctx, key, &page, s.opts.ResultsTTL)
	return &page, nil
}

func (s *Service) normalizePage(p SearchParams) SearchParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Size < 1 {
		p.Size = s.opts.DefaultPageSize
	}
	if p.Size > s.opts.MaxPageSize {
		p.Size = s.opts.MaxPageSize
	}
	p.NationalID = strings.TrimSpace(p.NationalID)
	p.FileNumber = strings.TrimSpace(p.FileNumber)
	p.Name = strings.TrimSpace(p.Name)
	p.SeriesCode = strings.TrimSpace(p.SeriesCode)
	p.Decision = strings.TrimSpace(p.Decision)
	return p
}

// searchGenKey holds the current search generation. Bumping it orphans every
// cached search page at once.
const searchGenKey = "search:gen"

// searchCacheKey hashes the parameters with their keys sorted, so equal
// searches within one generation share an entry.
func searchCacheKey(gen string, p SearchParams) string {
	raw, _ := json.Marshal(p)
	var fields map[string]any
	_ = json.Unmarshal(raw, &fields)
	sorted, _ := json.Marshal(fields)
	sum := sha256.Sum256(sorted)
	return "search:" + gen + ":" + hex.EncodeToString(sum[:])
}

func (s *Service) searchGeneration(ctx context.Context) string {
	raw, ok, err := s.cache.Get(ctx, searchGenKey)
	if err != nil {
		slog.Warn("cache read failed", "key", searchGenKey, "error", err)
	}
	if !ok || len(raw) == 0 {
		return "0"
	}
	return string(raw)
}

// ListSessions returns published sessions with derived statistics.
func (s *Service) ListSessions(ctx context.Context, f SessionFilter) ([]SessionSummary, error) {
	sessions, err := s.store.ListSessions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		st, err := s.sessionStats(ctx, sess.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, SessionSummary{ExamSession: sess, SessionStats: st})
	}
	return out, nil
}

// SessionStats returns the statistics of one session.
func (s *Service) SessionStats(ctx context.Context, sessionID int64) (*SessionStats, error) {
	if _, err := s.store.FindSession(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("find session %d: %w", sessionID, err)
	}
	st, err := s.sessionStats(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Service) sessionStats(ctx context.Context, sessionID int64) (SessionStats, error) {
	key := statsCacheKey(sessionID)
	var st SessionStats
	if s.cacheGet(ctx, "stats", key, &st) {
		return st, nil
	}
	candidates, passed, err := s.store.SessionCounts(ctx, sessionID)
	if err != nil {
		return SessionStats{}, fmt.Errorf("count session %d: %w", sessionID, err)
	}
	st = NewSessionStats(sessionID, candidates, passed)
	s.cacheSet(ctx, key, st, s.opts.StatsTTL)
	return st, nil
}

func statsCacheKey(sessionID int64) string {
	return fmt.Sprintf("stats:session:%d", sessionID)
}

// invalidateSession drops the cached statistics of the session and starts a
// new search generation, so results written by a task are visible at once.
func (s *Service) invalidateSession(ctx context.Context, sessionID int64) {
	if err := s.cache.Delete(ctx, statsCacheKey(sessionID)); err != nil {
		slog.Warn("cache invalidation failed", "session_id", sessionID, "error", err)
	}
	if err := s.cache.Set(ctx, searchGenKey, []byte(uuid.NewString()), 0); err != nil {
		slog.Warn("cache invalidation failed", "key", searchGenKey, "error", err)
	}
}

func (s *Service) cacheGet(ctx context.Context, kind, key string, dst any) bool {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("cache read failed", "key", key, "error", err)
		return false
	}
	if ok {
		if err := json.Unmarshal(raw, dst); err == nil {
			metrics.RecordCache(kind, true)
			return true
		}
		slog.Warn("cache entry unreadable", "key", key)
	}
	metrics.RecordCache(kind, false)
	return false
}

func (s *Service) cacheSet(ctx context.Context, key string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, ttl); err != nil {
		slog.Warn("cache write failed", "key", key, "error", err)
	}
}
