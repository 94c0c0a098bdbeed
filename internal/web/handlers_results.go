package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/natijti/internal/core"
)

// healthTimeout bounds the store ping behind /health.
const healthTimeout = 2 * time.Second

// handleSearch returns one page of published results.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var q searchQuery
	if err := bindQuery(r.URL.Query(), &q); err != nil {
		respondError(w, r, err)
		return
	}

	page, err := s.service.Search(r.Context(), q.params())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleGetResult returns one result with its ranks.
func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "resultID"))
	if err != nil {
		respondError(w, r, invalidParam("resultID", "must be a UUID"))
		return
	}

	view, err := s.service.GetResult(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleListSessions lists published sessions with their statistics.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	var q sessionQuery
	if err := bindQuery(r.URL.Query(), &q); err != nil {
		respondError(w, r, err)
		return
	}

	sessions, err := s.service.ListSessions(r.Context(), core.SessionFilter{
		ExamType: core.ExamType(q.ExamType),
		Year:     q.Year,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// handleSessionStats returns the statistics of one session.
func (s *Server) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "sessionID"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, r, invalidParam("sessionID", "must be a positive integer"))
		return
	}

	stats, err := s.service.SessionStats(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status   string                   `json:"status"`
	Database string                   `json:"database,omitempty"`
	Tasks    core.UploadLimiterStatus `json:"tasks"`
	Time     time.Time                `json:"time"`
}

// handleHealth reports store reachability and task slot usage. Responds 503
// when the store ping fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "ok",
		Tasks:  s.service.Limiter().Status(),
		Time:   time.Now().UTC(),
	}
	status := http.StatusOK

	if s.opts.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.opts.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}
	writeJSON(w, status, resp)
}
