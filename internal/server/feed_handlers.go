package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/intelverse/intelverse-go/internal/feed"
	"github.com/intelverse/intelverse-go/internal/logger"
	"github.com/intelverse/intelverse-go/internal/store"
)

// handleFeeds serves the paginated feed listing.
func (s *Server) handleFeeds(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := feed.Query{
		TimeRange: params.Get("timeRange"),
		SortBy:    store.SortBy(params.Get("sortBy")),
	}
	if raw := params.Get("sources"); raw != "" {
		q.Sources = strings.Split(raw, ",")
	}
	if page, err := strconv.Atoi(params.Get("page")); err == nil {
		q.Page = page
	}
	if limit, err := strconv.Atoi(params.Get("limit")); err == nil {
		q.Limit = limit
	}

	page, err := s.feeds.GetPage(r.Context(), q)
	if err != nil {
		logger.L.Error("feed query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch feeds")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleFeedBySource serves every summary from one source.
func (s *Server) handleFeedBySource(w http.ResponseWriter, r *http.Request) {
	source := mux.Vars(r)["source"]
	items, err := s.feeds.BySource(r.Context(), source)
	if err != nil {
		logger.L.Error("feed by source failed", "source", source, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch feeds")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// handleDashboard serves all summaries, oldest first.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.store.All(r.Context())
	if err != nil {
		logger.L.Error("dashboard query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch dashboard data")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summaries": summaries})
}

// handleTrends serves summaries from the last 24 hours, oldest first.
func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	items, _, err := s.store.Query(r.Context(), store.Filter{
		Since: time.Now().Add(-24 * time.Hour),
		Sort:  store.SortByTime,
	})
	if err != nil {
		logger.L.Error("trends query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch trends")
		return
	}
	// Query returns newest first; trends read chronologically.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	writeJSON(w, http.StatusOK, map[string]any{"trends": items})
}

type sourceStat struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// handleStats serves per-source summary counts.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountBySource(r.Context())
	if err != nil {
		logger.L.Error("stats query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch stats")
		return
	}
	stats := make([]sourceStat, 0, len(counts))
	for src, n := range counts {
		stats = append(stats, sourceStat{Source: src, Count: n})
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
