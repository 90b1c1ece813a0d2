// Package store defines the summary repository contract shared by the
// chat, feed and broadcast subsystems, with interchangeable in-memory,
// relational (sqlite) and document-oriented (pebble) backends.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrStoreUnavailable wraps any backend failure so callers can treat
// every store the same regardless of which backend is configured.
var ErrStoreUnavailable = errors.New("summary store unavailable")

// Summary is one summarized document. URL is unique within a store.
type Summary struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Body       string    `json:"summary"`
	Engagement int       `json:"engagement"`
	CreatedAt  time.Time `json:"createdAt"`
}

// normalize prepares a summary for insertion. Sources are compared
// case-insensitively, so they are stored lowercased; summaries arriving
// without an ID get one assigned.
func normalize(s Summary) Summary {
	s.Source = strings.ToLower(s.Source)
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return s
}

// SortBy selects the ordering of a filtered query.
type SortBy string

const (
	SortByTime       SortBy = "time"
	SortByEngagement SortBy = "engagement"
)

// Filter restricts and pages a summary query. Zero values mean "no
// restriction": empty Sources matches every source, a zero Since
// matches any age, Limit <= 0 returns everything past Offset.
type Filter struct {
	Sources []string
	Since   time.Time
	Sort    SortBy
	Offset  int
	Limit   int
}

// SummaryStore is the repository contract the core depends on. Both a
// document-oriented and a relational backend satisfy it; nothing above
// this interface may assume which one is in use.
type SummaryStore interface {
	// Insert stores a summary. An existing summary with the same URL is
	// replaced rather than duplicated.
	Insert(ctx context.Context, s Summary) error

	// Search returns up to limit summaries whose title or body contains
	// the keyword, case-insensitively. No match is an empty slice, not
	// an error.
	Search(ctx context.Context, keyword string, limit int) ([]Summary, error)

	// Query returns one page of summaries matching the filter, plus the
	// total number of matches before paging.
	Query(ctx context.Context, f Filter) ([]Summary, int, error)

	// Recent returns the n newest summaries, newest first.
	Recent(ctx context.Context, n int) ([]Summary, error)

	// BySource returns all summaries from one source, oldest first.
	BySource(ctx context.Context, source string) ([]Summary, error)

	// All returns every summary ordered by creation time ascending.
	All(ctx context.Context) ([]Summary, error)

	// CountBySource returns the number of summaries per source.
	CountBySource(ctx context.Context) (map[string]int, error)

	Close() error
}
