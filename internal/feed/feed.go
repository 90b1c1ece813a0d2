// Package feed serves filtered, sorted, paginated summary listings
// with a short-TTL memoization layer in front of the store.
package feed

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/intelverse/intelverse-go/internal/store"
)

const (
	defaultPage  = 1
	defaultLimit = 20
)

// Query describes one feed listing request.
type Query struct {
	Sources   []string
	TimeRange string // "1h", "24h", "7d" or "" for no bound
	SortBy    store.SortBy
	Page      int
	Limit     int
}

// normalize fills defaults and canonicalizes the source list so that
// equivalent queries share one cache entry.
func (q Query) normalize() Query {
	if q.Page < 1 {
		q.Page = defaultPage
	}
	if q.Limit < 1 {
		q.Limit = defaultLimit
	}
	if q.SortBy != store.SortByEngagement {
		q.SortBy = store.SortByTime
	}
	switch tr := strings.ToLower(strings.TrimSpace(q.TimeRange)); tr {
	case "1h", "24h", "7d":
		q.TimeRange = tr
	default:
		// Unknown ranges mean "no bound" and share its cache entry.
		q.TimeRange = ""
	}
	sources := make([]string, 0, len(q.Sources))
	for _, s := range q.Sources {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			sources = append(sources, s)
		}
	}
	sort.Strings(sources)
	q.Sources = sources
	return q
}

// key is the canonical cache-key form of a normalized query.
func (q Query) key() string {
	return fmt.Sprintf("sources=%s&range=%s&sort=%s&page=%d&limit=%d",
		strings.Join(q.Sources, ","), q.TimeRange, q.SortBy, q.Page, q.Limit)
}

// since translates the time range into a creation-time lower bound.
func (q Query) since(now time.Time) time.Time {
	switch q.TimeRange {
	case "1h":
		return now.Add(-time.Hour)
	case "24h":
		return now.Add(-24 * time.Hour)
	case "7d":
		return now.Add(-7 * 24 * time.Hour)
	default:
		return time.Time{}
	}
}

// Pagination describes the page position of a listing.
type Pagination struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	TotalItems  int `json:"totalItems"`
}

// Page is one cached feed listing response.
type Page struct {
	Feeds      []store.Summary `json:"feeds"`
	Pagination Pagination      `json:"pagination"`
}

type cacheEntry struct {
	page      Page
	expiresAt time.Time
}

// Service answers feed queries, memoizing results per canonical key.
// Entries are immutable once written and lazily evicted on the next
// lookup past their expiry; new document arrivals do not invalidate
// them (staleness is bounded by the TTL).
type Service struct {
	store store.SummaryStore
	ttl   time.Duration
	now   func() time.Time

	mu    sync.Mutex
	cache map[string]*cacheEntry
	keyMu map[string]*sync.Mutex
}

// NewService creates a feed service with the given cache TTL.
func NewService(s store.SummaryStore, ttl time.Duration) *Service {
	return &Service{
		store: s,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[string]*cacheEntry),
		keyMu: make(map[string]*sync.Mutex),
	}
}

// lockKey serializes recomputation per cache key so one slow key never
// blocks lookups for other keys.
func (s *Service) lockKey(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.keyMu[key]
	if !ok {
		m = &sync.Mutex{}
		s.keyMu[key] = m
	}
	return m
}

func (s *Service) cached(key string) (Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.cache[key]
	if !ok {
		return Page{}, false
	}
	if s.now().After(e.expiresAt) {
		delete(s.cache, key)
		return Page{}, false
	}
	return e.page, true
}

// GetPage returns one page of the feed. A fresh cache entry for the
// same canonical query is returned verbatim without touching the
// store.
func (s *Service) GetPage(ctx context.Context, q Query) (Page, error) {
	q = q.normalize()
	key := q.key()

	if page, ok := s.cached(key); ok {
		return page, nil
	}

	km := s.lockKey(key)
	km.Lock()
	defer km.Unlock()

	// Re-check under the key lock: a concurrent caller may have just
	// filled this entry.
	if page, ok := s.cached(key); ok {
		return page, nil
	}

	items, total, err := s.store.Query(ctx, store.Filter{
		Sources: q.Sources,
		Since:   q.since(s.now()),
		Sort:    q.SortBy,
		Offset:  (q.Page - 1) * q.Limit,
		Limit:   q.Limit,
	})
	if err != nil {
		return Page{}, err
	}

	page := Page{
		Feeds: items,
		Pagination: Pagination{
			CurrentPage: q.Page,
			TotalPages:  (total + q.Limit - 1) / q.Limit,
			TotalItems:  total,
		},
	}
	s.mu.Lock()
	s.cache[key] = &cacheEntry{page: page, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return page, nil
}

// BySource returns every summary from one source, oldest first,
// bypassing the cache.
func (s *Service) BySource(ctx context.Context, source string) ([]store.Summary, error) {
	return s.store.BySource(ctx, strings.ToLower(source))
}
