package feed

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/intelverse/intelverse-go/internal/store"
)

// countingStore wraps the memory store and counts Query calls so tests
// can assert whether the cache or the store answered.
type countingStore struct {
	*store.Memory
	queries atomic.Int64
}

func (c *countingStore) Query(ctx context.Context, f store.Filter) ([]store.Summary, int, error) {
	c.queries.Add(1)
	return c.Memory.Query(ctx, f)
}

func seeded(t *testing.T) *countingStore {
	t.Helper()
	cs := &countingStore{Memory: store.NewMemory()}
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, s := range []store.Summary{
		{ID: "1", Source: "hackernews", URL: "u1", Title: "a", Engagement: 1},
		{ID: "2", Source: "reddit", URL: "u2", Title: "b", Engagement: 9},
		{ID: "3", Source: "hackernews", URL: "u3", Title: "c", Engagement: 5},
	} {
		s.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, cs.Insert(ctx, s))
	}
	return cs
}

func TestGetPageFiltersSortsPaginates(t *testing.T) {
	cs := seeded(t)
	svc := NewService(cs, time.Minute)

	page, err := svc.GetPage(context.Background(), Query{Sources: []string{"HackerNews"}, SortBy: store.SortByTime})
	require.NoError(t, err)
	require.Len(t, page.Feeds, 2)
	require.Equal(t, "3", page.Feeds[0].ID, "newest first")
	require.Equal(t, Pagination{CurrentPage: 1, TotalPages: 1, TotalItems: 2}, page.Pagination)

	page, err = svc.GetPage(context.Background(), Query{SortBy: store.SortByEngagement, Limit: 2})
	require.NoError(t, err)
	require.Equal(t, "2", page.Feeds[0].ID)
	require.Equal(t, Pagination{CurrentPage: 1, TotalPages: 2, TotalItems: 3}, page.Pagination)

	page, err = svc.GetPage(context.Background(), Query{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Feeds, 1)
	require.Equal(t, 2, page.Pagination.CurrentPage)
}

func TestGetPageCacheHitWithinTTL(t *testing.T) {
	cs := seeded(t)
	svc := NewService(cs, time.Minute)
	ctx := context.Background()

	first, err := svc.GetPage(ctx, Query{Sources: []string{"hackernews"}})
	require.NoError(t, err)
	require.EqualValues(t, 1, cs.queries.Load())

	second, err := svc.GetPage(ctx, Query{Sources: []string{"hackernews"}})
	require.NoError(t, err)
	require.EqualValues(t, 1, cs.queries.Load(), "second lookup served from cache")
	require.Equal(t, first, second)
}

func TestGetPageCanonicalFormSharesEntry(t *testing.T) {
	cs := seeded(t)
	svc := NewService(cs, time.Minute)
	ctx := context.Background()

	_, err := svc.GetPage(ctx, Query{Sources: []string{"Reddit", "hackernews"}})
	require.NoError(t, err)
	// Different order, case and explicit defaults: same canonical form.
	_, err = svc.GetPage(ctx, Query{Sources: []string{"HACKERNEWS", " reddit "}, SortBy: store.SortByTime, Page: 1, Limit: 20})
	require.NoError(t, err)
	require.EqualValues(t, 1, cs.queries.Load())
}

func TestGetPageExpiryTriggersRequery(t *testing.T) {
	cs := seeded(t)
	svc := NewService(cs, time.Minute)
	ctx := context.Background()

	now := time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, err := svc.GetPage(ctx, Query{})
	require.NoError(t, err)
	require.EqualValues(t, 1, cs.queries.Load())

	now = now.Add(59 * time.Second)
	_, err = svc.GetPage(ctx, Query{})
	require.NoError(t, err)
	require.EqualValues(t, 1, cs.queries.Load(), "entry still fresh")

	now = now.Add(2 * time.Second)
	_, err = svc.GetPage(ctx, Query{})
	require.NoError(t, err)
	require.EqualValues(t, 2, cs.queries.Load(), "expired entry recomputed")
}

func TestGetPageTimeRangeBound(t *testing.T) {
	cs := seeded(t)
	svc := NewService(cs, time.Minute)
	// Pin "now" so the 1h window starts between the two newest
	// fixtures.
	svc.now = func() time.Time { return time.Date(2026, 8, 1, 13, 1, 30, 0, time.UTC) }

	page, err := svc.GetPage(context.Background(), Query{TimeRange: "1h"})
	require.NoError(t, err)
	require.Len(t, page.Feeds, 1)
	require.Equal(t, "3", page.Feeds[0].ID)
}

func TestTimeRangeCanonicalized(t *testing.T) {
	cs := seeded(t)
	svc := NewService(cs, time.Minute)
	svc.now = func() time.Time { return time.Date(2026, 8, 1, 13, 1, 30, 0, time.UTC) }
	ctx := context.Background()

	page, err := svc.GetPage(ctx, Query{TimeRange: "1h"})
	require.NoError(t, err)
	require.Len(t, page.Feeds, 1)

	// Case variants fold onto the same bound and cache entry.
	page, err = svc.GetPage(ctx, Query{TimeRange: " 1H "})
	require.NoError(t, err)
	require.Len(t, page.Feeds, 1)
	require.EqualValues(t, 1, cs.queries.Load())

	// Unrecognized ranges mean no bound and share its entry.
	page, err = svc.GetPage(ctx, Query{TimeRange: "2h"})
	require.NoError(t, err)
	require.Len(t, page.Feeds, 3)
	_, err = svc.GetPage(ctx, Query{})
	require.NoError(t, err)
	require.EqualValues(t, 2, cs.queries.Load())
}

func TestBySourceBypassesCache(t *testing.T) {
	cs := seeded(t)
	svc := NewService(cs, time.Minute)

	items, err := svc.BySource(context.Background(), "HackerNews")
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "1", items[0].ID, "oldest first")
	require.EqualValues(t, 0, cs.queries.Load())
}
