package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func seedTime(offset int) time.Time {
	return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(offset) * time.Minute)
}

func seed(t *testing.T, s SummaryStore) {
	t.Helper()
	ctx := context.Background()
	fixtures := []Summary{
		{ID: "1", Source: "hackernews", URL: "https://example.com/go", Title: "Go generics deep dive", Body: "A tour of generics in Go", Engagement: 5, CreatedAt: seedTime(0)},
		{ID: "2", Source: "reddit", URL: "https://example.com/rust", Title: "Rust async update", Body: "Async runtimes compared", Engagement: 50, CreatedAt: seedTime(1)},
		{ID: "3", Source: "hackernews", URL: "https://example.com/db", Title: "Database internals", Body: "How LSM trees work", Engagement: 20, CreatedAt: seedTime(2)},
	}
	for _, f := range fixtures {
		require.NoError(t, s.Insert(ctx, f))
	}
}

// backends under test share one behavioral suite; the core must not be
// able to tell them apart.
func backends(t *testing.T) map[string]SummaryStore {
	t.Helper()
	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "summaries.db"))
	require.NoError(t, err)
	peb, err := OpenPebble(filepath.Join(t.TempDir(), "pebble"))
	require.NoError(t, err)
	return map[string]SummaryStore{
		"memory": NewMemory(),
		"sqlite": sqlite,
		"pebble": peb,
	}
}

func TestStoreSearchCaseInsensitive(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			seed(t, s)
			ctx := context.Background()

			got, err := s.Search(ctx, "GENERICS", 10)
			require.NoError(t, err)
			require.Len(t, got, 1)
			require.Equal(t, "https://example.com/go", got[0].URL)

			got, err = s.Search(ctx, "no such topic", 10)
			require.NoError(t, err)
			require.Empty(t, got)
		})
	}
}

func TestStoreSearchLimit(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			seed(t, s)
			got, err := s.Search(context.Background(), "e", 2)
			require.NoError(t, err)
			require.Len(t, got, 2)
		})
	}
}

func TestStoreURLUnique(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			seed(t, s)
			ctx := context.Background()
			require.NoError(t, s.Insert(ctx, Summary{
				ID: "9", Source: "reddit", URL: "https://example.com/go",
				Title: "Go generics revisited", Body: "Updated", CreatedAt: seedTime(3),
			}))

			all, err := s.All(ctx)
			require.NoError(t, err)
			require.Len(t, all, 3)

			got, err := s.Search(ctx, "revisited", 10)
			require.NoError(t, err)
			require.Len(t, got, 1)
			// The whole record is replaced, not just its text fields.
			require.Equal(t, "9", got[0].ID)
			require.Equal(t, "reddit", got[0].Source)
			require.True(t, got[0].CreatedAt.Equal(seedTime(3)), "replacement keeps its own created_at")
		})
	}
}

func TestPebbleReopenPreservesRecords(t *testing.T) {
	dir := t.TempDir()
	p, err := OpenPebble(dir)
	require.NoError(t, err)
	ctx := context.Background()
	// Two records sharing one creation instant, distinguished only by
	// the key tie-breaker.
	for _, u := range []string{"u1", "u2"} {
		require.NoError(t, p.Insert(ctx, Summary{
			ID: u, Source: "hn", URL: u, Title: u, CreatedAt: seedTime(0),
		}))
	}
	require.NoError(t, p.Close())

	p, err = OpenPebble(dir)
	require.NoError(t, err)
	defer p.Close()
	require.NoError(t, p.Insert(ctx, Summary{
		ID: "u3", Source: "hn", URL: "u3", Title: "u3", CreatedAt: seedTime(0),
	}))

	all, err := p.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3, "post-reopen insert must not reuse a key")

	// The url index still points at the right record for each of them.
	require.NoError(t, p.Insert(ctx, Summary{
		ID: "u1", Source: "hn", URL: "u1", Title: "u1 updated", CreatedAt: seedTime(0),
	}))
	all, err = p.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	got, err := p.Search(ctx, "updated", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "u1", got[0].URL)
}

func TestStoreQueryFilterSortPage(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			seed(t, s)
			ctx := context.Background()

			items, total, err := s.Query(ctx, Filter{Sources: []string{"hackernews"}, Sort: SortByTime})
			require.NoError(t, err)
			require.Equal(t, 2, total)
			require.Len(t, items, 2)
			require.Equal(t, "3", items[0].ID, "newest first")

			items, total, err = s.Query(ctx, Filter{Sort: SortByEngagement, Limit: 2})
			require.NoError(t, err)
			require.Equal(t, 3, total)
			require.Equal(t, "2", items[0].ID)
			require.Equal(t, "3", items[1].ID)

			items, total, err = s.Query(ctx, Filter{Sort: SortByTime, Offset: 2, Limit: 2})
			require.NoError(t, err)
			require.Equal(t, 3, total)
			require.Len(t, items, 1)
			require.Equal(t, "1", items[0].ID)

			items, _, err = s.Query(ctx, Filter{Since: seedTime(1)})
			require.NoError(t, err)
			require.Len(t, items, 2)
		})
	}
}

func TestStoreRecent(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			seed(t, s)
			got, err := s.Recent(context.Background(), 2)
			require.NoError(t, err)
			require.Len(t, got, 2)
			require.Equal(t, "3", got[0].ID)
			require.Equal(t, "2", got[1].ID)
		})
	}
}

func TestStoreAssignsMissingID(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			ctx := context.Background()
			require.NoError(t, s.Insert(ctx, Summary{
				Source: "reddit", URL: "https://example.com/new",
				Title: "Untagged", Body: "No id provided", CreatedAt: seedTime(0),
			}))

			all, err := s.All(ctx)
			require.NoError(t, err)
			require.Len(t, all, 1)
			require.NotEmpty(t, all[0].ID)
		})
	}
}

func TestStoreBySourceAndStats(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()
			seed(t, s)
			ctx := context.Background()

			got, err := s.BySource(ctx, "HackerNews")
			require.NoError(t, err)
			require.Len(t, got, 2)
			require.Equal(t, "1", got[0].ID, "oldest first")

			counts, err := s.CountBySource(ctx)
			require.NoError(t, err)
			require.Equal(t, map[string]int{"hackernews": 2, "reddit": 1}, counts)
		})
	}
}
