package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// SQLite is the relational SummaryStore backend.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the summaries database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_busy_timeout=10000")
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", ErrStoreUnavailable, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS summaries (
		id         TEXT PRIMARY KEY,
		source     TEXT NOT NULL,
		url        TEXT NOT NULL UNIQUE,
		title      TEXT NOT NULL,
		summary    TEXT NOT NULL,
		engagement INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_summaries_source ON summaries(source);
	CREATE INDEX IF NOT EXISTS idx_summaries_created_at ON summaries(created_at DESC);`); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: init schema: %v", ErrStoreUnavailable, err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Insert(ctx context.Context, sum Summary) error {
	sum = normalize(sum)
	_, err := s.db.ExecContext(ctx, `INSERT INTO summaries (id, source, url, title, summary, engagement, created_at)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(url) DO UPDATE SET
			id = excluded.id,
			source = excluded.source,
			title = excluded.title,
			summary = excluded.summary,
			engagement = excluded.engagement,
			created_at = excluded.created_at`,
		sum.ID, sum.Source, sum.URL, sum.Title, sum.Body, sum.Engagement, sum.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("%w: insert: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SQLite) Search(ctx context.Context, keyword string, limit int) ([]Summary, error) {
	pattern := "%" + strings.ToLower(keyword) + "%"
	rows, err := s.db.QueryContext(ctx, `SELECT id, source, url, title, summary, engagement, created_at
		FROM summaries
		WHERE lower(title) LIKE ? OR lower(summary) LIKE ?
		LIMIT ?`, pattern, pattern, limitOrMax(limit))
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrStoreUnavailable, err)
	}
	return scanSummaries(rows)
}

func (s *SQLite) Query(ctx context.Context, f Filter) ([]Summary, int, error) {
	where, args := buildWhere(f)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM summaries`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%w: count: %v", ErrStoreUnavailable, err)
	}

	order := " ORDER BY created_at DESC"
	if f.Sort == SortByEngagement {
		order = " ORDER BY engagement DESC"
	}
	q := `SELECT id, source, url, title, summary, engagement, created_at FROM summaries` + where + order + ` LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, q, append(args, limitOrMax(f.Limit), f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: query: %v", ErrStoreUnavailable, err)
	}
	out, err := scanSummaries(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *SQLite) Recent(ctx context.Context, n int) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, source, url, title, summary, engagement, created_at
		FROM summaries ORDER BY created_at DESC LIMIT ?`, limitOrMax(n))
	if err != nil {
		return nil, fmt.Errorf("%w: recent: %v", ErrStoreUnavailable, err)
	}
	return scanSummaries(rows)
}

func (s *SQLite) BySource(ctx context.Context, source string) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, source, url, title, summary, engagement, created_at
		FROM summaries WHERE source = ? ORDER BY created_at ASC`, strings.ToLower(source))
	if err != nil {
		return nil, fmt.Errorf("%w: by source: %v", ErrStoreUnavailable, err)
	}
	return scanSummaries(rows)
}

func (s *SQLite) All(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, source, url, title, summary, engagement, created_at
		FROM summaries ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: all: %v", ErrStoreUnavailable, err)
	}
	return scanSummaries(rows)
}

func (s *SQLite) CountBySource(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source, COUNT(*) FROM summaries GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("%w: stats: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var src string
		var n int
		if err := rows.Scan(&src, &n); err != nil {
			return nil, fmt.Errorf("%w: scan stats: %v", ErrStoreUnavailable, err)
		}
		counts[src] = n
	}
	return counts, rows.Err()
}

func (s *SQLite) Close() error { return s.db.Close() }

func buildWhere(f Filter) (string, []any) {
	var conds []string
	var args []any
	if len(f.Sources) > 0 {
		ph := make([]string, len(f.Sources))
		for i, src := range f.Sources {
			ph[i] = "?"
			args = append(args, strings.ToLower(src))
		}
		conds = append(conds, "source IN ("+strings.Join(ph, ",")+")")
	}
	if !f.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.Since.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanSummaries(rows *sql.Rows) ([]Summary, error) {
	defer rows.Close()
	out := []Summary{}
	for rows.Next() {
		var s Summary
		var created time.Time
		if err := rows.Scan(&s.ID, &s.Source, &s.URL, &s.Title, &s.Body, &s.Engagement, &created); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrStoreUnavailable, err)
		}
		s.CreatedAt = created
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", ErrStoreUnavailable, err)
	}
	return out, nil
}

func limitOrMax(n int) int {
	if n <= 0 {
		return -1 // sqlite: LIMIT -1 means no limit
	}
	return n
}
