package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
)

// Pebble is the document-oriented SummaryStore backend. Summaries are
// stored as JSON under keys with a sortable creation-time prefix, so a
// forward scan yields chronological order and a reverse scan yields
// newest-first without a separate index.
type Pebble struct {
	db *pebble.DB
	// seq breaks ties between identical creation nanos. Restored from
	// the highest stored suffix on open, so keys written before a
	// restart are never reused.
	seq uint64
}

const (
	summaryPrefix = "summary:"
	urlPrefix     = "url:"
)

// OpenPebble opens (or creates) a pebble database at path.
func OpenPebble(path string) (*Pebble, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("%w: open pebble: %v", ErrStoreUnavailable, err)
	}
	p := &Pebble{db: db}
	if err := p.restoreSeq(); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

// restoreSeq resumes the key tie-breaker past every suffix already on
// disk.
func (p *Pebble) restoreSeq() error {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(summaryPrefix),
		UpperBound: []byte(summaryPrefix + "~"),
	})
	if err != nil {
		return fmt.Errorf("%w: iterator: %v", ErrStoreUnavailable, err)
	}
	defer iter.Close()

	var max uint64
	for valid := iter.First(); valid; valid = iter.Next() {
		key := iter.Key()
		if i := bytes.LastIndexByte(key, '-'); i >= 0 {
			if n, err := strconv.ParseUint(string(key[i+1:]), 10, 64); err == nil && n > max {
				max = n
			}
		}
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("%w: scan keys: %v", ErrStoreUnavailable, err)
	}
	p.seq = max
	return nil
}

func (p *Pebble) summaryKey(s Summary) []byte {
	n := atomic.AddUint64(&p.seq, 1)
	return []byte(fmt.Sprintf("%s%020d-%06d", summaryPrefix, s.CreatedAt.UTC().UnixNano(), n))
}

func (p *Pebble) Insert(_ context.Context, s Summary) error {
	s = normalize(s)
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("%w: marshal summary: %v", ErrStoreUnavailable, err)
	}

	urlKey := []byte(urlPrefix + s.URL)
	batch := p.db.NewBatch()
	defer batch.Close()

	// URL uniqueness: a re-inserted URL replaces the prior record.
	if prior, closer, err := p.db.Get(urlKey); err == nil {
		key := append([]byte(nil), prior...)
		closer.Close()
		if err := batch.Delete(key, nil); err != nil {
			return fmt.Errorf("%w: delete prior: %v", ErrStoreUnavailable, err)
		}
	} else if err != pebble.ErrNotFound {
		return fmt.Errorf("%w: url lookup: %v", ErrStoreUnavailable, err)
	}

	key := p.summaryKey(s)
	if err := batch.Set(key, data, nil); err != nil {
		return fmt.Errorf("%w: set summary: %v", ErrStoreUnavailable, err)
	}
	if err := batch.Set(urlKey, key, nil); err != nil {
		return fmt.Errorf("%w: set url index: %v", ErrStoreUnavailable, err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// scan walks summaries in key (chronological) order, stopping early
// when visit returns false.
func (p *Pebble) scan(reverse bool, visit func(Summary) bool) error {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(summaryPrefix),
		UpperBound: []byte(summaryPrefix + "~"),
	})
	if err != nil {
		return fmt.Errorf("%w: iterator: %v", ErrStoreUnavailable, err)
	}
	defer iter.Close()

	advance := iter.Next
	valid := iter.First()
	if reverse {
		advance = iter.Prev
		valid = iter.Last()
	}
	for ; valid; valid = advance() {
		var s Summary
		if err := json.Unmarshal(iter.Value(), &s); err != nil {
			return fmt.Errorf("%w: decode summary: %v", ErrStoreUnavailable, err)
		}
		if !visit(s) {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("%w: scan: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (p *Pebble) Search(_ context.Context, keyword string, limit int) ([]Summary, error) {
	kw := strings.ToLower(keyword)
	out := []Summary{}
	err := p.scan(false, func(s Summary) bool {
		if strings.Contains(strings.ToLower(s.Title), kw) || strings.Contains(strings.ToLower(s.Body), kw) {
			out = append(out, s)
		}
		return limit <= 0 || len(out) < limit
	})
	return out, err
}

func (p *Pebble) Query(_ context.Context, f Filter) ([]Summary, int, error) {
	matched := []Summary{}
	err := p.scan(false, func(s Summary) bool {
		if matchesFilter(s, f) {
			matched = append(matched, s)
		}
		return true
	})
	if err != nil {
		return nil, 0, err
	}
	sortSummaries(matched, f.Sort)
	return pageOf(matched, f.Offset, f.Limit), len(matched), nil
}

func (p *Pebble) Recent(_ context.Context, n int) ([]Summary, error) {
	out := []Summary{}
	err := p.scan(true, func(s Summary) bool {
		out = append(out, s)
		return n <= 0 || len(out) < n
	})
	return out, err
}

func (p *Pebble) BySource(_ context.Context, source string) ([]Summary, error) {
	src := strings.ToLower(source)
	out := []Summary{}
	err := p.scan(false, func(s Summary) bool {
		if s.Source == src {
			out = append(out, s)
		}
		return true
	})
	return out, err
}

func (p *Pebble) All(_ context.Context) ([]Summary, error) {
	out := []Summary{}
	err := p.scan(false, func(s Summary) bool {
		out = append(out, s)
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (p *Pebble) CountBySource(_ context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	err := p.scan(false, func(s Summary) bool {
		counts[s.Source]++
		return true
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (p *Pebble) Close() error { return p.db.Close() }
