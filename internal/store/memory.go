package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process SummaryStore. It backs tests and the default
// zero-config deployment.
type Memory struct {
	mu        sync.RWMutex
	summaries []Summary
	byURL     map[string]int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{byURL: make(map[string]int)}
}

func (m *Memory) Insert(_ context.Context, s Summary) error {
	s = normalize(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.byURL[s.URL]; ok {
		m.summaries[i] = s
		return nil
	}
	m.byURL[s.URL] = len(m.summaries)
	m.summaries = append(m.summaries, s)
	return nil
}

func (m *Memory) Search(_ context.Context, keyword string, limit int) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	kw := strings.ToLower(keyword)
	var out []Summary
	for _, s := range m.summaries {
		if limit > 0 && len(out) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(s.Title), kw) || strings.Contains(strings.ToLower(s.Body), kw) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) Query(_ context.Context, f Filter) ([]Summary, int, error) {
	m.mu.RLock()
	matched := make([]Summary, 0, len(m.summaries))
	for _, s := range m.summaries {
		if matchesFilter(s, f) {
			matched = append(matched, s)
		}
	}
	m.mu.RUnlock()

	sortSummaries(matched, f.Sort)
	total := len(matched)
	return pageOf(matched, f.Offset, f.Limit), total, nil
}

func (m *Memory) Recent(_ context.Context, n int) ([]Summary, error) {
	m.mu.RLock()
	all := make([]Summary, len(m.summaries))
	copy(all, m.summaries)
	m.mu.RUnlock()

	sortSummaries(all, SortByTime)
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	return all, nil
}

func (m *Memory) BySource(_ context.Context, source string) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Summary
	for _, s := range m.summaries {
		if strings.EqualFold(s.Source, source) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) All(_ context.Context) ([]Summary, error) {
	m.mu.RLock()
	out := make([]Summary, len(m.summaries))
	copy(out, m.summaries)
	m.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) CountBySource(_ context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int)
	for _, s := range m.summaries {
		counts[s.Source]++
	}
	return counts, nil
}

func (m *Memory) Close() error { return nil }

func matchesFilter(s Summary, f Filter) bool {
	if len(f.Sources) > 0 {
		ok := false
		for _, src := range f.Sources {
			if strings.EqualFold(s.Source, src) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if !f.Since.IsZero() && s.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}

func sortSummaries(ss []Summary, by SortBy) {
	switch by {
	case SortByEngagement:
		sort.SliceStable(ss, func(i, j int) bool { return ss[i].Engagement > ss[j].Engagement })
	default:
		sort.SliceStable(ss, func(i, j int) bool { return ss[i].CreatedAt.After(ss[j].CreatedAt) })
	}
}

func pageOf(ss []Summary, offset, limit int) []Summary {
	if offset >= len(ss) {
		return []Summary{}
	}
	ss = ss[offset:]
	if limit > 0 && len(ss) > limit {
		ss = ss[:limit]
	}
	return ss
}
