// Package retriever selects stored summaries relevant to a chat query.
package retriever

import (
	"context"
	"strings"

	"github.com/intelverse/intelverse-go/internal/store"
)

// Retriever matches queries against the summary store by keyword
// containment. No scoring beyond "the summary contains the query".
type Retriever struct {
	store store.SummaryStore
}

// New creates a retriever over the given store.
func New(s store.SummaryStore) *Retriever {
	return &Retriever{store: s}
}

// Retrieve returns at most k summaries whose text contains the query,
// case-insensitively. No match is an empty slice, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]store.Summary, error) {
	query = strings.TrimSpace(query)
	if query == "" || k <= 0 {
		return []store.Summary{}, nil
	}
	return r.store.Search(ctx, query, k)
}
