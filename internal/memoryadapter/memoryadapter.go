// Package memoryadapter implements the External Bindings Memory adapter of
// spec.md §4.7: write/retrieve/summarize/promote/prune. Absence of a
// configured Adapter must not change correctness — the Orchestrator treats
// a nil Adapter as "no memory available" and proceeds without it.
package memoryadapter

import (
	"context"
	"time"
)

// Item is one unit of memory content, grounded on the teacher's
// agents/runtime/memory.Event shape, generalized from run history to
// arbitrary retrievable content (conversation turns, tool results,
// promoted facts).
type Item struct {
	ID        string
	Text      string
	Labels    map[string]string
	Timestamp time.Time
	// Promoted marks an item that survived a Promote call and should be
	// preferred by Retrieve's ranking.
	Promoted bool
}

// RetrievalPolicy shapes how Retrieve ranks and filters candidates.
type RetrievalPolicy struct {
	// Labels restricts results to items carrying all of the given label
	// key/value pairs.
	Labels map[string]string
	// PreferPromoted ranks every Promoted item ahead of every non-promoted
	// one; recency orders items within each group.
	PreferPromoted bool
}

// PruneCriteria selects which items Prune removes.
type PruneCriteria struct {
	// OlderThan removes items with Timestamp before this instant. Promoted
	// items are never pruned, whatever the criteria.
	OlderThan time.Time
	// Labels, if non-empty, restricts pruning to items carrying all of the
	// given label key/value pairs.
	Labels map[string]string
}

// Adapter is the External Bindings Memory contract of spec.md §4.7.
type Adapter interface {
	Write(ctx context.Context, item Item) error
	Retrieve(ctx context.Context, query string, k int, policy RetrievalPolicy) ([]Item, error)
	Summarize(ctx context.Context, window []Item) (string, error)
	Promote(ctx context.Context, id string) error
	Prune(ctx context.Context, criteria PruneCriteria) (int, error)
}
