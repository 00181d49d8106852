package memoryadapter

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/genesis-run/genesis/internal/ids"
)

// SummarizeFunc condenses a window of Items into a single string.
// DefaultSummarize concatenates; callers may inject an LLM-backed
// summarizer (llmadapter.Adapter.Call under the hood) without this package
// depending on llmadapter.
type SummarizeFunc func(ctx context.Context, window []Item) (string, error)

// InMemory is the default Adapter implementation: a process-local, mutex
// guarded item store. It satisfies every Adapter method so the Orchestrator
// never special-cases "no memory configured" at the call site, while still
// being optional per spec.md §4.7 (a caller may simply not wire an Adapter
// at all).
type InMemory struct {
	mu        sync.RWMutex
	items     map[string]Item
	summarize SummarizeFunc
}

// NewInMemory constructs an InMemory adapter. If summarize is nil,
// DefaultSummarize is used.
func NewInMemory(summarize SummarizeFunc) *InMemory {
	if summarize == nil {
		summarize = DefaultSummarize
	}
	return &InMemory{items: make(map[string]Item), summarize: summarize}
}

func (m *InMemory) Write(ctx context.Context, item Item) error {
	if item.ID == "" {
		item.ID = ids.New()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
	return nil
}

func (m *InMemory) Retrieve(ctx context.Context, query string, k int, policy RetrievalPolicy) ([]Item, error) {
	m.mu.RLock()
	candidates := make([]Item, 0, len(m.items))
	for _, item := range m.items {
		if !matchesLabels(item.Labels, policy.Labels) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(item.Text), strings.ToLower(query)) {
			continue
		}
		candidates = append(candidates, item)
	}
	m.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if policy.PreferPromoted && candidates[i].Promoted != candidates[j].Promoted {
			return candidates[i].Promoted
		}
		return candidates[i].Timestamp.After(candidates[j].Timestamp)
	})

	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

func (m *InMemory) Summarize(ctx context.Context, window []Item) (string, error) {
	return m.summarize(ctx, window)
}

func (m *InMemory) Promote(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil
	}
	item.Promoted = true
	m.items[id] = item
	return nil
}

func (m *InMemory) Prune(ctx context.Context, criteria PruneCriteria) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int
	for id, item := range m.items {
		if item.Promoted {
			continue
		}
		if !criteria.OlderThan.IsZero() && !item.Timestamp.Before(criteria.OlderThan) {
			continue
		}
		if !matchesLabels(item.Labels, criteria.Labels) {
			continue
		}
		delete(m.items, id)
		removed++
	}
	return removed, nil
}

func matchesLabels(have, want map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

// DefaultSummarize concatenates each item's text, newline-separated,
// without calling out to any model — the memory adapter's absence, or a
// lightweight default implementation, must not change Orchestrator
// correctness.
func DefaultSummarize(ctx context.Context, window []Item) (string, error) {
	texts := make([]string, 0, len(window))
	for _, item := range window {
		if item.Text != "" {
			texts = append(texts, item.Text)
		}
	}
	return strings.Join(texts, "\n"), nil
}
