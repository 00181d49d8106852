package memoryadapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteThenRetrieveByQuery(t *testing.T) {
	adapter := NewInMemory(nil)
	ctx := context.Background()

	require.NoError(t, adapter.Write(ctx, Item{Text: "the invoice total is 42 dollars", Timestamp: time.Now()}))
	require.NoError(t, adapter.Write(ctx, Item{Text: "weather looks sunny today", Timestamp: time.Now()}))

	results, err := adapter.Retrieve(ctx, "invoice", 10, RetrievalPolicy{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Contains(t, results[0].Text, "invoice")
}

func TestRetrieveFiltersByLabelsAndCapsK(t *testing.T) {
	adapter := NewInMemory(nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, adapter.Write(ctx, Item{
			Text:      "entry",
			Labels:    map[string]string{"topic": "billing"},
			Timestamp: time.Now(),
		}))
	}
	require.NoError(t, adapter.Write(ctx, Item{
		Text:      "entry",
		Labels:    map[string]string{"topic": "support"},
		Timestamp: time.Now(),
	}))

	results, err := adapter.Retrieve(ctx, "", 3, RetrievalPolicy{Labels: map[string]string{"topic": "billing"}})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, item := range results {
		require.Equal(t, "billing", item.Labels["topic"])
	}
}

func TestPromoteSurvivesPrune(t *testing.T) {
	adapter := NewInMemory(nil)
	ctx := context.Background()

	require.NoError(t, adapter.Write(ctx, Item{ID: "keep", Text: "important fact", Timestamp: time.Now().Add(-time.Hour)}))
	require.NoError(t, adapter.Write(ctx, Item{ID: "drop", Text: "stale note", Timestamp: time.Now().Add(-time.Hour)}))
	require.NoError(t, adapter.Promote(ctx, "keep"))

	removed, err := adapter.Prune(ctx, PruneCriteria{OlderThan: time.Now()})
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	results, err := adapter.Retrieve(ctx, "", 10, RetrievalPolicy{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "keep", results[0].ID)
	require.True(t, results[0].Promoted)
}

func TestRetrievePrefersPromotedWhenRequested(t *testing.T) {
	adapter := NewInMemory(nil)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, adapter.Write(ctx, Item{ID: "older-promoted", Text: "x", Timestamp: now.Add(-time.Hour), Promoted: true}))
	require.NoError(t, adapter.Write(ctx, Item{ID: "newer-plain", Text: "x", Timestamp: now}))
	require.NoError(t, adapter.Promote(ctx, "older-promoted"))

	results, err := adapter.Retrieve(ctx, "", 10, RetrievalPolicy{PreferPromoted: true})
	require.NoError(t, err)
	require.Equal(t, "older-promoted", results[0].ID)
}

func TestDefaultSummarizeConcatenatesText(t *testing.T) {
	out, err := DefaultSummarize(context.Background(), []Item{
		{Text: "first"},
		{Text: ""},
		{Text: "second"},
	})
	require.NoError(t, err)
	require.Equal(t, "first\nsecond", out)
}

func TestAbsentMemoryAdapterIsNilSafeAtCallSite(t *testing.T) {
	var adapter Adapter
	require.Nil(t, adapter)
}
