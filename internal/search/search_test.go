package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/xmlindex/internal/chunker"
	"github.com/dshills/xmlindex/internal/embedder"
	"github.com/dshills/xmlindex/internal/pipeline"
	"github.com/dshills/xmlindex/internal/registry"
	"github.com/dshills/xmlindex/internal/scan"
	"github.com/dshills/xmlindex/internal/store"
	"github.com/dshills/xmlindex/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIndexedStore(t *testing.T, files map[string]string) (*store.Store, *embedder.Fake) {
	t.Helper()
	dbDir := t.TempDir()
	st, err := store.Open(context.Background(), filepath.Join(dbDir, "embeddings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	fake := embedder.NewFake()
	p := pipeline.New(scan.New(nil), chunker.New(registry.New(), nil, 0), st, fake)

	dir := t.TempDir()
	for name, content := range files {
		full := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}

	_, err = p.ProcessInitial(context.Background(), []string{dir}, nil)
	require.NoError(t, err)
	return st, fake
}

const sampleSequenceA = `<sequence name="ValidateOrder" xmlns="http://ws.apache.org/ns/synapse">
    <log level="full" message="validating order payload"/>
    <filter source="get-property('order_status')" regex="pending"/>
</sequence>
`

const sampleSequenceB = `<sequence name="ShipOrder" xmlns="http://ws.apache.org/ns/synapse">
    <log level="full" message="shipping confirmed order"/>
    <call><endpoint key="ShippingEP"/></call>
</sequence>
`

func TestSearch_ReturnsHierarchyAndScoreForMatchingQuery(t *testing.T) {
	st, fake := newIndexedStore(t, map[string]string{
		"a.xml": sampleSequenceA,
		"b.xml": sampleSequenceB,
	})
	eng := New(st, fake)

	// A near-zero threshold isolates this test from the fake embedder's
	// dense score, which (being a content hash, not a real embedding)
	// carries no semantic signal; the BM25 component alone is enough to
	// rank the literal text match first.
	resp, err := eng.Search(context.Background(), "validating order payload", types.SearchOptions{ScoreThreshold: 0.0001})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)

	var foundValidateOrder bool
	for _, r := range resp.Results {
		if len(r.XMLElementHierarchy) > 0 && r.XMLElementHierarchy[0] == "sequence:ValidateOrder" {
			foundValidateOrder = true
		}
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
	assert.True(t, foundValidateOrder, "expected the literally-matching chunk to survive ranking")
}

func TestSearch_SemanticTypeFilterExcludesOtherTypes(t *testing.T) {
	st, fake := newIndexedStore(t, map[string]string{
		"a.xml": sampleSequenceA,
	})
	eng := New(st, fake)

	resp, err := eng.Search(context.Background(), "validating order payload", types.SearchOptions{SemanticType: "mediator"})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestSearch_EmptyIndexReturnsGuidanceNotError(t *testing.T) {
	dbDir := t.TempDir()
	st, err := store.Open(context.Background(), filepath.Join(dbDir, "embeddings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	eng := New(st, embedder.NewFake())
	resp, err := eng.Search(context.Background(), "anything", types.SearchOptions{})
	require.NoError(t, err)
	require.NotNil(t, resp.Err)
	assert.Equal(t, types.KindEmptyIndex, resp.Err.Kind)
	assert.NotEmpty(t, resp.Err.Guidance)
	assert.Empty(t, resp.Results)
}

func TestSearch_CacheInvalidateClearsCachedResponse(t *testing.T) {
	st, fake := newIndexedStore(t, map[string]string{
		"a.xml": sampleSequenceA,
	})
	eng := New(st, fake)

	first, err := eng.Search(context.Background(), "validating order payload", types.SearchOptions{ScoreThreshold: 0.0001})
	require.NoError(t, err)
	require.NotEmpty(t, first.Results)

	eng.Invalidate()

	second, err := eng.Search(context.Background(), "validating order payload", types.SearchOptions{ScoreThreshold: 0.0001})
	require.NoError(t, err)
	assert.Equal(t, first.Results, second.Results, "invalidation forces recompute, but the underlying data is unchanged so results still match")
}

func TestSearch_CacheReturnsSameResultsForRepeatedQuery(t *testing.T) {
	st, fake := newIndexedStore(t, map[string]string{
		"a.xml": sampleSequenceA,
		"b.xml": sampleSequenceB,
	})
	eng := New(st, fake)

	first, err := eng.Search(context.Background(), "shipping confirmed order", types.SearchOptions{})
	require.NoError(t, err)
	second, err := eng.Search(context.Background(), "shipping confirmed order", types.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, first.Results, second.Results)
}

func TestAdaptiveK_ShortQueryUsesFixedEight(t *testing.T) {
	assert.Equal(t, 8, adaptiveK("order status", 20))
}

func TestAdaptiveK_LongQueryScalesWithRequestCappedAt50(t *testing.T) {
	assert.Equal(t, 50, adaptiveK("a fairly long query with many words in it", 100))
}

func TestAdaptiveK_MidLengthQueryUsesRequestedKRegardlessOfItsValue(t *testing.T) {
	assert.Equal(t, 20, adaptiveK("shipping confirmed order status", 20))
}

func TestLineOverlap_ComputesInclusiveIntersection(t *testing.T) {
	assert.Equal(t, 3, lineOverlap(1, 5, 3, 7))
	assert.Equal(t, 0, lineOverlap(1, 2, 5, 7))
}
