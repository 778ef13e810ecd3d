package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlens/docindex/internal/cache"
	"github.com/ledgerlens/docindex/internal/embedding"
	"github.com/ledgerlens/docindex/internal/index"
)

// countingEmbedder tracks provider calls around the cache.
type countingEmbedder struct {
	inner embedding.Embedder
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	return c.inner.Embed(ctx, texts)
}

func (c *countingEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.inner.EmbedSingle(ctx, text)
}

func (c *countingEmbedder) Model() string  { return c.inner.Model() }
func (c *countingEmbedder) Dimension() int { return c.inner.Dimension() }

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("provider down")
}
func (failingEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("provider down")
}
func (failingEmbedder) Model() string  { return "failing" }
func (failingEmbedder) Dimension() int { return 8 }

func seededIndex(t *testing.T, embedder embedding.Embedder, docs map[string]string, metadata map[string]map[string]string) *index.Index {
	t.Helper()
	ix := index.New(embedder.Dimension())
	for id, text := range docs {
		v, err := embedder.EmbedSingle(context.Background(), text)
		require.NoError(t, err)
		require.NoError(t, ix.Add(id, v, metadata[id]))
	}
	return ix
}

func TestService_Query_RanksExactTextFirst(t *testing.T) {
	embedder := embedding.NewMockClient(32)
	ix := seededIndex(t, embedder, map[string]string{
		"grocery":  "grocery receipt from the supermarket",
		"hardware": "hardware store invoice for lumber",
	}, nil)

	svc := NewService(embedder, ix, Config{}, nil)

	// The mock embedder is deterministic, so the identical text scores 1.
	results, err := svc.Query(context.Background(), "grocery receipt from the supermarket", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "grocery", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
}

func TestService_Query_CachesEmbedding(t *testing.T) {
	counting := &countingEmbedder{inner: embedding.NewMockClient(16)}
	ix := seededIndex(t, counting, map[string]string{"doc": "some text"}, nil)
	seedCalls := counting.calls

	svc := NewService(counting, ix, Config{Cache: cache.NewMemoryClient(0)}, nil)

	ctx := context.Background()
	_, err := svc.Query(ctx, "repeated query", 1)
	require.NoError(t, err)
	_, err = svc.Query(ctx, "repeated query", 1)
	require.NoError(t, err)

	// Two searches, one provider call: the second hit the cache.
	assert.Equal(t, seedCalls+1, counting.calls)
}

func TestService_Query_CorruptCacheEntryRecomputed(t *testing.T) {
	counting := &countingEmbedder{inner: embedding.NewMockClient(16)}
	ix := seededIndex(t, counting, map[string]string{"doc": "some text"}, nil)

	memCache := cache.NewMemoryClient(0)
	svc := NewService(counting, ix, Config{Cache: memCache}, nil)

	ctx := context.Background()
	// Poison the exact key the service would use.
	require.NoError(t, memCache.Set(ctx, svc.cacheKey("my query"), []byte("garbage"), 0))

	results, err := svc.Query(ctx, "my query", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestService_QueryWithFilter(t *testing.T) {
	embedder := embedding.NewMockClient(16)
	ix := seededIndex(t, embedder,
		map[string]string{"usd": "receipt one", "eur": "receipt two"},
		map[string]map[string]string{
			"usd": {"currency": "USD"},
			"eur": {"currency": "EUR"},
		})

	svc := NewService(embedder, ix, Config{}, nil)

	results, err := svc.QueryWithFilter(context.Background(), "receipt", func(id string, md map[string]string) bool {
		return md["currency"] == "EUR"
	}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "eur", results[0].ID)
}

func TestService_Query_EmbedderFailure(t *testing.T) {
	ix := index.New(8)
	svc := NewService(failingEmbedder{}, ix, Config{}, nil)

	_, err := svc.Query(context.Background(), "anything", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed query")
}

func TestService_CacheKey_DependsOnModelAndQuery(t *testing.T) {
	svcA := NewService(embedding.NewMockClient(8), index.New(8), Config{}, nil)
	svcB := NewService(failingEmbedder{}, index.New(8), Config{}, nil)

	// Same query, different models: distinct keys.
	assert.NotEqual(t, svcA.cacheKey("q"), svcB.cacheKey("q"))
	// Same model, different queries: distinct keys.
	assert.NotEqual(t, svcA.cacheKey("q1"), svcA.cacheKey("q2"))
	// Deterministic for identical input.
	assert.Equal(t, svcA.cacheKey("q"), svcA.cacheKey("q"))
}
