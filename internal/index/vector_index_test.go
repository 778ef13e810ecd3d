package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_Add_And_ExactMatchScore(t *testing.T) {
	ix := New(3)

	require.NoError(t, ix.Add("a", []float32{1, 2, 3}, nil))

	// Cosine similarity of a vector with itself is 1.
	results, err := ix.Search([]float32{1, 2, 3}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
}

func TestIndex_Add_DimensionMismatchLeavesIndexUnchanged(t *testing.T) {
	ix := New(3)
	require.NoError(t, ix.Add("a", []float32{1, 0, 0}, nil))

	err := ix.Add("b", []float32{1, 0}, nil)
	require.Error(t, err)

	stats := ix.Stats()
	assert.Equal(t, 1, stats.VectorCount)
}

func TestIndex_Add_CopiesVector(t *testing.T) {
	ix := New(2)
	v := []float32{1, 0}
	require.NoError(t, ix.Add("a", v, nil))

	// Mutating the caller's slice must not corrupt the stored vector.
	v[0] = 0
	v[1] = 1

	results, err := ix.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
}

func TestIndex_Add_OverwriteKeepsInsertionOrder(t *testing.T) {
	ix := New(2)
	require.NoError(t, ix.Add("first", []float32{1, 0}, nil))
	require.NoError(t, ix.Add("second", []float32{1, 0}, nil))

	// Overwriting "first" must not demote it behind "second" on ties.
	require.NoError(t, ix.Add("first", []float32{1, 0}, nil))

	results, err := ix.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].ID)
	assert.Equal(t, "second", results[1].ID)
}

func TestIndex_Search_RankingAndTruncation(t *testing.T) {
	ix := New(2)
	require.NoError(t, ix.Add("east", []float32{1, 0}, nil))
	require.NoError(t, ix.Add("north", []float32{0, 1}, nil))
	require.NoError(t, ix.Add("northeast", []float32{1, 1}, nil))

	// Query along x: east scores 1, northeast cos(45°) ≈ 0.7071, north 0.
	results, err := ix.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "east", results[0].ID)
	assert.Equal(t, "northeast", results[1].ID)
	assert.InDelta(t, 0.7071, results[1].Score, 0.001)
}

func TestIndex_Search_QueryDimensionMismatch(t *testing.T) {
	ix := New(3)
	require.NoError(t, ix.Add("a", []float32{1, 0, 0}, nil))

	_, err := ix.Search([]float32{1, 0}, 1)
	assert.Error(t, err)
}

func TestIndex_Search_EmptyIndex(t *testing.T) {
	ix := New(2)

	results, err := ix.Search([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndex_Search_KClampedToSize(t *testing.T) {
	ix := New(2)
	require.NoError(t, ix.Add("a", []float32{1, 0}, nil))

	results, err := ix.Search([]float32{1, 0}, 100)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestIndex_Search_ZeroVectorScoresZero(t *testing.T) {
	ix := New(2)
	require.NoError(t, ix.Add("zero", []float32{0, 0}, nil))

	results, err := ix.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].Score)
}

func TestIndex_SearchWithFilter_FiltersBeforeTruncation(t *testing.T) {
	ix := New(2)
	require.NoError(t, ix.Add("usd1", []float32{1, 0}, map[string]string{"currency": "USD"}))
	require.NoError(t, ix.Add("eur1", []float32{1, 0.01}, map[string]string{"currency": "EUR"}))
	require.NoError(t, ix.Add("usd2", []float32{0, 1}, map[string]string{"currency": "USD"}))

	// k=2 with a USD filter must return both USD entries even though the
	// EUR entry outranks usd2 globally.
	results, err := ix.SearchWithFilter([]float32{1, 0}, func(id string, md map[string]string) bool {
		return md["currency"] == "USD"
	}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "usd1", results[0].ID)
	assert.Equal(t, "usd2", results[1].ID)
}

func TestIndex_SearchWithFilter_RejectAll(t *testing.T) {
	ix := New(2)
	require.NoError(t, ix.Add("a", []float32{1, 0}, nil))

	results, err := ix.SearchWithFilter([]float32{1, 0}, func(string, map[string]string) bool {
		return false
	}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndex_Remove(t *testing.T) {
	ix := New(2)
	require.NoError(t, ix.Add("a", []float32{1, 0}, nil))

	before := ix.Stats().LastUpdated
	ix.Remove("a")
	assert.Equal(t, 0, ix.Stats().VectorCount)

	// Removing an absent id is a no-op and must not bump LastUpdated.
	after := ix.Stats().LastUpdated
	ix.Remove("a")
	assert.Equal(t, after, ix.Stats().LastUpdated)
	assert.False(t, after.Before(before))
}

func TestIndex_Stats_SizeLaw(t *testing.T) {
	ix := New(4)
	require.NoError(t, ix.Add("a", []float32{1, 0, 0, 0}, nil))
	require.NoError(t, ix.Add("b", []float32{0, 1, 0, 0}, nil))

	stats := ix.Stats()
	assert.Equal(t, 2, stats.VectorCount)
	assert.Equal(t, 4, stats.Dimensions)
	// 2 vectors x 4 dims x 4 bytes = 32
	assert.Equal(t, int64(32), stats.IndexSizeBytes)
}

func TestIndex_SaveLoad_RoundTrip(t *testing.T) {
	ix := New(3)
	require.NoError(t, ix.Add("a", []float32{0.1, 0.2, 0.3}, map[string]string{"vendor": "ACME"}))
	require.NoError(t, ix.Add("b", []float32{0.4, 0.5, 0.6}, nil))

	blob, err := ix.Save()
	require.NoError(t, err)

	restored := New(3)
	require.True(t, restored.Load(blob))

	assert.Equal(t, 2, restored.Stats().VectorCount)

	// Stored values must survive exactly: an identical query scores 1.
	results, err := restored.Search([]float32{0.1, 0.2, 0.3}, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "ACME", results[0].Metadata["vendor"])
}

func TestIndex_SaveLoad_PreservesTieBreaking(t *testing.T) {
	ix := New(2)
	require.NoError(t, ix.Add("first", []float32{1, 0}, nil))
	require.NoError(t, ix.Add("second", []float32{1, 0}, nil))

	blob, err := ix.Save()
	require.NoError(t, err)

	restored := New(2)
	require.True(t, restored.Load(blob))

	results, err := restored.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, "first", results[0].ID)
	assert.Equal(t, "second", results[1].ID)
}

func TestIndex_Load_MalformedLeavesIndexUnchanged(t *testing.T) {
	ix := New(2)
	require.NoError(t, ix.Add("keep", []float32{1, 0}, nil))

	assert.False(t, ix.Load([]byte("not msgpack at all")))
	assert.Equal(t, 1, ix.Stats().VectorCount)

	results, err := ix.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "keep", results[0].ID)
}

func TestIndex_Load_AdoptsPersistedDimensions(t *testing.T) {
	ix := New(3)
	require.NoError(t, ix.Add("a", []float32{1, 0, 0}, nil))
	blob, err := ix.Save()
	require.NoError(t, err)

	// A fresh index configured differently adopts the blob's geometry.
	restored := New(768)
	require.True(t, restored.Load(blob))
	assert.Equal(t, 3, restored.Dimensions())
}
