// Package index provides an in-memory nearest-neighbor store over document
// embeddings with metadata filtering and durable (de)serialization.
package index

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ledgerlens/docindex/internal/domain"
)

// Result is a ranked search hit.
type Result struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// Stats describes the current index contents.
type Stats struct {
	VectorCount    int
	Dimensions     int
	IndexSizeBytes int64
	LastUpdated    time.Time
}

// FilterFunc decides whether an entry participates in a filtered search.
type FilterFunc func(id string, metadata map[string]string) bool

type entry struct {
	id       string
	vector   []float32
	metadata map[string]string
	seq      uint64 // insertion order, stable across overwrites
}

// Index is an in-memory vector index using cosine similarity. All methods
// are safe for concurrent use.
type Index struct {
	mu          sync.RWMutex
	dimensions  int
	entries     map[string]*entry
	nextSeq     uint64
	lastUpdated time.Time
}

// New creates an index for vectors of the given dimensionality.
func New(dimensions int) *Index {
	return &Index{
		dimensions: dimensions,
		entries:    make(map[string]*entry),
	}
}

// Add inserts or overwrites the vector stored under id. A vector whose
// length differs from the configured dimensionality is a hard error and
// never truncated or padded; the index is left unmodified in that case.
func (ix *Index) Add(id string, vector []float32, metadata map[string]string) error {
	if len(vector) != ix.dimensions {
		return domain.DimensionError(
			fmt.Sprintf("expected %d dimensions, got %d for id %s", ix.dimensions, len(vector), id))
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	stored := make([]float32, len(vector))
	copy(stored, vector)

	if existing, ok := ix.entries[id]; ok {
		existing.vector = stored
		existing.metadata = metadata
	} else {
		ix.entries[id] = &entry{
			id:       id,
			vector:   stored,
			metadata: metadata,
			seq:      ix.nextSeq,
		}
		ix.nextSeq++
	}

	ix.lastUpdated = time.Now()
	return nil
}

// Remove deletes the vector stored under id. Removing an absent id is a
// no-op and never an error.
func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.entries[id]; !ok {
		return
	}
	delete(ix.entries, id)
	ix.lastUpdated = time.Now()
}

// Search returns the top k entries by cosine similarity to query, ties
// broken by insertion order. An empty index yields an empty result, and k
// is clamped to the number of stored vectors.
func (ix *Index) Search(query []float32, k int) ([]Result, error) {
	return ix.SearchWithFilter(query, nil, k)
}

// SearchWithFilter ranks only the entries accepted by filter. The filter
// reduces the candidate pool before truncation to k, so irrelevant
// high-scoring vectors cannot crowd out relevant matches.
func (ix *Index) SearchWithFilter(query []float32, filter FilterFunc, k int) ([]Result, error) {
	if len(query) != ix.dimensions {
		return nil, domain.DimensionError(
			fmt.Sprintf("query has %d dimensions, index is configured for %d", len(query), ix.dimensions))
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	candidates := make([]*entry, 0, len(ix.entries))
	for _, e := range ix.entries {
		if filter != nil && !filter(e.id, e.metadata) {
			continue
		}
		candidates = append(candidates, e)
	}

	scored := make([]Result, len(candidates))
	seqs := make([]uint64, len(candidates))
	for i, e := range candidates {
		scored[i] = Result{
			ID:       e.id,
			Score:    cosineSimilarity(query, e.vector),
			Metadata: e.metadata,
		}
		seqs[i] = e.seq
	}

	order := make([]int, len(scored))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if scored[ia].Score != scored[ib].Score {
			return scored[ia].Score > scored[ib].Score
		}
		return seqs[ia] < seqs[ib]
	})

	if k > len(order) {
		k = len(order)
	}
	if k < 0 {
		k = 0
	}

	results := make([]Result, k)
	for i := 0; i < k; i++ {
		results[i] = scored[order[i]]
	}
	return results, nil
}

// Stats reports the index contents. IndexSizeBytes counts vector payload
// only (count x dimensions x 4 bytes per float32).
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	return Stats{
		VectorCount:    len(ix.entries),
		Dimensions:     ix.dimensions,
		IndexSizeBytes: int64(len(ix.entries)) * int64(ix.dimensions) * 4,
		LastUpdated:    ix.lastUpdated,
	}
}

// Dimensions returns the configured vector dimensionality.
func (ix *Index) Dimensions() int {
	return ix.dimensions
}

// persisted is the serialized index layout.
type persisted struct {
	Version     int              `msgpack:"version"`
	Dimensions  int              `msgpack:"dimensions"`
	LastUpdated time.Time        `msgpack:"last_updated"`
	Entries     []persistedEntry `msgpack:"entries"`
}

type persistedEntry struct {
	ID       string            `msgpack:"id"`
	Vector   []float32         `msgpack:"vector"`
	Metadata map[string]string `msgpack:"metadata,omitempty"`
}

const persistVersion = 1

// Save serializes the full index (ids, vector values, metadata) into a
// blob suitable for Load.
func (ix *Index) Save() ([]byte, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	// Entries serialized in insertion order so a round-trip preserves
	// tie-breaking behavior.
	ordered := make([]*entry, 0, len(ix.entries))
	for _, e := range ix.entries {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(a, b int) bool { return ordered[a].seq < ordered[b].seq })

	p := persisted{
		Version:     persistVersion,
		Dimensions:  ix.dimensions,
		LastUpdated: ix.lastUpdated,
		Entries:     make([]persistedEntry, len(ordered)),
	}
	for i, e := range ordered {
		p.Entries[i] = persistedEntry{
			ID:       e.id,
			Vector:   e.vector,
			Metadata: e.metadata,
		}
	}

	return msgpack.Marshal(&p)
}

// Load replaces the index contents from a blob produced by Save. It
// returns false on malformed input, in which case the index is left
// completely unchanged (the blob is decoded and checked before any state
// is touched).
func (ix *Index) Load(blob []byte) bool {
	var p persisted
	if err := msgpack.Unmarshal(blob, &p); err != nil {
		return false
	}
	if p.Version != persistVersion || p.Dimensions <= 0 {
		return false
	}
	for _, e := range p.Entries {
		if e.ID == "" || len(e.Vector) != p.Dimensions {
			return false
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.dimensions = p.Dimensions
	ix.entries = make(map[string]*entry, len(p.Entries))
	ix.nextSeq = 0
	for _, pe := range p.Entries {
		ix.entries[pe.ID] = &entry{
			id:       pe.ID,
			vector:   pe.Vector,
			metadata: pe.Metadata,
			seq:      ix.nextSeq,
		}
		ix.nextSeq++
	}
	ix.lastUpdated = p.LastUpdated

	return true
}

// cosineSimilarity is dot(a,b) / (|a| * |b|), with the convention that a
// zero-norm denominator yields 0 rather than dividing by zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}
