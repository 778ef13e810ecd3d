// Package search provides semantic search over the vector index.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ledgerlens/docindex/internal/cache"
	"github.com/ledgerlens/docindex/internal/embedding"
	"github.com/ledgerlens/docindex/internal/index"
	"github.com/ledgerlens/docindex/internal/observability"
)

// Service embeds query text and ranks documents from the vector index.
type Service struct {
	embedder embedding.Embedder
	idx      *index.Index
	cache    cache.Client
	cacheTTL time.Duration
	logger   *observability.Logger
}

// Config holds search service configuration.
type Config struct {
	Cache    cache.Client // optional; nil disables embedding caching
	CacheTTL time.Duration
}

// NewService creates a search service over the given embedder and index.
func NewService(embedder embedding.Embedder, idx *index.Index, cfg Config, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{
		embedder: embedder,
		idx:      idx,
		cache:    cfg.Cache,
		cacheTTL: ttl,
		logger:   logger.WithComponent("search"),
	}
}

// Query embeds the query text and returns the top k documents.
func (s *Service) Query(ctx context.Context, query string, k int) ([]index.Result, error) {
	return s.QueryWithFilter(ctx, query, nil, k)
}

// QueryWithFilter embeds the query text and returns the top k documents
// accepted by the filter.
func (s *Service) QueryWithFilter(ctx context.Context, query string, filter index.FilterFunc, k int) ([]index.Result, error) {
	vector, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.idx.SearchWithFilter(vector, filter, k)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Int("k", k).
		Int("results", len(results)).
		Msg("semantic search completed")

	return results, nil
}

// embedQuery generates the query embedding, consulting the cache first.
// Cache keys are a content hash so the query text itself is never stored.
func (s *Service) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if s.cache == nil {
		return s.embedder.EmbedSingle(ctx, query)
	}

	key := s.cacheKey(query)
	if data, err := s.cache.Get(ctx, key); err == nil {
		var vector []float32
		if err := msgpack.Unmarshal(data, &vector); err == nil && len(vector) == s.embedder.Dimension() {
			return vector, nil
		}
		// Corrupt or stale entry; fall through to recompute.
		_ = s.cache.Delete(ctx, key)
	}

	vector, err := s.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, err
	}

	if data, err := msgpack.Marshal(vector); err == nil {
		if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
			s.logger.Warn().Err(err).Msg("failed to cache query embedding")
		}
	}

	return vector, nil
}

func (s *Service) cacheKey(query string) string {
	sum := sha256.Sum256([]byte(s.embedder.Model() + "|" + query))
	return "emb:" + hex.EncodeToString(sum[:16])
}
