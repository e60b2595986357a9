package service

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/timmy/hearth/internal/logger"
	"github.com/timmy/hearth/internal/metrics"
	"github.com/timmy/hearth/internal/repository"
)

const embeddingCachePrefix = "hearth:emb:"

// embeddingStore is the slice of the key-value store the cache needs.
type embeddingStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedEmbedder memoizes another provider's embeddings in Redis.
// Cache errors never fail an Embed call; they fall through to the provider.
type CachedEmbedder struct {
	inner EmbeddingProvider
	store embeddingStore
	ttl   time.Duration
}

// NewCachedEmbedder wraps inner with a cache entry lifetime of ttl.
func NewCachedEmbedder(inner EmbeddingProvider, store embeddingStore, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, store: store, ttl: ttl}
}

func (c *CachedEmbedder) Name() string    { return c.inner.Name() }
func (c *CachedEmbedder) Model() string   { return c.inner.Model() }
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

// Embed returns the cached vector for text or computes and stores it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)

	if vec, ok := c.lookup(ctx, key); ok {
		metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
		return vec, nil
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.store.SetWithTTL(ctx, key, encodeVector(vec), c.ttl); err != nil {
		logger.CtxWarn(ctx, "Failed to cache embedding: key=%s, error=%v", key, err)
	}
	return vec, nil
}

// cacheKey scopes entries by model so switching models never serves stale vectors.
func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.New()
	h.Write([]byte(c.inner.Model()))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return embeddingCachePrefix + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, repository.ErrKeyNotFound) {
			logger.CtxWarn(ctx, "Failed to read cached embedding: key=%s, error=%v", key, err)
		}
		return nil, false
	}
	vec, err := decodeVector(data)
	if err != nil || len(vec) == 0 {
		return nil, false
	}
	if d := c.inner.Dimensions(); d > 0 && len(vec) != d {
		return nil, false
	}
	return vec, true
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid cached embedding length %d", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
