package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/lewisedginton/session_concierge/pkg/logger"
	"github.com/lewisedginton/session_concierge/pkg/metrics"
)

const cacheName = "embedding"

// CacheOptions configures a CachedEmbedder.
type CacheOptions struct {
	TTL time.Duration
	// Redis is an optional shared second level
	Redis     redis.UniversalClient
	KeyPrefix string
	Metrics   *metrics.Metrics
	Logger    logger.Logger
}

// CachedEmbedder memoizes embeddings by model and text. Embeddings are a pure
// function of their input so the cache needs no tenant scope.
type CachedEmbedder struct {
	next    Embedder
	local   *cache.Cache
	redis   redis.UniversalClient
	ttl     time.Duration
	prefix  string
	metrics *metrics.Metrics
	logger  logger.Logger
}

// NewCachedEmbedder wraps next with an in-process cache and, when opts.Redis is
// set, a Redis cache shared between replicas.
func NewCachedEmbedder(next Embedder, opts CacheOptions) *CachedEmbedder {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &CachedEmbedder{
		next:    next,
		local:   cache.New(opts.TTL, 2*opts.TTL),
		redis:   opts.Redis,
		ttl:     opts.TTL,
		prefix:  opts.KeyPrefix + "emb:",
		metrics: opts.Metrics,
		logger:  opts.Logger.WithFields(logger.StringField("component", "embedding_cache")),
	}
}

func (c *CachedEmbedder) Model() string  { return c.next.Model() }
func (c *CachedEmbedder) Dimension() int { return c.next.Dimension() }

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		keys[i] = c.key(text)
		if v, ok := c.lookup(ctx, keys[i]); ok {
			out[i] = v
			c.metrics.IncCacheLookup(cacheName, true)
			continue
		}
		c.metrics.IncCacheLookup(cacheName, false)
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if err := CheckVectors(vectors, len(missTexts), c.next.Dimension()); err != nil {
		return nil, err
	}

	for j, idx := range missIdx {
		out[idx] = vectors[j]
		c.store(ctx, keys[idx], vectors[j])
	}
	return out, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(c.next.Model() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	if v, ok := c.local.Get(key); ok {
		return cloneVector(v.([]float32)), true
	}
	if c.redis == nil {
		return nil, false
	}

	raw, err := c.redis.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Embedding cache read failed", logger.ErrorField(err))
		}
		return nil, false
	}

	var v []float32
	if err := json.Unmarshal(raw, &v); err != nil || len(v) != c.next.Dimension() {
		c.logger.Warn("Discarding malformed cached embedding", logger.StringField("key", key))
		return nil, false
	}
	c.local.SetDefault(key, v)
	return cloneVector(v), true
}

func (c *CachedEmbedder) store(ctx context.Context, key string, v []float32) {
	c.local.SetDefault(key, cloneVector(v))
	if c.redis == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, c.prefix+key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("Embedding cache write failed", logger.ErrorField(err))
	}
}

func cloneVector(v []float32) []float32 {
	return append([]float32(nil), v...)
}
