package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/lewisedginton/session_concierge/pkg/logger"
)

const cacheName = "results"

// Key builds the cache key for a scoped search. The scope is always part of
// the hash so two threads never share an entry.
func Key(scope, strategy string, topK int, query string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("scope:%s", scope))
	sb.WriteString(fmt.Sprintf("|strategy:%s", strategy))
	sb.WriteString(fmt.Sprintf("|top_k:%d", topK))
	sb.WriteString(fmt.Sprintf("|query:%s", query))

	hash := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(hash[:])
}

// ResultCache stores assembled results in Redis.
type ResultCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger logger.Logger
}

// NewResultCache creates a cache over client. Keys are namespaced under
// prefix + "search:".
func NewResultCache(client redis.UniversalClient, prefix string, ttl time.Duration, log logger.Logger) *ResultCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ResultCache{
		client: client,
		prefix: prefix + "search:",
		ttl:    ttl,
		logger: log.WithFields(logger.StringField("component", "result_cache")),
	}
}

// Get returns the cached result for key. Redis errors count as a miss.
func (c *ResultCache) Get(ctx context.Context, key string) (Result, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Result cache read failed", logger.ErrorField(err))
		}
		return Result{}, false
	}

	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		c.logger.Warn("Discarding undecodable cached result", logger.ErrorField(err))
		return Result{}, false
	}
	return res, true
}

// Set stores res under key. Failures are logged and otherwise ignored.
func (c *ResultCache) Set(ctx context.Context, key string, res Result) {
	data, err := json.Marshal(res)
	if err != nil {
		c.logger.Warn("Failed to encode result for cache", logger.ErrorField(err))
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Result cache write failed", logger.ErrorField(err))
	}
}
