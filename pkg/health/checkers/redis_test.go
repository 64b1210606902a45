package checkers

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisChecker(t *testing.T) {
	t.Run("names", func(t *testing.T) {
		client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
		defer client.Close()

		assert.Equal(t, "redis-cache", NewRedisChecker(client, "redis-cache").Name())
		assert.Equal(t, "redis", NewRedisChecker(client, "").Name())
	})

	t.Run("healthy against a live server", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer client.Close()

		assert.NoError(t, NewRedisChecker(client, "").Check(context.Background()))
	})

	t.Run("fails once the server goes away", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}, MaxRetries: -1})
		defer client.Close()

		mr.Close()
		err := NewRedisChecker(client, "test").Check(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis ping failed")
	})
}
