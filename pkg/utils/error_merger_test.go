package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeErrorChans(t *testing.T) {
	ch1 := make(chan error, 1)
	ch2 := make(chan error, 1)
	merged := MergeErrorChans(ch1, ch2)

	ch1 <- errors.New("error 1")
	ch2 <- errors.New("error 2")
	close(ch1)
	close(ch2)

	var received []string
	timeout := time.After(time.Second)
	for done := false; !done; {
		select {
		case err, ok := <-merged:
			if !ok {
				done = true
				continue
			}
			received = append(received, err.Error())
		case <-timeout:
			t.Fatal("timeout waiting for merged errors")
		}
	}

	assert.ElementsMatch(t, []string{"error 1", "error 2"}, received)
}

func TestWaitFirstError(t *testing.T) {
	t.Run("returns the first real error", func(t *testing.T) {
		clean := make(chan error, 1)
		failing := make(chan error, 1)
		clean <- nil
		close(clean)
		failing <- errors.New("listen tcp :8080: address already in use")

		err := WaitFirstError(context.Background(), clean, failing)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "address already in use")
	})

	t.Run("nil when all channels close cleanly", func(t *testing.T) {
		ch := make(chan error)
		close(ch)
		assert.NoError(t, WaitFirstError(context.Background(), ch))
	})

	t.Run("nil on context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.NoError(t, WaitFirstError(ctx, make(chan error)))
	})
}
