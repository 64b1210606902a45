package health

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCheck is a simple test implementation of the Check interface.
type mockCheck struct {
	name      string
	err       error
	sleepTime time.Duration
	calls     atomic.Int32
}

func (m *mockCheck) Name() string {
	return m.name
}

func (m *mockCheck) Check(ctx context.Context) error {
	m.calls.Add(1)
	if m.sleepTime > 0 {
		select {
		case <-time.After(m.sleepTime):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.err
}

func TestNew(t *testing.T) {
	h := New()
	assert.Equal(t, 5*time.Second, h.timeout)
	assert.Equal(t, 3, h.failureThreshold)

	h = New(WithTimeout(time.Second), WithFailureThreshold(5))
	assert.Equal(t, time.Second, h.timeout)
	assert.Equal(t, 5, h.failureThreshold)

	h = New(WithTimeout(0), WithFailureThreshold(0))
	assert.Equal(t, 5*time.Second, h.timeout, "zero timeout keeps the default")
	assert.Equal(t, 3, h.failureThreshold, "zero threshold keeps the default")
}

func TestCheckFunc(t *testing.T) {
	down := errors.New("pool closed")
	check := NewCheckFunc("postgres", func(context.Context) error { return down })

	assert.Equal(t, "postgres", check.Name())
	assert.Equal(t, down, check.Check(context.Background()))
}

func TestHealthChecker_NoChecks(t *testing.T) {
	h := New()

	for _, probe := range []func(context.Context) (*HealthStatus, error){h.CheckLiveness, h.CheckReadiness} {
		status, err := probe(context.Background())
		require.NoError(t, err)
		assert.True(t, status.Healthy)
		assert.Empty(t, status.Checks)
	}
}

func TestHealthChecker_Probes(t *testing.T) {
	h := New(WithFailureThreshold(1))
	process := &mockCheck{name: "process"}
	index := &mockCheck{name: "vector-store", err: errors.New("down")}
	catalog := &mockCheck{name: "catalog"}
	h.Add(process, Liveness)
	h.Add(index, Readiness)
	h.Add(catalog, Liveness|Readiness)

	live, err := h.CheckLiveness(context.Background())
	require.NoError(t, err)
	require.Len(t, live.Checks, 2)
	assert.Equal(t, "process", live.Checks[0].Name)
	assert.Equal(t, "catalog", live.Checks[1].Name)

	ready, err := h.CheckReadiness(context.Background())
	require.Error(t, err)
	assert.Equal(t, "health checks failed: vector-store", err.Error())
	assert.False(t, ready.Healthy)
	require.Len(t, ready.Checks, 2)
	assert.False(t, ready.Checks[0].Healthy)
	assert.Equal(t, "down", ready.Checks[0].Error)
	assert.True(t, ready.Checks[1].Healthy)

	assert.EqualValues(t, 1, process.calls.Load())
	assert.EqualValues(t, 2, catalog.calls.Load())
}

func TestHealthChecker_FailureThreshold(t *testing.T) {
	h := New(WithFailureThreshold(3))
	check := &mockCheck{name: "redis", err: errors.New("i/o timeout")}
	h.Add(check, Readiness)

	for i := 0; i < 2; i++ {
		status, err := h.CheckReadiness(context.Background())
		require.NoError(t, err, "failure %d is below the threshold", i+1)
		assert.True(t, status.Checks[0].Healthy)
	}

	status, err := h.CheckReadiness(context.Background())
	require.Error(t, err)
	assert.False(t, status.Checks[0].Healthy)

	// a success resets the count
	check.err = nil
	_, err = h.CheckReadiness(context.Background())
	require.NoError(t, err)

	check.err = errors.New("i/o timeout")
	_, err = h.CheckReadiness(context.Background())
	assert.NoError(t, err)
}

func TestHealthChecker_FailFast(t *testing.T) {
	h := New(WithFailureThreshold(3))
	draining := false
	h.Add(NewCheckFunc("shutdown", func(context.Context) error {
		if draining {
			return errors.New("server is shutting down")
		}
		return nil
	}), Readiness, FailFast())
	h.Add(&mockCheck{name: "redis", err: errors.New("i/o timeout")}, Readiness)

	_, err := h.CheckReadiness(context.Background())
	require.NoError(t, err)

	draining = true
	_, err = h.CheckReadiness(context.Background())
	require.Error(t, err)
	assert.Equal(t, "health checks failed: shutdown", err.Error(), "redis is still below its threshold")
}

func TestHealthChecker_Timeout(t *testing.T) {
	h := New(WithTimeout(50*time.Millisecond), WithFailureThreshold(1))
	h.Add(&mockCheck{name: "llm", sleepTime: time.Second}, Readiness)
	h.Add(&mockCheck{name: "postgres", sleepTime: 100 * time.Millisecond}, Readiness, CheckTimeout(time.Second))

	start := time.Now()
	status, err := h.CheckReadiness(context.Background())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, "health checks failed: llm", err.Error())
	assert.Contains(t, status.Checks[0].Error, "context deadline exceeded")
	assert.True(t, status.Checks[1].Healthy, "per-check timeout overrides the default")
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestHealthChecker_ConcurrentChecks(t *testing.T) {
	h := New()
	for i := 0; i < 3; i++ {
		h.Add(&mockCheck{name: fmt.Sprintf("slow-%d", i), sleepTime: 100 * time.Millisecond}, Liveness)
	}

	start := time.Now()
	status, err := h.CheckLiveness(context.Background())
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Len(t, status.Checks, 3)
	assert.Less(t, elapsed, 250*time.Millisecond, "checks run concurrently")
}
