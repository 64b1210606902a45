// Package health runs liveness and readiness probes for the concierge
// services and serves them over HTTP.
package health

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lewisedginton/session_concierge/pkg/logger"
)

// Check is a single dependency probe. Check returns nil when healthy.
type Check interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to Check.
type CheckFunc struct {
	name string
	fn   func(context.Context) error
}

// NewCheckFunc creates a new CheckFunc with the given name and function.
func NewCheckFunc(name string, fn func(context.Context) error) *CheckFunc {
	return &CheckFunc{name: name, fn: fn}
}

func (c *CheckFunc) Name() string                    { return c.name }
func (c *CheckFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// CheckResult is the outcome of one check execution.
type CheckResult struct {
	Name    string
	Healthy bool
	Error   string
	Latency time.Duration
}

// HealthStatus aggregates the results of one probe.
type HealthStatus struct {
	Healthy bool
	Checks  []CheckResult
}

// Probe selects which endpoint a check contributes to.
type Probe int

const (
	Liveness Probe = 1 << iota
	Readiness
)

// CheckOption tunes a single registration.
type CheckOption func(*registration)

// FailFast reports the check unhealthy on its first failure, ignoring the
// checker's failure threshold. Use it for state the process controls itself,
// such as draining during shutdown.
func FailFast() CheckOption {
	return func(r *registration) { r.threshold = 1 }
}

// CheckTimeout overrides the checker timeout for this check.
func CheckTimeout(d time.Duration) CheckOption {
	return func(r *registration) {
		if d > 0 {
			r.timeout = d
		}
	}
}

type registration struct {
	check     Check
	probes    Probe
	threshold int
	timeout   time.Duration

	// consecutive failures, guarded by HealthChecker.mu
	failures int
}

// HealthChecker runs registered checks for the liveness and readiness probes.
// A failing check only turns unhealthy after failureThreshold consecutive
// failures so one slow ping does not pull the service out of rotation.
type HealthChecker struct {
	mu               sync.Mutex
	checks           []*registration
	timeout          time.Duration
	failureThreshold int
	logger           logger.Logger
	service          string
	version          string
}

// Option configures a HealthChecker.
type Option func(*HealthChecker)

// WithTimeout sets the default per-check timeout (5s).
func WithTimeout(d time.Duration) Option {
	return func(h *HealthChecker) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithLogger sets the logger for health check operations.
func WithLogger(l logger.Logger) Option {
	return func(h *HealthChecker) {
		h.logger = l
	}
}

// WithFailureThreshold sets how many consecutive failures make a check
// unhealthy (3).
func WithFailureThreshold(threshold int) Option {
	return func(h *HealthChecker) {
		if threshold > 0 {
			h.failureThreshold = threshold
		}
	}
}

// New creates a new HealthChecker with the given options.
func New(opts ...Option) *HealthChecker {
	h := &HealthChecker{
		timeout:          5 * time.Second,
		failureThreshold: 3,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Add registers check for every probe set in probes.
func (h *HealthChecker) Add(check Check, probes Probe, opts ...CheckOption) {
	reg := &registration{check: check, probes: probes}
	for _, opt := range opts {
		opt(reg)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, reg)
}

// CheckLiveness runs the liveness checks; the error names the failed ones.
func (h *HealthChecker) CheckLiveness(ctx context.Context) (*HealthStatus, error) {
	return h.run(ctx, Liveness)
}

// CheckReadiness runs the readiness checks; the error names the failed ones.
func (h *HealthChecker) CheckReadiness(ctx context.Context) (*HealthStatus, error) {
	return h.run(ctx, Readiness)
}

// run executes the checks registered for probe concurrently.
func (h *HealthChecker) run(ctx context.Context, probe Probe) (*HealthStatus, error) {
	h.mu.Lock()
	var regs []*registration
	for _, r := range h.checks {
		if r.probes&probe != 0 {
			regs = append(regs, r)
		}
	}
	h.mu.Unlock()

	status := &HealthStatus{Healthy: true, Checks: make([]CheckResult, len(regs))}
	var wg sync.WaitGroup
	for i, r := range regs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status.Checks[i] = h.execute(ctx, r)
		}()
	}
	wg.Wait()

	var failed []string
	for _, res := range status.Checks {
		if !res.Healthy {
			failed = append(failed, res.Name)
		}
	}
	if len(failed) > 0 {
		status.Healthy = false
		return status, fmt.Errorf("health checks failed: %s", strings.Join(failed, ", "))
	}
	return status, nil
}

func (h *HealthChecker) execute(parent context.Context, r *registration) CheckResult {
	timeout := h.timeout
	if r.timeout > 0 {
		timeout = r.timeout
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	start := time.Now()
	err := r.check.Check(ctx)
	res := CheckResult{Name: r.check.Name(), Healthy: true, Latency: time.Since(start)}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err == nil {
		r.failures = 0
		return res
	}

	r.failures++
	threshold := h.failureThreshold
	if r.threshold > 0 {
		threshold = r.threshold
	}
	if r.failures < threshold {
		h.log(func(l logger.Logger) {
			l.Debug("Health check failed but below threshold",
				logger.StringField("check", res.Name),
				logger.ErrorField(err),
				logger.IntField("failures", r.failures),
				logger.IntField("threshold", threshold))
		})
		return res
	}

	res.Healthy = false
	res.Error = err.Error()
	h.log(func(l logger.Logger) {
		l.Warn("Health check failed",
			logger.StringField("check", res.Name),
			logger.ErrorField(err),
			logger.IntField("failures", r.failures),
			logger.DurationField("latency", res.Latency))
	})
	return res
}

func (h *HealthChecker) log(fn func(logger.Logger)) {
	if h.logger != nil {
		fn(h.logger)
	}
}
