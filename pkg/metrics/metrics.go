// Package metrics provides Prometheus collectors for the HTTP surface and the
// search pipeline, registered on a private registry.
package metrics

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/lewisedginton/session_concierge/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	subsystem = "concierge"
)

// Search outcomes used as the "outcome" label.
const (
	OutcomeOK              = "ok"
	OutcomeEmpty           = "empty"
	OutcomeRetrievalError  = "retrieval_error"
	OutcomeExtractionError = "extraction_error"
	OutcomeError           = "error"
)

// Metrics holds every collector exposed by the service. A nil *Metrics is
// valid and records nothing, which keeps library packages usable without
// a registry.
type Metrics struct {
	reg *prometheus.Registry

	TotalHTTPRequestsCounter prometheus.Counter
	HTTPResponsesCounter     *prometheus.CounterVec
	HTTPDurationHistogram    prometheus.Histogram

	SearchesCounter         *prometheus.CounterVec
	SearchDurationHistogram *prometheus.HistogramVec
	RetrievalFailures       *prometheus.CounterVec
	ExtractionFailures      prometheus.Counter
	FabricatedTitlesDropped prometheus.Counter
	CacheLookups            *prometheus.CounterVec

	customMetrics []prometheus.Collector

	server *http.Server
	log    logger.Logger
}

// NewMetrics creates a new Metrics instance with the specified collectors enabled.
func NewMetrics(httpCounters, pipelineMetrics bool, l logger.Logger) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		log: l,
	}

	if httpCounters {
		m.TotalHTTPRequestsCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		})
		m.HTTPResponsesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "http_responses_total",
			Help:      "HTTP responses by status code",
		}, []string{"code"})
		m.HTTPDurationHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.3, 0.5, 0.7, 1.0, 3.0, 5.0, 7.0, 10.0},
		})
		m.reg.MustRegister(m.TotalHTTPRequestsCounter, m.HTTPResponsesCounter, m.HTTPDurationHistogram)
	}

	if pipelineMetrics {
		m.SearchesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "searches_total",
			Help:      "Searches by matching strategy and outcome",
		}, []string{"strategy", "outcome"})
		m.SearchDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "search_duration_seconds",
			Help:      "End to end search duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"strategy"})
		m.RetrievalFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "retrieval_failures_total",
			Help:      "Failed retrieval calls by stage (embed, query)",
		}, []string{"stage"})
		m.ExtractionFailures = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "extraction_format_failures_total",
			Help:      "LLM extraction outputs that were not valid JSON of the expected shape",
		})
		m.FabricatedTitlesDropped = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "fabricated_titles_dropped_total",
			Help:      "Sessions returned by the LLM that do not exist in the catalog",
		})
		m.CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache name and result",
		}, []string{"cache", "result"})
		m.reg.MustRegister(
			m.SearchesCounter,
			m.SearchDurationHistogram,
			m.RetrievalFailures,
			m.ExtractionFailures,
			m.FabricatedTitlesDropped,
			m.CacheLookups,
		)
	}

	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler returns the Prometheus scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Listen starts a standalone metrics HTTP server on the specified port.
// The returned channel receives the server's terminal error.
func (m *Metrics) Listen(port int) <-chan error {
	m.log.Info("Starting metrics listener", logger.IntField("port", port))
	mux := http.NewServeMux()
	mux.Handle("/", http.NotFoundHandler())
	mux.Handle("/metrics", m.Handler())
	m.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		err := m.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errChan <- err
		close(errChan)
	}()
	return errChan
}

// Shutdown stops the standalone listener started by Listen.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.server == nil {
		return nil
	}
	m.log.Info("Stopping metrics listener")
	return m.server.Shutdown(ctx)
}

// AddCustomMetric registers a custom Prometheus collector.
func (m *Metrics) AddCustomMetric(c prometheus.Collector) {
	m.customMetrics = append(m.customMetrics, c)
	m.reg.MustRegister(c)
}

// IncrementHTTPResponseCounter increments the counter for the given HTTP status code.
func (m *Metrics) IncrementHTTPResponseCounter(code int) {
	if m == nil || m.HTTPResponsesCounter == nil {
		return
	}
	m.HTTPResponsesCounter.WithLabelValues(strconv.Itoa(code)).Inc()
}

// ObserveSearch records a finished search.
func (m *Metrics) ObserveSearch(strategy, outcome string, d time.Duration) {
	if m == nil || m.SearchesCounter == nil {
		return
	}
	m.SearchesCounter.WithLabelValues(strategy, outcome).Inc()
	m.SearchDurationHistogram.WithLabelValues(strategy).Observe(d.Seconds())
}

// IncRetrievalFailure counts a failed embedding or index call.
func (m *Metrics) IncRetrievalFailure(stage string) {
	if m == nil || m.RetrievalFailures == nil {
		return
	}
	m.RetrievalFailures.WithLabelValues(stage).Inc()
}

// IncExtractionFailure counts an unparseable LLM extraction.
func (m *Metrics) IncExtractionFailure() {
	if m == nil || m.ExtractionFailures == nil {
		return
	}
	m.ExtractionFailures.Inc()
}

// AddFabricatedTitles counts LLM sessions dropped for not being in the catalog.
func (m *Metrics) AddFabricatedTitles(n int) {
	if m == nil || m.FabricatedTitlesDropped == nil || n <= 0 {
		return
	}
	m.FabricatedTitlesDropped.Add(float64(n))
}

// IncCacheLookup counts a cache hit or miss.
func (m *Metrics) IncCacheLookup(cache string, hit bool) {
	if m == nil || m.CacheLookups == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(cache, result).Inc()
}

// HTTPMiddleware returns a Chi-compatible middleware that tracks HTTP metrics
func (m *Metrics) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil || m.TotalHTTPRequestsCounter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.TotalHTTPRequestsCounter.Inc()

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			m.HTTPDurationHistogram.Observe(time.Since(start).Seconds())
			m.IncrementHTTPResponseCounter(rw.statusCode)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack is required for websocket upgrades behind this middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("underlying response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}
