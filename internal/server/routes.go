package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/lewisedginton/session_concierge/internal/catalog"
	"github.com/lewisedginton/session_concierge/internal/conversation"
	"github.com/lewisedginton/session_concierge/internal/memory_store"
	"github.com/lewisedginton/session_concierge/internal/messages"
	"github.com/lewisedginton/session_concierge/internal/search"
	"github.com/lewisedginton/session_concierge/internal/textgen"
	"github.com/lewisedginton/session_concierge/pkg/health"
	"github.com/lewisedginton/session_concierge/pkg/httpmiddleware"
	"github.com/lewisedginton/session_concierge/pkg/logger"
	"github.com/lewisedginton/session_concierge/pkg/metrics"
)

// Response statuses
const (
	StatusOK           = "ok"
	StatusSearchFailed = "search_failed"
	StatusInvalid      = "invalid_request"
	StatusError        = "error"
)

// Searcher runs the search pipeline.
type Searcher interface {
	Search(ctx context.Context, req search.Request, onToken textgen.TokenFunc) (search.Result, error)
}

// ThreadReader serves stored conversation history.
type ThreadReader interface {
	Messages(ctx context.Context, threadID string) ([]messages.LegacyMessage, error)
	LoadAgentState(ctx context.Context, threadID string) (conversation.AgentState, error)
}

// RouterConfig is everything the HTTP API serves.
type RouterConfig struct {
	Searcher Searcher
	Threads  ThreadReader
	Catalog  *catalog.Catalog
	Health   *health.HealthChecker
	Metrics  *metrics.Metrics
	// MCP is mounted at MCPPath when set
	MCP     http.Handler
	MCPPath string

	Middleware   httpmiddleware.Config
	MaxBodyBytes int64
	Logger       logger.Logger
}

type api struct {
	searcher     Searcher
	threads      ThreadReader
	catalog      *catalog.Catalog
	maxBodyBytes int64
	logger       logger.Logger

	// allowedOrigins gates websocket upgrades
	allowedOrigins []string
}

// searchResponse is the body of a successful search.
type searchResponse struct {
	Status   string                   `json:"status"`
	ID       string                   `json:"id"`
	Query    string                   `json:"query"`
	Sessions []catalog.MatchedSession `json:"sessions"`
	Summary  string                   `json:"summary"`
	Cached   bool                     `json:"cached,omitempty"`
}

type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// NewRouter builds the chi router for the HTTP API.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	a := &api{
		searcher:     cfg.Searcher,
		threads:      cfg.Threads,
		catalog:      cfg.Catalog,
		maxBodyBytes: cfg.MaxBodyBytes,
		logger:       cfg.Logger,
	}
	if cfg.Middleware.CORS != nil {
		a.allowedOrigins = cfg.Middleware.CORS.AllowedOrigins
	}

	// group middleware only runs for matched routes, so the heartbeat is global
	groupCfg := cfg.Middleware
	heartbeat := groupCfg.EnableHeartbeat
	groupCfg.EnableHeartbeat = false

	r := chi.NewRouter()
	if heartbeat {
		r.Use(middleware.Heartbeat("/ping"))
	}
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.HTTPMiddleware())
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}
	if cfg.Health != nil {
		cfg.Health.Mount(r)
	}

	// websockets and MCP streams are long-lived
	r.Group(func(r chi.Router) {
		httpmiddleware.ApplyToRouter(r, httpmiddleware.StreamingConfig(groupCfg))
		if cfg.Searcher != nil {
			r.Get("/api/search/stream", a.handleSearchStream)
		}
		if cfg.MCP != nil {
			path := cfg.MCPPath
			if path == "" {
				path = "/mcp"
			}
			r.Handle(path, cfg.MCP)
		}
	})

	r.Group(func(r chi.Router) {
		httpmiddleware.ApplyToRouter(r, groupCfg)
		if cfg.Searcher != nil {
			r.Post("/api/search", a.handleSearch)
		}
		if cfg.Threads != nil {
			r.Get("/api/threads/{threadId}/messages", a.handleThreadMessages)
			r.Get("/api/threads/{threadId}/agent-state", a.handleAgentState)
		}
		if cfg.Catalog != nil {
			r.Get("/api/catalog", a.handleCatalog)
		}
	})

	return r
}

func (a *api) handleSearch(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context(), a.logger)

	var req search.Request
	body := http.MaxBytesReader(w, r.Body, a.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: StatusInvalid, Error: "invalid JSON body"})
		return
	}

	res, err := a.searcher.Search(r.Context(), req, nil)
	if err != nil {
		status, body := searchErrorResponse(err)
		log.Warn("Search failed", logger.QueryField(req.Query), logger.ErrorField(err))
		writeJSON(w, status, body)
		return
	}

	writeJSON(w, http.StatusOK, newSearchResponse(res))
}

// searchErrorResponse separates bad requests from pipeline failures, which
// clients must be able to tell apart from an empty result.
func searchErrorResponse(err error) (int, errorResponse) {
	if search.IsInvalidRequest(err) {
		return http.StatusBadRequest, errorResponse{Status: StatusInvalid, Error: err.Error()}
	}
	return http.StatusBadGateway, errorResponse{Status: StatusSearchFailed, Error: err.Error()}
}

func newSearchResponse(res search.Result) searchResponse {
	sessions := res.Sessions
	if sessions == nil {
		sessions = []catalog.MatchedSession{}
	}
	return searchResponse{
		Status:   StatusOK,
		ID:       res.ID,
		Query:    res.Query,
		Sessions: sessions,
		Summary:  res.Summary,
		Cached:   res.Cached,
	}
}

func (a *api) handleThreadMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := a.threads.Messages(r.Context(), chi.URLParam(r, "threadId"))
	if err != nil {
		a.writeThreadError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []messages.LegacyMessage{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (a *api) handleAgentState(w http.ResponseWriter, r *http.Request) {
	state, err := a.threads.LoadAgentState(r.Context(), chi.URLParam(r, "threadId"))
	if err != nil {
		a.writeThreadError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (a *api) writeThreadError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, memory_store.ErrInvalidThreadID) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: StatusInvalid, Error: err.Error()})
		return
	}
	logger.FromContext(r.Context(), a.logger).Error("Failed to load thread", logger.ErrorField(err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Status: StatusError, Error: "failed to load thread"})
}

func (a *api) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.catalog.Sessions())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
