package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/session_concierge/internal/catalog"
	"github.com/lewisedginton/session_concierge/internal/conversation"
	"github.com/lewisedginton/session_concierge/internal/memory_store"
	"github.com/lewisedginton/session_concierge/internal/messages"
	"github.com/lewisedginton/session_concierge/internal/retriever"
	"github.com/lewisedginton/session_concierge/internal/search"
	"github.com/lewisedginton/session_concierge/internal/textgen"
	"github.com/lewisedginton/session_concierge/pkg/health"
	"github.com/lewisedginton/session_concierge/pkg/httpmiddleware"
	"github.com/lewisedginton/session_concierge/pkg/logger"
	"github.com/lewisedginton/session_concierge/pkg/metrics"
)

type stubSearcher struct {
	mu     sync.Mutex
	err    error
	tokens []string
	reqs   []search.Request
}

func (s *stubSearcher) Search(_ context.Context, req search.Request, onToken textgen.TokenFunc) (search.Result, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()

	if strings.TrimSpace(req.Query) == "" {
		return search.Result{}, retriever.ErrEmptyQuery
	}
	if onToken != nil {
		for _, t := range s.tokens {
			onToken(t)
		}
	}
	if s.err != nil {
		return search.Result{}, s.err
	}
	return search.Result{
		ID:    "search-1",
		Query: req.Query,
		Sessions: []catalog.MatchedSession{{
			Session:     catalog.Session{Title: "Scaling Postgres", Room: "Hall A", Speakers: []string{"Ada"}},
			MatchReason: "mentions replication",
		}},
		Summary: search.Summary(2),
	}, nil
}

type stubThreads struct {
	msgs  []messages.LegacyMessage
	state conversation.AgentState
	err   error
}

func (s *stubThreads) Messages(context.Context, string) ([]messages.LegacyMessage, error) {
	return s.msgs, s.err
}

func (s *stubThreads) LoadAgentState(_ context.Context, threadID string) (conversation.AgentState, error) {
	if s.err != nil {
		return conversation.AgentState{}, s.err
	}
	st := s.state
	st.ThreadID = threadID
	return st, nil
}

func testRouter(t *testing.T, cfg RouterConfig) *httptest.Server {
	t.Helper()
	cfg.Logger = logger.NewNop()
	srv := httptest.NewServer(NewRouter(cfg))
	t.Cleanup(srv.Close)
	return srv
}

func postSearch(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url+"/api/search", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestSearch_OK(t *testing.T) {
	searcher := &stubSearcher{}
	srv := testRouter(t, RouterConfig{Searcher: searcher})

	resp, body := postSearch(t, srv.URL, `{"query":"postgres","topK":3,"threadId":"t1"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, StatusOK, body["status"])
	assert.Equal(t, "search-1", body["id"])
	assert.Equal(t, "Found 2 relevant document chunks", body["summary"])
	require.Len(t, body["sessions"], 1)
	first := body["sessions"].([]any)[0].(map[string]any)
	assert.Equal(t, "mentions replication", first["matchReason"])
	assert.Equal(t, "Scaling Postgres", first["session"].(map[string]any)["title"])

	require.Len(t, searcher.reqs, 1)
	assert.Equal(t, search.Request{Query: "postgres", TopK: 3, ThreadID: "t1"}, searcher.reqs[0])
}

func TestSearch_InvalidRequests(t *testing.T) {
	srv := testRouter(t, RouterConfig{Searcher: &stubSearcher{}})

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{"query":`, "invalid JSON body"},
		{"empty body", ``, retriever.ErrEmptyQuery.Error()},
		{"blank query", `{"query":"   "}`, retriever.ErrEmptyQuery.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := postSearch(t, srv.URL, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, StatusInvalid, body["status"])
			assert.Equal(t, tt.want, body["error"])
		})
	}
}

func TestSearch_PipelineFailure(t *testing.T) {
	srv := testRouter(t, RouterConfig{Searcher: &stubSearcher{err: errors.New("embedding provider unavailable")}})

	resp, body := postSearch(t, srv.URL, `{"query":"kafka"}`)

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, StatusSearchFailed, body["status"])
	assert.Equal(t, "embedding provider unavailable", body["error"])
	assert.NotContains(t, body, "sessions")
}

func TestNewSearchResponse_EmptySessions(t *testing.T) {
	resp := newSearchResponse(search.Result{ID: "x", Query: "q", Summary: search.Summary(0)})
	assert.NotNil(t, resp.Sessions)
	assert.Empty(t, resp.Sessions)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sessions":[]`)
}

func TestThreadEndpoints(t *testing.T) {
	threads := &stubThreads{
		msgs: []messages.LegacyMessage{
			messages.TextMessage{ID: "m1", Role: messages.RoleUser, Content: "kafka talks"},
		},
		state: conversation.AgentState{ThreadExists: true, State: "{}", Messages: "[]"},
	}
	srv := testRouter(t, RouterConfig{Threads: threads})

	resp, err := http.Get(srv.URL + "/api/threads/t1/messages")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var msgs []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "kafka talks", msgs[0]["content"])

	resp2, err := http.Get(srv.URL + "/api/threads/t1/agent-state")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var state conversation.AgentState
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&state))
	assert.Equal(t, conversation.AgentState{ThreadID: "t1", ThreadExists: true, State: "{}", Messages: "[]"}, state)
}

func TestThreadEndpoints_EmptyHistory(t *testing.T) {
	srv := testRouter(t, RouterConfig{Threads: &stubThreads{}})

	resp, err := http.Get(srv.URL + "/api/threads/new-thread/messages")
	require.NoError(t, err)
	defer resp.Body.Close()

	var raw json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.JSONEq(t, `[]`, string(raw))
}

func TestThreadEndpoints_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		want   string
	}{
		{"invalid id", fmt.Errorf("load: %w", memory_store.ErrInvalidThreadID), http.StatusBadRequest, StatusInvalid},
		{"store failure", errors.New("disk full"), http.StatusInternalServerError, StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testRouter(t, RouterConfig{Threads: &stubThreads{err: tt.err}})

			for _, path := range []string{"/messages", "/agent-state"} {
				resp, err := http.Get(srv.URL + "/api/threads/t1" + path)
				require.NoError(t, err)
				var body errorResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				resp.Body.Close()

				assert.Equal(t, tt.status, resp.StatusCode, path)
				assert.Equal(t, tt.want, body.Status, path)
			}
		})
	}
}

func TestCatalogEndpoint(t *testing.T) {
	cat := catalog.MustNew([]catalog.Session{
		{Title: "Scaling Postgres", Speakers: []string{"Ada"}},
		{Title: "Kafka in Practice"},
	})
	srv := testRouter(t, RouterConfig{Catalog: cat})

	resp, err := http.Get(srv.URL + "/api/catalog")
	require.NoError(t, err)
	defer resp.Body.Close()

	var sessions []catalog.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sessions))
	require.Len(t, sessions, 2)
	assert.Equal(t, "Kafka in Practice", sessions[1].Title)
}

func TestUnconfiguredRoutes(t *testing.T) {
	srv := testRouter(t, RouterConfig{})

	for _, path := range []string{"/api/catalog", "/api/threads/t1/messages", "/metrics", "/health"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestHealthAndHeartbeat(t *testing.T) {
	ready := errors.New("connector offline")
	hc := health.New(health.WithFailureThreshold(1), health.WithService("session-concierge", "test"))
	hc.Add(health.NewCheckFunc("process", func(context.Context) error { return nil }), health.Liveness)
	hc.Add(health.NewCheckFunc("connector", func(context.Context) error { return ready }), health.Readiness)

	mw := httpmiddleware.Config{EnableHeartbeat: true}
	srv := testRouter(t, RouterConfig{Health: hc, Middleware: mw})

	tests := []struct {
		path   string
		status int
	}{
		{"/ping", http.StatusOK},
		{"/health", http.StatusOK},
		{"/ready", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		resp, err := http.Get(srv.URL + tt.path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, tt.status, resp.StatusCode, tt.path)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.NewMetrics(true, true, logger.NewNop())
	srv := testRouter(t, RouterConfig{Searcher: &stubSearcher{}, Metrics: m})

	resp, _ := postSearch(t, srv.URL, `{"query":"postgres"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	mresp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer mresp.Body.Close()
	assert.Equal(t, http.StatusOK, mresp.StatusCode)
}

func TestMCPMount(t *testing.T) {
	var hits atomic.Int32
	mcp := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusAccepted)
	})
	srv := testRouter(t, RouterConfig{MCP: mcp, MCPPath: "/tools/mcp"})

	resp, err := http.Post(srv.URL+"/tools/mcp", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}
