package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lewisedginton/session_concierge/internal/search"
	"github.com/lewisedginton/session_concierge/pkg/logger"
)

// Stream frame types
const (
	FrameToken  = "token"
	FrameResult = "result"
	FrameError  = "error"
)

const streamWriteTimeout = 10 * time.Second

// streamFrame is one message sent to a websocket client. A search produces
// any number of token frames followed by exactly one result or error frame.
type streamFrame struct {
	Type   string          `json:"type"`
	Token  string          `json:"token,omitempty"`
	Result *searchResponse `json:"result,omitempty"`
	Status string          `json:"status,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// streamConn serialises writes; token callbacks and the final frame may
// come from different goroutines.
type streamConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *streamConn) send(f streamFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return c.conn.WriteJSON(f)
}

func (a *api) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(a.allowedOrigins, r.Header.Get("Origin"))
		},
	}
}

// handleSearchStream runs one search per request frame received on the
// socket until the client disconnects. A reader goroutine owns the socket
// reads so a close or read error cancels the search that is in flight.
func (a *api) handleSearchStream(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context(), a.logger)

	ws, err := a.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		log.Warn("Websocket upgrade failed", logger.ErrorField(err))
		return
	}
	defer func() { _ = ws.Close() }()
	ws.SetReadLimit(a.maxBodyBytes)

	// net/http stops watching a hijacked connection, so r.Context() alone
	// never observes the client going away.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	reqs := make(chan search.Request)
	go func() {
		defer cancel()
		for {
			var req search.Request
			if err := ws.ReadJSON(&req); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Debug("Websocket read ended", logger.ErrorField(err))
				}
				return
			}
			select {
			case reqs <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	conn := &streamConn{conn: ws}
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-reqs:
			if err := a.streamSearch(ctx, conn, req); err != nil {
				log.Warn("Websocket write failed", logger.ErrorField(err))
				return
			}
		}
	}
}

func (a *api) streamSearch(parent context.Context, conn *streamConn, req search.Request) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var (
		mu       sync.Mutex
		writeErr error
	)
	onToken := func(token string) {
		mu.Lock()
		defer mu.Unlock()
		if writeErr != nil || token == "" {
			return
		}
		if writeErr = conn.send(streamFrame{Type: FrameToken, Token: token}); writeErr != nil {
			cancel()
		}
	}

	res, err := a.searcher.Search(ctx, req, onToken)

	mu.Lock()
	failed := writeErr
	mu.Unlock()
	if failed != nil {
		return failed
	}
	if parent.Err() != nil {
		// client is gone; nothing left to write to
		return nil
	}
	if err != nil {
		_, body := searchErrorResponse(err)
		return conn.send(streamFrame{Type: FrameError, Status: body.Status, Error: body.Error})
	}

	resp := newSearchResponse(res)
	return conn.send(streamFrame{Type: FrameResult, Result: &resp})
}

// originAllowed matches origin against CORS-style patterns, where a trailing
// "*" matches any suffix. Requests without an Origin are not from browsers.
func originAllowed(patterns []string, origin string) bool {
	if origin == "" || len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if p == "*" || p == origin {
			return true
		}
		if prefix, ok := strings.CutSuffix(p, "*"); ok && strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}
