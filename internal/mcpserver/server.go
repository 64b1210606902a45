// Package mcpserver exposes session search as a Model Context Protocol tool,
// over stdio for desktop assistants or streamable HTTP next to the REST API.
package mcpserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lewisedginton/session_concierge/internal/agents"
	"github.com/lewisedginton/session_concierge/internal/search"
	"github.com/lewisedginton/session_concierge/internal/textgen"
	"github.com/lewisedginton/session_concierge/pkg/logger"
)

const implementationName = "session-concierge"

// Searcher runs the search pipeline.
type Searcher interface {
	Search(ctx context.Context, req search.Request, onToken textgen.TokenFunc) (search.Result, error)
}

// FindSessionsInput is the tool's argument object.
type FindSessionsInput struct {
	Query string `json:"query" jsonschema:"what the user is looking for, in natural language"`
	TopK  int    `json:"topK,omitempty" jsonschema:"number of document chunks to retrieve, defaults to the server setting"`
}

// SessionView is one matched session as returned to MCP clients.
type SessionView struct {
	Title       string   `json:"title"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Room        string   `json:"room"`
	Speakers    []string `json:"speakers"`
	Description string   `json:"description"`
	MatchReason string   `json:"matchReason,omitempty"`
}

// FindSessionsOutput is the tool's structured result.
type FindSessionsOutput struct {
	ID       string        `json:"id"`
	Summary  string        `json:"summary"`
	Sessions []SessionView `json:"sessions"`
}

// Server wraps an mcp.Server with the find_sessions tool registered.
type Server struct {
	server   *mcp.Server
	searcher Searcher
	logger   logger.Logger
}

// New creates the MCP server.
func New(searcher Searcher, version string, log logger.Logger) (*Server, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher cannot be nil")
	}
	if log == nil {
		log = logger.NewNop()
	}
	if version == "" {
		version = "dev"
	}

	s := &Server{
		server:   mcp.NewServer(&mcp.Implementation{Name: implementationName, Version: version}, nil),
		searcher: searcher,
		logger:   log.WithFields(logger.StringField("component", "mcp")),
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        agents.SearchToolName,
		Description: "Find conference sessions relevant to a natural-language request. Only sessions from the event catalog are returned.",
	}, s.findSessions)

	return s, nil
}

func (s *Server) findSessions(ctx context.Context, _ *mcp.CallToolRequest, in FindSessionsInput) (*mcp.CallToolResult, FindSessionsOutput, error) {
	s.logger.Info("Tool call", logger.StringField("tool", agents.SearchToolName), logger.QueryField(in.Query))

	res, err := s.searcher.Search(ctx, search.Request{Query: in.Query, TopK: in.TopK}, nil)
	if err != nil {
		s.logger.Warn("Tool call failed", logger.ErrorField(err))
		return nil, FindSessionsOutput{}, err
	}

	out := FindSessionsOutput{
		ID:       res.ID,
		Summary:  res.Summary,
		Sessions: make([]SessionView, 0, len(res.Sessions)),
	}
	for _, m := range res.Sessions {
		speakers := m.Session.Speakers
		if speakers == nil {
			speakers = []string{}
		}
		out.Sessions = append(out.Sessions, SessionView{
			Title:       m.Session.Title,
			Start:       m.Session.Time.Start,
			End:         m.Session.Time.End,
			Room:        m.Session.Room,
			Speakers:    speakers,
			Description: m.Session.Description,
			MatchReason: m.MatchReason,
		})
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: renderText(out)}},
	}, out, nil
}

// renderText is the human-readable content block that accompanies the
// structured output for clients that ignore structuredContent.
func renderText(out FindSessionsOutput) string {
	var sb strings.Builder
	sb.WriteString(out.Summary)
	for i, v := range out.Sessions {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, v.Title)
		if v.Room != "" {
			fmt.Fprintf(&sb, " (%s)", v.Room)
		}
		if v.MatchReason != "" {
			fmt.Fprintf(&sb, ": %s", v.MatchReason)
		}
	}
	return sb.String()
}

// MCPServer returns the underlying server, used to connect in-process clients.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}

// RunStdio serves a single client over stdin/stdout until ctx is cancelled
// or the client disconnects.
func (s *Server) RunStdio(ctx context.Context) error {
	s.logger.Info("Serving MCP over stdio")
	if err := s.server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp stdio server failed: %w", err)
	}
	return nil
}

// HTTPHandler serves the streamable HTTP transport. Stateless handlers need
// no session affinity behind a load balancer.
func (s *Server) HTTPHandler(stateless bool) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, &mcp.StreamableHTTPOptions{Stateless: stateless})
}
