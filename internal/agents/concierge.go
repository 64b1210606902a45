// Package agents builds the conversational concierge: an LLM agent that
// answers attendees through a session search tool, with its history kept in
// the thread memory store.
package agents

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"

	"github.com/lewisedginton/session_concierge/internal/catalog"
	"github.com/lewisedginton/session_concierge/internal/search"
	"github.com/lewisedginton/session_concierge/internal/textgen"
	"github.com/lewisedginton/session_concierge/pkg/logger"
)

const (
	// AgentName is also the author of every assistant event in a thread.
	AgentName        = "session_concierge"
	AgentDescription = "Finds event sessions that match what an attendee is looking for"

	// SearchToolName is the tool the agent calls to search the catalog.
	SearchToolName        = "find_sessions"
	searchToolDescription = "Search the event schedule for sessions matching the user's interests. " +
		"Returns the scheduled sessions with times, rooms, speakers and descriptions."
)

// DefaultInstruction is used when no agent.md override is stored. The agent
// framework treats curly braces as state placeholders, so keep them out.
const DefaultInstruction = `You are a friendly assistant that helps attendees find sessions at the event.

You have one tool, find_sessions, which searches the event schedule including sessions, speakers, rooms and times.
The sessions it finds are shown to the user separately, so after calling it only tell the user how many sessions were found.

Rules:
- Call find_sessions whenever the user asks about sessions, talks, topics, speakers or the schedule.
- If no sessions are found, let the user know and suggest rephrasing.
- Be friendly and helpful.
- Do not summarise or list the sessions returned by the tool.`

// Searcher runs the search pipeline.
type Searcher interface {
	Search(ctx context.Context, req search.Request, onToken textgen.TokenFunc) (search.Result, error)
}

// ToolOptions scopes one search tool instance to a conversation.
type ToolOptions struct {
	ThreadID string
	// TopK is used when the model does not ask for a count
	TopK int
	// OnResult receives every successful search, in call order
	OnResult func(search.Result)
	Logger   logger.Logger
}

// FindSessionsArgs are the tool arguments the model fills in.
type FindSessionsArgs struct {
	Query string `json:"query" jsonschema:"What the user is looking for, in their own words"`
	TopK  int    `json:"topK,omitempty" jsonschema:"How many sessions to return, leave unset for the default"`
}

// FindSessionsResult is what the model sees after a search.
type FindSessionsResult struct {
	SearchID string                   `json:"searchId,omitempty"`
	Count    int                      `json:"count"`
	Summary  string                   `json:"summary,omitempty"`
	Sessions []catalog.MatchedSession `json:"sessions"`
	Error    string                   `json:"error,omitempty"`
}

// NewSearchTool creates the find_sessions tool over searcher.
func NewSearchTool(searcher Searcher, opts ToolOptions) (tool.Tool, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher cannot be nil")
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	log = log.WithFields(logger.StringField("component", "search_tool"), logger.ThreadIDField(opts.ThreadID))

	return functiontool.New(functiontool.Config{
		Name:        SearchToolName,
		Description: searchToolDescription,
	}, func(ctx tool.Context, args FindSessionsArgs) (FindSessionsResult, error) {
		return findSessions(ctx, searcher, opts, log, args), nil
	})
}

// findSessions reports failures in the result so the model can tell the user.
func findSessions(ctx context.Context, searcher Searcher, opts ToolOptions, log logger.Logger, args FindSessionsArgs) FindSessionsResult {
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return FindSessionsResult{Sessions: []catalog.MatchedSession{}, Error: "query is required"}
	}
	topK := args.TopK
	if topK <= 0 {
		topK = opts.TopK
	}

	res, err := searcher.Search(ctx, search.Request{Query: query, TopK: topK, ThreadID: opts.ThreadID}, nil)
	if err != nil {
		log.Error("Search tool failed", logger.QueryField(query), logger.ErrorField(err))
		return FindSessionsResult{Sessions: []catalog.MatchedSession{}, Error: "search failed: " + err.Error()}
	}

	log.Debug("Search tool finished",
		logger.SearchIDField(res.ID),
		logger.IntField("sessions", len(res.Sessions)),
		logger.BoolField("cached", res.Cached))
	if opts.OnResult != nil {
		opts.OnResult(res)
	}

	sessions := res.Sessions
	if sessions == nil {
		sessions = []catalog.MatchedSession{}
	}
	return FindSessionsResult{
		SearchID: res.ID,
		Count:    len(sessions),
		Summary:  res.Summary,
		Sessions: sessions,
	}
}

// NewConciergeAgent creates the concierge over llm. An empty instruction
// selects DefaultInstruction.
func NewConciergeAgent(llm model.LLM, instruction string, tools ...tool.Tool) (agent.Agent, error) {
	if llm == nil {
		return nil, fmt.Errorf("model cannot be nil")
	}
	if strings.TrimSpace(instruction) == "" {
		instruction = DefaultInstruction
	}

	return llmagent.New(llmagent.Config{
		Name:        AgentName,
		Model:       llm,
		Description: AgentDescription,
		Instruction: instruction,
		Tools:       tools,
	})
}

// NewFactory returns a constructor for per-turn concierge agents, each with
// a search tool scoped to the turn's thread.
func NewFactory(llm model.LLM, searcher Searcher, instruction string) func(ToolOptions) (agent.Agent, error) {
	return func(opts ToolOptions) (agent.Agent, error) {
		searchTool, err := NewSearchTool(searcher, opts)
		if err != nil {
			return nil, err
		}
		return NewConciergeAgent(llm, instruction, searchTool)
	}
}
