package agents

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"google.golang.org/adk/session"

	"github.com/lewisedginton/session_concierge/internal/memory_store"
	"github.com/lewisedginton/session_concierge/pkg/logger"
)

// DefaultHistoryLimit is how many stored messages are replayed to the agent.
const DefaultHistoryLimit = 10

// ErrSessionNotFound is returned by Get for a thread that was never created.
var ErrSessionNotFound = errors.New("session not found")

// SessionOptions configures a ThreadSessionService.
type SessionOptions struct {
	// HistoryLimit of 0 selects DefaultHistoryLimit
	HistoryLimit int
	// AgentName authors replayed assistant messages; it must match the
	// running agent or the history is presented as another agent's.
	AgentName string
	// LiveTTL bounds how long a loaded session stays addressable by
	// AppendEvent (15m).
	LiveTTL time.Duration
	Logger  logger.Logger
}

// ThreadSessionService implements session.Service over a memory store. The
// thread id is the session id; app and user only scope the in-flight cache.
// Each completed event is persisted as one memory-dialect message.
type ThreadSessionService struct {
	store        memory_store.Store
	historyLimit int
	agentName    string
	live         *cache.Cache
	log          logger.Logger
}

// NewThreadSessionService creates a session service over store.
func NewThreadSessionService(store memory_store.Store, opts SessionOptions) (*ThreadSessionService, error) {
	if store == nil {
		return nil, fmt.Errorf("memory store cannot be nil")
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.AgentName == "" {
		opts.AgentName = AgentName
	}
	if opts.LiveTTL <= 0 {
		opts.LiveTTL = 15 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}

	return &ThreadSessionService{
		store:        store,
		historyLimit: opts.HistoryLimit,
		agentName:    opts.AgentName,
		live:         cache.New(opts.LiveTTL, 2*opts.LiveTTL),
		log:          opts.Logger.WithFields(logger.StringField("component", "session_service")),
	}, nil
}

// Create starts the thread named by req.SessionID, or loads it when it
// already exists.
func (s *ThreadSessionService) Create(ctx context.Context, req *session.CreateRequest) (*session.CreateResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("create request cannot be nil")
	}
	if req.AppName == "" {
		return nil, fmt.Errorf("app name is required")
	}
	if req.UserID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	if req.SessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	if err := s.store.Append(ctx, req.SessionID); err != nil {
		return nil, fmt.Errorf("failed to create thread: %w", err)
	}
	sess, _, err := s.load(ctx, req.AppName, req.UserID, req.SessionID)
	if err != nil {
		return nil, err
	}
	for k, v := range req.State {
		sess.state[k] = v
	}

	s.log.Info("Created session", logger.ThreadIDField(req.SessionID), logger.StringField("user_id", req.UserID))
	return &session.CreateResponse{Session: sess}, nil
}

// Get loads the recent history of a thread. A thread that does not exist
// yields ErrSessionNotFound.
func (s *ThreadSessionService) Get(ctx context.Context, req *session.GetRequest) (*session.GetResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("get request cannot be nil")
	}

	sess, exists, err := s.load(ctx, req.AppName, req.UserID, req.SessionID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, req.SessionID)
	}
	return &session.GetResponse{Session: sess}, nil
}

// List is not supported; threads are only addressed by id.
func (s *ThreadSessionService) List(context.Context, *session.ListRequest) (*session.ListResponse, error) {
	return nil, fmt.Errorf("listing threads: %w", errors.ErrUnsupported)
}

// Delete is not supported; the memory store is append-only.
func (s *ThreadSessionService) Delete(context.Context, *session.DeleteRequest) error {
	return fmt.Errorf("deleting threads: %w", errors.ErrUnsupported)
}

// AppendEvent records event on the in-flight session and persists it.
// Partial events are streaming fragments and are skipped.
func (s *ThreadSessionService) AppendEvent(ctx context.Context, sess session.Session, event *session.Event) error {
	if sess == nil {
		return fmt.Errorf("session cannot be nil")
	}
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Partial {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if ts := s.inFlight(sess); ts != nil {
		ts.append(event)
	}

	msg, ok, err := eventMessage(event)
	if err != nil {
		return fmt.Errorf("failed to convert event %s: %w", event.ID, err)
	}
	if !ok {
		return nil
	}
	if err := s.store.Append(ctx, sess.ID(), msg); err != nil {
		s.log.Error("Failed to persist event",
			logger.ThreadIDField(sess.ID()),
			logger.StringField("author", event.Author),
			logger.ErrorField(err))
		return fmt.Errorf("failed to persist event: %w", err)
	}

	s.log.Debug("Appended event",
		logger.ThreadIDField(sess.ID()),
		logger.StringField("author", event.Author),
		logger.StringField("role", string(msg.Role)))
	return nil
}

// inFlight returns the session the runner is working on, whether it was
// handed back directly or wrapped.
func (s *ThreadSessionService) inFlight(sess session.Session) *threadSession {
	if ts, ok := sess.(*threadSession); ok {
		return ts
	}
	if v, ok := s.live.Get(liveKey(sess.AppName(), sess.UserID(), sess.ID())); ok {
		return v.(*threadSession)
	}
	return nil
}

func (s *ThreadSessionService) load(ctx context.Context, appName, userID, threadID string) (*threadSession, bool, error) {
	start := time.Now()
	stored, exists, err := s.store.Query(ctx, threadID, s.historyLimit)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load thread: %w", err)
	}

	events := historyEvents(stored, s.agentName)
	sess := &threadSession{
		appName: appName,
		userID:  userID,
		id:      threadID,
		events:  events,
		state:   map[string]any{},
		updated: time.Now(),
	}
	if n := len(stored); n > 0 {
		sess.updated = stored[n-1].CreatedAt
	}
	s.live.SetDefault(liveKey(appName, userID, threadID), sess)

	s.log.Debug("Loaded session history",
		logger.ThreadIDField(threadID),
		logger.BoolField("exists", exists),
		logger.IntField("stored", len(stored)),
		logger.IntField("events", len(events)),
		logger.DurationField("duration", time.Since(start)))
	return sess, exists, nil
}

func liveKey(appName, userID, threadID string) string {
	return appName + "/" + userID + "/" + threadID
}

// threadSession implements session.Session. Its state and event views share
// the session's lock so events appended during a run are visible to the
// agent on its next model call.
type threadSession struct {
	appName string
	userID  string
	id      string

	mu      sync.RWMutex
	events  []*session.Event
	state   map[string]any
	updated time.Time
}

func (s *threadSession) ID() string             { return s.id }
func (s *threadSession) AppName() string        { return s.appName }
func (s *threadSession) UserID() string         { return s.userID }
func (s *threadSession) State() session.State   { return sessionState{s} }
func (s *threadSession) Events() session.Events { return eventLog{s} }

func (s *threadSession) LastUpdateTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated
}

func (s *threadSession) append(event *session.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	s.updated = event.Timestamp
	for k, v := range event.Actions.StateDelta {
		s.state[k] = v
	}
}

type sessionState struct{ s *threadSession }

func (st sessionState) Get(key string) (any, error) {
	st.s.mu.RLock()
	defer st.s.mu.RUnlock()

	v, ok := st.s.state[key]
	if !ok {
		return nil, fmt.Errorf("key %s does not exist", key)
	}
	return v, nil
}

func (st sessionState) Set(key string, value any) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()

	st.s.state[key] = value
	return nil
}

func (st sessionState) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		st.s.mu.RLock()
		snapshot := make(map[string]any, len(st.s.state))
		for k, v := range st.s.state {
			snapshot[k] = v
		}
		st.s.mu.RUnlock()

		for k, v := range snapshot {
			if !yield(k, v) {
				return
			}
		}
	}
}

type eventLog struct{ s *threadSession }

func (l eventLog) All() iter.Seq[*session.Event] {
	return func(yield func(*session.Event) bool) {
		l.s.mu.RLock()
		snapshot := append([]*session.Event(nil), l.s.events...)
		l.s.mu.RUnlock()

		for _, e := range snapshot {
			if !yield(e) {
				return
			}
		}
	}
}

func (l eventLog) Len() int {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	return len(l.s.events)
}

func (l eventLog) At(i int) *session.Event {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	if i < 0 || i >= len(l.s.events) {
		return nil
	}
	return l.s.events[i]
}
