// Package catalog holds the read-only list of event sessions. It is the
// single source of truth every search result is reconciled against.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/lewisedginton/session_concierge/internal/storage_manager"
)

var (
	// ErrSessionNotFound is returned when a title or index has no catalog entry.
	ErrSessionNotFound = errors.New("session not found in catalog")
	// ErrDuplicateTitle is returned when two sessions share a title.
	ErrDuplicateTitle = errors.New("duplicate session title")
	// ErrEmptyTitle is returned when a session has no title.
	ErrEmptyTitle = errors.New("session title is empty")
)

// TimeRange is a session's schedule slot. Values are kept as the strings the
// catalog was authored with (e.g. "2025-11-06 09:30").
type TimeRange struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// Session is one scheduled event. Identity is the exact Title.
type Session struct {
	Title       string    `json:"title" yaml:"title"`
	Time        TimeRange `json:"time" yaml:"time"`
	Room        string    `json:"room" yaml:"room"`
	Speakers    []string  `json:"speakers" yaml:"speakers"`
	Description string    `json:"description" yaml:"description"`
}

// Clone returns a copy that shares no slices with s.
func (s Session) Clone() Session {
	if s.Speakers != nil {
		s.Speakers = append([]string(nil), s.Speakers...)
	}
	return s
}

// MatchedSession is a catalog session selected for a query, with the
// evidence that selected it.
type MatchedSession struct {
	Session     Session `json:"session"`
	MatchReason string  `json:"matchReason,omitempty"`
}

// Catalog is an immutable, index-addressable list of sessions. It is safe for
// concurrent use; every accessor returns copies.
type Catalog struct {
	sessions []Session
	byTitle  map[string]int
}

// New builds a catalog from sessions, rejecting empty and duplicate titles.
func New(sessions []Session) (*Catalog, error) {
	c := &Catalog{
		sessions: make([]Session, 0, len(sessions)),
		byTitle:  make(map[string]int, len(sessions)),
	}
	for i, s := range sessions {
		if strings.TrimSpace(s.Title) == "" {
			return nil, fmt.Errorf("session %d: %w", i, ErrEmptyTitle)
		}
		if prev, ok := c.byTitle[s.Title]; ok {
			return nil, fmt.Errorf("%w: %q at %d and %d", ErrDuplicateTitle, s.Title, prev, i)
		}
		c.byTitle[s.Title] = i
		c.sessions = append(c.sessions, s.Clone())
	}
	return c, nil
}

// MustNew is New for literal data in tests and fixtures.
func MustNew(sessions []Session) *Catalog {
	c, err := New(sessions)
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads a JSON or YAML array of sessions from provider. The format is
// chosen by file extension; anything other than .yaml/.yml is parsed as JSON.
func Load(ctx context.Context, provider storage_manager.FileProvider, file string) (*Catalog, error) {
	data, err := provider.Read(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", file, err)
	}

	var sessions []Session
	switch strings.ToLower(path.Ext(file)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &sessions)
	default:
		err = json.Unmarshal(data, &sessions)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", file, err)
	}

	return New(sessions)
}

// Len returns the number of sessions.
func (c *Catalog) Len() int {
	return len(c.sessions)
}

// At returns the session at index i.
func (c *Catalog) At(i int) (Session, bool) {
	if i < 0 || i >= len(c.sessions) {
		return Session{}, false
	}
	return c.sessions[i].Clone(), true
}

// ByTitle looks a session up by exact title.
func (c *Catalog) ByTitle(title string) (Session, bool) {
	i, ok := c.byTitle[title]
	if !ok {
		return Session{}, false
	}
	return c.sessions[i].Clone(), true
}

// IndexOf returns the catalog position of title, or -1.
func (c *Catalog) IndexOf(title string) int {
	if i, ok := c.byTitle[title]; ok {
		return i
	}
	return -1
}

// Contains reports whether title exists verbatim.
func (c *Catalog) Contains(title string) bool {
	_, ok := c.byTitle[title]
	return ok
}

// Sessions returns a copy of every session in catalog order.
func (c *Catalog) Sessions() []Session {
	out := make([]Session, len(c.sessions))
	for i, s := range c.sessions {
		out[i] = s.Clone()
	}
	return out
}

// SearchableText is the text embedded for a session: title, description and
// speakers separated by spaces.
func SearchableText(s Session) string {
	return s.Title + " " + s.Description + " " + strings.Join(s.Speakers, " ")
}
