// Package textgen defines the text-generation contract used by the assisted
// matcher. Provider implementations live under internal/models.
package textgen

import (
	"context"
	"strings"
)

// Request is a single-turn generation request.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int
}

// TokenFunc observes streamed tokens as they arrive. It must not block.
type TokenFunc func(token string)

// Generator produces a complete response. Implementations stream internally,
// forward each token to onToken when it is non-nil, and return only after the
// stream has finished.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request, onToken TokenFunc) (string, error)
}

// Accumulator buffers a token stream while forwarding tokens to an observer.
type Accumulator struct {
	b       strings.Builder
	onToken TokenFunc
	tokens  int
}

// NewAccumulator returns an Accumulator forwarding to onToken, which may be nil.
func NewAccumulator(onToken TokenFunc) *Accumulator {
	return &Accumulator{onToken: onToken}
}

// Add appends a token. Empty tokens are ignored.
func (a *Accumulator) Add(token string) {
	if token == "" {
		return
	}
	a.tokens++
	a.b.WriteString(token)
	if a.onToken != nil {
		a.onToken(token)
	}
}

// String returns everything buffered so far.
func (a *Accumulator) String() string {
	return a.b.String()
}

// Tokens is the number of non-empty tokens seen.
func (a *Accumulator) Tokens() int {
	return a.tokens
}
