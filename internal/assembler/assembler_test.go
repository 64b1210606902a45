package assembler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/session_concierge/internal/catalog"
)

func ms(title, reason string) catalog.MatchedSession {
	return catalog.MatchedSession{
		Session:     catalog.Session{Title: title, Speakers: []string{"Ada"}},
		MatchReason: reason,
	}
}

func titles(in []catalog.MatchedSession) []string {
	out := make([]string, len(in))
	for i, m := range in {
		out[i] = m.Session.Title
	}
	return out
}

func TestAssemble(t *testing.T) {
	tests := []struct {
		name  string
		input []catalog.MatchedSession
		want  []string
	}{
		{"nil", nil, []string{}},
		{"empty", []catalog.MatchedSession{}, []string{}},
		{"unique", []catalog.MatchedSession{ms("a", ""), ms("b", "")}, []string{"a", "b"}},
		{"duplicates keep first", []catalog.MatchedSession{ms("b", "1"), ms("a", ""), ms("b", "2"), ms("c", ""), ms("a", "")}, []string{"b", "a", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Assemble(tt.input)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, titles(got))
			assert.Equal(t, got, Assemble(got), "idempotent")
		})
	}
}

func TestAssemble_FirstReasonWins(t *testing.T) {
	got := Assemble([]catalog.MatchedSession{ms("a", "first"), ms("a", "second")})
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].MatchReason)
}

func TestAssemble_DoesNotAlias(t *testing.T) {
	in := []catalog.MatchedSession{ms("a", "")}
	out := Assemble(in)
	out[0].Session.Speakers[0] = "Grace"
	out[0].Session.Title = "changed"

	assert.Equal(t, "Ada", in[0].Session.Speakers[0])
	assert.Equal(t, "a", in[0].Session.Title)
}

func TestAssemble_EmptyEncodesAsArray(t *testing.T) {
	b, err := json.Marshal(Assemble(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(b))
}

func TestSessions(t *testing.T) {
	got := Sessions([]catalog.MatchedSession{ms("a", "r"), ms("b", "")})
	assert.Equal(t, []string{"a", "b"}, []string{got[0].Title, got[1].Title})
	assert.NotNil(t, Sessions(nil))
}
