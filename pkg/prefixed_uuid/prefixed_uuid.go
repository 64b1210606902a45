// Package prefixed_uuid provides UUID identifiers carrying a type prefix,
// such as "search-3f2a...". The prefix makes IDs in logs and APIs self-describing.
package prefixed_uuid

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Prefixes used across the service.
const (
	PrefixSearch  = "search"
	PrefixRun     = "run"
	PrefixMessage = "msg"
)

const uuidLen = 36

// PrefixedUUID represents a UUID with a prefix string.
type PrefixedUUID struct {
	Prefix string
	UUID   uuid.UUID
}

// New creates a new PrefixedUUID with the given prefix and a random UUID.
func New(prefix string) PrefixedUUID {
	return PrefixedUUID{
		Prefix: prefix,
		UUID:   uuid.New(),
	}
}

// NewString is shorthand for New(prefix).String().
func NewString(prefix string) string {
	return New(prefix).String()
}

// FromUUID creates a PrefixedUUID from an existing UUID and prefix.
func FromUUID(prefix string, id uuid.UUID) PrefixedUUID {
	return PrefixedUUID{
		Prefix: prefix,
		UUID:   id,
	}
}

// FromString parses "prefix-uuid". The UUID is taken from the last 36
// characters, so prefixes may themselves contain hyphens.
func FromString(s string) (PrefixedUUID, error) {
	if len(s) < uuidLen+2 || s[len(s)-uuidLen-1] != '-' {
		return PrefixedUUID{}, fmt.Errorf("invalid prefixed UUID format: %q", s)
	}

	prefix := s[:len(s)-uuidLen-1]
	parsedUUID, err := uuid.Parse(s[len(s)-uuidLen:])
	if err != nil {
		return PrefixedUUID{}, fmt.Errorf("invalid UUID: %w", err)
	}

	return PrefixedUUID{
		Prefix: prefix,
		UUID:   parsedUUID,
	}, nil
}

// Parse is FromString that also requires the given prefix.
func Parse(s, wantPrefix string) (PrefixedUUID, error) {
	p, err := FromString(s)
	if err != nil {
		return PrefixedUUID{}, err
	}
	if p.Prefix != wantPrefix {
		return PrefixedUUID{}, fmt.Errorf("expected prefix %q, got %q", wantPrefix, p.Prefix)
	}
	return p, nil
}

// RawUUID returns the underlying UUID without the prefix.
func (p PrefixedUUID) RawUUID() uuid.UUID {
	return p.UUID
}

// String returns the prefixed UUID in the format "prefix-uuid".
func (p PrefixedUUID) String() string {
	return p.Prefix + "-" + p.UUID.String()
}

// IsZero returns true if the PrefixedUUID is uninitialized.
func (p PrefixedUUID) IsZero() bool {
	return p.Prefix == "" && p.UUID == uuid.Nil
}

// Equal returns true if two PrefixedUUIDs are equal.
func (p PrefixedUUID) Equal(other PrefixedUUID) bool {
	return p.Prefix == other.Prefix && p.UUID == other.UUID
}

// MarshalJSON serialises the PrefixedUUID as a JSON string.
func (p PrefixedUUID) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts a JSON string in "prefix-uuid" form.
func (p *PrefixedUUID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("prefixed UUID must be a JSON string: %w", err)
	}

	parsed, err := FromString(s)
	if err != nil {
		return err
	}

	*p = parsed
	return nil
}
