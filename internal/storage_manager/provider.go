// Package storage_manager provides the file storage abstraction behind the
// catalog, source documents, index manifests and file-backed conversation
// memory. Local, S3 and git backends are supported; components receive
// prefix-scoped providers so they never see each other's files.
package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// ErrNotFound is returned (possibly wrapped) by Read when the file does not
// exist, whatever the backend.
var ErrNotFound = errors.New("file not found")

// FileProvider is the storage contract every backend satisfies. Paths are
// slash separated and relative to the provider's root.
type FileProvider interface {
	Read(ctx context.Context, path string) ([]byte, error)
	// Write creates or replaces path, creating parent directories as needed
	Write(ctx context.Context, path string, data []byte) error
	Exists(ctx context.Context, path string) (bool, error)
	// Delete is a no-op for missing files
	Delete(ctx context.Context, path string) error
	// List returns the files under prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)
}

// ReadJSON decodes the JSON document at path into v.
func ReadJSON(ctx context.Context, p FileProvider, path string, v any) error {
	data, err := p.Read(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// ReadJSONIfExists is ReadJSON that reports a missing file as (false, nil)
// and leaves v untouched.
func ReadJSONIfExists(ctx context.Context, p FileProvider, path string, v any) (bool, error) {
	err := ReadJSON(ctx, p, path, v)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// WriteJSON stores v as indented JSON at path.
func WriteJSON(ctx context.Context, p FileProvider, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return p.Write(ctx, path, data)
}

func joinKey(prefix, path string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return path
	}
	return prefix + "/" + strings.TrimPrefix(path, "/")
}

// trimKeys strips prefix from every key, dropping keys that are the prefix itself.
func trimKeys(keys []string, prefix string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) || len(k) == len(prefix) {
			continue
		}
		out = append(out, k[len(prefix):])
	}
	return out
}
