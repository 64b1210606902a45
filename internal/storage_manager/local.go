package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// dirTree is the filesystem logic shared by the local and git providers.
type dirTree string

func (d dirTree) abs(path string) string {
	return filepath.Join(string(d), filepath.FromSlash(path))
}

func (d dirTree) read(path string) ([]byte, error) {
	full := d.abs(path)
	data, err := os.ReadFile(full) //nolint:gosec // G304: Path is constructed from a trusted base directory
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, full)
	}
	return data, err
}

func (d dirTree) write(path string, data []byte) error {
	full := d.abs(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return os.WriteFile(full, data, 0o600)
}

func (d dirTree) exists(path string) (bool, error) {
	_, err := os.Stat(d.abs(path))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// remove reports whether a file was actually removed.
func (d dirTree) remove(path string) (bool, error) {
	err := os.Remove(d.abs(path))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// list walks prefix and returns sorted slash paths relative to the root.
// Directories named in skip are not descended into.
func (d dirTree) list(prefix string, skip ...string) ([]string, error) {
	root := string(d)
	result := []string{}
	err := filepath.WalkDir(d.abs(prefix), func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if entry.IsDir() {
			for _, s := range skip {
				if entry.Name() == s {
					return filepath.SkipDir
				}
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		result = append(result, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(result)
	return result, nil
}

// LocalFileProvider stores files under a directory on disk.
type LocalFileProvider struct {
	tree dirTree
}

// NewLocalFileProvider creates a new local file provider.
func NewLocalFileProvider(baseDir string) *LocalFileProvider {
	return &LocalFileProvider{tree: dirTree(baseDir)}
}

func (p *LocalFileProvider) Read(_ context.Context, path string) ([]byte, error) {
	return p.tree.read(path)
}

func (p *LocalFileProvider) Write(_ context.Context, path string, data []byte) error {
	return p.tree.write(path, data)
}

func (p *LocalFileProvider) Exists(_ context.Context, path string) (bool, error) {
	return p.tree.exists(path)
}

func (p *LocalFileProvider) Delete(_ context.Context, path string) error {
	_, err := p.tree.remove(path)
	return err
}

func (p *LocalFileProvider) List(_ context.Context, prefix string) ([]string, error) {
	return p.tree.list(prefix)
}
