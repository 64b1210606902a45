package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// GitFileProvider implements FileProvider backed by a git repository, which
// is how a curated catalog and its source documents are usually versioned.
// Each write/delete operation creates a commit automatically.
type GitFileProvider struct {
	repoPath string
	tree     dirTree
	repo     *git.Repository
	author   object.Signature
	// serialises worktree mutations; go-git's index is not safe for concurrent use
	mu sync.Mutex
}

// GitProviderOptions holds options for creating a GitFileProvider.
type GitProviderOptions struct {
	// Path is the path to the git repository.
	Path string
	// AuthorName is the name used for commits.
	AuthorName string
	// AuthorEmail is the email used for commits.
	AuthorEmail string
	// InitIfMissing initializes a new repo if the path doesn't contain one.
	InitIfMissing bool
	// RemoteURL, when set and Path holds no repository, is cloned into Path.
	RemoteURL string
	// Branch to check out when cloning. Empty uses the remote HEAD.
	Branch string
	// Username and Password enable HTTPS basic auth (password may be a token).
	Username string
	Password string
}

// NewGitFileProvider creates a new git-backed file provider.
func NewGitFileProvider(opts GitProviderOptions) (*GitFileProvider, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("repository path is required")
	}

	// Set defaults for author info
	authorName := opts.AuthorName
	if authorName == "" {
		authorName = "session-concierge"
	}
	authorEmail := opts.AuthorEmail
	if authorEmail == "" {
		authorEmail = "concierge@localhost"
	}

	var repo *git.Repository
	var err error

	// Try to open existing repository
	repo, err = git.PlainOpen(opts.Path)
	if err != nil {
		switch {
		case errors.Is(err, git.ErrRepositoryNotExists) && opts.RemoteURL != "":
			repo, err = cloneRepository(opts)
			if err != nil {
				return nil, err
			}
		case errors.Is(err, git.ErrRepositoryNotExists) && opts.InitIfMissing:
			// Create directory if needed
			if err := os.MkdirAll(opts.Path, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create repository directory: %w", err)
			}
			// Initialize new repository
			repo, err = git.PlainInit(opts.Path, false)
			if err != nil {
				return nil, fmt.Errorf("failed to initialize git repository: %w", err)
			}
		default:
			return nil, fmt.Errorf("failed to open git repository: %w", err)
		}
	}

	return &GitFileProvider{
		repoPath: opts.Path,
		tree:     dirTree(opts.Path),
		repo:     repo,
		author:   object.Signature{Name: authorName, Email: authorEmail},
	}, nil
}

func cloneRepository(opts GitProviderOptions) (*git.Repository, error) {
	cloneOpts := &git.CloneOptions{
		URL: opts.RemoteURL,
	}
	if opts.Branch != "" {
		cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(opts.Branch)
		cloneOpts.SingleBranch = true
	}
	if opts.Username != "" || opts.Password != "" {
		cloneOpts.Auth = &githttp.BasicAuth{Username: opts.Username, Password: opts.Password}
	}

	repo, err := git.PlainClone(opts.Path, false, cloneOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to clone %s: %w", opts.RemoteURL, err)
	}
	return repo, nil
}

func (p *GitFileProvider) Read(_ context.Context, path string) ([]byte, error) {
	return p.tree.read(path)
}

// Write updates the working tree and commits the file.
func (p *GitFileProvider) Write(_ context.Context, path string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.tree.write(path, data); err != nil {
		return err
	}
	return p.commit("write", path, func(wt *git.Worktree) error {
		_, err := wt.Add(path)
		return err
	})
}

func (p *GitFileProvider) Exists(_ context.Context, path string) (bool, error) {
	return p.tree.exists(path)
}

// Delete removes the file and commits the deletion. Missing files are ignored.
func (p *GitFileProvider) Delete(_ context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed, err := p.tree.remove(path)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	if !removed {
		return nil
	}
	return p.commit("delete", path, func(wt *git.Worktree) error {
		_, err := wt.Remove(path)
		if err != nil && untracked(err) {
			return nil
		}
		return err
	})
}

// List walks the working tree, skipping the .git directory.
func (p *GitFileProvider) List(_ context.Context, prefix string) ([]string, error) {
	return p.tree.list(prefix, ".git")
}

// commit stages a change with stage and records it as "concierge: <op> <path>".
// Callers hold p.mu.
func (p *GitFileProvider) commit(op, path string, stage func(*git.Worktree) error) error {
	wt, err := p.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if err := stage(wt); err != nil {
		return fmt.Errorf("failed to stage %s: %w", path, err)
	}

	author := p.author
	author.When = time.Now()
	_, err = wt.Commit(fmt.Sprintf("concierge: %s %s", op, path), &git.CommitOptions{Author: &author})
	if errors.Is(err, git.ErrEmptyCommit) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to commit %s: %w", path, err)
	}
	return nil
}

// untracked reports a removal of a file git never knew about.
func untracked(err error) bool {
	return errors.Is(err, index.ErrEntryNotFound) ||
		errors.Is(err, fs.ErrNotExist) ||
		strings.Contains(err.Error(), "file does not exist")
}
