package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import "context"

// PrefixedFileProvider scopes another provider to a sub-directory, which is
// how each namespace (catalog, documents, memory ...) gets isolated storage
// over a shared backend.
type PrefixedFileProvider struct {
	provider FileProvider
	prefix   string
}

// NewPrefixedFileProvider creates a new prefixed file provider.
func NewPrefixedFileProvider(provider FileProvider, prefix string) *PrefixedFileProvider {
	return &PrefixedFileProvider{provider: provider, prefix: prefix}
}

func (p *PrefixedFileProvider) key(path string) string {
	return joinKey(p.prefix, path)
}

func (p *PrefixedFileProvider) Read(ctx context.Context, path string) ([]byte, error) {
	return p.provider.Read(ctx, p.key(path))
}

func (p *PrefixedFileProvider) Write(ctx context.Context, path string, data []byte) error {
	return p.provider.Write(ctx, p.key(path), data)
}

func (p *PrefixedFileProvider) Exists(ctx context.Context, path string) (bool, error) {
	return p.provider.Exists(ctx, p.key(path))
}

func (p *PrefixedFileProvider) Delete(ctx context.Context, path string) error {
	return p.provider.Delete(ctx, p.key(path))
}

func (p *PrefixedFileProvider) List(ctx context.Context, prefix string) ([]string, error) {
	files, err := p.provider.List(ctx, p.key(prefix))
	if err != nil {
		return nil, err
	}
	return trimKeys(files, p.key("")), nil
}
