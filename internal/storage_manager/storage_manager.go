package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// BackendType represents the type of storage backend.
type BackendType string

const (
	// BackendLocal uses the local filesystem for storage.
	BackendLocal BackendType = "local"
	// BackendS3 uses AWS S3 (or an S3-compatible endpoint) for storage.
	BackendS3 BackendType = "s3"
	// BackendGit uses a git working tree; writes are committed.
	BackendGit BackendType = "git"
)

// Namespaces handed out by GetProvider.
const (
	NamespaceCatalog   = "catalog"
	NamespaceDocuments = "documents"
	NamespaceIndex     = "index"
	NamespaceMemory    = "memory"
	NamespacePrompts   = "prompts"
)

// Config holds the configuration for the StorageManager.
type Config struct {
	Backend BackendType

	LocalConfig *LocalConfig
	S3Config    *S3Config
	GitConfig   *GitProviderOptions
}

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BaseDir is the root directory for all storage.
	BaseDir string
}

// S3Config holds configuration for S3 storage.
type S3Config struct {
	Bucket string
	// Prefix is an optional prefix for all keys in the bucket.
	Prefix string
	// Client is the AWS S3 client. Use NewS3Client to build one from settings.
	Client *s3.Client
}

// S3ClientOptions are the settings NewS3Client understands.
type S3ClientOptions struct {
	Region  string
	Profile string
	// Endpoint targets an S3-compatible store such as MinIO.
	Endpoint     string
	UsePathStyle bool
}

// NewS3Client loads the default AWS credential chain and builds an S3 client.
func NewS3Client(ctx context.Context, opts S3ClientOptions) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	}), nil
}

// StorageManager creates prefix-scoped file providers over a single backend.
type StorageManager struct {
	config   Config
	provider FileProvider
}

// New creates a new StorageManager with the given configuration.
func New(config Config) (*StorageManager, error) {
	var provider FileProvider

	switch config.Backend {
	case BackendLocal:
		if config.LocalConfig == nil {
			return nil, fmt.Errorf("local config is required for local backend")
		}
		if config.LocalConfig.BaseDir == "" {
			return nil, fmt.Errorf("base directory is required for local backend")
		}
		provider = NewLocalFileProvider(config.LocalConfig.BaseDir)

	case BackendS3:
		if config.S3Config == nil {
			return nil, fmt.Errorf("s3 config is required for s3 backend")
		}
		if config.S3Config.Bucket == "" {
			return nil, fmt.Errorf("bucket is required for s3 backend")
		}
		if config.S3Config.Client == nil {
			return nil, fmt.Errorf("s3 client is required for s3 backend")
		}
		s3Client := NewAWSS3Client(config.S3Config.Client)
		provider = NewS3FileProvider(config.S3Config.Bucket, config.S3Config.Prefix, s3Client)

	case BackendGit:
		if config.GitConfig == nil {
			return nil, fmt.Errorf("git config is required for git backend")
		}
		gitProvider, err := NewGitFileProvider(*config.GitConfig)
		if err != nil {
			return nil, err
		}
		provider = gitProvider

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Backend)
	}

	return &StorageManager{
		config:   config,
		provider: provider,
	}, nil
}

// NewWithProvider wraps a custom FileProvider, mostly for tests.
func NewWithProvider(provider FileProvider) *StorageManager {
	return &StorageManager{
		provider: provider,
	}
}

// GetProvider returns a FileProvider scoped to namespace, e.g. NamespaceCatalog.
func (m *StorageManager) GetProvider(namespace string) FileProvider {
	if namespace == "" {
		return m.provider
	}
	return NewPrefixedFileProvider(m.provider, namespace)
}

// GetRootProvider returns the root FileProvider without any prefix.
func (m *StorageManager) GetRootProvider() FileProvider {
	return m.provider
}

// Backend returns the configured backend type.
func (m *StorageManager) Backend() BackendType {
	return m.config.Backend
}
