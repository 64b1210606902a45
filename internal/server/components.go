package server

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"google.golang.org/adk/model"

	"github.com/lewisedginton/session_concierge/internal/agents"
	"github.com/lewisedginton/session_concierge/internal/catalog"
	appconfig "github.com/lewisedginton/session_concierge/internal/config"
	"github.com/lewisedginton/session_concierge/internal/connectors/executor"
	"github.com/lewisedginton/session_concierge/internal/conversation"
	"github.com/lewisedginton/session_concierge/internal/embedding"
	"github.com/lewisedginton/session_concierge/internal/indexer"
	"github.com/lewisedginton/session_concierge/internal/matcher"
	"github.com/lewisedginton/session_concierge/internal/memory_store"
	"github.com/lewisedginton/session_concierge/internal/models"
	"github.com/lewisedginton/session_concierge/internal/postgres"
	"github.com/lewisedginton/session_concierge/internal/prompt_manager"
	"github.com/lewisedginton/session_concierge/internal/retriever"
	"github.com/lewisedginton/session_concierge/internal/search"
	"github.com/lewisedginton/session_concierge/internal/storage_manager"
	"github.com/lewisedginton/session_concierge/internal/textgen"
	"github.com/lewisedginton/session_concierge/internal/thread_manager"
	"github.com/lewisedginton/session_concierge/internal/vectorindex"
	"github.com/lewisedginton/session_concierge/pkg/health"
	"github.com/lewisedginton/session_concierge/pkg/health/checkers"
	"github.com/lewisedginton/session_concierge/pkg/logger"
	"github.com/lewisedginton/session_concierge/pkg/metrics"
)

// Needs selects which parts of the graph a command builds.
type Needs int

const (
	// NeedSearch builds the catalog, embedder, index and search pipeline.
	NeedSearch Needs = 1 << iota
	// NeedConversation builds the memory store and thread services.
	NeedConversation
	// NeedIndexing builds the catalog, embedder and index without a matcher.
	NeedIndexing
	// NeedDatabase only opens and migrates the database.
	NeedDatabase

	NeedAll = NeedSearch | NeedConversation
)

// Components is the wired object graph shared by the commands. Fields a
// command did not ask for are nil.
type Components struct {
	Config  *appconfig.AppConfig
	Logger  logger.Logger
	Metrics *metrics.Metrics
	Health  *health.HealthChecker

	Storage *storage_manager.StorageManager
	Pool    *pgxpool.Pool
	Redis   redis.UniversalClient

	Catalog   *catalog.Catalog
	Embedder  embedding.Embedder
	Index     vectorindex.Index
	Generator textgen.Generator
	Search    *search.Service

	Memory       memory_store.Store
	Conversation *conversation.Service
	Threads      thread_manager.Manager

	AgentModel model.LLM
	Sessions   *agents.ThreadSessionService
	Executor   *executor.Executor

	closers []func() error
}

// NewComponents builds what needs asks for, in dependency order. On error
// everything opened so far is closed.
//
//nolint:revive // cognitive-complexity: sequential component setup
func NewComponents(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger, needs Needs) (_ *Components, err error) {
	c := &Components{
		Config:  cfg,
		Logger:  log,
		Metrics: metrics.NewMetrics(cfg.Metrics.EnableHTTPMetrics, cfg.Metrics.EnablePipelineMetrics, log),
		Health: health.New(
			health.WithTimeout(cfg.Health.Timeout),
			health.WithFailureThreshold(cfg.Health.FailureThreshold),
			health.WithLogger(log),
			health.WithService(cfg.ServiceName, cfg.Version),
		),
	}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	usesIndex := needs&(NeedSearch|NeedIndexing) != 0
	usesMemory := needs&NeedConversation != 0
	// the database is only opened when a requested part stores data there
	needsPool := needs&NeedDatabase != 0 ||
		(usesIndex && cfg.Vector.Backend == appconfig.VectorBackendPGVector) ||
		(usesMemory && cfg.Memory.Backend == appconfig.MemoryBackendPostgres)

	if c.Storage, err = newStorageManager(ctx, cfg.Storage, log); err != nil {
		return nil, fmt.Errorf("failed to create storage manager: %w", err)
	}

	if needsPool {
		if err = c.openDatabase(ctx); err != nil {
			return nil, err
		}
	}

	if cfg.Redis.Enabled() {
		c.Redis = newRedisClient(cfg.Redis)
		c.closers = append(c.closers, c.Redis.Close)
		c.Health.Add(checkers.NewRedisChecker(c.Redis, "redis"), health.Readiness)
	}

	if usesIndex {
		if err = c.buildIndex(ctx); err != nil {
			return nil, err
		}
	}
	if needs&NeedSearch != 0 {
		if err = c.buildSearch(ctx); err != nil {
			return nil, err
		}
	}

	if usesMemory {
		if err = c.buildConversation(ctx); err != nil {
			return nil, err
		}
	}

	if c.Search != nil && c.Memory != nil {
		if err = c.buildAgent(ctx); err != nil {
			return nil, err
		}
	}

	c.Health.Add(health.NewCheckFunc("process", func(context.Context) error { return nil }), health.Liveness)
	if cfg.Health.LLMCheckURL != "" {
		c.Health.Add(checkers.NewHTTPChecker(cfg.Health.LLMCheckURL, "llm"), health.Readiness)
	}

	return c, nil
}

func (c *Components) openDatabase(ctx context.Context) error {
	pool, err := postgres.Open(ctx, c.Config.Database, c.Logger)
	if err != nil {
		return err
	}
	c.Pool = pool
	c.closers = append(c.closers, func() error { pool.Close(); return nil })
	c.Health.Add(checkers.NewPostgresChecker(pool, "postgres"), health.Readiness)
	return nil
}

// Migrate applies the schema of every Postgres-backed component.
func (c *Components) Migrate() error {
	if c.Pool == nil {
		return fmt.Errorf("no database configured")
	}
	mm := postgres.NewMigrationManager(c.Pool, c.Logger)
	defer func() {
		if err := mm.Close(); err != nil {
			c.Logger.Warn("Failed to close migration manager", logger.ErrorField(err))
		}
	}()
	if err := mm.Up(vectorindex.Migrations, memory_store.Migrations); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (c *Components) buildIndex(ctx context.Context) error {
	cfg := c.Config
	var err error

	c.Catalog, err = catalog.Load(ctx, c.Storage.GetRootProvider(), cfg.Retrieval.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	c.Logger.Info("Catalog loaded", logger.IntField("sessions", c.Catalog.Len()))

	switch cfg.Vector.Backend {
	case appconfig.VectorBackendPGVector:
		c.Index = vectorindex.NewPGVectorIndex(c.Pool, c.Logger)
	case appconfig.VectorBackendMemory:
		c.Index = vectorindex.NewMemoryIndex()
	default:
		return fmt.Errorf("unsupported vector backend: %s", cfg.Vector.Backend)
	}

	c.Embedder, err = models.NewEmbedder(ctx, cfg, c.Redis, c.Metrics, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	return nil
}

// NewIndexer returns an indexer over the components' catalog, embedder and index.
func (c *Components) NewIndexer(rebuild bool) *indexer.Indexer {
	return indexer.New(c.Embedder, c.Index, c.Catalog,
		c.Storage.GetProvider(storage_manager.NamespaceDocuments),
		c.Manifests(),
		indexer.Options{
			BatchSize: c.Config.Embedding.BatchSize,
			Rebuild:   rebuild,
			Metrics:   c.Metrics,
			Logger:    c.Logger,
		})
}

// Manifests is where indexing runs record their manifests.
func (c *Components) Manifests() storage_manager.FileProvider {
	return c.Storage.GetProvider(storage_manager.NamespaceIndex)
}

func (c *Components) buildSearch(ctx context.Context) error {
	cfg := c.Config
	var err error

	// the direct strategy never calls a model
	var instructions string
	if cfg.Retrieval.Strategy == appconfig.StrategyAssisted {
		c.Generator, err = models.NewGenerator(ctx, cfg, c.Logger)
		if err != nil {
			return fmt.Errorf("failed to create text generator: %w", err)
		}

		prompts := prompt_manager.New(c.Storage.GetProvider(storage_manager.NamespacePrompts))
		if instructions, err = prompts.MatcherInstructions(ctx); err != nil {
			return err
		}
		if instructions != "" {
			c.Logger.Info("Using stored matcher instructions")
		}
	}

	m, err := matcher.New(cfg.Retrieval.Strategy, c.Catalog, c.Generator, matcher.Options{
		Logger:       c.Logger,
		Metrics:      c.Metrics,
		MaxTokens:    cfg.LLM.MaxTokens,
		Instructions: instructions,
	})
	if err != nil {
		return fmt.Errorf("failed to create matcher: %w", err)
	}

	r := retriever.New(c.Embedder, c.Index, retriever.Config{
		IndexName: cfg.Retrieval.IndexName,
		Threshold: cfg.Retrieval.EffectiveThreshold(),
	}, c.Metrics, c.Logger)

	var cache *search.ResultCache
	if cfg.Retrieval.ResultCacheEnabled && c.Redis != nil {
		cache = search.NewResultCache(c.Redis, cfg.Redis.KeyPrefix, cfg.Retrieval.ResultCacheTTL, c.Logger)
	}

	c.Search = search.New(r, m, search.Options{
		DefaultTopK: cfg.Retrieval.TopK,
		MaxTopK:     cfg.Retrieval.MaxTopK,
		Cache:       cache,
		Metrics:     c.Metrics,
		Logger:      c.Logger,
	})
	return nil
}

func (c *Components) buildConversation(ctx context.Context) error {
	cfg := c.Config
	memoryFiles := c.Storage.GetProvider(storage_manager.NamespaceMemory)

	store, err := memory_store.Open(ctx, cfg.Memory, c.Pool, memoryFiles, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to open memory store: %w", err)
	}
	c.Memory = store
	c.closers = append(c.closers, store.Close)

	c.Conversation = conversation.New(store, cfg.Memory.HistoryLimit, c.Logger)

	c.Threads, err = thread_manager.New(ctx, thread_manager.Config{
		FileProvider: memoryFiles,
		Logger:       c.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create thread manager: %w", err)
	}
	return nil
}

// buildAgent wires the concierge agent over the search pipeline, with its
// history replayed from the memory store.
func (c *Components) buildAgent(ctx context.Context) error {
	cfg := c.Config
	var err error

	c.AgentModel, err = models.NewAgentModel(ctx, cfg, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to create agent model: %w", err)
	}

	prompts := prompt_manager.New(c.Storage.GetProvider(storage_manager.NamespacePrompts))
	instruction, err := prompts.AgentInstructions(ctx)
	if err != nil {
		return err
	}
	if instruction != "" {
		c.Logger.Info("Using stored agent instructions")
	}

	c.Sessions, err = agents.NewThreadSessionService(c.Memory, agents.SessionOptions{
		HistoryLimit: cfg.Memory.AgentHistoryLimit,
		Logger:       c.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create session service: %w", err)
	}

	factory := agents.NewFactory(c.AgentModel, c.Search, instruction)
	c.Executor, err = executor.NewExecutor(factory, cfg.ServiceName, c.Sessions, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to create executor: %w", err)
	}
	return nil
}

// Close releases everything in reverse order of opening.
func (c *Components) Close() error {
	var result error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	c.closers = nil
	return result
}

func newStorageManager(ctx context.Context, cfg appconfig.StorageConfig, log logger.Logger) (*storage_manager.StorageManager, error) {
	switch cfg.Backend {
	case "local", "":
		log.Info("Using local file-based storage", logger.StringField("directory", cfg.LocalDir))

		// Ensure directory exists (0750 needed for directory traversal)
		if err := os.MkdirAll(cfg.LocalDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		return storage_manager.New(storage_manager.Config{
			Backend:     storage_manager.BackendLocal,
			LocalConfig: &storage_manager.LocalConfig{BaseDir: cfg.LocalDir},
		})

	case "s3":
		log.Info("Using S3-based storage",
			logger.StringField("bucket", cfg.S3Bucket),
			logger.StringField("prefix", cfg.S3Prefix),
			logger.StringField("region", cfg.S3Region))

		client, err := storage_manager.NewS3Client(ctx, storage_manager.S3ClientOptions{
			Region:       cfg.S3Region,
			Profile:      cfg.S3Profile,
			Endpoint:     cfg.S3Endpoint,
			UsePathStyle: cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		return storage_manager.New(storage_manager.Config{
			Backend: storage_manager.BackendS3,
			S3Config: &storage_manager.S3Config{
				Bucket: cfg.S3Bucket,
				Prefix: cfg.S3Prefix,
				Client: client,
			},
		})

	case "git":
		log.Info("Using git-backed storage",
			logger.StringField("path", cfg.GitPath),
			logger.StringField("branch", cfg.GitBranch))

		return storage_manager.New(storage_manager.Config{
			Backend: storage_manager.BackendGit,
			GitConfig: &storage_manager.GitProviderOptions{
				Path:          cfg.GitPath,
				RemoteURL:     cfg.GitRemoteURL,
				Branch:        cfg.GitBranch,
				AuthorName:    cfg.GitAuthorName,
				AuthorEmail:   cfg.GitAuthorEmail,
				Username:      cfg.GitAuthUsername,
				Password:      cfg.GitAuthPassword,
				InitIfMissing: cfg.GitRemoteURL == "",
			},
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend: %s (must be 'local', 's3' or 'git')", cfg.Backend)
	}
}

func newRedisClient(cfg appconfig.RedisConfig) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.Database,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})
}
