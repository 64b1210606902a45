// Package indexer populates the vector indexes the retriever reads: one
// record per catalog session, plus chunked source documents for the mixed
// index.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lewisedginton/session_concierge/internal/catalog"
	"github.com/lewisedginton/session_concierge/internal/embedding"
	"github.com/lewisedginton/session_concierge/internal/storage_manager"
	"github.com/lewisedginton/session_concierge/internal/vectorindex"
	"github.com/lewisedginton/session_concierge/pkg/logger"
	"github.com/lewisedginton/session_concierge/pkg/metrics"
	"github.com/lewisedginton/session_concierge/pkg/prefixed_uuid"
)

// ManifestFile is written next to each index's records after a run.
const ManifestFile = "index-manifest.json"

// CatalogSource is the metadata source of session records.
const CatalogSource = "catalog"

// DefaultBatchSize is how many texts go into one embedding call.
const DefaultBatchSize = 64

var documentExtensions = map[string]bool{".md": true, ".markdown": true, ".txt": true}

// Manifest describes one indexing run.
type Manifest struct {
	RunID      string    `json:"runId"`
	Index      string    `json:"index"`
	Model      string    `json:"model"`
	Dimension  int       `json:"dimension"`
	Sessions   int       `json:"sessions"`
	Documents  int       `json:"documents"`
	Chunks     int       `json:"chunks"`
	Skipped    []string  `json:"skipped,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Options configures an Indexer.
type Options struct {
	BatchSize    int
	ChunkSize    int
	ChunkOverlap int
	// Rebuild drops the index before writing so stale records disappear
	Rebuild bool
	Metrics *metrics.Metrics
	Logger  logger.Logger
}

// Indexer writes records into a vector index.
type Indexer struct {
	embedder  embedding.Embedder
	index     vectorindex.Index
	catalog   *catalog.Catalog
	documents storage_manager.FileProvider
	manifests storage_manager.FileProvider
	splitter  Splitter
	batchSize int
	rebuild   bool
	records   *prometheus.CounterVec
	logger    logger.Logger
}

// New creates an Indexer. documents may be nil when only sessions are
// indexed; manifests may be nil to skip writing manifests.
func New(e embedding.Embedder, idx vectorindex.Index, cat *catalog.Catalog, documents, manifests storage_manager.FileProvider, opts Options) *Indexer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}

	ix := &Indexer{
		embedder:  e,
		index:     idx,
		catalog:   cat,
		documents: documents,
		manifests: manifests,
		splitter:  NewSplitter(opts.ChunkSize, opts.ChunkOverlap),
		batchSize: opts.BatchSize,
		rebuild:   opts.Rebuild,
		logger:    opts.Logger.WithFields(logger.StringField("component", "indexer")),
	}
	if opts.Metrics != nil {
		ix.records = prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "concierge",
			Name:      "indexed_records_total",
			Help:      "Records written to vector indexes",
		}, []string{"index"})
		opts.Metrics.AddCustomMetric(ix.records)
	}
	return ix
}

// IndexSessions writes one record per catalog session.
func (ix *Indexer) IndexSessions(ctx context.Context, indexName string) (Manifest, error) {
	m := ix.newManifest(indexName)
	if err := ix.prepare(ctx, indexName); err != nil {
		return m, err
	}

	records := ix.sessionRecords()
	if err := ix.write(ctx, indexName, records); err != nil {
		return m, err
	}
	m.Sessions = len(records)

	return ix.finish(ctx, m)
}

// IndexDocuments writes every catalog session and every chunk of every
// document into a mixed index. Documents that cannot be read are skipped and
// listed in the manifest.
func (ix *Indexer) IndexDocuments(ctx context.Context, indexName string) (Manifest, error) {
	if ix.documents == nil {
		return Manifest{}, fmt.Errorf("no document storage configured")
	}

	m := ix.newManifest(indexName)
	if err := ix.prepare(ctx, indexName); err != nil {
		return m, err
	}

	files, err := ix.documents.List(ctx, "")
	if err != nil {
		return m, fmt.Errorf("failed to list documents: %w", err)
	}

	records := ix.sessionRecords()
	m.Sessions = len(records)

	for _, file := range files {
		if !documentExtensions[strings.ToLower(path.Ext(file))] {
			continue
		}
		chunks, err := ix.documentRecords(ctx, file)
		if err != nil {
			ix.logger.Warn("Skipping document", logger.StringField("source", file), logger.ErrorField(err))
			m.Skipped = append(m.Skipped, file)
			continue
		}
		ix.logger.Debug("Chunked document", logger.StringField("source", file), logger.IntField("chunks", len(chunks)))
		records = append(records, chunks...)
		m.Documents++
		m.Chunks += len(chunks)
	}

	if err := ix.write(ctx, indexName, records); err != nil {
		return m, err
	}
	return ix.finish(ctx, m)
}

func (ix *Indexer) newManifest(indexName string) Manifest {
	return Manifest{
		RunID:     prefixed_uuid.NewString(prefixed_uuid.PrefixRun),
		Index:     indexName,
		Model:     ix.embedder.Model(),
		Dimension: ix.embedder.Dimension(),
		StartedAt: time.Now().UTC(),
	}
}

func (ix *Indexer) prepare(ctx context.Context, indexName string) error {
	if ix.rebuild {
		err := ix.index.DeleteIndex(ctx, indexName)
		if err != nil && !errors.Is(err, vectorindex.ErrIndexNotFound) {
			return fmt.Errorf("failed to drop index %s: %w", indexName, err)
		}
	}
	if err := ix.index.CreateIndex(ctx, indexName, ix.embedder.Dimension()); err != nil {
		return fmt.Errorf("failed to create index %s: %w", indexName, err)
	}
	return nil
}

func (ix *Indexer) sessionRecords() []vectorindex.Record {
	sessions := ix.catalog.Sessions()
	records := make([]vectorindex.Record, 0, len(sessions))
	for i, s := range sessions {
		text := catalog.SearchableText(s)
		records = append(records, vectorindex.Record{
			ID: fmt.Sprintf("session-%d", i),
			Metadata: map[string]any{
				"text":         text,
				"source":       CatalogSource,
				"sessionIndex": i,
				"title":        s.Title,
				"room":         s.Room,
			},
		})
	}
	return records
}

func (ix *Indexer) documentRecords(ctx context.Context, file string) ([]vectorindex.Record, error) {
	data, err := ix.documents.Read(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("failed to read: %w", err)
	}

	fm, body, err := splitFrontMatter(string(data))
	if err != nil {
		return nil, err
	}

	related := -1
	if fm.Session != "" {
		related = ix.catalog.IndexOf(fm.Session)
		if related < 0 {
			ix.logger.Warn("Document names a session that is not in the catalog",
				logger.StringField("source", file),
				logger.StringField("session", fm.Session))
		}
	}

	chunks := ix.splitter.Split(body)
	records := make([]vectorindex.Record, 0, len(chunks))
	for n, text := range chunks {
		md := map[string]any{
			"text":   text,
			"source": file,
		}
		if related >= 0 {
			md["relatedSessionTitle"] = fm.Session
			md["relatedSessionIndex"] = related
		}
		records = append(records, vectorindex.Record{
			ID:       fmt.Sprintf("doc:%s#%d", file, n),
			Metadata: md,
		})
	}
	return records, nil
}

// write embeds records in batches and upserts each batch.
func (ix *Indexer) write(ctx context.Context, indexName string, records []vectorindex.Record) error {
	for start := 0; start < len(records); start += ix.batchSize {
		end := min(start+ix.batchSize, len(records))
		batch := records[start:end]

		texts := make([]string, len(batch))
		for i, r := range batch {
			texts[i], _ = r.Metadata["text"].(string)
		}

		vectors, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed records %d-%d: %w", start, end, err)
		}
		if err := embedding.CheckVectors(vectors, len(texts), ix.embedder.Dimension()); err != nil {
			return err
		}
		for i := range batch {
			batch[i].Vector = vectors[i]
		}

		if err := ix.index.Upsert(ctx, indexName, batch); err != nil {
			return fmt.Errorf("failed to upsert records %d-%d: %w", start, end, err)
		}
		if ix.records != nil {
			ix.records.WithLabelValues(indexName).Add(float64(len(batch)))
		}
		ix.logger.Debug("Indexed batch",
			logger.StringField("index", indexName),
			logger.IntField("from", start),
			logger.IntField("to", end))
	}
	return nil
}

func (ix *Indexer) finish(ctx context.Context, m Manifest) (Manifest, error) {
	m.FinishedAt = time.Now().UTC()

	ix.logger.Info("Indexing run complete",
		logger.StringField("run_id", m.RunID),
		logger.StringField("index", m.Index),
		logger.IntField("sessions", m.Sessions),
		logger.IntField("documents", m.Documents),
		logger.IntField("chunks", m.Chunks),
		logger.DurationField("duration", m.FinishedAt.Sub(m.StartedAt)))

	if ix.manifests == nil {
		return m, nil
	}
	if err := storage_manager.WriteJSON(ctx, ix.manifests, path.Join(m.Index, ManifestFile), m); err != nil {
		return m, fmt.Errorf("failed to write manifest: %w", err)
	}
	return m, nil
}

// ReadManifest loads the last manifest written for indexName.
func ReadManifest(ctx context.Context, files storage_manager.FileProvider, indexName string) (Manifest, error) {
	var m Manifest
	err := storage_manager.ReadJSON(ctx, files, path.Join(indexName, ManifestFile), &m)
	return m, err
}
