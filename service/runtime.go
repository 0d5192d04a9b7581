package service

import (
	"context"
	"log/slog"

	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Runtime bundles the wired storage, queue and AI clients shared by the
// API and worker binaries.
type Runtime struct {
	Store     DocumentStore
	Index     VectorIndex
	Queue     JobQueue
	Blobs     BlobStore
	Pipeline  *Pipeline
	Retrieval *RetrievalService

	pool *pgxpool.Pool
}

// NewRuntime wires the dependency graph from config. With a database URL
// it connects Postgres (documents, vectors, jobs) and MinIO; without one
// everything runs in memory for single-process development.
func NewRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{}

	embedder := NewEmbeddingService(&cfg.Embedding)
	gen := NewGenerativeService(&cfg.Generative)

	if cfg.Database.URL != "" {
		pool, err := ConnectPool(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		rt.pool = pool

		store := NewPGStore(pool, cfg.Embedding.Dimensions)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		queue := NewPGQueue(pool, &cfg.Queue)
		if err := queue.EnsureSchema(ctx); err != nil {
			return nil, err
		}

		blobs, err := NewMinioStore(&cfg.Minio)
		if err != nil {
			return nil, err
		}
		if err := blobs.EnsureBucket(ctx); err != nil {
			return nil, err
		}

		rt.Store = store
		rt.Index = store
		rt.Queue = queue
		rt.Blobs = blobs
	} else {
		slog.Warn("no database configured, using in-memory storage")

		store := NewMemoryStore(cfg.Store.MaxDocuments)
		index := NewMemoryVectorIndex()
		// Keep the index in step when old documents are evicted
		store.OnEvict(func(documentID string) {
			index.DeleteDocument(context.Background(), documentID)
		})

		rt.Store = store
		rt.Index = index
		rt.Queue = NewMemoryQueue(cfg.Queue.VisibilityTimeout())
		rt.Blobs = NewMemoryBlobStore()
	}

	rt.Pipeline = NewPipeline(rt.Store, rt.Index, rt.Blobs, NewPDFExtractor(), NewChunker(&cfg.Chunking), NewAuditor(gen), embedder)
	rt.Retrieval = NewRetrievalService(rt.Store, rt.Index, embedder, gen, &cfg.Search)

	return rt, nil
}

// Persistent reports whether the runtime is backed by Postgres. In memory
// mode the API binary runs its own embedded worker, since jobs cannot
// cross processes.
func (rt *Runtime) Persistent() bool {
	return rt.pool != nil
}

// Close releases pooled resources
func (rt *Runtime) Close() {
	if rt.pool != nil {
		rt.pool.Close()
	}
}
