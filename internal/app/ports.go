package app

import (
	"context"

	"vecbridge/internal/ai"
	"vecbridge/internal/model"
	"vecbridge/internal/vectorstore"
)

// Capability interfaces over the pipeline's collaborators. The concrete
// implementations are the repository, vectorstore, ai, cache and rabbitmq
// packages; tests substitute in-memory fakes.

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

type Completer interface {
	Complete(ctx context.Context, messages []ai.ChatMessage) (string, error)
}

type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	GetByExternalIDAndTenant(ctx context.Context, externalID string, tenantID uint) (*model.Document, error)
	GetByTenantAndHash(ctx context.Context, tenantID uint, hash string) (*model.Document, error)
	ListByTenant(ctx context.Context, tenantID uint) ([]model.Document, error)
	ResolveInternalIDs(ctx context.Context, tenantID uint, externalIDs []string) ([]uint, error)
	MarkFailed(ctx context.Context, docID uint, reason string) error
	DeleteCascade(ctx context.Context, docID uint) error
}

type ChunkStore interface {
	PlanChunks(ctx context.Context, docID uint, chunks []model.Chunk, contentHash string) error
	SaveEmbeddedBatch(ctx context.Context, docID uint, batch []model.Chunk, cursor int, final bool) error
	ListByDocumentID(ctx context.Context, docID uint) ([]model.Chunk, error)
}

type VectorSearcher interface {
	Search(ctx context.Context, vector []float32, f vectorstore.Filter, topK int) ([]vectorstore.Match, error)
}

// EmbeddingCache memoizes (model, text) -> vector. Both methods are
// best-effort: a cache failure never fails ingestion.
type EmbeddingCache interface {
	Get(ctx context.Context, modelName, text string) ([]float32, bool, error)
	Set(ctx context.Context, modelName, text string, vec []float32) error
}

// ReingestScheduler queues a document for background resumption after a
// partial ingestion failure or a model change.
type ReingestScheduler interface {
	ScheduleReingest(ctx context.Context, docExternalID string, tenantID uint) error
}
