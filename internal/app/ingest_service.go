package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"strings"

	"github.com/google/uuid"

	"vecbridge/internal/chunker"
	"vecbridge/internal/errs"
	"vecbridge/internal/lock"
	"vecbridge/internal/model"
)

// IngestService drives the chunk -> embed -> persist pipeline. Ingestion of
// one document is serialized by a per-document lock; unrelated documents run
// fully in parallel.
type IngestService struct {
	docs      DocumentStore
	chunks    ChunkStore
	embedder  Embedder
	cache     EmbeddingCache    // optional
	scheduler ReingestScheduler // optional
	splitter  *chunker.Chunker
	locks     *lock.KeyMutex
	batchSize int
}

func NewIngestService(
	docs DocumentStore,
	chunks ChunkStore,
	embedder Embedder,
	cache EmbeddingCache,
	scheduler ReingestScheduler,
	splitter *chunker.Chunker,
	batchSize int,
) *IngestService {
	if batchSize <= 0 {
		batchSize = 16
	}
	return &IngestService{
		docs:      docs,
		chunks:    chunks,
		embedder:  embedder,
		cache:     cache,
		scheduler: scheduler,
		splitter:  splitter,
		locks:     lock.NewKeyMutex(),
		batchSize: batchSize,
	}
}

type IngestInput struct {
	TenantID uint
	Name     string
	Content  string
}

type IngestResult struct {
	Document   model.Document `json:"document"`
	ChunkCount int            `json:"chunk_count"`
	Reused     bool           `json:"reused"`
}

// Ingest runs the full pipeline for one document. Re-submitting content a
// tenant already has fully embedded returns the existing document without a
// single chunking or embedding call.
func (s *IngestService) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	if input.TenantID == 0 {
		return nil, errs.New(errs.KindInvalidRequest, "tenant is required")
	}
	content := input.Content
	if strings.TrimSpace(content) == "" {
		return nil, errs.New(errs.KindInvalidRequest, "document content is empty")
	}

	hash := contentHash(content)

	existing, err := s.docs.GetByTenantAndHash(ctx, input.TenantID, hash)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "document lookup failed", err)
	}
	if existing != nil {
		if existing.Status == model.StatusEmbedded {
			return &IngestResult{Document: *existing, ChunkCount: existing.ChunkCount, Reused: true}, nil
		}
		// Same content, earlier attempt did not finish: resume it instead of
		// starting over.
		return s.resume(ctx, existing)
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = "Untitled"
	}
	doc := &model.Document{
		ExternalID:  uuid.NewString(),
		TenantID:    input.TenantID,
		Name:        name,
		ContentHash: hash,
		Status:      model.StatusPending,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		// A concurrent ingest of the same content can win the unique
		// (tenant, hash) index between the lookup above and this insert.
		winner, lookupErr := s.docs.GetByTenantAndHash(ctx, input.TenantID, hash)
		if lookupErr == nil && winner != nil {
			if winner.Status == model.StatusEmbedded {
				return &IngestResult{Document: *winner, ChunkCount: winner.ChunkCount, Reused: true}, nil
			}
			return s.resume(ctx, winner)
		}
		return nil, errs.Wrap(errs.KindStorage, "create document failed", err)
	}

	s.locks.Lock(doc.ID)
	defer s.locks.Unlock(doc.ID)

	pieces := s.splitter.Split(content)
	if len(pieces) == 0 {
		return nil, errs.New(errs.KindInvalidRequest, "document content is empty")
	}

	rows := make([]model.Chunk, len(pieces))
	for i, p := range pieces {
		rows[i] = model.Chunk{
			DocumentID: doc.ID,
			Seq:        p.Seq,
			Content:    p.Text,
			CharLen:    len([]rune(p.Text)),
		}
	}
	if err := s.chunks.PlanChunks(ctx, doc.ID, rows, hash); err != nil {
		s.failDocument(ctx, doc, "persist chunk plan failed")
		return nil, errs.Wrap(errs.KindStorage, "persist chunk plan failed", err)
	}
	doc.Status = model.StatusChunked
	doc.ChunkCount = len(rows)
	doc.EmbeddedUpTo = 0

	if err := s.embedFrom(ctx, doc, rows, 0); err != nil {
		return nil, err
	}
	doc.Status = model.StatusEmbedded
	return &IngestResult{Document: *doc, ChunkCount: len(rows)}, nil
}

// Resume picks up a document that previously failed (or was embedded by an
// older model) from its last completed chunk.
func (s *IngestService) Resume(ctx context.Context, tenantID uint, externalID string) (*IngestResult, error) {
	doc, err := s.docs.GetByExternalIDAndTenant(ctx, externalID, tenantID)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "document lookup failed", err)
	}
	if doc == nil {
		return nil, errs.New(errs.KindNotFound, "document not found")
	}
	return s.resume(ctx, doc)
}

func (s *IngestService) resume(ctx context.Context, doc *model.Document) (*IngestResult, error) {
	s.locks.Lock(doc.ID)
	defer s.locks.Unlock(doc.ID)

	// Re-read under the lock: a concurrent ingest may have advanced the
	// document between the lookup and lock acquisition.
	fresh, err := s.docs.GetByExternalIDAndTenant(ctx, doc.ExternalID, doc.TenantID)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "document lookup failed", err)
	}
	if fresh == nil {
		return nil, errs.New(errs.KindNotFound, "document not found")
	}
	doc = fresh

	rows, err := s.chunks.ListByDocumentID(ctx, doc.ID)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "load planned chunks failed", err)
	}
	if len(rows) == 0 {
		if doc.Status == model.StatusPending {
			// Another ingest of this document holds it between creation and
			// chunk planning; let the caller retry rather than failing it.
			return nil, errs.New(errs.KindUnavailable, "document ingestion in progress, retry shortly")
		}
		// Never got past document creation; without planned chunks there is
		// no text to resume from.
		s.failDocument(ctx, doc, "no planned chunks to resume from")
		return nil, errs.New(errs.KindInvalidRequest, "document has no recoverable chunks; re-ingest its content")
	}

	cursor := doc.EmbeddedUpTo
	if cursor < 0 || cursor > len(rows) {
		cursor = 0
	}
	// A model change invalidates already-embedded chunks, so the refresh
	// restarts from zero. Unchanged-and-current chunks are skipped below.
	for _, c := range rows[:cursor] {
		if c.EmbeddingModel != s.embedder.ModelName() || c.Embedding == "" {
			cursor = 0
			break
		}
	}

	if doc.Status == model.StatusEmbedded && cursor == len(rows) {
		return &IngestResult{Document: *doc, ChunkCount: len(rows), Reused: true}, nil
	}

	if err := s.embedFrom(ctx, doc, rows, cursor); err != nil {
		return nil, err
	}
	doc.Status = model.StatusEmbedded
	doc.EmbeddedUpTo = len(rows)
	return &IngestResult{Document: *doc, ChunkCount: len(rows)}, nil
}

// embedFrom embeds rows[cursor:] in bounded batches. Every committed batch
// advances the resume cursor; the final batch flips the document to embedded
// in the same transaction.
func (s *IngestService) embedFrom(ctx context.Context, doc *model.Document, rows []model.Chunk, cursor int) error {
	modelName := s.embedder.ModelName()
	for start := cursor; start < len(rows); start += s.batchSize {
		end := start + s.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}
		vectors, err := s.embedBatchCached(ctx, texts)
		if err != nil {
			s.failDocument(ctx, doc, errs.PublicMessage(err))
			return err
		}

		for i := range batch {
			batch[i].SetEmbedding(vectors[i], modelName)
		}
		final := end == len(rows)
		if err := s.chunks.SaveEmbeddedBatch(ctx, doc.ID, batch, end, final); err != nil {
			s.failDocument(ctx, doc, "persist embedded batch failed")
			return errs.Wrap(errs.KindStorage, "persist embedded batch failed", err)
		}
		doc.EmbeddedUpTo = end
	}
	return nil
}

// embedBatchCached resolves each text through the embedding cache and calls
// the provider only for misses, preserving input order.
func (s *IngestService) embedBatchCached(ctx context.Context, texts []string) ([][]float32, error) {
	modelName := s.embedder.ModelName()
	vectors := make([][]float32, len(texts))

	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		if s.cache != nil {
			vec, ok, err := s.cache.Get(ctx, modelName, t)
			if err != nil {
				log.Printf("embedding cache get failed: %v", err)
			} else if ok {
				vectors[i] = vec
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	if len(missTexts) > 0 {
		embedded, err := s.embedder.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for j, i := range missIdx {
			vectors[i] = embedded[j]
			if s.cache != nil {
				if err := s.cache.Set(ctx, modelName, missTexts[j], embedded[j]); err != nil {
					log.Printf("embedding cache set failed: %v", err)
				}
			}
		}
	}
	return vectors, nil
}

// failDocument records the failure and queues a background retry. The resume
// cursor set by committed batches survives, so the retry continues where
// this attempt stopped.
func (s *IngestService) failDocument(ctx context.Context, doc *model.Document, reason string) {
	if err := s.docs.MarkFailed(ctx, doc.ID, reason); err != nil {
		log.Printf("mark document %s failed state: %v", doc.ExternalID, err)
	}
	doc.Status = model.StatusFailed
	doc.FailReason = reason
	if s.scheduler != nil {
		if err := s.scheduler.ScheduleReingest(ctx, doc.ExternalID, doc.TenantID); err != nil {
			log.Printf("schedule reingest for document %s: %v", doc.ExternalID, err)
		}
	}
}

func (s *IngestService) GetDocument(ctx context.Context, tenantID uint, externalID string) (*model.Document, error) {
	if tenantID == 0 || externalID == "" {
		return nil, errs.New(errs.KindInvalidRequest, "invalid document reference")
	}
	doc, err := s.docs.GetByExternalIDAndTenant(ctx, externalID, tenantID)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "document lookup failed", err)
	}
	if doc == nil {
		return nil, errs.New(errs.KindNotFound, "document not found")
	}
	return doc, nil
}

func (s *IngestService) ListDocuments(ctx context.Context, tenantID uint) ([]model.Document, error) {
	if tenantID == 0 {
		return nil, errs.New(errs.KindInvalidRequest, "tenant is required")
	}
	docs, err := s.docs.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "list documents failed", err)
	}
	return docs, nil
}

// DeleteDocument removes a document and its chunks. The per-document lock
// keeps deletion from racing an in-flight ingestion of the same document.
func (s *IngestService) DeleteDocument(ctx context.Context, tenantID uint, externalID string) error {
	doc, err := s.GetDocument(ctx, tenantID, externalID)
	if err != nil {
		return err
	}

	s.locks.Lock(doc.ID)
	defer s.locks.Unlock(doc.ID)

	if err := s.docs.DeleteCascade(ctx, doc.ID); err != nil {
		return errs.Wrap(errs.KindStorage, "delete document failed", err)
	}
	return nil
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
