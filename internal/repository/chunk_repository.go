package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"vecbridge/internal/model"
	"vecbridge/internal/vectorstore"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// PlanChunks writes the chunk rows for a freshly chunked document (without
// embeddings yet) and moves the document to chunked with a reset cursor, all
// in one transaction. Any rows from a previous ingestion of the document are
// replaced.
func (r *ChunkRepository) PlanChunks(ctx context.Context, docID uint, chunks []model.Chunk, contentHash string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", docID).Delete(&model.Chunk{}).Error; err != nil {
			return err
		}
		if err := tx.Create(&chunks).Error; err != nil {
			return err
		}
		return tx.Model(&model.Document{}).
			Where("id = ?", docID).
			Updates(map[string]interface{}{
				"status":         model.StatusChunked,
				"content_hash":   contentHash,
				"chunk_count":    len(chunks),
				"embedded_up_to": 0,
				"fail_reason":    "",
			}).Error
	})
	if err != nil {
		return fmt.Errorf("plan chunks failed: %w", err)
	}
	return nil
}

// SaveEmbeddedBatch persists one batch of freshly embedded chunks and
// advances the document's resume cursor atomically. When final is set the
// document flips to embedded in the same transaction, which is the moment it
// becomes visible to search.
func (r *ChunkRepository) SaveEmbeddedBatch(ctx context.Context, docID uint, batch []model.Chunk, cursor int, final bool) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range batch {
			res := tx.Model(&model.Chunk{}).
				Where("document_id = ? AND seq = ?", docID, c.Seq).
				Updates(map[string]interface{}{
					"embedding":       c.Embedding,
					"embedding_model": c.EmbeddingModel,
					"embedding_dim":   c.EmbeddingDim,
					"stale":           false,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("chunk %d/%d not planned", docID, c.Seq)
			}
		}

		updates := map[string]interface{}{"embedded_up_to": cursor}
		if final {
			updates["status"] = model.StatusEmbedded
			updates["fail_reason"] = ""
		}
		return tx.Model(&model.Document{}).Where("id = ?", docID).Updates(updates).Error
	})
	if err != nil {
		return fmt.Errorf("save embedded batch failed: %w", err)
	}
	return nil
}

// ListByDocumentID returns the document's chunks in sequence order.
func (r *ChunkRepository) ListByDocumentID(ctx context.Context, docID uint) ([]model.Chunk, error) {
	var chunks []model.Chunk
	err := r.db.WithContext(ctx).
		Where("document_id = ?", docID).
		Order("seq ASC").
		Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("list chunks failed: %w", err)
	}
	return chunks, nil
}

func (r *ChunkRepository) CountByDocumentID(ctx context.Context, docID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Chunk{}).
		Where("document_id = ?", docID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count chunks failed: %w", err)
	}
	return count, nil
}

type candidateRow struct {
	model.Chunk
	DocExternalID string `gorm:"column:doc_external_id"`
}

// EmbeddedChunks implements vectorstore.CandidateSource. The tenant,
// document-set, and embedded-status restrictions are applied in SQL so
// ranking never sees out-of-scope rows.
func (r *ChunkRepository) EmbeddedChunks(ctx context.Context, f vectorstore.Filter) ([]vectorstore.Candidate, error) {
	q := r.db.WithContext(ctx).
		Table("chunks").
		Select("chunks.*, documents.external_id AS doc_external_id").
		Joins("JOIN documents ON documents.id = chunks.document_id").
		Where("documents.tenant_id = ?", f.TenantID).
		Where("documents.status = ?", model.StatusEmbedded)
	if len(f.DocumentIDs) > 0 {
		q = q.Where("chunks.document_id IN ?", f.DocumentIDs)
	}

	var rows []candidateRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("load embedded chunks failed: %w", err)
	}

	candidates := make([]vectorstore.Candidate, len(rows))
	for i, row := range rows {
		candidates[i] = vectorstore.Candidate{Chunk: row.Chunk, DocExternalID: row.DocExternalID}
	}
	return candidates, nil
}
