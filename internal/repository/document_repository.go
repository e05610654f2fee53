package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"vecbridge/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByExternalIDAndTenant(ctx context.Context, externalID string, tenantID uint) (*model.Document, error) {
	var doc model.Document
	err := r.db.WithContext(ctx).
		Where("external_id = ? AND tenant_id = ?", externalID, tenantID).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

// GetByTenantAndHash finds the tenant's document with the given content hash,
// used to short-circuit re-ingestion of unchanged content.
func (r *DocumentRepository) GetByTenantAndHash(ctx context.Context, tenantID uint, hash string) (*model.Document, error) {
	var doc model.Document
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND content_hash = ?", tenantID, hash).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document by hash failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByTenant(ctx context.Context, tenantID uint) ([]model.Document, error) {
	var list []model.Document
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return list, nil
}

// ResolveInternalIDs maps external document IDs to internal ones, silently
// dropping IDs that do not belong to the tenant. Used to build search scopes
// without leaking other tenants' existence.
func (r *DocumentRepository) ResolveInternalIDs(ctx context.Context, tenantID uint, externalIDs []string) ([]uint, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("tenant_id = ? AND external_id IN ?", tenantID, externalIDs).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("resolve document ids failed: %w", err)
	}
	return ids, nil
}

// MarkFailed records a partial-ingestion failure. The embedded-up-to cursor
// set by previous batch commits stays intact so resumption can pick up from
// the last completed chunk.
func (r *DocumentRepository) MarkFailed(ctx context.Context, docID uint, reason string) error {
	if len(reason) > 256 {
		reason = reason[:256]
	}
	err := r.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("id = ?", docID).
		Updates(map[string]interface{}{"status": model.StatusFailed, "fail_reason": reason}).Error
	if err != nil {
		return fmt.Errorf("mark document failed state failed: %w", err)
	}
	return nil
}

// DeleteCascade removes a document and all of its chunks in one transaction;
// a deleted document disappears from search atomically.
func (r *DocumentRepository) DeleteCascade(ctx context.Context, docID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", docID).Delete(&model.Chunk{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", docID).Delete(&model.Document{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete document cascade failed: %w", err)
	}
	return nil
}

// StaleDocumentIDs returns documents owning chunks embedded by a model other
// than the currently configured one. These are scheduled for re-embedding.
func (r *DocumentRepository) StaleDocumentIDs(ctx context.Context, currentModel string) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&model.Chunk{}).
		Distinct("document_id").
		Where("embedding_model <> ? AND embedding <> ''", currentModel).
		Pluck("document_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list stale document ids failed: %w", err)
	}
	return ids, nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document by id failed: %w", err)
	}
	return &doc, nil
}
