package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vecbridge/internal/model"
	"vecbridge/internal/vectorstore"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Discard,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Document{}, &model.Chunk{}))
	return db
}

func seedDocument(t *testing.T, db *gorm.DB, tenantID uint, externalID, status string, chunkContents ...string) *model.Document {
	t.Helper()
	doc := &model.Document{
		ExternalID:  externalID,
		TenantID:    tenantID,
		Name:        externalID,
		ContentHash: "hash-" + externalID,
		Status:      status,
		ChunkCount:  len(chunkContents),
	}
	require.NoError(t, db.Create(doc).Error)
	for i, content := range chunkContents {
		c := model.Chunk{
			DocumentID: doc.ID,
			Seq:        i,
			Content:    content,
			CharLen:    len([]rune(content)),
		}
		c.SetEmbedding([]float32{1, 0, 0}, "test-embed")
		require.NoError(t, db.Create(&c).Error)
	}
	return doc
}

func TestEmbeddedChunksScopedToTenant(t *testing.T) {
	db := newTestDB(t)
	repo := NewChunkRepository(db)
	ctx := context.Background()

	mine := seedDocument(t, db, 1, "doc-mine", model.StatusEmbedded, "alpha", "beta")
	seedDocument(t, db, 2, "doc-theirs", model.StatusEmbedded, "gamma")

	candidates, err := repo.EmbeddedChunks(ctx, vectorstore.Filter{TenantID: 1})
	require.NoError(t, err)

	require.Len(t, candidates, 2, "another tenant's chunks must never surface")
	for _, cand := range candidates {
		assert.Equal(t, "doc-mine", cand.DocExternalID)
		assert.Equal(t, mine.ID, cand.Chunk.DocumentID)
		assert.NotEmpty(t, cand.Chunk.EmbeddingVector())
	}
}

func TestEmbeddedChunksExcludeUnfinishedDocuments(t *testing.T) {
	db := newTestDB(t)
	repo := NewChunkRepository(db)
	ctx := context.Background()

	seedDocument(t, db, 1, "doc-done", model.StatusEmbedded, "alpha")
	seedDocument(t, db, 1, "doc-partial", model.StatusChunked, "beta", "gamma")
	seedDocument(t, db, 1, "doc-broken", model.StatusFailed, "delta")

	candidates, err := repo.EmbeddedChunks(ctx, vectorstore.Filter{TenantID: 1})
	require.NoError(t, err)

	require.Len(t, candidates, 1, "only fully embedded documents are searchable")
	assert.Equal(t, "doc-done", candidates[0].DocExternalID)
}

func TestEmbeddedChunksDocumentScope(t *testing.T) {
	db := newTestDB(t)
	repo := NewChunkRepository(db)
	ctx := context.Background()

	a := seedDocument(t, db, 1, "doc-a", model.StatusEmbedded, "alpha")
	seedDocument(t, db, 1, "doc-b", model.StatusEmbedded, "beta")

	candidates, err := repo.EmbeddedChunks(ctx, vectorstore.Filter{TenantID: 1, DocumentIDs: []uint{a.ID}})
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, "doc-a", candidates[0].DocExternalID)
}

func TestSaveEmbeddedBatchAdvancesCursorAndFlipsStatus(t *testing.T) {
	db := newTestDB(t)
	chunkRepo := NewChunkRepository(db)
	ctx := context.Background()

	doc := &model.Document{ExternalID: "doc-x", TenantID: 1, Name: "x", ContentHash: "hx", Status: model.StatusPending}
	require.NoError(t, db.Create(doc).Error)

	rows := []model.Chunk{
		{DocumentID: doc.ID, Seq: 0, Content: "one", CharLen: 3},
		{DocumentID: doc.ID, Seq: 1, Content: "two", CharLen: 3},
		{DocumentID: doc.ID, Seq: 2, Content: "three", CharLen: 5},
	}
	require.NoError(t, chunkRepo.PlanChunks(ctx, doc.ID, rows, "hx"))

	batch := rows[:2]
	for i := range batch {
		batch[i].SetEmbedding([]float32{0, 1}, "test-embed")
	}
	require.NoError(t, chunkRepo.SaveEmbeddedBatch(ctx, doc.ID, batch, 2, false))

	var mid model.Document
	require.NoError(t, db.First(&mid, doc.ID).Error)
	assert.Equal(t, model.StatusChunked, mid.Status, "not visible before the final batch")
	assert.Equal(t, 2, mid.EmbeddedUpTo)

	last := rows[2:]
	last[0].SetEmbedding([]float32{1, 1}, "test-embed")
	require.NoError(t, chunkRepo.SaveEmbeddedBatch(ctx, doc.ID, last, 3, true))

	var done model.Document
	require.NoError(t, db.First(&done, doc.ID).Error)
	assert.Equal(t, model.StatusEmbedded, done.Status)
	assert.Equal(t, 3, done.EmbeddedUpTo)
}

func TestSaveEmbeddedBatchRejectsUnplannedChunk(t *testing.T) {
	db := newTestDB(t)
	chunkRepo := NewChunkRepository(db)
	ctx := context.Background()

	doc := seedDocument(t, db, 1, "doc-y", model.StatusChunked, "only")

	ghost := model.Chunk{DocumentID: doc.ID, Seq: 9, Content: "ghost"}
	ghost.SetEmbedding([]float32{1}, "test-embed")
	err := chunkRepo.SaveEmbeddedBatch(ctx, doc.ID, []model.Chunk{ghost}, 1, false)
	assert.Error(t, err)
}

func TestDocumentUniquePerTenantAndHash(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepository(db)
	ctx := context.Background()

	first := &model.Document{ExternalID: "doc-1", TenantID: 1, Name: "n", ContentHash: "same", Status: model.StatusPending}
	require.NoError(t, repo.Create(ctx, first))

	dup := &model.Document{ExternalID: "doc-2", TenantID: 1, Name: "n", ContentHash: "same", Status: model.StatusPending}
	assert.Error(t, repo.Create(ctx, dup), "same tenant and content hash must be rejected by the index")

	other := &model.Document{ExternalID: "doc-3", TenantID: 2, Name: "n", ContentHash: "same", Status: model.StatusPending}
	assert.NoError(t, repo.Create(ctx, other), "another tenant may hold the same content")
}

func TestResolveInternalIDsDropsForeignDocuments(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepository(db)
	ctx := context.Background()

	mine := seedDocument(t, db, 1, "doc-mine", model.StatusEmbedded, "alpha")
	seedDocument(t, db, 2, "doc-theirs", model.StatusEmbedded, "beta")

	ids, err := repo.ResolveInternalIDs(ctx, 1, []string{"doc-mine", "doc-theirs", "doc-unknown"})
	require.NoError(t, err)
	assert.Equal(t, []uint{mine.ID}, ids)
}

func TestDeleteCascadeRemovesChunks(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepository(db)
	ctx := context.Background()

	doc := seedDocument(t, db, 1, "doc-del", model.StatusEmbedded, "alpha", "beta")
	require.NoError(t, repo.DeleteCascade(ctx, doc.ID))

	var docCount, chunkCount int64
	require.NoError(t, db.Model(&model.Document{}).Where("id = ?", doc.ID).Count(&docCount).Error)
	require.NoError(t, db.Model(&model.Chunk{}).Where("document_id = ?", doc.ID).Count(&chunkCount).Error)
	assert.Zero(t, docCount)
	assert.Zero(t, chunkCount)
}

func TestStaleDocumentIDs(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepository(db)
	ctx := context.Background()

	fresh := seedDocument(t, db, 1, "doc-fresh", model.StatusEmbedded, "alpha")
	stale := seedDocument(t, db, 1, "doc-stale", model.StatusEmbedded, "beta")
	require.NoError(t, db.Model(&model.Chunk{}).
		Where("document_id = ?", stale.ID).
		Update("embedding_model", "old-model").Error)

	ids, err := repo.StaleDocumentIDs(ctx, "test-embed")
	require.NoError(t, err)
	assert.Equal(t, []uint{stale.ID}, ids)
	assert.NotContains(t, ids, fresh.ID)
}

func TestPlanChunksReplacesPreviousRows(t *testing.T) {
	db := newTestDB(t)
	chunkRepo := NewChunkRepository(db)
	ctx := context.Background()

	doc := seedDocument(t, db, 1, "doc-re", model.StatusFailed, "old-1", "old-2", "old-3")

	replacement := []model.Chunk{
		{DocumentID: doc.ID, Seq: 0, Content: "new-1", CharLen: 5},
		{DocumentID: doc.ID, Seq: 1, Content: "new-2", CharLen: 5},
	}
	require.NoError(t, chunkRepo.PlanChunks(ctx, doc.ID, replacement, "hash-v2"))

	rows, err := chunkRepo.ListByDocumentID(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for i, c := range rows {
		assert.Equal(t, fmt.Sprintf("new-%d", i+1), c.Content)
		assert.Empty(t, c.Embedding, "replanned chunks start without embeddings")
	}

	var reloaded model.Document
	require.NoError(t, db.First(&reloaded, doc.ID).Error)
	assert.Equal(t, model.StatusChunked, reloaded.Status)
	assert.Equal(t, "hash-v2", reloaded.ContentHash)
	assert.Equal(t, 2, reloaded.ChunkCount)
	assert.Equal(t, 0, reloaded.EmbeddedUpTo)
}
