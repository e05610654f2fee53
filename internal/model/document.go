package model

import "time"

// Document ingestion status. A document becomes visible to retrieval only
// when it reaches StatusEmbedded; the status flip commits in the same
// transaction as the final chunk batch.
const (
	StatusPending  = "pending"
	StatusChunked  = "chunked"
	StatusEmbedded = "embedded"
	StatusFailed   = "failed"
)

type Document struct {
	ID          uint   `gorm:"primaryKey" json:"-"`
	ExternalID  string `gorm:"size:36;not null;uniqueIndex" json:"id"`
	TenantID    uint   `gorm:"not null;uniqueIndex:idx_doc_tenant_hash" json:"tenant_id"`
	Name        string `gorm:"size:256;not null" json:"name"`
	ContentHash string `gorm:"size:64;not null;uniqueIndex:idx_doc_tenant_hash" json:"content_hash"`
	Status      string `gorm:"size:16;not null;index" json:"status"`

	// ChunkCount is fixed once chunking succeeds; EmbeddedUpTo counts chunks
	// whose embeddings are persisted and is the resume cursor after a
	// partial ingestion failure.
	ChunkCount   int    `gorm:"not null" json:"chunk_count"`
	EmbeddedUpTo int    `gorm:"not null" json:"embedded_up_to"`
	FailReason   string `gorm:"size:256" json:"fail_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
