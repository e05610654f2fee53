package model

import (
	"encoding/json"
	"time"
)

// Chunk is one bounded-size span of a document's text plus its embedding.
// Embedding is stored as a JSON array of float32 for portability; Seq is
// dense from zero within a document.
type Chunk struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	DocumentID uint   `gorm:"not null;index:idx_chunk_doc_seq,unique" json:"-"`
	Seq        int    `gorm:"not null;index:idx_chunk_doc_seq,unique" json:"seq"`
	Content    string `gorm:"type:text;not null" json:"content"`
	CharLen    int    `gorm:"not null" json:"char_len"`

	Embedding      string `gorm:"type:mediumtext" json:"-"`
	EmbeddingModel string `gorm:"size:128" json:"embedding_model,omitempty"`
	EmbeddingDim   int    `json:"embedding_dim,omitempty"`
	Stale          bool   `gorm:"not null;default:false" json:"stale,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// EmbeddingVector returns the parsed embedding slice; empty on parse error.
func (c *Chunk) EmbeddingVector() []float32 {
	if c.Embedding == "" {
		return nil
	}
	var v []float32
	_ = json.Unmarshal([]byte(c.Embedding), &v)
	return v
}

// SetEmbedding stores the embedding as JSON and records its dimension.
func (c *Chunk) SetEmbedding(vec []float32, modelName string) {
	c.EmbeddingModel = modelName
	c.EmbeddingDim = len(vec)
	if len(vec) == 0 {
		c.Embedding = "[]"
		return
	}
	b, _ := json.Marshal(vec)
	c.Embedding = string(b)
}
