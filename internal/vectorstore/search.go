// Package vectorstore ranks persisted chunk embeddings against a query
// vector. Candidates are filtered by tenant and document scope BEFORE
// ranking, so top-K is computed only over chunks the caller may see.
package vectorstore

import (
	"context"
	"log"
	"sort"

	"vecbridge/internal/errs"
	"vecbridge/internal/model"
)

// Filter scopes a search. TenantID is mandatory: the searcher refuses to run
// an unscoped query.
type Filter struct {
	TenantID    uint
	DocumentIDs []uint // optional; empty means all of the tenant's documents
}

// Candidate is an embedded chunk eligible for ranking, joined with its
// document's external identifier.
type Candidate struct {
	Chunk         model.Chunk
	DocExternalID string
}

// Match is one ranked search hit.
type Match struct {
	Chunk         model.Chunk
	DocExternalID string
	Score         float64
	Stale         bool
}

// CandidateSource supplies embedded chunks already restricted to the filter
// and to documents whose status is embedded. The repository implements this
// against MySQL; tests use in-memory fakes.
type CandidateSource interface {
	EmbeddedChunks(ctx context.Context, f Filter) ([]Candidate, error)
}

type Searcher struct {
	source CandidateSource
	metric Metric
	model  string
}

// NewSearcher builds a searcher scoring with the given metric. modelName is
// the currently configured embedding model; hits produced by any other model
// are flagged stale.
func NewSearcher(source CandidateSource, metric Metric, modelName string) *Searcher {
	return &Searcher{source: source, metric: metric, model: modelName}
}

// Search returns up to topK matches in non-increasing score order. Ties are
// broken by chunk creation order, so rankings are stable across runs.
func (s *Searcher) Search(ctx context.Context, vector []float32, f Filter, topK int) ([]Match, error) {
	if f.TenantID == 0 {
		return nil, errs.New(errs.KindInvalidRequest, "search requires a tenant scope")
	}
	if topK < 1 {
		return nil, errs.New(errs.KindInvalidRequest, "topK must be at least 1")
	}
	if len(vector) == 0 {
		return nil, errs.New(errs.KindInvalidRequest, "empty query vector")
	}

	candidates, err := s.source.EmbeddedChunks(ctx, f)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "load search candidates failed", err)
	}

	matches := make([]Match, 0, len(candidates))
	for _, cand := range candidates {
		emb := cand.Chunk.EmbeddingVector()
		score, err := s.metric.score(vector, emb)
		if err != nil {
			// A chunk written under a different dimension cannot be ranked;
			// it is skipped rather than failing the whole query.
			log.Printf("search: skip chunk %d of document %s: %v", cand.Chunk.ID, cand.DocExternalID, err)
			continue
		}
		matches = append(matches, Match{
			Chunk:         cand.Chunk,
			DocExternalID: cand.DocExternalID,
			Score:         score,
			Stale:         cand.Chunk.Stale || (s.model != "" && cand.Chunk.EmbeddingModel != s.model),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Chunk.ID < matches[j].Chunk.ID
	})

	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}
