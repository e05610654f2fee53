package app

import (
	"context"
	"fmt"
	"strings"

	"vecbridge/internal/ai"
	"vecbridge/internal/errs"
	"vecbridge/internal/vectorstore"
)

const answerSystemPrompt = "You are a careful assistant. Answer the question using only the " +
	"provided context passages. If the context does not contain the answer, say you do not know. " +
	"Do not invent facts."

// RetrievalService answers queries over a tenant's embedded documents:
// embed the query, rank chunks, and optionally generate an answer grounded
// in the top hits.
type RetrievalService struct {
	docs            DocumentStore
	searcher        VectorSearcher
	embedder        Embedder
	completer       Completer
	defaultTopK     int
	maxTopK         int
	maxContextChars int
}

func NewRetrievalService(
	docs DocumentStore,
	searcher VectorSearcher,
	embedder Embedder,
	completer Completer,
	defaultTopK, maxTopK, maxContextChars int,
) *RetrievalService {
	return &RetrievalService{
		docs:            docs,
		searcher:        searcher,
		embedder:        embedder,
		completer:       completer,
		defaultTopK:     defaultTopK,
		maxTopK:         maxTopK,
		maxContextChars: maxContextChars,
	}
}

type QueryInput struct {
	TenantID    uint
	Query       string
	TopK        int      // 0 means the configured default
	DocumentIDs []string // optional external IDs restricting the scope
	Generate    bool
}

// RetrievedChunk is one search hit as returned to callers.
type RetrievedChunk struct {
	DocumentID string  `json:"document_id"`
	Seq        int     `json:"seq"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
	Stale      bool    `json:"stale,omitempty"`
}

type QueryResult struct {
	Chunks   []RetrievedChunk `json:"chunks"`
	Answer   string           `json:"answer,omitempty"`
	Degraded bool             `json:"degraded,omitempty"`
	Warning  string           `json:"warning,omitempty"`
}

func (s *RetrievalService) Query(ctx context.Context, input QueryInput) (*QueryResult, error) {
	if input.TenantID == 0 {
		return nil, errs.New(errs.KindInvalidRequest, "tenant is required")
	}
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, errs.New(errs.KindInvalidRequest, "query must not be empty")
	}

	topK := input.TopK
	if topK == 0 {
		topK = s.defaultTopK
	}
	if topK < 1 || topK > s.maxTopK {
		return nil, errs.New(errs.KindInvalidRequest,
			fmt.Sprintf("top_k must be between 1 and %d", s.maxTopK))
	}

	filter := vectorstore.Filter{TenantID: input.TenantID}
	if len(input.DocumentIDs) > 0 {
		ids, err := s.docs.ResolveInternalIDs(ctx, input.TenantID, input.DocumentIDs)
		if err != nil {
			return nil, errs.Wrap(errs.KindStorage, "resolve document scope failed", err)
		}
		// None of the requested documents belong to the tenant: an empty
		// result, never a fall-through to an unscoped search.
		if len(ids) == 0 {
			return &QueryResult{Chunks: []RetrievedChunk{}}, nil
		}
		filter.DocumentIDs = ids
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errs.Wrap(errs.KindRetrievalFailed, "embed query failed", err)
	}

	matches, err := s.searcher.Search(ctx, vector, filter, topK)
	if err != nil {
		if errs.KindOf(err) == errs.KindInvalidRequest {
			return nil, err
		}
		return nil, errs.Wrap(errs.KindRetrievalFailed, "vector search failed", err)
	}

	result := &QueryResult{Chunks: make([]RetrievedChunk, 0, len(matches))}
	for _, m := range matches {
		result.Chunks = append(result.Chunks, RetrievedChunk{
			DocumentID: m.DocExternalID,
			Seq:        m.Chunk.Seq,
			Content:    m.Chunk.Content,
			Score:      m.Score,
			Stale:      m.Stale,
		})
	}

	if input.Generate {
		s.generate(ctx, query, result)
	}
	return result, nil
}

// DocumentMatch is one document-level search hit: the document plus its
// highest-scoring chunk.
type DocumentMatch struct {
	DocumentID string         `json:"document_id"`
	Name       string         `json:"name"`
	Score      float64        `json:"score"`
	BestChunk  RetrievedChunk `json:"best_chunk"`
	Stale      bool           `json:"stale,omitempty"`
}

// QueryDocuments runs a chunk retrieval and folds the hits into per-document
// results, keeping each document's best chunk as its score. Ordering follows
// the underlying chunk ranking, so documents come back by descending best
// score.
func (s *RetrievalService) QueryDocuments(ctx context.Context, input QueryInput) ([]DocumentMatch, error) {
	input.Generate = false
	res, err := s.Query(ctx, input)
	if err != nil {
		return nil, err
	}

	matches := make([]DocumentMatch, 0, len(res.Chunks))
	seen := make(map[string]bool)
	for _, c := range res.Chunks {
		// Chunks arrive sorted by score, so the first chunk of a document is
		// its best one.
		if seen[c.DocumentID] {
			continue
		}
		seen[c.DocumentID] = true

		doc, err := s.docs.GetByExternalIDAndTenant(ctx, c.DocumentID, input.TenantID)
		if err != nil {
			return nil, errs.Wrap(errs.KindStorage, "load matched document failed", err)
		}
		if doc == nil {
			// Deleted between ranking and lookup; drop the hit.
			continue
		}
		matches = append(matches, DocumentMatch{
			DocumentID: c.DocumentID,
			Name:       doc.Name,
			Score:      c.Score,
			BestChunk:  c,
			Stale:      c.Stale,
		})
	}
	return matches, nil
}

// generate asks the completion model for an answer grounded in the retrieved
// chunks. A completion failure degrades the response to chunks-only rather
// than failing a query whose retrieval already succeeded.
func (s *RetrievalService) generate(ctx context.Context, query string, result *QueryResult) {
	if len(result.Chunks) == 0 {
		result.Degraded = true
		result.Warning = "no relevant passages found; answer generation skipped"
		return
	}

	context := buildContext(result.Chunks, s.maxContextChars)
	messages := []ai.ChatMessage{
		{Role: "system", Content: answerSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Context passages:\n\n%s\n\nQuestion: %s", context, query)},
	}

	answer, err := s.completer.Complete(ctx, messages)
	if err != nil {
		result.Degraded = true
		result.Warning = "answer generation unavailable; returning retrieved passages only"
		return
	}
	result.Answer = strings.TrimSpace(answer)
}

// buildContext concatenates chunk texts in rank order under a character
// budget. Lower-ranked chunks are dropped first; the top chunk is truncated
// rather than dropped if it alone exceeds the budget.
func buildContext(chunks []RetrievedChunk, maxChars int) string {
	var b strings.Builder
	used := 0
	for i, c := range chunks {
		passage := fmt.Sprintf("[%d] %s", i+1, c.Content)
		runes := []rune(passage)
		need := len(runes)
		if i > 0 {
			need += 2 // separator
		}
		if used+need > maxChars {
			if i == 0 {
				b.WriteString(string(runes[:maxChars]))
			}
			break
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(passage)
		used += need
	}
	return b.String()
}
