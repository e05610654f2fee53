package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"vecbridge/internal/ai"
	"vecbridge/internal/model"
	"vecbridge/internal/vectorstore"
)

// In-memory collaborators for pipeline tests.

type fakeStore struct {
	mu     sync.Mutex
	nextID uint
	docs   map[uint]*model.Document
	chunks map[uint][]model.Chunk

	markFailedCalls int
	planCalls       int
	saveBatchCalls  int

	failSaveAtCall   int // 0 disables; N fails the Nth SaveEmbeddedBatch
	hashLookupMisses int // force the first N GetByTenantAndHash calls to miss
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID: 1,
		docs:   make(map[uint]*model.Document),
		chunks: make(map[uint][]model.Chunk),
	}
}

func (s *fakeStore) Create(_ context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.docs {
		if d.TenantID == doc.TenantID && d.ContentHash == doc.ContentHash {
			return errors.New("duplicate entry for key idx_doc_tenant_hash")
		}
	}
	doc.ID = s.nextID
	s.nextID++
	cp := *doc
	s.docs[doc.ID] = &cp
	return nil
}

func (s *fakeStore) GetByExternalIDAndTenant(_ context.Context, externalID string, tenantID uint) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.docs {
		if d.ExternalID == externalID && d.TenantID == tenantID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) GetByTenantAndHash(_ context.Context, tenantID uint, hash string) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hashLookupMisses > 0 {
		s.hashLookupMisses--
		return nil, nil
	}
	for _, d := range s.docs {
		if d.TenantID == tenantID && d.ContentHash == hash {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ListByTenant(_ context.Context, tenantID uint) ([]model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Document
	for _, d := range s.docs {
		if d.TenantID == tenantID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *fakeStore) ResolveInternalIDs(_ context.Context, tenantID uint, externalIDs []string) ([]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uint
	for _, ext := range externalIDs {
		for _, d := range s.docs {
			if d.ExternalID == ext && d.TenantID == tenantID {
				out = append(out, d.ID)
			}
		}
	}
	return out, nil
}

func (s *fakeStore) MarkFailed(_ context.Context, docID uint, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markFailedCalls++
	if d, ok := s.docs[docID]; ok {
		d.Status = model.StatusFailed
		d.FailReason = reason
	}
	return nil
}

func (s *fakeStore) DeleteCascade(_ context.Context, docID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, docID)
	delete(s.chunks, docID)
	return nil
}

func (s *fakeStore) PlanChunks(_ context.Context, docID uint, chunks []model.Chunk, contentHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planCalls++
	rows := make([]model.Chunk, len(chunks))
	copy(rows, chunks)
	s.chunks[docID] = rows
	if d, ok := s.docs[docID]; ok {
		d.Status = model.StatusChunked
		d.ContentHash = contentHash
		d.ChunkCount = len(rows)
		d.EmbeddedUpTo = 0
	}
	return nil
}

func (s *fakeStore) SaveEmbeddedBatch(_ context.Context, docID uint, batch []model.Chunk, cursor int, final bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveBatchCalls++
	if s.failSaveAtCall > 0 && s.saveBatchCalls == s.failSaveAtCall {
		return errors.New("simulated storage failure")
	}
	rows := s.chunks[docID]
	for _, b := range batch {
		for i := range rows {
			if rows[i].Seq == b.Seq {
				rows[i].Embedding = b.Embedding
				rows[i].EmbeddingModel = b.EmbeddingModel
				rows[i].EmbeddingDim = b.EmbeddingDim
			}
		}
	}
	if d, ok := s.docs[docID]; ok {
		d.EmbeddedUpTo = cursor
		if final {
			d.Status = model.StatusEmbedded
		}
	}
	return nil
}

func (s *fakeStore) ListByDocumentID(_ context.Context, docID uint) ([]model.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.chunks[docID]
	out := make([]model.Chunk, len(rows))
	copy(out, rows)
	return out, nil
}

func (s *fakeStore) doc(docID uint) model.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.docs[docID]
}

type fakeEmbedder struct {
	mu         sync.Mutex
	model      string
	dim        int
	batchCalls int
	textsSent  []string

	failAtText string // embedding this exact text fails the batch
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{model: "test-embed", dim: 4}
}

func (e *fakeEmbedder) ModelName() string { return e.model }

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batchCalls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if e.failAtText != "" && t == e.failAtText {
			return nil, errors.New("provider unavailable")
		}
		e.textsSent = append(e.textsSent, t)
		vec := make([]float32, e.dim)
		for j := range vec {
			vec[j] = float32(len(t)+j) / 10
		}
		out[i] = vec
	}
	return out, nil
}

func (e *fakeEmbedder) sentCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.textsSent)
}

type fakeCache struct {
	mu     sync.Mutex
	data   map[string][]float32
	getErr error
	hits   int
	misses int
	setCnt int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]float32)}
}

func (c *fakeCache) Get(_ context.Context, modelName, text string) ([]float32, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	vec, ok := c.data[modelName+"/"+text]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return vec, ok, nil
}

func (c *fakeCache) Set(_ context.Context, modelName, text string, vec []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setCnt++
	c.data[modelName+"/"+text] = vec
	return nil
}

type fakeScheduler struct {
	mu   sync.Mutex
	jobs []string
}

func (f *fakeScheduler) ScheduleReingest(_ context.Context, docExternalID string, _ uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, docExternalID)
	return nil
}

func (f *fakeScheduler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

type fakeSearcher struct {
	matches    []vectorstore.Match
	err        error
	lastFilter vectorstore.Filter
	calls      int
}

func (f *fakeSearcher) Search(_ context.Context, _ []float32, filter vectorstore.Filter, topK int) ([]vectorstore.Match, error) {
	f.calls++
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	if topK < len(f.matches) {
		return f.matches[:topK], nil
	}
	return f.matches, nil
}

type fakeCompleter struct {
	answer   string
	err      error
	calls    int
	lastMsgs []ai.ChatMessage
}

func (f *fakeCompleter) Complete(_ context.Context, messages []ai.ChatMessage) (string, error) {
	f.calls++
	f.lastMsgs = messages
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func chunkMatch(id uint, docExt string, seq int, content string, score float64) vectorstore.Match {
	return vectorstore.Match{
		Chunk:         model.Chunk{ID: id, Seq: seq, Content: content},
		DocExternalID: docExt,
		Score:         score,
	}
}

func threeMatches() []vectorstore.Match {
	return []vectorstore.Match{
		chunkMatch(1, "doc-a", 0, "alpha text about the first topic", 0.95),
		chunkMatch(2, "doc-a", 1, "beta text about the second topic", 0.80),
		chunkMatch(3, "doc-b", 0, "gamma text about the third topic", 0.60),
	}
}

func repeatText(prefix string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += fmt.Sprintf("%s sentence number %d provides filler. ", prefix, i)
	}
	return out
}
