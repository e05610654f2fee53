package ai

import (
	"context"
	"fmt"

	"vecbridge/internal/errs"
)

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one provider call. The returned vectors are
// aligned with the input by position; a response of the wrong shape is an
// error, never silently realigned.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errs.New(errs.KindInvalidRequest, "no texts to embed")
	}
	for _, t := range texts {
		if err := c.validateInput(t); err != nil {
			return nil, err
		}
	}

	reqBody := map[string]interface{}{
		"model": c.cfg.EmbeddingModel,
		"input": texts,
	}

	var parsed embeddingResponse
	err := c.callWithRetry(ctx, func() error {
		parsed = embeddingResponse{}
		return c.postJSON(ctx, "/embeddings", reqBody, c.cfg.EmbedTimeout, &parsed)
	})
	if err != nil {
		return nil, err
	}

	if len(parsed.Data) != len(texts) {
		return nil, errs.Wrap(errs.KindUnavailable, "malformed provider response",
			fmt.Errorf("embedding count mismatch: sent %d, got %d", len(texts), len(parsed.Data)))
	}

	result := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, errs.Wrap(errs.KindUnavailable, "malformed provider response",
				fmt.Errorf("embedding index %d out of range", d.Index))
		}
		if c.cfg.EmbeddingDim > 0 && len(d.Embedding) != c.cfg.EmbeddingDim {
			return nil, errs.Wrap(errs.KindInvalidModel, "embedding dimension mismatch",
				fmt.Errorf("expected %d, got %d", c.cfg.EmbeddingDim, len(d.Embedding)))
		}
		result[d.Index] = d.Embedding
	}
	for i, v := range result {
		if v == nil {
			return nil, errs.Wrap(errs.KindUnavailable, "malformed provider response",
				fmt.Errorf("missing embedding for input %d", i))
		}
	}
	return result, nil
}
