// Package ai wraps the OpenAI-compatible inference service that produces
// embeddings and completions. The client classifies provider failures into
// the service error kinds and retries only what is safe to retry: calls are
// stateless on the provider side, so re-sending a request is idempotent.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vecbridge/internal/errs"
)

type Config struct {
	BaseURL         string
	APIKey          string
	EmbeddingModel  string
	EmbeddingDim    int
	CompletionModel string

	MaxInputChars   int
	EmbedTimeout    time.Duration
	CompleteTimeout time.Duration
	MaxRetries      int
	RetryBase       time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 200 * time.Millisecond
	}
	return &Client{
		cfg: cfg,
		// Per-call deadlines come from the request context; the transport
		// timeout is only a last-resort cap.
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// ModelName returns the identifier of the embedding model this client is
// configured for. Persisted on every chunk so staleness can be detected.
func (c *Client) ModelName() string { return c.cfg.EmbeddingModel }

// Dimension returns the configured embedding dimension.
func (c *Client) Dimension() int { return c.cfg.EmbeddingDim }

// postJSON performs one HTTP POST attempt and decodes the JSON response into
// out. Failures are classified into error kinds.
func (c *Client) postJSON(ctx context.Context, path string, reqBody interface{}, timeout time.Duration, out interface{}) error {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal provider request failed: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("build provider request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return errs.Wrap(errs.KindTimeout, "inference provider call timed out", err)
		}
		return errs.Wrap(errs.KindUnavailable, "inference provider unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return errs.Wrap(errs.KindTimeout, "inference provider call timed out", err)
		}
		return errs.Wrap(errs.KindUnavailable, "read provider response failed", err)
	}

	switch {
	case resp.StatusCode < 300:
	case resp.StatusCode == http.StatusNotFound:
		return errs.Wrap(errs.KindInvalidModel, "model not available on inference provider",
			fmt.Errorf("provider status %d: %s", resp.StatusCode, string(raw)))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return errs.Wrap(errs.KindUnavailable, "inference provider unavailable",
			fmt.Errorf("provider status %d: %s", resp.StatusCode, string(raw)))
	default:
		return fmt.Errorf("provider rejected request: status %d: %s", resp.StatusCode, string(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return errs.Wrap(errs.KindUnavailable, "malformed provider response", err)
	}
	return nil
}

// callWithRetry runs attempt with exponential backoff. Unavailable failures
// are retried up to MaxRetries; a timeout is retried exactly once; everything
// else is fatal immediately.
func (c *Client) callWithRetry(ctx context.Context, attempt func() error) error {
	var lastErr error
	timeoutRetried := false
	for try := 0; ; try++ {
		lastErr = attempt()
		if lastErr == nil {
			return nil
		}

		switch errs.KindOf(lastErr) {
		case errs.KindUnavailable:
			if try >= c.cfg.MaxRetries {
				return lastErr
			}
		case errs.KindTimeout:
			if timeoutRetried {
				return lastErr
			}
			timeoutRetried = true
		default:
			return lastErr
		}

		backoff := c.cfg.RetryBase << uint(try)
		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(backoff):
		}
	}
}

// validateInput enforces the configured input size bound. Oversized inputs
// are rejected outright rather than silently truncated.
func (c *Client) validateInput(text string) error {
	if strings.TrimSpace(text) == "" {
		return errs.New(errs.KindInvalidRequest, "embedding input is empty")
	}
	if c.cfg.MaxInputChars > 0 && len([]rune(text)) > c.cfg.MaxInputChars {
		return errs.New(errs.KindContentTooLarge,
			fmt.Sprintf("input exceeds %d characters", c.cfg.MaxInputChars))
	}
	return nil
}
