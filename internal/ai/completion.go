package ai

import (
	"context"

	"vecbridge/internal/errs"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete generates text conditioned on the given messages.
func (c *Client) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", errs.New(errs.KindInvalidRequest, "no messages for completion")
	}

	reqBody := map[string]interface{}{
		"model":    c.cfg.CompletionModel,
		"messages": messages,
		"stream":   false,
	}

	var parsed completionResponse
	err := c.callWithRetry(ctx, func() error {
		parsed = completionResponse{}
		return c.postJSON(ctx, "/chat/completions", reqBody, c.cfg.CompleteTimeout, &parsed)
	})
	if err != nil {
		return "", err
	}

	if len(parsed.Choices) == 0 {
		return "", errs.New(errs.KindUnavailable, "empty completion from provider")
	}
	return parsed.Choices[0].Message.Content, nil
}
