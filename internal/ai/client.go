package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"dreamlog_backend/internal/config"
	"dreamlog_backend/pkg/apperrors"
)

// Message is one turn of a chat-completions conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Client talks to an OpenAI-compatible chat-completions endpoint
// (OpenRouter by default).
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		apiKey:  cfg.AI.APIKey,
		baseURL: cfg.AI.BaseURL,
		model:   cfg.AI.Model,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
		},
	}
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Complete sends the conversation and returns the assistant's reply.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	return c.complete(ctx, messages, nil)
}

// CompleteJSON asks the model to answer with a JSON object.
func (c *Client) CompleteJSON(ctx context.Context, messages []Message) (string, error) {
	return c.complete(ctx, messages, &responseFormat{Type: "json_object"})
}

func (c *Client) complete(ctx context.Context, messages []Message, format *responseFormat) (string, error) {
	if !c.Configured() {
		return "", apperrors.New(apperrors.CodeAIProviderError, "AI provider is not configured", http.StatusServiceUnavailable)
	}

	body, err := json.Marshal(chatRequest{
		Model:          c.model,
		Messages:       messages,
		ResponseFormat: format,
	})
	if err != nil {
		return "", apperrors.InternalError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", apperrors.InternalError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperrors.UpstreamError(err, apperrors.CodeAIProviderError, "AI provider unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", apperrors.UpstreamError(err, apperrors.CodeAIProviderError, "Failed to read AI response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperrors.UpstreamError(
			fmt.Errorf("chat completions returned %d: %s", resp.StatusCode, truncate(raw, 200)),
			apperrors.CodeAIProviderError,
			"AI provider request failed",
		)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", apperrors.UpstreamError(err, apperrors.CodeAIProviderError, "Malformed AI response")
	}
	if parsed.Error != nil {
		return "", apperrors.UpstreamError(
			fmt.Errorf("provider error: %s", parsed.Error.Message),
			apperrors.CodeAIProviderError,
			"AI provider request failed",
		)
	}
	if len(parsed.Choices) == 0 {
		return "", apperrors.UpstreamError(
			fmt.Errorf("no choices in response"),
			apperrors.CodeAIProviderError,
			"AI provider returned no content",
		)
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
