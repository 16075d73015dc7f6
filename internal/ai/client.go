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
)

var (
	ErrNotConfigured           = errors.New("ai: gateway api key not configured")
	ErrUpstreamRateLimited     = errors.New("ai: upstream rate limited")
	ErrUpstreamPaymentRequired = errors.New("ai: upstream payment required")
	ErrUpstream                = errors.New("ai: upstream error")
	ErrInvalidResponseFormat   = errors.New("ai: invalid response format")
)

// Request is one structured generation. Schema describes a single item; the
// gateway is asked for {"items": [...]} so the reply is always an object.
type Request struct {
	Name         string
	SystemPrompt string
	UserPrompt   string
	Schema       map[string]any
}

// Completer is the provider-agnostic generation interface used by Service.
// It returns the raw JSON of the items array.
type Completer interface {
	Complete(ctx context.Context, req Request) (json.RawMessage, error)
}

// GatewayClient talks to an OpenAI-compatible chat completions endpoint.
type GatewayClient struct {
	url    string
	apiKey string // never serialized
	model  string
	http   *http.Client
}

func NewGatewayClient(url, apiKey, model string, timeout time.Duration) *GatewayClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GatewayClient{url: url, apiKey: apiKey, model: model, http: &http.Client{Timeout: timeout}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type jsonSchemaFormat struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type responseFormat struct {
	Type       string           `json:"type"`
	JSONSchema jsonSchemaFormat `json:"json_schema"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *GatewayClient) Complete(ctx context.Context, req Request) (json.RawMessage, error) {
	if c == nil || c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		ResponseFormat: responseFormat{
			Type: "json_schema",
			JSONSchema: jsonSchemaFormat{
				Name:   req.Name,
				Strict: true,
				Schema: itemsEnvelope(req.Schema),
			},
		},
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("ai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("ai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	const maxBodyBytes = 10 << 20
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrUpstreamRateLimited
	case resp.StatusCode == http.StatusPaymentRequired:
		return nil, ErrUpstreamPaymentRequired
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrUpstream, resp.StatusCode, truncate(string(raw), 200))
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: gateway body: %v", ErrUpstream, err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty choices", ErrInvalidResponseFormat)
	}
	return extractItems(out.Choices[0].Message.Content)
}

// extractItems decodes the {"items": [...]} envelope from message content.
func extractItems(content string) (json.RawMessage, error) {
	var env struct {
		Items json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal([]byte(stripFences(content)), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponseFormat, err)
	}
	if len(env.Items) == 0 || env.Items[0] != '[' {
		return nil, fmt.Errorf("%w: items must be an array", ErrInvalidResponseFormat)
	}
	return env.Items, nil
}

func itemsEnvelope(item map[string]any) map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"items"},
		"properties": map[string]any{
			"items": map[string]any{"type": "array", "items": item},
		},
	}
}

// stripFences removes a surrounding markdown code fence some models add even in JSON mode.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
	}
	if strings.HasSuffix(s, "```") {
		if idx := strings.LastIndex(s, "\n```"); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
