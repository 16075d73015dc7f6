package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func gateway(t *testing.T, status int, content string, inspect func(chatRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var req chatRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if inspect != nil {
			inspect(req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
			})
			return
		}
		_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGatewayClient_RequestsJSONSchema(t *testing.T) {
	var seen chatRequest
	srv := gateway(t, http.StatusOK, `{"items":[{"a":1}]}`, func(r chatRequest) { seen = r })
	c := NewGatewayClient(srv.URL, "test-key", "google/gemini-2.5-flash", time.Second)

	raw, err := c.Complete(context.Background(), Request{Name: "recommendations", SystemPrompt: "sys", UserPrompt: "user", Schema: recommendationSchema})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if string(raw) != `[{"a":1}]` {
		t.Fatalf("unexpected items %s", raw)
	}
	if seen.Model != "google/gemini-2.5-flash" || len(seen.Messages) != 2 || seen.Messages[0].Role != "system" {
		t.Fatalf("unexpected request %+v", seen)
	}
	if seen.ResponseFormat.Type != "json_schema" || !seen.ResponseFormat.JSONSchema.Strict {
		t.Fatalf("expected strict json_schema response format, got %+v", seen.ResponseFormat)
	}
	if _, ok := seen.ResponseFormat.JSONSchema.Schema["properties"].(map[string]any)["items"]; !ok {
		t.Fatalf("schema must wrap items: %+v", seen.ResponseFormat.JSONSchema.Schema)
	}
}

func TestGatewayClient_StripsFences(t *testing.T) {
	srv := gateway(t, http.StatusOK, "```json\n{\"items\":[]}\n```", nil)
	c := NewGatewayClient(srv.URL, "test-key", "m", time.Second)
	raw, err := c.Complete(context.Background(), Request{Name: "x"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if string(raw) != "[]" {
		t.Fatalf("unexpected items %s", raw)
	}
}

func TestGatewayClient_ErrorClassification(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		content string
		want    error
	}{
		{"rate limited", http.StatusTooManyRequests, "", ErrUpstreamRateLimited},
		{"payment", http.StatusPaymentRequired, "", ErrUpstreamPaymentRequired},
		{"server error", http.StatusBadGateway, "", ErrUpstream},
		{"prose instead of json", http.StatusOK, "Here are some ideas: be careful.", ErrInvalidResponseFormat},
		{"items not array", http.StatusOK, `{"items":{"title":"x"}}`, ErrInvalidResponseFormat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := gateway(t, tc.status, tc.content, nil)
			c := NewGatewayClient(srv.URL, "test-key", "m", time.Second)
			_, err := c.Complete(context.Background(), Request{Name: "x"})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestGatewayClient_NotConfigured(t *testing.T) {
	c := NewGatewayClient("http://127.0.0.1:0", "", "m", time.Second)
	if _, err := c.Complete(context.Background(), Request{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
