package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func completionHandler(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "demo-model",
			"choices": []any{
				map[string]any{
					"index":         0,
					"finish_reason": "stop",
					"message": map[string]any{
						"role":    "assistant",
						"content": content,
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}
}

func TestCompleteJSONSendsChatRequest(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		completionHandler(t, `{"versions":["a","b","c"]}`)(w, r)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL + "/api/v3", Model: "demo-model"})
	content, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if content != `{"versions":["a","b","c"]}` {
		t.Fatalf("unexpected content %q", content)
	}
	if gotPath != "/api/v3/chat/completions" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotBody["model"] != "demo-model" {
		t.Fatalf("unexpected model %v", gotBody["model"])
	}
	if temp, _ := gotBody["temperature"].(float64); temp != DefaultTemperature {
		t.Fatalf("unexpected temperature %v", gotBody["temperature"])
	}
}

func TestCompleteJSONRequiresConfiguration(t *testing.T) {
	client := NewClient(Config{APIKey: "key"})
	if client.Configured() {
		t.Fatal("client without model should not be configured")
	}
	if _, err := client.CompleteJSON(context.Background(), "s", "u"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestCompleteJSONStatusErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"unauthorized"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	_, err := client.CompleteJSON(context.Background(), "s", "u")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 StatusError, got %v", err)
	}
	if !IsUnavailable(err) {
		t.Fatal("status errors should count as unavailable")
	}
}

func TestCompleteJSONEmptyContent(t *testing.T) {
	server := httptest.NewServer(completionHandler(t, "   "))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "m"})
	_, err := client.CompleteJSON(context.Background(), "s", "u")
	var emptyErr *EmptyContentError
	if !errors.As(err, &emptyErr) {
		t.Fatalf("expected EmptyContentError, got %v", err)
	}
	if emptyErr.FinishReason != "stop" {
		t.Fatalf("unexpected finish reason %q", emptyErr.FinishReason)
	}
}

func TestCompleteJSONTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "m", Timeout: 50 * time.Millisecond})
	_, err := client.CompleteJSON(context.Background(), "s", "u")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsUnavailable(err) {
		t.Fatalf("expected timeout to be unavailable, got %v", err)
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
			return
		}
		completionHandler(t, `{"ok":true}`)(w, r)
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "k", BaseURL: server.URL, Model: "m"},
		WithRetryMaxAttempts(3),
		WithRetryBackoff(10*time.Millisecond, 40*time.Millisecond),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
	)
	content, err := client.CompleteJSON(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if !strings.Contains(content, "ok") {
		t.Fatalf("unexpected content %q", content)
	}
	if calls.Load() != 2 || len(slept) != 1 || slept[0] != 10*time.Millisecond {
		t.Fatalf("unexpected retry behaviour: calls=%d slept=%v", calls.Load(), slept)
	}
}

func TestDecodeLLMJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"plain", `{"versions":["a"]}`, false},
		{"fenced", "```json\n{\"versions\":[\"a\"]}\n```", false},
		{"prose around fence", "好的：\n```JSON\n{\"versions\":[\"a\"]}\n```\n以上", false},
		{"prose around object", `here you go {"versions":["a"]} thanks`, false},
		{"empty", "  ", true},
		{"garbage", "not json", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				Versions []string `json:"versions"`
			}
			err := DecodeLLMJSON(tt.content, &out)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeLLMJSON error: %v", err)
			}
			if len(out.Versions) != 1 || out.Versions[0] != "a" {
				t.Fatalf("unexpected decode %+v", out)
			}
		})
	}
}
