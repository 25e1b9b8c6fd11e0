package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatReply(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]int{"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg Config) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg.APIKey = "test-key"
	cfg.BaseURL = srv.URL + "/v1"
	cfg.RetryDelay = time.Millisecond
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestCompleteSendsSingleUserMessage(t *testing.T) {
	var got chatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("got path %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("got Authorization %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatReply("Patient Information:\n- Patient Name: Jane"))
	}, Config{Provider: ProviderGemini})

	reply, err := client.Complete(context.Background(), "Prescription Text:\nJane\n")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if want := "Patient Information:\n- Patient Name: Jane"; reply != want {
		t.Errorf("got %q, want %q", reply, want)
	}
	if got.Model != DefaultGeminiModel {
		t.Errorf("got model %q, want %q", got.Model, DefaultGeminiModel)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" || got.Messages[0].Content != "Prescription Text:\nJane\n" {
		t.Errorf("unexpected messages: %+v", got.Messages)
	}
}

func TestCompleteRetries(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(chatReply("ok"))
	}, Config{Provider: ProviderOpenAI, MaxRetries: 2})

	reply, err := client.Complete(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != "ok" {
		t.Errorf("got %q, want %q", reply, "ok")
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("got %d calls, want 2", n)
	}
}

func TestCompleteSingleAttemptByDefault(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}, Config{})

	_, err := client.Complete(context.Background(), "hi")
	if !errors.Is(err, ErrCompletionFailed) {
		t.Errorf("got %v, want ErrCompletionFailed", err)
	}
	var completionErr *CompletionError
	if !errors.As(err, &completionErr) || completionErr.Op != "Complete" {
		t.Errorf("got %v, want *CompletionError from Complete", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("got %d calls, want 1", n)
	}
}

func TestCompleteNoChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		reply := chatReply("")
		reply["choices"] = []any{}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reply)
	}, Config{})

	_, err := client.Complete(context.Background(), "hi")
	if !errors.Is(err, ErrNoChoices) {
		t.Errorf("got %v, want ErrNoChoices", err)
	}
}

func TestCompleteCanceled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}, Config{MaxRetries: 3})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, "hi")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want context.DeadlineExceeded", err)
	}
}

func TestNewClientConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
		model   string
	}{
		{name: "missing key", cfg: Config{Provider: ProviderGemini}, wantErr: ErrMissingAPIKey},
		{name: "unknown provider", cfg: Config{Provider: "llama", APIKey: "k"}, wantErr: ErrUnknownProvider},
		{name: "gemini default", cfg: Config{APIKey: "k"}, model: DefaultGeminiModel},
		{name: "openai default", cfg: Config{Provider: "OpenAI", APIKey: "k"}, model: DefaultOpenAIModel},
		{name: "explicit model", cfg: Config{Provider: ProviderOpenAI, APIKey: "k", Model: "gpt-4o"}, model: "gpt-4o"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("got %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewClient: %v", err)
			}
			if client.Model() != tt.model {
				t.Errorf("got model %q, want %q", client.Model(), tt.model)
			}
		})
	}
}
