package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestOllamaProvider_Classify_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Expected path /api/generate, got %s", r.URL.Path)
		}

		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Format != "json" {
			t.Errorf("Expected format json, got %q", req.Format)
		}
		if req.Stream {
			t.Error("Expected stream to be false")
		}
		if req.Model != "llama3.1:8b" {
			t.Errorf("Expected model llama3.1:8b, got %s", req.Model)
		}
		if !strings.Contains(req.Prompt, "https://login.example/") {
			t.Errorf("Prompt missing URL: %s", req.Prompt)
		}

		_ = json.NewEncoder(w).Encode(ollamaResponse{
			Model:           "llama3.1:8b",
			Response:        `{"phishing_probability": 0.7}`,
			Done:            true,
			PromptEvalCount: 40,
			EvalCount:       8,
		})
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(Config{Model: "llama3.1:8b", BaseURL: server.URL + "/", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.Classify(context.Background(), ClassifyRequest{URL: "https://login.example/"})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if resp.Probability != 0.7 {
		t.Errorf("Expected probability 0.7, got %v", resp.Probability)
	}
	if resp.TokensUsed != 48 {
		t.Errorf("Expected 48 tokens, got %d", resp.TokensUsed)
	}
}

func TestOllamaProvider_RequiresModel(t *testing.T) {
	if _, err := NewOllamaProvider(Config{}); err == nil {
		t.Error("Expected error without model")
	}
}

func TestOllamaProvider_Classify_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"model missing", http.StatusNotFound, `{"error":"model 'x' not found"}`, "model 'x' not found"},
		{"plain error", http.StatusBadGateway, `upstream down`, "upstream down"},
		{"malformed", http.StatusOK, `{nope`, "unmarshal response"},
		{"bad reply", http.StatusOK, `{"response":"maybe","done":true}`, "unparseable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			provider, _ := NewOllamaProvider(Config{Model: "x", BaseURL: server.URL})
			_, err := provider.Classify(context.Background(), ClassifyRequest{URL: "https://example.com/"})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestOllamaProvider_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	provider, _ := NewOllamaProvider(Config{Model: "x", BaseURL: server.URL})
	if !provider.IsAvailable(context.Background()) {
		t.Error("Expected available to be true")
	}

	server.Close()
	if provider.IsAvailable(context.Background()) {
		t.Error("Expected available to be false after shutdown")
	}
}
