package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func geminiReply(text string) map[string]interface{} {
	return map[string]interface{}{
		"candidates": []map[string]interface{}{
			{
				"content": map[string]interface{}{
					"parts": []map[string]interface{}{
						{"text": text},
					},
				},
			},
		},
	}
}

func TestGeminiGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1beta/models/gemini-pro:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-api-key" {
			t.Errorf("api key header = %q", r.Header.Get("x-goog-api-key"))
		}

		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Contents) != 1 || req.Contents[0].Parts[0].Text != "the prompt" {
			t.Errorf("unexpected request body: %+v", req)
		}

		json.NewEncoder(w).Encode(geminiReply(`{"daily_trend": {"summary": "ok"}}`))
	}))
	defer server.Close()

	g := NewGemini("test-api-key",
		WithModel("gemini-pro"),
		WithBaseURL(server.URL),
	)

	text, err := g.Generate(context.Background(), "the prompt")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != `{"daily_trend": {"summary": "ok"}}` {
		t.Errorf("text = %q", text)
	}
}

func TestGeminiJoinsParts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]interface{}{{"text": "```json\n{"}, {"text": "}\n```"}},
				}},
			},
		})
	}))
	defer server.Close()

	text, err := NewGemini("k", WithBaseURL(server.URL)).Generate(context.Background(), "p")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "```json\n{}\n```" {
		t.Errorf("text = %q", text)
	}
}

func TestGeminiMissingKey(t *testing.T) {
	_, err := NewGemini("").Generate(context.Background(), "p")
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("err = %v, want ErrBackendUnavailable", err)
	}
}

func TestGeminiServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": "quota"}`))
	}))
	defer server.Close()

	_, err := NewGemini("test-key", WithBaseURL(server.URL)).Generate(context.Background(), "p")
	if !errors.Is(err, ErrBackendError) {
		t.Fatalf("err = %v, want ErrBackendError", err)
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error should carry status, got %v", err)
	}
}

func TestGeminiEmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"candidates": []interface{}{}})
	}))
	defer server.Close()

	_, err := NewGemini("test-key", WithBaseURL(server.URL)).Generate(context.Background(), "p")
	if !errors.Is(err, ErrBackendError) {
		t.Fatalf("err = %v, want ErrBackendError", err)
	}
}

func TestGeminiContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGemini("test-key", WithBaseURL(server.URL)).Generate(ctx, "p")
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestGeminiDefaults(t *testing.T) {
	g := NewGemini("test-key")
	if g.model != "gemini-1.5-flash-8b" {
		t.Errorf("default model = %q", g.model)
	}
	if g.Name() != "gemini" {
		t.Errorf("Name = %q", g.Name())
	}
}

func TestGeminiThroughChain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiReply("```json\n" + validResponse + "\n```"))
	}))
	defer server.Close()

	chain := NewChain(Remote(NewGemini("k", WithBaseURL(server.URL)), time.Second))
	res := chain.Summarize(context.Background(), chainArticles)
	if res.Stage != "gemini" {
		t.Fatalf("stage = %q, failures = %v", res.Stage, res.Failures)
	}
	if len(res.Summary.TopTopics) != 2 {
		t.Errorf("top topics = %d, want 2", len(res.Summary.TopTopics))
	}
}
