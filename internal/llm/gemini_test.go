package llm

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestGenerate_ReturnsText(t *testing.T) {
	var gotPath string
	var gotAPIKey string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("x-goog-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}

		w.Write([]byte(`{
			"candidates": [
				{"content": {"parts": [{"text": "# レポート\n\n本文"}]}}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), testLogger(), "test-key")
	client.endpoint = server.URL

	text, err := client.Generate(context.Background(), "テストプロンプト")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if text != "# レポート\n\n本文" {
		t.Errorf("text = %q, want report markdown", text)
	}
	if !strings.Contains(gotPath, "gemini-2.5-flash:generateContent") {
		t.Errorf("path = %q, want generateContent for gemini-2.5-flash", gotPath)
	}
	if gotAPIKey != "test-key" {
		t.Errorf("x-goog-api-key = %q, want %q", gotAPIKey, "test-key")
	}

	// 生成パラメータの検証
	cfg, ok := gotBody["generationConfig"].(map[string]interface{})
	if !ok {
		t.Fatal("request body should contain generationConfig")
	}
	if cfg["temperature"] != 0.3 {
		t.Errorf("temperature = %v, want 0.3", cfg["temperature"])
	}
	if cfg["maxOutputTokens"] != float64(2048) {
		t.Errorf("maxOutputTokens = %v, want 2048", cfg["maxOutputTokens"])
	}
}

// 複数パートのレスポンスは連結されることを検証
func TestGenerate_ConcatenatesParts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"candidates": [
				{"content": {"parts": [{"text": "前半"}, {"text": "後半"}]}}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), testLogger(), "key")
	client.endpoint = server.URL

	text, err := client.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if text != "前半後半" {
		t.Errorf("text = %q, want %q", text, "前半後半")
	}
}

func TestGenerate_EmptyCandidates_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates": []}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), testLogger(), "key")
	client.endpoint = server.URL

	_, err := client.Generate(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected error for empty candidates, got nil")
	}
}

func TestGenerate_ErrorStatus_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "quota exceeded"}}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), testLogger(), "key")
	client.endpoint = server.URL

	_, err := client.Generate(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected error for 429 response, got nil")
	}
}

func TestGenerate_InvalidJSON_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway error</html>`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), testLogger(), "key")
	client.endpoint = server.URL

	_, err := client.Generate(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}
