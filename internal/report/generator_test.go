package report

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/reportify/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// mockSearcher は検索コラボレータのモック。
type mockSearcher struct {
	searchFunc func(ctx context.Context, query string) ([]model.SearchResult, error)
	calls      int
}

func (m *mockSearcher) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	m.calls++
	return m.searchFunc(ctx, query)
}

// mockTextGenerator はテキスト生成コラボレータのモック。
type mockTextGenerator struct {
	generateFunc func(ctx context.Context, prompt string) (string, error)
	calls        int
	lastPrompt   string
}

func (m *mockTextGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.calls++
	m.lastPrompt = prompt
	return m.generateFunc(ctx, prompt)
}

func twoResults() []model.SearchResult {
	return []model.SearchResult{
		{Title: "記事1", URL: "https://example.com/1", Content: "内容1"},
		{Title: "記事2", URL: "https://example.com/2", Content: "内容2"},
	}
}

func TestGenerate_Success(t *testing.T) {
	searcher := &mockSearcher{
		searchFunc: func(ctx context.Context, query string) ([]model.SearchResult, error) {
			return twoResults(), nil
		},
	}
	textGen := &mockTextGenerator{
		generateFunc: func(ctx context.Context, prompt string) (string, error) {
			return "# AI市場レポート\n\n本文", nil
		},
	}

	g := NewGenerator(searcher, textGen, testLogger(), 0)
	result := g.Generate(context.Background(), "AI市場の動向")

	if result.Status != model.GenerationSuccess {
		t.Fatalf("Status = %q, want %q (report: %s)", result.Status, model.GenerationSuccess, result.Report)
	}
	if result.Report != "# AI市場レポート\n\n本文" {
		t.Errorf("Report = %q, want generated text", result.Report)
	}
	if len(result.Sources) != 2 {
		t.Fatalf("len(Sources) = %d, want 2", len(result.Sources))
	}
	if result.Sources[0] != "https://example.com/1" || result.Sources[1] != "https://example.com/2" {
		t.Errorf("Sources = %v, want URLs in search result order", result.Sources)
	}
}

// プロンプトにトピックと番号付きソースブロックが埋め込まれることを検証
func TestGenerate_PromptContainsTopicAndSources(t *testing.T) {
	searcher := &mockSearcher{
		searchFunc: func(ctx context.Context, query string) ([]model.SearchResult, error) {
			return []model.SearchResult{
				{Title: "記事", URL: "https://example.com/a", Content: "コンテンツA"},
				{Title: "欠損", URL: "", Content: ""},
			}, nil
		},
	}
	textGen := &mockTextGenerator{
		generateFunc: func(ctx context.Context, prompt string) (string, error) {
			return "report", nil
		},
	}

	g := NewGenerator(searcher, textGen, testLogger(), 0)
	g.Generate(context.Background(), "量子コンピューティング")

	prompt := textGen.lastPrompt
	if !strings.Contains(prompt, "USER REQUEST: 量子コンピューティング") {
		t.Errorf("prompt should contain the topic, got: %.200s", prompt)
	}
	if !strings.Contains(prompt, "Source 1: コンテンツA\nURL: https://example.com/a") {
		t.Errorf("prompt should contain numbered source block, got: %.400s", prompt)
	}
	// 欠損フィールドはN/Aで補完される
	if !strings.Contains(prompt, "Source 2: N/A\nURL: N/A") {
		t.Errorf("prompt should fill missing fields with N/A, got: %.400s", prompt)
	}
}

// 検索が失敗した場合、テキスト生成コラボレータは呼ばれないことを検証
func TestGenerate_SearchError_SkipsTextGeneration(t *testing.T) {
	searcher := &mockSearcher{
		searchFunc: func(ctx context.Context, query string) ([]model.SearchResult, error) {
			return nil, errors.New("api unreachable")
		},
	}
	textGen := &mockTextGenerator{
		generateFunc: func(ctx context.Context, prompt string) (string, error) {
			return "should not be called", nil
		},
	}

	g := NewGenerator(searcher, textGen, testLogger(), 0)
	result := g.Generate(context.Background(), "トピック")

	if result.Status != model.GenerationError {
		t.Errorf("Status = %q, want %q", result.Status, model.GenerationError)
	}
	if !strings.Contains(result.Report, "Generation failed:") {
		t.Errorf("Report = %q, should contain failure message", result.Report)
	}
	if textGen.calls != 0 {
		t.Errorf("text generator calls = %d, want 0", textGen.calls)
	}
	if len(result.Sources) != 0 {
		t.Errorf("Sources = %v, want empty", result.Sources)
	}
}

// 検索結果が0件の場合、テキスト生成コラボレータは呼ばれないことを検証
func TestGenerate_EmptySearchResults_SkipsTextGeneration(t *testing.T) {
	searcher := &mockSearcher{
		searchFunc: func(ctx context.Context, query string) ([]model.SearchResult, error) {
			return []model.SearchResult{}, nil
		},
	}
	textGen := &mockTextGenerator{
		generateFunc: func(ctx context.Context, prompt string) (string, error) {
			return "should not be called", nil
		},
	}

	g := NewGenerator(searcher, textGen, testLogger(), 0)
	result := g.Generate(context.Background(), "極端にニッチなトピック")

	if result.Status != model.GenerationError {
		t.Errorf("Status = %q, want %q", result.Status, model.GenerationError)
	}
	if result.Report != "No search results found. Try a different topic." {
		t.Errorf("Report = %q, want no-results message", result.Report)
	}
	if textGen.calls != 0 {
		t.Errorf("text generator calls = %d, want 0", textGen.calls)
	}
}

func TestGenerate_TextGenerationError_ReturnsErrorResult(t *testing.T) {
	searcher := &mockSearcher{
		searchFunc: func(ctx context.Context, query string) ([]model.SearchResult, error) {
			return twoResults(), nil
		},
	}
	textGen := &mockTextGenerator{
		generateFunc: func(ctx context.Context, prompt string) (string, error) {
			return "", errors.New("model overloaded")
		},
	}

	g := NewGenerator(searcher, textGen, testLogger(), 0)
	result := g.Generate(context.Background(), "トピック")

	if result.Status != model.GenerationError {
		t.Errorf("Status = %q, want %q", result.Status, model.GenerationError)
	}
	if !strings.Contains(result.Report, "model overloaded") {
		t.Errorf("Report = %q, should contain the underlying error", result.Report)
	}
}

// timeoutが設定されている場合、コラボレータに期限付きctxが渡されることを検証
func TestGenerate_AppliesTimeout(t *testing.T) {
	var hadDeadline bool
	searcher := &mockSearcher{
		searchFunc: func(ctx context.Context, query string) ([]model.SearchResult, error) {
			_, hadDeadline = ctx.Deadline()
			return twoResults(), nil
		},
	}
	textGen := &mockTextGenerator{
		generateFunc: func(ctx context.Context, prompt string) (string, error) {
			return "report", nil
		},
	}

	g := NewGenerator(searcher, textGen, testLogger(), 30*time.Second)
	g.Generate(context.Background(), "トピック")

	if !hadDeadline {
		t.Error("expected collaborator context to carry a deadline")
	}
}

func TestExtractSources_SkipsEmptyURLs(t *testing.T) {
	results := []model.SearchResult{
		{URL: "https://example.com/1"},
		{URL: ""},
		{URL: "https://example.com/2"},
	}

	sources := extractSources(results)
	if len(sources) != 2 {
		t.Fatalf("len(sources) = %d, want 2", len(sources))
	}
	if sources[0] != "https://example.com/1" || sources[1] != "https://example.com/2" {
		t.Errorf("sources = %v, want non-empty URLs in order", sources)
	}
}
