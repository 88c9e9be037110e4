// Package report はリサーチレポート生成のドメインロジックを提供する。
// 検索コラボレータの結果をコンテキストブロックに整形し、
// 固定プロンプトテンプレートとともにテキスト生成コラボレータへ渡す。
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/reportify/internal/model"
)

// promptTemplate はレポート生成用の固定プロンプトテンプレート。
// %[1]sにトピック、%[2]sに検索結果コンテキストを埋め込む。
// 出力はMarkdown形式で、必須セクションと目標文字数を指定する。
const promptTemplate = `You are a senior market research analyst at a top consulting firm.

USER REQUEST: %[1]s

SEARCH RESULTS:
%[2]s

YOUR TASK:
Write a comprehensive, professional research report in markdown format.

REQUIRED STRUCTURE:
# [Compelling Title]

## Executive Summary
A 3-sentence overview of key findings.

## Market Overview
Current state and recent developments.

## Key Findings
- Finding 1 (with data/evidence)
- Finding 2 (with data/evidence)
- Finding 3 (with data/evidence)

## Deep Analysis
Detailed examination of trends, challenges, and opportunities.

## Future Outlook
Predictions and implications for stakeholders.

## Conclusion
Actionable insights and recommendations.

---
*Sources: [List the sources used]*

GUIDELINES:
- Use professional business language
- Include specific data points and statistics from search results
- Be objective and balanced
- Cite sources naturally in text
- Keep total length 800-1200 words`

// Searcher は検索コラボレータのインターフェース。
// テスタビリティのためsearch.Clientを抽象化する。
type Searcher interface {
	Search(ctx context.Context, query string) ([]model.SearchResult, error)
}

// TextGenerator はテキスト生成コラボレータのインターフェース。
// テスタビリティのためllm.Clientを抽象化する。
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Generator はレポートジェネレータ。
// 状態を持たず、呼び出しごとに検索→整形→生成のフローを実行する。
// コラボレータはコンポジションルートで注入される（プロセス全体の
// シングルトンや隠れたグローバル状態には依存しない）。
type Generator struct {
	searcher  Searcher
	generator TextGenerator
	logger    *slog.Logger
	timeout   time.Duration
}

// NewGenerator はGeneratorの新しいインスタンスを生成する。
// timeoutは検索とテキスト生成を合わせたフロー全体の制限時間。
// 0以下の場合は制限しない。
func NewGenerator(searcher Searcher, generator TextGenerator, logger *slog.Logger, timeout time.Duration) *Generator {
	return &Generator{
		searcher:  searcher,
		generator: generator,
		logger:    logger,
		timeout:   timeout,
	}
}

// Generate はトピックからリサーチレポートを生成する。
// コラボレータの失敗はエラーとしては返さず、Status=errorの結果に畳み込む。
// 検索結果が0件の場合はテキスト生成コラボレータを呼ばずにエラー結果を返す。
func (g *Generator) Generate(ctx context.Context, topic string) *model.GenerationResult {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	results, err := g.searcher.Search(ctx, topic)
	if err != nil {
		g.logger.Error("検索に失敗しました",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
		return errorResult(fmt.Sprintf("Generation failed: %s", err.Error()))
	}

	if len(results) == 0 {
		return errorResult("No search results found. Try a different topic.")
	}

	prompt := fmt.Sprintf(promptTemplate, topic, buildContext(results))

	text, err := g.generator.Generate(ctx, prompt)
	if err != nil {
		g.logger.Error("テキスト生成に失敗しました",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
		return errorResult(fmt.Sprintf("Generation failed: %s", err.Error()))
	}

	return &model.GenerationResult{
		Status:  model.GenerationSuccess,
		Report:  text,
		Sources: extractSources(results),
	}
}

// buildContext は検索結果を番号付きのコンテキストブロックに整形する。
// 欠損フィールドは"N/A"で補完し、各ブロックは空行で区切る。
func buildContext(results []model.SearchResult) string {
	blocks := make([]string, 0, len(results))
	for i, r := range results {
		content := r.Content
		if content == "" {
			content = "N/A"
		}
		url := r.URL
		if url == "" {
			url = "N/A"
		}
		blocks = append(blocks, fmt.Sprintf("Source %d: %s\nURL: %s", i+1, content, url))
	}
	return strings.Join(blocks, "\n\n")
}

// extractSources は検索結果からURLを順序を保って抽出する。空URLは除外する。
func extractSources(results []model.SearchResult) []string {
	sources := make([]string, 0, len(results))
	for _, r := range results {
		if r.URL != "" {
			sources = append(sources, r.URL)
		}
	}
	return sources
}

// errorResult はエラーメッセージを埋め込んだ失敗結果を生成する。
func errorResult(message string) *model.GenerationResult {
	return &model.GenerationResult{
		Status:  model.GenerationError,
		Report:  message,
		Sources: []string{},
	}
}
