// Package search はWeb検索コラボレータ（Tavily Search API）のクライアントを提供する。
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/reportify/internal/model"
)

const (
	// defaultEndpoint はTavily Search APIのエンドポイント。
	defaultEndpoint = "https://api.tavily.com/search"
	// searchDepth は検索の深さ。advancedはより広く深いクロールを行う
	// （レイテンシとコストは高くなる）。
	searchDepth = "advanced"
)

// Client はTavily Search APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	maxResults int
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
// maxResultsが0以下の場合は5を使用する。
func NewClient(httpClient *http.Client, logger *slog.Logger, apiKey string, maxResults int) *Client {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     apiKey,
		maxResults: maxResults,
		endpoint:   defaultEndpoint,
	}
}

// searchRequest はTavily Search APIのリクエストボディ。
type searchRequest struct {
	Query       string `json:"query"`
	APIKey      string `json:"api_key"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

// searchResponse はTavily Search APIのレスポンスボディ。
type searchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search はクエリを検索し、最大maxResults件の結果を返す。
// 結果が0件の場合は空スライスを返す（エラーにはしない）。
func (c *Client) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	payload, err := json.Marshal(searchRequest{
		Query:       query,
		APIKey:      c.apiKey,
		SearchDepth: searchDepth,
		MaxResults:  c.maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("検索APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("検索APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("検索APIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Error("検索APIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	results := make([]model.SearchResult, 0, len(result.Results))
	for _, r := range result.Results {
		results = append(results, model.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
		})
		if len(results) >= c.maxResults {
			break
		}
	}

	return results, nil
}
