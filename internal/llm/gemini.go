// Package llm はテキスト生成コラボレータ（Gemini API）のクライアントを提供する。
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	// defaultEndpoint はGemini generateContent APIのベースURL。
	defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	// modelName は使用するモデル名。
	modelName = "gemini-2.5-flash"
	// temperature は生成の多様性。事実性を重視して低めに固定する。
	temperature = 0.3
	// maxOutputTokens は生成テキストの上限トークン数。
	maxOutputTokens = 2048
)

// Client はGemini generateContent APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, apiKey string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     apiKey,
		endpoint:   defaultEndpoint,
	}
}

// generateRequest はgenerateContent APIのリクエストボディ。
type generateRequest struct {
	Contents []content `json:"contents"`
	Config   genConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type genConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// generateResponse はgenerateContent APIのレスポンスボディ。
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate はプロンプトからテキストを生成する。
// 候補が空の場合はエラーを返す。
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Contents: []content{
			{Parts: []part{{Text: prompt}}},
		},
		Config: genConfig{
			Temperature:     temperature,
			MaxOutputTokens: maxOutputTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, modelName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("テキスト生成APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("テキスト生成APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return "", fmt.Errorf("テキスト生成APIがステータス %d を返しました", resp.StatusCode)
	}

	var result generateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Error("テキスト生成APIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	if len(result.Candidates) == 0 {
		return "", fmt.Errorf("テキスト生成APIが候補を返しませんでした")
	}

	var sb strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}

	text := sb.String()
	if text == "" {
		return "", fmt.Errorf("テキスト生成APIが空のテキストを返しました")
	}

	return text, nil
}
