package payment

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
	// defaultEndpoint は決済プロバイダAPIのベースURL。
	defaultEndpoint = "https://api.lemonsqueezy.com"
	// PaymentStatusPaid は支払い完了を表すセッションステータス。
	PaymentStatusPaid = "paid"
)

// Session は決済プロバイダから取得したチェックアウトセッション。
// セッションIDはプロバイダが発行するケーパビリティトークンであり、
// ID自体を知っていることが照会の権限となる。
type Session struct {
	ID            string
	PaymentStatus string
	UserID        string
}

// CheckoutClient はチェックアウトセッション型決済フローのプロバイダクライアント。
// 固定の商品（variant）1点・数量1のチェックアウトを作成し、
// セッションのメタデータにuser_idを埋め込む。
type CheckoutClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	storeID    string
	variantID  string
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewCheckoutClient はCheckoutClientの新しいインスタンスを生成する。
func NewCheckoutClient(httpClient *http.Client, logger *slog.Logger, apiKey, storeID, variantID string) *CheckoutClient {
	return &CheckoutClient{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     apiKey,
		storeID:    storeID,
		variantID:  variantID,
		endpoint:   defaultEndpoint,
	}
}

// createCheckoutRequest はチェックアウト作成リクエストのワイヤ形式（JSON:API）。
type createCheckoutRequest struct {
	Data struct {
		Type       string `json:"type"`
		Attributes struct {
			CheckoutData struct {
				Custom map[string]string `json:"custom"`
			} `json:"checkout_data"`
		} `json:"attributes"`
		Relationships struct {
			Store   relationship `json:"store"`
			Variant relationship `json:"variant"`
		} `json:"relationships"`
	} `json:"data"`
}

type relationship struct {
	Data struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"data"`
}

// checkoutResponse はチェックアウト作成・取得レスポンスのワイヤ形式。
type checkoutResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			URL          string `json:"url"`
			Status       string `json:"status"`
			CheckoutData struct {
				Custom map[string]string `json:"custom"`
			} `json:"checkout_data"`
		} `json:"attributes"`
	} `json:"data"`
}

// CreateCheckout は指定ユーザー向けのチェックアウトセッションを作成し、
// 決済ページのURLを返す。
func (c *CheckoutClient) CreateCheckout(ctx context.Context, userID string) (string, error) {
	var reqBody createCheckoutRequest
	reqBody.Data.Type = "checkouts"
	reqBody.Data.Attributes.CheckoutData.Custom = map[string]string{"user_id": userID}
	reqBody.Data.Relationships.Store.Data.Type = "stores"
	reqBody.Data.Relationships.Store.Data.ID = c.storeID
	reqBody.Data.Relationships.Variant.Data.Type = "variants"
	reqBody.Data.Relationships.Variant.Data.ID = c.variantID

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.endpoint+"/v1/checkouts", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		c.logger.Error("チェックアウト作成がエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return "", fmt.Errorf("決済プロバイダがステータス %d を返しました", resp.StatusCode)
	}

	result, err := decodeCheckoutResponse(resp.Body)
	if err != nil {
		return "", err
	}

	if result.Data.Attributes.URL == "" {
		return "", fmt.Errorf("決済プロバイダがチェックアウトURLを返しませんでした")
	}

	return result.Data.Attributes.URL, nil
}

// GetSession はセッションIDでチェックアウトセッションを取得する。
// セッションが存在しない場合はSessionNotFoundエラーを返す。
func (c *CheckoutClient) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	url := fmt.Sprintf("%s/v1/checkouts/%s", c.endpoint, sessionID)
	resp, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, model.NewSessionNotFoundError(sessionID)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("セッション取得がエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("session_id", sessionID),
		)
		return nil, fmt.Errorf("決済プロバイダがステータス %d を返しました", resp.StatusCode)
	}

	result, err := decodeCheckoutResponse(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:            result.Data.ID,
		PaymentStatus: result.Data.Attributes.Status,
		UserID:        result.Data.Attributes.CheckoutData.Custom["user_id"],
	}, nil
}

// do は共通ヘッダを付与してHTTPリクエストを実行する。
func (c *CheckoutClient) do(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.api+json")
	req.Header.Set("Content-Type", "application/vnd.api+json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("決済プロバイダAPIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return resp, nil
}

// decodeCheckoutResponse はレスポンスボディをパースする。
func decodeCheckoutResponse(r io.Reader) (*checkoutResponse, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var result checkoutResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	return &result, nil
}
