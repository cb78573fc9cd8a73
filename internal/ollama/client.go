// Package ollama はローカルのOllamaサーバーを使った画像解析クライアントを提供する。
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultEndpoint はOllamaの生成APIのエンドポイント。
	DefaultEndpoint = "http://127.0.0.1:11434/api/generate"
	// DefaultModel は画像解析に使用するビジョンモデル。
	DefaultModel = "llava:7b"
	// DefaultTimeout は1回の生成呼び出しのタイムアウト。
	DefaultTimeout = 120 * time.Second
	// maxResponseBytes はレスポンスボディの読み取り上限。
	maxResponseBytes = 4 << 20
)

// ErrGenerateFailed はモデル呼び出しの失敗を表す。
var ErrGenerateFailed = errors.New("ollama generate failed")

// Config はClientの設定。
type Config struct {
	Endpoint string
	Model    string
	Timeout  time.Duration
}

// Client はOllamaの/api/generateを呼び出すクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	model      string
}

// NewClient はClientの新しいインスタンスを生成する。
// 未設定の項目にはデフォルト値を使用する。
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
	}
}

// Model は使用するモデル名を返す。
func (c *Client) Model() string {
	return c.model
}

// generateRequest は/api/generateのリクエストボディ。
type generateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
	Stream bool     `json:"stream"`
}

// generateResponse は/api/generateの非ストリーミングレスポンス。
type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Generate はプロンプトと画像をモデルに送り、生成テキストを返す。
// 画像はbase64エンコードして送信する。
func (c *Client) Generate(ctx context.Context, prompt string, images ...[]byte) (string, error) {
	encoded := make([]string, len(images))
	for i, img := range images {
		encoded[i] = base64.StdEncoding.EncodeToString(img)
	}

	payload, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Images: encoded,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrGenerateFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrGenerateFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("ollama request failed",
			slog.String("error", err.Error()),
			slog.String("model", c.model),
		)
		return "", fmt.Errorf("%w: %v", ErrGenerateFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrGenerateFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("ollama returned error status",
			slog.Int("http_status", resp.StatusCode),
			slog.String("model", c.model),
		)
		return "", fmt.Errorf("%w: status %d", ErrGenerateFailed, resp.StatusCode)
	}

	var result generateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrGenerateFailed, err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrGenerateFailed, result.Error)
	}

	return result.Response, nil
}
