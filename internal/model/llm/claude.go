package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultClaudeModel   = "claude-sonnet-4-20250514"
	defaultClaudeBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion     = "2023-06-01"
)

// APIError 模型服务返回的非 2xx 响应
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API 返回错误 (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// ClaudeClient Anthropic Messages API 客户端，不做重试
type ClaudeClient struct {
	model   string
	apiKey  string
	baseURL string
	client  *resty.Client
}

// NewClaudeClient 创建 Claude 客户端
func NewClaudeClient(cfg ClientConfig) (*ClaudeClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api_key not configured")
	}
	model := cfg.Model
	if model == "" {
		model = defaultClaudeModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultClaudeBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("anthropic-version", anthropicVersion)

	return &ClaudeClient{model: model, apiKey: cfg.APIKey, baseURL: baseURL, client: client}, nil
}

type claudeRequest struct {
	Model       string      `json:"model"`
	System      string      `json:"system,omitempty"`
	Messages    []Message   `json:"messages"`
	Tools       interface{} `json:"tools,omitempty"`
	ToolChoice  interface{} `json:"tool_choice,omitempty"`
	MaxTokens   int         `json:"max_tokens"`
	Temperature float64     `json:"temperature"`
}

// CreateMessage 实现 Client
func (c *ClaudeClient) CreateMessage(ctx context.Context, req *Request) (*Response, error) {
	body := claudeRequest{
		Model:       c.model,
		System:      req.System,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = 800
	}
	if len(req.Tools) > 0 {
		body.Tools = req.Tools
		body.ToolChoice = map[string]string{"type": "auto"}
	}

	var out Response
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("x-api-key", c.apiKey).
		SetBody(body).
		SetResult(&out).
		Post(c.baseURL + "/messages")
	if err != nil {
		return nil, fmt.Errorf("调用 Claude API 失败: %w", err)
	}
	if resp.IsError() {
		return nil, &APIError{Provider: "anthropic", StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return &out, nil
}

// Model 返回模型名称
func (c *ClaudeClient) Model() string { return c.model }

// Provider 返回提供商名称
func (c *ClaudeClient) Provider() string { return "anthropic" }
