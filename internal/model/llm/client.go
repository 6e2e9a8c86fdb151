package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"course-rag/pkg/config"
)

// Client 支持工具调用的对话模型客户端
type Client interface {
	// CreateMessage 发起一次模型调用
	CreateMessage(ctx context.Context, req *Request) (*Response, error)
	// Model 返回模型名称
	Model() string
	// Provider 返回提供商名称
	Provider() string
}

// ClientConfig 客户端配置
type ClientConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// NewClient 按 provider 创建客户端：anthropic/claude 走 Messages API，openai 及兼容端点走 eino ChatModel
func NewClient(ctx context.Context, cfg ClientConfig) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "anthropic", "claude":
		return NewClaudeClient(cfg)
	case "openai", "qwen", "openai_compat":
		return NewOpenAIClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

// ConfigFromModel 根据 model.defaults.llm（provider.model_key）解析客户端配置
func ConfigFromModel(mc config.ModelConfig) (ClientConfig, error) {
	provider, modelKey, err := parseDefaultKey(mc.Defaults.LLM)
	if err != nil {
		return ClientConfig{}, err
	}
	pc, ok := mc.LLM.Providers[provider]
	if !ok {
		return ClientConfig{}, fmt.Errorf("LLM provider %q not configured", provider)
	}
	mi, ok := pc.Models[modelKey]
	if !ok {
		return ClientConfig{}, fmt.Errorf("LLM model %q not configured in provider %q", modelKey, provider)
	}
	name := mi.Name
	if name == "" {
		name = modelKey
	}
	return ClientConfig{Provider: provider, Model: name, APIKey: pc.APIKey, BaseURL: pc.BaseURL}, nil
}

func parseDefaultKey(key string) (provider, modelKey string, err error) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("default key 格式应为 provider.model_key，如 anthropic.sonnet，当前: %q", key)
	}
	return parts[0], parts[1], nil
}
