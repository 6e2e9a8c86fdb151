// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"course-rag/internal/tool"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient 通过 eino ChatModel 访问 OpenAI 及兼容端点（Qwen/DashScope 等）
type OpenAIClient struct {
	provider string
	model    string
	chat     model.ToolCallingChatModel
}

// NewOpenAIClient 创建 OpenAI 客户端；BaseURL 为空时使用官方端点
func NewOpenAIClient(ctx context.Context, cfg ClientConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s api_key not configured", cfg.Provider)
	}
	name := cfg.Model
	if name == "" {
		name = defaultOpenAIModel
	}
	mc := &openai.ChatModelConfig{
		APIKey:  cfg.APIKey,
		Model:   name,
		BaseURL: cfg.BaseURL,
	}
	if cfg.Timeout > 0 {
		mc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	chat, err := openai.NewChatModel(ctx, mc)
	if err != nil {
		return nil, fmt.Errorf("创建 OpenAI ChatModel failed: %w", err)
	}
	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}
	return &OpenAIClient{provider: provider, model: name, chat: chat}, nil
}

// CreateMessage 实现 Client；finish_reason=tool_calls 映射为 tool_use
func (c *OpenAIClient) CreateMessage(ctx context.Context, req *Request) (*Response, error) {
	chat := c.chat
	if len(req.Tools) > 0 {
		infos := make([]*schema.ToolInfo, 0, len(req.Tools))
		for _, d := range req.Tools {
			infos = append(infos, toolInfo(d))
		}
		bound, err := c.chat.WithTools(infos)
		if err != nil {
			return nil, fmt.Errorf("绑定工具失败: %w", err)
		}
		chat = bound
	}

	msgs, err := toSchemaMessages(req)
	if err != nil {
		return nil, err
	}
	opts := []model.Option{model.WithTemperature(float32(req.Temperature))}
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxTokens))
	}

	out, err := chat.Generate(ctx, msgs, opts...)
	if err != nil {
		return nil, fmt.Errorf("调用 OpenAI API failed: %w", err)
	}
	return fromSchemaMessage(out)
}

// Model 返回模型名称
func (c *OpenAIClient) Model() string { return c.model }

// Provider 返回提供商名称
func (c *OpenAIClient) Provider() string { return c.provider }

func toolInfo(d tool.Definition) *schema.ToolInfo {
	params := make(map[string]*schema.ParameterInfo, len(d.InputSchema.Properties))
	required := make(map[string]bool, len(d.InputSchema.Required))
	for _, r := range d.InputSchema.Required {
		required[r] = true
	}
	for name, p := range d.InputSchema.Properties {
		info := parameterInfo(p)
		info.Required = required[name]
		params[name] = info
	}
	return &schema.ToolInfo{
		Name:        d.Name,
		Desc:        d.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}
}

func parameterInfo(p tool.SchemaProperty) *schema.ParameterInfo {
	info := &schema.ParameterInfo{Desc: p.Description}
	switch p.Type {
	case "integer":
		info.Type = schema.Integer
	case "number":
		info.Type = schema.Number
	case "boolean":
		info.Type = schema.Boolean
	case "object":
		info.Type = schema.Object
	case "array":
		info.Type = schema.Array
		if p.Items != nil {
			info.ElemInfo = parameterInfo(*p.Items)
		}
	default:
		info.Type = schema.String
	}
	return info
}

// toSchemaMessages 将内容块消息展开为 OpenAI 风格：tool_result 块各自成为一条 tool 消息
func toSchemaMessages(req *Request) ([]*schema.Message, error) {
	out := make([]*schema.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		out = append(out, schema.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		var text strings.Builder
		var calls []schema.ToolCall
		for _, b := range m.Content {
			switch b.Type {
			case BlockText:
				text.WriteString(b.Text)
			case BlockToolUse:
				args := b.RawInput
				if b.Input != nil || args == "" {
					raw, err := json.Marshal(b.Input)
					if err != nil {
						return nil, fmt.Errorf("序列化工具参数失败: %w", err)
					}
					args = string(raw)
				}
				calls = append(calls, schema.ToolCall{
					ID:       b.ID,
					Type:     "function",
					Function: schema.FunctionCall{Name: b.Name, Arguments: args},
				})
			case BlockToolResult:
				out = append(out, schema.ToolMessage(b.Content, b.ToolUseID))
			}
		}
		switch m.Role {
		case RoleAssistant:
			out = append(out, schema.AssistantMessage(text.String(), calls))
		default:
			if text.Len() > 0 {
				out = append(out, schema.UserMessage(text.String()))
			}
		}
	}
	return out, nil
}

func fromSchemaMessage(m *schema.Message) (*Response, error) {
	resp := &Response{StopReason: StopEndTurn}
	if m.Content != "" {
		resp.Content = append(resp.Content, TextBlock(m.Content))
	}
	for _, tc := range m.ToolCalls {
		block := ContentBlock{Type: BlockToolUse, ID: tc.ID, Name: tc.Function.Name, Input: map[string]any{}}
		if args := strings.TrimSpace(tc.Function.Arguments); args != "" {
			// 参数损坏只影响这一次调用，交给工具执行阶段报错
			if err := json.Unmarshal([]byte(args), &block.Input); err != nil || block.Input == nil {
				block.Input = nil
				block.RawInput = tc.Function.Arguments
			}
		}
		resp.Content = append(resp.Content, block)
	}
	if m.ResponseMeta != nil {
		switch m.ResponseMeta.FinishReason {
		case "tool_calls", "function_call":
			resp.StopReason = StopToolUse
		case "length":
			resp.StopReason = StopMaxTokens
		}
		if u := m.ResponseMeta.Usage; u != nil {
			resp.Usage = Usage{InputTokens: u.PromptTokens, OutputTokens: u.CompletionTokens}
		}
	}
	if len(m.ToolCalls) > 0 {
		resp.StopReason = StopToolUse
	}
	return resp, nil
}
