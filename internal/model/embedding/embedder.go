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

// Package embedding 构造向量索引使用的 embedding 函数（OpenAI / Ollama / OpenAI 兼容 / 本地哈希）
package embedding

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"
)

// Config embedding 提供商配置
type Config struct {
	Provider  string // openai | ollama | openai_compat | local
	Model     string
	APIKey    string
	BaseURL   string
	Dimension int // 仅 local 使用
}

// Embedder 持有 embedding 函数及其模型信息
type Embedder struct {
	model     string
	provider  string
	dimension int
	fn        chromem.EmbeddingFunc
}

// NewEmbedder 根据配置创建 Embedder
func NewEmbedder(cfg Config) (*Embedder, error) {
	e := &Embedder{model: cfg.Model, provider: cfg.Provider, dimension: cfg.Dimension}
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai embedding 需要 api_key")
		}
		model := cfg.Model
		if model == "" {
			model = string(chromem.EmbeddingModelOpenAI3Small)
		}
		e.model = model
		if cfg.BaseURL != "" {
			e.fn = chromem.NewEmbeddingFuncOpenAICompat(cfg.BaseURL, cfg.APIKey, model, nil)
		} else {
			e.fn = chromem.NewEmbeddingFuncOpenAI(cfg.APIKey, chromem.EmbeddingModelOpenAI(model))
		}
	case "ollama":
		if cfg.Model == "" {
			return nil, fmt.Errorf("ollama embedding 需要 model")
		}
		e.fn = chromem.NewEmbeddingFuncOllama(cfg.Model, cfg.BaseURL)
	case "openai_compat":
		if cfg.BaseURL == "" || cfg.Model == "" {
			return nil, fmt.Errorf("openai_compat embedding 需要 base_url 与 model")
		}
		e.fn = chromem.NewEmbeddingFuncOpenAICompat(cfg.BaseURL, cfg.APIKey, cfg.Model, nil)
	case "", "local":
		e.provider = "local"
		if e.dimension <= 0 {
			e.dimension = DefaultLocalDimension
		}
		e.model = "hashing-bow"
		e.fn = NewLocal(e.dimension)
	default:
		return nil, fmt.Errorf("不支持的 embedding 提供商: %s", cfg.Provider)
	}
	return e, nil
}

// Model 返回模型名称
func (e *Embedder) Model() string { return e.model }

// Provider 返回提供商名称
func (e *Embedder) Provider() string { return e.provider }

// Func 返回供 chromem 集合使用的 embedding 函数
func (e *Embedder) Func() chromem.EmbeddingFunc { return e.fn }

// WithCache 用 Cached 包装内部函数
func (e *Embedder) WithCache(wrap func(chromem.EmbeddingFunc) chromem.EmbeddingFunc) *Embedder {
	cp := *e
	cp.fn = wrap(e.fn)
	return &cp
}

// Embed 对文本做向量化，返回与 texts 一一对应的向量
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.fn(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embedding 第 %d 条文本失败: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
