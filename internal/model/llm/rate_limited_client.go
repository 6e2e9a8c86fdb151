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
	"time"

	"course-rag/pkg/metrics"
)

// RateLimitedClient 包装任意 Client，在真实调用前后执行限流并记录 token 用量
type RateLimitedClient struct {
	inner       Client
	rateLimiter *LLMRateLimiter
}

// NewRateLimitedClient 创建带限流的客户端；rateLimiter 为 nil 时只记录用量
func NewRateLimitedClient(inner Client, rateLimiter *LLMRateLimiter) *RateLimitedClient {
	return &RateLimitedClient{inner: inner, rateLimiter: rateLimiter}
}

// CreateMessage 实现 Client
func (c *RateLimitedClient) CreateMessage(ctx context.Context, req *Request) (*Response, error) {
	provider := c.inner.Provider()
	if c.rateLimiter != nil {
		start := time.Now()
		if err := c.rateLimiter.Wait(ctx, provider, estimateTokens(req)); err != nil {
			return nil, err
		}
		metrics.RateLimitWaitSeconds.WithLabelValues(provider).Observe(time.Since(start).Seconds())
		defer c.rateLimiter.Release(provider)
	}

	resp, err := c.inner.CreateMessage(ctx, req)
	if err != nil {
		return nil, err
	}
	metrics.LLMTokensTotal.WithLabelValues(provider, "input").Add(float64(resp.Usage.InputTokens))
	metrics.LLMTokensTotal.WithLabelValues(provider, "output").Add(float64(resp.Usage.OutputTokens))
	return resp, nil
}

// Model 返回底层 Client 的模型名称
func (c *RateLimitedClient) Model() string { return c.inner.Model() }

// Provider 返回底层 Client 的提供商名称
func (c *RateLimitedClient) Provider() string { return c.inner.Provider() }

// estimateTokens 粗略估算请求的 token 数（4 字符 ≈ 1 token），加上输出上限
func estimateTokens(req *Request) int {
	chars := len(req.System)
	for _, m := range req.Messages {
		for _, b := range m.Content {
			chars += len(b.Text) + len(b.Content)
		}
	}
	return max(1, chars/4+req.MaxTokens)
}
