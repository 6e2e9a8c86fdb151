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
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"course-rag/pkg/config"
)

// LLMRateLimiter 按 provider 维度限流：请求速率、token 预算与并发数
type LLMRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*providerLimiter
	defaults config.LLMRateLimitConfig
}

type providerLimiter struct {
	requests  *rate.Limiter
	tokens    *rate.Limiter
	semaphore chan struct{}
}

// DefaultLLMLimit 未单独配置的 provider 使用的限额
var DefaultLLMLimit = config.LLMRateLimitConfig{
	TokensPerMinute:   90000,
	RequestsPerMinute: 3500,
	MaxConcurrent:     50,
}

// NewLLMRateLimiter 创建限流器；defaults 为 nil 时使用 DefaultLLMLimit
func NewLLMRateLimiter(configs map[string]config.LLMRateLimitConfig, defaults *config.LLMRateLimitConfig) *LLMRateLimiter {
	l := &LLMRateLimiter{
		limiters: make(map[string]*providerLimiter, len(configs)),
		defaults: DefaultLLMLimit,
	}
	if defaults != nil {
		l.defaults = *defaults
	}
	for provider, c := range configs {
		l.limiters[provider] = newProviderLimiter(c)
	}
	return l
}

func newProviderLimiter(c config.LLMRateLimitConfig) *providerLimiter {
	p := &providerLimiter{}
	// burst 取 2 秒的配额
	if c.RequestsPerMinute > 0 {
		p.requests = rate.NewLimiter(rate.Limit(c.RequestsPerMinute/60), max(1, int(c.RequestsPerMinute/30)))
	}
	if c.TokensPerMinute > 0 {
		p.tokens = rate.NewLimiter(rate.Limit(float64(c.TokensPerMinute)/60), max(1, c.TokensPerMinute/30))
	}
	if c.MaxConcurrent > 0 {
		p.semaphore = make(chan struct{}, c.MaxConcurrent)
	}
	return p
}

func (l *LLMRateLimiter) limiter(provider string) *providerLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.limiters[provider]
	if !ok {
		p = newProviderLimiter(l.defaults)
		l.limiters[provider] = p
	}
	return p
}

// Wait 阻塞直到获得调用许可；成功后必须调用 Release
func (l *LLMRateLimiter) Wait(ctx context.Context, provider string, estimatedTokens int) error {
	p := l.limiter(provider)
	if p.requests != nil {
		if err := p.requests.Wait(ctx); err != nil {
			return fmt.Errorf("request rate limit wait failed: %w", err)
		}
	}
	if p.tokens != nil && estimatedTokens > 0 {
		// 单次预扣不能超过 burst，否则 WaitN 直接报错
		n := min(estimatedTokens, p.tokens.Burst())
		if err := p.tokens.WaitN(ctx, n); err != nil {
			return fmt.Errorf("token budget wait failed: %w", err)
		}
	}
	if p.semaphore != nil {
		select {
		case p.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Release 归还并发槽位
func (l *LLMRateLimiter) Release(provider string) {
	p := l.limiter(provider)
	if p.semaphore == nil {
		return
	}
	select {
	case <-p.semaphore:
	default:
	}
}

// InFlight 当前占用的并发槽位数
func (l *LLMRateLimiter) InFlight(provider string) int {
	p := l.limiter(provider)
	return len(p.semaphore)
}
