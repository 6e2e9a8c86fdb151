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

// Package agent 实现单轮课程问答：一次带工具的模型调用，必要时执行工具后再做一次不带工具的调用
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"course-rag/internal/model/llm"
	"course-rag/internal/pipeline/common"
	"course-rag/internal/runtime/session"
	"course-rag/internal/tool/registry"
	"course-rag/pkg/metrics"
	"course-rag/pkg/tracing"
)

// Answer 单轮问答结果
type Answer struct {
	Answer    string          `json:"answer"`
	Sources   []common.Source `json:"sources"`
	SessionID string          `json:"session_id"`
}

// Orchestrator 串联会话历史、模型与工具
type Orchestrator struct {
	client       llm.Client
	tools        *registry.Registry
	sessions     *session.Manager
	logger       *slog.Logger
	systemPrompt string
	maxTokens    int
	temperature  float64
	timeout      time.Duration
}

// Option 可选配置
type Option func(*Orchestrator)

// WithTimeout 设置单轮超时，<=0 表示不限
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithMaxTokens 设置模型输出上限
func WithMaxTokens(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// WithTemperature 设置采样温度
func WithTemperature(t float64) Option {
	return func(o *Orchestrator) { o.temperature = t }
}

// WithSystemPrompt 替换系统提示词
func WithSystemPrompt(p string) Option {
	return func(o *Orchestrator) {
		if p != "" {
			o.systemPrompt = p
		}
	}
}

// WithLogger 设置日志
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New 创建 Orchestrator
func New(client llm.Client, tools *registry.Registry, sessions *session.Manager, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:       client,
		tools:        tools,
		sessions:     sessions,
		logger:       slog.Default(),
		systemPrompt: DefaultSystemPrompt,
		maxTokens:    800,
		timeout:      60 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Sessions 返回会话管理器
func (o *Orchestrator) Sessions() *session.Manager { return o.sessions }

// Tools 返回工具注册表
func (o *Orchestrator) Tools() *registry.Registry { return o.tools }

// turnState 单次请求的可变状态
type turnState struct {
	state     State
	sessionID string
	span      trace.Span
	logger    *slog.Logger
}

func (t *turnState) moveTo(next State) {
	if !CanTransition(t.state, next) {
		// 迁移表之外的跳转属于编程错误
		panic(fmt.Sprintf("agent: illegal transition %s -> %s", t.state, next))
	}
	t.logger.Debug("状态迁移", "from", t.state, "to", next)
	t.span.AddEvent(string(next))
	t.state = next
}

// Answer 回答一个问题。sessionID 为空时创建新会话；只有成功时才写入历史
func (o *Orchestrator) Answer(ctx context.Context, query, sessionID string) (ans *Answer, err error) {
	if strings.TrimSpace(query) == "" {
		return nil, common.NewValidationError("query", "must not be empty")
	}
	start := time.Now()

	if sessionID == "" {
		sessionID, err = o.sessions.Create(ctx)
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	ctx, span := tracing.StartTurnSpan(ctx, sessionID)
	ts := &turnState{
		state:     StateBuildingPrompt,
		sessionID: sessionID,
		span:      span,
		logger:    o.logger.With("session_id", sessionID),
	}
	usedTools := false
	defer func() {
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
			err = fmt.Errorf("%w after %s: %w", ErrTimeout, o.timeout, err)
		}
		status := "ok"
		switch {
		case errors.Is(err, ErrTimeout):
			status = "timeout"
		case err != nil:
			status = "error"
		}
		metrics.QueryTotal.WithLabelValues(status).Inc()
		metrics.QueryDuration.WithLabelValues(strconv.FormatBool(usedTools)).Observe(time.Since(start).Seconds())
		span.SetAttributes(attribute.String("turn.state", string(ts.state)), attribute.Bool("turn.tools_used", usedTools))
		tracing.EndSpan(span, err)
		if err != nil {
			ts.logger.Error("问答失败", "state", ts.state, "error", err)
		}
	}()

	history, err := o.sessions.History(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	system := buildSystem(o.systemPrompt, session.FormatHistory(history))
	messages := []llm.Message{llm.UserText(query)}
	turn := o.tools.Begin()

	ts.moveTo(StateAwaitingDecision)
	first, err := o.call(ctx, PhaseDecide, &llm.Request{
		System:      system,
		Messages:    messages,
		Tools:       o.tools.Definitions(),
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
	})
	if err != nil {
		return nil, err
	}

	final := first
	if first.WantsTools() {
		usedTools = true
		ts.moveTo(StateToolExecutionPending)
		results := o.runTools(ctx, turn, first.ToolUses())

		ts.moveTo(StateAwaitingFinalResponse)
		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: first.Content},
			llm.Message{Role: llm.RoleUser, Content: results},
		)
		final, err = o.call(ctx, PhaseFinal, &llm.Request{
			System:      system,
			Messages:    messages,
			MaxTokens:   o.maxTokens,
			Temperature: o.temperature,
		})
		if err != nil {
			return nil, err
		}
	}
	ts.moveTo(StateDone)

	text := strings.TrimSpace(final.Text())
	if text == "" {
		text = FallbackAnswer
	}
	if err := o.sessions.AddExchange(ctx, sessionID, query, text); err != nil {
		return nil, fmt.Errorf("save exchange: %w", err)
	}
	return &Answer{Answer: text, Sources: turn.TakeSources(), SessionID: sessionID}, nil
}

func (o *Orchestrator) call(ctx context.Context, phase Phase, req *llm.Request) (*llm.Response, error) {
	ctx, span := tracing.StartModelSpan(ctx, o.client.Provider(), o.client.Model(), string(phase))
	start := time.Now()
	resp, err := o.client.CreateMessage(ctx, req)
	metrics.LLMCallDuration.WithLabelValues(o.client.Provider(), string(phase)).Observe(time.Since(start).Seconds())
	if err == nil && resp == nil {
		err = errors.New("empty response")
	}
	if err != nil {
		err = &GenerationError{Phase: phase, Err: err}
	}
	tracing.EndSpan(span, err)
	return resp, err
}

// runTools 执行模型请求的全部工具调用，结果按调用顺序组成 tool_result 块
func (o *Orchestrator) runTools(ctx context.Context, turn *registry.Turn, uses []llm.ContentBlock) []llm.ContentBlock {
	calls := make([]registry.Call, len(uses))
	for i, u := range uses {
		calls[i] = registry.Call{ID: u.ID, Name: u.Name, Input: u.Input, RawInput: u.RawInput}
	}
	results := turn.ExecuteAll(ctx, calls)
	blocks := make([]llm.ContentBlock, len(results))
	for i, r := range results {
		blocks[i] = llm.ToolResultBlock(r.ID, r.Content, r.IsError)
	}
	return blocks
}
