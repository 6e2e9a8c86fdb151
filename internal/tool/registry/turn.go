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

package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"course-rag/internal/pipeline/common"
	"course-rag/internal/tool"
	"course-rag/pkg/metrics"
	"course-rag/pkg/tracing"
)

// Call 模型发出的一次工具调用
type Call struct {
	ID    string
	Name  string
	Input map[string]any
	// RawInput 模型给出的无法解析的参数；非空且 Input 为 nil 时调用直接失败
	RawInput string
}

// CallResult 工具调用结果；失败时 Content 为给模型看的错误文本
type CallResult struct {
	ID      string
	Name    string
	Content string
	IsError bool
	Err     error
}

// Turn 单次请求内的工具执行作用域，持有本轮累积的来源
type Turn struct {
	reg     *Registry
	mu      sync.Mutex
	sources []common.Source
}

// Execute 执行单个工具并记录其来源
func (t *Turn) Execute(ctx context.Context, name string, input map[string]any) (tool.Result, error) {
	res, err := t.run(ctx, Call{Name: name, Input: input})
	if err != nil {
		return tool.Result{}, err
	}
	t.mu.Lock()
	t.sources = append(t.sources, res.Sources...)
	t.mu.Unlock()
	return res, nil
}

// ExecuteAll 并发执行一批工具调用，结果与来源均按调用顺序排列；
// 单个工具失败不影响其他调用
func (t *Turn) ExecuteAll(ctx context.Context, calls []Call) []CallResult {
	results := make([]CallResult, len(calls))
	sources := make([][]common.Source, len(calls))

	var g errgroup.Group
	if t.reg.limit > 0 {
		g.SetLimit(t.reg.limit)
	}
	for i, call := range calls {
		g.Go(func() error {
			results[i] = CallResult{ID: call.ID, Name: call.Name}
			res, err := t.run(ctx, call)
			if err != nil {
				results[i].Content = failureText(err)
				results[i].IsError = true
				results[i].Err = err
				return nil
			}
			results[i].Content = res.Content
			sources[i] = res.Sources
			return nil
		})
	}
	_ = g.Wait()

	t.mu.Lock()
	for _, s := range sources {
		t.sources = append(t.sources, s...)
	}
	t.mu.Unlock()
	return results
}

// Sources 返回本轮已累积来源的副本
func (t *Turn) Sources() []common.Source {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]common.Source, len(t.sources))
	copy(out, t.sources)
	return out
}

// TakeSources 返回并清空本轮来源
func (t *Turn) TakeSources() []common.Source {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.sources
	t.sources = nil
	if out == nil {
		out = []common.Source{}
	}
	return out
}

func (t *Turn) run(ctx context.Context, call Call) (res tool.Result, err error) {
	tl, ok := t.reg.Get(call.Name)
	if !ok {
		metrics.ToolCallTotal.WithLabelValues(call.Name, "unknown").Inc()
		return res, &UnknownToolError{Name: call.Name}
	}

	ctx, span := tracing.StartToolSpan(ctx, call.Name, call.ID)
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("tool %s panicked: %v", call.Name, p)
		}
		outcome := "ok"
		if err != nil {
			outcome = "error"
			t.reg.logger.Warn("工具执行失败", "tool", call.Name, "call_id", call.ID, "error", err)
		}
		metrics.ToolDuration.WithLabelValues(call.Name).Observe(time.Since(start).Seconds())
		metrics.ToolCallTotal.WithLabelValues(call.Name, outcome).Inc()
		tracing.EndSpan(span, err)
	}()

	input := call.Input
	if input == nil {
		if call.RawInput != "" {
			return res, common.NewValidationError("arguments", fmt.Sprintf("not a JSON object: %s", call.RawInput))
		}
		input = map[string]any{}
	}
	return tl.Execute(ctx, input)
}

func failureText(err error) string {
	return "Tool execution failed: " + err.Error()
}
