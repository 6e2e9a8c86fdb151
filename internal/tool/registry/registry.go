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
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"course-rag/internal/tool"
)

// ErrUnknownTool 调用了未注册的工具
var ErrUnknownTool = errors.New("unknown tool")

// UnknownToolError 携带未找到的工具名，errors.Is(err, ErrUnknownTool) 为真
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("Tool '%s' not found", e.Name)
}

func (e *UnknownToolError) Is(target error) bool { return target == ErrUnknownTool }

// ErrDuplicateTool 同名工具重复注册
var ErrDuplicateTool = errors.New("duplicate tool")

// Registry 工具注册表：按注册顺序保存工具，启动后只读
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]tool.Tool
	order  []string
	limit  int
	logger *slog.Logger
}

// New 创建新的 Registry
func New() *Registry {
	return &Registry{
		tools:  make(map[string]tool.Tool),
		logger: slog.Default(),
	}
}

// SetLogger 设置日志
func (r *Registry) SetLogger(l *slog.Logger) {
	if l != nil {
		r.logger = l
	}
}

// SetConcurrency 限制单轮内并发执行的工具数，<=0 表示不限制
func (r *Registry) SetConcurrency(n int) {
	r.limit = n
}

// Register 注册工具；名称为空或重复时返回错误
func (r *Registry) Register(t tool.Tool) error {
	def := t.Definition()
	if def.Name == "" {
		return errors.New("tool name is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[def.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, def.Name)
	}
	r.tools[def.Name] = t
	r.order = append(r.order, def.Name)
	return nil
}

// Get 按名称获取工具
func (r *Registry) Get(name string) (tool.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Len 已注册工具数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Definitions 按注册顺序返回全部工具声明
func (r *Registry) Definitions() []tool.Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]tool.Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Begin 开启一轮对话的工具调用作用域；来源只在本轮内累积
func (r *Registry) Begin() *Turn {
	return &Turn{reg: r}
}
