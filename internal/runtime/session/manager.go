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

package session

import (
	"context"
	"sync"

	"course-rag/pkg/metrics"
)

// DefaultMaxHistory 每个会话默认保留的问答轮数
const DefaultMaxHistory = 2

// Manager 管理会话生命周期；同一会话的写入由 Session 自身的锁串行化，不同会话互不影响
type Manager struct {
	store      SessionStore
	maxHistory int
	mu         sync.Mutex // 仅保护 get-or-create
}

// NewManager 创建 Manager，store 为 nil 时使用内存存储
func NewManager(store SessionStore, maxHistory int) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Manager{store: store, maxHistory: maxHistory}
}

// MaxHistory 返回配置的历史上限
func (m *Manager) MaxHistory() int { return m.maxHistory }

// Create 创建新会话并返回 ID
func (m *Manager) Create(ctx context.Context) (string, error) {
	s := New("", m.maxHistory)
	if err := m.store.Put(ctx, s); err != nil {
		return "", err
	}
	metrics.ActiveSessions.Set(float64(m.store.Len()))
	return s.ID, nil
}

// History 返回会话历史（旧到新），未知 ID 返回空
func (m *Manager) History(ctx context.Context, id string) ([]Exchange, error) {
	if id == "" {
		return nil, nil
	}
	s, err := m.store.Get(ctx, id)
	if err != nil || s == nil {
		return nil, err
	}
	return s.Exchanges(), nil
}

// AddExchange 追加一轮问答；会话不存在时以该 ID 创建
func (m *Manager) AddExchange(ctx context.Context, id, query, answer string) error {
	s, err := m.getOrCreate(ctx, id)
	if err != nil {
		return err
	}
	s.Append(query, answer)
	return nil
}

// Delete 删除会话
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	metrics.ActiveSessions.Set(float64(m.store.Len()))
	return nil
}

func (m *Manager) getOrCreate(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s != nil {
		return s, nil
	}
	s = New(id, m.maxHistory)
	if err := m.store.Put(ctx, s); err != nil {
		return nil, err
	}
	metrics.ActiveSessions.Set(float64(m.store.Len()))
	return s, nil
}
