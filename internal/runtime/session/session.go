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
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session 一次对话：保存最近若干轮问答，超出上限时淘汰最早的
type Session struct {
	ID        string
	CreatedAt time.Time

	updatedAt  time.Time
	exchanges  []Exchange
	maxHistory int

	mu sync.Mutex
}

// NewID 生成新的会话 ID
func NewID() string {
	return "session-" + uuid.New().String()
}

// New 创建新 Session；id 为空时自动生成，maxHistory<=0 时按 1 处理
func New(id string, maxHistory int) *Session {
	if id == "" {
		id = NewID()
	}
	if maxHistory <= 0 {
		maxHistory = 1
	}
	now := time.Now()
	return &Session{
		ID:         id,
		CreatedAt:  now,
		updatedAt:  now,
		maxHistory: maxHistory,
	}
}

// Append 追加一轮问答并按 FIFO 淘汰超出上限的记录
func (s *Session) Append(query, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatedAt = time.Now()
	s.exchanges = append(s.exchanges, Exchange{Query: query, Answer: answer, At: s.updatedAt})
	if over := len(s.exchanges) - s.maxHistory; over > 0 {
		kept := make([]Exchange, s.maxHistory)
		copy(kept, s.exchanges[over:])
		s.exchanges = kept
	}
}

// Exchanges 返回历史副本（旧到新）
func (s *Session) Exchanges() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.exchanges) == 0 {
		return nil
	}
	out := make([]Exchange, len(s.exchanges))
	copy(out, s.exchanges)
	return out
}

// UpdatedAt 最近一次写入时间
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}
