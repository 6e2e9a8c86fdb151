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

package metadata

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore 内存课程元数据存储
type MemoryStore struct {
	courses map[string]*Course
	mu      sync.RWMutex
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{courses: make(map[string]*Course)}
}

// Put 写入课程（保存副本）
func (s *MemoryStore) Put(ctx context.Context, course *Course) error {
	if course == nil || course.Title == "" {
		return fmt.Errorf("课程标题不能为空")
	}
	cp := *course
	cp.Lessons = append([]Lesson(nil), course.Lessons...)
	if cp.CreatedAt == 0 {
		cp.CreatedAt = time.Now().Unix()
	}

	s.mu.Lock()
	s.courses[cp.Title] = &cp
	s.mu.Unlock()
	return nil
}

// Get 获取课程
func (s *MemoryStore) Get(ctx context.Context, title string) (*Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.courses[title]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, title)
	}
	cp := *c
	return &cp, nil
}

// Exists 课程是否存在
func (s *MemoryStore) Exists(ctx context.Context, title string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.courses[title]
	return ok, nil
}

// Delete 删除课程
func (s *MemoryStore) Delete(ctx context.Context, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.courses[title]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, title)
	}
	delete(s.courses, title)
	return nil
}

// List 按标题升序列出
func (s *MemoryStore) List(ctx context.Context) ([]*Course, error) {
	s.mu.RLock()
	out := make([]*Course, 0, len(s.courses))
	for _, c := range s.courses {
		cp := *c
		out = append(out, &cp)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

// Close 关闭
func (s *MemoryStore) Close() error {
	return nil
}
