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

// Package metadata 保存课程目录信息（讲师、课程与课时链接），供来源链接与课程列表使用
package metadata

import (
	"context"
	"errors"
)

// ErrNotFound 课程不存在
var ErrNotFound = errors.New("course not found")

// Store 课程元数据存储接口
type Store interface {
	// Put 写入或覆盖课程（按 Title）
	Put(ctx context.Context, course *Course) error
	// Get 根据标题获取课程
	Get(ctx context.Context, title string) (*Course, error)
	// Exists 课程是否已存在
	Exists(ctx context.Context, title string) (bool, error)
	// Delete 删除课程
	Delete(ctx context.Context, title string) error
	// List 按标题升序列出课程
	List(ctx context.Context) ([]*Course, error)
	// Close 关闭存储
	Close() error
}

// Course 课程元数据；Title 即课程标识
type Course struct {
	Title      string   `json:"title"`
	Instructor *string  `json:"instructor,omitempty"`
	Link       *string  `json:"course_link,omitempty"`
	Lessons    []Lesson `json:"lessons,omitempty"`
	CreatedAt  int64    `json:"created_at"`
}

// Lesson 课时
type Lesson struct {
	Number int     `json:"lesson_number"`
	Title  string  `json:"title"`
	Link   *string `json:"lesson_link,omitempty"`
}

// Lesson 按编号查找课时
func (c *Course) Lesson(number int) (Lesson, bool) {
	for _, l := range c.Lessons {
		if l.Number == number {
			return l, true
		}
	}
	return Lesson{}, false
}

// LinkFor 返回课时链接，缺失时回退到课程链接
func (c *Course) LinkFor(lesson *int) *string {
	if lesson != nil {
		if l, ok := c.Lesson(*lesson); ok && l.Link != nil {
			return l.Link
		}
	}
	return c.Link
}
