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

package common

import (
	"strconv"
)

// 内容集合中的元数据键
const (
	MetaCourseTitle  = "course_title"
	MetaLessonNumber = "lesson_number"
	MetaChunkIndex   = "chunk_index"
	MetaInstructor   = "instructor"
	MetaCourseLink   = "course_link"
	MetaLessonCount  = "lesson_count"
)

// SearchStatus 检索结果分类
type SearchStatus string

const (
	// StatusOK 至少一条内容通过阈值
	StatusOK SearchStatus = "ok"
	// StatusCourseNotFound 课程名无法解析，未查询内容集合
	StatusCourseNotFound SearchStatus = "course_not_found"
	// StatusNoContent 过滤后无内容
	StatusNoContent SearchStatus = "no_content"
)

// SearchRequest 内容检索请求；CourseName、LessonNumber 为 nil 表示该维度不过滤
type SearchRequest struct {
	Query        string
	CourseName   *string
	LessonNumber *int
	Limit        int
}

// Hit 一条检索命中
type Hit struct {
	Content      string
	CourseTitle  string
	LessonNumber *int
	Distance     float64
}

// SearchResult 检索结果，Hits 按 Distance 升序
type SearchResult struct {
	Status SearchStatus
	// Request 为原始请求（用于生成提示文本）
	Request SearchRequest
	// ResolvedCourse 解析得到的规范课程名，未指定或未解析时为空
	ResolvedCourse string
	Hits           []Hit
}

// Empty 是否无命中
func (r *SearchResult) Empty() bool {
	return r == nil || len(r.Hits) == 0
}

// Source 面向界面的来源标注
type Source struct {
	CourseTitle  string  `json:"course_title"`
	LessonNumber *int    `json:"lesson_number,omitempty"`
	Link         *string `json:"url,omitempty"`
}

// Label 返回 "{course} – Lesson {n}"，无课时编号时只返回课程名
func (s Source) Label() string {
	if s.LessonNumber == nil {
		return s.CourseTitle
	}
	return s.CourseTitle + " – Lesson " + strconv.Itoa(*s.LessonNumber)
}

// Labels 批量取 Label
func Labels(sources []Source) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.Label()
	}
	return out
}

// IntPtr 返回 n 的指针
func IntPtr(n int) *int { return &n }

// StringPtr 返回 s 的指针
func StringPtr(s string) *string { return &s }
