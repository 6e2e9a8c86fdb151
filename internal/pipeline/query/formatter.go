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

package query

import (
	"context"
	"fmt"
	"strings"

	"course-rag/internal/pipeline/common"
	"course-rag/internal/storage/metadata"
)

// NoContentText 过滤后无内容时返回给模型的文本前缀
const NoContentText = "No relevant content found"

// CourseLookup 按标题读取课程元数据，用于补全来源链接
type CourseLookup interface {
	Get(ctx context.Context, title string) (*metadata.Course, error)
}

// Formatter 将检索结果转换为模型可读文本与界面来源列表
type Formatter struct {
	courses CourseLookup
}

// NewFormatter 创建 Formatter，courses 可为 nil（来源不带链接）
func NewFormatter(courses CourseLookup) *Formatter {
	return &Formatter{courses: courses}
}

// CourseNotFoundText 课程名无法解析时的提示文本
func CourseNotFoundText(name string) string {
	return fmt.Sprintf("No course found matching '%s'", name)
}

// Format 每个命中输出 "[{course} - Lesson {n}]" 头加正文，命中之间空一行；来源与命中一一对应。
// 无命中时返回区分两种情况的固定文本与空来源
func (f *Formatter) Format(ctx context.Context, result *common.SearchResult) (string, []common.Source) {
	if result == nil {
		return NoContentText, nil
	}
	switch {
	case result.Status == common.StatusCourseNotFound:
		name := ""
		if result.Request.CourseName != nil {
			name = *result.Request.CourseName
		}
		return CourseNotFoundText(name), nil
	case result.Empty():
		return NoContentText + filterSuffix(result), nil
	}

	blocks := make([]string, 0, len(result.Hits))
	sources := make([]common.Source, 0, len(result.Hits))
	links := make(map[string]*metadata.Course)
	for _, hit := range result.Hits {
		header := "[" + hit.CourseTitle
		if hit.LessonNumber != nil {
			header += fmt.Sprintf(" - Lesson %d", *hit.LessonNumber)
		}
		header += "]"
		blocks = append(blocks, header+"\n"+hit.Content)

		src := common.Source{CourseTitle: hit.CourseTitle, LessonNumber: hit.LessonNumber}
		if course := f.lookup(ctx, links, hit.CourseTitle); course != nil {
			src.Link = course.LinkFor(hit.LessonNumber)
		}
		sources = append(sources, src)
	}
	return strings.Join(blocks, "\n\n"), sources
}

func (f *Formatter) lookup(ctx context.Context, seen map[string]*metadata.Course, title string) *metadata.Course {
	if f.courses == nil || title == "" {
		return nil
	}
	if c, ok := seen[title]; ok {
		return c
	}
	c, err := f.courses.Get(ctx, title)
	if err != nil {
		c = nil
	}
	seen[title] = c
	return c
}

func filterSuffix(result *common.SearchResult) string {
	var b strings.Builder
	if result.ResolvedCourse != "" {
		fmt.Fprintf(&b, " in course '%s'", result.ResolvedCourse)
	}
	if result.Request.LessonNumber != nil {
		fmt.Fprintf(&b, " in lesson %d", *result.Request.LessonNumber)
	}
	return b.String()
}
