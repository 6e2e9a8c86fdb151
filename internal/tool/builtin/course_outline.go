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

package builtin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"course-rag/internal/pipeline/common"
	"course-rag/internal/pipeline/query"
	"course-rag/internal/storage/metadata"
	"course-rag/internal/tool"
)

// OutlineToolName 课程大纲工具名
const OutlineToolName = "get_course_outline"

// CourseResolver 模糊课程名解析
type CourseResolver interface {
	ResolveCourseName(ctx context.Context, name string) (string, bool, error)
}

// CourseOutlineTool 返回课程标题、链接、讲师与课时列表
type CourseOutlineTool struct {
	resolver CourseResolver
	courses  query.CourseLookup
}

// NewCourseOutlineTool 创建 get_course_outline 工具
func NewCourseOutlineTool(resolver CourseResolver, courses query.CourseLookup) *CourseOutlineTool {
	return &CourseOutlineTool{resolver: resolver, courses: courses}
}

// Definition 实现 tool.Tool
func (t *CourseOutlineTool) Definition() tool.Definition {
	return tool.Definition{
		Name:        OutlineToolName,
		Description: "Get the outline of a course: title, course link, instructor and the numbered list of lessons",
		InputSchema: tool.Schema{
			Type: "object",
			Properties: map[string]tool.SchemaProperty{
				"course_name": {Type: "string", Description: "Course title (partial matches work)"},
			},
			Required: []string{"course_name"},
		},
	}
}

// Execute 实现 tool.Tool
func (t *CourseOutlineTool) Execute(ctx context.Context, input map[string]any) (tool.Result, error) {
	name, err := tool.RequiredString(input, "course_name")
	if err != nil {
		return tool.Result{}, common.NewValidationError("course_name", err.Error())
	}
	title, ok, err := t.resolver.ResolveCourseName(ctx, name)
	if err != nil {
		return tool.Result{}, err
	}
	if !ok {
		return tool.Result{Content: query.CourseNotFoundText(name)}, nil
	}
	course, err := t.courses.Get(ctx, title)
	if errors.Is(err, metadata.ErrNotFound) {
		return tool.Result{Content: query.CourseNotFoundText(name)}, nil
	}
	if err != nil {
		return tool.Result{}, err
	}
	return tool.Result{
		Content: formatOutline(course),
		Sources: []common.Source{{CourseTitle: course.Title, Link: course.Link}},
	}, nil
}

func formatOutline(c *metadata.Course) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Course Title: %s\n", c.Title)
	if c.Link != nil {
		fmt.Fprintf(&b, "Course Link: %s\n", *c.Link)
	}
	if c.Instructor != nil {
		fmt.Fprintf(&b, "Course Instructor: %s\n", *c.Instructor)
	}
	fmt.Fprintf(&b, "Lessons (%d):", len(c.Lessons))
	for _, l := range c.Lessons {
		fmt.Fprintf(&b, "\n%d. %s", l.Number, l.Title)
	}
	return b.String()
}
