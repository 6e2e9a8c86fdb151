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
	"strings"

	"course-rag/internal/pipeline/common"
	"course-rag/internal/tool"
)

// SearchToolName 课程内容检索工具名
const SearchToolName = "search_course_content"

// Searcher 内容检索
type Searcher interface {
	Search(ctx context.Context, req common.SearchRequest) (*common.SearchResult, error)
}

// ResultFormatter 将检索结果格式化为文本与来源
type ResultFormatter interface {
	Format(ctx context.Context, result *common.SearchResult) (string, []common.Source)
}

// CourseSearchTool 在课程内容中做语义检索，可按课程名（模糊）与课时编号过滤
type CourseSearchTool struct {
	searcher  Searcher
	formatter ResultFormatter
}

// NewCourseSearchTool 创建 search_course_content 工具
func NewCourseSearchTool(searcher Searcher, formatter ResultFormatter) *CourseSearchTool {
	return &CourseSearchTool{searcher: searcher, formatter: formatter}
}

// Definition 实现 tool.Tool
func (t *CourseSearchTool) Definition() tool.Definition {
	return tool.Definition{
		Name:        SearchToolName,
		Description: "Search course materials with smart course name matching and lesson filtering",
		InputSchema: tool.Schema{
			Type: "object",
			Properties: map[string]tool.SchemaProperty{
				"query":         {Type: "string", Description: "What to search for in the course content"},
				"course_name":   {Type: "string", Description: "Course title (partial matches work, e.g. 'MCP', 'Introduction')"},
				"lesson_number": {Type: "integer", Description: "Specific lesson number to search within (e.g. 1, 2, 3)"},
			},
			Required: []string{"query"},
		},
	}
}

// Execute 实现 tool.Tool；课程未找到与无内容以文本返回，不视为错误
func (t *CourseSearchTool) Execute(ctx context.Context, input map[string]any) (tool.Result, error) {
	query, err := tool.RequiredString(input, "query")
	if err != nil {
		return tool.Result{}, common.NewValidationError("query", err.Error())
	}
	req := common.SearchRequest{Query: query}

	name, ok, err := tool.StringArg(input, "course_name")
	if err != nil {
		return tool.Result{}, common.NewValidationError("course_name", err.Error())
	}
	if ok && strings.TrimSpace(name) != "" {
		req.CourseName = common.StringPtr(name)
	}

	lesson, ok, err := tool.IntArg(input, "lesson_number")
	if err != nil {
		return tool.Result{}, common.NewValidationError("lesson_number", err.Error())
	}
	if ok {
		req.LessonNumber = common.IntPtr(lesson)
	}

	result, err := t.searcher.Search(ctx, req)
	if err != nil {
		return tool.Result{}, err
	}
	text, sources := t.formatter.Format(ctx, result)
	return tool.Result{Content: text, Sources: sources}, nil
}
