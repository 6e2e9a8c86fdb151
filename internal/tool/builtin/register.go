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
	"course-rag/internal/pipeline/query"
	"course-rag/internal/tool"
	"course-rag/internal/tool/registry"
)

// Deps 内置工具依赖
type Deps struct {
	Retriever *query.Retriever
	Formatter *query.Formatter
	Courses   query.CourseLookup
	// Web 非 nil 时注册 fetch_web_page
	Web *WebPageTool
}

// RegisterBuiltin 按固定顺序注册内置工具：检索、大纲、（可选）网页抓取
func RegisterBuiltin(reg *registry.Registry, deps Deps) error {
	tools := []tool.Tool{
		NewCourseSearchTool(deps.Retriever, deps.Formatter),
		NewCourseOutlineTool(deps.Retriever, deps.Courses),
	}
	if deps.Web != nil {
		tools = append(tools, deps.Web)
	}
	return RegisterBuiltinWithTools(reg, tools...)
}

// RegisterBuiltinWithTools 注册任意工具（用于测试或最小装配）
func RegisterBuiltinWithTools(reg *registry.Registry, tools ...tool.Tool) error {
	for _, t := range tools {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}
