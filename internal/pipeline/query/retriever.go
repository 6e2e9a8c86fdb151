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
	"log/slog"
	"strconv"
	"strings"

	"course-rag/internal/pipeline/common"
	"course-rag/internal/storage/vector"
	"course-rag/pkg/metrics"
	"course-rag/pkg/tracing"
)

// Options 检索器配置
type Options struct {
	CatalogCollection string
	ContentCollection string
	// MaxResults 请求未指定 Limit 时使用
	MaxResults int
	// CourseThreshold 课程名解析的距离上限（严格小于才接受）
	CourseThreshold float64
	// ContentThreshold 内容命中的距离上限（大于即丢弃）
	ContentThreshold float64
}

// Retriever 课程检索器：先把模糊课程名解析为规范标题，再在内容集合中做带过滤的近邻检索
type Retriever struct {
	name   string
	index  vector.Index
	opts   Options
	logger *slog.Logger
}

// NewRetriever 创建新的检索器
func NewRetriever(index vector.Index, opts Options) *Retriever {
	if opts.CatalogCollection == "" {
		opts.CatalogCollection = "course_catalog"
	}
	if opts.ContentCollection == "" {
		opts.ContentCollection = "course_content"
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	return &Retriever{
		name:   "retriever",
		index:  index,
		opts:   opts,
		logger: slog.Default(),
	}
}

// SetLogger 设置日志
func (r *Retriever) SetLogger(l *slog.Logger) {
	if l != nil {
		r.logger = l
	}
}

// Options 返回当前配置
func (r *Retriever) Options() Options {
	return r.opts
}

// ResolveCourseName 在课程目录中查找与 name 最接近的课程；
// 仅当最佳候选距离小于 CourseThreshold 时返回其标题，否则 ok=false
func (r *Retriever) ResolveCourseName(ctx context.Context, name string) (string, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false, nil
	}
	res, err := r.index.Query(ctx, r.opts.CatalogCollection, name, nil, 1)
	if err != nil {
		return "", false, common.NewPipelineError(r.name, "课程目录查询失败", fmt.Errorf("%w: %w", common.ErrResolutionFailed, err))
	}
	if res.Empty() {
		return "", false, nil
	}
	distance := res.Distances[0]
	title := res.IDs[0]
	if distance >= r.opts.CourseThreshold {
		r.logger.Debug("课程名未匹配", "name", name, "best", title, "distance", distance, "threshold", r.opts.CourseThreshold)
		return "", false, nil
	}
	return title, true, nil
}

// Search 执行内容检索。课程名无法解析时直接返回 StatusCourseNotFound，不查询内容集合；
// 过滤后无命中返回 StatusNoContent，二者都不是错误
func (r *Retriever) Search(ctx context.Context, req common.SearchRequest) (result *common.SearchResult, err error) {
	ctx, span := tracing.StartSearchSpan(ctx, req.CourseName, req.LessonNumber)
	defer func() {
		outcome := "error"
		if err == nil {
			outcome = string(result.Status)
		}
		metrics.SearchOutcomeTotal.WithLabelValues(outcome).Inc()
		tracing.EndSpan(span, err)
	}()

	if strings.TrimSpace(req.Query) == "" {
		return nil, common.NewValidationError("query", "must not be empty")
	}
	if req.Limit <= 0 {
		req.Limit = r.opts.MaxResults
	}
	result = &common.SearchResult{Request: req}

	where := make(map[string]string, 2)
	if req.CourseName != nil {
		title, ok, err := r.ResolveCourseName(ctx, *req.CourseName)
		if err != nil {
			return nil, err
		}
		if !ok {
			result.Status = common.StatusCourseNotFound
			return result, nil
		}
		result.ResolvedCourse = title
		where[common.MetaCourseTitle] = title
	}
	if req.LessonNumber != nil {
		where[common.MetaLessonNumber] = strconv.Itoa(*req.LessonNumber)
	}

	res, err := r.index.Query(ctx, r.opts.ContentCollection, req.Query, where, req.Limit)
	if err != nil {
		return nil, common.NewPipelineError(r.name, "内容检索失败", fmt.Errorf("%w: %w", common.ErrRetrievalFailed, err))
	}

	for i := 0; i < res.Len(); i++ {
		if res.Distances[i] > r.opts.ContentThreshold {
			continue
		}
		meta := res.Metadatas[i]
		result.Hits = append(result.Hits, common.Hit{
			Content:      res.Documents[i],
			CourseTitle:  meta[common.MetaCourseTitle],
			LessonNumber: parseLesson(meta[common.MetaLessonNumber]),
			Distance:     res.Distances[i],
		})
	}
	if len(result.Hits) == 0 {
		result.Status = common.StatusNoContent
	} else {
		result.Status = common.StatusOK
	}
	return result, nil
}

func parseLesson(v string) *int {
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}
