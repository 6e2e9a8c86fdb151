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

package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"course-rag/internal/pipeline/common"
	"course-rag/internal/storage/metadata"
	"course-rag/internal/storage/vector"
)

// Options 索引配置
type Options struct {
	CatalogCollection string
	ContentCollection string
	ChunkSize         int
	ChunkOverlap      int
	// Concurrency 同时处理的文件数
	Concurrency int
}

// Indexer 将课程文档写入课程目录集合（每门课一条，ID 为标题）与内容集合（每个块一条）
type Indexer struct {
	index   vector.Index
	courses metadata.Store
	chunker *Chunker
	opts    Options
	logger  *slog.Logger
}

// NewIndexer 创建 Indexer
func NewIndexer(index vector.Index, courses metadata.Store, opts Options) *Indexer {
	if opts.CatalogCollection == "" {
		opts.CatalogCollection = "course_catalog"
	}
	if opts.ContentCollection == "" {
		opts.ContentCollection = "course_content"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Indexer{
		index:   index,
		courses: courses,
		chunker: NewChunker(opts.ChunkSize, opts.ChunkOverlap),
		opts:    opts,
		logger:  slog.Default(),
	}
}

// SetLogger 设置日志
func (x *Indexer) SetLogger(l *slog.Logger) {
	if l != nil {
		x.logger = l
	}
}

// AddCourseDocument 解析并索引单个文件；课程已存在时跳过（chunks=0, added=false）
func (x *Indexer) AddCourseDocument(ctx context.Context, path string) (course *metadata.Course, chunks int, added bool, err error) {
	text, err := LoadFile(path)
	if err != nil {
		return nil, 0, false, common.NewPipelineError("loader", path, err)
	}
	parsed, err := ParseCourse(text, titleFromPath(path))
	if err != nil {
		return nil, 0, false, err
	}
	exists, err := x.courses.Exists(ctx, parsed.Course.Title)
	if err != nil {
		return nil, 0, false, err
	}
	if exists {
		x.logger.Debug("课程已存在，跳过", "title", parsed.Course.Title, "path", path)
		return &parsed.Course, 0, false, nil
	}
	chunks, err = x.IndexCourse(ctx, parsed)
	if err != nil {
		return nil, 0, false, err
	}
	return &parsed.Course, chunks, true, nil
}

// IndexCourse 写入已解析的课程，返回内容块数；同名课程的旧内容块先被删除
func (x *Indexer) IndexCourse(ctx context.Context, parsed *ParsedCourse) (int, error) {
	title := parsed.Course.Title
	docs, err := x.contentDocuments(parsed)
	if err != nil {
		return 0, err
	}

	if err := x.index.DeleteWhere(ctx, x.opts.ContentCollection, map[string]string{common.MetaCourseTitle: title}); err != nil {
		return 0, indexErr(title, err)
	}
	if len(docs) > 0 {
		if err := x.index.Upsert(ctx, x.opts.ContentCollection, docs); err != nil {
			return 0, indexErr(title, err)
		}
	}

	catalogMeta := map[string]string{common.MetaLessonCount: strconv.Itoa(len(parsed.Lessons))}
	if parsed.Course.Instructor != nil {
		catalogMeta[common.MetaInstructor] = *parsed.Course.Instructor
	}
	if parsed.Course.Link != nil {
		catalogMeta[common.MetaCourseLink] = *parsed.Course.Link
	}
	if err := x.index.Upsert(ctx, x.opts.CatalogCollection, []vector.Document{
		{ID: title, Content: title, Metadata: catalogMeta},
	}); err != nil {
		return 0, indexErr(title, err)
	}

	course := parsed.Course
	course.CreatedAt = time.Now().Unix()
	if err := x.courses.Put(ctx, &course); err != nil {
		return 0, err
	}
	x.logger.Info("课程已索引", "title", title, "lessons", len(parsed.Lessons), "chunks", len(docs))
	return len(docs), nil
}

func (x *Indexer) contentDocuments(parsed *ParsedCourse) ([]vector.Document, error) {
	title := parsed.Course.Title
	idPrefix := strings.ReplaceAll(title, " ", "_")
	var docs []vector.Document
	add := func(text string, lesson *int) error {
		parts, err := x.chunker.Split(text)
		if err != nil {
			return err
		}
		for _, p := range parts {
			meta := map[string]string{
				common.MetaCourseTitle: title,
				common.MetaChunkIndex:  strconv.Itoa(len(docs)),
			}
			if lesson != nil {
				meta[common.MetaLessonNumber] = strconv.Itoa(*lesson)
			}
			docs = append(docs, vector.Document{
				ID:       fmt.Sprintf("%s_%d", idPrefix, len(docs)),
				Content:  p,
				Metadata: meta,
			})
		}
		return nil
	}

	if err := add(parsed.Preamble, nil); err != nil {
		return nil, err
	}
	for _, l := range parsed.Lessons {
		if err := add(l.Body, common.IntPtr(l.Number)); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// AddCourseFolder 索引目录下全部课程文档，返回新增课程数与块数。
// clearExisting 为真时先清空两个集合与元数据；单个文件失败只记录日志
func (x *Indexer) AddCourseFolder(ctx context.Context, dir string, clearExisting bool) (courses, chunks int, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, common.NewPipelineError("loader", dir, fmt.Errorf("%w: %w", common.ErrLoadingFailed, err))
	}
	if clearExisting {
		if err := x.Clear(ctx); err != nil {
			return 0, 0, err
		}
	}

	var paths []string
	for _, e := range entries {
		if !e.IsDir() && Supported(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(x.opts.Concurrency)
	for _, p := range paths {
		g.Go(func() error {
			_, n, added, err := x.AddCourseDocument(ctx, p)
			if err != nil {
				x.logger.Warn("课程文档处理失败", "path", p, "error", err)
				return nil
			}
			if added {
				mu.Lock()
				courses++
				chunks += n
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return courses, chunks, ctx.Err()
}

// Clear 删除两个集合与全部课程元数据
func (x *Indexer) Clear(ctx context.Context) error {
	for _, c := range []string{x.opts.CatalogCollection, x.opts.ContentCollection} {
		if err := x.index.DeleteCollection(ctx, c); err != nil {
			return indexErr(c, err)
		}
	}
	list, err := x.courses.List(ctx)
	if err != nil {
		return err
	}
	for _, c := range list {
		if err := x.courses.Delete(ctx, c.Title); err != nil {
			return err
		}
	}
	return nil
}

func indexErr(what string, err error) error {
	return common.NewPipelineError("indexer", what, fmt.Errorf("%w: %w", common.ErrIndexingFailed, err))
}
