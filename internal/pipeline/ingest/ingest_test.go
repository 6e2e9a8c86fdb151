package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"course-rag/internal/model/embedding"
	"course-rag/internal/pipeline/common"
	"course-rag/internal/storage/metadata"
	"course-rag/internal/storage/vector"
)

const mcpDoc = `Course Title: MCP: Build Rich-Context AI Apps with Anthropic
Course Link: https://www.deeplearning.ai/short-courses/mcp-build-rich-context-ai-apps-with-anthropic/
Course Instructor: Elie Schoppik

Lesson 0: Introduction
Lesson Link: https://learn.deeplearning.ai/courses/mcp/lesson/0
Welcome to this short course on MCP, the Model Context Protocol.

Lesson 1: Why MCP

Lesson Link: https://learn.deeplearning.ai/courses/mcp/lesson/1
MCP standardizes how AI applications get context from tools and data sources.
Servers expose tools, resources and prompts.

Lesson 2: MCP Architecture
Clients live inside host applications and keep a one to one connection with a server.
`

func TestParseCourse(t *testing.T) {
	pc, err := ParseCourse(mcpDoc, "fallback")
	require.NoError(t, err)
	assert.Equal(t, "MCP: Build Rich-Context AI Apps with Anthropic", pc.Course.Title)
	require.NotNil(t, pc.Course.Instructor)
	assert.Equal(t, "Elie Schoppik", *pc.Course.Instructor)
	require.NotNil(t, pc.Course.Link)
	assert.True(t, strings.HasPrefix(*pc.Course.Link, "https://www.deeplearning.ai/"))

	require.Len(t, pc.Lessons, 3)
	assert.Equal(t, 0, pc.Lessons[0].Number)
	assert.Equal(t, "Introduction", pc.Lessons[0].Title)
	require.NotNil(t, pc.Lessons[1].Link)
	assert.Equal(t, "https://learn.deeplearning.ai/courses/mcp/lesson/1", *pc.Lessons[1].Link)
	assert.True(t, strings.HasPrefix(pc.Lessons[1].Body, "MCP standardizes"))
	assert.Nil(t, pc.Lessons[2].Link)
	assert.Contains(t, pc.Lessons[2].Body, "one to one connection")

	require.Len(t, pc.Course.Lessons, 3)
	assert.Equal(t, "MCP Architecture", pc.Course.Lessons[2].Title)
	assert.Empty(t, pc.Preamble)
}

func TestParseCourse_NoHeaderUsesFallback(t *testing.T) {
	pc, err := ParseCourse("just some notes\nabout retrieval", "retrieval-notes")
	require.NoError(t, err)
	assert.Equal(t, "retrieval-notes", pc.Course.Title)
	assert.Empty(t, pc.Lessons)
	assert.Equal(t, "just some notes\nabout retrieval", pc.Preamble)

	_, err = ParseCourse("text", "")
	assert.ErrorIs(t, err, common.ErrParsingFailed)
}

func TestChunker(t *testing.T) {
	c := NewChunker(50, 10)
	text := strings.Repeat("Servers expose tools and resources. ", 10)
	parts, err := c.Split(text)
	require.NoError(t, err)
	require.Greater(t, len(parts), 1)
	for _, p := range parts {
		assert.LessOrEqual(t, len([]rune(p)), 50)
		assert.Equal(t, strings.TrimSpace(p), p)
	}

	parts, err = c.Split("   ")
	require.NoError(t, err)
	assert.Empty(t, parts)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "course.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hello"), 0o644))
	got, err := LoadFile(txt)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	_, err = LoadFile(filepath.Join(dir, "course.docx"))
	assert.ErrorIs(t, err, common.ErrLoadingFailed)
	_, err = LoadFile(filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, common.ErrLoadingFailed)

	_, err = ExtractPDFText([]byte("not a pdf"))
	assert.ErrorIs(t, err, common.ErrLoadingFailed)
	got, err = ExtractPDFText(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func newIndexer(t *testing.T) (*Indexer, vector.Index, metadata.Store) {
	t.Helper()
	idx := vector.NewMemoryIndex(embedding.NewLocal(embedding.DefaultLocalDimension))
	courses := metadata.NewMemoryStore()
	return NewIndexer(idx, courses, Options{ChunkSize: 120, ChunkOverlap: 20}), idx, courses
}

func TestAddCourseFolder(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "course1_script.txt"), []byte(mcpDoc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "course2_script.txt"), []byte(
		"Course Title: Advanced Retrieval for AI with Chroma\nCourse Instructor: Anton Troynikov\n\nLesson 1: Overview\nChroma stores embeddings.\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.docx"), []byte("ignored"), 0o644))

	ix, idx, courses := newIndexer(t)
	n, chunks, err := ix.AddCourseFolder(ctx, dir, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Greater(t, chunks, 3)

	catalog, err := idx.Count(ctx, "course_catalog")
	require.NoError(t, err)
	assert.Equal(t, 2, catalog)
	content, err := idx.Count(ctx, "course_content")
	require.NoError(t, err)
	assert.Equal(t, chunks, content)

	c, err := courses.Get(ctx, "MCP: Build Rich-Context AI Apps with Anthropic")
	require.NoError(t, err)
	assert.Len(t, c.Lessons, 3)

	res, err := idx.Query(ctx, "course_content", "Chroma embeddings", map[string]string{common.MetaCourseTitle: "Advanced Retrieval for AI with Chroma"}, 5)
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	assert.Equal(t, "1", res.Metadatas[0][common.MetaLessonNumber])
	assert.Equal(t, "0", res.Metadatas[0][common.MetaChunkIndex])

	// 已存在的课程再次加载时跳过
	n, chunks, err = ix.AddCourseFolder(ctx, dir, false)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, chunks)

	n, _, err = ix.AddCourseFolder(ctx, dir, true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	content2, err := idx.Count(ctx, "course_content")
	require.NoError(t, err)
	assert.Equal(t, content, content2)
}

func TestAddCourseFolder_MissingDir(t *testing.T) {
	ix, _, _ := newIndexer(t)
	_, _, err := ix.AddCourseFolder(context.Background(), filepath.Join(t.TempDir(), "nope"), false)
	assert.ErrorIs(t, err, common.ErrLoadingFailed)
}

func TestIndexCourse_ReplacesOldChunks(t *testing.T) {
	ctx := context.Background()
	ix, idx, _ := newIndexer(t)
	pc, err := ParseCourse(mcpDoc, "")
	require.NoError(t, err)
	first, err := ix.IndexCourse(ctx, pc)
	require.NoError(t, err)

	pc.Lessons = pc.Lessons[:1]
	second, err := ix.IndexCourse(ctx, pc)
	require.NoError(t, err)
	assert.Less(t, second, first)
	count, err := idx.Count(ctx, "course_content")
	require.NoError(t, err)
	assert.Equal(t, second, count)
}
