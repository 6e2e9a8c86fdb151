package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"course-rag/internal/pipeline/common"
	"course-rag/internal/storage/metadata"
)

func TestFormat_HeadersAndSourcesInOrder(t *testing.T) {
	courses := metadata.NewMemoryStore()
	require.NoError(t, courses.Put(context.Background(), &metadata.Course{
		Title: "MCP",
		Link:  common.StringPtr("https://learn.example/mcp"),
		Lessons: []metadata.Lesson{
			{Number: 1, Title: "Intro", Link: common.StringPtr("https://learn.example/mcp/1")},
		},
	}))
	f := NewFormatter(courses)
	result := &common.SearchResult{
		Status: common.StatusOK,
		Hits: []common.Hit{
			{Content: "first chunk", CourseTitle: "MCP", LessonNumber: common.IntPtr(1), Distance: 0.1},
			{Content: "second chunk", CourseTitle: "Other"},
		},
	}
	text, sources := f.Format(context.Background(), result)
	assert.Equal(t, "[MCP - Lesson 1]\nfirst chunk\n\n[Other]\nsecond chunk", text)
	require.Len(t, sources, 2)
	assert.Equal(t, "MCP – Lesson 1", sources[0].Label())
	require.NotNil(t, sources[0].Link)
	assert.Equal(t, "https://learn.example/mcp/1", *sources[0].Link)
	assert.Equal(t, "Other", sources[1].Label())
	assert.Nil(t, sources[1].Link)
}

func TestFormat_CourseNotFound(t *testing.T) {
	name := "Non-existent Course"
	text, sources := NewFormatter(nil).Format(context.Background(), &common.SearchResult{
		Status:  common.StatusCourseNotFound,
		Request: common.SearchRequest{Query: "x", CourseName: &name},
	})
	assert.Equal(t, "No course found matching 'Non-existent Course'", text)
	assert.Empty(t, sources)
}

func TestFormat_NoContent(t *testing.T) {
	text, sources := NewFormatter(nil).Format(context.Background(), &common.SearchResult{Status: common.StatusNoContent})
	assert.Equal(t, "No relevant content found", text)
	assert.Empty(t, sources)

	text, _ = NewFormatter(nil).Format(context.Background(), &common.SearchResult{
		Status:         common.StatusNoContent,
		ResolvedCourse: "MCP",
		Request:        common.SearchRequest{LessonNumber: common.IntPtr(5)},
	})
	assert.Equal(t, "No relevant content found in course 'MCP' in lesson 5", text)
}
