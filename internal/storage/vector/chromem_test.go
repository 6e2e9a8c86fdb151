package vector

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"course-rag/internal/model/embedding"
	"course-rag/pkg/config"
)

func seed(t *testing.T, idx Index) {
	t.Helper()
	docs := []Document{
		{ID: "c1", Content: "servers expose tools and resources to clients", Metadata: map[string]string{"course_title": "MCP", "lesson_number": "1"}},
		{ID: "c2", Content: "clients connect to servers over stdio", Metadata: map[string]string{"course_title": "MCP", "lesson_number": "2"}},
		{ID: "c3", Content: "retrieval augmented generation with vector databases", Metadata: map[string]string{"course_title": "RAG", "lesson_number": "1"}},
	}
	require.NoError(t, idx.Upsert(context.Background(), "content", docs))
}

func TestChromemIndex_QueryEmptyCollection(t *testing.T) {
	idx := NewMemoryIndex(embedding.NewLocal(256))
	res, err := idx.Query(context.Background(), "missing", "anything", nil, 5)
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestChromemIndex_QueryOrderedAndParallel(t *testing.T) {
	idx := NewMemoryIndex(embedding.NewLocal(256))
	seed(t, idx)

	res, err := idx.Query(context.Background(), "content", "servers expose tools", nil, 10)
	require.NoError(t, err)
	require.Equal(t, 3, res.Len(), "n is capped at collection size")
	assert.Len(t, res.IDs, 3)
	assert.Len(t, res.Metadatas, 3)
	assert.Len(t, res.Distances, 3)
	assert.Equal(t, "c1", res.IDs[0])
	assert.True(t, sort.Float64sAreSorted(res.Distances), "distances ascending: %v", res.Distances)
	for _, d := range res.Distances {
		assert.GreaterOrEqual(t, d, -1e-6)
		assert.LessOrEqual(t, d, 2.0)
	}
}

func TestChromemIndex_WhereFilter(t *testing.T) {
	idx := NewMemoryIndex(embedding.NewLocal(256))
	seed(t, idx)

	res, err := idx.Query(context.Background(), "content", "servers", map[string]string{"course_title": "MCP", "lesson_number": "2"}, 5)
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	assert.Equal(t, "c2", res.IDs[0])

	res, err = idx.Query(context.Background(), "content", "servers", map[string]string{"course_title": "Nope"}, 5)
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestChromemIndex_CountDeleteList(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(embedding.NewLocal(256))
	seed(t, idx)

	n, err := idx.Count(ctx, "content")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, idx.DeleteWhere(ctx, "content", map[string]string{"course_title": "MCP"}))
	n, _ = idx.Count(ctx, "content")
	assert.Equal(t, 1, n)
	assert.Error(t, idx.DeleteWhere(ctx, "content", nil))

	names, err := idx.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"content"}, names)

	require.NoError(t, idx.DeleteCollection(ctx, "content"))
	n, _ = idx.Count(ctx, "content")
	assert.Equal(t, 0, n)
}

func TestChromemIndex_UpsertRejectsEmptyID(t *testing.T) {
	idx := NewMemoryIndex(embedding.NewLocal(64))
	err := idx.Upsert(context.Background(), "c", []Document{{Content: "x"}})
	assert.Error(t, err)
}

func TestNewIndex_Persistent(t *testing.T) {
	dir := t.TempDir()
	embed := embedding.NewLocal(64)
	idx, err := NewIndex(config.VectorConfig{Type: "persistent", Path: dir}, embed)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(context.Background(), "catalog", []Document{{ID: "A", Content: "A course"}}))

	reopened, err := NewIndex(config.VectorConfig{Type: "persistent", Path: dir}, embed)
	require.NoError(t, err)
	n, err := reopened.Count(context.Background(), "catalog")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNewIndex_Errors(t *testing.T) {
	_, err := NewIndex(config.VectorConfig{Type: "milvus"}, embedding.NewLocal(8))
	assert.Error(t, err)
	_, err = NewIndex(config.VectorConfig{}, nil)
	assert.Error(t, err)
}
