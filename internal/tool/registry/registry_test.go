package registry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"course-rag/internal/pipeline/common"
	"course-rag/internal/tool"
)

type fakeTool struct {
	name    string
	content string
	sources []common.Source
	err     error
	panics  bool
	delay   time.Duration
	calls   atomic.Int32
}

func (f *fakeTool) Definition() tool.Definition {
	return tool.Definition{
		Name:        f.name,
		Description: "fake " + f.name,
		InputSchema: tool.Schema{Type: "object", Properties: map[string]tool.SchemaProperty{}},
	}
}

func (f *fakeTool) Execute(ctx context.Context, input map[string]any) (tool.Result, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return tool.Result{}, ctx.Err()
		}
	}
	if f.panics {
		panic("boom")
	}
	if f.err != nil {
		return tool.Result{}, f.err
	}
	return tool.Result{Content: f.content, Sources: f.sources}, nil
}

func src(title string) common.Source {
	return common.Source{CourseTitle: title}
}

func TestRegister_RejectsDuplicateAndEmpty(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&fakeTool{name: "a"}))
	err := r.Register(&fakeTool{name: "a"})
	assert.ErrorIs(t, err, ErrDuplicateTool)
	assert.Error(t, r.Register(&fakeTool{name: ""}))
	assert.Equal(t, 1, r.Len())
}

func TestDefinitions_RegistrationOrder(t *testing.T) {
	r := New()
	for _, n := range []string{"search_course_content", "get_course_outline", "fetch_web_page"} {
		require.NoError(t, r.Register(&fakeTool{name: n}))
	}
	defs := r.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "search_course_content", defs[0].Name)
	assert.Equal(t, "get_course_outline", defs[1].Name)
	assert.Equal(t, "fetch_web_page", defs[2].Name)
}

func TestTurn_ExecuteUnknownTool(t *testing.T) {
	turn := New().Begin()
	_, err := turn.Execute(context.Background(), "nope", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownTool))
	assert.Equal(t, "Tool 'nope' not found", err.Error())
}

func TestTurn_ExecuteRecordsSources(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&fakeTool{name: "search", content: "text", sources: []common.Source{src("A")}}))
	turn := r.Begin()

	res, err := turn.Execute(context.Background(), "search", map[string]any{"query": "x"})
	require.NoError(t, err)
	assert.Equal(t, "text", res.Content)
	assert.Equal(t, []common.Source{src("A")}, turn.Sources())

	assert.Equal(t, []common.Source{src("A")}, turn.TakeSources())
	assert.Empty(t, turn.TakeSources())
}

func TestTurns_AreIsolated(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&fakeTool{name: "search", content: "text", sources: []common.Source{src("A")}}))
	t1, t2 := r.Begin(), r.Begin()
	_, err := t1.Execute(context.Background(), "search", nil)
	require.NoError(t, err)
	assert.Len(t, t1.Sources(), 1)
	assert.Empty(t, t2.Sources())
}

func TestTurn_ExecuteAll_OrderAndFailures(t *testing.T) {
	r := New()
	slow := &fakeTool{name: "slow", content: "slow result", sources: []common.Source{src("Slow")}, delay: 30 * time.Millisecond}
	fast := &fakeTool{name: "fast", content: "fast result", sources: []common.Source{src("Fast")}}
	failing := &fakeTool{name: "failing", err: errors.New("index unavailable")}
	panicking := &fakeTool{name: "panicking", panics: true}
	for _, tl := range []tool.Tool{slow, fast, failing, panicking} {
		require.NoError(t, r.Register(tl))
	}
	turn := r.Begin()

	results := turn.ExecuteAll(context.Background(), []Call{
		{ID: "c1", Name: "slow"},
		{ID: "c2", Name: "failing"},
		{ID: "c3", Name: "fast"},
		{ID: "c4", Name: "panicking"},
		{ID: "c5", Name: "missing"},
	})
	require.Len(t, results, 5)

	assert.Equal(t, "c1", results[0].ID)
	assert.Equal(t, "slow result", results[0].Content)
	assert.False(t, results[0].IsError)

	assert.Equal(t, "c2", results[1].ID)
	assert.True(t, results[1].IsError)
	assert.Equal(t, "Tool execution failed: index unavailable", results[1].Content)

	assert.Equal(t, "fast result", results[2].Content)

	assert.True(t, results[3].IsError)
	assert.Contains(t, results[3].Content, "panicked")

	assert.True(t, results[4].IsError)
	assert.ErrorIs(t, results[4].Err, ErrUnknownTool)

	assert.Equal(t, []common.Source{src("Slow"), src("Fast")}, turn.TakeSources())
}

func TestTurn_ExecuteAll_MalformedArguments(t *testing.T) {
	r := New()
	ok := &fakeTool{name: "ok", content: "fine"}
	require.NoError(t, r.Register(ok))

	results := r.Begin().ExecuteAll(context.Background(), []Call{
		{ID: "c1", Name: "ok", RawInput: `{"query":`},
		{ID: "c2", Name: "ok", Input: map[string]any{}},
	})
	require.Len(t, results, 2)
	assert.True(t, results[0].IsError)
	assert.ErrorIs(t, results[0].Err, common.ErrInvalidInput)
	assert.Contains(t, results[0].Content, "Tool execution failed: invalid arguments")
	assert.False(t, results[1].IsError)
	assert.Equal(t, int32(1), ok.calls.Load())
}

func TestTurn_ExecuteAll_RunsConcurrently(t *testing.T) {
	r := New()
	a := &fakeTool{name: "a", content: "a", delay: 50 * time.Millisecond}
	b := &fakeTool{name: "b", content: "b", delay: 50 * time.Millisecond}
	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b))

	start := time.Now()
	results := r.Begin().ExecuteAll(context.Background(), []Call{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}})
	elapsed := time.Since(start)

	require.Len(t, results, 2)
	assert.Less(t, elapsed, 95*time.Millisecond)
	assert.EqualValues(t, 1, a.calls.Load())
	assert.EqualValues(t, 1, b.calls.Load())
}

func TestTurn_ExecuteAll_Limit(t *testing.T) {
	r := New()
	r.SetConcurrency(1)
	require.NoError(t, r.Register(&fakeTool{name: "a", content: "a", delay: 20 * time.Millisecond}))
	require.NoError(t, r.Register(&fakeTool{name: "b", content: "b", delay: 20 * time.Millisecond}))

	start := time.Now()
	results := r.Begin().ExecuteAll(context.Background(), []Call{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}})
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.Equal(t, "a", results[0].Content)
	assert.Equal(t, "b", results[1].Content)
}
