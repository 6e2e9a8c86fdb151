package grpc

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"course-rag/internal/agent"
	"course-rag/internal/pipeline/common"
	"course-rag/internal/runtime/session"
	"course-rag/internal/storage/metadata"
)

type stubAnswerer struct {
	ans *agent.Answer
	err error
}

func (s *stubAnswerer) Answer(ctx context.Context, query, sessionID string) (*agent.Answer, error) {
	if s.err != nil {
		return nil, s.err
	}
	a := *s.ans
	if sessionID != "" {
		a.SessionID = sessionID
	}
	return &a, nil
}

func dial(t *testing.T, ans Answerer, courses CourseLister, sessions SessionDeleter) *QueryServiceClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	NewServer(ans, courses, sessions).Register(srv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewQueryServiceClient(conn)
}

func mustStruct(t *testing.T, m map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestQueryService_Query(t *testing.T) {
	link := "https://example.com/mcp/1"
	ans := &stubAnswerer{ans: &agent.Answer{
		Answer:    "MCP is a protocol.",
		Sources:   []common.Source{{CourseTitle: "MCP Course", LessonNumber: common.IntPtr(1), Link: &link}},
		SessionID: "session_new",
	}}
	client := dial(t, ans, metadata.NewMemoryStore(), session.NewManager(session.NewMemoryStore(), 2))

	out, err := client.Query(context.Background(), mustStruct(t, map[string]interface{}{"query": "What is MCP?"}))
	require.NoError(t, err)
	m := out.AsMap()
	assert.Equal(t, "MCP is a protocol.", m["answer"])
	assert.Equal(t, "session_new", m["session_id"])
	assert.Equal(t, []interface{}{"MCP Course – Lesson 1"}, m["sources"])
	links := m["source_links"].([]interface{})
	require.Len(t, links, 1)
	assert.Equal(t, link, links[0].(map[string]interface{})["url"])
}

func TestQueryService_QueryErrors(t *testing.T) {
	sessions := session.NewManager(session.NewMemoryStore(), 2)
	cases := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"timeout", agent.ErrTimeout, codes.DeadlineExceeded},
		{"generation", &agent.GenerationError{Phase: agent.PhaseFinal, Err: errors.New("boom")}, codes.Internal},
		{"validation", common.NewValidationError("query", "empty"), codes.InvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := dial(t, &stubAnswerer{err: tc.err}, metadata.NewMemoryStore(), sessions)
			_, err := client.Query(context.Background(), mustStruct(t, map[string]interface{}{"query": "q"}))
			require.Error(t, err)
			assert.Equal(t, tc.code, status.Code(err))
			assert.NotContains(t, err.Error(), "boom")
		})
	}

	client := dial(t, &stubAnswerer{}, metadata.NewMemoryStore(), sessions)
	_, err := client.Query(context.Background(), nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestQueryService_ListCoursesAndDeleteSession(t *testing.T) {
	ctx := context.Background()
	courses := metadata.NewMemoryStore()
	require.NoError(t, courses.Put(ctx, &metadata.Course{Title: "MCP Course"}))
	sessions := session.NewManager(session.NewMemoryStore(), 2)
	id, err := sessions.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, sessions.AddExchange(ctx, id, "q", "a"))

	client := dial(t, &stubAnswerer{}, courses, sessions)

	out, err := client.ListCourses(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(1), out.AsMap()["total_courses"])
	assert.Equal(t, []interface{}{"MCP Course"}, out.AsMap()["course_titles"])

	_, err = client.DeleteSession(ctx, nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	out, err = client.DeleteSession(ctx, mustStruct(t, map[string]interface{}{"session_id": id}))
	require.NoError(t, err)
	assert.Equal(t, "Session deleted successfully", out.AsMap()["message"])
	assert.Equal(t, id, out.AsMap()["session_id"])
	hist, err := sessions.History(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, hist)
}
