package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"course-rag/internal/tool"
	"course-rag/pkg/config"
)

var searchDef = tool.Definition{
	Name:        "search_course_content",
	Description: "Search course materials",
	InputSchema: tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"query":         {Type: "string", Description: "What to search for"},
			"lesson_number": {Type: "integer"},
		},
		Required: []string{"query"},
	},
}

func TestContentBlock_MarshalJSON(t *testing.T) {
	raw, err := json.Marshal([]ContentBlock{
		TextBlock("hi"),
		{Type: BlockToolUse, ID: "tu_1", Name: "search_course_content"},
		ToolResultBlock("tu_1", "result", true),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"type":"text","text":"hi"},
		{"type":"tool_use","id":"tu_1","name":"search_course_content","input":{}},
		{"type":"tool_result","tool_use_id":"tu_1","content":"result","is_error":true}
	]`, string(raw))
}

func TestResponse_TextAndToolUses(t *testing.T) {
	r := &Response{StopReason: StopToolUse, Content: []ContentBlock{
		TextBlock("Let me "), TextBlock("search."),
		{Type: BlockToolUse, ID: "a", Name: "x"},
		{Type: BlockToolUse, ID: "b", Name: "y"},
	}}
	assert.Equal(t, "Let me search.", r.Text())
	uses := r.ToolUses()
	require.Len(t, uses, 2)
	assert.Equal(t, "a", uses[0].ID)
	assert.True(t, r.WantsTools())

	assert.False(t, (&Response{StopReason: StopEndTurn, Content: []ContentBlock{TextBlock("x")}}).WantsTools())
	// stop_reason 为 tool_use 但没有 tool_use 块时不进入工具阶段
	assert.False(t, (&Response{StopReason: StopToolUse, Content: []ContentBlock{TextBlock("x")}}).WantsTools())
}

func TestClaudeClient_CreateMessage(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":"msg_1","type":"message","role":"assistant",
			"content":[{"type":"tool_use","id":"tu_1","name":"search_course_content","input":{"query":"MCP","lesson_number":1}}],
			"stop_reason":"tool_use",
			"usage":{"input_tokens":120,"output_tokens":30}
		}`))
	}))
	defer srv.Close()

	c, err := NewClaudeClient(ClientConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: "claude-test"})
	require.NoError(t, err)
	resp, err := c.CreateMessage(context.Background(), &Request{
		System:    "system prompt",
		Messages:  []Message{UserText("What is MCP?")},
		Tools:     []tool.Definition{searchDef},
		MaxTokens: 800,
	})
	require.NoError(t, err)

	assert.Equal(t, "claude-test", got["model"])
	assert.Equal(t, "system prompt", got["system"])
	assert.EqualValues(t, 800, got["max_tokens"])
	assert.EqualValues(t, 0, got["temperature"])
	tools := got["tools"].([]any)
	require.Len(t, tools, 1)
	assert.Equal(t, "search_course_content", tools[0].(map[string]any)["name"])
	assert.Contains(t, tools[0].(map[string]any), "input_schema")

	assert.Equal(t, StopToolUse, resp.StopReason)
	uses := resp.ToolUses()
	require.Len(t, uses, 1)
	assert.Equal(t, "tu_1", uses[0].ID)
	assert.Equal(t, "MCP", uses[0].Input["query"])
	assert.Equal(t, 120, resp.Usage.InputTokens)
}

func TestClaudeClient_NoToolsOmitted(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"answer"}],"stop_reason":"end_turn"}`))
	}))
	defer srv.Close()

	c, err := NewClaudeClient(ClientConfig{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)
	resp, err := c.CreateMessage(context.Background(), &Request{Messages: []Message{UserText("q")}})
	require.NoError(t, err)
	assert.Equal(t, "answer", resp.Text())
	assert.NotContains(t, got, "tools")
	assert.NotContains(t, got, "tool_choice")
}

func TestClaudeClient_APIError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"rate_limit_error"}}`))
	}))
	defer srv.Close()

	c, err := NewClaudeClient(ClientConfig{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = c.CreateMessage(context.Background(), &Request{Messages: []Message{UserText("q")}})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestNewClaudeClient_RequiresKey(t *testing.T) {
	_, err := NewClaudeClient(ClientConfig{})
	assert.Error(t, err)
}

func TestOpenAIClient_ToolCalls(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-test",
			"choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":"",
				"tool_calls":[{"id":"call_1","type":"function","function":{"name":"search_course_content","arguments":"{\"query\":\"MCP\"}"}}]}}],
			"usage":{"prompt_tokens":11,"completion_tokens":7,"total_tokens":18}
		}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(context.Background(), ClientConfig{Provider: "openai", APIKey: "k", BaseURL: srv.URL, Model: "gpt-test"})
	require.NoError(t, err)
	resp, err := c.CreateMessage(context.Background(), &Request{
		System:   "sys",
		Messages: []Message{UserText("What is MCP?")},
		Tools:    []tool.Definition{searchDef},
	})
	require.NoError(t, err)
	assert.Equal(t, StopToolUse, resp.StopReason)
	uses := resp.ToolUses()
	require.Len(t, uses, 1)
	assert.Equal(t, "call_1", uses[0].ID)
	assert.Equal(t, "MCP", uses[0].Input["query"])
	assert.Equal(t, 11, resp.Usage.InputTokens)
	assert.Contains(t, got, "tools")
}

func TestFromSchemaMessage_MalformedArgumentsKeptRaw(t *testing.T) {
	resp, err := fromSchemaMessage(&schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{
			{ID: "call_1", Type: "function", Function: schema.FunctionCall{Name: "search_course_content", Arguments: `{"query":`}},
			{ID: "call_2", Type: "function", Function: schema.FunctionCall{Name: "search_course_content", Arguments: `{"query":"MCP"}`}},
		},
	})
	require.NoError(t, err)
	uses := resp.ToolUses()
	require.Len(t, uses, 2)
	assert.Nil(t, uses[0].Input)
	assert.Equal(t, `{"query":`, uses[0].RawInput)
	assert.Equal(t, "MCP", uses[1].Input["query"])
	assert.Empty(t, uses[1].RawInput)

	msgs, err := toSchemaMessages(&Request{Messages: []Message{{Role: RoleAssistant, Content: resp.Content}}})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, `{"query":`, msgs[0].ToolCalls[0].Function.Arguments)
}

func TestToSchemaMessages_ExpandsToolResults(t *testing.T) {
	msgs, err := toSchemaMessages(&Request{
		System: "sys",
		Messages: []Message{
			UserText("q"),
			{Role: RoleAssistant, Content: []ContentBlock{{Type: BlockToolUse, ID: "c1", Name: "s", Input: map[string]any{"query": "x"}}}},
			{Role: RoleUser, Content: []ContentBlock{ToolResultBlock("c1", "r1", false)}},
		},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "sys", msgs[0].Content)
	assert.Equal(t, "q", msgs[1].Content)
	require.Len(t, msgs[2].ToolCalls, 1)
	assert.JSONEq(t, `{"query":"x"}`, msgs[2].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "c1", msgs[3].ToolCallID)
	assert.Equal(t, "r1", msgs[3].Content)
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient(context.Background(), ClientConfig{Provider: "nope", APIKey: "k"})
	assert.Error(t, err)
}

func TestConfigFromModel(t *testing.T) {
	mc := config.ModelConfig{
		LLM: config.LLMConfig{Providers: map[string]config.ProviderConfig{
			"anthropic": {APIKey: "k", Models: map[string]config.ModelInfo{"sonnet": {Name: "claude-sonnet-4-20250514"}}},
		}},
		Defaults: config.DefaultsConfig{LLM: "anthropic.sonnet"},
	}
	cc, err := ConfigFromModel(mc)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cc.Provider)
	assert.Equal(t, "claude-sonnet-4-20250514", cc.Model)

	mc.Defaults.LLM = "anthropic"
	_, err = ConfigFromModel(mc)
	assert.Error(t, err)
	mc.Defaults.LLM = "anthropic.haiku"
	_, err = ConfigFromModel(mc)
	assert.Error(t, err)
}

type stubClient struct {
	mu       sync.Mutex
	inFlight int
	peak     int
}

func (s *stubClient) CreateMessage(ctx context.Context, req *Request) (*Response, error) {
	s.mu.Lock()
	s.inFlight++
	s.peak = max(s.peak, s.inFlight)
	s.mu.Unlock()
	time.Sleep(10 * time.Millisecond)
	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
	return &Response{StopReason: StopEndTurn, Content: []ContentBlock{TextBlock("ok")}, Usage: Usage{InputTokens: 1, OutputTokens: 1}}, nil
}

func (s *stubClient) Model() string    { return "stub" }
func (s *stubClient) Provider() string { return "stub" }

func TestRateLimitedClient_MaxConcurrent(t *testing.T) {
	inner := &stubClient{}
	limiter := NewLLMRateLimiter(map[string]config.LLMRateLimitConfig{"stub": {MaxConcurrent: 2}}, nil)
	c := NewRateLimitedClient(inner, limiter)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.CreateMessage(context.Background(), &Request{Messages: []Message{UserText("q")}, MaxTokens: 100})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, inner.peak, 2)
	assert.Equal(t, 0, limiter.InFlight("stub"))
	assert.Equal(t, "stub", c.Provider())
}

func TestLLMRateLimiter_WaitHonorsContext(t *testing.T) {
	limiter := NewLLMRateLimiter(map[string]config.LLMRateLimitConfig{"p": {MaxConcurrent: 1}}, nil)
	require.NoError(t, limiter.Wait(context.Background(), "p", 1))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, limiter.Wait(ctx, "p", 1))
	limiter.Release("p")
	assert.NoError(t, limiter.Wait(context.Background(), "p", 1))
}

func TestLLMRateLimiter_LargeEstimateDoesNotFail(t *testing.T) {
	limiter := NewLLMRateLimiter(map[string]config.LLMRateLimitConfig{"p": {TokensPerMinute: 600}}, nil)
	assert.NoError(t, limiter.Wait(context.Background(), "p", 5000))
}
