package http

import (
	"encoding/json"
	"testing"

	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"course-rag/internal/agent"
	"course-rag/internal/api/http/middleware"
	"course-rag/pkg/config"
)

func authConfig() config.APIConfig {
	return config.APIConfig{Middleware: config.MiddlewareConfig{
		Auth:    true,
		JWTKey:  "test-secret",
		APIKeys: []string{"client-key"},
	}}
}

func TestRouter_AuthRequiresToken(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeAnswerer{answer: &agent.Answer{Answer: "ok", SessionID: "s"}}, authConfig())

	w := perform(s, "GET", "/api/courses", nil)
	assert.Equal(t, 401, w.Result().StatusCode())

	// 健康检查不需要认证
	w = perform(s, "GET", "/api/health", nil)
	assert.Equal(t, 200, w.Result().StatusCode())
}

func TestRouter_LoginAndUseToken(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeAnswerer{answer: &agent.Answer{Answer: "ok", SessionID: "s"}}, authConfig())

	w := perform(s, "POST", "/api/auth/token", []byte(`{"api_key":"wrong"}`), jsonHeader)
	assert.Equal(t, 401, w.Result().StatusCode())

	w = perform(s, "POST", "/api/auth/token", []byte(`{"api_key":"client-key"}`), jsonHeader)
	require.Equal(t, 200, w.Result().StatusCode(), string(w.Result().Body()))
	var login struct {
		Token  string `json:"token"`
		Expire string `json:"expire"`
	}
	require.NoError(t, json.Unmarshal(w.Result().Body(), &login))
	require.NotEmpty(t, login.Token)

	bearer := ut.Header{Key: "Authorization", Value: "Bearer " + login.Token}
	w = perform(s, "POST", "/api/query", []byte(`{"query":"q"}`), jsonHeader, bearer)
	assert.Equal(t, 200, w.Result().StatusCode())
}

func TestRouter_NoLoginRouteWithoutAuth(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeAnswerer{}, config.APIConfig{})
	w := perform(s, "POST", "/api/auth/token", []byte(`{"api_key":"x"}`), jsonHeader)
	assert.Equal(t, 404, w.Result().StatusCode())
}

func TestRouter_RateLimit(t *testing.T) {
	cfg := config.APIConfig{Middleware: config.MiddlewareConfig{RateLimit: true, RateLimitRPS: 1}}
	s, _, _ := newTestServer(t, &fakeAnswerer{}, cfg)

	assert.Equal(t, 200, perform(s, "GET", "/api/courses", nil).Result().StatusCode())
	assert.Equal(t, 429, perform(s, "GET", "/api/courses", nil).Result().StatusCode())
}

func TestRouter_CORS(t *testing.T) {
	cfg := config.APIConfig{CORS: config.CORSConfig{Enable: true, AllowOrigins: []string{"http://localhost:3000"}}}
	s, _, _ := newTestServer(t, &fakeAnswerer{}, cfg)

	origin := ut.Header{Key: "Origin", Value: "http://localhost:3000"}
	w := perform(s, "GET", "/api/health", nil, origin)
	assert.Equal(t, "http://localhost:3000", w.Result().Header.Get("Access-Control-Allow-Origin"))

	other := ut.Header{Key: "Origin", Value: "http://evil.example"}
	w = perform(s, "GET", "/api/health", nil, other)
	assert.Empty(t, w.Result().Header.Get("Access-Control-Allow-Origin"))
}

func TestNewMiddleware_AuthWithoutKey(t *testing.T) {
	_, err := middleware.NewMiddleware(config.APIConfig{Middleware: config.MiddlewareConfig{Auth: true}})
	assert.Error(t, err)
}
