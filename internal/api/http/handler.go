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

package http

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"course-rag/internal/agent"
	"course-rag/internal/pipeline/common"
	"course-rag/internal/storage/metadata"
	"course-rag/internal/tool"
	"course-rag/internal/tool/builtin"
	"course-rag/pkg/metrics"
)

const (
	// GenericErrorMessage 生成失败时返回给用户的文案，不暴露内部错误
	GenericErrorMessage = "Sorry, something went wrong while answering your question. Please try again."
	// TimeoutMessage 超时文案
	TimeoutMessage = "The request took too long to complete. Please try again."
)

// Answerer 单轮问答
type Answerer interface {
	Answer(ctx context.Context, query, sessionID string) (*agent.Answer, error)
}

// CourseLister 列出已索引课程
type CourseLister interface {
	List(ctx context.Context) ([]*metadata.Course, error)
}

// SessionDeleter 删除会话
type SessionDeleter interface {
	Delete(ctx context.Context, id string) error
}

// WebBrowser 网页抓取工具，兼供课程页面结构化抽取
type WebBrowser interface {
	tool.Tool
	ExtractCourse(ctx context.Context, rawURL string) (*builtin.CourseExtract, error)
}

// QueryRequest POST /api/query 请求体
type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// SourceLink 带链接的来源
type SourceLink struct {
	Title string  `json:"title"`
	URL   *string `json:"url,omitempty"`
}

// QueryResponse POST /api/query 响应体
type QueryResponse struct {
	Answer      string       `json:"answer"`
	Sources     []string     `json:"sources"`
	SourceLinks []SourceLink `json:"source_links"`
	SessionID   string       `json:"session_id"`
}

// CourseStats GET /api/courses 响应体
type CourseStats struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

// BrowseRequest POST /api/web/browse 与 /api/web/extract-course 请求体
type BrowseRequest struct {
	URL         string   `json:"url"`
	SearchTerms []string `json:"search_terms,omitempty"`
}

// Handler HTTP 处理器
type Handler struct {
	answerer Answerer
	courses  CourseLister
	sessions SessionDeleter
	web      WebBrowser
	logger   *slog.Logger
}

// NewHandler 创建新的 HTTP 处理器
func NewHandler(answerer Answerer, courses CourseLister, sessions SessionDeleter) *Handler {
	return &Handler{
		answerer: answerer,
		courses:  courses,
		sessions: sessions,
		logger:   slog.Default(),
	}
}

// SetLogger 设置日志
func (h *Handler) SetLogger(l *slog.Logger) {
	if l != nil {
		h.logger = l
	}
}

// SetWebTool 启用 /api/web/browse 与 /api/web/extract-course
func (h *Handler) SetWebTool(t WebBrowser) {
	h.web = t
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"service":   "course-rag",
	})
}

// Query 处理一次问答
func (h *Handler) Query(ctx context.Context, c *app.RequestContext) {
	var req QueryRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "query is required"})
		return
	}

	ans, err := h.answerer.Answer(ctx, req.Query, req.SessionID)
	if err != nil {
		status, msg := statusFor(err)
		h.logger.Error("问答失败", "session_id", req.SessionID, "status", status, "error", err)
		c.JSON(status, utils.H{"error": msg})
		return
	}
	c.JSON(consts.StatusOK, toQueryResponse(ans))
}

// ListCourses 课程统计
func (h *Handler) ListCourses(ctx context.Context, c *app.RequestContext) {
	courses, err := h.courses.List(ctx)
	if err != nil {
		h.logger.Error("获取课程列表失败", "error", err)
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "failed to list courses"})
		return
	}
	titles := make([]string, 0, len(courses))
	for _, course := range courses {
		titles = append(titles, course.Title)
	}
	c.JSON(consts.StatusOK, CourseStats{TotalCourses: len(titles), CourseTitles: titles})
}

// DeleteSession 清除会话历史
func (h *Handler) DeleteSession(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	if id == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "session id is required"})
		return
	}
	if err := h.sessions.Delete(ctx, id); err != nil {
		h.logger.Error("删除会话失败", "session_id", id, "error", err)
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "failed to delete session"})
		return
	}
	c.JSON(consts.StatusOK, utils.H{
		"message":    "Session deleted successfully",
		"session_id": id,
	})
}

// Metrics Prometheus 文本格式指标
func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		c.String(consts.StatusInternalServerError, "%v", err)
		return
	}
	c.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}

// WebBrowse 直接调用网页抓取工具
func (h *Handler) WebBrowse(ctx context.Context, c *app.RequestContext) {
	if h.web == nil {
		c.JSON(consts.StatusNotFound, utils.H{"error": "web browsing is disabled"})
		return
	}
	var req BrowseRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "invalid request body"})
		return
	}
	input := map[string]any{"url": req.URL}
	if len(req.SearchTerms) > 0 {
		terms := make([]any, len(req.SearchTerms))
		for i, t := range req.SearchTerms {
			terms[i] = t
		}
		input["search_terms"] = terms
	}
	res, err := h.web.Execute(ctx, input)
	if err != nil {
		h.webError(c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"url": req.URL, "content": res.Content})
}

// ExtractCourse 抽取课程页面的标题、段落、代码块与列表
func (h *Handler) ExtractCourse(ctx context.Context, c *app.RequestContext) {
	if h.web == nil {
		c.JSON(consts.StatusNotFound, utils.H{"error": "web browsing is disabled"})
		return
	}
	var req BrowseRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "invalid request body"})
		return
	}
	out, err := h.web.ExtractCourse(ctx, req.URL)
	if err != nil {
		h.webError(c, err)
		return
	}
	c.JSON(consts.StatusOK, out)
}

func (h *Handler) webError(c *app.RequestContext, err error) {
	if errors.Is(err, common.ErrInvalidInput) {
		c.JSON(consts.StatusBadRequest, utils.H{"error": err.Error()})
		return
	}
	h.logger.Warn("网页抓取失败", "error", err)
	c.JSON(consts.StatusBadGateway, utils.H{"error": err.Error()})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		return consts.StatusBadRequest, err.Error()
	case errors.Is(err, agent.ErrTimeout):
		return consts.StatusGatewayTimeout, TimeoutMessage
	default:
		return consts.StatusInternalServerError, GenericErrorMessage
	}
}

func toQueryResponse(ans *agent.Answer) QueryResponse {
	resp := QueryResponse{
		Answer:      ans.Answer,
		Sources:     common.Labels(ans.Sources),
		SourceLinks: make([]SourceLink, len(ans.Sources)),
		SessionID:   ans.SessionID,
	}
	for i, s := range ans.Sources {
		resp.SourceLinks[i] = SourceLink{Title: s.Label(), URL: s.Link}
	}
	return resp
}
