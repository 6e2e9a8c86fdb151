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
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"

	"course-rag/internal/api/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware
	metrics    bool
}

// NewRouter 创建新的 HTTP 路由器
func NewRouter(handler *Handler, middleware *middleware.Middleware) *Router {
	return &Router{
		handler:    handler,
		middleware: middleware,
		metrics:    true,
	}
}

// SetMetricsEnabled 控制是否暴露 /metrics
func (r *Router) SetMetricsEnabled(enabled bool) {
	r.metrics = enabled
}

// Build 创建 hertz 实例并注册路由；opts 用于附加 tracer 等 server 选项
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	opts = append([]config.Option{server.WithHostPorts(addr)}, opts...)
	h := server.New(opts...)

	h.Use(r.middleware.Recovery(), r.middleware.AccessLog(), r.middleware.CORS())

	h.GET("/api/health", r.handler.HealthCheck)
	if r.metrics {
		h.GET("/metrics", r.handler.Metrics)
	}
	if login := r.middleware.LoginHandler(); login != nil {
		h.POST("/api/auth/token", login)
	}

	api := h.Group("/api", r.middleware.RateLimit(), r.middleware.Auth())
	{
		api.POST("/query", r.handler.Query)
		api.GET("/courses", r.handler.ListCourses)
		api.DELETE("/session/:id", r.handler.DeleteSession)
		api.POST("/web/browse", r.handler.WebBrowse)
		api.POST("/web/extract-course", r.handler.ExtractCourse)
	}
	return h
}
