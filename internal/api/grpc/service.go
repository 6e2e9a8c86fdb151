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

// Package grpc 提供 gRPC 服务端，与 HTTP 能力对齐；调用 Orchestrator 与课程元数据，不直接访问向量库。
package grpc

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"course-rag/internal/agent"
	"course-rag/internal/pipeline/common"
	"course-rag/internal/storage/metadata"
)

// Answerer 单轮问答
type Answerer interface {
	Answer(ctx context.Context, query, sessionID string) (*agent.Answer, error)
}

// CourseLister 列出课程
type CourseLister interface {
	List(ctx context.Context) ([]*metadata.Course, error)
}

// SessionDeleter 删除会话
type SessionDeleter interface {
	Delete(ctx context.Context, id string) error
}

// Server gRPC 服务端
type Server struct {
	answerer Answerer
	courses  CourseLister
	sessions SessionDeleter
	logger   *slog.Logger
}

var _ QueryServiceServer = (*Server)(nil)

// NewServer 创建 gRPC Server
func NewServer(answerer Answerer, courses CourseLister, sessions SessionDeleter) *Server {
	return &Server{
		answerer: answerer,
		courses:  courses,
		sessions: sessions,
		logger:   slog.Default(),
	}
}

// SetLogger 设置日志
func (s *Server) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// Register 注册 QueryService 到 grpc.Server
func (s *Server) Register(grpcServer *grpc.Server) {
	RegisterQueryServiceServer(grpcServer, s)
}

// Query 请求 {query, session_id?}，响应 {answer, sources, source_links, session_id}
func (s *Server) Query(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	query := stringField(req, "query")
	if strings.TrimSpace(query) == "" {
		return nil, status.Error(codes.InvalidArgument, "query required")
	}
	ans, err := s.answerer.Answer(ctx, query, stringField(req, "session_id"))
	if err != nil {
		s.logger.Error("gRPC 问答失败", "error", err)
		return nil, toStatus(err)
	}

	sources := make([]interface{}, len(ans.Sources))
	links := make([]interface{}, len(ans.Sources))
	for i, src := range ans.Sources {
		sources[i] = src.Label()
		link := map[string]interface{}{"title": src.Label()}
		if src.Link != nil {
			link["url"] = *src.Link
		}
		links[i] = link
	}
	return structpb.NewStruct(map[string]interface{}{
		"answer":       ans.Answer,
		"sources":      sources,
		"source_links": links,
		"session_id":   ans.SessionID,
	})
}

// ListCourses 响应 {total_courses, course_titles}
func (s *Server) ListCourses(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	courses, err := s.courses.List(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "list courses: %v", err)
	}
	titles := make([]interface{}, len(courses))
	for i, c := range courses {
		titles[i] = c.Title
	}
	return structpb.NewStruct(map[string]interface{}{
		"total_courses": len(titles),
		"course_titles": titles,
	})
}

// DeleteSession 请求 {session_id}，响应 {message, session_id}
func (s *Server) DeleteSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "session_id")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id required")
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		return nil, status.Errorf(codes.Internal, "delete session: %v", err)
	}
	return structpb.NewStruct(map[string]interface{}{
		"message":    "Session deleted successfully",
		"session_id": id,
	})
}

func stringField(req *structpb.Struct, key string) string {
	if req == nil {
		return ""
	}
	v, ok := req.GetFields()[key]
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, agent.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "query timed out")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	default:
		return status.Error(codes.Internal, "failed to generate an answer")
	}
}
