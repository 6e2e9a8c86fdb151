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

// Package mcp 将工具注册表以 MCP 协议暴露给外部客户端
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"course-rag/internal/tool"
	"course-rag/internal/tool/registry"
)

// Server MCP 工具服务
type Server struct {
	tools  *registry.Registry
	server *mcp.Server
	logger *slog.Logger
}

// NewServer 为注册表中的每个工具创建同名 MCP 工具
func NewServer(tools *registry.Registry, version string) (*Server, error) {
	s := &Server{
		tools:  tools,
		server: mcp.NewServer(&mcp.Implementation{Name: "course-rag", Version: version}, nil),
		logger: slog.Default(),
	}
	for _, def := range tools.Definitions() {
		schema, err := inputSchema(def.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("工具 %s 的 schema 无效: %w", def.Name, err)
		}
		s.server.AddTool(&mcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: schema,
		}, s.handler(def.Name))
	}
	return s, nil
}

// SetLogger 设置日志
func (s *Server) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// Run 通过 stdio 提供服务，直到 ctx 取消或对端断开
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect 在给定 transport 上建立会话，测试中配合 mcp.NewInMemoryTransports 使用
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

func (s *Server) handler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]any{}
		if req.Params != nil && len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return errorResult("invalid arguments: " + err.Error()), nil
			}
		}
		res, err := s.tools.Begin().Execute(ctx, name, args)
		if err != nil {
			s.logger.Warn("MCP 工具调用失败", "tool", name, "error", err)
			return errorResult("Tool execution failed: " + err.Error()), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: res.Content}},
		}, nil
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// inputSchema 转为 map 形式，保证 required 缺省时也是合法 JSON Schema
func inputSchema(schema tool.Schema) (map[string]any, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out["type"] == nil || out["type"] == "" {
		out["type"] = "object"
	}
	return out, nil
}
