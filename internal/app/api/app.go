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

package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"google.golang.org/grpc"

	"course-rag/internal/agent"
	apigrpc "course-rag/internal/api/grpc"
	"course-rag/internal/api/http"
	"course-rag/internal/api/http/middleware"
	"course-rag/internal/app"
	"course-rag/pkg/log"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用（装配 HTTP Router、Handler、Middleware 与可选 gRPC）
type App struct {
	config       *app.Bootstrap
	orchestrator *agent.Orchestrator
	router       *http.Router
	hertz        *server.Hertz
	grpcServer   *grpcRun
	otelProvider otelProviderShutdown
}

// grpcRun 持有 gRPC Server 与 Listener，用于 GracefulStop 时关闭
type grpcRun struct {
	srv *grpc.Server
	lis net.Listener
}

func (g *grpcRun) GracefulStop() {
	if g.srv != nil {
		g.srv.GracefulStop()
	}
	if g.lis != nil {
		_ = g.lis.Close()
	}
}

// NewApp 加载课程文档并组装问答链路
func NewApp(ctx context.Context, bootstrap *app.Bootstrap) (*App, error) {
	if err := bootstrap.LoadDocuments(ctx); err != nil {
		// 文档目录缺失不阻止服务启动，课程列表为空
		bootstrap.Logger.Warn("加载课程文档失败", "dir", bootstrap.Config.Docs.Path, "error", err)
	}

	orchestrator, err := bootstrap.NewOrchestrator(ctx)
	if err != nil {
		return nil, err
	}

	handler := http.NewHandler(orchestrator, bootstrap.Courses, orchestrator.Sessions())
	handler.SetLogger(bootstrap.Logger.Logger)
	if bootstrap.WebTool != nil {
		handler.SetWebTool(bootstrap.WebTool)
	}
	mw, err := middleware.NewMiddleware(bootstrap.Config.API)
	if err != nil {
		return nil, err
	}
	router := http.NewRouter(handler, mw)
	router.SetMetricsEnabled(bootstrap.Config.Monitoring.Prometheus.Enable)

	a := &App{
		config:       bootstrap,
		orchestrator: orchestrator,
		router:       router,
	}

	if bootstrap.Config.API.Grpc.Enable && bootstrap.Config.API.Grpc.Port > 0 {
		a.grpcServer, err = startGRPC(a, bootstrap.Config.API.Grpc.Port)
		if err != nil {
			return nil, fmt.Errorf("启动 gRPC 失败: %w", err)
		}
		bootstrap.Logger.Info("gRPC 服务已启动", "port", bootstrap.Config.API.Grpc.Port)
	}
	return a, nil
}

// Run 启动 HTTP 服务（阻塞）
func (a *App) Run(addr string) error {
	cfg := a.config.Config
	var output io.Writer = os.Stdout
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		output = f
	}
	levelVar := &slog.LevelVar{}
	levelVar.Set(log.ParseLevel(cfg.Log.Level))
	hertzLogger := hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	)
	hlog.SetLogger(hertzLogger)

	// 可选：启用链路追踪（OpenTelemetry）
	if cfg.Monitoring.Tracing.Enable {
		serviceName := cfg.Monitoring.Tracing.ServiceName
		if serviceName == "" {
			serviceName = "course-rag-api"
		}
		exportEndpoint := cfg.Monitoring.Tracing.ExportEndpoint
		if exportEndpoint == "" {
			exportEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		if exportEndpoint != "" {
			opts := []provider.Option{
				provider.WithServiceName(serviceName),
				provider.WithExportEndpoint(exportEndpoint),
			}
			if cfg.Monitoring.Tracing.Insecure {
				opts = append(opts, provider.WithInsecure())
			}
			a.otelProvider = provider.NewOpenTelemetryProvider(opts...)
			tracerOpt, tracerCfg := hertztracing.NewServerTracer()
			a.hertz = a.router.Build(addr, tracerOpt)
			a.hertz.Use(hertztracing.ServerMiddleware(tracerCfg))
			a.config.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
		}
	}
	if a.hertz == nil {
		a.hertz = a.router.Build(addr)
	}
	return a.hertz.Run()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	return a.config.Close()
}

// startGRPC 创建并启动 gRPC 服务（在 goroutine 中 Serve），返回 grpcRun 以便 Shutdown 时 GracefulStop
func startGRPC(a *App, port int) (*grpcRun, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	srv := grpc.NewServer()
	svc := apigrpc.NewServer(a.orchestrator, a.config.Courses, a.orchestrator.Sessions())
	svc.SetLogger(a.config.Logger.Logger)
	svc.Register(srv)
	go func() {
		_ = srv.Serve(lis)
	}()
	return &grpcRun{srv: srv, lis: lis}, nil
}
