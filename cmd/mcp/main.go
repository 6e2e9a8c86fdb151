package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"course-rag/internal/api/mcp"
	"course-rag/internal/app"
	"course-rag/pkg/config"
	"course-rag/pkg/tracing"
)

var version = "dev"

// MCP 通过 stdio 通信，日志必须写到文件或 stderr，不能写 stdout
func main() {
	configDir := flag.String("config", "configs", "配置目录（包含 api.yaml 与 model.yaml）")
	flag.Parse()
	log.SetOutput(os.Stderr)

	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("加载 .env 失败: %v", err)
	}
	cfg, err := config.LoadAPIConfigWithModel(*configDir)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Log.File == "" {
		cfg.Log.File = os.DevNull
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Monitoring.Tracing.Enable && cfg.Monitoring.Tracing.ExportEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, tracing.OTelConfig{
			ServiceName:    "course-rag-mcp",
			ExportEndpoint: cfg.Monitoring.Tracing.ExportEndpoint,
			Insecure:       cfg.Monitoring.Tracing.Insecure,
		})
		if err != nil {
			log.Fatalf("初始化链路追踪失败: %v", err)
		}
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	bootstrap, err := app.NewBootstrap(ctx, cfg)
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}
	defer func() { _ = bootstrap.Close() }()
	if err := bootstrap.LoadDocuments(ctx); err != nil {
		log.Printf("加载课程文档失败: %v", err)
	}

	srv, err := mcp.NewServer(bootstrap.Tools, version)
	if err != nil {
		log.Fatalf("创建 MCP 服务失败: %v", err)
	}
	srv.SetLogger(bootstrap.Logger.Logger)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("MCP 服务异常退出: %v", err)
	}
}
