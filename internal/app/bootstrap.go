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

package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/philippgille/chromem-go"

	"course-rag/internal/agent"
	"course-rag/internal/model/embedding"
	"course-rag/internal/model/llm"
	"course-rag/internal/pipeline/ingest"
	"course-rag/internal/pipeline/query"
	"course-rag/internal/runtime/session"
	"course-rag/internal/storage/cache"
	"course-rag/internal/storage/metadata"
	"course-rag/internal/storage/vector"
	"course-rag/internal/tool/builtin"
	"course-rag/internal/tool/registry"
	"course-rag/pkg/config"
	"course-rag/pkg/log"
	"course-rag/pkg/secrets"
)

const defaultEmbeddingCacheTTL = 24 * time.Hour

// Bootstrap 统一初始化：供 api 与 mcp 复用，避免在 cmd 内写业务与 pipeline
type Bootstrap struct {
	Config    *config.Config
	Logger    *log.Logger
	Secrets   secrets.Store
	Cache     cache.Store
	Courses   metadata.Store
	Index     vector.Index
	Embedder  *embedding.Embedder
	Retriever *query.Retriever
	Formatter *query.Formatter
	Indexer   *ingest.Indexer
	Tools     *registry.Registry
	WebTool   *builtin.WebPageTool
	Sessions  *session.Manager
}

// NewBootstrap 根据配置创建存储、检索与工具；不创建模型客户端
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config 不能为空")
	}
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	b := &Bootstrap{Config: cfg, Logger: logger}

	b.Secrets, err = secrets.NewStore(cfg.Secrets)
	if err != nil {
		return nil, fmt.Errorf("初始化密钥存储失败: %w", err)
	}
	b.Cache, err = cache.NewCache(cfg.Storage.Cache)
	if err != nil {
		return nil, fmt.Errorf("初始化缓存失败: %w", err)
	}
	b.Courses, err = metadata.NewStore(cfg.Storage.Metadata)
	if err != nil {
		return nil, fmt.Errorf("初始化元数据存储失败: %w", err)
	}

	b.Embedder, err = b.newEmbedder(ctx)
	if err != nil {
		return nil, fmt.Errorf("初始化 embedding 失败: %w", err)
	}
	b.Index, err = vector.NewIndex(cfg.Storage.Vector, b.Embedder.Func())
	if err != nil {
		return nil, fmt.Errorf("初始化向量存储失败: %w", err)
	}

	b.Retriever = query.NewRetriever(b.Index, query.Options{
		CatalogCollection: cfg.Storage.Vector.CatalogCollection,
		ContentCollection: cfg.Storage.Vector.ContentCollection,
		MaxResults:        cfg.Search.MaxResults,
		CourseThreshold:   cfg.Search.CourseThreshold,
		ContentThreshold:  cfg.Search.ContentThreshold,
	})
	b.Retriever.SetLogger(logger.Logger)
	b.Formatter = query.NewFormatter(b.Courses)

	b.Indexer = ingest.NewIndexer(b.Index, b.Courses, ingest.Options{
		CatalogCollection: cfg.Storage.Vector.CatalogCollection,
		ContentCollection: cfg.Storage.Vector.ContentCollection,
		ChunkSize:         cfg.Docs.ChunkSize,
		ChunkOverlap:      cfg.Docs.ChunkOverlap,
	})
	b.Indexer.SetLogger(logger.Logger)

	b.Tools = registry.New()
	b.Tools.SetLogger(logger.Logger)
	if cfg.Tools.Web.Enable {
		b.WebTool = builtin.NewWebPageTool(parseDuration(cfg.Tools.Web.Timeout, 0), cfg.Tools.Web.MaxChars)
	}
	if err := builtin.RegisterBuiltin(b.Tools, builtin.Deps{
		Retriever: b.Retriever,
		Formatter: b.Formatter,
		Courses:   b.Courses,
		Web:       b.WebTool,
	}); err != nil {
		return nil, fmt.Errorf("注册工具失败: %w", err)
	}

	b.Sessions = session.NewManager(session.NewMemoryStore(), cfg.Session.MaxHistory)
	return b, nil
}

// LoadDocuments 索引 docs.path 下的课程文档，已存在的课程跳过
func (b *Bootstrap) LoadDocuments(ctx context.Context) error {
	dir := b.Config.Docs.Path
	if dir == "" {
		return nil
	}
	courses, chunks, err := b.Indexer.AddCourseFolder(ctx, dir, false)
	if err != nil {
		return err
	}
	b.Logger.Info("课程文档加载完成", "dir", dir, "courses", courses, "chunks", chunks)
	return nil
}

// NewOrchestrator 创建模型客户端（带限流）并组装问答编排器
func (b *Bootstrap) NewOrchestrator(ctx context.Context) (*agent.Orchestrator, error) {
	cfg := b.Config
	cc, err := llm.ConfigFromModel(cfg.Model)
	if err != nil {
		return nil, err
	}
	cc.APIKey, err = secrets.Resolve(ctx, b.Secrets, cc.APIKey)
	if err != nil {
		return nil, fmt.Errorf("解析 LLM api_key 失败: %w", err)
	}
	timeout := parseDuration(cfg.Query.Timeout, 60*time.Second)
	cc.Timeout = timeout

	client, err := llm.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("创建 LLM 客户端失败: %w", err)
	}
	limited := llm.NewRateLimitedClient(client, llm.NewLLMRateLimiter(cfg.RateLimits.LLM, nil))

	return agent.New(limited, b.Tools, b.Sessions,
		agent.WithTimeout(timeout),
		agent.WithMaxTokens(cfg.Query.MaxTokens),
		agent.WithTemperature(cfg.Query.Temperature),
		agent.WithLogger(b.Logger.Logger),
	), nil
}

// Close 释放缓存、向量库与日志文件
func (b *Bootstrap) Close() error {
	var errs []string
	if b.Cache != nil {
		if err := b.Cache.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if b.Index != nil {
		if err := b.Index.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if b.Logger != nil {
		if err := b.Logger.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("关闭资源失败: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (b *Bootstrap) newEmbedder(ctx context.Context) (*embedding.Embedder, error) {
	ec, err := embeddingConfig(b.Config.Model)
	if err != nil {
		return nil, err
	}
	ec.APIKey, err = secrets.Resolve(ctx, b.Secrets, ec.APIKey)
	if err != nil {
		return nil, fmt.Errorf("解析 embedding api_key 失败: %w", err)
	}
	e, err := embedding.NewEmbedder(ec)
	if err != nil {
		return nil, err
	}
	if b.Cache == nil || e.Provider() == "local" {
		return e, nil
	}
	ttl := parseDuration(b.Config.Storage.Cache.TTL, defaultEmbeddingCacheTTL)
	ns := e.Provider() + ":" + e.Model()
	return e.WithCache(func(inner chromem.EmbeddingFunc) chromem.EmbeddingFunc {
		return embedding.Cached(inner, b.Cache, ns, ttl)
	}), nil
}

// embeddingConfig 从 model.defaults.embedding（provider.model_key）解析；未配置时使用本地 embedding
func embeddingConfig(mc config.ModelConfig) (embedding.Config, error) {
	key := mc.Defaults.Embedding
	if key == "" || key == "local" {
		return embedding.Config{Provider: "local"}, nil
	}
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return embedding.Config{}, fmt.Errorf("embedding default 格式应为 provider.model_key，当前: %q", key)
	}
	provider, modelKey := parts[0], parts[1]
	if provider == "local" {
		return embedding.Config{Provider: "local"}, nil
	}
	pc, ok := mc.Embedding.Providers[provider]
	if !ok {
		return embedding.Config{}, fmt.Errorf("embedding provider %q 未配置", provider)
	}
	mi := pc.Models[modelKey]
	name := mi.Name
	if name == "" {
		name = modelKey
	}
	return embedding.Config{
		Provider:  provider,
		Model:     name,
		APIKey:    pc.APIKey,
		BaseURL:   pc.BaseURL,
		Dimension: mi.Dimension,
	}, nil
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
