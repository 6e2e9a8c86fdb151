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

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Model      ModelConfig      `mapstructure:"model"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Search     SearchConfig     `mapstructure:"search"`
	Session    SessionConfig    `mapstructure:"session"`
	Query      QueryConfig      `mapstructure:"query"`
	Docs       DocsConfig       `mapstructure:"docs"`
	Tools      ToolsConfig      `mapstructure:"tools"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port       int              `mapstructure:"port"`
	Host       string           `mapstructure:"host"`
	Timeout    string           `mapstructure:"timeout"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
	Grpc       GrpcConfig       `mapstructure:"grpc"`
}

// GrpcConfig gRPC 服务配置
type GrpcConfig struct {
	Enable bool `mapstructure:"enable"`
	Port   int  `mapstructure:"port"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	Auth          bool     `mapstructure:"auth"`
	RateLimit     bool     `mapstructure:"rate_limit"`
	RateLimitRPS  int      `mapstructure:"rate_limit_rps"`
	JWTKey        string   `mapstructure:"jwt_key"`
	JWTTimeout    string   `mapstructure:"jwt_timeout"`     // 如 "1h"
	JWTMaxRefresh string   `mapstructure:"jwt_max_refresh"` // 如 "1h"
	APIKeys       []string `mapstructure:"api_keys"`        // 可换取 JWT 的客户端 key
}

// ModelConfig 模型配置
type ModelConfig struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
}

// LLMConfig LLM 模型配置
type LLMConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// EmbeddingConfig Embedding 模型配置
type EmbeddingConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig 模型提供商配置
type ProviderConfig struct {
	APIKey  string               `mapstructure:"api_key"`
	BaseURL string               `mapstructure:"base_url"`
	Models  map[string]ModelInfo `mapstructure:"models"`
}

// ModelInfo 模型信息
type ModelInfo struct {
	Name          string  `mapstructure:"name"`
	ContextWindow int     `mapstructure:"context_window"`
	Temperature   float64 `mapstructure:"temperature"`
	Dimension     int     `mapstructure:"dimension"`
	MaxTokens     int     `mapstructure:"max_tokens"`
}

// DefaultsConfig 默认模型配置，格式为 "provider.model_key"
type DefaultsConfig struct {
	LLM       string `mapstructure:"llm"`
	Embedding string `mapstructure:"embedding"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Metadata MetadataConfig `mapstructure:"metadata"`
	Vector   VectorConfig   `mapstructure:"vector"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

// MetadataConfig 课程元数据存储配置
type MetadataConfig struct {
	Type string `mapstructure:"type"`
}

// VectorConfig 向量存储配置（memory 为纯内存；persistent 落盘到 Path）
type VectorConfig struct {
	Type              string `mapstructure:"type"`
	Path              string `mapstructure:"path"`
	Compress          bool   `mapstructure:"compress"`
	CatalogCollection string `mapstructure:"catalog_collection"`
	ContentCollection string `mapstructure:"content_collection"`
}

// CacheConfig 缓存配置（用于 embedding 结果）
type CacheConfig struct {
	Type     string `mapstructure:"type"` // none | memory | redis
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
	TTL      string `mapstructure:"ttl"`
}

// SearchConfig 检索配置；两个阈值均为余弦距离，越小越相似
type SearchConfig struct {
	MaxResults       int     `mapstructure:"max_results"`
	CourseThreshold  float64 `mapstructure:"course_threshold"`
	ContentThreshold float64 `mapstructure:"content_threshold"`
}

// SessionConfig 会话配置
type SessionConfig struct {
	MaxHistory int `mapstructure:"max_history"`
}

// QueryConfig 单轮问答配置
type QueryConfig struct {
	Timeout     string  `mapstructure:"timeout"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// DocsConfig 课程文档加载配置
type DocsConfig struct {
	Path         string `mapstructure:"path"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
}

// ToolsConfig 可选工具开关
type ToolsConfig struct {
	Web WebToolConfig `mapstructure:"web"`
}

// WebToolConfig 网页抓取工具配置
type WebToolConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Timeout  string `mapstructure:"timeout"`
	MaxChars int    `mapstructure:"max_chars"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// RateLimitsConfig 限流配置
type RateLimitsConfig struct {
	LLM map[string]LLMRateLimitConfig `mapstructure:"llm"`
}

// LLMRateLimitConfig 单个 LLM Provider 的限流配置
type LLMRateLimitConfig struct {
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// SecretsConfig API Key 等密钥来源
type SecretsConfig struct {
	Type  string      `mapstructure:"type"` // env | memory | vault
	Vault VaultConfig `mapstructure:"vault"`
}

// VaultConfig Vault 连接配置
type VaultConfig struct {
	Addr       string `mapstructure:"addr"`
	Token      string `mapstructure:"token"`
	PathPrefix string `mapstructure:"path_prefix"`
}

// LoadDotEnv 加载 .env 文件（不存在时忽略），已存在的环境变量不会被覆盖
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("加载 %s 失败: %w", p, err)
		}
	}
	return nil
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	config.ApplyDefaults()
	return &config, nil
}

// ApplyDefaults 为未配置的字段填充默认值
func (c *Config) ApplyDefaults() {
	if c.API.Port == 0 {
		c.API.Port = 8000
	}
	if c.API.Host == "" {
		c.API.Host = "0.0.0.0"
	}
	if c.Storage.Vector.Type == "" {
		c.Storage.Vector.Type = "memory"
	}
	if c.Storage.Vector.CatalogCollection == "" {
		c.Storage.Vector.CatalogCollection = "course_catalog"
	}
	if c.Storage.Vector.ContentCollection == "" {
		c.Storage.Vector.ContentCollection = "course_content"
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = 5
	}
	if c.Search.CourseThreshold <= 0 {
		c.Search.CourseThreshold = 0.7
	}
	if c.Search.ContentThreshold <= 0 {
		c.Search.ContentThreshold = 0.8
	}
	if c.Session.MaxHistory <= 0 {
		c.Session.MaxHistory = 2
	}
	if c.Query.Timeout == "" {
		c.Query.Timeout = "60s"
	}
	if c.Query.MaxTokens <= 0 {
		c.Query.MaxTokens = 800
	}
	if c.Docs.Path == "" {
		c.Docs.Path = "docs"
	}
	if c.Docs.ChunkSize <= 0 {
		c.Docs.ChunkSize = 800
	}
	if c.Docs.ChunkOverlap < 0 || c.Docs.ChunkOverlap >= c.Docs.ChunkSize {
		c.Docs.ChunkOverlap = 100
	}
	if c.Tools.Web.MaxChars <= 0 {
		c.Tools.Web.MaxChars = 4000
	}
	if c.Secrets.Type == "" {
		c.Secrets.Type = "env"
	}
}

// replaceEnvVars 替换配置中形如 ${VAR} 的 API Key
func replaceEnvVars(config *Config) {
	expand := func(providers map[string]ProviderConfig) {
		for name, p := range providers {
			if v, ok := lookupEnvRef(p.APIKey); ok {
				p.APIKey = v
				providers[name] = p
			}
		}
	}
	expand(config.Model.LLM.Providers)
	expand(config.Model.Embedding.Providers)

	if v, ok := lookupEnvRef(config.API.Middleware.JWTKey); ok {
		config.API.Middleware.JWTKey = v
	}
	if v, ok := lookupEnvRef(config.Storage.Cache.Password); ok {
		config.Storage.Cache.Password = v
	}
	if v, ok := lookupEnvRef(config.Secrets.Vault.Token); ok {
		config.Secrets.Vault.Token = v
	}
}

func lookupEnvRef(value string) (string, bool) {
	if !strings.HasPrefix(value, "${") || !strings.HasSuffix(value, "}") {
		return "", false
	}
	val := os.Getenv(strings.TrimSuffix(strings.TrimPrefix(value, "${"), "}"))
	if val == "" {
		return "", false
	}
	return val, true
}

// LoadAPIConfig 加载 API 配置（仅 configs/api.yaml）
func LoadAPIConfig() (*Config, error) {
	return LoadConfig("configs/api.yaml")
}

// LoadAPIConfigWithModel 加载 dir 下的 api.yaml 并合并 model.yaml 的模型配置
func LoadAPIConfigWithModel(dir string) (*Config, error) {
	if dir == "" {
		dir = "configs"
	}
	cfg, err := LoadConfig(filepath.Join(dir, "api.yaml"))
	if err != nil {
		return nil, err
	}
	modelPath := filepath.Join(dir, "model.yaml")
	if _, statErr := os.Stat(modelPath); statErr == nil {
		modelCfg, err := LoadConfig(modelPath)
		if err != nil {
			return nil, err
		}
		cfg.Model = modelCfg.Model
	}
	return cfg, nil
}
