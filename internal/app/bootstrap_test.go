package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"course-rag/internal/tool/builtin"
	"course-rag/pkg/config"
)

const courseDoc = `Course Title: Building Towards Computer Use with Anthropic
Course Link: https://www.deeplearning.ai/short-courses/building-toward-computer-use-with-anthropic/
Course Instructor: Colt Steele

Lesson 0: Introduction
Lesson Link: https://learn.deeplearning.ai/courses/building-toward-computer-use-with-anthropic/lesson/a6k0z/introduction
Welcome to Building Toward Computer Use with Anthropic.

Lesson 1: Anthropic API
Lesson Link: https://learn.deeplearning.ai/courses/building-toward-computer-use-with-anthropic/lesson/gi2e0/overview
In this lesson you make your first request to the API.
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "course1_script.txt"), []byte(courseDoc), 0644))
	cfg := &config.Config{}
	cfg.Docs.Path = dir
	cfg.Log.Level = "error"
	cfg.Storage.Cache.Type = "none"
	cfg.ApplyDefaults()
	return cfg
}

func TestBootstrap_LoadsDocumentsAndTools(t *testing.T) {
	ctx := context.Background()
	b, err := NewBootstrap(ctx, testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	require.NoError(t, b.LoadDocuments(ctx))
	courses, err := b.Courses.List(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "Building Towards Computer Use with Anthropic", courses[0].Title)

	defs := b.Tools.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, builtin.SearchToolName, defs[0].Name)
	assert.Equal(t, builtin.OutlineToolName, defs[1].Name)
	assert.Nil(t, b.WebTool)

	// 重复加载不会重复索引
	require.NoError(t, b.LoadDocuments(ctx))
	courses, err = b.Courses.List(ctx)
	require.NoError(t, err)
	assert.Len(t, courses, 1)
}

func TestBootstrap_WebToolRegisteredWhenEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tools.Web.Enable = true
	b, err := NewBootstrap(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	require.NotNil(t, b.WebTool)
	_, ok := b.Tools.Get(builtin.WebPageToolName)
	assert.True(t, ok)
}

func TestBootstrap_NewOrchestrator(t *testing.T) {
	cfg := testConfig(t)
	cfg.Model.Defaults.LLM = "anthropic.sonnet"
	cfg.Model.LLM.Providers = map[string]config.ProviderConfig{
		"anthropic": {
			APIKey: "secret://anthropic_api_key",
			Models: map[string]config.ModelInfo{"sonnet": {Name: "claude-sonnet-4-20250514"}},
		},
	}
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	b, err := NewBootstrap(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	o, err := b.NewOrchestrator(context.Background())
	require.NoError(t, err)
	assert.Same(t, b.Tools, o.Tools())
	assert.Same(t, b.Sessions, o.Sessions())
}

func TestBootstrap_NewOrchestratorMissingModel(t *testing.T) {
	b, err := NewBootstrap(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	_, err = b.NewOrchestrator(context.Background())
	assert.Error(t, err)
}

func TestEmbeddingConfig(t *testing.T) {
	ec, err := embeddingConfig(config.ModelConfig{})
	require.NoError(t, err)
	assert.Equal(t, "local", ec.Provider)

	mc := config.ModelConfig{}
	mc.Defaults.Embedding = "openai.small"
	mc.Embedding.Providers = map[string]config.ProviderConfig{
		"openai": {APIKey: "k", Models: map[string]config.ModelInfo{"small": {Name: "text-embedding-3-small", Dimension: 1536}}},
	}
	ec, err = embeddingConfig(mc)
	require.NoError(t, err)
	assert.Equal(t, "openai", ec.Provider)
	assert.Equal(t, "text-embedding-3-small", ec.Model)
	assert.Equal(t, 1536, ec.Dimension)

	mc.Defaults.Embedding = "missing.x"
	_, err = embeddingConfig(mc)
	assert.Error(t, err)
}
