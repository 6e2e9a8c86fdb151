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
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "test.yaml", `
api:
  port: 9000
  host: "127.0.0.1"
search:
  max_results: 3
  course_threshold: 0.5
  content_threshold: 0.6
session:
  max_history: 4
log:
  level: "debug"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port: got %d", cfg.API.Port)
	}
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host: got %q", cfg.API.Host)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level: got %q", cfg.Log.Level)
	}
	if cfg.Search.MaxResults != 3 || cfg.Search.CourseThreshold != 0.5 || cfg.Search.ContentThreshold != 0.6 {
		t.Errorf("Search: got %+v", cfg.Search)
	}
	if cfg.Session.MaxHistory != 4 {
		t.Errorf("Session.MaxHistory: got %d", cfg.Session.MaxHistory)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.yaml", "log:\n  level: info\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Search.MaxResults != 5 {
		t.Errorf("default MaxResults: got %d", cfg.Search.MaxResults)
	}
	if cfg.Session.MaxHistory != 2 {
		t.Errorf("default MaxHistory: got %d", cfg.Session.MaxHistory)
	}
	if cfg.Storage.Vector.CatalogCollection != "course_catalog" || cfg.Storage.Vector.ContentCollection != "course_content" {
		t.Errorf("default collections: got %+v", cfg.Storage.Vector)
	}
	if cfg.Query.MaxTokens != 800 {
		t.Errorf("default MaxTokens: got %d", cfg.Query.MaxTokens)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfig_ReplacesEnvAPIKey(t *testing.T) {
	t.Setenv("COURSE_RAG_TEST_KEY", "sk-test")
	dir := t.TempDir()
	path := writeFile(t, dir, "model.yaml", `
model:
  llm:
    providers:
      anthropic:
        api_key: "${COURSE_RAG_TEST_KEY}"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got := cfg.Model.LLM.Providers["anthropic"].APIKey; got != "sk-test" {
		t.Errorf("APIKey: got %q", got)
	}
}

func TestLoadAPIConfigWithModel_MergesModel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "api.yaml", "api:\n  port: 8123\n")
	writeFile(t, dir, "model.yaml", `
model:
  defaults:
    llm: "anthropic.sonnet"
`)
	cfg, err := LoadAPIConfigWithModel(dir)
	if err != nil {
		t.Fatalf("LoadAPIConfigWithModel: %v", err)
	}
	if cfg.API.Port != 8123 {
		t.Errorf("API.Port: got %d", cfg.API.Port)
	}
	if cfg.Model.Defaults.LLM != "anthropic.sonnet" {
		t.Errorf("Defaults.LLM: got %q", cfg.Model.Defaults.LLM)
	}
}

func TestLoadDotEnv_MissingFileIgnored(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
}

func TestLoadDotEnv_SetsVariables(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".env", "COURSE_RAG_DOTENV_VALUE=from-dotenv\n")
	t.Cleanup(func() { os.Unsetenv("COURSE_RAG_DOTENV_VALUE") })
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("COURSE_RAG_DOTENV_VALUE"); got != "from-dotenv" {
		t.Errorf("env: got %q", got)
	}
}
