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

package vector

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/philippgille/chromem-go"
)

// ChromemIndex 基于 chromem-go 的进程内向量索引，余弦距离 = 1 - 相似度
type ChromemIndex struct {
	db    *chromem.DB
	embed chromem.EmbeddingFunc
}

// NewMemoryIndex 创建纯内存索引
func NewMemoryIndex(embed chromem.EmbeddingFunc) *ChromemIndex {
	return &ChromemIndex{db: chromem.NewDB(), embed: embed}
}

// NewPersistentIndex 创建落盘索引，path 为空时使用 ./data/vector
func NewPersistentIndex(path string, compress bool, embed chromem.EmbeddingFunc) (*ChromemIndex, error) {
	if path == "" {
		path = "./data/vector"
	}
	db, err := chromem.NewPersistentDB(path, compress)
	if err != nil {
		return nil, fmt.Errorf("打开向量库 %s 失败: %w", path, err)
	}
	return &ChromemIndex{db: db, embed: embed}, nil
}

func (x *ChromemIndex) getCollection(name string) *chromem.Collection {
	return x.db.GetCollection(name, x.embed)
}

// Upsert 写入文档，集合不存在时创建
func (x *ChromemIndex) Upsert(ctx context.Context, collection string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	col, err := x.db.GetOrCreateCollection(collection, nil, x.embed)
	if err != nil {
		return fmt.Errorf("获取集合 %s 失败: %w", collection, err)
	}
	cdocs := make([]chromem.Document, len(docs))
	for i, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("文档 ID 不能为空（第 %d 条）", i)
		}
		cdocs[i] = chromem.Document{ID: d.ID, Content: d.Content, Metadata: d.Metadata}
	}
	if err := col.AddDocuments(ctx, cdocs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("写入集合 %s 失败: %w", collection, err)
	}
	return nil
}

// Query 近邻检索
func (x *ChromemIndex) Query(ctx context.Context, collection, text string, where map[string]string, n int) (*QueryResult, error) {
	out := &QueryResult{}
	if n <= 0 {
		return out, nil
	}
	col := x.getCollection(collection)
	if col == nil {
		return out, nil
	}
	count := col.Count()
	if count == 0 {
		return out, nil
	}
	if n > count {
		n = count
	}
	if len(where) == 0 {
		where = nil
	}
	results, err := col.Query(ctx, text, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("检索集合 %s 失败: %w", collection, err)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })

	out.IDs = make([]string, len(results))
	out.Documents = make([]string, len(results))
	out.Metadatas = make([]map[string]string, len(results))
	out.Distances = make([]float64, len(results))
	for i, r := range results {
		out.IDs[i] = r.ID
		out.Documents[i] = r.Content
		out.Metadatas[i] = r.Metadata
		out.Distances[i] = 1 - float64(r.Similarity)
	}
	return out, nil
}

// Count 返回集合文档数
func (x *ChromemIndex) Count(ctx context.Context, collection string) (int, error) {
	col := x.getCollection(collection)
	if col == nil {
		return 0, nil
	}
	return col.Count(), nil
}

// DeleteWhere 删除满足 where 的文档
func (x *ChromemIndex) DeleteWhere(ctx context.Context, collection string, where map[string]string) error {
	if len(where) == 0 {
		return fmt.Errorf("删除条件不能为空")
	}
	col := x.getCollection(collection)
	if col == nil {
		return nil
	}
	return col.Delete(ctx, where, nil)
}

// DeleteCollection 删除集合
func (x *ChromemIndex) DeleteCollection(ctx context.Context, collection string) error {
	return x.db.DeleteCollection(collection)
}

// ListCollections 列出集合名称（有序）
func (x *ChromemIndex) ListCollections(ctx context.Context) ([]string, error) {
	cols := x.db.ListCollections()
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Close chromem 无需显式关闭
func (x *ChromemIndex) Close() error {
	return nil
}
