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
)

// Index 文本向量索引接口：按集合存放文档，查询时由实现负责 embedding
type Index interface {
	// Upsert 写入或覆盖文档（按 ID）
	Upsert(ctx context.Context, collection string, docs []Document) error
	// Query 对 text 做近邻检索；where 为元数据等值过滤（多个键取 AND），n 为结果上限。
	// 集合不存在或为空时返回空结果；n 超过集合大小时按集合大小截断。
	Query(ctx context.Context, collection, text string, where map[string]string, n int) (*QueryResult, error)
	// Count 返回集合中文档数，集合不存在时为 0
	Count(ctx context.Context, collection string) (int, error)
	// DeleteWhere 删除满足 where 的文档
	DeleteWhere(ctx context.Context, collection string, where map[string]string) error
	// DeleteCollection 删除整个集合
	DeleteCollection(ctx context.Context, collection string) error
	// ListCollections 列出集合名称
	ListCollections(ctx context.Context) ([]string, error)
	// Close 释放资源
	Close() error
}

// Document 待索引的文档
type Document struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// QueryResult 检索结果，四个切片等长且按 Distances 升序
type QueryResult struct {
	IDs       []string
	Documents []string
	Metadatas []map[string]string
	Distances []float64
}

// Len 返回结果条数
func (r *QueryResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Documents)
}

// Empty 是否无结果
func (r *QueryResult) Empty() bool {
	return r.Len() == 0
}
