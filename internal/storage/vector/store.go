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
	"fmt"

	"github.com/philippgille/chromem-go"

	"course-rag/pkg/config"
)

// NewIndex 根据配置创建向量索引（memory | persistent）
func NewIndex(cfg config.VectorConfig, embed chromem.EmbeddingFunc) (Index, error) {
	if embed == nil {
		return nil, fmt.Errorf("embedding 函数不能为空")
	}
	switch cfg.Type {
	case "", "memory":
		return NewMemoryIndex(embed), nil
	case "persistent":
		idx, err := NewPersistentIndex(cfg.Path, cfg.Compress, embed)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("不支持的向量存储类型: %s", cfg.Type)
	}
}
