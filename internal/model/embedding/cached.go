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

package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/philippgille/chromem-go"

	"course-rag/internal/storage/cache"
)

// Cached 用缓存包装 embedding 函数，key 为 namespace + 文本 SHA-256。
// 缓存读写失败只记日志，不影响向量化结果。
func Cached(inner chromem.EmbeddingFunc, store cache.Store, namespace string, ttl time.Duration) chromem.EmbeddingFunc {
	if store == nil {
		return inner
	}
	return func(ctx context.Context, text string) ([]float32, error) {
		sum := sha256.Sum256([]byte(text))
		key := "emb:" + namespace + ":" + hex.EncodeToString(sum[:])

		var vec []float32
		err := store.Get(ctx, key, &vec)
		if err == nil && len(vec) > 0 {
			return vec, nil
		}
		if err != nil && !errors.Is(err, cache.ErrMiss) {
			slog.Warn("embedding 缓存读取失败", "error", err)
		}

		vec, err = inner(ctx, text)
		if err != nil {
			return nil, err
		}
		if err := store.Set(ctx, key, vec, ttl); err != nil {
			slog.Warn("embedding 缓存写入失败", "error", err)
		}
		return vec, nil
	}
}
