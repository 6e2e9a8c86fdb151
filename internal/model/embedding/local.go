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
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/philippgille/chromem-go"
)

// DefaultLocalDimension 本地哈希 embedding 的默认维度
const DefaultLocalDimension = 1024

// NewLocal 返回离线可用的词袋哈希 embedding：小写分词后按 FNV-1a 落桶计数并做 L2 归一化。
// 无法替代语义模型，用于开发环境与测试。
func NewLocal(dimension int) chromem.EmbeddingFunc {
	if dimension <= 0 {
		dimension = DefaultLocalDimension
	}
	return func(ctx context.Context, text string) ([]float32, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec := make([]float32, dimension)
		tokens := Tokenize(text)
		if len(tokens) == 0 {
			vec[0] = 1
			return vec, nil
		}
		for _, tok := range tokens {
			h := fnv.New32a()
			_, _ = h.Write([]byte(tok))
			vec[int(h.Sum32()%uint32(dimension))]++
		}
		normalize(vec)
		return vec, nil
	}
}

// Tokenize 按非字母数字字符切分并转小写
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	n := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= n
	}
}
