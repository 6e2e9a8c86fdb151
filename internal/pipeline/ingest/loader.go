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

package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"course-rag/internal/pipeline/common"
)

// SupportedExtensions 可加载的课程文档扩展名
var SupportedExtensions = []string{".txt", ".md", ".pdf"}

// Supported 判断文件是否为可加载的课程文档
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// LoadFile 读取课程文档文本；PDF 走 unipdf 提取
func LoadFile(path string) (string, error) {
	if !Supported(path) {
		return "", fmt.Errorf("%w: unsupported file type %q", common.ErrLoadingFailed, filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrLoadingFailed, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return ExtractPDFText(data)
	}
	return string(data), nil
}

// titleFromPath 以文件名（去扩展名）作为缺省课程标题
func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
