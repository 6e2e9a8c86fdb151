package metadata

import (
	"fmt"

	"course-rag/pkg/config"
)

// NewStore 按 storage.metadata.type 创建课程目录存储；课程目录随文档在启动时重建，只提供内存实现
func NewStore(cfg config.MetadataConfig) (Store, error) {
	if cfg.Type != "" && cfg.Type != "memory" {
		return nil, fmt.Errorf("课程元数据存储类型 %q 不受支持，可选: memory", cfg.Type)
	}
	return NewMemoryStore(), nil
}
