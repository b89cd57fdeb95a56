package install

import (
	"errors"
	"fmt"
	"strings"

	"github.com/naveego/setup-bosun/internal/toolcache"
)

// Remover 删除工具缓存中的指定版本。
type Remover struct {
	cache toolcache.Cache
	tool  string
}

// NewRemover 创建删除器。
func NewRemover(cache toolcache.Cache, tool string) *Remover {
	return &Remover{cache: cache, tool: tool}
}

// Remove 删除指定版本的缓存条目。
func (r *Remover) Remove(tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return errors.New("remover: version is required")
	}
	if r.cache == nil {
		return errors.New("remover: cache is required")
	}
	if err := r.cache.Remove(toolcache.Key{Tool: r.tool, Version: tag}); err != nil {
		return fmt.Errorf("remover: %w", err)
	}
	return nil
}
