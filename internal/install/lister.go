package install

import (
	"fmt"
	"sort"
	"strings"

	"github.com/coreos/go-semver/semver"

	"github.com/naveego/setup-bosun/internal/toolcache"
	"github.com/naveego/setup-bosun/pkg/models"
)

// Lister 列出工具缓存中的已安装版本。
type Lister struct {
	cache toolcache.Cache
	tool  string
}

// NewLister 创建缓存列表服务。
func NewLister(cache toolcache.Cache, tool string) *Lister {
	return &Lister{cache: cache, tool: tool}
}

// List 返回缓存条目，新版本在前。
func (l *Lister) List() ([]models.CacheEntry, error) {
	if l.cache == nil {
		return nil, fmt.Errorf("lister: cache is required")
	}
	entries, err := l.cache.List(l.tool)
	if err != nil {
		return nil, fmt.Errorf("lister: load entries: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		cmp := compareVersions(entries[i].Version, entries[j].Version)
		if cmp == 0 {
			return entries[i].Arch < entries[j].Arch
		}
		return cmp > 0
	})
	return entries, nil
}

// FormatEntry 格式化缓存条目输出。
func FormatEntry(e models.CacheEntry) string {
	pathInfo := e.Path
	if pathInfo == "" {
		pathInfo = "(unknown path)"
	}
	return fmt.Sprintf("%s %s (%s) - %s", e.Tool, e.Version, e.Arch, pathInfo)
}

// compareVersions 比较两个版本号，语义化版本优先，其余按字典序。
func compareVersions(a, b string) int {
	va, errA := semver.NewVersion(strings.TrimPrefix(a, "v"))
	vb, errB := semver.NewVersion(strings.TrimPrefix(b, "v"))
	switch {
	case errA == nil && errB == nil:
		return va.Compare(*vb)
	case errA == nil:
		return 1
	case errB == nil:
		return -1
	default:
		return strings.Compare(a, b)
	}
}
