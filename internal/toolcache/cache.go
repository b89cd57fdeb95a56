package toolcache

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-semver/semver"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/naveego/setup-bosun/pkg/models"
)

const (
	indexFileName  = "index.yaml"
	completeSuffix = ".complete"
)

// ErrNotCached 表示缓存中不存在指定条目。
var ErrNotCached = errors.New("toolcache: entry not cached")

// Key 标识一个缓存条目。
type Key struct {
	Tool    string
	Version string
}

// Cache 定义工具缓存的查询、登记与维护接口。
type Cache interface {
	Find(key Key) (string, bool, error)
	Store(sourceDir string, key Key) (string, error)
	List(tool string) ([]models.CacheEntry, error)
	Remove(key Key) error
}

// FileCache 以目录树形式保存工具：<root>/<tool>/<version>/<arch>。
type FileCache struct {
	root string
	arch string
	now  func() time.Time
	mu   sync.Mutex
}

// indexFile 表示 index.yaml 的结构。
type indexFile struct {
	Entries []models.CacheEntry `yaml:"entries"`
}

// NewFileCache 构造一个文件系统缓存实例，arch 为发行包架构段。
func NewFileCache(root, arch string) *FileCache {
	return &FileCache{
		root: root,
		arch: arch,
		now:  time.Now,
	}
}

// CleanVersion 返回缓存使用的版本目录名。语义化版本去掉前缀 v，其余原样保留。
func CleanVersion(tag string) string {
	tag = strings.TrimSpace(tag)
	if v, err := semver.NewVersion(strings.TrimPrefix(tag, "v")); err == nil {
		return v.String()
	}
	return tag
}

// Find 查找已完成登记的缓存目录。
func (c *FileCache) Find(key Key) (string, bool, error) {
	dir, err := c.entryDir(key)
	if err != nil {
		return "", false, err
	}

	if _, err := os.Stat(dir + completeSuffix); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, errors.Wrap(err, "toolcache: stat marker")
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", false, nil
	}
	return dir, true, nil
}

// Store 将 sourceDir 登记到缓存中并返回稳定路径。目录可能被移动或复制。
func (c *FileCache) Store(sourceDir string, key Key) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dir, err := c.entryDir(key)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(sourceDir)
	if err != nil {
		return "", errors.Wrap(err, "toolcache: stat source")
	}
	if !info.IsDir() {
		return "", errors.Errorf("toolcache: source %s is not a directory", sourceDir)
	}

	marker := dir + completeSuffix
	if err := os.Remove(marker); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", errors.Wrap(err, "toolcache: remove stale marker")
	}
	if err := os.RemoveAll(dir); err != nil {
		return "", errors.Wrap(err, "toolcache: cleanup previous entry")
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return "", errors.Wrap(err, "toolcache: prepare parent dir")
	}

	if err := os.Rename(sourceDir, dir); err != nil {
		if err := copyDir(sourceDir, dir); err != nil {
			os.RemoveAll(dir)
			return "", errors.Wrapf(err, "toolcache: copy %s", sourceDir)
		}
	}

	entry := models.CacheEntry{
		Tool:        key.Tool,
		Version:     CleanVersion(key.Version),
		Arch:        c.arch,
		Path:        dir,
		InstalledAt: c.now().UTC(),
	}
	if err := c.saveEntryLocked(entry); err != nil {
		return "", err
	}

	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		return "", errors.Wrap(err, "toolcache: write marker")
	}
	return dir, nil
}

// List 返回指定工具的所有缓存记录。
func (c *FileCache) List(tool string) ([]models.CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.readIndexLocked(tool)
	if errors.Is(err, os.ErrNotExist) {
		return []models.CacheEntry{}, nil
	}
	return entries, err
}

// Remove 删除缓存目录、完成标记与索引记录。
func (c *FileCache) Remove(key Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dir, err := c.entryDir(key)
	if err != nil {
		return err
	}

	entries, err := c.readIndexLocked(key.Tool)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	version := CleanVersion(key.Version)
	filtered := make([]models.CacheEntry, 0, len(entries))
	indexed := false
	for _, e := range entries {
		if e.Version == version && e.Arch == c.arch {
			indexed = true
			continue
		}
		filtered = append(filtered, e)
	}

	marker := dir + completeSuffix
	_, statErr := os.Stat(marker)
	if !indexed && errors.Is(statErr, os.ErrNotExist) {
		return errors.Wrapf(ErrNotCached, "%s %s", key.Tool, key.Version)
	}

	if err := os.Remove(marker); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "toolcache: remove marker")
	}
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrap(err, "toolcache: remove dir")
	}
	// 版本目录为空时一并移除，失败可忽略。
	_ = os.Remove(filepath.Dir(dir))

	if indexed {
		return c.writeIndexLocked(key.Tool, filtered)
	}
	return nil
}

func (c *FileCache) entryDir(key Key) (string, error) {
	if c.root == "" {
		return "", errors.New("toolcache: cache root is not configured")
	}
	if err := validSegment("tool", key.Tool); err != nil {
		return "", err
	}
	version := CleanVersion(key.Version)
	if err := validSegment("version", version); err != nil {
		return "", err
	}
	return filepath.Join(c.root, key.Tool, version, c.arch), nil
}

func validSegment(name, value string) error {
	if value == "" {
		return errors.Errorf("toolcache: %s is required", name)
	}
	if value == "." || value == ".." || strings.ContainsAny(value, `/\`) {
		return errors.Errorf("toolcache: invalid %s %q", name, value)
	}
	return nil
}

func (c *FileCache) indexPath(tool string) string {
	return filepath.Join(c.root, tool, indexFileName)
}

func (c *FileCache) saveEntryLocked(entry models.CacheEntry) error {
	entries, err := c.readIndexLocked(entry.Tool)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	updated := false
	for i := range entries {
		if entries[i].Version == entry.Version && entries[i].Arch == entry.Arch {
			entries[i] = entry
			updated = true
			break
		}
	}
	if !updated {
		entries = append(entries, entry)
	}
	return c.writeIndexLocked(entry.Tool, entries)
}

func (c *FileCache) readIndexLocked(tool string) ([]models.CacheEntry, error) {
	data, err := os.ReadFile(c.indexPath(tool))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []models.CacheEntry{}, os.ErrNotExist
		}
		return nil, errors.Wrap(err, "toolcache: read index")
	}
	if len(data) == 0 {
		return []models.CacheEntry{}, nil
	}

	var index indexFile
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, errors.Wrap(err, "toolcache: decode index")
	}
	if index.Entries == nil {
		index.Entries = []models.CacheEntry{}
	}
	return index.Entries, nil
}

func (c *FileCache) writeIndexLocked(tool string, entries []models.CacheEntry) error {
	path := c.indexPath(tool)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "toolcache: prepare index dir")
	}
	data, err := yaml.Marshal(indexFile{Entries: entries})
	if err != nil {
		return errors.Wrap(err, "toolcache: encode index")
	}
	return os.WriteFile(path, data, 0o644)
}
