package install

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/naveego/setup-bosun/internal/toolcache"
	"github.com/naveego/setup-bosun/pkg/models"
)

// ArtifactDownloader 用于获取远程发行包。
type ArtifactDownloader interface {
	Download(ctx context.Context, rel models.Release) (string, error)
}

// PathExporter 将目录追加到命令搜索路径的最前面。
type PathExporter interface {
	AddPath(dir string) error
}

// Installer 负责把发行包安装到工具缓存并导出路径。
type Installer struct {
	cache      toolcache.Cache
	downloader ArtifactDownloader
	paths      PathExporter
	tempDir    string
	log        *logrus.Entry
}

// InstallerOption 配置 Installer。
type InstallerOption func(*Installer)

// WithTempDir 指定解压使用的临时目录。
func WithTempDir(dir string) InstallerOption {
	return func(i *Installer) {
		if dir != "" {
			i.tempDir = dir
		}
	}
}

// WithLogger 指定日志输出。
func WithLogger(log *logrus.Entry) InstallerOption {
	return func(i *Installer) {
		if log != nil {
			i.log = log
		}
	}
}

// NewInstaller 创建 Installer。
func NewInstaller(cache toolcache.Cache, downloader ArtifactDownloader, paths PathExporter, opts ...InstallerOption) *Installer {
	i := &Installer{
		cache:      cache,
		downloader: downloader,
		paths:      paths,
		tempDir:    os.TempDir(),
		log:        logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Install 查询缓存，未命中时下载、解压并登记，最后导出路径。返回安装目录。
func (i *Installer) Install(ctx context.Context, rel models.Release) (string, error) {
	if i.cache == nil || i.downloader == nil || i.paths == nil {
		return "", errors.New("installer: missing dependencies")
	}
	if rel.Tag == "" {
		return "", errors.New("installer: release tag is required")
	}

	key := toolcache.Key{Tool: rel.Tool, Version: rel.Tag}
	log := i.log.WithFields(logrus.Fields{"tool": rel.Tool, "tag": rel.Tag})

	toolPath, found, err := i.cache.Find(key)
	if err != nil {
		return "", fmt.Errorf("installer: find cached version: %w", err)
	}

	if found {
		log.WithField("path", toolPath).Info("Using cached version")
	} else {
		log.WithField("url", rel.DownloadURL).Info("Downloading release")
		toolPath, err = i.downloadAndCache(ctx, key, rel)
		if err != nil {
			return "", err
		}
		log.WithField("path", toolPath).Info("Cached release")
	}

	if err := i.paths.AddPath(toolPath); err != nil {
		return "", fmt.Errorf("installer: add path: %w", err)
	}
	return toolPath, nil
}

func (i *Installer) downloadAndCache(ctx context.Context, key toolcache.Key, rel models.Release) (string, error) {
	archivePath, err := i.downloader.Download(ctx, rel)
	if err != nil {
		return "", err
	}
	defer os.Remove(archivePath)

	if err := os.MkdirAll(i.tempDir, 0o755); err != nil {
		return "", fmt.Errorf("installer: prepare temp dir: %w", err)
	}
	extractDir, err := os.MkdirTemp(i.tempDir, "extract-*")
	if err != nil {
		return "", fmt.Errorf("installer: create temp dir: %w", err)
	}
	defer os.RemoveAll(extractDir)

	if err := ExtractTarGz(archivePath, extractDir); err != nil {
		return "", err
	}

	toolPath, err := i.cache.Store(extractDir, key)
	if err != nil {
		return "", fmt.Errorf("installer: cache directory: %w", err)
	}
	return toolPath, nil
}
