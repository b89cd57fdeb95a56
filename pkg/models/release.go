package models

import "time"

// Platform 描述宿主机上报的操作系统与架构名称。
type Platform struct {
	OS   string // 例如 linux、darwin、windows 或 win32
	Arch string // 例如 amd64、x64、386
}

// Release 描述一个已解析完成、可直接下载的发行包。
type Release struct {
	Tool        string // 工具名称，例如 bosun
	Tag         string // 发行标识，例如 v1.2.3
	OS          string // 发行包命名使用的操作系统段
	Arch        string // 发行包命名使用的架构段
	ArchiveName string // 压缩包文件名
	DownloadURL string // 完整下载地址
	Checksum    string // 可选的 SHA256 校验值
}

// CacheEntry 描述工具缓存中已登记的一个安装目录。
type CacheEntry struct {
	Tool        string    `yaml:"tool"`
	Version     string    `yaml:"version"`
	Arch        string    `yaml:"arch"`
	Path        string    `yaml:"path"`
	InstalledAt time.Time `yaml:"installed_at"`
}
