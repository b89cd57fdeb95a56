package models

import "time"

// LatestVersion 表示未固定版本，需要通过 latest 重定向解析。
const LatestVersion = "latest"

// Config 保存一次运行的全部配置，构造后不再修改。
type Config struct {
	Tool           string        // 工具名称，默认 bosun
	Repository     string        // 发行仓库地址
	Version        string        // 固定版本标签，latest 表示自动解析
	Checksum       string        // 可选 SHA256
	CacheDir       string        // 工具缓存根目录
	TempDir        string        // 下载与解压临时目录
	ConfigVariable string        // 导出的配置变量名，默认 BOSUN_CONFIG
	ConfigFile     string        // 导出的配置文件路径
	ListFiles      bool          // 安装后是否列出目录内容
	Timeout        time.Duration // HTTP 超时
	Platform       Platform      // 目标平台
}

// Pinned 判断是否指定了具体版本。
func (c Config) Pinned() bool {
	return c.Version != "" && c.Version != LatestVersion
}
