package platform

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/naveego/setup-bosun/pkg/models"
)

const archiveExt = ".tar.gz"

// Detect 返回当前宿主机的平台描述。
func Detect() models.Platform {
	return models.Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// ArtifactArch 将宿主机架构映射为发行包命名中的架构段。
// 只识别 64 位 x86，其余一律视为 386。
func ArtifactArch(arch string) string {
	switch strings.ToLower(strings.TrimSpace(arch)) {
	case "x64", "amd64":
		return "amd64"
	default:
		return "386"
	}
}

// ArtifactOS 将宿主机系统名映射为发行包命名中的系统段。
func ArtifactOS(goos string) string {
	if goos == "win32" {
		return "windows"
	}
	return goos
}

// ArchiveName 返回指定版本的压缩包文件名。
func ArchiveName(tool, tag string, p models.Platform) string {
	return fmt.Sprintf("%s_%s_%s_%s%s", tool, tag, ArtifactOS(p.OS), ArtifactArch(p.Arch), archiveExt)
}

// FileName 返回追加在 latest 发行地址之后的相对下载路径。
func FileName(tool, tag string, p models.Platform) string {
	return "/download/" + ArchiveName(tool, tag, p)
}

// LatestURL 返回仓库 latest 发行页地址。
func LatestURL(repository string) string {
	return strings.TrimRight(repository, "/") + "/releases/latest"
}

// ResolveRelease 根据配置与发行标识构造完整的下载信息。
func ResolveRelease(cfg models.Config, tag string) (models.Release, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return models.Release{}, fmt.Errorf("platform: release tag is required")
	}
	if cfg.Tool == "" {
		return models.Release{}, fmt.Errorf("platform: tool name is required")
	}

	rel := models.Release{
		Tool:        cfg.Tool,
		Tag:         tag,
		OS:          ArtifactOS(cfg.Platform.OS),
		Arch:        ArtifactArch(cfg.Platform.Arch),
		ArchiveName: ArchiveName(cfg.Tool, tag, cfg.Platform),
		Checksum:    cfg.Checksum,
	}

	if cfg.Pinned() {
		base := strings.TrimRight(cfg.Repository, "/")
		rel.DownloadURL = fmt.Sprintf("%s/releases/download/%s/%s", base, tag, rel.ArchiveName)
	} else {
		rel.DownloadURL = LatestURL(cfg.Repository) + FileName(cfg.Tool, tag, cfg.Platform)
	}
	return rel, nil
}

// Checker 校验运行所需的目录是否可用。
type Checker struct {
	cfg   models.Config
	mkdir func(string, os.FileMode) error
}

// NewChecker 创建目录检测器。
func NewChecker(cfg models.Config) *Checker {
	return &Checker{cfg: cfg, mkdir: os.MkdirAll}
}

// Validate 确认平台信息完整且缓存与临时目录可以创建。
func (c *Checker) Validate() error {
	if c.cfg.Platform.OS == "" {
		return fmt.Errorf("platform: operating system is unknown")
	}
	if c.cfg.Platform.Arch == "" {
		return fmt.Errorf("platform: architecture is unknown")
	}
	for _, dir := range []string{c.cfg.CacheDir, c.cfg.TempDir} {
		if dir == "" {
			continue
		}
		if err := c.mkdir(dir, 0o755); err != nil {
			return fmt.Errorf("platform: cannot access directory %s: %w", dir, err)
		}
	}
	return nil
}
