package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/naveego/setup-bosun/internal/platform"
	"github.com/naveego/setup-bosun/pkg/models"
)

// 默认配置值。
const (
	DefaultTool           = "bosun"
	DefaultRepository     = "https://github.com/naveego/bosun"
	DefaultConfigVariable = "BOSUN_CONFIG"
	DefaultTimeout        = 5 * time.Minute
)

// 配置键，同时也是 YAML 配置文件中的字段名。
const (
	KeyTool           = "tool"
	KeyRepository     = "repository"
	KeyVersion        = "version"
	KeyChecksum       = "sha256"
	KeyCacheDir       = "cache_dir"
	KeyTempDir        = "temp_dir"
	KeyConfigVariable = "config_variable"
	KeyConfigFile     = "config_file"
	KeyListFiles      = "list_files"
	KeyTimeout        = "timeout"
	KeyOS             = "os"
	KeyArch           = "arch"
)

// 命令行参数名。
const (
	FlagRepository  = "repository"
	FlagVersionTag  = "version-tag"
	FlagSHA256      = "sha256"
	FlagCacheDir    = "cache-dir"
	FlagTempDir     = "temp-dir"
	FlagBosunConfig = "bosun-config"
	FlagListFiles   = "list-files"
	FlagTimeout     = "timeout"
	FlagOS          = "os"
	FlagArch        = "arch"
)

var flagKeys = map[string]string{
	FlagRepository:  KeyRepository,
	FlagVersionTag:  KeyVersion,
	FlagSHA256:      KeyChecksum,
	FlagCacheDir:    KeyCacheDir,
	FlagTempDir:     KeyTempDir,
	FlagBosunConfig: KeyConfigFile,
	FlagListFiles:   KeyListFiles,
	FlagTimeout:     KeyTimeout,
	FlagOS:          KeyOS,
	FlagArch:        KeyArch,
}

// envKeys 列出每个键读取的环境变量，靠前的优先，空值视为未设置。
var envKeys = map[string][]string{
	KeyRepository: {"INPUT_REPOSITORY"},
	KeyVersion:    {"INPUT_VERSION"},
	KeyChecksum:   {"INPUT_SHA256"},
	KeyCacheDir:   {"RUNNER_TOOL_CACHE"},
	KeyTempDir:    {"RUNNER_TEMPDIRECTORY", "RUNNER_TEMP"},
	KeyConfigFile: {"INPUT_CONFIG_FILE"},
	KeyListFiles:  {"INPUT_LIST_FILES"},
}

// RegisterFlags 在 fs 上注册可覆盖配置的命令行参数。
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(FlagRepository, DefaultRepository, "Repository hosting the releases.")
	fs.String(FlagVersionTag, models.LatestVersion, "Release tag to install instead of the latest one.")
	fs.String(FlagSHA256, "", "Expected SHA256 of the release archive.")
	fs.String(FlagCacheDir, "", "Tool cache directory (default $RUNNER_TOOL_CACHE).")
	fs.String(FlagTempDir, "", "Temporary directory (default $RUNNER_TEMPDIRECTORY).")
	fs.String(FlagBosunConfig, "", "Path exported as BOSUN_CONFIG.")
	fs.Bool(FlagListFiles, false, "Log every file of the installed directory.")
	fs.String(FlagTimeout, DefaultTimeout.String(), "HTTP timeout.")
	fs.String(FlagOS, "", "Override the host operating system.")
	fs.String(FlagArch, "", "Override the host architecture.")
}

// Loader 从默认值、配置文件、环境变量与命令行参数构造配置。
type Loader struct {
	getwd    func() (string, error)
	platform models.Platform
}

// NewLoader 创建针对当前宿主机的 Loader。
func NewLoader() *Loader {
	return &Loader{
		getwd:    os.Getwd,
		platform: platform.Detect(),
	}
}

// Load 按 默认值 < 配置文件 < 环境变量 < 命令行参数 的顺序合并配置。
// path 为空时不读取文件；flags 中只有显式设置过的参数生效。
func (l *Loader) Load(path string, flags *pflag.FlagSet) (models.Config, error) {
	v := viper.New()
	if err := l.setDefaults(v); err != nil {
		return models.Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return models.Config{}, errors.Wrapf(err, "config: read %s", path)
		}
	}

	for key, names := range envKeys {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return models.Config{}, errors.Wrapf(err, "config: bind env for %s", key)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return models.Config{}, errors.Wrapf(err, "config: bind flag %s", name)
			}
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return models.Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return models.Config{}, err
	}
	return cfg, nil
}

// Validate 校验合并后的配置。
func Validate(cfg models.Config) error {
	if cfg.Tool == "" || strings.ContainsAny(cfg.Tool, `/\ `) {
		return errors.Errorf("config: invalid tool name %q", cfg.Tool)
	}
	u, err := url.Parse(cfg.Repository)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Errorf("config: repository must be an absolute URL, got %q", cfg.Repository)
	}
	if cfg.Timeout <= 0 {
		return errors.Errorf("config: timeout must be positive, got %s", cfg.Timeout)
	}
	if cfg.CacheDir == "" {
		return errors.New("config: cache directory is required")
	}
	if cfg.TempDir == "" {
		return errors.New("config: temp directory is required")
	}
	if cfg.ConfigVariable == "" {
		return errors.New("config: config variable name is required")
	}
	return nil
}

func (l *Loader) setDefaults(v *viper.Viper) error {
	actionDir := os.Getenv("GITHUB_ACTION_PATH")
	if actionDir == "" {
		wd, err := l.getwd()
		if err != nil {
			return errors.Wrap(err, "config: working directory")
		}
		actionDir = wd
	}

	base := l.baseLocation()
	v.SetDefault(KeyTool, DefaultTool)
	v.SetDefault(KeyRepository, DefaultRepository)
	v.SetDefault(KeyVersion, models.LatestVersion)
	v.SetDefault(KeyChecksum, "")
	v.SetDefault(KeyCacheDir, filepath.Join(base, "actions", "cache"))
	v.SetDefault(KeyTempDir, filepath.Join(base, "actions", "temp"))
	v.SetDefault(KeyConfigVariable, DefaultConfigVariable)
	v.SetDefault(KeyConfigFile, filepath.Join(actionDir, "bosun", "bosun.yaml"))
	v.SetDefault(KeyListFiles, "false")
	v.SetDefault(KeyTimeout, DefaultTimeout.String())
	v.SetDefault(KeyOS, l.platform.OS)
	v.SetDefault(KeyArch, l.platform.Arch)
	return nil
}

// baseLocation 返回运行器未提供目录时使用的基础路径。
func (l *Loader) baseLocation() string {
	switch l.platform.OS {
	case "windows":
		if profile := os.Getenv("USERPROFILE"); profile != "" {
			return profile
		}
		return `C:\`
	case "darwin":
		return "/Users"
	default:
		return "/home"
	}
}

func decode(v *viper.Viper) (models.Config, error) {
	str := func(key string) string { return strings.TrimSpace(v.GetString(key)) }

	cfg := models.Config{
		Tool:           str(KeyTool),
		Repository:     str(KeyRepository),
		Version:        str(KeyVersion),
		Checksum:       str(KeyChecksum),
		CacheDir:       str(KeyCacheDir),
		TempDir:        str(KeyTempDir),
		ConfigVariable: str(KeyConfigVariable),
		ConfigFile:     str(KeyConfigFile),
		Platform:       models.Platform{OS: str(KeyOS), Arch: str(KeyArch)},
	}

	if cfg.Version == "" {
		cfg.Version = models.LatestVersion
	}

	listFiles, err := strconv.ParseBool(str(KeyListFiles))
	if err != nil {
		return models.Config{}, errors.Wrapf(err, "config: invalid list_files %q", str(KeyListFiles))
	}
	cfg.ListFiles = listFiles

	timeout, err := time.ParseDuration(str(KeyTimeout))
	if err != nil {
		return models.Config{}, errors.Wrapf(err, "config: invalid timeout %q", str(KeyTimeout))
	}
	cfg.Timeout = timeout
	return cfg, nil
}
