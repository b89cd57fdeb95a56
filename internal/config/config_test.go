package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kylelemons/godebug/pretty"
	"github.com/spf13/pflag"

	"github.com/naveego/setup-bosun/pkg/models"
)

var runnerEnv = []string{
	"GITHUB_ACTION_PATH",
	"USERPROFILE",
	"INPUT_REPOSITORY",
	"INPUT_VERSION",
	"INPUT_SHA256",
	"INPUT_CONFIG_FILE",
	"INPUT_LIST_FILES",
	"RUNNER_TOOL_CACHE",
	"RUNNER_TEMPDIRECTORY",
	"RUNNER_TEMP",
}

// newTestLoader 清空运行器相关变量后写入 env，返回固定工作目录与平台的 Loader。
func newTestLoader(t *testing.T, env map[string]string, goos string) *Loader {
	t.Helper()

	for _, key := range runnerEnv {
		t.Setenv(key, env[key])
	}
	return &Loader{
		getwd:    func() (string, error) { return "/work", nil },
		platform: models.Platform{OS: goos, Arch: "amd64"},
	}
}

func parseFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return fs
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := newTestLoader(t, nil, "linux").Load("", nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := models.Config{
		Tool:           "bosun",
		Repository:     "https://github.com/naveego/bosun",
		Version:        "latest",
		CacheDir:       "/home/actions/cache",
		TempDir:        "/home/actions/temp",
		ConfigVariable: "BOSUN_CONFIG",
		ConfigFile:     "/work/bosun/bosun.yaml",
		Timeout:        5 * time.Minute,
		Platform:       models.Platform{OS: "linux", Arch: "amd64"},
	}
	if diff := pretty.Compare(want, cfg); diff != "" {
		t.Fatalf("unexpected defaults (-want +got):\n%s", diff)
	}
	if cfg.Pinned() {
		t.Fatal("default config should not be pinned")
	}
}

func TestLoadDarwinBase(t *testing.T) {
	cfg, err := newTestLoader(t, nil, "darwin").Load("", nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.TempDir != "/Users/actions/temp" {
		t.Fatalf("unexpected temp dir %s", cfg.TempDir)
	}
}

func TestLoadRunnerEnvironment(t *testing.T) {
	env := map[string]string{
		"RUNNER_TEMPDIRECTORY": "/runner/tempdir",
		"RUNNER_TEMP":          "/runner/temp",
		"RUNNER_TOOL_CACHE":    "/runner/tools",
		"GITHUB_ACTION_PATH":   "/actions/setup-bosun",
		"INPUT_VERSION":        "v1.2.3",
		"INPUT_LIST_FILES":     "true",
	}
	cfg, err := newTestLoader(t, env, "linux").Load("", nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.TempDir != "/runner/tempdir" {
		t.Fatalf("RUNNER_TEMPDIRECTORY should win, got %s", cfg.TempDir)
	}
	if cfg.CacheDir != "/runner/tools" {
		t.Fatalf("unexpected cache dir %s", cfg.CacheDir)
	}
	if cfg.ConfigFile != "/actions/setup-bosun/bosun/bosun.yaml" {
		t.Fatalf("unexpected config file %s", cfg.ConfigFile)
	}
	if !cfg.Pinned() || cfg.Version != "v1.2.3" {
		t.Fatalf("expected pinned version, got %q", cfg.Version)
	}
	if !cfg.ListFiles {
		t.Fatal("expected list files enabled")
	}

	delete(env, "RUNNER_TEMPDIRECTORY")
	cfg, err = newTestLoader(t, env, "linux").Load("", nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.TempDir != "/runner/temp" {
		t.Fatalf("expected RUNNER_TEMP fallback, got %s", cfg.TempDir)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "setup-bosun.yaml")
	content := `
repository: https://git.example.com/naveego/bosun
version: v0.1.0
sha256: deadbeef
timeout: 30s
list_files: true
arch: x64
os: win32
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	env := map[string]string{"INPUT_VERSION": "v0.2.0"}
	flags := parseFlags(t, "--sha256", "cafebabe", "--list-files=false")
	cfg, err := newTestLoader(t, env, "linux").Load(path, flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Repository != "https://git.example.com/naveego/bosun" {
		t.Fatalf("file value lost: %s", cfg.Repository)
	}
	if cfg.Version != "v0.2.0" {
		t.Fatalf("environment should override file, got %s", cfg.Version)
	}
	if cfg.Checksum != "cafebabe" {
		t.Fatalf("flags should override file, got %s", cfg.Checksum)
	}
	if cfg.ListFiles {
		t.Fatal("flag should disable list files")
	}
	if cfg.Timeout != 30*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.Timeout)
	}
	if cfg.Platform != (models.Platform{OS: "win32", Arch: "x64"}) {
		t.Fatalf("unexpected platform %+v", cfg.Platform)
	}
}

func TestLoadErrors(t *testing.T) {
	loader := newTestLoader(t, nil, "linux")

	if _, err := loader.Load(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("version: [unterminated"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loader.Load(bad, nil); err == nil {
		t.Fatal("expected error for invalid yaml")
	}

	cases := [][]string{
		{"--timeout", "soon"},
		{"--timeout", "-1s"},
		{"--repository", "not a url"},
		{"--cache-dir", ""},
	}
	for _, args := range cases {
		if _, err := loader.Load("", parseFlags(t, args...)); err == nil {
			t.Errorf("expected error for flags %v", args)
		}
	}

	toolFile := filepath.Join(t.TempDir(), "tool.yaml")
	if err := os.WriteFile(toolFile, []byte("tool: bo/sun\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loader.Load(toolFile, nil); err == nil {
		t.Fatal("expected error for invalid tool name")
	}
}

func TestLoadInvalidListFilesEnv(t *testing.T) {
	loader := newTestLoader(t, map[string]string{"INPUT_LIST_FILES": "yes"}, "linux")

	if _, err := loader.Load("", nil); err == nil {
		t.Fatal("expected error for unparsable INPUT_LIST_FILES")
	}
}

func TestLoadUnchangedFlagsKeepLowerLayers(t *testing.T) {
	env := map[string]string{"RUNNER_TOOL_CACHE": "/runner/tools", "INPUT_VERSION": "v3.0.0"}
	loader := newTestLoader(t, env, "linux")

	cfg, err := loader.Load("", parseFlags(t, "--arch", "arm64"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.CacheDir != "/runner/tools" {
		t.Fatalf("unset --cache-dir should not mask the environment, got %s", cfg.CacheDir)
	}
	if cfg.Version != "v3.0.0" {
		t.Fatalf("unset --version-tag should not mask the environment, got %s", cfg.Version)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Fatalf("unexpected timeout %s", cfg.Timeout)
	}
	if cfg.Platform.Arch != "arm64" {
		t.Fatalf("expected arch override, got %s", cfg.Platform.Arch)
	}
}

func TestNewLoaderUsesHostPlatform(t *testing.T) {
	l := NewLoader()
	if l.platform.OS == "" || l.platform.Arch == "" {
		t.Fatalf("expected host platform, got %+v", l.platform)
	}
}
