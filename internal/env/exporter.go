package env

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/kballard/go-shellquote"
)

const (
	githubActionsVar = "GITHUB_ACTIONS"
	githubPathVar    = "GITHUB_PATH"
	githubEnvVar     = "GITHUB_ENV"
	pathVar          = "PATH"
)

// Exporter 负责把路径与变量写回 CI 系统，同时更新当前进程环境。
//
// 运行在 GitHub Actions 中时使用 GITHUB_PATH、GITHUB_ENV 文件命令；
// 其他环境下向 out 输出可供 shell eval 的 export 语句。
type Exporter struct {
	out           io.Writer
	envFn         func(string) string
	setenvFn      func(string, string) error
	delimiterFn   func() string
	listSeparator string
}

// NewExporter 构造导出器。
func NewExporter(out io.Writer) *Exporter {
	if out == nil {
		out = os.Stdout
	}
	return &Exporter{
		out:           out,
		envFn:         os.Getenv,
		setenvFn:      os.Setenv,
		delimiterFn:   func() string { return "ghadelimiter_" + uuid.NewString() },
		listSeparator: string(os.PathListSeparator),
	}
}

// InActions 判断当前是否运行在 GitHub Actions 中。
func (e *Exporter) InActions() bool {
	return e.envFn(githubActionsVar) == "true"
}

// AddPath 将 dir 放到命令搜索路径最前面。
func (e *Exporter) AddPath(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("env: path is required")
	}

	current := e.envFn(pathVar)
	updated := dir
	if current != "" {
		updated = dir + e.listSeparator + current
	}
	if err := e.setenvFn(pathVar, updated); err != nil {
		return fmt.Errorf("env: set PATH: %w", err)
	}

	if file := e.envFn(githubPathVar); file != "" {
		return appendLine(file, dir)
	}

	_, err := fmt.Fprintf(e.out, "export PATH=%s%s\"$PATH\"\n", shellquote.Join(dir), e.listSeparator)
	return err
}

// ExportVariable 设置变量并导出给后续步骤。
func (e *Exporter) ExportVariable(name, value string) error {
	if name == "" || strings.ContainsAny(name, "=\r\n") {
		return fmt.Errorf("env: invalid variable name %q", name)
	}
	if err := e.setenvFn(name, value); err != nil {
		return fmt.Errorf("env: set %s: %w", name, err)
	}

	if file := e.envFn(githubEnvVar); file != "" {
		command, err := e.envCommand(name, value)
		if err != nil {
			return err
		}
		return appendLine(file, command)
	}

	_, err := fmt.Fprintf(e.out, "export %s=%s\n", name, shellquote.Join(value))
	return err
}

// Fail 在 GitHub Actions 中输出错误注解，其他环境不做处理。
func (e *Exporter) Fail(message string) {
	if !e.InActions() {
		return
	}
	fmt.Fprintf(e.out, "::error::%s\n", escapeData(message))
}

func (e *Exporter) envCommand(name, value string) (string, error) {
	if !strings.ContainsAny(value, "\r\n") {
		return name + "=" + value, nil
	}
	delimiter := e.delimiterFn()
	if strings.Contains(name, delimiter) || strings.Contains(value, delimiter) {
		return "", fmt.Errorf("env: value for %s contains the delimiter %q", name, delimiter)
	}
	return fmt.Sprintf("%s<<%s\n%s\n%s", name, delimiter, value, delimiter), nil
}

func appendLine(file, line string) error {
	f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("env: open %s: %w", file, err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("env: write %s: %w", file, err)
	}
	return f.Close()
}

func escapeData(s string) string {
	r := strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A")
	return r.Replace(s)
}
