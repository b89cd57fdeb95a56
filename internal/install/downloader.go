package install

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/naveego/setup-bosun/pkg/models"
)

// ProgressFunc 在下载过程中回调当前已完成的字节数以及总字节数。
type ProgressFunc func(downloaded, total int64)

// Downloader 负责把发行包下载到临时目录，可选校验 SHA256。
type Downloader struct {
	httpClient   HTTPClient
	downloadsDir string
	progressFunc ProgressFunc
}

// HTTPClient 定义 Downloader 所需的 HTTP 客户端能力。
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DownloaderOption 配置 Downloader。
type DownloaderOption func(*Downloader)

// WithHTTPClient 指定自定义 HTTP 客户端。
func WithHTTPClient(client HTTPClient) DownloaderOption {
	return func(d *Downloader) {
		if client != nil {
			d.httpClient = client
		}
	}
}

// WithProgressFunc 指定进度回调。
func WithProgressFunc(fn ProgressFunc) DownloaderOption {
	return func(d *Downloader) {
		d.progressFunc = fn
	}
}

// NewDownloader 创建 Downloader，压缩包写入 tempDir/downloads。
func NewDownloader(tempDir string, opts ...DownloaderOption) *Downloader {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	d := &Downloader{
		httpClient:   http.DefaultClient,
		downloadsDir: filepath.Join(tempDir, "downloads"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download 获取发行包并返回本地文件路径。任何失败都以 *DownloadError 返回。
func (d *Downloader) Download(ctx context.Context, rel models.Release) (string, error) {
	path, err := d.download(ctx, rel)
	if err != nil {
		return "", &DownloadError{URL: rel.DownloadURL, Err: err}
	}
	return path, nil
}

func (d *Downloader) download(ctx context.Context, rel models.Release) (string, error) {
	if rel.DownloadURL == "" {
		return "", errors.New("download url is empty")
	}
	if err := os.MkdirAll(d.downloadsDir, 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rel.DownloadURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	tempFile, err := os.CreateTemp(d.downloadsDir, "download-*.tmp")
	if err != nil {
		return "", fmt.Errorf("temp file: %w", err)
	}
	tempPath := tempFile.Name()
	defer func() {
		tempFile.Close()
		os.Remove(tempPath)
	}()

	reader := d.wrapProgress(resp.Body, resp.ContentLength)
	if _, err := io.Copy(tempFile, reader); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return "", fmt.Errorf("sync file: %w", err)
	}
	// Windows 上无法重命名仍处于打开状态的文件。
	if err := tempFile.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}

	if rel.Checksum != "" {
		if err := verifyChecksum(tempPath, rel.Checksum); err != nil {
			return "", err
		}
	}

	name := rel.ArchiveName
	if name == "" {
		name = filepath.Base(tempPath) + ".tar.gz"
	}
	finalPath := filepath.Join(d.downloadsDir, filepath.Base(name))
	if err := os.Remove(finalPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("remove existing: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		return "", fmt.Errorf("finalize file: %w", err)
	}
	return finalPath, nil
}

func (d *Downloader) wrapProgress(reader io.Reader, total int64) io.Reader {
	if d.progressFunc == nil {
		return reader
	}
	return &progressReader{r: reader, total: total, report: d.progressFunc}
}

func verifyChecksum(path, expected string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return fmt.Errorf("hash file: %w", err)
	}

	actual := hex.EncodeToString(hasher.Sum(nil))
	if !strings.EqualFold(actual, strings.TrimSpace(expected)) {
		return fmt.Errorf("checksum mismatch, got %s want %s", actual, expected)
	}
	return nil
}

type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	report ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		p.report(p.read, p.total)
	}
	return n, err
}
