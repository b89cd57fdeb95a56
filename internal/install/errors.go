package install

import (
	"errors"
	"fmt"
)

var (
	// ErrDownloadFailed 表示发行包下载失败。
	ErrDownloadFailed = errors.New("download failed")
	// ErrExtractFailed 表示压缩包无法解压。
	ErrExtractFailed = errors.New("extract failed")
)

// DownloadError 携带下载地址与底层原因。
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("failed to download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// Is 使 errors.Is(err, ErrDownloadFailed) 成立。
func (e *DownloadError) Is(target error) bool { return target == ErrDownloadFailed }

// ExtractError 携带压缩包路径与底层原因。
type ExtractError struct {
	Archive string
	Err     error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("failed to extract %s: %v", e.Archive, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// Is 使 errors.Is(err, ErrExtractFailed) 成立。
func (e *ExtractError) Is(target error) bool { return target == ErrExtractFailed }
