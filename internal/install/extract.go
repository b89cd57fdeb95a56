package install

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ExtractTarGz 将 gzip 压缩的 tar 包解压到 dest。任何失败都以 *ExtractError 返回。
func ExtractTarGz(archivePath, dest string) error {
	if err := extractTarGz(archivePath, dest); err != nil {
		return &ExtractError{Archive: archivePath, Err: err}
	}
	return nil
}

func extractTarGz(archivePath, dest string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("gzip reader: %w", err)
	}
	defer gz.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("prepare extract dir: %w", err)
	}

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}

		relPath, skip := normalizeTarPath(header.Name)
		if skip {
			continue
		}

		target := filepath.Join(dest, filepath.FromSlash(relPath))
		if err := ensureWithinRoot(dest, target); err != nil {
			return err
		}
		if err := ensureNoSymlinks(dest, target); err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(header.Mode)|0o700); err != nil {
				return fmt.Errorf("mkdir %s: %w", target, err)
			}
		case tar.TypeReg, tar.TypeRegA:
			if err := writeEntry(tr, target, os.FileMode(header.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := ensureLinkWithinRoot(dest, target, header.Linkname); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("mkdir for link %s: %w", target, err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("symlink %s: %w", target, err)
			}
		case tar.TypeLink:
			linkRel, skip := normalizeTarPath(header.Linkname)
			if skip {
				return fmt.Errorf("invalid hard link %q", header.Name)
			}
			source := filepath.Join(dest, filepath.FromSlash(linkRel))
			if err := ensureWithinRoot(dest, source); err != nil {
				return err
			}
			if err := ensureNoSymlinks(dest, source); err != nil {
				return err
			}
			if err := os.Link(source, target); err != nil {
				return fmt.Errorf("hard link %s: %w", target, err)
			}
		case tar.TypeXGlobalHeader:
			continue
		default:
			return fmt.Errorf("unsupported tar entry %q", header.Name)
		}
	}

	return nil
}

func writeEntry(r io.Reader, target string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("mkdir for file %s: %w", target, err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("copy file %s: %w", target, err)
	}
	return f.Close()
}

func normalizeTarPath(name string) (string, bool) {
	clean := path.Clean(strings.ReplaceAll(name, `\`, "/"))
	clean = strings.TrimPrefix(clean, "./")
	if clean == "." || clean == "" || clean == "/" {
		return "", true
	}
	return clean, false
}

func ensureWithinRoot(root, target string) error {
	root = filepath.Clean(root)
	target = filepath.Clean(target)
	if target == root {
		return nil
	}
	if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return fmt.Errorf("illegal path %s", target)
	}
	return nil
}

// ensureLinkWithinRoot 拒绝指向解压目录之外的符号链接。
func ensureLinkWithinRoot(root, target, linkname string) error {
	if linkname == "" {
		return fmt.Errorf("empty symlink target for %s", target)
	}
	resolved := filepath.FromSlash(strings.ReplaceAll(linkname, `\`, "/"))
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(target), resolved)
	}
	if err := ensureWithinRoot(root, resolved); err != nil {
		return fmt.Errorf("symlink %s points outside %s", target, root)
	}
	return nil
}

// ensureNoSymlinks 确认 target 及其在 root 内的各级父目录都不是符号链接，
// 避免后续条目经由链接写到 root 之外。
func ensureNoSymlinks(root, target string) error {
	root = filepath.Clean(root)
	rel, err := filepath.Rel(root, filepath.Clean(target))
	if err != nil {
		return fmt.Errorf("illegal path %s", target)
	}

	current := root
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		current = filepath.Join(current, part)
		info, err := os.Lstat(current)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stat %s: %w", current, err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("refusing to write through symlink %s", current)
		}
	}
	return nil
}
