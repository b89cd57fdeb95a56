package install

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func tarGzBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		content := files[name]
		hdr := &tar.Header{
			Name:     name,
			Mode:     0o755,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write file header: %v", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("write file content: %v", err)
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatalf("close tar writer: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return buf.Bytes()
}

func createArchive(t *testing.T, files map[string]string) string {
	t.Helper()

	pathOnDisk := filepath.Join(t.TempDir(), "bosun.tar.gz")
	if err := os.WriteFile(pathOnDisk, tarGzBytes(t, files), 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	return pathOnDisk
}

func createInvalidArchive(t *testing.T) string {
	t.Helper()
	pathOnDisk := filepath.Join(t.TempDir(), "bad.tar.gz")
	if err := os.WriteFile(pathOnDisk, []byte("invalid"), 0o644); err != nil {
		t.Fatalf("write invalid archive: %v", err)
	}
	return pathOnDisk
}
