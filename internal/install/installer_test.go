package install

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/naveego/setup-bosun/internal/toolcache"
	"github.com/naveego/setup-bosun/pkg/models"
)

type recordingPaths struct {
	added []string
	fail  error
}

func (r *recordingPaths) AddPath(dir string) error {
	if r.fail != nil {
		return r.fail
	}
	r.added = append(r.added, dir)
	return nil
}

type stubDownloader struct {
	path  string
	calls int
	fail  error
}

func (s *stubDownloader) Download(context.Context, models.Release) (string, error) {
	s.calls++
	if s.fail != nil {
		return "", s.fail
	}
	return s.path, nil
}

func newRelease(url string) models.Release {
	return models.Release{
		Tool:        "bosun",
		Tag:         "v1.0.0",
		OS:          "linux",
		Arch:        "amd64",
		ArchiveName: "bosun_v1.0.0_linux_amd64.tar.gz",
		DownloadURL: url,
	}
}

func TestInstallerInstallAndIdempotent(t *testing.T) {
	t.Parallel()

	archive := tarGzBytes(t, map[string]string{"bosun": "binary"})
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write(archive)
	}))
	defer server.Close()

	root := t.TempDir()
	tempDir := filepath.Join(root, "temp")
	cache := toolcache.NewFileCache(filepath.Join(root, "cache"), "amd64")
	paths := &recordingPaths{}
	installer := NewInstaller(
		cache,
		NewDownloader(tempDir, WithHTTPClient(server.Client())),
		paths,
		WithTempDir(tempDir),
	)

	rel := newRelease(server.URL + "/download/bosun_v1.0.0_linux_amd64.tar.gz")

	first, err := installer.Install(context.Background(), rel)
	if err != nil {
		t.Fatalf("first install failed: %v", err)
	}
	if data, err := os.ReadFile(filepath.Join(first, "bosun")); err != nil || string(data) != "binary" {
		t.Fatalf("expected bosun in %s: %q %v", first, data, err)
	}

	second, err := installer.Install(context.Background(), rel)
	if err != nil {
		t.Fatalf("second install failed: %v", err)
	}
	if second != first {
		t.Fatalf("expected cached path %s, got %s", first, second)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected a single download, got %d", got)
	}
	if len(paths.added) != 2 || paths.added[0] != first || paths.added[1] != first {
		t.Fatalf("expected path exported on both runs, got %v", paths.added)
	}

	leftovers, err := filepath.Glob(filepath.Join(tempDir, "extract-*"))
	if err != nil || len(leftovers) != 0 {
		t.Fatalf("expected temp extract dirs cleaned up, got %v (%v)", leftovers, err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "downloads", rel.ArchiveName)); !os.IsNotExist(err) {
		t.Fatalf("expected archive removed, err=%v", err)
	}
}

func TestInstallerDownloadFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	root := t.TempDir()
	cache := toolcache.NewFileCache(filepath.Join(root, "cache"), "amd64")
	paths := &recordingPaths{}
	installer := NewInstaller(cache, NewDownloader(root, WithHTTPClient(server.Client())), paths, WithTempDir(root))

	_, err := installer.Install(context.Background(), newRelease(server.URL))
	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("expected ErrDownloadFailed, got %v", err)
	}

	if _, ok, _ := cache.Find(toolcache.Key{Tool: "bosun", Version: "v1.0.0"}); ok {
		t.Fatal("expected no cache entry after failed download")
	}
	entries, err := cache.List("bosun")
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty index, got %#v (%v)", entries, err)
	}
	if len(paths.added) != 0 {
		t.Fatalf("expected no path export, got %v", paths.added)
	}
}

func TestInstallerExtractFailure(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cache := toolcache.NewFileCache(filepath.Join(root, "cache"), "amd64")
	down := &stubDownloader{path: createInvalidArchive(t)}
	installer := NewInstaller(cache, down, &recordingPaths{}, WithTempDir(filepath.Join(root, "temp")))

	_, err := installer.Install(context.Background(), newRelease("https://example.test/bosun.tar.gz"))
	if !errors.Is(err, ErrExtractFailed) {
		t.Fatalf("expected ErrExtractFailed, got %v", err)
	}
	if _, ok, _ := cache.Find(toolcache.Key{Tool: "bosun", Version: "v1.0.0"}); ok {
		t.Fatal("expected no cache entry after failed extract")
	}
}

func TestInstallerCacheHitSkipsDownload(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cache := toolcache.NewFileCache(filepath.Join(root, "cache"), "amd64")
	src := filepath.Join(root, "src")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	stored, err := cache.Store(src, toolcache.Key{Tool: "bosun", Version: "v1.0.0"})
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	down := &stubDownloader{fail: errors.New("network disabled")}
	paths := &recordingPaths{}
	installer := NewInstaller(cache, down, paths)

	got, err := installer.Install(context.Background(), newRelease("https://example.test/unused"))
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if got != stored || down.calls != 0 {
		t.Fatalf("expected cache hit at %s without download, got %s (calls=%d)", stored, got, down.calls)
	}
}

func TestInstallerPathExportFailure(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cache := toolcache.NewFileCache(filepath.Join(root, "cache"), "amd64")
	down := &stubDownloader{path: createArchive(t, map[string]string{"bosun": "x"})}
	installer := NewInstaller(cache, down, &recordingPaths{fail: errors.New("read-only")}, WithTempDir(root))

	if _, err := installer.Install(context.Background(), newRelease("https://example.test/bosun.tar.gz")); err == nil {
		t.Fatal("expected error when path export fails")
	}
}

func TestInstallerValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewInstaller(nil, nil, nil).Install(context.Background(), newRelease("x")); err == nil {
		t.Fatal("expected error for missing dependencies")
	}

	cache := toolcache.NewFileCache(t.TempDir(), "amd64")
	installer := NewInstaller(cache, &stubDownloader{}, &recordingPaths{})
	rel := newRelease("x")
	rel.Tag = ""
	if _, err := installer.Install(context.Background(), rel); err == nil {
		t.Fatal("expected error for empty tag")
	}
}
