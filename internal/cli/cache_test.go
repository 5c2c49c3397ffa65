package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/deckreel/pkg/cache"
)

func TestCacheDirXDG(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", xdg)

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}
	if want := filepath.Join(xdg, "deckreel"); dir != want {
		t.Errorf("cacheDir() = %q, want %q", dir, want)
	}
}

func TestCacheDirHome(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}
	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, ".cache", "deckreel"); dir != want {
		t.Errorf("cacheDir() = %q, want %q", dir, want)
	}
}

func TestCacheCommands(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "rasters")
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for _, key := range []string{"a", "b", "c"} {
		if err := fc.Set(ctx, key, []byte("raster "+key), time.Hour); err != nil {
			t.Fatal(err)
		}
	}

	out := captureStdout(t)
	if err := Execute(ctx, []string{"cache", "stats", "--dir", dir}, &syncBuffer{}); err != nil {
		t.Fatalf("cache stats: %v", err)
	}
	if !strings.Contains(out.String(), "Entries") || !strings.Contains(out.String(), "3") {
		t.Errorf("cache stats output %q should report 3 entries", out.String())
	}

	out.Reset()
	if err := Execute(ctx, []string{"cache", "path", "--dir", dir}, &syncBuffer{}); err != nil {
		t.Fatalf("cache path: %v", err)
	}
	if strings.TrimSpace(out.String()) != dir {
		t.Errorf("cache path = %q, want %q", out.String(), dir)
	}

	out.Reset()
	if err := Execute(ctx, []string{"cache", "clear", "--dir", dir}, &syncBuffer{}); err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	if !strings.Contains(out.String(), "Cleared 3") {
		t.Errorf("cache clear output %q should report 3 entries", out.String())
	}
	if n, _, _ := fc.Stats(); n != 0 {
		t.Errorf("cache has %d entries after clear", n)
	}
}

func TestCacheClearMissingDir(t *testing.T) {
	out := captureStdout(t)
	dir := filepath.Join(t.TempDir(), "absent")

	if err := Execute(context.Background(), []string{"cache", "clear", "--dir", dir}, &syncBuffer{}); err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	if !strings.Contains(out.String(), "Cache is empty") {
		t.Errorf("unexpected output %q", out.String())
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("cache clear should not create the directory")
	}
}
