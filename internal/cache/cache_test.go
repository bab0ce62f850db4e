package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	if _, ok := c.Get("absent"); ok {
		t.Error("expected miss for unknown key")
	}

	if err := c.Set("page1", []byte("<html>obituary</html>"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	body, ok := c.Get("page1")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if string(body) != "<html>obituary</html>" {
		t.Errorf("wrong body: %q", body)
	}

	if err := c.Delete("page1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := c.Get("page1"); ok {
		t.Error("expected miss after Delete")
	}
}

func TestDiskCacheExpiry(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)

	if err := c.Set("fresh", []byte("kept"), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("expected hit for unexpired entry")
	}

	if err := c.Set("stale", []byte("gone"), -time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok := c.Get("stale"); ok {
		t.Error("expected expired entry to miss")
	}
	// Expired entries are removed on read.
	if _, err := os.Stat(c.path("stale")); !os.IsNotExist(err) {
		t.Error("expected expired entry file to be removed")
	}
}

func TestDiskCacheShardsByKeyPrefix(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	if err := c.Set("ab12cd", []byte("x"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	want := filepath.Join(dir, "ab", "ab12cd.page")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected entry at %s: %v", want, err)
	}
}

func TestDiskCacheDropsCorruptEntries(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	path := c.path("broken")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get("broken"); ok {
		t.Error("expected corrupt entry to miss")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected corrupt entry file to be removed")
	}
}

func TestLayeredCachePromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	c := NewLayeredCache(time.Minute, dir, time.Hour)

	// Seed only the cold tier, simulating a warm cache from an
	// earlier run.
	if err := c.cold.Set("page", []byte("cached body"), time.Hour); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	body, ok := c.Get("page")
	if !ok || string(body) != "cached body" {
		t.Fatalf("expected cold hit, got ok=%v body=%q", ok, body)
	}

	// The hit must now be served from memory.
	if _, ok := c.hot.Get("page"); !ok {
		t.Error("expected disk hit to be promoted to the memory tier")
	}
}

func TestLayeredCacheSetWritesBothTiers(t *testing.T) {
	c := NewLayeredCache(time.Minute, t.TempDir(), time.Hour)

	if err := c.Set("page", []byte("body"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok := c.hot.Get("page"); !ok {
		t.Error("expected memory tier to hold the entry")
	}
	if _, ok := c.cold.Get("page"); !ok {
		t.Error("expected disk tier to hold the entry")
	}
}
