package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deadonfilm/morbid/internal/cache"
	"github.com/deadonfilm/morbid/internal/model"
)

func testHTTPConfig() model.HTTPConfig {
	return model.HTTPConfig{
		Timeout:      5 * time.Second,
		UserAgent:    "morbid-test",
		MaxBodyBytes: 1 << 20,
	}
}

func TestFetcher_Get(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if ua := r.Header.Get("User-Agent"); ua != "morbid-test" {
			t.Errorf("Expected configured user agent, got %q", ua)
		}
		w.Write([]byte("<html><body>obituary</body></html>"))
	}))
	defer server.Close()

	fetcher := NewFetcher(testHTTPConfig(), nil, nil)

	page, err := fetcher.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if page.Status != http.StatusOK {
		t.Errorf("Expected 200, got %d", page.Status)
	}
	if page.Body != "<html><body>obituary</body></html>" {
		t.Errorf("Unexpected body %q", page.Body)
	}
	if page.FromCache {
		t.Error("Expected first fetch not to come from cache")
	}
	if hits.Load() != 1 {
		t.Errorf("Expected 1 request, got %d", hits.Load())
	}
}

func TestFetcher_GetUsesCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("cached content"))
	}))
	defer server.Close()

	pages := cache.NewMemoryCache(time.Minute, time.Minute)
	fetcher := NewFetcher(testHTTPConfig(), pages, nil)

	if _, err := fetcher.Get(context.Background(), server.URL); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	page, err := fetcher.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !page.FromCache {
		t.Error("Expected second fetch to come from cache")
	}
	if page.Body != "cached content" {
		t.Errorf("Unexpected cached body %q", page.Body)
	}
	if hits.Load() != 1 {
		t.Errorf("Expected exactly 1 origin request, got %d", hits.Load())
	}
}

func TestFetcher_GetDoesNotCacheErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("denied"))
	}))
	defer server.Close()

	pages := cache.NewMemoryCache(time.Minute, time.Minute)
	fetcher := NewFetcher(testHTTPConfig(), pages, nil)

	for i := 0; i < 2; i++ {
		page, err := fetcher.Get(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("Expected no transport error, got %v", err)
		}
		if page.Status != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", page.Status)
		}
	}
	if hits.Load() != 2 {
		t.Errorf("Expected blocked responses to bypass the cache, got %d hits", hits.Load())
	}
}
