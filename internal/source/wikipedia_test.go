package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deadonfilm/morbid/internal/model"
)

func newWikipediaServer(t *testing.T, searchBody, summaryBody string, summaryStatus int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/w/rest.php/v1/search/page"):
			w.Write([]byte(searchBody))
		case strings.HasPrefix(r.URL.Path, "/api/rest_v1/page/summary/"):
			w.WriteHeader(summaryStatus)
			w.Write([]byte(summaryBody))
		default:
			t.Errorf("Unexpected request path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestWikipediaAdapter_Lookup(t *testing.T) {
	search := `{"pages": [{"key": "John_Cazale", "title": "John Cazale", "description": "American actor"}]}`
	summary := `{
		"title": "John Cazale",
		"extract": "John Cazale was an American actor known for five films. He died of bone cancer in New York City in March 1978 at the age of 42. His final film was The Deer Hunter.",
		"content_urls": {"desktop": {"page": "https://en.wikipedia.org/wiki/John_Cazale"}}
	}`
	server := newWikipediaServer(t, search, summary, http.StatusOK)
	defer server.Close()

	adapter := NewWikipediaAdapter(NewFetcher(testHTTPConfig(), nil, nil))
	adapter.baseURL = server.URL

	result, err := adapter.Lookup(context.Background(), model.Subject{Name: "John Cazale", Death: "1978-03-13"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Evidence == nil {
		t.Fatalf("Expected evidence, got failure meta %+v", result.Meta)
	}

	if !strings.Contains(result.Evidence.Narrative, "died of bone cancer") {
		t.Errorf("Expected death narrative, got %q", result.Evidence.Narrative)
	}
	if result.Evidence.Reliability != model.TierSecondary {
		t.Errorf("Expected secondary tier, got %v", result.Evidence.Reliability)
	}
	if result.Evidence.Confidence <= 0 || result.Evidence.Confidence > MaxConfidenceProse {
		t.Errorf("Expected prose-clamped confidence, got %v", result.Evidence.Confidence)
	}
	if result.Evidence.SourceURL != "https://en.wikipedia.org/wiki/John_Cazale" {
		t.Errorf("Unexpected source URL %q", result.Evidence.SourceURL)
	}
}

func TestWikipediaAdapter_LookupNotFound(t *testing.T) {
	server := newWikipediaServer(t, `{"pages": []}`, "", http.StatusOK)
	defer server.Close()

	adapter := NewWikipediaAdapter(NewFetcher(testHTTPConfig(), nil, nil))
	adapter.baseURL = server.URL

	result, err := adapter.Lookup(context.Background(), model.Subject{Name: "Nobody Nowhere"})
	if err != nil {
		t.Fatalf("Expected no error for empty search, got %v", err)
	}
	if result.Evidence != nil {
		t.Error("Expected no evidence for empty search results")
	}
	if result.Meta.Source != "wikipedia" {
		t.Errorf("Expected metadata even on miss, got %+v", result.Meta)
	}
}

func TestWikipediaAdapter_LookupBlocked(t *testing.T) {
	search := `{"pages": [{"key": "John_Cazale", "title": "John Cazale"}]}`
	server := newWikipediaServer(t, search, "rate limited", http.StatusTooManyRequests)
	defer server.Close()

	adapter := NewWikipediaAdapter(NewFetcher(testHTTPConfig(), nil, nil))
	adapter.baseURL = server.URL

	_, err := adapter.Lookup(context.Background(), model.Subject{Name: "John Cazale"})
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("Expected blocked sentinel, got %v", err)
	}

	var blockedErr *BlockedError
	if !errors.As(err, &blockedErr) {
		t.Fatal("Expected a BlockedError")
	}
	if blockedErr.Status != http.StatusTooManyRequests {
		t.Errorf("Expected 429 recorded, got %d", blockedErr.Status)
	}
}

func TestWikipediaAdapter_LookupMalformedSearch(t *testing.T) {
	longText := strings.Repeat("unrelated page content with enough length to avoid tripping soft-block checks. ", 60)
	server := newWikipediaServer(t, "<html>"+longText+"</html>", "", http.StatusOK)
	defer server.Close()

	adapter := NewWikipediaAdapter(NewFetcher(testHTTPConfig(), nil, nil))
	adapter.baseURL = server.URL

	result, err := adapter.Lookup(context.Background(), model.Subject{Name: "John Cazale"})
	if err != nil {
		t.Fatalf("Expected decode failure to be a soft miss, got %v", err)
	}
	if result.Evidence != nil {
		t.Error("Expected no evidence from malformed response")
	}
	if result.Meta.Err == "" {
		t.Error("Expected decode error recorded in metadata")
	}
}
