package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/deadonfilm/morbid/internal/cache"
	"github.com/deadonfilm/morbid/internal/model"
	"github.com/deadonfilm/morbid/internal/util"
	"github.com/deadonfilm/morbid/internal/worker"
)

// Fetcher is the shared plain-HTTP fetch path for adapters that do not
// need a browser. Responses are cached by URL so repeated runs against
// the same subjects stay cheap and polite.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	cache      cache.Cache
	robots     *util.RobotsChecker
	limiter    *worker.Limiter
}

// NewFetcher builds a fetcher from the HTTP configuration. pages may
// be nil to disable caching; robots may be nil to skip robots.txt.
// Requests are additionally rate-limited per origin host so two
// adapters hitting the same host stay polite together.
func NewFetcher(cfg model.HTTPConfig, pages cache.Cache, robots *util.RobotsChecker) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBodyBytes,
		cache:     pages,
		robots:    robots,
		limiter:   worker.NewLimiter(1.0, 2),
	}
}

// Page is one fetched document.
type Page struct {
	Body      string
	Status    int
	FinalURL  string
	FromCache bool
}

// Get fetches a URL, honoring robots.txt and the page cache. A blocked
// status does not produce an error here; callers run IsBlockedResponse
// on the result so soft blocks in page content are caught too.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (*Page, error) {
	key := cacheKey(rawURL)
	if f.cache != nil {
		if data, ok := f.cache.Get(key); ok {
			return &Page{Body: string(data), Status: http.StatusOK, FinalURL: rawURL, FromCache: true}, nil
		}
	}

	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return nil, err
	}

	if f.robots != nil {
		allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
		if err == nil && !allowed {
			return nil, fmt.Errorf("disallowed by robots.txt: %s", rawURL)
		}
		if delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	page := &Page{
		Body:     string(body),
		Status:   resp.StatusCode,
		FinalURL: resp.Request.URL.String(),
	}

	if f.cache != nil && resp.StatusCode == http.StatusOK {
		_ = f.cache.Set(key, body, 0)
	}

	return page, nil
}

func cacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:16])
}
