package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/deadonfilm/morbid/internal/model"
)

// WikipediaAdapter researches a subject through the Wikipedia REST
// API: search for the person, pull the article extract, and keep the
// death-related sentences. Free, secondary tier, prose-clamped.
type WikipediaAdapter struct {
	fetcher *Fetcher
	baseURL string
}

// NewWikipediaAdapter creates the Wikipedia adapter.
func NewWikipediaAdapter(fetcher *Fetcher) *WikipediaAdapter {
	return &WikipediaAdapter{
		fetcher: fetcher,
		baseURL: "https://en.wikipedia.org",
	}
}

func (a *WikipediaAdapter) Name() string                        { return "wikipedia" }
func (a *WikipediaAdapter) Reliability() model.ReliabilityTier  { return model.TierSecondary }
func (a *WikipediaAdapter) IsAvailable() bool                   { return true }
func (a *WikipediaAdapter) Metered() (bool, float64)            { return false, 0 }
func (a *WikipediaAdapter) MinDelay() time.Duration             { return 1 * time.Second }
func (a *WikipediaAdapter) Timeout() time.Duration              { return 20 * time.Second }

type wikiSearchResponse struct {
	Pages []struct {
		Key         string `json:"key"`
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"pages"`
}

type wikiSummaryResponse struct {
	Title   string `json:"title"`
	Extract string `json:"extract"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

// Lookup searches for the subject and extracts death sentences from
// the article summary.
func (a *WikipediaAdapter) Lookup(ctx context.Context, subject model.Subject) (*Result, error) {
	start := time.Now()

	searchURL := fmt.Sprintf("%s/w/rest.php/v1/search/page?q=%s&limit=3",
		a.baseURL, url.QueryEscape(subject.Name))

	page, err := a.fetcher.Get(ctx, searchURL)
	if err != nil {
		return failureResult(a.Name(), searchURL, time.Since(start), err), nil
	}
	if blocked, reason := IsBlockedResponse(page.Status, page.Body, page.Body); blocked {
		return nil, &BlockedError{Source: a.Name(), URL: searchURL, Status: page.Status, Reason: reason}
	}

	var search wikiSearchResponse
	if err := json.Unmarshal([]byte(page.Body), &search); err != nil {
		return failureResult(a.Name(), searchURL, time.Since(start), fmt.Errorf("decode search: %w", err)), nil
	}
	if len(search.Pages) == 0 {
		return failureResult(a.Name(), searchURL, time.Since(start), nil), nil
	}

	summaryURL := fmt.Sprintf("%s/api/rest_v1/page/summary/%s",
		a.baseURL, url.PathEscape(search.Pages[0].Key))

	page, err = a.fetcher.Get(ctx, summaryURL)
	if err != nil {
		return failureResult(a.Name(), summaryURL, time.Since(start), err), nil
	}
	if blocked, reason := IsBlockedResponse(page.Status, page.Body, page.Body); blocked {
		return nil, &BlockedError{Source: a.Name(), URL: summaryURL, Status: page.Status, Reason: reason}
	}

	var summary wikiSummaryResponse
	if err := json.Unmarshal([]byte(page.Body), &summary); err != nil {
		return failureResult(a.Name(), summaryURL, time.Since(start), fmt.Errorf("decode summary: %w", err)), nil
	}
	if summary.Extract == "" {
		return failureResult(a.Name(), summaryURL, time.Since(start), nil), nil
	}

	narrative := DeathNarrative(summary.Extract, 2000)
	confidence := ScoreConfidence(narrative, subject.Name, VariantProse)

	articleURL := summary.ContentURLs.Desktop.Page
	if articleURL == "" {
		articleURL = summaryURL
	}

	return &Result{
		Evidence: &model.EvidenceItem{
			Source:      a.Name(),
			SourceURL:   articleURL,
			Narrative:   narrative,
			Confidence:  confidence,
			Reliability: a.Reliability(),
			RawMetadata: map[string]any{"title": summary.Title},
			RetrievedAt: time.Now().UTC(),
		},
		Variant: VariantProse,
		Meta: model.SourceMetadata{
			Source:     a.Name(),
			URL:        articleURL,
			Elapsed:    time.Since(start),
			Confidence: confidence,
		},
	}, nil
}
