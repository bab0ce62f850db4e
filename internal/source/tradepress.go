package source

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/deadonfilm/morbid/internal/model"
)

// TradePressAdapter researches obituaries on an industry trade site.
// The site runs bot detection and a soft paywall, so fetches go
// through the browser subsystem rather than plain HTTP.
type TradePressAdapter struct {
	browser RenderedFetcher
	baseURL string
}

// NewTradePressAdapter creates the trade-press adapter. browser may be
// nil when the browser subsystem is disabled, in which case the
// adapter reports itself unavailable.
func NewTradePressAdapter(browser RenderedFetcher) *TradePressAdapter {
	return &TradePressAdapter{
		browser: browser,
		baseURL: "https://variety.com",
	}
}

func (a *TradePressAdapter) Name() string                       { return "tradepress" }
func (a *TradePressAdapter) Reliability() model.ReliabilityTier { return model.TierTradePress }
func (a *TradePressAdapter) IsAvailable() bool                  { return a.browser != nil }
func (a *TradePressAdapter) Metered() (bool, float64)           { return false, 0 }
func (a *TradePressAdapter) MinDelay() time.Duration            { return 3 * time.Second }
func (a *TradePressAdapter) Timeout() time.Duration             { return 60 * time.Second }

// Lookup loads the obituary search page for the subject and extracts
// death sentences from the rendered result.
func (a *TradePressAdapter) Lookup(ctx context.Context, subject model.Subject) (*Result, error) {
	start := time.Now()

	searchURL := fmt.Sprintf("%s/results/#/q=%s%%20dies", a.baseURL,
		url.QueryEscape(subject.Name))

	rendered, err := a.browser.FetchRendered(ctx, searchURL)
	if err != nil {
		return failureResult(a.Name(), searchURL, time.Since(start), err), nil
	}
	if rendered.Err != "" {
		return failureResult(a.Name(), searchURL, time.Since(start), fmt.Errorf("%s", rendered.Err)), nil
	}

	if blocked, reason := IsBlockedResponse(200, rendered.HTML, rendered.Text); blocked {
		return nil, &BlockedError{Source: a.Name(), URL: searchURL, Status: 200, Reason: reason}
	}

	narrative := DeathNarrative(rendered.Text, 2500)
	confidence := ScoreConfidence(narrative, subject.Name, VariantProse)

	// A rendered page that never mentions the subject is a miss, not
	// evidence with low confidence.
	if confidence <= confidenceBase {
		return failureResult(a.Name(), searchURL, time.Since(start), nil), nil
	}

	finalURL := rendered.FinalURL
	if finalURL == "" {
		finalURL = searchURL
	}

	return &Result{
		Evidence: &model.EvidenceItem{
			Source:      a.Name(),
			SourceURL:   finalURL,
			Narrative:   narrative,
			Confidence:  confidence,
			Reliability: a.Reliability(),
			RetrievedAt: time.Now().UTC(),
		},
		Variant: VariantProse,
		Meta: model.SourceMetadata{
			Source:     a.Name(),
			URL:        finalURL,
			Elapsed:    time.Since(start),
			Confidence: confidence,
			Cost:       rendered.SolverCost,
		},
	}, nil
}
