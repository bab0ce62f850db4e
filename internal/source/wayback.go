package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/deadonfilm/morbid/internal/model"
)

// WaybackAdapter reads archived obituary pages through the Wayback
// Machine availability API. It doubles as the fallback origin when a
// live site blocks access: the snapshot carries the same text without
// the bot wall.
type WaybackAdapter struct {
	fetcher *Fetcher
	apiURL  string
}

// NewWaybackAdapter creates the archival-mirror adapter.
func NewWaybackAdapter(fetcher *Fetcher) *WaybackAdapter {
	return &WaybackAdapter{
		fetcher: fetcher,
		apiURL:  "https://archive.org/wayback/available",
	}
}

func (a *WaybackAdapter) Name() string                       { return "wayback" }
func (a *WaybackAdapter) Reliability() model.ReliabilityTier { return model.TierSecondary }
func (a *WaybackAdapter) IsAvailable() bool                  { return true }
func (a *WaybackAdapter) Metered() (bool, float64)           { return false, 0 }
func (a *WaybackAdapter) MinDelay() time.Duration            { return 2 * time.Second }
func (a *WaybackAdapter) Timeout() time.Duration             { return 45 * time.Second }

type waybackAvailability struct {
	ArchivedSnapshots struct {
		Closest struct {
			Available bool   `json:"available"`
			URL       string `json:"url"`
			Timestamp string `json:"timestamp"`
		} `json:"closest"`
	} `json:"archived_snapshots"`
}

// Lookup checks for an archived obituary-search snapshot near the
// subject's death date and extracts its text.
func (a *WaybackAdapter) Lookup(ctx context.Context, subject model.Subject) (*Result, error) {
	start := time.Now()

	// Target a news search for the subject's obituary as it appeared
	// around the death.
	target := fmt.Sprintf("https://legacy.com/search?query=%s", url.QueryEscape(subject.Name))
	availURL := fmt.Sprintf("%s?url=%s", a.apiURL, url.QueryEscape(target))
	if year := subject.DeathYear(); year > 0 {
		availURL += fmt.Sprintf("&timestamp=%d0101", year)
	}

	page, err := a.fetcher.Get(ctx, availURL)
	if err != nil {
		return failureResult(a.Name(), availURL, time.Since(start), err), nil
	}
	if blocked, reason := IsBlockedResponse(page.Status, page.Body, page.Body); blocked {
		return nil, &BlockedError{Source: a.Name(), URL: availURL, Status: page.Status, Reason: reason}
	}

	var avail waybackAvailability
	if err := json.Unmarshal([]byte(page.Body), &avail); err != nil {
		return failureResult(a.Name(), availURL, time.Since(start), fmt.Errorf("decode availability: %w", err)), nil
	}

	closest := avail.ArchivedSnapshots.Closest
	if !closest.Available || closest.URL == "" {
		return failureResult(a.Name(), availURL, time.Since(start), nil), nil
	}

	snapshot, err := a.fetcher.Get(ctx, closest.URL)
	if err != nil {
		return failureResult(a.Name(), closest.URL, time.Since(start), err), nil
	}

	text := ExtractText(snapshot.Body)
	narrative := DeathNarrative(text, 2000)
	confidence := ScoreConfidence(narrative, subject.Name, VariantProse)
	if confidence <= confidenceBase {
		return failureResult(a.Name(), closest.URL, time.Since(start), nil), nil
	}

	return &Result{
		Evidence: &model.EvidenceItem{
			Source:      a.Name(),
			SourceURL:   closest.URL,
			Narrative:   narrative,
			Confidence:  confidence,
			Reliability: a.Reliability(),
			RawMetadata: map[string]any{"snapshot_ts": closest.Timestamp},
			RetrievedAt: time.Now().UTC(),
		},
		Variant: VariantProse,
		Meta: model.SourceMetadata{
			Source:     a.Name(),
			URL:        closest.URL,
			Elapsed:    time.Since(start),
			Confidence: confidence,
		},
	}, nil
}
