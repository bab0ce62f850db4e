package source

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/deadonfilm/morbid/internal/model"
)

// FindAGraveAdapter searches a user-contributed memorial site. The
// content is often specific (dates, epitaphs, contributor notes on the
// death) but the publisher tier is the lowest: a highly specific item
// here can carry high confidence without ever outranking the press.
type FindAGraveAdapter struct {
	fetcher *Fetcher
	baseURL string
}

// NewFindAGraveAdapter creates the memorial-site adapter.
func NewFindAGraveAdapter(fetcher *Fetcher) *FindAGraveAdapter {
	return &FindAGraveAdapter{
		fetcher: fetcher,
		baseURL: "https://www.findagrave.com",
	}
}

func (a *FindAGraveAdapter) Name() string                       { return "findagrave" }
func (a *FindAGraveAdapter) Reliability() model.ReliabilityTier { return model.TierUserGenerated }
func (a *FindAGraveAdapter) IsAvailable() bool                  { return true }
func (a *FindAGraveAdapter) Metered() (bool, float64)           { return false, 0 }
func (a *FindAGraveAdapter) MinDelay() time.Duration            { return 2 * time.Second }
func (a *FindAGraveAdapter) Timeout() time.Duration             { return 30 * time.Second }

// Lookup searches memorials for the subject's name and death year and
// extracts the memorial text.
func (a *FindAGraveAdapter) Lookup(ctx context.Context, subject model.Subject) (*Result, error) {
	start := time.Now()

	query := url.Values{}
	query.Set("firstname", firstName(subject.Name))
	query.Set("lastname", lastName(subject.Name))
	if year := subject.DeathYear(); year > 0 {
		query.Set("deathyear", fmt.Sprintf("%d", year))
	}
	searchURL := fmt.Sprintf("%s/memorial/search?%s", a.baseURL, query.Encode())

	page, err := a.fetcher.Get(ctx, searchURL)
	if err != nil {
		return failureResult(a.Name(), searchURL, time.Since(start), err), nil
	}

	text := ExtractText(page.Body)
	if blocked, reason := IsBlockedResponse(page.Status, page.Body, text); blocked {
		return nil, &BlockedError{Source: a.Name(), URL: searchURL, Status: page.Status, Reason: reason}
	}

	narrative := DeathNarrative(text, 1500)
	confidence := ScoreConfidence(narrative, subject.Name, VariantProse)
	if confidence <= confidenceBase {
		return failureResult(a.Name(), searchURL, time.Since(start), nil), nil
	}

	return &Result{
		Evidence: &model.EvidenceItem{
			Source:      a.Name(),
			SourceURL:   page.FinalURL,
			Narrative:   narrative,
			Confidence:  confidence,
			Reliability: a.Reliability(),
			RetrievedAt: time.Now().UTC(),
		},
		Variant: VariantProse,
		Meta: model.SourceMetadata{
			Source:     a.Name(),
			URL:        page.FinalURL,
			Elapsed:    time.Since(start),
			Confidence: confidence,
		},
	}, nil
}

func firstName(full string) string {
	for i := 0; i < len(full); i++ {
		if full[i] == ' ' {
			return full[:i]
		}
	}
	return full
}

func lastName(full string) string {
	for i := len(full) - 1; i >= 0; i-- {
		if full[i] == ' ' {
			return full[i+1:]
		}
	}
	return ""
}
