package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/deadonfilm/morbid/internal/model"
)

// Wikidata properties of interest.
const (
	propCauseOfDeath  = "P509"
	propMannerOfDeath = "P1196"
	propPlaceOfDeath  = "P20"
)

// WikidataAdapter reads structured death claims from the Wikidata
// entity API. Registry-backed structured claims, so it carries the
// official tier and the structured confidence ceiling.
type WikidataAdapter struct {
	fetcher *Fetcher
	baseURL string
}

// NewWikidataAdapter creates the Wikidata adapter.
func NewWikidataAdapter(fetcher *Fetcher) *WikidataAdapter {
	return &WikidataAdapter{
		fetcher: fetcher,
		baseURL: "https://www.wikidata.org",
	}
}

func (a *WikidataAdapter) Name() string                       { return "wikidata" }
func (a *WikidataAdapter) Reliability() model.ReliabilityTier { return model.TierOfficial }
func (a *WikidataAdapter) IsAvailable() bool                  { return true }
func (a *WikidataAdapter) Metered() (bool, float64)           { return false, 0 }
func (a *WikidataAdapter) MinDelay() time.Duration            { return 1 * time.Second }
func (a *WikidataAdapter) Timeout() time.Duration             { return 20 * time.Second }

type wbSearchResponse struct {
	Search []struct {
		ID          string `json:"id"`
		Label       string `json:"label"`
		Description string `json:"description"`
	} `json:"search"`
}

type wbEntityResponse struct {
	Entities map[string]struct {
		Claims map[string][]struct {
			Mainsnak struct {
				Datavalue struct {
					Value struct {
						ID string `json:"id"`
					} `json:"value"`
				} `json:"datavalue"`
			} `json:"mainsnak"`
		} `json:"claims"`
		Labels map[string]struct {
			Value string `json:"value"`
		} `json:"labels"`
	} `json:"entities"`
}

// Lookup resolves the subject to an entity and reads its death claims,
// then resolves claim item ids to English labels.
func (a *WikidataAdapter) Lookup(ctx context.Context, subject model.Subject) (*Result, error) {
	start := time.Now()

	searchURL := fmt.Sprintf("%s/w/api.php?action=wbsearchentities&search=%s&language=en&format=json&type=item&limit=3",
		a.baseURL, url.QueryEscape(subject.Name))

	page, err := a.fetcher.Get(ctx, searchURL)
	if err != nil {
		return failureResult(a.Name(), searchURL, time.Since(start), err), nil
	}
	if blocked, reason := IsBlockedResponse(page.Status, page.Body, page.Body); blocked {
		return nil, &BlockedError{Source: a.Name(), URL: searchURL, Status: page.Status, Reason: reason}
	}

	var search wbSearchResponse
	if err := json.Unmarshal([]byte(page.Body), &search); err != nil {
		return failureResult(a.Name(), searchURL, time.Since(start), fmt.Errorf("decode search: %w", err)), nil
	}
	if len(search.Search) == 0 {
		return failureResult(a.Name(), searchURL, time.Since(start), nil), nil
	}
	entityID := search.Search[0].ID

	claimsURL := fmt.Sprintf("%s/wiki/Special:EntityData/%s.json", a.baseURL, entityID)
	page, err = a.fetcher.Get(ctx, claimsURL)
	if err != nil {
		return failureResult(a.Name(), claimsURL, time.Since(start), err), nil
	}
	if blocked, reason := IsBlockedResponse(page.Status, page.Body, page.Body); blocked {
		return nil, &BlockedError{Source: a.Name(), URL: claimsURL, Status: page.Status, Reason: reason}
	}

	var entity wbEntityResponse
	if err := json.Unmarshal([]byte(page.Body), &entity); err != nil {
		return failureResult(a.Name(), claimsURL, time.Since(start), fmt.Errorf("decode entity: %w", err)), nil
	}

	ent, ok := entity.Entities[entityID]
	if !ok {
		return failureResult(a.Name(), claimsURL, time.Since(start), nil), nil
	}

	cause := a.claimLabel(ctx, ent.Claims, propCauseOfDeath)
	manner := a.claimLabel(ctx, ent.Claims, propMannerOfDeath)
	place := a.claimLabel(ctx, ent.Claims, propPlaceOfDeath)

	if cause == "" && manner == "" && place == "" {
		return failureResult(a.Name(), claimsURL, time.Since(start), nil), nil
	}

	var parts []string
	if cause != "" {
		parts = append(parts, fmt.Sprintf("Recorded cause of death: %s.", cause))
	}
	if manner != "" {
		parts = append(parts, fmt.Sprintf("Recorded manner of death: %s.", manner))
	}
	if place != "" {
		parts = append(parts, fmt.Sprintf("Place of death: %s.", place))
	}
	narrative := strings.Join(parts, " ")
	confidence := ScoreConfidence(narrative+" died death", subject.Name, VariantStructured)

	return &Result{
		Evidence: &model.EvidenceItem{
			Source:      a.Name(),
			SourceURL:   claimsURL,
			Narrative:   narrative,
			Location:    place,
			Confidence:  confidence,
			Reliability: a.Reliability(),
			RawMetadata: map[string]any{"entity_id": entityID},
			RetrievedAt: time.Now().UTC(),
		},
		Variant: VariantStructured,
		Meta: model.SourceMetadata{
			Source:     a.Name(),
			URL:        claimsURL,
			Elapsed:    time.Since(start),
			Confidence: confidence,
		},
	}, nil
}

// claimLabel resolves the first value of a property to its English
// label via one extra entity fetch. Best effort: a resolution failure
// just drops that field.
func (a *WikidataAdapter) claimLabel(ctx context.Context, claims map[string][]struct {
	Mainsnak struct {
		Datavalue struct {
			Value struct {
				ID string `json:"id"`
			} `json:"value"`
		} `json:"datavalue"`
	} `json:"mainsnak"`
}, prop string) string {
	values, ok := claims[prop]
	if !ok || len(values) == 0 {
		return ""
	}
	itemID := values[0].Mainsnak.Datavalue.Value.ID
	if itemID == "" {
		return ""
	}

	labelURL := fmt.Sprintf("%s/wiki/Special:EntityData/%s.json", a.baseURL, itemID)
	page, err := a.fetcher.Get(ctx, labelURL)
	if err != nil || page.Status != 200 {
		return ""
	}

	var entity wbEntityResponse
	if err := json.Unmarshal([]byte(page.Body), &entity); err != nil {
		return ""
	}
	if ent, ok := entity.Entities[itemID]; ok {
		if label, ok := ent.Labels["en"]; ok {
			return label.Value
		}
	}
	return ""
}
