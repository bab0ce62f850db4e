package fusion

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/deadonfilm/morbid/internal/llm"
	"github.com/deadonfilm/morbid/internal/model"
	"github.com/deadonfilm/morbid/internal/util"
)

// synthesize turns the fusion input into a cleaned record. With no
// synthesizer configured it falls back to the best single item by
// reliability, then confidence.
func (e *Engine) synthesize(ctx context.Context, input model.FusionInput) (*model.CleanedRecord, float64, error) {
	if e.synth == nil {
		return fallbackRecord(input), 0, nil
	}

	resp, err := e.synth.Synthesize(ctx, llm.SynthesisRequest{
		Subject: input.Subject,
		Items:   input.Items,
	})
	if err != nil {
		return nil, 0, err
	}

	record := DecodeRecord(resp.Text)
	return record, resp.Cost, nil
}

// DecodeRecord parses synthesis output into a CleanedRecord. Malformed
// output yields a non-substantive record rather than an error: "we
// don't know" must never be promoted to published content, and a
// decode failure is exactly that.
func DecodeRecord(text string) *model.CleanedRecord {
	var record model.CleanedRecord
	if err := json.Unmarshal([]byte(util.StripCodeFences(text)), &record); err != nil {
		return &model.CleanedRecord{HasSubstantive: false}
	}
	return &record
}

// fallbackRecord builds a record from the highest-precedence item:
// reliability tier first, confidence as the tiebreaker. This is the
// same precedence the synthesis prompt demands.
func fallbackRecord(input model.FusionInput) *model.CleanedRecord {
	items := make([]model.EvidenceItem, len(input.Items))
	copy(items, input.Items)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Reliability != items[j].Reliability {
			return items[i].Reliability > items[j].Reliability
		}
		return items[i].Confidence > items[j].Confidence
	})

	best := items[0]
	record := &model.CleanedRecord{
		Circumstances:  best.Narrative,
		Disputed:       best.Disputed,
		DeathLocation:  best.Location,
		Factors:        model.FilterFactors(best.Factors),
		HasSubstantive: best.Narrative != "",
	}

	// Without synthesis there is no extracted cause; the confidence
	// of the narrative carries over as the cause confidence floor.
	record.CauseConfidence = best.Confidence
	return record
}
