package fusion

import (
	"testing"

	"github.com/deadonfilm/morbid/internal/model"
)

func TestDecodeRecord_Valid(t *testing.T) {
	record := DecodeRecord(`{
		"cause_of_death": "pneumonia",
		"cause_confidence": 0.8,
		"manner_of_death": "natural",
		"has_substantive_content": true
	}`)

	if record.Cause != "pneumonia" {
		t.Errorf("Expected cause pneumonia, got %q", record.Cause)
	}
	if record.CauseConfidence != 0.8 {
		t.Errorf("Expected confidence 0.8, got %v", record.CauseConfidence)
	}
	if !record.HasSubstantive {
		t.Error("Expected substantive flag preserved")
	}
}

func TestDecodeRecord_FenceWrapped(t *testing.T) {
	record := DecodeRecord("```json\n{\"cause_of_death\": \"stroke\", \"has_substantive_content\": true}\n```")
	if record.Cause != "stroke" {
		t.Errorf("Expected fence-wrapped JSON to decode, got %q", record.Cause)
	}
}

func TestDecodeRecord_MalformedIsNonSubstantive(t *testing.T) {
	for _, input := range []string{
		"",
		"I'm sorry, I cannot determine this.",
		`{"cause_of_death": "stroke"`,
		"```json\nnot json\n```",
	} {
		record := DecodeRecord(input)
		if record == nil {
			t.Fatalf("Expected a record for %q, got nil", input)
		}
		if record.HasSubstantive {
			t.Errorf("Expected malformed input %q to be non-substantive", input)
		}
		if record.Publishable() {
			t.Errorf("Expected malformed input %q to be unpublishable", input)
		}
	}
}

func TestFallbackRecord_ReliabilityPrecedence(t *testing.T) {
	input := model.FusionInput{
		Items: []model.EvidenceItem{
			{Source: "forum", Reliability: model.TierUserGenerated, Confidence: 0.95, Narrative: "forum story"},
			{Source: "registry", Reliability: model.TierOfficial, Confidence: 0.4, Narrative: "official account", Location: "Paris"},
			{Source: "paper", Reliability: model.TierSecondary, Confidence: 0.9, Narrative: "newspaper account"},
		},
	}

	record := fallbackRecord(input)
	if record.Circumstances != "official account" {
		t.Errorf("Expected highest reliability to win regardless of confidence, got %q", record.Circumstances)
	}
	if record.DeathLocation != "Paris" {
		t.Errorf("Expected location from winning item, got %q", record.DeathLocation)
	}
}

func TestFallbackRecord_ConfidenceTiebreak(t *testing.T) {
	input := model.FusionInput{
		Items: []model.EvidenceItem{
			{Source: "a", Reliability: model.TierSecondary, Confidence: 0.5, Narrative: "weaker"},
			{Source: "b", Reliability: model.TierSecondary, Confidence: 0.7, Narrative: "stronger"},
		},
	}

	record := fallbackRecord(input)
	if record.Circumstances != "stronger" {
		t.Errorf("Expected confidence tiebreak within a tier, got %q", record.Circumstances)
	}
	if record.CauseConfidence != 0.7 {
		t.Errorf("Expected winning confidence carried over, got %v", record.CauseConfidence)
	}
}

func TestFallbackRecord_EmptyNarrativeUnpublishable(t *testing.T) {
	input := model.FusionInput{
		Items: []model.EvidenceItem{
			{Source: "registry", Reliability: model.TierOfficial, Confidence: 0.9},
		},
	}
	if record := fallbackRecord(input); record.Publishable() {
		t.Error("Expected evidence without narrative to stay unpublishable")
	}
}
