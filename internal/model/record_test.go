package model

import (
	"reflect"
	"testing"
)

func TestValidManner(t *testing.T) {
	for _, m := range []MannerOfDeath{MannerNatural, MannerAccident, MannerSuicide,
		MannerHomicide, MannerUndetermined, MannerPending} {
		if !ValidManner(m) {
			t.Errorf("Expected %q to be valid", m)
		}
	}

	for _, m := range []MannerOfDeath{"", "murder", "NATURAL", "natural "} {
		if ValidManner(m) {
			t.Errorf("Expected %q to be invalid", m)
		}
	}
}

func TestFilterFactors_Intersection(t *testing.T) {
	got := FilterFactors([]string{"overdose", "werewolf_attack", "sudden", "heart"})
	want := []string{"overdose", "sudden"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestFilterFactors_OrderAndDuplicates(t *testing.T) {
	got := FilterFactors([]string{"sudden", "overdose", "sudden", "overdose"})
	want := []string{"sudden", "overdose"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected input order preserved without duplicates, got %v", got)
	}
}

func TestFilterFactors_Empty(t *testing.T) {
	if got := FilterFactors(nil); len(got) != 0 {
		t.Errorf("Expected empty result for nil input, got %v", got)
	}
	if got := FilterFactors([]string{"not_a_tag"}); len(got) != 0 {
		t.Errorf("Expected empty result for unknown tags, got %v", got)
	}
}

func TestCleanedRecord_Publishable(t *testing.T) {
	tests := []struct {
		name   string
		record CleanedRecord
		want   bool
	}{
		{"substantive with cause", CleanedRecord{HasSubstantive: true, Cause: "heart failure"}, true},
		{"substantive without cause", CleanedRecord{HasSubstantive: true}, false},
		{"cause without substance flag", CleanedRecord{Cause: "heart failure"}, false},
		{"zero value", CleanedRecord{}, false},
	}
	for _, tt := range tests {
		if got := tt.record.Publishable(); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestCleanedRecord_Normalize(t *testing.T) {
	record := CleanedRecord{
		Cause:           "cancer",
		CauseConfidence: 1.7,
		Manner:          "assassination",
		Factors:         []string{"long_illness", "made_up_tag"},
		HasSubstantive:  true,
	}
	record.Normalize()

	if record.CauseConfidence != 1.0 {
		t.Errorf("Expected confidence clamped to 1.0, got %v", record.CauseConfidence)
	}
	if record.Manner != MannerUndetermined {
		t.Errorf("Expected invalid manner reset to undetermined, got %q", record.Manner)
	}
	if !reflect.DeepEqual(record.Factors, []string{"long_illness"}) {
		t.Errorf("Expected out-of-vocabulary factors dropped, got %v", record.Factors)
	}
}

func TestCleanedRecord_NormalizeNegativeConfidence(t *testing.T) {
	record := CleanedRecord{CauseConfidence: -0.3}
	record.Normalize()
	if record.CauseConfidence != 0 {
		t.Errorf("Expected confidence clamped to 0, got %v", record.CauseConfidence)
	}
}

func TestSubject_NeedsEnrichment(t *testing.T) {
	if (Subject{Death: "2001-05-02"}).NeedsEnrichment() != true {
		t.Error("Expected dead subject without cause to need enrichment")
	}
	if (Subject{Death: "2001-05-02", Cause: "stroke"}).NeedsEnrichment() {
		t.Error("Expected subject with cause to be done")
	}
	if (Subject{}).NeedsEnrichment() {
		t.Error("Expected living subject to be ineligible")
	}
}

func TestSubject_DeathYear(t *testing.T) {
	tests := []struct {
		death string
		want  int
	}{
		{"1997-03-09", 1997},
		{"1984", 1984},
		{"sometime", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := (Subject{Death: tt.death}).DeathYear(); got != tt.want {
			t.Errorf("DeathYear(%q): expected %d, got %d", tt.death, tt.want, got)
		}
	}
}
