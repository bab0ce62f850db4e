package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deadonfilm/morbid/internal/model"
)

func TestApplyRecord_WritesFieldsAndHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedSubject(t, store, 1, "John Cazale", "1978-03-13")

	record := &model.CleanedRecord{
		Cause:           "bone cancer",
		CauseConfidence: 0.9,
		Circumstances:   "Died in New York after a long illness.",
		Manner:          model.MannerNatural,
		Factors:         []string{"long_illness", "young_age"},
		DeathLocation:   "New York City",
		HasSubstantive:  true,
	}

	changed, err := store.ApplyRecord(ctx, 1, record, "fusion", "")
	require.NoError(t, err)
	assert.Equal(t, 5, changed)

	subject, err := store.GetSubject(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "bone cancer", subject.Cause)
	assert.Equal(t, 0.9, subject.CauseConfidence)
	assert.Equal(t, model.MannerNatural, subject.Manner)
	assert.Equal(t, []string{"long_illness", "young_age"}, subject.Factors)
	assert.NotNil(t, subject.EnrichedAt)

	history, err := store.HistoryFor(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, history, 5)
	for _, change := range history {
		assert.Equal(t, "fusion", change.Source)
		assert.Empty(t, change.OldValue)
	}
}

func TestApplyRecord_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedSubject(t, store, 1, "John Cazale", "1978-03-13")

	record := &model.CleanedRecord{Cause: "bone cancer", HasSubstantive: true}

	changed, err := store.ApplyRecord(ctx, 1, record, "batch", "job-1")
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	// Same record again: nothing changes, no history rows appear.
	changed, err = store.ApplyRecord(ctx, 1, record, "batch", "job-1")
	require.NoError(t, err)
	assert.Equal(t, 0, changed)

	history, err := store.HistoryFor(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestApplyRecord_FirstWriterWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedSubject(t, store, 1, "Subject", "1990-01-01")

	first := &model.CleanedRecord{Cause: "heart attack", DeathLocation: "Chicago", HasSubstantive: true}
	_, err := store.ApplyRecord(ctx, 1, first, "fusion", "")
	require.NoError(t, err)

	// A later record only fills fields the first one left empty.
	second := &model.CleanedRecord{
		Cause:          "stroke",
		Circumstances:  "Collapsed at home.",
		HasSubstantive: true,
	}
	changed, err := store.ApplyRecord(ctx, 1, second, "batch", "job-9")
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	subject, err := store.GetSubject(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "heart attack", subject.Cause)
	assert.Equal(t, "Collapsed at home.", subject.Circumstances)

	// No history row for the losing cause write.
	history, err := store.HistoryFor(ctx, 1)
	require.NoError(t, err)
	fields := make([]string, 0, len(history))
	for _, change := range history {
		fields = append(fields, change.Field)
	}
	assert.ElementsMatch(t, []string{"cause_of_death", "death_location", "circumstances"}, fields)
}

func TestApplyRecord_ConfidenceOnlyWithFreshCause(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedSubject(t, store, 1, "Subject", "1990-01-01")

	_, err := store.ApplyRecord(ctx, 1, &model.CleanedRecord{
		Cause: "stroke", CauseConfidence: 0.7, HasSubstantive: true,
	}, "fusion", "")
	require.NoError(t, err)

	// A losing cause write must not smuggle in its confidence.
	_, err = store.ApplyRecord(ctx, 1, &model.CleanedRecord{
		Cause: "heart attack", CauseConfidence: 0.99, HasSubstantive: true,
	}, "batch", "job-1")
	require.NoError(t, err)

	subject, err := store.GetSubject(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "stroke", subject.Cause)
	assert.Equal(t, 0.7, subject.CauseConfidence)
}

func TestApplyRecord_UnknownSubject(t *testing.T) {
	store := newTestStore(t)
	_, err := store.ApplyRecord(context.Background(), 404, &model.CleanedRecord{
		Cause: "anything", HasSubstantive: true,
	}, "fusion", "")
	assert.Error(t, err)
}
