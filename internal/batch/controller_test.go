package batch

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deadonfilm/morbid/internal/checkpoint"
	"github.com/deadonfilm/morbid/internal/model"
	"github.com/deadonfilm/morbid/internal/storage"
)

// fakeProvider is an in-memory JobProvider.
type fakeProvider struct {
	submitted []Request
	jobID     string
	status    string
	outcomes  []Outcome
}

func (f *fakeProvider) Submit(ctx context.Context, requests []Request) (string, error) {
	f.submitted = requests
	return f.jobID, nil
}

func (f *fakeProvider) Retrieve(ctx context.Context, jobID string) (*JobStatus, error) {
	return &JobStatus{ID: jobID, Status: f.status, Total: len(f.outcomes)}, nil
}

func (f *fakeProvider) Results(ctx context.Context, jobID string, fn func(Outcome) error) error {
	for _, outcome := range f.outcomes {
		if err := fn(outcome); err != nil {
			return err
		}
	}
	return nil
}

func newTestController(t *testing.T, provider JobProvider) (*Controller, *storage.Store, *checkpoint.Store) {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	checkpoints := checkpoint.NewStore(t.TempDir())
	cfg := model.BatchConfig{Model: "gpt-4o-mini", CompletionWindow: "24h", CheckpointInterval: 2}
	return NewController(store, checkpoints, provider, cfg), store, checkpoints
}

func seed(t *testing.T, store *storage.Store, ids ...int) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, store.InsertSubject(context.Background(), model.Subject{
			PersonID: id, Name: "Subject", Death: "1990-01-01",
		}))
	}
}

func TestController_Submit(t *testing.T) {
	provider := &fakeProvider{jobID: "batch_1"}
	controller, store, checkpoints := newTestController(t, provider)
	seed(t, store, 1, 2, 3)

	jobID, count, err := controller.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "batch_1", jobID)
	assert.Equal(t, 3, count)

	require.Len(t, provider.submitted, 3)
	assert.Equal(t, "subj-1", provider.submitted[0].Token)
	assert.Contains(t, provider.submitted[0].Prompt, "Subject")

	// The checkpoint must exist the moment Submit returns.
	cp, err := checkpoints.Load("batch_1")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, checkpoint.StateSubmitted, cp.State)
	assert.Equal(t, []int{1, 2, 3}, cp.Requested)
	assert.Equal(t, 3, cp.Submitted)
}

func TestController_SubmitExcludesInflight(t *testing.T) {
	provider := &fakeProvider{jobID: "batch_2"}
	controller, store, checkpoints := newTestController(t, provider)
	seed(t, store, 1, 2, 3)

	older := checkpoint.New("batch_1", 2)
	older.Requested = []int{1, 3}
	require.NoError(t, checkpoints.Save(older))

	_, count, err := controller.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, "subj-2", provider.submitted[0].Token)
}

func TestController_SubmitNothingEligible(t *testing.T) {
	provider := &fakeProvider{jobID: "batch_1"}
	controller, _, _ := newTestController(t, provider)

	jobID, count, err := controller.Submit(context.Background())
	require.NoError(t, err)
	assert.Empty(t, jobID)
	assert.Zero(t, count)
	assert.Nil(t, provider.submitted)
}

func TestController_ApplyCleanRunRetiresCheckpoint(t *testing.T) {
	provider := &fakeProvider{
		jobID:  "batch_1",
		status: JobEnded,
		outcomes: []Outcome{
			{Token: "subj-1", Status: OutcomeSucceeded,
				Body: `{"cause_of_death": "stroke", "has_substantive_content": true}`},
			{Token: "subj-2", Status: OutcomeSucceeded,
				Body: `{"has_substantive_content": false}`},
		},
	}
	controller, store, checkpoints := newTestController(t, provider)
	seed(t, store, 1, 2)

	_, _, err := controller.Submit(context.Background())
	require.NoError(t, err)

	summary, err := controller.Apply(context.Background(), "batch_1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Applied)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Changed)
	assert.True(t, summary.Retired)

	subject, err := store.GetSubject(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "stroke", subject.Cause)

	// Subject 2 answered honestly with nothing; no fields written.
	subject, err = store.GetSubject(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, subject.Cause)

	cp, err := checkpoints.Load("batch_1")
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestController_ApplyKeepsCheckpointOnErrors(t *testing.T) {
	provider := &fakeProvider{
		jobID:  "batch_1",
		status: JobEnded,
		outcomes: []Outcome{
			{Token: "subj-1", Status: OutcomeSucceeded,
				Body: `{"cause_of_death": "stroke", "has_substantive_content": true}`},
			{Token: "subj-2", Status: OutcomeErrored, Err: "rate limited"},
			{Token: "subj-3", Status: OutcomeExpired},
		},
	}
	controller, store, checkpoints := newTestController(t, provider)
	seed(t, store, 1, 2, 3)

	_, _, err := controller.Submit(context.Background())
	require.NoError(t, err)

	summary, err := controller.Apply(context.Background(), "batch_1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Errored)
	assert.Equal(t, 1, summary.Expired)
	assert.False(t, summary.Retired)

	cp, err := checkpoints.Load("batch_1")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 3, cp.AppliedCount())
}

func TestController_ApplyNoInfoIsTerminal(t *testing.T) {
	provider := &fakeProvider{
		jobID:  "batch_1",
		status: JobEnded,
		outcomes: []Outcome{
			{Token: "subj-1", Status: OutcomeSucceeded,
				Body: `{"has_substantive_content": false}`},
		},
	}
	controller, store, _ := newTestController(t, provider)
	seed(t, store, 1)

	_, _, err := controller.Submit(context.Background())
	require.NoError(t, err)

	summary, err := controller.Apply(context.Background(), "batch_1")
	require.NoError(t, err)
	assert.True(t, summary.Retired)

	// Nothing was written, but the outcome is final: the subject must
	// leave the eligible set so it is never researched twice.
	subject, err := store.GetSubject(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, subject.Cause)

	eligible, err := store.EligibleSubjects(context.Background(), 0, nil)
	require.NoError(t, err)
	assert.Empty(t, eligible)

	provider.jobID = "batch_2"
	_, count, err := controller.Submit(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestController_ApplyCountsBadTokenOnce(t *testing.T) {
	provider := &fakeProvider{
		jobID:  "batch_1",
		status: JobEnded,
		outcomes: []Outcome{
			{Token: "not-a-token", Status: OutcomeSucceeded, Body: `{}`},
			{Token: "subj-1", Status: OutcomeSucceeded,
				Body: `{"cause_of_death": "stroke", "has_substantive_content": true}`},
		},
	}
	controller, store, checkpoints := newTestController(t, provider)
	seed(t, store, 1)

	_, _, err := controller.Submit(context.Background())
	require.NoError(t, err)

	summary, err := controller.Apply(context.Background(), "batch_1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Errored)
	assert.False(t, summary.Retired)

	// The checkpoint survived because of the bad line; a second pass
	// over the same feed must not count it again.
	summary, err = controller.Apply(context.Background(), "batch_1")
	require.NoError(t, err)
	assert.Zero(t, summary.Errored)
	assert.Equal(t, 1, summary.Skipped)

	cp, err := checkpoints.Load("batch_1")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 1, cp.Errored)
	assert.Equal(t, []string{"not-a-token"}, cp.BadTokens)
}

func TestController_ApplyResumeSkipsApplied(t *testing.T) {
	provider := &fakeProvider{
		jobID:  "batch_1",
		status: JobEnded,
		outcomes: []Outcome{
			{Token: "subj-1", Status: OutcomeSucceeded,
				Body: `{"cause_of_death": "stroke", "has_substantive_content": true}`},
			{Token: "subj-2", Status: OutcomeSucceeded,
				Body: `{"cause_of_death": "fall", "has_substantive_content": true}`},
		},
	}
	controller, store, checkpoints := newTestController(t, provider)
	seed(t, store, 1, 2)

	_, _, err := controller.Submit(context.Background())
	require.NoError(t, err)

	// Simulate a crash after subject 1 was applied and saved.
	cp, err := checkpoints.Load("batch_1")
	require.NoError(t, err)
	cp.MarkApplied(1)
	cp.Succeeded = 1
	cp.Changed = 1
	require.NoError(t, checkpoints.Save(cp))

	summary, err := controller.Apply(context.Background(), "batch_1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Applied)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Succeeded)
	assert.True(t, summary.Retired)

	subject, err := store.GetSubject(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "fall", subject.Cause)
}

func TestController_ApplyRecordsParseFailures(t *testing.T) {
	provider := &fakeProvider{
		jobID:  "batch_1",
		status: JobEnded,
		outcomes: []Outcome{
			{Token: "subj-1", Status: OutcomeSucceeded, Body: "total garbage"},
		},
	}
	controller, store, _ := newTestController(t, provider)
	seed(t, store, 1)

	_, _, err := controller.Submit(context.Background())
	require.NoError(t, err)

	summary, err := controller.Apply(context.Background(), "batch_1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 0, summary.Changed)

	failures, err := store.PendingFailures(context.Background(), "batch_1")
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, 1, failures[0].PersonID)
	assert.Equal(t, "total garbage", failures[0].RawResponse)
	assert.Equal(t, model.FailureJSONParse, failures[0].ErrorClass)
}

func TestController_ApplyStillProcessing(t *testing.T) {
	provider := &fakeProvider{jobID: "batch_1", status: JobProcessing}
	controller, store, _ := newTestController(t, provider)
	seed(t, store, 1)

	_, _, err := controller.Submit(context.Background())
	require.NoError(t, err)

	_, err = controller.Apply(context.Background(), "batch_1")
	assert.Error(t, err)
}

func TestController_ApplyUnknownJob(t *testing.T) {
	controller, _, _ := newTestController(t, &fakeProvider{})
	_, err := controller.Apply(context.Background(), "never-submitted")
	assert.Error(t, err)
}

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantClass string
	}{
		{"valid", `{"cause_of_death": "stroke", "has_substantive_content": true}`, ""},
		{"fenced", "```json\n{\"cause_of_death\": \"stroke\"}\n```", ""},
		{"malformed json", "not json", model.FailureJSONParse},
		{"bad death date", `{"death_date": "next tuesday"}`, model.FailureDateParse},
		{"year-only death date", `{"death_date": "1983"}`, ""},
		{"invalid manner", `{"manner_of_death": "assassination"}`, model.FailureValidation},
	}

	for _, tt := range tests {
		record, class := ParseRecord(tt.body)
		assert.Equal(t, tt.wantClass, class, tt.name)
		if tt.wantClass == "" {
			assert.NotNil(t, record, tt.name)
		} else {
			assert.Nil(t, record, tt.name)
		}
	}
}

func TestParseRecord_NormalizesOutput(t *testing.T) {
	record, class := ParseRecord(`{
		"cause_of_death": "overdose",
		"cause_confidence": 3.5,
		"notable_factors": ["overdose", "invented_tag"],
		"has_substantive_content": true
	}`)
	require.Empty(t, class)
	require.NotNil(t, record)
	assert.Equal(t, 1.0, record.CauseConfidence)
	assert.Equal(t, []string{"overdose"}, record.Factors)
}

func TestTokenRoundTrip(t *testing.T) {
	id, err := DecodeToken(EncodeToken(31415))
	require.NoError(t, err)
	assert.Equal(t, 31415, id)

	_, err = DecodeToken("wrong-31415")
	assert.Error(t, err)
	_, err = DecodeToken("subj-abc")
	assert.Error(t, err)
}
