package core

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/huangsam/moze/internal/contract"
	"github.com/huangsam/moze/internal/evalstore"
	"github.com/huangsam/moze/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateWatchScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	formID := f.createForm(t, percentDraft())

	f.submit(t, formID, "alice", "u1", rated("pct", 95))
	f.submit(t, formID, "carol", "u1", rated("pct", 85))
	f.submit(t, formID, "admin", "u1", rated("pct", 30))

	agg, ok, err := f.engine.Recompute(ctx, "u1", formID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0.70, agg.MeanScore, 1e-9)
	assert.Equal(t, schema.GradeC, agg.Grade)
	assert.Equal(t, schema.WatchTier, agg.Tier)
	assert.Equal(t, 3, agg.SubmissionCount)
	assert.True(t, testNow.Equal(agg.ComputedAt))
}

func TestRankAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	formID := f.createForm(t, percentDraft())

	f.submit(t, formID, "alice", "u1", rated("pct", 95))
	f.submit(t, formID, "carol", "u1", rated("pct", 85))
	f.submit(t, formID, "admin", "u1", rated("pct", 30))
	f.submit(t, formID, "bob", "u2", rated("pct", 30))

	report, err := f.engine.RankAll(ctx, "admin", formID)
	require.NoError(t, err)
	assert.False(t, report.Redacted)
	require.Equal(t, 2, report.Len())

	var order []string
	for i, e := range report.All() {
		assert.Equal(t, i+1, e.Rank)
		order = append(order, e.Unit.ID)
	}
	assert.Equal(t, []string{"u2", "u1"}, order)
	assert.Equal(t, "South Center", report.Entries[0].Unit.Name)
	assert.Equal(t, schema.UrgentTier, report.Entries[0].Aggregate.Tier)

	require.Len(t, report.Unevaluated, 1)
	assert.Equal(t, "u3", report.Unevaluated[0].ID)

	watch := 0
	for range report.ByTier(schema.WatchTier) {
		watch++
	}
	assert.Equal(t, 1, watch)
}

func TestRankAllDefaultsToAllForms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inspection := f.createForm(t, inspectionDraft())
	spot := f.createForm(t, percentDraft())

	f.submit(t, inspection, "alice", "u1", choice("q1", "good"), rated("q2", 5))
	f.submit(t, spot, "alice", "u1", rated("pct", 40))

	report, err := f.engine.RankAll(ctx, "admin", "")
	require.NoError(t, err)
	assert.Equal(t, schema.AllFormsKey, report.FormKey)
	require.Equal(t, 1, report.Len())
	assert.InDelta(t, 0.70, report.Entries[0].Aggregate.MeanScore, 1e-9)
	assert.Equal(t, 2, report.Entries[0].Aggregate.SubmissionCount)
	assert.Len(t, report.Unevaluated, 2)
}

func TestRankAllEmpty(t *testing.T) {
	f := newFixture(t)
	report, err := f.engine.RankAll(context.Background(), "admin", schema.AllFormsKey)
	require.NoError(t, err)
	assert.Zero(t, report.Len())
	assert.Len(t, report.Unevaluated, 3)
}

func TestRecomputeRemovesEmptyAggregate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stale := func(unitID, formKey string, _ []float64) (schema.UnitAggregate, bool) {
		return schema.UnitAggregate{UnitID: unitID, FormKey: formKey, MeanScore: 0.5, SubmissionCount: 1,
			Grade: schema.GradeD, Tier: schema.UrgentTier}, true
	}
	_, _, err := f.store.RecomputeAggregate(ctx, "u2", schema.AllFormsKey, stale)
	require.NoError(t, err)

	_, ok, err := f.engine.Recompute(ctx, "u2", schema.AllFormsKey)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = f.store.GetAggregate(ctx, "u2", schema.AllFormsKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRefreshAllAppliesNewBands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	formID := f.createForm(t, percentDraft())
	f.submit(t, formID, "alice", "u1", rated("pct", 70))

	report, err := f.engine.UnitReport(ctx, "admin", "u1", formID)
	require.NoError(t, err)
	assert.Equal(t, schema.GradeC, report.Aggregate.Grade)

	strict, err := schema.NewGradeBands(map[schema.Grade]float64{
		schema.GradeA: 0.95, schema.GradeB: 0.9, schema.GradeC: 0.8, schema.GradeD: 0.7,
	})
	require.NoError(t, err)
	r := testRoster(t)
	stricter := NewEngine(f.store, r, r, WithGradeBands(strict), WithLogger(quietLogger()))

	_, err = stricter.RefreshAll(ctx, "alice")
	assert.ErrorIs(t, err, schema.ErrForbidden)

	count, err := stricter.RefreshAll(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	report, err = stricter.UnitReport(ctx, "admin", "u1", formID)
	require.NoError(t, err)
	assert.Equal(t, schema.GradeD, report.Aggregate.Grade)
	assert.Equal(t, schema.UrgentTier, report.Aggregate.Tier)
}

func TestRankAllStorageFailure(t *testing.T) {
	store := new(evalstore.MockEvalStore)
	engine := newMockEngine(store, stubOracle{admin: true})
	store.On("ListAggregates", anyCtx, schema.AllFormsKey).Return(nil, schema.StorageError("list aggregates", assert.AnError))

	_, err := engine.RankAll(context.Background(), "admin", "")
	assert.ErrorIs(t, err, schema.ErrStorageUnavailable)
	store.AssertExpectations(t)
}

// pausingStore holds its first aggregate rebuild open until released, after
// the unit's scores were read.
type pausingStore struct {
	contract.EvalStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *pausingStore) InsertSubmission(ctx context.Context, sub schema.Submission, form schema.Form, unique bool, summarize contract.Summarizer) (bool, error) {
	return s.EvalStore.InsertSubmission(ctx, sub, form, unique, func(unitID, formKey string, scores []float64) (schema.UnitAggregate, bool) {
		s.once.Do(func() {
			close(s.entered)
			<-s.release
		})
		return summarize(unitID, formKey, scores)
	})
}

func TestSubmitAcrossEnginesSharingStore(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "moze.db")
	open := func() *evalstore.EvalStoreImpl {
		store, err := evalstore.NewEvalStore(schema.SQLiteBackend, dbPath)
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	}
	r := testRoster(t)
	opts := []Option{WithClock(func() time.Time { return testNow }), WithLogger(quietLogger())}

	paused := &pausingStore{EvalStore: open(), entered: make(chan struct{}), release: make(chan struct{})}
	first := NewEngine(paused, r, r, opts...)
	second := NewEngine(open(), r, r, opts...)

	formID, err := second.CreateForm(ctx, "admin", percentDraft())
	require.NoError(t, err)

	firstDone := make(chan error, 1)
	go func() {
		_, err := first.Submit(ctx, SubmitRequest{FormID: formID, EvaluatorID: "alice", UnitID: "u1",
			Answers: []schema.Answer{rated("pct", 90)}})
		firstDone <- err
	}()
	<-paused.entered

	secondDone := make(chan error, 1)
	go func() {
		_, err := second.Submit(ctx, SubmitRequest{FormID: formID, EvaluatorID: "carol", UnitID: "u1",
			Answers: []schema.Answer{rated("pct", 10)}})
		secondDone <- err
	}()
	select {
	case err := <-secondDone:
		t.Fatalf("second engine finished while the first held the unit: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
	close(paused.release)
	require.NoError(t, <-firstDone)
	require.NoError(t, <-secondDone)

	report, err := second.UnitReport(ctx, "admin", "u1", formID)
	require.NoError(t, err)
	require.True(t, report.Evaluated)
	assert.Equal(t, 2, report.Aggregate.SubmissionCount)
	assert.InDelta(t, 0.50, report.Aggregate.MeanScore, 1e-9)
	assert.Equal(t, schema.GradeD, report.Aggregate.Grade)
	assert.Equal(t, schema.UrgentTier, report.Aggregate.Tier)
}
