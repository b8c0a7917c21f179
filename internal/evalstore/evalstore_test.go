package evalstore

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/huangsam/moze/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *EvalStoreImpl {
	t.Helper()
	store, err := NewEvalStore(schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testForm(id string) schema.Form {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return schema.Form{
		ID:    id,
		Title: "Quarterly inspection",
		Questions: []schema.Question{
			{ID: "q1", Prompt: "Condition", Type: schema.SingleChoiceQuestion, Required: true, Weight: 2,
				Options: map[string]float64{"poor": 0, "good": 5}},
			{ID: "q2", Prompt: "Readiness", Type: schema.RatingQuestion, Required: true, Weight: 1,
				Scale: &schema.Scale{Min: 1, Max: 5}},
		},
		TargetRoles: []schema.Role{schema.EvaluatorRole},
		Window:      schema.Window{Start: now.Add(-time.Hour), End: now.Add(30 * 24 * time.Hour)},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func testSubmission(id, formID, evaluator, unit string, score *float64) schema.Submission {
	rating := 3
	sub := schema.Submission{
		ID:          id,
		FormID:      formID,
		EvaluatorID: evaluator,
		UnitID:      unit,
		SubmittedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		Answers: []schema.Answer{
			{QuestionID: "q1", Choices: []string{"good"}},
			{QuestionID: "q2", Rating: &rating},
		},
	}
	if score != nil {
		sub.Score = score
		sub.Scored = true
		sub.Grade = schema.DefaultGradeBands().Assign(*score)
	}
	return sub
}

func ptr(v float64) *float64 { return &v }

// meanOf caches the plain mean of the qualifying scores.
func meanOf(unitID, formKey string, scores []float64) (schema.UnitAggregate, bool) {
	if len(scores) == 0 {
		return schema.UnitAggregate{}, false
	}
	sum := 0.0
	for _, v := range scores {
		sum += v
	}
	return schema.UnitAggregate{
		UnitID: unitID, FormKey: formKey, MeanScore: sum / float64(len(scores)), SubmissionCount: len(scores),
		Grade: schema.GradeC, Tier: schema.WatchTier,
	}, true
}

func insert(store *EvalStoreImpl, sub schema.Submission, unique bool) error {
	_, err := store.InsertSubmission(context.Background(), sub, testForm(sub.FormID), unique, meanOf)
	return err
}

func cachedMean(t *testing.T, store *EvalStoreImpl, unitID, formKey string) (float64, int) {
	t.Helper()
	agg, ok, err := store.GetAggregate(context.Background(), unitID, formKey)
	require.NoError(t, err)
	if !ok {
		return 0, 0
	}
	return agg.MeanScore, agg.SubmissionCount
}

func TestEvalStore_Forms(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	form := testForm("f1")
	require.NoError(t, store.CreateForm(ctx, form))

	t.Run("round trip", func(t *testing.T) {
		got, err := store.GetForm(ctx, "f1")
		require.NoError(t, err)
		assert.Equal(t, form.Title, got.Title)
		assert.Equal(t, form.Questions, got.Questions)
		assert.Equal(t, form.TargetRoles, got.TargetRoles)
		assert.True(t, form.Window.Start.Equal(got.Window.Start))
		assert.True(t, form.CreatedAt.Equal(got.CreatedAt))
		assert.False(t, got.Frozen)
	})

	t.Run("missing form", func(t *testing.T) {
		_, err := store.GetForm(ctx, "nope")
		assert.ErrorIs(t, err, schema.ErrFormNotFound)
		assert.ErrorIs(t, store.ArchiveForm(ctx, "nope", time.Now()), schema.ErrFormNotFound)
		assert.ErrorIs(t, store.RenameForm(ctx, "nope", "x", time.Now()), schema.ErrFormNotFound)
	})

	t.Run("rename and archive", func(t *testing.T) {
		require.NoError(t, store.RenameForm(ctx, "f1", "Spring inspection", time.Now()))
		require.NoError(t, store.ArchiveForm(ctx, "f1", time.Now()))
		got, err := store.GetForm(ctx, "f1")
		require.NoError(t, err)
		assert.Equal(t, "Spring inspection", got.Title)
		assert.True(t, got.Archived)
	})

	t.Run("list", func(t *testing.T) {
		second := testForm("f2")
		second.CreatedAt = second.CreatedAt.Add(time.Minute)
		require.NoError(t, store.CreateForm(ctx, second))
		forms, err := store.ListForms(ctx)
		require.NoError(t, err)
		require.Len(t, forms, 2)
		assert.Equal(t, "f1", forms[0].ID)
		assert.Equal(t, "f2", forms[1].ID)
	})
}

func TestEvalStore_FreezeRules(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.CreateForm(ctx, testForm("f1")))

	redefined := testForm("f1")
	redefined.Questions[0].Weight = 10
	require.NoError(t, store.RedefineForm(ctx, redefined), "no submissions yet")

	froze, err := store.InsertSubmission(ctx, testSubmission("s1", "f1", "ev1", "u1", ptr(0.8)), redefined, true, meanOf)
	require.NoError(t, err)
	assert.True(t, froze)

	froze, err = store.InsertSubmission(ctx, testSubmission("s2", "f1", "ev2", "u1", ptr(0.6)), redefined, true, meanOf)
	require.NoError(t, err)
	assert.False(t, froze, "only the first submission freezes the form")

	got, err := store.GetForm(ctx, "f1")
	require.NoError(t, err)
	assert.True(t, got.Frozen)
	assert.InDelta(t, 10.0, got.Questions[0].Weight, 1e-9)

	assert.ErrorIs(t, store.RedefineForm(ctx, testForm("f1")), schema.ErrFormFrozen)
	assert.ErrorIs(t, store.DeleteForm(ctx, "f1"), schema.ErrFormFrozen)
	assert.NoError(t, store.RenameForm(ctx, "f1", "Renamed", time.Now()), "title stays editable")

	require.NoError(t, store.CreateForm(ctx, testForm("f2")))
	require.NoError(t, store.DeleteForm(ctx, "f2"))
	_, err = store.GetForm(ctx, "f2")
	assert.ErrorIs(t, err, schema.ErrFormNotFound)
}

func TestEvalStore_Submissions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.CreateForm(ctx, testForm("f1")))

	require.NoError(t, insert(store, testSubmission("s1", "f1", "ev1", "u1", ptr(0.95)), true))

	t.Run("duplicate rejected", func(t *testing.T) {
		err := insert(store, testSubmission("s2", "f1", "ev1", "u1", ptr(0.5)), true)
		assert.ErrorIs(t, err, schema.ErrDuplicateSubmission)
	})

	t.Run("multiple responses allowed when not unique", func(t *testing.T) {
		require.NoError(t, insert(store, testSubmission("s3", "f1", "ev2", "u1", ptr(0.85)), false))
		require.NoError(t, insert(store, testSubmission("s4", "f1", "ev2", "u1", nil), false))
	})

	t.Run("round trip", func(t *testing.T) {
		got, err := store.GetSubmission(ctx, "s1")
		require.NoError(t, err)
		require.NotNil(t, got.Score)
		assert.InDelta(t, 0.95, *got.Score, 1e-9)
		assert.Equal(t, schema.GradeA, got.Grade)
		assert.True(t, got.Scored)
		require.Len(t, got.Answers, 2)
		assert.Equal(t, 3, *got.Answers[1].Rating)

		unscored, err := store.GetSubmission(ctx, "s4")
		require.NoError(t, err)
		assert.Nil(t, unscored.Score)
		assert.False(t, unscored.Scored)

		_, err = store.GetSubmission(ctx, "missing")
		assert.ErrorIs(t, err, schema.ErrSubmissionNotFound)
	})

	t.Run("aggregates skip unscored", func(t *testing.T) {
		mean, count := cachedMean(t, store, "u1", "f1")
		assert.InDelta(t, 0.90, mean, 1e-9)
		assert.Equal(t, 2, count)

		_, count = cachedMean(t, store, "u1", schema.AllFormsKey)
		assert.Equal(t, 2, count)
	})

	t.Run("list with filters", func(t *testing.T) {
		subs, err := store.ListSubmissions(ctx, schema.SubmissionFilter{UnitID: "u1"})
		require.NoError(t, err)
		assert.Len(t, subs, 3)

		unscored, err := store.ListSubmissions(ctx, schema.SubmissionFilter{OnlyUnscored: true})
		require.NoError(t, err)
		require.Len(t, unscored, 1)
		assert.Equal(t, "s4", unscored[0].ID)

		mine, err := store.ListSubmissions(ctx, schema.SubmissionFilter{EvaluatorID: "ev1", FormID: "f1"})
		require.NoError(t, err)
		assert.Len(t, mine, 1)
	})

	t.Run("count and has", func(t *testing.T) {
		count, err := store.CountSubmissions(ctx, "f1")
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		has, err := store.HasSubmission(ctx, "f1", "ev1", "u1")
		require.NoError(t, err)
		assert.True(t, has)
	})
}

func TestEvalStore_Overrides(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.CreateForm(ctx, testForm("f1")))
	require.NoError(t, insert(store, testSubmission("s1", "f1", "ev1", "u1", ptr(0.3)), true))
	require.NoError(t, insert(store, testSubmission("s2", "f1", "ev2", "u1", nil), true))

	at := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	t.Run("void frees the duplicate slot", func(t *testing.T) {
		entry := schema.AuditEntry{At: at, ActorID: "admin", Action: schema.AuditVoid, SubmissionID: "s1", Detail: "entered twice"}
		require.NoError(t, store.VoidSubmission(ctx, "s1", entry, meanOf))
		require.NoError(t, store.VoidSubmission(ctx, "s1", entry, meanOf), "voiding twice changes nothing")
		_, count := cachedMean(t, store, "u1", "f1")
		assert.Zero(t, count, "no qualifying submission left")

		got, err := store.GetSubmission(ctx, "s1")
		require.NoError(t, err)
		assert.True(t, got.Voided)

		has, err := store.HasSubmission(ctx, "f1", "ev1", "u1")
		require.NoError(t, err)
		assert.False(t, has)

		require.NoError(t, insert(store, testSubmission("s3", "f1", "ev1", "u1", ptr(0.6)), true))
	})

	t.Run("override scores an unscored submission", func(t *testing.T) {
		require.NoError(t, store.OverrideScore(ctx, "s2", 0.7, schema.GradeC, schema.AuditEntry{At: at.Add(time.Minute), ActorID: "admin", Action: schema.AuditOverride, SubmissionID: "s2"}, meanOf))
		got, err := store.GetSubmission(ctx, "s2")
		require.NoError(t, err)
		assert.True(t, got.Scored)
		assert.True(t, got.Override)
		assert.Equal(t, schema.GradeC, got.Grade)
	})

	t.Run("missing submission", func(t *testing.T) {
		err := store.VoidSubmission(ctx, "nope", schema.AuditEntry{}, meanOf)
		assert.ErrorIs(t, err, schema.ErrSubmissionNotFound)

		err = store.OverrideScore(ctx, "s1", 0.5, schema.GradeD, schema.AuditEntry{}, meanOf)
		assert.ErrorIs(t, err, schema.ErrSubmissionNotFound, "s1 is voided")
	})

	t.Run("audit newest first", func(t *testing.T) {
		entries, err := store.ListAudit(ctx, 10)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, schema.AuditOverride, entries[0].Action)
		assert.Equal(t, schema.AuditVoid, entries[1].Action)
		assert.Equal(t, "entered twice", entries[1].Detail)
		assert.True(t, at.Equal(entries[1].At))
	})

	t.Run("aggregates exclude voided", func(t *testing.T) {
		mean, count := cachedMean(t, store, "u1", "f1")
		assert.InDelta(t, 0.65, mean, 1e-9)
		assert.Equal(t, 2, count)
	})
}

func TestEvalStore_Aggregates(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	agg := schema.UnitAggregate{
		UnitID: "u1", FormKey: "f1", MeanScore: 0.7, SubmissionCount: 3,
		Grade: schema.GradeC, Tier: schema.WatchTier, ComputedAt: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
	}
	fixed := func(a schema.UnitAggregate) func(string, string, []float64) (schema.UnitAggregate, bool) {
		return func(string, string, []float64) (schema.UnitAggregate, bool) { return a, true }
	}

	got, ok, err := store.RecomputeAggregate(ctx, "u1", "f1", fixed(agg))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, agg, got)

	got, ok, err = store.GetAggregate(ctx, "u1", "f1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, agg, got)

	agg.MeanScore, agg.Grade, agg.Tier, agg.SubmissionCount = 0.95, schema.GradeA, schema.StableTier, 4
	_, _, err = store.RecomputeAggregate(ctx, "u1", "f1", fixed(agg))
	require.NoError(t, err)
	got, _, err = store.GetAggregate(ctx, "u1", "f1")
	require.NoError(t, err)
	assert.Equal(t, schema.StableTier, got.Tier)
	assert.Equal(t, 4, got.SubmissionCount)

	_, _, err = store.RecomputeAggregate(ctx, "u2", "f1", fixed(schema.UnitAggregate{UnitID: "u2", FormKey: "f1", Grade: schema.GradeE, Tier: schema.UrgentTier}))
	require.NoError(t, err)
	list, err := store.ListAggregates(ctx, "f1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	keys, err := store.ListAggregateKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"u1", "f1"}, {"u2", "f1"}}, keys)

	// No submissions back u1, so a real summary removes the cached row.
	_, ok, err = store.RecomputeAggregate(ctx, "u1", "f1", meanOf)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = store.GetAggregate(ctx, "u1", "f1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvalStore_InsertChecksFormVersion(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.CreateForm(ctx, testForm("f1")))

	t.Run("redefined after validation", func(t *testing.T) {
		redefined := testForm("f1")
		redefined.Questions[0].Weight = 0
		redefined.Questions[1].Scale = &schema.Scale{Min: 1, Max: 10}
		require.NoError(t, store.RedefineForm(ctx, redefined))

		// The submission was scored against the old definition.
		err := insert(store, testSubmission("s1", "f1", "ev1", "u1", ptr(0.8667)), true)
		assert.ErrorIs(t, err, schema.ErrFormFrozen)

		got, err := store.GetForm(ctx, "f1")
		require.NoError(t, err)
		assert.False(t, got.Frozen, "a rejected submission must not freeze the form")
		count, err := store.CountSubmissions(ctx, "f1")
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("deleted form", func(t *testing.T) {
		err := insert(store, testSubmission("s2", "gone", "ev1", "u1", ptr(0.5)), true)
		assert.ErrorIs(t, err, schema.ErrFormClosed)
	})

	t.Run("archived form", func(t *testing.T) {
		require.NoError(t, store.CreateForm(ctx, testForm("f2")))
		require.NoError(t, store.ArchiveForm(ctx, "f2", time.Now()))
		err := insert(store, testSubmission("s3", "f2", "ev1", "u1", ptr(0.5)), true)
		assert.ErrorIs(t, err, schema.ErrFormClosed)
	})

	t.Run("rename keeps the definition", func(t *testing.T) {
		require.NoError(t, store.CreateForm(ctx, testForm("f3")))
		require.NoError(t, store.RenameForm(ctx, "f3", "Renamed", time.Now()))
		assert.NoError(t, insert(store, testSubmission("s4", "f3", "ev1", "u1", ptr(0.5)), true))
	})
}

func TestEvalStore_AggregateFailureRollsBackSubmission(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.CreateForm(ctx, testForm("f1")))
	_, err := store.db.ExecContext(ctx, "DROP TABLE "+quoteTableName(aggregatesTable, store.backend))
	require.NoError(t, err)

	err = insert(store, testSubmission("s1", "f1", "ev1", "u1", ptr(0.8)), true)
	assert.ErrorIs(t, err, schema.ErrStorageUnavailable)

	count, err := store.CountSubmissions(ctx, "f1")
	require.NoError(t, err)
	assert.Zero(t, count)
	got, err := store.GetForm(ctx, "f1")
	require.NoError(t, err)
	assert.False(t, got.Frozen)
}

func TestEvalStore_UnitLockSpansStores(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "shared.db")
	first, err := NewEvalStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Close() })
	second, err := NewEvalStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	form := testForm("f1")
	form.AllowMultipleResponses = true
	require.NoError(t, first.CreateForm(ctx, form))

	// The first writer pauses after reading the unit's scores.
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	paused := func(unitID, formKey string, scores []float64) (schema.UnitAggregate, bool) {
		once.Do(func() {
			close(entered)
			<-release
		})
		return meanOf(unitID, formKey, scores)
	}

	firstDone := make(chan error, 1)
	go func() {
		_, err := first.InsertSubmission(ctx, testSubmission("s1", "f1", "ev1", "u1", ptr(0.9)), form, false, paused)
		firstDone <- err
	}()
	<-entered

	secondDone := make(chan error, 1)
	go func() {
		_, err := second.InsertSubmission(ctx, testSubmission("s2", "f1", "ev2", "u1", ptr(0.1)), form, false, meanOf)
		secondDone <- err
	}()

	select {
	case err := <-secondDone:
		t.Fatalf("second writer finished while the unit was locked: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
	close(release)
	require.NoError(t, <-firstDone)
	require.NoError(t, <-secondDone)

	mean, count := cachedMean(t, first, "u1", "f1")
	assert.Equal(t, 2, count)
	assert.InDelta(t, 0.5, mean, 1e-9)
	_, count = cachedMean(t, second, "u1", schema.AllFormsKey)
	assert.Equal(t, 2, count)
}

func TestEvalStore_StatusAndClear(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.CreateForm(ctx, testForm("f1")))
	require.NoError(t, insert(store, testSubmission("s1", "f1", "ev1", "u1", nil), true))

	status, err := store.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", status.Backend)
	assert.True(t, status.Connected)
	assert.Equal(t, 1, status.TotalForms)
	assert.Equal(t, 1, status.TotalSubmissions)
	assert.Equal(t, 1, status.UnscoredCount)
	assert.Equal(t, int64(1), status.TableSizes[submissionsTable])

	var buf bytes.Buffer
	PrintStoreStatus(&buf, status)
	assert.Contains(t, buf.String(), "Unscored Submissions: 1")

	require.NoError(t, store.Clear(ctx))
	status, err = store.GetStatus(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.TotalForms)
	assert.Zero(t, status.TotalSubmissions)
}

func TestRebind(t *testing.T) {
	pg := &EvalStoreImpl{backend: schema.PostgreSQLBackend}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	lite := &EvalStoreImpl{backend: schema.SQLiteBackend}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestQuoteTableName(t *testing.T) {
	assert.Equal(t, "`eval_forms`", quoteTableName(formsTable, schema.MySQLBackend))
	assert.Equal(t, `"eval_forms"`, quoteTableName(formsTable, schema.PostgreSQLBackend))
	assert.Equal(t, `"eval_forms"`, quoteTableName(formsTable, schema.SQLiteBackend))
}

func TestNewEvalStoreUnsupportedBackend(t *testing.T) {
	_, err := NewEvalStore("oracle", "")
	assert.Error(t, err)
}
