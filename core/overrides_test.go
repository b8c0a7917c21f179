package core

import (
	"context"
	"testing"

	"github.com/huangsam/moze/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoidSubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	formID := f.createForm(t, inspectionDraft())
	receipt := f.submit(t, formID, "alice", "u1", choice("q1", "poor"), rated("q2", 1))

	assert.ErrorIs(t, f.engine.VoidSubmission(ctx, "alice", receipt.SubmissionID, "mine"), schema.ErrForbidden)
	require.NoError(t, f.engine.VoidSubmission(ctx, "admin", receipt.SubmissionID, "entered for the wrong unit"))
	require.NoError(t, f.engine.VoidSubmission(ctx, "admin", receipt.SubmissionID, "again"), "voiding twice is a no-op")

	report, err := f.engine.UnitReport(ctx, "admin", "u1", formID)
	require.NoError(t, err)
	assert.False(t, report.Evaluated, "voided submissions leave the aggregate")

	// The duplicate slot is free again.
	f.submit(t, formID, "alice", "u1", choice("q1", "good"), rated("q2", 5))
	report, err = f.engine.UnitReport(ctx, "admin", "u1", formID)
	require.NoError(t, err)
	require.True(t, report.Evaluated)
	assert.Equal(t, schema.GradeA, report.Aggregate.Grade)

	entries, err := f.engine.ListAudit(ctx, "admin", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, schema.AuditVoid, entries[0].Action)
	assert.Equal(t, "admin", entries[0].ActorID)
	assert.Equal(t, "entered for the wrong unit", entries[0].Detail)
}

func TestOverrideScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	formID := f.createForm(t, schema.FormDraft{
		Title: "Narrative review",
		Questions: []schema.Question{
			{ID: "story", Prompt: "Describe the visit", Type: schema.FreeTextQuestion, Required: true, Weight: 1},
		},
	})
	form, err := f.engine.GetForm(ctx, formID)
	require.NoError(t, err)
	require.True(t, form.NeedsReview)

	receipt := f.submit(t, formID, "bob", "u2", schema.Answer{QuestionID: "story", Text: "Short staffed"})

	assert.ErrorIs(t, f.engine.OverrideScore(ctx, "admin", receipt.SubmissionID, 1.5, ""), schema.ErrValidation)
	assert.ErrorIs(t, f.engine.OverrideScore(ctx, "bob", receipt.SubmissionID, 0.5, ""), schema.ErrForbidden)
	assert.ErrorIs(t, f.engine.OverrideScore(ctx, "admin", "missing", 0.5, ""), schema.ErrSubmissionNotFound)

	require.NoError(t, f.engine.OverrideScore(ctx, "admin", receipt.SubmissionID, 0.45, "reviewed narrative"))

	view, err := f.engine.ViewSubmission(ctx, "admin", receipt.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, "overridden", view.Status)
	assert.Equal(t, schema.GradeD, view.Submission.Grade)
	assert.Nil(t, view.Explain)

	ranking, err := f.engine.RankAll(ctx, "admin", formID)
	require.NoError(t, err)
	require.Equal(t, 1, ranking.Len())
	assert.Equal(t, schema.UrgentTier, ranking.Entries[0].Aggregate.Tier)

	entries, err := f.engine.ListAudit(ctx, "admin", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Detail, "grade=D")
	assert.Contains(t, entries[0].Detail, "reviewed narrative")

	_, err = f.engine.ListAudit(ctx, "bob", 10)
	assert.ErrorIs(t, err, schema.ErrForbidden)
}
