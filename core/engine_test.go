package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/huangsam/moze/internal/evalstore"
	"github.com/huangsam/moze/internal/roster"
	"github.com/huangsam/moze/schema"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// testRoster has one administrator, three evaluators and an observer.
// u1 is served by alice, carol and olga; u2 by bob; u3 has nobody yet.
func testRoster(t *testing.T) *roster.Roster {
	t.Helper()
	r, err := roster.New(roster.File{
		People: []roster.Person{
			{ID: "admin", Role: schema.AdministratorRole, Admin: true},
			{ID: "alice", Role: schema.EvaluatorRole},
			{ID: "bob", Role: schema.EvaluatorRole},
			{ID: "carol", Role: schema.EvaluatorRole},
			{ID: "olga", Role: "observer"},
		},
		Units: []roster.UnitEntry{
			{ID: "u1", Name: "North Center", Evaluators: []string{"alice", "carol", "olga"}},
			{ID: "u2", Name: "South Center", Evaluators: []string{"bob"}},
			{ID: "u3", Name: "East Center"},
		},
	})
	require.NoError(t, err)
	return r
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sequentialIDs() func() string {
	var seq atomic.Int64
	return func() string { return fmt.Sprintf("id-%03d", seq.Add(1)) }
}

type fixture struct {
	engine *Engine
	store  *evalstore.EvalStoreImpl
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store, err := evalstore.NewEvalStore(schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	r := testRoster(t)
	base := []Option{
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(sequentialIDs()),
		WithLogger(quietLogger()),
	}
	return &fixture{
		engine: NewEngine(store, r, r, append(base, opts...)...),
		store:  store,
	}
}

func (f *fixture) createForm(t *testing.T, draft schema.FormDraft) string {
	t.Helper()
	id, err := f.engine.CreateForm(context.Background(), "admin", draft)
	require.NoError(t, err)
	return id
}

func (f *fixture) submit(t *testing.T, formID, evaluator, unit string, answers ...schema.Answer) schema.Receipt {
	t.Helper()
	receipt, err := f.engine.Submit(context.Background(), SubmitRequest{
		FormID: formID, EvaluatorID: evaluator, UnitID: unit, Answers: answers,
	})
	require.NoError(t, err)
	return receipt
}

// inspectionDraft has a weight 2 single choice and a weight 1 rating, both required.
func inspectionDraft() schema.FormDraft {
	return schema.FormDraft{
		Title: "Quarterly inspection",
		Questions: []schema.Question{
			{ID: "q1", Prompt: "Overall condition", Type: schema.SingleChoiceQuestion, Required: true, Weight: 2,
				Options: map[string]float64{"poor": 0, "fair": 3, "good": 5}},
			{ID: "q2", Prompt: "Staff readiness", Type: schema.RatingQuestion, Required: true, Weight: 1,
				Scale: &schema.Scale{Min: 1, Max: 5}},
			{ID: "q3", Prompt: "Notes", Type: schema.FreeTextQuestion},
		},
		TargetRoles: []schema.Role{schema.EvaluatorRole, schema.AdministratorRole},
	}
}

// percentDraft scores exactly the rating divided by 100 and accepts repeat responses.
func percentDraft() schema.FormDraft {
	return schema.FormDraft{
		Title: "Spot check",
		Questions: []schema.Question{
			{ID: "pct", Prompt: "Percent compliant", Type: schema.RatingQuestion, Required: true, Weight: 1,
				Scale: &schema.Scale{Min: 0, Max: 100}},
		},
		AllowMultipleResponses: true,
	}
}

func rating(v int) *int { return &v }

func choice(qid, c string) schema.Answer {
	return schema.Answer{QuestionID: qid, Choices: []string{c}}
}

func rated(qid string, v int) schema.Answer {
	return schema.Answer{QuestionID: qid, Rating: rating(v)}
}

// stubOracle is a role oracle with a fixed answer, used with the mock store.
type stubOracle struct {
	role  schema.Role
	admin bool
	err   error
}

func (s stubOracle) RoleOf(context.Context, string) (schema.Role, error) { return s.role, s.err }
func (s stubOracle) HasAdminCapability(context.Context, string) (bool, error) {
	return s.admin, s.err
}

// stubDirectory assigns every evaluator to every unit.
type stubDirectory struct{ units []schema.Unit }

func (s stubDirectory) IsAssignedEvaluator(context.Context, string, string) (bool, error) {
	return true, nil
}
func (s stubDirectory) Units(context.Context) ([]schema.Unit, error) { return s.units, nil }

func newMockEngine(store *evalstore.MockEvalStore, oracle stubOracle) *Engine {
	return NewEngine(store, stubDirectory{}, oracle,
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(sequentialIDs()),
		WithLogger(quietLogger()),
	)
}

var anyCtx = mock.Anything
