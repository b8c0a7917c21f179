package evalstore

import (
	"context"
	"time"

	"github.com/huangsam/moze/internal/contract"
	"github.com/huangsam/moze/schema"
	"github.com/stretchr/testify/mock"
)

// MockStoreManager is a mock implementation of StoreManager for testing.
type MockStoreManager struct {
	mock.Mock
}

var _ contract.StoreManager = &MockStoreManager{} // Compile-time check

// GetEvalStore implements the StoreManager interface.
func (m *MockStoreManager) GetEvalStore() contract.EvalStore {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.EvalStore)
	return store
}

// MockEvalStore is a mock implementation of EvalStore for testing.
type MockEvalStore struct {
	mock.Mock
}

var _ contract.EvalStore = &MockEvalStore{} // Compile-time check

// CreateForm implements the EvalStore interface.
func (m *MockEvalStore) CreateForm(ctx context.Context, form schema.Form) error {
	return m.Called(ctx, form).Error(0)
}

// GetForm implements the EvalStore interface.
func (m *MockEvalStore) GetForm(ctx context.Context, id string) (schema.Form, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(schema.Form), args.Error(1)
}

// ListForms implements the EvalStore interface.
func (m *MockEvalStore) ListForms(ctx context.Context) ([]schema.Form, error) {
	args := m.Called(ctx)
	forms, _ := args.Get(0).([]schema.Form)
	return forms, args.Error(1)
}

// RenameForm implements the EvalStore interface.
func (m *MockEvalStore) RenameForm(ctx context.Context, id, title string, at time.Time) error {
	return m.Called(ctx, id, title, at).Error(0)
}

// RedefineForm implements the EvalStore interface.
func (m *MockEvalStore) RedefineForm(ctx context.Context, form schema.Form) error {
	return m.Called(ctx, form).Error(0)
}

// ArchiveForm implements the EvalStore interface.
func (m *MockEvalStore) ArchiveForm(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

// DeleteForm implements the EvalStore interface.
func (m *MockEvalStore) DeleteForm(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// InsertSubmission implements the EvalStore interface.
func (m *MockEvalStore) InsertSubmission(ctx context.Context, sub schema.Submission, form schema.Form, unique bool, summarize contract.Summarizer) (bool, error) {
	args := m.Called(ctx, sub, form, unique, summarize)
	return args.Bool(0), args.Error(1)
}

// HasSubmission implements the EvalStore interface.
func (m *MockEvalStore) HasSubmission(ctx context.Context, formID, evaluatorID, unitID string) (bool, error) {
	args := m.Called(ctx, formID, evaluatorID, unitID)
	return args.Bool(0), args.Error(1)
}

// GetSubmission implements the EvalStore interface.
func (m *MockEvalStore) GetSubmission(ctx context.Context, id string) (schema.Submission, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(schema.Submission), args.Error(1)
}

// ListSubmissions implements the EvalStore interface.
func (m *MockEvalStore) ListSubmissions(ctx context.Context, filter schema.SubmissionFilter) ([]schema.Submission, error) {
	args := m.Called(ctx, filter)
	subs, _ := args.Get(0).([]schema.Submission)
	return subs, args.Error(1)
}

// CountSubmissions implements the EvalStore interface.
func (m *MockEvalStore) CountSubmissions(ctx context.Context, formID string) (int, error) {
	args := m.Called(ctx, formID)
	return args.Int(0), args.Error(1)
}

// VoidSubmission implements the EvalStore interface.
func (m *MockEvalStore) VoidSubmission(ctx context.Context, id string, entry schema.AuditEntry, summarize contract.Summarizer) error {
	return m.Called(ctx, id, entry, summarize).Error(0)
}

// OverrideScore implements the EvalStore interface.
func (m *MockEvalStore) OverrideScore(ctx context.Context, id string, score float64, grade schema.Grade, entry schema.AuditEntry, summarize contract.Summarizer) error {
	return m.Called(ctx, id, score, grade, entry, summarize).Error(0)
}

// RecomputeAggregate implements the EvalStore interface.
func (m *MockEvalStore) RecomputeAggregate(ctx context.Context, unitID, formKey string, summarize contract.Summarizer) (schema.UnitAggregate, bool, error) {
	args := m.Called(ctx, unitID, formKey, summarize)
	agg, _ := args.Get(0).(schema.UnitAggregate)
	return agg, args.Bool(1), args.Error(2)
}

// GetAggregate implements the EvalStore interface.
func (m *MockEvalStore) GetAggregate(ctx context.Context, unitID, formKey string) (schema.UnitAggregate, bool, error) {
	args := m.Called(ctx, unitID, formKey)
	return args.Get(0).(schema.UnitAggregate), args.Bool(1), args.Error(2)
}

// ListAggregates implements the EvalStore interface.
func (m *MockEvalStore) ListAggregates(ctx context.Context, formKey string) ([]schema.UnitAggregate, error) {
	args := m.Called(ctx, formKey)
	aggs, _ := args.Get(0).([]schema.UnitAggregate)
	return aggs, args.Error(1)
}

// ListAggregateKeys implements the EvalStore interface.
func (m *MockEvalStore) ListAggregateKeys(ctx context.Context) ([][2]string, error) {
	args := m.Called(ctx)
	keys, _ := args.Get(0).([][2]string)
	return keys, args.Error(1)
}

// ListAudit implements the EvalStore interface.
func (m *MockEvalStore) ListAudit(ctx context.Context, limit int) ([]schema.AuditEntry, error) {
	args := m.Called(ctx, limit)
	entries, _ := args.Get(0).([]schema.AuditEntry)
	return entries, args.Error(1)
}

// GetStatus implements the EvalStore interface.
func (m *MockEvalStore) GetStatus(ctx context.Context) (schema.StoreStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(schema.StoreStatus), args.Error(1)
}

// Clear implements the EvalStore interface.
func (m *MockEvalStore) Clear(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// Close implements the EvalStore interface.
func (m *MockEvalStore) Close() error {
	return m.Called().Error(0)
}
