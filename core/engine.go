// Package core has the evaluation engine: form lifecycle, submissions,
// aggregation, prioritization and the access gate in front of every score.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/huangsam/moze/internal/contract"
	"github.com/huangsam/moze/schema"
)

// Engine wires the evaluation store to its collaborators.
// It is safe for concurrent use.
type Engine struct {
	store     contract.EvalStore
	directory contract.UnitDirectory
	oracle    contract.RoleOracle

	bands schema.GradeBands
	tiers schema.TierTable

	locks    *unitLocks
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithGradeBands sets the grade cut points.
func WithGradeBands(bands schema.GradeBands) Option {
	return func(e *Engine) { e.bands = bands }
}

// WithTierTable sets the grade to tier mapping.
func WithTierTable(tiers schema.TierTable) Option {
	return func(e *Engine) { e.tiers = tiers }
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator replaces the UUID generator for form and submission IDs.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates an Engine with default grade bands and tiers.
func NewEngine(store contract.EvalStore, directory contract.UnitDirectory, oracle contract.RoleOracle, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		directory: directory,
		oracle:    oracle,
		bands:     schema.DefaultGradeBands(),
		tiers:     schema.DefaultTierTable(),
		locks:     newUnitLocks(),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = contract.ResolveLogger(e.logger)
	return e
}

// NewEngineFromConfig builds an Engine using the validated CLI configuration.
func NewEngineFromConfig(cfg *contract.Config, mgr contract.StoreManager, directory contract.UnitDirectory, oracle contract.RoleOracle, logger *slog.Logger) *Engine {
	return NewEngine(mgr.GetEvalStore(), directory, oracle,
		WithGradeBands(cfg.GradeBands),
		WithTierTable(cfg.Tiers),
		WithLogger(logger),
	)
}

// GradeBands returns the grade cut points in effect.
func (e *Engine) GradeBands() schema.GradeBands { return e.bands }

// TierTable returns the grade to tier mapping in effect.
func (e *Engine) TierTable() schema.TierTable { return e.tiers }

// requireAdmin fails with schema.ErrForbidden unless the caller holds the
// administrator capability.
func (e *Engine) requireAdmin(ctx context.Context, caller string) error {
	ok, err := e.oracle.HasAdminCapability(ctx, caller)
	if err != nil {
		return fmt.Errorf("failed to resolve capability of %s: %w", caller, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", schema.ErrForbidden, caller)
	}
	return nil
}
