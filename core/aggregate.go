package core

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/huangsam/moze/core/algo"
	"github.com/huangsam/moze/schema"
)

// Recompute rebuilds the cached aggregate of one unit for a form ID or
// schema.AllFormsKey. With no qualifying submission the cached row is removed
// and ok is false.
func (e *Engine) Recompute(ctx context.Context, unitID, formKey string) (agg schema.UnitAggregate, ok bool, err error) {
	unlock := e.locks.lock(unitID)
	defer unlock()
	return e.recomputeLocked(ctx, unitID, formKey)
}

func (e *Engine) recomputeLocked(ctx context.Context, unitID, formKey string) (schema.UnitAggregate, bool, error) {
	agg, ok, err := e.store.RecomputeAggregate(ctx, unitID, formKey, e.summarize)
	if err != nil {
		return schema.UnitAggregate{}, false, err
	}
	if !ok {
		e.logger.Debug("aggregate removed", "unit", unitID, "form_key", formKey)
		return schema.UnitAggregate{}, false, nil
	}
	e.logger.Debug("aggregate recomputed", "unit", unitID, "form_key", formKey,
		"mean", agg.MeanScore, "grade", agg.Grade, "tier", agg.Tier)
	return agg, true, nil
}

// summarize is the contract.Summarizer the store calls while it holds the unit lock.
func (e *Engine) summarize(unitID, formKey string, scores []float64) (schema.UnitAggregate, bool) {
	agg, ok := algo.Summarize(unitID, formKey, scores, e.bands, e.tiers)
	if ok {
		agg.ComputedAt = e.now()
	}
	return agg, ok
}

// RankAll returns a snapshot of every aggregated unit in priority order plus
// the directory units that have no aggregate yet. Callers without the
// administrator capability get a redacted report.
func (e *Engine) RankAll(ctx context.Context, caller, formKey string) (schema.RankedReport, error) {
	if formKey == "" {
		formKey = schema.AllFormsKey
	}
	report := schema.RankedReport{FormKey: formKey, GeneratedAt: e.now()}
	if !e.CanViewScores(ctx, caller) {
		report.Redacted = true
		report.Status = schema.UnavailableNotice
		return report, nil
	}

	aggs, err := e.store.ListAggregates(ctx, formKey)
	if err != nil {
		return report, err
	}
	units, err := e.directory.Units(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list units: %w", err)
	}

	byID := make(map[string]schema.Unit, len(units))
	for _, u := range units {
		byID[u.ID] = u
	}
	entries := make([]schema.RankedUnit, 0, len(aggs))
	evaluated := make(map[string]bool, len(aggs))
	for _, agg := range aggs {
		unit, ok := byID[agg.UnitID]
		if !ok {
			unit = schema.Unit{ID: agg.UnitID}
		}
		entries = append(entries, schema.RankedUnit{Unit: unit, Aggregate: agg})
		evaluated[agg.UnitID] = true
	}
	report.Entries = algo.RankUnits(entries)

	for _, u := range units {
		if !evaluated[u.ID] {
			report.Unevaluated = append(report.Unevaluated, u)
		}
	}
	slices.SortFunc(report.Unevaluated, func(a, b schema.Unit) int {
		return strings.Compare(a.ID, b.ID)
	})
	return report, nil
}

// RefreshAll recomputes every aggregate the store knows about, for example
// after the grade bands changed. It returns how many aggregates remain.
func (e *Engine) RefreshAll(ctx context.Context, caller string) (int, error) {
	if err := e.requireAdmin(ctx, caller); err != nil {
		return 0, err
	}
	keys, err := e.store.ListAggregateKeys(ctx)
	if err != nil {
		return 0, err
	}

	byUnit := make(map[string][]string)
	var unitOrder []string
	for _, k := range keys {
		unitID, formKey := k[0], k[1]
		if _, ok := byUnit[unitID]; !ok {
			unitOrder = append(unitOrder, unitID)
		}
		byUnit[unitID] = append(byUnit[unitID], formKey)
	}

	count := 0
	for _, unitID := range unitOrder {
		formKeys := byUnit[unitID]
		if !slices.Contains(formKeys, schema.AllFormsKey) {
			formKeys = append(formKeys, schema.AllFormsKey)
		}
		n, err := e.refreshKeys(ctx, unitID, formKeys)
		if err != nil {
			return count, err
		}
		count += n
	}
	e.logger.Info("aggregates refreshed", "units", len(unitOrder), "aggregates", count, "caller", caller)
	return count, nil
}

func (e *Engine) refreshKeys(ctx context.Context, unitID string, formKeys []string) (int, error) {
	unlock := e.locks.lock(unitID)
	defer unlock()
	n := 0
	for _, key := range formKeys {
		_, ok, err := e.recomputeLocked(ctx, unitID, key)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}
