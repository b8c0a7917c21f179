package algo

import (
	"cmp"
	"slices"

	"github.com/huangsam/moze/schema"
)

// RankUnits orders entries by tier (urgent first), then ascending mean score,
// then ascending submission count, then unit ID, and assigns 1-based ranks.
// The sort is stable so equal keys keep their input order.
func RankUnits(entries []schema.RankedUnit) []schema.RankedUnit {
	slices.SortStableFunc(entries, func(a, b schema.RankedUnit) int {
		return Compare(a.Aggregate, b.Aggregate)
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// Compare orders aggregate a against b by attention need: negative when a
// comes first.
func Compare(a, b schema.UnitAggregate) int {
	return cmp.Or(
		cmp.Compare(schema.TierOrder(a.Tier), schema.TierOrder(b.Tier)),
		cmp.Compare(a.MeanScore, b.MeanScore),
		// Fewer submissions means less confidence, so surface it first.
		cmp.Compare(a.SubmissionCount, b.SubmissionCount),
		cmp.Compare(a.UnitID, b.UnitID),
	)
}

// Less reports whether aggregate a needs attention before aggregate b.
func Less(a, b schema.UnitAggregate) bool {
	return Compare(a, b) < 0
}

// Mean returns the arithmetic mean of the values, or 0 for none.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Summarize turns qualifying submission scores into a unit aggregate.
// It returns false when there is nothing to aggregate.
func Summarize(unitID, formKey string, scores []float64, bands schema.GradeBands, tiers schema.TierTable) (schema.UnitAggregate, bool) {
	if len(scores) == 0 {
		return schema.UnitAggregate{}, false
	}
	mean := clamp01(Mean(scores))
	grade := bands.Assign(mean)
	return schema.UnitAggregate{
		UnitID:          unitID,
		FormKey:         formKey,
		MeanScore:       mean,
		SubmissionCount: len(scores),
		Grade:           grade,
		Tier:            tiers.Assign(grade),
	}, true
}
