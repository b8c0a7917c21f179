package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultGradeBandsAssign(t *testing.T) {
	bands := DefaultGradeBands()
	require.NoError(t, bands.Validate())

	tests := []struct {
		score float64
		want  Grade
	}{
		{1.0, GradeA},
		{0.90, GradeA},
		{0.8999, GradeB},
		{0.75, GradeB},
		{0.70, GradeC},
		{0.60, GradeC},
		{0.40, GradeD},
		{0.3999, GradeE},
		{0, GradeE},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, bands.Assign(tt.score), "score %v", tt.score)
	}
}

func TestNewGradeBands(t *testing.T) {
	t.Run("missing grade becomes floor", func(t *testing.T) {
		gb, err := NewGradeBands(map[Grade]float64{GradeA: 0.8, GradeB: 0.6, GradeC: 0.4, GradeD: 0.2})
		require.NoError(t, err)
		assert.Equal(t, GradeE, gb.Floor)
		assert.Equal(t, GradeB, gb.Assign(0.65))
		assert.Equal(t, "A:0.80,B:0.60,C:0.40,D:0.20", gb.String())
	})

	t.Run("every grade given uses the lowest as floor", func(t *testing.T) {
		gb, err := NewGradeBands(map[Grade]float64{GradeA: 0.9, GradeB: 0.75, GradeC: 0.6, GradeD: 0.4, GradeE: 0})
		require.NoError(t, err)
		assert.Equal(t, GradeE, gb.Floor)
		assert.Len(t, gb.Bands, 4)
	})

	t.Run("out of order cut points", func(t *testing.T) {
		_, err := NewGradeBands(map[Grade]float64{GradeA: 0.5, GradeB: 0.8})
		assert.Error(t, err)
	})

	t.Run("cut point above one", func(t *testing.T) {
		_, err := NewGradeBands(map[Grade]float64{GradeA: 1.5})
		assert.Error(t, err)
	})

	t.Run("unknown grade", func(t *testing.T) {
		_, err := NewGradeBands(map[Grade]float64{"Z": 0.5})
		assert.Error(t, err)
	})
}

func TestTierTable(t *testing.T) {
	tt := DefaultTierTable()
	require.NoError(t, tt.Validate())
	assert.Equal(t, UrgentTier, tt.Assign(GradeE))
	assert.Equal(t, UrgentTier, tt.Assign(GradeD))
	assert.Equal(t, WatchTier, tt.Assign(GradeC))
	assert.Equal(t, StableTier, tt.Assign(GradeB))
	assert.Equal(t, StableTier, tt.Assign(GradeA))
	assert.Equal(t, UrgentTier, TierTable{}.Assign(GradeA), "unmapped grades are urgent")

	bad := DefaultTierTable()
	bad[GradeC] = "someday"
	assert.Error(t, bad.Validate())
}

func TestTierOrder(t *testing.T) {
	assert.Less(t, TierOrder(UrgentTier), TierOrder(WatchTier))
	assert.Less(t, TierOrder(WatchTier), TierOrder(StableTier))
	assert.Equal(t, len(AllTiers), TierOrder("unknown"))
}

func TestRankedReportIteratorsRestartAndBreak(t *testing.T) {
	r := &RankedReport{Entries: []RankedUnit{
		{Rank: 1, Unit: Unit{ID: "a"}, Aggregate: UnitAggregate{Tier: UrgentTier}},
		{Rank: 2, Unit: Unit{ID: "b"}, Aggregate: UnitAggregate{Tier: WatchTier}},
		{Rank: 3, Unit: Unit{ID: "c"}, Aggregate: UnitAggregate{Tier: UrgentTier}},
	}}

	collect := func() []string {
		var ids []string
		for _, e := range r.All() {
			ids = append(ids, e.Unit.ID)
		}
		return ids
	}
	assert.Equal(t, []string{"a", "b", "c"}, collect())
	assert.Equal(t, collect(), collect(), "iteration restarts from the top")

	var urgent []string
	for e := range r.ByTier(UrgentTier) {
		urgent = append(urgent, e.Unit.ID)
	}
	assert.Equal(t, []string{"a", "c"}, urgent)

	// Early break stops the iteration.
	seen := 0
	for range r.All() {
		seen++
		break
	}
	assert.Equal(t, 1, seen)
	assert.Equal(t, 3, r.Len())
}

func TestFormAllowsRoleCustomRole(t *testing.T) {
	open := &Form{}
	assert.True(t, open.AllowsRole(EvaluatorRole))

	limited := &Form{TargetRoles: []Role{"inspector"}}
	assert.True(t, limited.AllowsRole("inspector"))
	assert.False(t, limited.AllowsRole(EvaluatorRole))
}
