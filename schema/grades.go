package schema

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// GradeBand is the lowest composite score that still earns a grade.
type GradeBand struct {
	Grade Grade   `json:"grade"`
	Min   float64 `json:"min"`
}

// GradeBands is a monotonic cut-point table, highest band first.
// Scores below every band earn the floor grade.
type GradeBands struct {
	Bands []GradeBand `json:"bands"`
	Floor Grade       `json:"floor"`
}

// DefaultGradeBands returns the stock cut points: A>=0.90, B>=0.75, C>=0.60, D>=0.40, else E.
func DefaultGradeBands() GradeBands {
	return GradeBands{
		Bands: []GradeBand{
			{Grade: GradeA, Min: 0.90},
			{Grade: GradeB, Min: 0.75},
			{Grade: GradeC, Min: 0.60},
			{Grade: GradeD, Min: 0.40},
		},
		Floor: GradeE,
	}
}

// NewGradeBands builds a table from grade -> minimum score pairs.
// The grade without a minimum (or the lowest one at 0) becomes the floor.
func NewGradeBands(mins map[Grade]float64) (GradeBands, error) {
	var gb GradeBands
	for g, m := range mins {
		if _, ok := ValidGrades[g]; !ok {
			return gb, fmt.Errorf("unknown grade %q", g)
		}
		gb.Bands = append(gb.Bands, GradeBand{Grade: g, Min: m})
	}
	slices.SortFunc(gb.Bands, func(a, b GradeBand) int {
		return cmp.Or(cmp.Compare(b.Min, a.Min), cmp.Compare(a.Grade, b.Grade))
	})

	// Pick the worst grade not present as the floor.
	for i := len(AllGrades) - 1; i >= 0; i-- {
		if _, ok := mins[AllGrades[i]]; !ok {
			gb.Floor = AllGrades[i]
			break
		}
	}
	if gb.Floor == "" && len(gb.Bands) > 0 {
		last := gb.Bands[len(gb.Bands)-1]
		gb.Floor = last.Grade
		gb.Bands = gb.Bands[:len(gb.Bands)-1]
	}
	return gb, gb.Validate()
}

// Validate checks that cut points lie in [0,1], strictly decrease, and follow grade order.
func (gb GradeBands) Validate() error {
	if gb.Floor == "" {
		return fmt.Errorf("grade bands need a floor grade")
	}
	prevMin := 1.0 + 1e-9
	prevRank := -1
	for _, b := range gb.Bands {
		if b.Min < 0 || b.Min > 1 {
			return fmt.Errorf("cut point for grade %s must be between 0 and 1 (received %.3f)", b.Grade, b.Min)
		}
		if b.Min >= prevMin {
			return fmt.Errorf("cut point for grade %s must be lower than the grade above it", b.Grade)
		}
		rank := gradeRank(b.Grade)
		if rank <= prevRank {
			return fmt.Errorf("grade %s is out of order", b.Grade)
		}
		prevMin, prevRank = b.Min, rank
	}
	if gradeRank(gb.Floor) <= prevRank {
		return fmt.Errorf("floor grade %s must rank below every banded grade", gb.Floor)
	}
	return nil
}

// Assign maps a composite score onto a grade.
func (gb GradeBands) Assign(score float64) Grade {
	for _, b := range gb.Bands {
		if score >= b.Min {
			return b.Grade
		}
	}
	return gb.Floor
}

// String renders the table in the same form the --grade-bands flag accepts.
func (gb GradeBands) String() string {
	parts := make([]string, 0, len(gb.Bands))
	for _, b := range gb.Bands {
		parts = append(parts, fmt.Sprintf("%s:%.2f", b.Grade, b.Min))
	}
	return strings.Join(parts, ",")
}

func gradeRank(g Grade) int {
	for i, x := range AllGrades {
		if x == g {
			return i
		}
	}
	return len(AllGrades)
}

// TierTable maps each grade onto a priority tier.
type TierTable map[Grade]Tier

// DefaultTierTable returns E/D -> urgent, C -> watch, B/A -> stable.
func DefaultTierTable() TierTable {
	return TierTable{
		GradeA: StableTier,
		GradeB: StableTier,
		GradeC: WatchTier,
		GradeD: UrgentTier,
		GradeE: UrgentTier,
	}
}

// Assign returns the tier for a grade. Unmapped grades are treated as urgent.
func (tt TierTable) Assign(g Grade) Tier {
	if t, ok := tt[g]; ok {
		return t
	}
	return UrgentTier
}

// Validate checks every grade is mapped to a known tier.
func (tt TierTable) Validate() error {
	for _, g := range AllGrades {
		t, ok := tt[g]
		if !ok {
			return fmt.Errorf("grade %s has no tier", g)
		}
		if _, ok := ValidTiers[t]; !ok {
			return fmt.Errorf("grade %s maps to unknown tier %q", g, t)
		}
	}
	return nil
}
