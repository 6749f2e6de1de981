// Package recommend selects records matching user preferences.
package recommend

import (
	"math"

	"github.com/KaramelBytes/animelens/internal/dataset"
)

// Open year bounds. A Criteria using both places no constraint on year.
const (
	NoYearMin = math.MinInt
	NoYearMax = math.MaxInt
)

// DefaultMinScore is the minimum rating used when none is given.
const DefaultMinScore = 7.0

// Criteria is a conjunction of genre membership, minimum score and an
// inclusive year range. An empty Genres places no genre constraint.
type Criteria struct {
	Genres   []string `json:"genres" validate:"dive,required"`
	MinScore float64  `json:"min_score" validate:"gte=0,lte=10"`
	YearMin  int      `json:"year_min"`
	YearMax  int      `json:"year_max" validate:"gtefield=YearMin"`
}

// Unconstrained returns criteria that match every scored record.
func Unconstrained() Criteria {
	return Criteria{Genres: []string{}, MinScore: 0, YearMin: NoYearMin, YearMax: NoYearMax}
}

// DefaultCriteria returns the starting selection for records: no genres,
// DefaultMinScore and the full observed year range.
func DefaultCriteria(records []dataset.Record) Criteria {
	c := Unconstrained()
	c.MinScore = DefaultMinScore
	if lo, hi, ok := YearExtent(records); ok {
		c.YearMin, c.YearMax = lo, hi
	}
	return c
}

// YearBounded reports whether either year bound is finite.
func (c Criteria) YearBounded() bool {
	return c.YearMin != NoYearMin || c.YearMax != NoYearMax
}

// IsUnconstrained reports whether c places no constraint beyond a present score.
func (c Criteria) IsUnconstrained() bool {
	return len(c.Genres) == 0 && c.MinScore <= dataset.MinScore && !c.YearBounded()
}

// Result is the outcome of Filter. Applied is false when the criteria placed no
// constraint; Matched == 0 with Applied set means nothing matched.
type Result struct {
	Criteria Criteria         `json:"criteria"`
	Applied  bool             `json:"applied"`
	Matched  int              `json:"matched"`
	Records  []dataset.Record `json:"records"`
}

// Empty reports whether no record matched.
func (r Result) Empty() bool { return r.Matched == 0 }

// Filter returns the records satisfying c, in input order. Records without a
// score never match. Records without a year match only when the year range is
// open on both sides.
func Filter(records []dataset.Record, c Criteria) Result {
	preds := []Predicate{MinScore(c.MinScore)}
	if c.YearBounded() {
		preds = append(preds, YearBetween(c.YearMin, c.YearMax))
	}
	if len(c.Genres) > 0 {
		preds = append(preds, HasGenre(c.Genres...))
	}
	out := Where(records, preds...)
	return Result{Criteria: c, Applied: !c.IsUnconstrained(), Matched: len(out), Records: out}
}

// YearExtent returns the smallest and largest year among records.
func YearExtent(records []dataset.Record) (lo, hi int, ok bool) {
	for _, r := range records {
		if r.Year == nil {
			continue
		}
		y := *r.Year
		if !ok {
			lo, hi, ok = y, y, true
			continue
		}
		lo, hi = min(lo, y), max(hi, y)
	}
	return lo, hi, ok
}
