package analysis

import (
	"math"
	"sort"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/animelens/internal/dataset"
)

// outlier cut-off for the robust z-score (MAD based)
const defaultOutlierThreshold = 3.5

// NumericSummary describes the present values of one numeric field.
type NumericSummary struct {
	Field   string  `json:"field"`
	Count   int     `json:"count"`
	Missing int     `json:"missing"`
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`
	Min     float64 `json:"min"`
	P25     float64 `json:"p25"`
	Median  float64 `json:"median"`
	P75     float64 `json:"p75"`
	Max     float64 `json:"max"`
	// Outliers counts values with |robust z| above OutlierThreshold.
	Outliers         int     `json:"outliers"`
	OutlierThreshold float64 `json:"outlier_threshold"`
}

// Bin is one histogram bucket covering [Lo, Hi); the last bucket includes Hi.
type Bin struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Count int     `json:"count"`
}

// CorrMatrix holds a symmetric Pearson correlation matrix.
type CorrMatrix struct {
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"` // row-major, Values[i][j]
}

// CorrResult is the Pearson coefficient of two fields and the number of
// complete pairs it was computed over. R is NaN when undefined.
type CorrResult struct {
	A string  `json:"a"`
	B string  `json:"b"`
	R float64 `json:"r"`
	N int     `json:"n"`
}

// Defined reports whether R is a number.
func (c CorrResult) Defined() bool { return !math.IsNaN(c.R) }

// PairCorr is a simple correlation pair summary.
type PairCorr struct {
	A string  `json:"a"`
	B string  `json:"b"`
	R float64 `json:"r"`
}

// Values collects the present values of f.
func Values(records []dataset.Record, f dataset.NumericField) []float64 {
	out := make([]float64, 0, len(records))
	for _, r := range records {
		if v, ok := f.Get(r); ok {
			out = append(out, v)
		}
	}
	return out
}

// Describe summarizes f over records. Std is the sample standard deviation
// (zero for fewer than two values); quantiles interpolate linearly.
func Describe(records []dataset.Record, f dataset.NumericField) NumericSummary {
	vals := Values(records, f)
	s := NumericSummary{Field: f.Name, Count: len(vals), Missing: len(records) - len(vals), OutlierThreshold: defaultOutlierThreshold}
	if len(vals) == 0 {
		return s
	}
	sort.Float64s(vals)
	s.Min, s.Max = vals[0], vals[len(vals)-1]
	if len(vals) > 1 {
		s.Mean, s.Std = stat.MeanStdDev(vals, nil)
	} else {
		s.Mean = vals[0]
	}
	s.P25 = quantile(vals, 0.25)
	s.Median = quantile(vals, 0.5)
	s.P75 = quantile(vals, 0.75)

	median, mad := medianMAD(vals)
	if mad > 0 {
		for _, v := range vals {
			if math.Abs(0.6745*(v-median)/mad) > s.OutlierThreshold {
				s.Outliers++
			}
		}
	}
	return s
}

// Correlation is the Pearson coefficient of a and b over records where both are
// present. It is NaN when fewer than two such records exist or either side is
// constant. Correlation(a, b) == Correlation(b, a).
func Correlation(records []dataset.Record, a, b dataset.NumericField) CorrResult {
	var xs, ys []float64
	for _, r := range records {
		x, ok := a.Get(r)
		if !ok {
			continue
		}
		y, ok := b.Get(r)
		if !ok {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	return CorrResult{A: a.Name, B: b.Name, R: pearson(xs, ys), N: len(xs)}
}

func pearson(xs, ys []float64) float64 {
	if len(xs) < 2 || constant(xs) || constant(ys) {
		return math.NaN()
	}
	r := stat.Correlation(xs, ys, nil)
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r
}

func constant(v []float64) bool {
	for _, x := range v[1:] {
		if x != v[0] {
			return false
		}
	}
	return true
}

// Correlations builds the pairwise matrix over fields. Undefined pairs are NaN,
// including the diagonal of a field with fewer than two values or no spread.
func Correlations(records []dataset.Record, fields []dataset.NumericField) *CorrMatrix {
	n := len(fields)
	m := &CorrMatrix{Columns: make([]string, n), Values: make([][]float64, n)}
	for i := range fields {
		m.Columns[i] = fields[i].Name
		m.Values[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		m.Values[i][i] = 1
		if vals := Values(records, fields[i]); len(vals) < 2 || constant(vals) {
			m.Values[i][i] = math.NaN()
		}
		for j := i + 1; j < n; j++ {
			r := Correlation(records, fields[i], fields[j]).R
			m.Values[i][j] = r
			m.Values[j][i] = r
		}
	}
	return m
}

// TopPairs lists defined off-diagonal pairs by descending |r|.
func (m *CorrMatrix) TopPairs(limit int) []PairCorr {
	var pairs []PairCorr
	n := len(m.Columns)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			r := m.Values[i][j]
			if math.IsNaN(r) {
				continue
			}
			pairs = append(pairs, PairCorr{A: m.Columns[i], B: m.Columns[j], R: r})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].R), math.Abs(pairs[j].R)
		if ai == aj {
			return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
		}
		return ai > aj
	})
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

// Histogram buckets the values of f lying in [lo, hi] into bins equal-width
// buckets. A NaN or infinite bound takes the data extent on that side. Returns
// nil when no value falls in range.
func Histogram(records []dataset.Record, f dataset.NumericField, lo, hi float64, bins int) []Bin {
	if bins <= 0 {
		bins = 10
	}
	all := Values(records, f)
	if len(all) == 0 {
		return nil
	}
	sort.Float64s(all)
	if math.IsNaN(lo) || math.IsInf(lo, 0) {
		lo = all[0]
	}
	if math.IsNaN(hi) || math.IsInf(hi, 0) {
		hi = all[len(all)-1]
	}
	vals := all[:0:0]
	for _, v := range all {
		if v >= lo && v <= hi {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return nil
	}
	if hi <= lo {
		return []Bin{{Lo: lo, Hi: hi, Count: len(vals)}}
	}
	edges := floats.Span(make([]float64, bins+1), lo, hi)
	// stat.Histogram treats the last divider as exclusive
	dividers := append([]float64(nil), edges...)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))
	counts := stat.Histogram(nil, dividers, vals, nil)

	out := make([]Bin, bins)
	for i := range out {
		out[i] = Bin{Lo: edges[i], Hi: edges[i+1], Count: int(counts[i])}
	}
	return out
}

// medianMAD returns the median of sorted and its median absolute deviation.
func medianMAD(sorted []float64) (median, mad float64) {
	if len(sorted) == 0 {
		return 0, 0
	}
	median = quantile(sorted, 0.5)
	dev := make([]float64, len(sorted))
	for i, v := range sorted {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	return median, quantile(dev, 0.5)
}

// quantile interpolates between closest ranks at position q*(n-1), the
// convention of pandas describe. stat.Quantile offers no such estimator.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	pos := math.Max(0, math.Min(1, q)) * float64(n-1)
	i, frac := math.Modf(pos)
	k := int(i)
	if k+1 >= n || frac == 0 {
		return sorted[k]
	}
	return sorted[k] + frac*(sorted[k+1]-sorted[k])
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// MarshalJSON encodes an undefined R as null.
func (c CorrResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		A string   `json:"a"`
		B string   `json:"b"`
		R *float64 `json:"r"`
		N int      `json:"n"`
	}{c.A, c.B, nullable(c.R), c.N})
}

// MarshalJSON encodes undefined cells as null.
func (m CorrMatrix) MarshalJSON() ([]byte, error) {
	vals := make([][]*float64, len(m.Values))
	for i, row := range m.Values {
		vals[i] = make([]*float64, len(row))
		for j, v := range row {
			vals[i][j] = nullable(v)
		}
	}
	return json.Marshal(struct {
		Columns []string     `json:"columns"`
		Values  [][]*float64 `json:"values"`
	}{m.Columns, vals})
}
