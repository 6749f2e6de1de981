package analysis

import (
	"cmp"
	"slices"

	"github.com/KaramelBytes/animelens/internal/dataset"
)

// Group is the mean of a numeric field over records sharing a key.
type Group[K cmp.Ordered] struct {
	Key   K       `json:"key"`
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
}

// Count is the number of records sharing a key.
type Count[K cmp.Ordered] struct {
	Key   K   `json:"key"`
	Count int `json:"count"`
}

// GroupedMean averages value per key over records where both are present.
// Keys with no values are omitted. Output is ordered by key ascending.
func GroupedMean[K cmp.Ordered](records []dataset.Record, key func(dataset.Record) (K, bool), value dataset.NumericField) []Group[K] {
	type acc struct {
		n   int
		sum float64
	}
	accs := map[K]*acc{}
	for _, r := range records {
		k, ok := key(r)
		if !ok {
			continue
		}
		v, ok := value.Get(r)
		if !ok {
			continue
		}
		a := accs[k]
		if a == nil {
			a = &acc{}
			accs[k] = a
		}
		a.n++
		a.sum += v
	}
	out := make([]Group[K], 0, len(accs))
	for k, a := range accs {
		out = append(out, Group[K]{Key: k, Count: a.n, Mean: a.sum / float64(a.n)})
	}
	slices.SortFunc(out, func(a, b Group[K]) int { return cmp.Compare(a.Key, b.Key) })
	return out
}

// GroupedCount counts records per key, ordered by key ascending.
func GroupedCount[K cmp.Ordered](records []dataset.Record, key func(dataset.Record) (K, bool)) []Count[K] {
	counts := map[K]int{}
	for _, r := range records {
		if k, ok := key(r); ok {
			counts[k]++
		}
	}
	out := make([]Count[K], 0, len(counts))
	for k, n := range counts {
		out = append(out, Count[K]{Key: k, Count: n})
	}
	slices.SortFunc(out, func(a, b Count[K]) int { return cmp.Compare(a.Key, b.Key) })
	return out
}
