package analysis

import (
	"sort"

	"github.com/KaramelBytes/animelens/internal/dataset"
)

// CategoryCount is a label and how many records carry it.
type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Frequency is a label→count table ordered by descending count. Labels with equal
// counts keep the order in which they were first encountered in the input; this
// is part of the contract, so top-N cut-offs are reproducible for a given input order.
type Frequency struct {
	Field  string          `json:"field"`
	Counts []CategoryCount `json:"counts"`
	// Records is the number of records that contributed at least one label.
	Records int `json:"records"`
}

// CategoryFrequency counts, for each label of f, how many records contain it.
// Multi-label fields count a record once per distinct label.
func CategoryFrequency(records []dataset.Record, f dataset.LabelField) Frequency {
	pos := map[string]int{}
	var counts []CategoryCount
	contributing := 0
	for _, r := range records {
		labels := f.Labels(r)
		if len(labels) == 0 {
			continue
		}
		contributing++
		for _, l := range labels {
			i, ok := pos[l]
			if !ok {
				i = len(counts)
				pos[l] = i
				counts = append(counts, CategoryCount{Value: l})
			}
			counts[i].Count++
		}
	}
	sort.SliceStable(counts, func(i, j int) bool { return counts[i].Count > counts[j].Count })
	return Frequency{Field: f.Name, Counts: counts, Records: contributing}
}

// Top returns at most n entries. n <= 0 returns all.
func (f Frequency) Top(n int) []CategoryCount {
	if n <= 0 || n >= len(f.Counts) {
		return f.Counts
	}
	return f.Counts[:n]
}

// Get returns the count for a label, 0 if absent.
func (f Frequency) Get(label string) int {
	for _, c := range f.Counts {
		if c.Value == label {
			return c.Count
		}
	}
	return 0
}

// Total sums all counts.
func (f Frequency) Total() int {
	n := 0
	for _, c := range f.Counts {
		n += c.Count
	}
	return n
}
