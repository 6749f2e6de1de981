package recommend

import (
	"slices"

	"github.com/KaramelBytes/animelens/internal/dataset"
)

// Predicate reports whether a record is kept.
type Predicate func(dataset.Record) bool

// Where keeps records matching every predicate, preserving order. The result
// is never nil.
func Where(records []dataset.Record, preds ...Predicate) []dataset.Record {
	out := make([]dataset.Record, 0, len(records))
next:
	for _, r := range records {
		for _, p := range preds {
			if !p(r) {
				continue next
			}
		}
		out = append(out, r)
	}
	return out
}

// MinScore keeps scored records with score >= min.
func MinScore(min float64) Predicate {
	return func(r dataset.Record) bool { return r.Score != nil && *r.Score >= min }
}

// ScoreBetween keeps scored records with lo <= score <= hi.
func ScoreBetween(lo, hi float64) Predicate {
	return func(r dataset.Record) bool { return r.Score != nil && *r.Score >= lo && *r.Score <= hi }
}

// EpisodesBetween keeps records with a known episode count in [lo, hi].
func EpisodesBetween(lo, hi int) Predicate {
	return func(r dataset.Record) bool { return r.Episodes != nil && *r.Episodes >= lo && *r.Episodes <= hi }
}

// YearBetween keeps records with a known year in [lo, hi].
func YearBetween(lo, hi int) Predicate {
	return func(r dataset.Record) bool { return r.Year != nil && *r.Year >= lo && *r.Year <= hi }
}

// HasType keeps records whose type is one of types. No types keeps everything.
func HasType(types ...string) Predicate {
	if len(types) == 0 {
		return func(dataset.Record) bool { return true }
	}
	return func(r dataset.Record) bool { return slices.Contains(types, r.Type) }
}

// HasGenre keeps records carrying at least one of genres. No genres keeps everything.
func HasGenre(genres ...string) Predicate {
	if len(genres) == 0 {
		return func(dataset.Record) bool { return true }
	}
	return func(r dataset.Record) bool { return r.HasAnyGenre(genres) }
}
