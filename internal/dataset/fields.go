package dataset

import (
	"sort"
	"strings"
)

// NumericField reads an optional numeric attribute from a record.
type NumericField struct {
	Name string
	Get  func(Record) (float64, bool)
}

// LabelField yields the categorical labels of a record. Single-label fields
// return at most one label.
type LabelField struct {
	Name   string
	Multi  bool
	Labels func(Record) []string
}

func intField(name string, get func(Record) *int) NumericField {
	return NumericField{Name: name, Get: func(r Record) (float64, bool) {
		p := get(r)
		if p == nil {
			return 0, false
		}
		return float64(*p), true
	}}
}

var (
	ScoreField = NumericField{Name: "score", Get: func(r Record) (float64, bool) {
		if r.Score == nil {
			return 0, false
		}
		return *r.Score, true
	}}
	EpisodesField    = intField("episodes", func(r Record) *int { return r.Episodes })
	YearField        = intField("year", func(r Record) *int { return r.Year })
	PopularityField  = intField("popularity", func(r Record) *int { return r.Popularity })
	MembersField     = intField("members", func(r Record) *int { return r.Members })
	FavoritesField   = intField("favorites", func(r Record) *int { return r.Favorites })
	WatchingField    = intField("watching", func(r Record) *int { return r.Watching })
	CompletedField   = intField("completed", func(r Record) *int { return r.Completed })
	OnHoldField      = intField("on_hold", func(r Record) *int { return r.OnHold })
	DroppedField     = intField("dropped", func(r Record) *int { return r.Dropped })
	PlanToWatchField = intField("plan_to_watch", func(r Record) *int { return r.PlanToWatch })
)

var (
	GenresField = LabelField{Name: "genres", Multi: true, Labels: func(r Record) []string { return r.Genres }}
	TypeField   = LabelField{Name: "type", Labels: func(r Record) []string { return single(r.Type) }}
	StudioField = LabelField{Name: "studio", Labels: func(r Record) []string { return single(r.Studio) }}
)

func single(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

// EngagementFields lists the viewing-status counters in display order.
var EngagementFields = []NumericField{WatchingField, CompletedField, OnHoldField, DroppedField, PlanToWatchField}

var numericByName = map[string]NumericField{}
var labelByName = map[string]LabelField{}

func init() {
	for _, f := range []NumericField{ScoreField, EpisodesField, YearField, PopularityField, MembersField, FavoritesField} {
		numericByName[f.Name] = f
	}
	for _, f := range EngagementFields {
		numericByName[f.Name] = f
	}
	for _, f := range []LabelField{GenresField, TypeField, StudioField} {
		labelByName[f.Name] = f
	}
	// common aliases
	numericByName["episode"] = EpisodesField
	labelByName["genre"] = GenresField
	labelByName["studios"] = StudioField
}

// NumericFieldByName resolves a numeric field by case-insensitive name.
func NumericFieldByName(name string) (NumericField, bool) {
	f, ok := numericByName[normName(name)]
	return f, ok
}

// LabelFieldByName resolves a categorical field by case-insensitive name.
func LabelFieldByName(name string) (LabelField, bool) {
	f, ok := labelByName[normName(name)]
	return f, ok
}

// NumericFieldNames returns the canonical numeric field names, sorted.
func NumericFieldNames() []string {
	var out []string
	for k, f := range numericByName {
		if k == f.Name {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func normName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}

// YearKey is the grouping key used by the trend views.
func YearKey(r Record) (int, bool) {
	if r.Year == nil {
		return 0, false
	}
	return *r.Year, true
}
