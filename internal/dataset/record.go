package dataset

import "slices"

// UnknownStudio is the sentinel studio label used when the source has none.
const UnknownStudio = "Unknown"

// Record is one anime title from the dataset. Nullable numerics are nil when the
// source value was missing or could not be parsed.
type Record struct {
	ID       int      `json:"mal_id"`
	Name     string   `json:"name"`
	Score    *float64 `json:"score,omitempty"`
	Type     string   `json:"type"`
	Episodes *int     `json:"episodes,omitempty"`
	Aired    string   `json:"aired"`
	Studio   string   `json:"studio"`

	// Derived by Normalize; the source text above is left untouched.
	Year      *int     `json:"year,omitempty"`
	GenresRaw string   `json:"-"`
	Genres    []string `json:"genres"`

	Popularity *int `json:"popularity,omitempty"`
	Members    *int `json:"members,omitempty"`
	Favorites  *int `json:"favorites,omitempty"`

	Watching    *int `json:"watching,omitempty"`
	Completed   *int `json:"completed,omitempty"`
	OnHold      *int `json:"on_hold,omitempty"`
	Dropped     *int `json:"dropped,omitempty"`
	PlanToWatch *int `json:"plan_to_watch,omitempty"`
}

// HasGenre reports whether the record carries the given genre label.
func (r Record) HasGenre(g string) bool {
	return slices.Contains(r.Genres, g)
}

// HasAnyGenre reports whether the record's genres intersect the given set.
func (r Record) HasAnyGenre(gs []string) bool {
	for _, g := range gs {
		if r.HasGenre(g) {
			return true
		}
	}
	return false
}

