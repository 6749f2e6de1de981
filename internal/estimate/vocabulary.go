// Package estimate fits and applies a linear score model over
// (year, episodes, studio, genres) features.
package estimate

import (
	"sort"

	"github.com/KaramelBytes/animelens/internal/dataset"
)

// Vocabulary is the fixed label order used to encode categorical features.
// Genres map to multi-hot columns in Genres order. Studios map to their index;
// dataset.UnknownStudio is always code 0. A Vocabulary is immutable once built.
type Vocabulary struct {
	Genres  []string `yaml:"genres" json:"genres"`
	Studios []string `yaml:"studios" json:"studios"`

	genreIdx  map[string]int
	studioIdx map[string]int
}

// BuildVocabulary collects the genres and studios seen in records. Both lists are
// sorted, with the unknown studio pinned first.
func BuildVocabulary(records []dataset.Record) *Vocabulary {
	genres := map[string]bool{}
	studios := map[string]bool{}
	for _, r := range records {
		for _, g := range r.Genres {
			genres[g] = true
		}
		if r.Studio != "" && r.Studio != dataset.UnknownStudio {
			studios[r.Studio] = true
		}
	}
	gs := make([]string, 0, len(genres))
	for g := range genres {
		gs = append(gs, g)
	}
	sort.Strings(gs)
	ss := make([]string, 0, len(studios))
	for s := range studios {
		ss = append(ss, s)
	}
	sort.Strings(ss)
	return NewVocabulary(gs, append([]string{dataset.UnknownStudio}, ss...))
}

// NewVocabulary wraps label lists in the given order, e.g. as read back from a
// saved model. The unknown studio is inserted at code 0 if missing.
func NewVocabulary(genres, studios []string) *Vocabulary {
	if len(studios) == 0 || studios[0] != dataset.UnknownStudio {
		rest := make([]string, 0, len(studios))
		for _, s := range studios {
			if s != dataset.UnknownStudio {
				rest = append(rest, s)
			}
		}
		studios = append([]string{dataset.UnknownStudio}, rest...)
	}
	v := &Vocabulary{
		Genres:    append([]string(nil), genres...),
		Studios:   append([]string(nil), studios...),
		genreIdx:  make(map[string]int, len(genres)),
		studioIdx: make(map[string]int, len(studios)),
	}
	for i, g := range v.Genres {
		v.genreIdx[g] = i
	}
	for i, s := range v.Studios {
		v.studioIdx[s] = i
	}
	return v
}

// GenreIndex returns the multi-hot column of g.
func (v *Vocabulary) GenreIndex(g string) (int, bool) {
	i, ok := v.genreIdx[g]
	return i, ok
}

// StudioCode returns the integer code of s. An empty studio is the unknown studio.
func (v *Vocabulary) StudioCode(s string) (int, bool) {
	if s == "" {
		s = dataset.UnknownStudio
	}
	i, ok := v.studioIdx[s]
	return i, ok
}

// Width is the length of an encoded feature vector.
func (v *Vocabulary) Width() int { return numericFeatures + len(v.Genres) }

// FeatureNames labels each column of an encoded vector.
func (v *Vocabulary) FeatureNames() []string {
	out := []string{"year", "episodes", "studio"}
	for _, g := range v.Genres {
		out = append(out, "genre:"+g)
	}
	return out
}
