package estimate

import "github.com/KaramelBytes/animelens/internal/dataset"

// year, episodes, studio code
const numericFeatures = 3

// Input is one feature combination to encode or predict.
type Input struct {
	Year     int      `json:"year" yaml:"year" validate:"gte=1000,lte=9999"`
	Episodes int      `json:"episodes" yaml:"episodes" validate:"gte=0"`
	Studio   string   `json:"studio,omitempty" yaml:"studio,omitempty"`
	Genres   []string `json:"genres" yaml:"genres" validate:"dive,required"`
}

// Encoder maps inputs onto feature vectors using a fixed vocabulary.
type Encoder struct {
	vocab *Vocabulary
}

// NewEncoder returns an encoder bound to v.
func NewEncoder(v *Vocabulary) Encoder { return Encoder{vocab: v} }

// Encode returns [year, episodes, studio code, genre multi-hot...]. An empty
// studio encodes as the unknown studio. Any genre or studio outside the
// vocabulary yields *UnseenCategoryError.
func (e Encoder) Encode(in Input) ([]float64, error) {
	x := make([]float64, e.vocab.Width())
	x[0] = float64(in.Year)
	x[1] = float64(in.Episodes)
	code, ok := e.vocab.StudioCode(in.Studio)
	if !ok {
		return nil, &UnseenCategoryError{Field: "studio", Value: in.Studio}
	}
	x[2] = float64(code)
	for _, g := range in.Genres {
		i, ok := e.vocab.GenreIndex(g)
		if !ok {
			return nil, &UnseenCategoryError{Field: "genre", Value: g}
		}
		x[numericFeatures+i] = 1
	}
	return x, nil
}

// inputOf builds the Input of a complete record.
func inputOf(r dataset.Record) Input {
	return Input{Year: *r.Year, Episodes: *r.Episodes, Studio: r.Studio, Genres: r.Genres}
}

// CompleteCases keeps records with score, year and episodes present. Studio is
// always present after loading since an absent one becomes the unknown studio.
func CompleteCases(records []dataset.Record) []dataset.Record {
	out := make([]dataset.Record, 0, len(records))
	for _, r := range records {
		if r.Score == nil || r.Year == nil || r.Episodes == nil {
			continue
		}
		out = append(out, r)
	}
	return out
}
