package estimate

import (
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/animelens/internal/dataset"
)

func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }

var studios = []string{"Bones", "Madhouse", "Sunrise"}

// linear synthetic data: the model family can represent it exactly
func synthetic(n int) []dataset.Record {
	out := make([]dataset.Record, 0, n)
	for k := 0; k < n; k++ {
		year := 1990 + k%20
		eps := 12 + (k*7)%40
		studio := studios[k%3]
		genres := []string{}
		score := 4 + 0.05*float64(year-1990) + 0.01*float64(eps) + 0.1*float64(k%3+1)
		if k%2 == 0 {
			genres = append(genres, "Comedy")
			score += 0.5
		}
		if k%3 == 0 {
			genres = append(genres, "Action")
			score += 0.8
		}
		if k%5 == 0 {
			genres = append(genres, "Drama")
			score -= 0.3
		}
		out = append(out, dataset.Record{
			ID: k + 1, Name: "show", Type: "TV",
			Score: f64(score), Year: intp(year), Episodes: intp(eps),
			Studio: studio, Genres: genres,
		})
	}
	return out
}

func TestBuildVocabulary(t *testing.T) {
	v := BuildVocabulary(synthetic(30))
	if strings.Join(v.Genres, ",") != "Action,Comedy,Drama" {
		t.Fatalf("genres = %v", v.Genres)
	}
	if strings.Join(v.Studios, ",") != "Unknown,Bones,Madhouse,Sunrise" {
		t.Fatalf("studios = %v", v.Studios)
	}
	if c, ok := v.StudioCode(""); !ok || c != 0 {
		t.Fatalf("empty studio code = %d, %v", c, ok)
	}
	if v.Width() != 6 || len(v.FeatureNames()) != 6 {
		t.Fatalf("width = %d", v.Width())
	}
}

func TestEncode(t *testing.T) {
	enc := NewEncoder(BuildVocabulary(synthetic(30)))
	x, err := enc.Encode(Input{Year: 2001, Episodes: 24, Studio: "Madhouse", Genres: []string{"Drama", "Action"}})
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{2001, 24, 2, 1, 0, 1}
	for i := range want {
		if x[i] != want[i] {
			t.Fatalf("x = %v, want %v", x, want)
		}
	}
}

func TestFitRecoversTrainingRows(t *testing.T) {
	recs := synthetic(40)
	m, err := Fit(recs, FitOptions{})
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if m.Samples != 40 || m.ID == "" || m.Lambda != DefaultLambda {
		t.Fatalf("model metadata = %+v", m)
	}
	if m.R2 < 0.99 {
		t.Fatalf("r2 = %v", m.R2)
	}
	for _, r := range recs {
		p, err := m.Predict(inputOf(r))
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(p.Score-*r.Score) > 0.05+3*m.RMSE {
			t.Fatalf("record %d: predicted %.3f, actual %.3f (rmse %.4f)", r.ID, p.Score, *r.Score, m.RMSE)
		}
	}
}

func TestFitSkipsIncompleteRecords(t *testing.T) {
	recs := synthetic(30)
	recs = append(recs, dataset.Record{Name: "no year", Score: f64(9), Episodes: intp(1), Studio: "Other", Genres: []string{"Horror"}})
	m, err := Fit(recs, FitOptions{Lambda: 0.01})
	if err != nil {
		t.Fatal(err)
	}
	if m.Samples != 30 || m.Lambda != 0.01 {
		t.Fatalf("samples = %d lambda = %v", m.Samples, m.Lambda)
	}
	if _, ok := m.Vocabulary.GenreIndex("Horror"); ok {
		t.Fatal("incomplete record leaked into vocabulary")
	}
}

func TestPredictUnseenCategories(t *testing.T) {
	m, err := Fit(synthetic(30), FitOptions{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = m.Predict(Input{Year: 2000, Episodes: 12, Genres: []string{"Comedy", "Isekai"}})
	var uerr *UnseenCategoryError
	if !errors.As(err, &uerr) || uerr.Field != "genre" || uerr.Value != "Isekai" {
		t.Fatalf("err = %v", err)
	}
	if !errors.Is(err, ErrUnseenCategory) || !strings.Contains(err.Error(), `"Isekai"`) {
		t.Fatalf("err = %v", err)
	}

	_, err = m.Predict(Input{Year: 2000, Episodes: 12, Studio: "Ghibli"})
	if !errors.As(err, &uerr) || uerr.Field != "studio" || uerr.Value != "Ghibli" {
		t.Fatalf("err = %v", err)
	}

	// absent studio uses the unknown code
	if _, err := m.Predict(Input{Year: 2000, Episodes: 12, Genres: []string{"Drama"}}); err != nil {
		t.Fatalf("absent studio: %v", err)
	}
}

func TestPredictOutsideObservedRange(t *testing.T) {
	m, err := Fit(synthetic(30), FitOptions{})
	if err != nil {
		t.Fatal(err)
	}
	p, err := m.Predict(Input{Year: 2400, Episodes: 2000, Studio: "Sunrise", Genres: []string{"Comedy", "Action"}})
	if err != nil {
		t.Fatal(err)
	}
	if !p.OutsideObserved || p.Score <= m.ScoreMax {
		t.Fatalf("prediction = %+v (max %v)", p, m.ScoreMax)
	}
}

func TestFitEmptyAndUnderdetermined(t *testing.T) {
	noEpisodes := synthetic(10)
	for i := range noEpisodes {
		noEpisodes[i].Episodes = nil
	}
	if _, err := Fit(noEpisodes, FitOptions{}); !errors.Is(err, ErrEmptyFitSet) {
		t.Fatalf("err = %v, want ErrEmptyFitSet", err)
	}
	if _, err := Fit(nil, FitOptions{}); !errors.Is(err, ErrEmptyFitSet) {
		t.Fatalf("nil input err = %v", err)
	}

	// 4 records, 3 + 3 genre features
	_, err := Fit(synthetic(4), FitOptions{})
	var uerr *UnderdeterminedError
	if !errors.As(err, &uerr) || !errors.Is(err, ErrUnderdetermined) {
		t.Fatalf("err = %v, want underdetermined", err)
	}
	if uerr.Records != 4 || uerr.Features != 6 {
		t.Fatalf("underdetermined = %+v", uerr)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m, err := Fit(synthetic(30), FitOptions{})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "models", "score.yaml")
	if err := m.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := LoadModel(path)
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if got.ID != m.ID || strings.Join(got.Vocabulary.Genres, ",") != strings.Join(m.Vocabulary.Genres, ",") {
		t.Fatalf("loaded = %+v", got)
	}
	in := Input{Year: 2005, Episodes: 26, Studio: "Bones", Genres: []string{"Action"}}
	a, _ := m.Predict(in)
	b, err := got.Predict(in)
	if err != nil {
		t.Fatal(err)
	}
	if a.Score != b.Score {
		t.Fatalf("predictions differ after reload: %v vs %v", a.Score, b.Score)
	}
}
