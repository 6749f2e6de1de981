package estimate

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/animelens/internal/dataset"
	"github.com/KaramelBytes/animelens/internal/logging"
	"github.com/KaramelBytes/animelens/internal/utils"
)

// DefaultLambda is the ridge penalty on standardized coefficients.
const DefaultLambda = 1e-3

// FitOptions controls Fit.
type FitOptions struct {
	// Lambda is the ridge penalty. If <= 0, DefaultLambda is used.
	Lambda float64
}

// Model is a fitted linear score model. Predictions are
// Intercept + sum(Weights[i] * x[i]) over the encoded feature vector x.
type Model struct {
	ID         string      `yaml:"id" json:"id"`
	FittedAt   time.Time   `yaml:"fitted_at" json:"fitted_at"`
	Source     string      `yaml:"source,omitempty" json:"source,omitempty"`
	Vocabulary *Vocabulary `yaml:"vocabulary" json:"vocabulary"`
	Intercept  float64     `yaml:"intercept" json:"intercept"`
	Weights    []float64   `yaml:"weights" json:"weights"`
	Lambda     float64     `yaml:"lambda" json:"lambda"`
	Samples    int         `yaml:"samples" json:"samples"`
	RMSE       float64     `yaml:"rmse" json:"rmse"`
	R2         float64     `yaml:"r2" json:"r2"`
	ScoreMin   float64     `yaml:"score_min" json:"score_min"`
	ScoreMax   float64     `yaml:"score_max" json:"score_max"`
}

// Prediction is a single model output. OutsideObserved is set when Score falls
// outside the score range seen during fitting; the score itself is not clamped.
type Prediction struct {
	Score           float64 `json:"score"`
	OutsideObserved bool    `json:"outside_observed"`
	ObservedMin     float64 `json:"observed_min"`
	ObservedMax     float64 `json:"observed_max"`
}

// Fit trains a model on the complete cases of records. The vocabulary is built
// from the same complete cases.
func Fit(records []dataset.Record, opt FitOptions) (*Model, error) {
	lambda := opt.Lambda
	if lambda <= 0 {
		lambda = DefaultLambda
	}
	cases := CompleteCases(records)
	if len(cases) == 0 {
		return nil, ErrEmptyFitSet
	}
	vocab := BuildVocabulary(cases)
	n, p := len(cases), vocab.Width()
	if n < p {
		return nil, &UnderdeterminedError{Records: n, Features: p}
	}

	enc := NewEncoder(vocab)
	x := mat.NewDense(n, p, nil)
	y := make([]float64, n)
	for i, r := range cases {
		row, err := enc.Encode(inputOf(r))
		if err != nil {
			return nil, fmt.Errorf("encode record %d: %w", r.ID, err)
		}
		x.SetRow(i, row)
		y[i] = *r.Score
	}

	// standardize columns; constant columns get unit scale and drop out
	means := make([]float64, p)
	scales := make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, x)
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		means[j], scales[j] = mean, std
		for i := 0; i < n; i++ {
			x.Set(i, j, (col[i]-mean)/std)
		}
	}
	yMean := stat.Mean(y, nil)
	yc := make([]float64, n)
	for i := range y {
		yc[i] = y[i] - yMean
	}

	// (ZᵀZ + λI) β = Zᵀy
	var gram mat.SymDense
	gram.SymOuterK(1, x.T())
	for j := 0; j < p; j++ {
		gram.SetSym(j, j, gram.At(j, j)+lambda)
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return nil, fmt.Errorf("%w: normal equations not positive definite", ErrUnderdetermined)
	}
	var rhs, beta mat.VecDense
	rhs.MulVec(x.T(), mat.NewVecDense(n, yc))
	if err := chol.SolveVecTo(&beta, &rhs); err != nil {
		return nil, fmt.Errorf("solve normal equations: %w", err)
	}

	m := &Model{
		ID:         uuid.NewString(),
		FittedAt:   time.Now().UTC(),
		Vocabulary: vocab,
		Weights:    make([]float64, p),
		Lambda:     lambda,
		Samples:    n,
		ScoreMin:   math.Inf(1),
		ScoreMax:   math.Inf(-1),
	}
	m.Intercept = yMean
	for j := 0; j < p; j++ {
		m.Weights[j] = beta.AtVec(j) / scales[j]
		m.Intercept -= m.Weights[j] * means[j]
	}

	var ssRes, ssTot float64
	for i, r := range cases {
		row, _ := enc.Encode(inputOf(r))
		d := m.raw(row) - y[i]
		ssRes += d * d
		t := y[i] - yMean
		ssTot += t * t
		m.ScoreMin = math.Min(m.ScoreMin, y[i])
		m.ScoreMax = math.Max(m.ScoreMax, y[i])
	}
	m.RMSE = math.Sqrt(ssRes / float64(n))
	if ssTot > 0 {
		m.R2 = 1 - ssRes/ssTot
	}

	logging.With("estimate").Debug().
		Str("model", m.ID).
		Int("samples", n).
		Int("features", p).
		Float64("lambda", lambda).
		Float64("rmse", m.RMSE).
		Float64("r2", m.R2).
		Msg("model fitted")
	return m, nil
}

func (m *Model) raw(x []float64) float64 {
	s := m.Intercept
	for j, w := range m.Weights {
		s += w * x[j]
	}
	return s
}

// Encoder returns an encoder over the model's vocabulary.
func (m *Model) Encoder() Encoder { return NewEncoder(m.Vocabulary) }

// Predict scores one input. Unseen genres or studios yield *UnseenCategoryError.
func (m *Model) Predict(in Input) (Prediction, error) {
	x, err := m.Encoder().Encode(in)
	if err != nil {
		return Prediction{}, err
	}
	s := m.raw(x)
	return Prediction{
		Score:           s,
		OutsideObserved: s < m.ScoreMin || s > m.ScoreMax,
		ObservedMin:     m.ScoreMin,
		ObservedMax:     m.ScoreMax,
	}, nil
}

// Save writes the model as YAML, including the vocabulary order.
func (m *Model) Save(path string) error {
	b, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal model: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	return nil
}

// LoadModel reads a model written by Save.
func LoadModel(path string) (*Model, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var m Model
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if _, err := uuid.Parse(m.ID); err != nil {
		return nil, fmt.Errorf("parse model: bad id %q: %w", m.ID, err)
	}
	if m.Vocabulary == nil {
		return nil, fmt.Errorf("parse model: missing vocabulary")
	}
	m.Vocabulary = NewVocabulary(m.Vocabulary.Genres, m.Vocabulary.Studios)
	if len(m.Weights) != m.Vocabulary.Width() {
		return nil, fmt.Errorf("parse model: %d weights for %d features", len(m.Weights), m.Vocabulary.Width())
	}
	return &m, nil
}
