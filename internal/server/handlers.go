package server

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/KaramelBytes/animelens/internal/analysis"
	"github.com/KaramelBytes/animelens/internal/dataset"
	"github.com/KaramelBytes/animelens/internal/estimate"
	"github.com/KaramelBytes/animelens/internal/recommend"
	"github.com/KaramelBytes/animelens/internal/validation"
)

type topRequest struct {
	Field string `json:"field" validate:"required,oneof=genres genre type studio studios"`
	N     int    `json:"n" validate:"min=1,max=1000"`
}

type histogramRequest struct {
	Field string `json:"field" validate:"required"`
	Bins  int    `json:"bins" validate:"min=1,max=500"`
}

type crosstabRequest struct {
	Row   string `json:"row" validate:"required,oneof=genres genre type studio studios"`
	Col   string `json:"col" validate:"required,oneof=genres genre type studio studios"`
	Limit int    `json:"limit" validate:"gte=0"`
}

type healthResponse struct {
	Status   string            `json:"status"`
	Records  int               `json:"records"`
	Revision dataset.Revision  `json:"revision"`
	Stats    dataset.LoadStats `json:"stats"`
	Uptime   string            `json:"uptime"`
}

type modelResponse struct {
	ID       string    `json:"id"`
	FittedAt time.Time `json:"fitted_at"`
	Samples  int       `json:"samples"`
	RMSE     float64   `json:"rmse"`
	R2       float64   `json:"r2"`
	ScoreMin float64   `json:"score_min"`
	ScoreMax float64   `json:"score_max"`
	Genres   []string  `json:"genres"`
	Studios  []string  `json:"studios"`
}

// loadTable fetches the snapshot or writes an error response.
func (s *Server) loadTable(w http.ResponseWriter) (*dataset.Table, bool) {
	t, err := s.table()
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeDataset, "dataset could not be loaded", nil, err)
		return nil, false
	}
	return t, true
}

func validated(w http.ResponseWriter, req any) bool {
	if err := validation.Validate(req); err != nil {
		var verr *validation.Error
		var details any
		if errors.As(err, &verr) {
			details = verr.Fields
		}
		respondError(w, http.StatusBadRequest, codeValidation, err.Error(), details, nil)
		return false
	}
	return true
}

func badRequest(w http.ResponseWriter, err error) {
	respondError(w, http.StatusBadRequest, codeBadRequest, err.Error(), nil, nil)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	t, ok := s.loadTable(w)
	if !ok {
		return
	}
	respondOK(w, healthResponse{
		Status:   "ok",
		Records:  t.Len(),
		Revision: t.Revision,
		Stats:    t.Stats,
		Uptime:   time.Since(s.started).Round(time.Second).String(),
	}, t.Len(), start)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	t, ok := s.loadTable(w)
	if !ok {
		return
	}
	opt := analysis.DefaultReportOptions()
	opt.TopN = s.cfg.TopN
	respondOK(w, analysis.Summarize(t, opt), t.Len(), start)
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	n, err := queryInt(r, "n", s.cfg.TopN)
	if err != nil {
		badRequest(w, err)
		return
	}
	req := topRequest{Field: strings.ToLower(r.URL.Query().Get("field")), N: n}
	if req.Field == "" {
		req.Field = dataset.GenresField.Name
	}
	if !validated(w, &req) {
		return
	}
	field, _ := dataset.LabelFieldByName(req.Field)
	t, ok := s.loadTable(w)
	if !ok {
		return
	}
	recs := recommend.Where(t.Records, recommend.HasType(queryList(r, "type")...))
	freq := analysis.CategoryFrequency(recs, field)
	freq.Counts = freq.Top(req.N)
	respondOK(w, freq, len(recs), start)
}

func (s *Server) handleTrendScore(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	t, ok := s.loadTable(w)
	if !ok {
		return
	}
	recs := recommend.Where(t.Records,
		recommend.HasType(queryList(r, "type")...),
		recommend.HasGenre(queryList(r, "genre")...))
	respondOK(w, analysis.GroupedMean(recs, dataset.YearKey, dataset.ScoreField), len(recs), start)
}

func (s *Server) handleTrendCount(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	t, ok := s.loadTable(w)
	if !ok {
		return
	}
	recs := recommend.Where(t.Records,
		recommend.HasType(queryList(r, "type")...),
		recommend.HasGenre(queryList(r, "genre")...))
	respondOK(w, analysis.GroupedCount(recs, dataset.YearKey), len(recs), start)
}

func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := r.URL.Query()
	a, okA := dataset.NumericFieldByName(q.Get("a"))
	b, okB := dataset.NumericFieldByName(q.Get("b"))
	if !okA || !okB {
		respondError(w, http.StatusBadRequest, codeValidation,
			"a and b must be numeric fields: "+strings.Join(dataset.NumericFieldNames(), ", "), nil, nil)
		return
	}
	t, ok := s.loadTable(w)
	if !ok {
		return
	}
	respondOK(w, analysis.Correlation(t.Records, a, b), t.Len(), start)
}

func (s *Server) handleHistogram(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	bins, err := queryInt(r, "bins", s.cfg.HistBins)
	if err != nil {
		badRequest(w, err)
		return
	}
	lo, err := queryFloat(r, "min", math.NaN())
	if err != nil {
		badRequest(w, err)
		return
	}
	hi, err := queryFloat(r, "max", math.NaN())
	if err != nil {
		badRequest(w, err)
		return
	}
	req := histogramRequest{Field: r.URL.Query().Get("field"), Bins: bins}
	if req.Field == "" {
		req.Field = dataset.ScoreField.Name
	}
	if !validated(w, &req) {
		return
	}
	field, ok := dataset.NumericFieldByName(req.Field)
	if !ok {
		respondError(w, http.StatusBadRequest, codeValidation, "unknown numeric field "+req.Field, nil, nil)
		return
	}
	t, ok := s.loadTable(w)
	if !ok {
		return
	}
	recs := recommend.Where(t.Records,
		recommend.HasType(queryList(r, "type")...),
		recommend.HasGenre(queryList(r, "genre")...))
	bs := analysis.Histogram(recs, field, lo, hi, req.Bins)
	if bs == nil {
		bs = []analysis.Bin{}
	}
	respondOK(w, bs, len(recs), start)
}

func (s *Server) handleCrosstab(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		badRequest(w, err)
		return
	}
	q := r.URL.Query()
	req := crosstabRequest{Row: q.Get("row"), Col: q.Get("col"), Limit: limit}
	if req.Row == "" {
		req.Row = dataset.GenresField.Name
	}
	if req.Col == "" {
		req.Col = dataset.TypeField.Name
	}
	if !validated(w, &req) {
		return
	}
	row, _ := dataset.LabelFieldByName(req.Row)
	col, _ := dataset.LabelFieldByName(req.Col)
	t, ok := s.loadTable(w)
	if !ok {
		return
	}
	respondOK(w, analysis.CrossTabulate(t.Records, row, col, req.Limit), t.Len(), start)
}

func (s *Server) handleEngagement(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	t, ok := s.loadTable(w)
	if !ok {
		return
	}
	recs := recommend.Where(t.Records,
		recommend.HasType(queryList(r, "type")...),
		recommend.HasGenre(queryList(r, "genre")...))
	respondOK(w, analysis.Engagement(recs), len(recs), start)
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	t, ok := s.loadTable(w)
	if !ok {
		return
	}
	c := recommend.DefaultCriteria(t.Records)
	c.MinScore = s.cfg.MinScore
	c.Genres = queryList(r, "genres")
	var err error
	if c.MinScore, err = queryFloat(r, "min_score", c.MinScore); err != nil {
		badRequest(w, err)
		return
	}
	if c.YearMin, err = queryInt(r, "year_min", c.YearMin); err != nil {
		badRequest(w, err)
		return
	}
	if c.YearMax, err = queryInt(r, "year_max", c.YearMax); err != nil {
		badRequest(w, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		badRequest(w, err)
		return
	}
	if !validated(w, &c) {
		return
	}
	res := recommend.Filter(t.Records, c)
	if limit > 0 && len(res.Records) > limit {
		res.Records = res.Records[:limit]
	}
	respondOK(w, res, t.Len(), start)
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	t, ok := s.loadTable(w)
	if !ok {
		return
	}
	m, err := s.modelFor(t)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, codeModelUnavailable, err.Error(), nil, err)
		return
	}
	respondOK(w, modelResponse{
		ID: m.ID, FittedAt: m.FittedAt, Samples: m.Samples, RMSE: m.RMSE, R2: m.R2,
		ScoreMin: m.ScoreMin, ScoreMax: m.ScoreMax,
		Genres: m.Vocabulary.Genres, Studios: m.Vocabulary.Studios,
	}, m.Samples, start)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var in estimate.Input
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		badRequest(w, errors.New("invalid JSON body"))
		return
	}
	if !validated(w, &in) {
		return
	}
	t, ok := s.loadTable(w)
	if !ok {
		return
	}
	m, err := s.modelFor(t)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, codeModelUnavailable, err.Error(), nil, err)
		return
	}
	p, err := m.Predict(in)
	var unseen *estimate.UnseenCategoryError
	if errors.As(err, &unseen) {
		respondError(w, http.StatusUnprocessableEntity, codeUnseenCategory, unseen.Error(),
			map[string]string{"field": unseen.Field, "value": unseen.Value}, nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeModelUnavailable, "prediction failed", nil, err)
		return
	}
	respondOK(w, p, m.Samples, start)
}
