package analysis

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/KaramelBytes/animelens/internal/dataset"
)

func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }

func rec(name string, score float64, typ string, year int, genres ...string) dataset.Record {
	if genres == nil {
		genres = []string{}
	}
	return dataset.Record{Name: name, Score: f64(score), Type: typ, Year: intp(year), Studio: dataset.UnknownStudio, Genres: genres}
}

// five records used across the aggregation tests
func toy() []dataset.Record {
	return []dataset.Record{
		rec("a", 6.0, "TV", 2001, "Comedy"),
		rec("b", 7.0, "Movie", 2001, "Action"),
		rec("c", 8.0, "TV", 2002, "Comedy", "Action"),
		rec("d", 7.5, "OVA", 2003, "Drama"),
		rec("e", 9.0, "TV", 2003, "Comedy"),
	}
}

func TestCategoryFrequencyToyScenario(t *testing.T) {
	freq := CategoryFrequency(toy(), dataset.GenresField)
	want := []CategoryCount{{"Comedy", 3}, {"Action", 2}, {"Drama", 1}}
	if len(freq.Counts) != len(want) {
		t.Fatalf("counts = %+v", freq.Counts)
	}
	for k, w := range want {
		if freq.Counts[k] != w {
			t.Fatalf("counts[%d] = %+v, want %+v", k, freq.Counts[k], w)
		}
	}
	if freq.Records != 5 {
		t.Fatalf("contributing records = %d", freq.Records)
	}
	if top := freq.Top(2); len(top) != 2 || top[1].Value != "Action" {
		t.Fatalf("top(2) = %+v", top)
	}
	if len(freq.Top(0)) != 3 || len(freq.Top(99)) != 3 {
		t.Fatal("top bounds")
	}
}

func TestCategoryFrequencySumsToSetSizes(t *testing.T) {
	recs := toy()
	recs = append(recs, rec("empty", 5, "TV", 2004))
	freq := CategoryFrequency(recs, dataset.GenresField)
	sizes := 0
	for _, r := range recs {
		sizes += len(r.Genres)
	}
	if freq.Total() != sizes {
		t.Fatalf("total %d != genre set sizes %d", freq.Total(), sizes)
	}
	if freq.Get("") != 0 || freq.Records != 5 {
		t.Fatalf("empty genre set should contribute nothing: %+v", freq)
	}
}

func TestCategoryFrequencyTiesKeepFirstSeen(t *testing.T) {
	recs := []dataset.Record{
		rec("x", 5, "TV", 2000, "Zeta"),
		rec("y", 5, "TV", 2000, "Alpha"),
		rec("z", 5, "TV", 2000, "Mecha"),
	}
	freq := CategoryFrequency(recs, dataset.GenresField)
	got := []string{freq.Counts[0].Value, freq.Counts[1].Value, freq.Counts[2].Value}
	if strings.Join(got, ",") != "Zeta,Alpha,Mecha" {
		t.Fatalf("tie order = %v", got)
	}
}

func TestGroupedMean(t *testing.T) {
	groups := GroupedMean(toy(), dataset.YearKey, dataset.ScoreField)
	if len(groups) != 3 {
		t.Fatalf("groups = %+v", groups)
	}
	if groups[0].Key != 2001 || groups[0].Mean != 6.5 || groups[0].Count != 2 {
		t.Fatalf("2001 = %+v", groups[0])
	}
	if groups[1].Key != 2002 || groups[1].Mean != 8.0 || groups[1].Count != 1 {
		t.Fatalf("single record group should equal its value: %+v", groups[1])
	}

	// missing keys and values are skipped
	recs := toy()
	recs[0].Year = nil
	recs[1].Score = nil
	groups = GroupedMean(recs, dataset.YearKey, dataset.ScoreField)
	if len(groups) != 2 || groups[0].Key != 2002 {
		t.Fatalf("groups with missing = %+v", groups)
	}
}

func TestGroupedCountByType(t *testing.T) {
	typeKey := func(r dataset.Record) (string, bool) { return r.Type, r.Type != "" }
	counts := GroupedCount(toy(), typeKey)
	if len(counts) != 3 || counts[2].Key != "TV" || counts[2].Count != 3 {
		t.Fatalf("counts = %+v", counts)
	}
}

func TestCorrelation(t *testing.T) {
	recs := toy()
	for k := range recs {
		recs[k].Members = intp(100 * (k + 1))
	}
	ab := Correlation(recs, dataset.ScoreField, dataset.MembersField)
	ba := Correlation(recs, dataset.MembersField, dataset.ScoreField)
	if !ab.Defined() || ab.R != ba.R || ab.N != 5 {
		t.Fatalf("asymmetric or undefined: %+v %+v", ab, ba)
	}
	if ab.R < -1 || ab.R > 1 {
		t.Fatalf("r out of range: %v", ab.R)
	}

	// constant side
	for k := range recs {
		recs[k].Members = intp(42)
	}
	if r := Correlation(recs, dataset.ScoreField, dataset.MembersField); !math.IsNaN(r.R) {
		t.Fatalf("constant field r = %v, want NaN", r.R)
	}
	// fewer than two pairs
	if r := Correlation(recs[:1], dataset.ScoreField, dataset.YearField); !math.IsNaN(r.R) || r.N != 1 {
		t.Fatalf("single pair = %+v", r)
	}
	if FormatR(math.NaN()) != "n/a" {
		t.Fatal("FormatR NaN")
	}
}

func TestCorrelationsMatrix(t *testing.T) {
	recs := toy()
	m := Correlations(recs, []dataset.NumericField{dataset.ScoreField, dataset.YearField, dataset.EpisodesField})
	if m.Values[0][0] != 1 || m.Values[0][1] != m.Values[1][0] {
		t.Fatalf("matrix = %+v", m.Values)
	}
	if !math.IsNaN(m.Values[0][2]) {
		t.Fatalf("episodes are all missing, r = %v", m.Values[0][2])
	}
	if !math.IsNaN(m.Values[2][2]) {
		t.Fatalf("diagonal of an empty field = %v, want NaN", m.Values[2][2])
	}
	pairs := m.TopPairs(10)
	if len(pairs) != 1 || pairs[0].A != "score" || pairs[0].B != "year" {
		t.Fatalf("pairs = %+v", pairs)
	}
}

func TestDescribe(t *testing.T) {
	s := Describe(toy(), dataset.ScoreField)
	if s.Count != 5 || s.Missing != 0 || s.Min != 6 || s.Max != 9 {
		t.Fatalf("summary = %+v", s)
	}
	if s.Mean != 7.5 || s.Median != 7.5 || s.P25 != 7 || s.P75 != 8 {
		t.Fatalf("summary = %+v", s)
	}
	if math.Abs(s.Std-math.Sqrt(1.25)) > 1e-12 {
		t.Fatalf("std = %v", s.Std)
	}
	empty := Describe(toy(), dataset.EpisodesField)
	if empty.Count != 0 || empty.Missing != 5 {
		t.Fatalf("episodes summary = %+v", empty)
	}
}

func TestHistogram(t *testing.T) {
	bins := Histogram(toy(), dataset.ScoreField, math.NaN(), math.NaN(), 3)
	if len(bins) != 3 {
		t.Fatalf("bins = %+v", bins)
	}
	want := []int{1, 2, 2}
	total := 0
	for k, b := range bins {
		if b.Count != want[k] {
			t.Fatalf("bin %d = %+v, want count %d", k, b, want[k])
		}
		total += b.Count
	}
	if total != 5 {
		t.Fatalf("histogram lost values: %d", total)
	}

	ranged := Histogram(toy(), dataset.ScoreField, 7, 8, 2)
	if len(ranged) != 2 || ranged[0].Count+ranged[1].Count != 3 {
		t.Fatalf("ranged = %+v", ranged)
	}
	if Histogram(toy(), dataset.EpisodesField, math.NaN(), math.NaN(), 5) != nil {
		t.Fatal("expected nil histogram for missing field")
	}
}

func TestHistogramInfiniteBoundsUseExtent(t *testing.T) {
	bins := Histogram(toy(), dataset.ScoreField, math.Inf(-1), math.Inf(1), 3)
	if len(bins) != 3 || bins[0].Lo != 6 || bins[2].Hi != 9 {
		t.Fatalf("bins = %+v", bins)
	}
	for _, b := range bins {
		if math.IsInf(b.Lo, 0) || math.IsInf(b.Hi, 0) {
			t.Fatalf("non-finite edge in %+v", b)
		}
	}
	if _, err := json.Marshal(bins); err != nil {
		t.Fatalf("encode bins: %v", err)
	}
}

func TestCorrelationsConstantFieldDiagonal(t *testing.T) {
	recs := toy()
	for i := range recs {
		recs[i].Episodes = intp(12)
	}
	m := Correlations(recs, []dataset.NumericField{dataset.ScoreField, dataset.EpisodesField})
	if m.Values[0][0] != 1 {
		t.Fatalf("score diagonal = %v", m.Values[0][0])
	}
	if !math.IsNaN(m.Values[1][1]) || !math.IsNaN(m.Values[0][1]) {
		t.Fatalf("constant episodes row = %v", m.Values[1])
	}
}

func TestQuantileInterpolatesBetweenRanks(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	cases := map[float64]float64{0: 1, 0.25: 1.75, 0.5: 2.5, 0.75: 3.25, 1: 4}
	for q, want := range cases {
		if got := quantile(sorted, q); math.Abs(got-want) > 1e-12 {
			t.Errorf("quantile(%v) = %v, want %v", q, got, want)
		}
	}
	median, mad := medianMAD([]float64{1, 1, 2, 2, 4, 6, 9})
	if median != 2 || mad != 1 {
		t.Fatalf("median=%v mad=%v", median, mad)
	}
}

func TestSampleNamesStayValidUTF8(t *testing.T) {
	recs := toy()
	recs[0].Name = strings.Repeat("進撃の巨人", 20)
	tbl := &dataset.Table{Records: recs, Stats: dataset.LoadStats{Rows: 5, Kept: 5}}
	md := Summarize(tbl, DefaultReportOptions()).Markdown()
	if !utf8.ValidString(md) {
		t.Fatal("report contains invalid UTF-8")
	}
	if !strings.Contains(md, "…") {
		t.Fatalf("long name not truncated:\n%s", md)
	}
}

func TestCrossTabulate(t *testing.T) {
	ct := CrossTabulate(toy(), dataset.GenresField, dataset.TypeField, 0)
	if ct.Cell("Comedy", "TV") != 3 || ct.Cell("Action", "Movie") != 1 || ct.Cell("Drama", "TV") != 0 {
		t.Fatalf("crosstab = %+v", ct)
	}
	limited := CrossTabulate(toy(), dataset.GenresField, dataset.TypeField, 1)
	if len(limited.Rows) != 1 || limited.Rows[0] != "Comedy" {
		t.Fatalf("limited rows = %v", limited.Rows)
	}
}

func TestEngagement(t *testing.T) {
	recs := toy()
	recs[0].Watching, recs[0].Completed = intp(10), intp(30)
	recs[1].Completed, recs[1].Dropped = intp(50), intp(10)
	totals := Engagement(recs)
	if len(totals) != 5 || totals[1].Status != "completed" || totals[1].Total != 80 || totals[1].Records != 2 {
		t.Fatalf("totals = %+v", totals)
	}
	if math.Abs(totals[1].Share-0.8) > 1e-12 {
		t.Fatalf("share = %v", totals[1].Share)
	}
	for _, s := range Engagement(toy()) {
		if s.Total != 0 || s.Share != 0 {
			t.Fatalf("expected zeros: %+v", s)
		}
	}
}

func TestSummarizeMarkdown(t *testing.T) {
	tbl := &dataset.Table{
		Revision: dataset.Revision{Path: "/tmp/anime.csv"},
		Records:  toy(),
		Stats:    dataset.LoadStats{Rows: 7, Kept: 5, MissingScore: 2},
	}
	rep := Summarize(tbl, DefaultReportOptions())
	md := rep.Markdown()
	for _, want := range []string{"[DATASET SUMMARY]", "File: anime.csv", "Rows: 7 (kept 5)", "[NUMERIC FIELDS]", "[CATEGORIES]", "Comedy(3)", "[CORRELATIONS]", "score ~ year", "[SAMPLE RECORDS]", "[NOTES]", "2 rows dropped"} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
	if rep.Unique["genres"] != 3 {
		t.Fatalf("unique = %+v", rep.Unique)
	}
}
