package analysis

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/animelens/internal/dataset"
	"github.com/KaramelBytes/animelens/internal/utils"
)

// ReportOptions controls Summarize.
type ReportOptions struct {
	// TopN limits the categorical top values per label field.
	TopN int
	// SampleRows determines how many example records to include in the report.
	SampleRows int
	// Correlations computes Pearson correlations among numeric fields.
	Correlations bool
}

// DefaultReportOptions returns reasonable defaults for the dataset overview.
func DefaultReportOptions() ReportOptions {
	return ReportOptions{TopN: 8, SampleRows: 5, Correlations: true}
}

// Report is a text-friendly overview of a loaded table.
type Report struct {
	Name       string            `json:"name"`
	Stats      dataset.LoadStats `json:"stats"`
	Numeric    []NumericSummary  `json:"numeric"`
	Categories []Frequency       `json:"categories"`
	Unique     map[string]int    `json:"unique"`
	Corr       *CorrMatrix       `json:"correlations,omitempty"`
	Samples    []dataset.Record  `json:"samples,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
}

// Summarize computes the overview report for t.
func Summarize(t *dataset.Table, opt ReportOptions) *Report {
	rep := &Report{Name: filepath.Base(t.Revision.Path), Stats: t.Stats, Unique: map[string]int{}}
	recs := t.Records

	numeric := numericFields()
	for _, f := range numeric {
		rep.Numeric = append(rep.Numeric, Describe(recs, f))
	}
	for _, f := range []dataset.LabelField{dataset.TypeField, dataset.GenresField, dataset.StudioField} {
		freq := CategoryFrequency(recs, f)
		rep.Unique[f.Name] = len(freq.Counts)
		if opt.TopN > 0 {
			freq.Counts = freq.Top(opt.TopN)
		}
		rep.Categories = append(rep.Categories, freq)
	}
	if opt.Correlations {
		rep.Corr = Correlations(recs, numeric)
	}
	n := min(opt.SampleRows, len(recs))
	if n > 0 {
		rep.Samples = recs[:n]
	}

	if t.Stats.Truncated {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("processed only %d rows due to max rows", t.Stats.Rows))
	}
	if t.Stats.MissingScore > 0 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%d rows dropped for missing or out-of-range score", t.Stats.MissingScore))
	}
	if t.Stats.MissingType > 0 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%d rows dropped for missing type", t.Stats.MissingType))
	}
	if t.Stats.Malformed > 0 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%d malformed rows skipped", t.Stats.Malformed))
	}
	return rep
}

func numericFields() []dataset.NumericField {
	names := dataset.NumericFieldNames()
	out := make([]dataset.NumericField, 0, len(names))
	for _, n := range names {
		f, _ := dataset.NumericFieldByName(n)
		out = append(out, f)
	}
	return out
}

// Markdown renders a compact report suitable for terminals or standalone docs.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d (kept %d)\n", r.Stats.Rows, r.Stats.Kept))
	b.WriteString(fmt.Sprintf("Fields: %d numeric, %d categorical\n\n", len(r.Numeric), len(r.Categories)))

	b.WriteString("[NUMERIC FIELDS]\n")
	for _, s := range r.Numeric {
		total := s.Count + s.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(s.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: non-null %d, missing %.1f%%", s.Field, s.Count, missPct))
		if s.Count > 0 {
			b.WriteString(fmt.Sprintf(": min %.4g, p25 %.4g, median %.4g, p75 %.4g, max %.4g, mean %.4g, std %.4g",
				s.Min, s.P25, s.Median, s.P75, s.Max, s.Mean, s.Std))
			if s.Outliers > 0 {
				b.WriteString(fmt.Sprintf("; outliers: %d above |z|>%.1f", s.Outliers, s.OutlierThreshold))
			}
		}
		b.WriteString("\n")
	}

	if len(r.Categories) > 0 {
		b.WriteString("\n[CATEGORIES]\n")
		for _, f := range r.Categories {
			b.WriteString(fmt.Sprintf("- %s: ", f.Field))
			for i, kv := range f.Counts {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
			}
			if u := r.Unique[f.Field]; u > len(f.Counts) {
				b.WriteString(fmt.Sprintf("; unique=%d", u))
			}
			b.WriteString("\n")
		}
	}

	if r.Corr != nil {
		if pairs := r.Corr.TopPairs(10); len(pairs) > 0 {
			b.WriteString("\n[CORRELATIONS]\n")
			for _, p := range pairs {
				b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f\n", p.A, p.B, p.R))
			}
		}
	}

	if len(r.Samples) > 0 {
		b.WriteString("\n[SAMPLE RECORDS]\n")
		b.WriteString("| name | type | score | episodes | year | studio | genres |\n")
		b.WriteString("| --- | --- | --- | --- | --- | --- | --- |\n")
		for _, rec := range r.Samples {
			b.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s |\n",
				utils.Truncate(safeVal(rec.Name), 60), safeVal(rec.Type), fmtFloat(rec.Score), fmtInt(rec.Episodes),
				fmtInt(rec.Year), safeVal(rec.Studio), safeVal(strings.Join(rec.Genres, ", "))))
		}
	}

	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }

func fmtFloat(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *p)
}

func fmtInt(p *int) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *p)
}

// FormatR renders a correlation coefficient, "n/a" when undefined.
func FormatR(r float64) string {
	if math.IsNaN(r) {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", r)
}
