package cmd

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/animelens/internal/analysis"
	"github.com/KaramelBytes/animelens/internal/dataset"
	"github.com/KaramelBytes/animelens/internal/recommend"
	"github.com/KaramelBytes/animelens/internal/utils"
)

var (
	viewTypes    []string
	viewGenres   []string
	topN         int
	histBins     int
	histMin      float64
	histMax      float64
	corrMatrix   bool
	corrPairs    int
	crosstabRows int
)

// scope narrows records by the --type and --genre flags.
func scope(records []dataset.Record) []dataset.Record {
	return recommend.Where(records, recommend.HasType(viewTypes...), recommend.HasGenre(viewGenres...))
}

func addScopeFlags(c *cobra.Command) {
	c.Flags().StringSliceVar(&viewTypes, "type", nil, "only records of these types (e.g. TV,Movie)")
	c.Flags().StringSliceVar(&viewGenres, "genre", nil, "only records carrying any of these genres")
}

var topCmd = &cobra.Command{
	Use:   "top [genres|type|studio]",
	Short: "Most frequent labels of a categorical field",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := dataset.GenresField.Name
		if len(args) == 1 {
			name = args[0]
		}
		field, ok := dataset.LabelFieldByName(name)
		if !ok {
			return fmt.Errorf("unknown categorical field %q (use genres, type or studio)", name)
		}
		t, err := loadTable()
		if err != nil {
			return err
		}
		n := cfg.TopN
		if cmd.Flags().Changed("limit") {
			n = topN
		}
		freq := analysis.CategoryFrequency(scope(t.Records), field)
		freq.Counts = freq.Top(n)
		return emit(cmd, freq, func(w io.Writer) error {
			if len(freq.Counts) == 0 {
				fmt.Fprintln(w, "(no labels)")
				return nil
			}
			for i, c := range freq.Counts {
				fmt.Fprintf(w, "%3d. %-24s %6d\n", i+1, c.Value, c.Count)
			}
			return nil
		})
	},
}

var trendCmd = &cobra.Command{
	Use:       "trend <score|count>",
	Short:     "Mean score or title count per release year",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"score", "count"},
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTable()
		if err != nil {
			return err
		}
		recs := scope(t.Records)
		switch args[0] {
		case "score":
			groups := analysis.GroupedMean(recs, dataset.YearKey, dataset.ScoreField)
			return emit(cmd, groups, func(w io.Writer) error {
				for _, g := range groups {
					fmt.Fprintf(w, "%d  %5.2f  (n=%d)\n", g.Key, g.Mean, g.Count)
				}
				return nil
			})
		case "count":
			counts := analysis.GroupedCount(recs, dataset.YearKey)
			return emit(cmd, counts, func(w io.Writer) error {
				for _, c := range counts {
					fmt.Fprintf(w, "%d  %d\n", c.Key, c.Count)
				}
				return nil
			})
		default:
			return fmt.Errorf("unknown trend %q (use score or count)", args[0])
		}
	},
}

var corrCmd = &cobra.Command{
	Use:   "corr [<field-a> <field-b>]",
	Short: "Pearson correlation between numeric fields",
	Long: `Without arguments, or with --matrix, prints the correlation matrix of all
numeric fields and its strongest pairs. With two field names, prints their
coefficient and the number of complete pairs.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("expected zero or two field names, got %d", len(args))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		var a, b dataset.NumericField
		if len(args) == 2 {
			var okA, okB bool
			a, okA = dataset.NumericFieldByName(args[0])
			b, okB = dataset.NumericFieldByName(args[1])
			if !okA || !okB {
				return fmt.Errorf("numeric fields are: %s", strings.Join(dataset.NumericFieldNames(), ", "))
			}
		}
		t, err := loadTable()
		if err != nil {
			return err
		}
		recs := scope(t.Records)
		if len(args) == 0 || corrMatrix {
			fields := make([]dataset.NumericField, 0, len(dataset.NumericFieldNames()))
			for _, name := range dataset.NumericFieldNames() {
				f, _ := dataset.NumericFieldByName(name)
				fields = append(fields, f)
			}
			m := analysis.Correlations(recs, fields)
			pairs := m.TopPairs(corrPairs)
			return emit(cmd, struct {
				Matrix *analysis.CorrMatrix `json:"matrix"`
				Top    []analysis.PairCorr  `json:"top_pairs"`
			}{m, pairs}, func(w io.Writer) error {
				if len(pairs) == 0 {
					fmt.Fprintln(w, "(no defined correlations)")
				}
				for _, p := range pairs {
					fmt.Fprintf(w, "%s ~ %s: r=%s\n", p.A, p.B, analysis.FormatR(p.R))
				}
				return nil
			})
		}
		res := analysis.Correlation(recs, a, b)
		return emit(cmd, res, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "%s ~ %s: r=%s (n=%d)\n", res.A, res.B, analysis.FormatR(res.R), res.N)
			return err
		})
	},
}

var histCmd = &cobra.Command{
	Use:   "hist [field]",
	Short: "Histogram of a numeric field",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := dataset.ScoreField.Name
		if len(args) == 1 {
			name = args[0]
		}
		field, ok := dataset.NumericFieldByName(name)
		if !ok {
			return fmt.Errorf("numeric fields are: %s", strings.Join(dataset.NumericFieldNames(), ", "))
		}
		t, err := loadTable()
		if err != nil {
			return err
		}
		bins := cfg.HistBins
		if cmd.Flags().Changed("bins") {
			bins = histBins
		}
		if bins < 1 {
			return fmt.Errorf("--bins must be at least 1")
		}
		lo, hi := math.NaN(), math.NaN()
		if cmd.Flags().Changed("min") {
			if !finite(histMin) {
				return fmt.Errorf("--min must be a finite number")
			}
			lo = histMin
		}
		if cmd.Flags().Changed("max") {
			if !finite(histMax) {
				return fmt.Errorf("--max must be a finite number")
			}
			hi = histMax
		}
		bs := analysis.Histogram(scope(t.Records), field, lo, hi, bins)
		if bs == nil {
			bs = []analysis.Bin{}
		}
		return emit(cmd, bs, func(w io.Writer) error {
			if len(bs) == 0 {
				fmt.Fprintln(w, "(no values)")
				return nil
			}
			peak := 0
			for _, b := range bs {
				peak = max(peak, b.Count)
			}
			for _, b := range bs {
				bar := 0
				if peak > 0 {
					bar = b.Count * 40 / peak
				}
				fmt.Fprintf(w, "[%8.2f, %8.2f) %6d %s\n", b.Lo, b.Hi, b.Count, strings.Repeat("#", bar))
			}
			return nil
		})
	},
}

var crosstabCmd = &cobra.Command{
	Use:   "crosstab <row-field> <col-field>",
	Short: "Count records per pair of categorical labels",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		row, okR := dataset.LabelFieldByName(args[0])
		col, okC := dataset.LabelFieldByName(args[1])
		if !okR || !okC {
			return fmt.Errorf("categorical fields are: genres, type, studio")
		}
		t, err := loadTable()
		if err != nil {
			return err
		}
		ct := analysis.CrossTabulate(scope(t.Records), row, col, crosstabRows)
		return emit(cmd, ct, func(w io.Writer) error {
			fmt.Fprintf(w, "%-20s", ct.RowField+"\\"+ct.ColField)
			for _, c := range ct.Cols {
				fmt.Fprintf(w, " %10s", utils.Truncate(c, 10))
			}
			fmt.Fprintln(w)
			for i, r := range ct.Rows {
				fmt.Fprintf(w, "%-20s", utils.Truncate(r, 20))
				for j := range ct.Cols {
					fmt.Fprintf(w, " %10d", ct.Counts[i][j])
				}
				fmt.Fprintln(w)
			}
			return nil
		})
	},
}

var engagementCmd = &cobra.Command{
	Use:   "engagement",
	Short: "Total audience per viewing status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTable()
		if err != nil {
			return err
		}
		totals := analysis.Engagement(scope(t.Records))
		return emit(cmd, totals, func(w io.Writer) error {
			for _, s := range totals {
				fmt.Fprintf(w, "%-14s %12d  %5.1f%%\n", s.Status, s.Total, s.Share*100)
			}
			return nil
		})
	},
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func init() {
	rootCmd.AddCommand(topCmd, trendCmd, corrCmd, histCmd, crosstabCmd, engagementCmd)
	for _, c := range []*cobra.Command{topCmd, trendCmd, corrCmd, histCmd, crosstabCmd, engagementCmd} {
		addScopeFlags(c)
	}
	topCmd.Flags().IntVarP(&topN, "limit", "n", 10, "number of labels to show (default from config)")
	histCmd.Flags().IntVar(&histBins, "bins", 30, "number of bins (default from config)")
	histCmd.Flags().Float64Var(&histMin, "min", 0, "lower bound (default: data minimum)")
	histCmd.Flags().Float64Var(&histMax, "max", 0, "upper bound (default: data maximum)")
	corrCmd.Flags().BoolVar(&corrMatrix, "matrix", false, "print the full matrix even when two fields are given")
	corrCmd.Flags().IntVar(&corrPairs, "pairs", 10, "number of strongest pairs to list")
	crosstabCmd.Flags().IntVar(&crosstabRows, "limit", 0, "keep only the most frequent row labels (0 = all)")
}
