package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/animelens/internal/recommend"
	"github.com/KaramelBytes/animelens/internal/validation"
)

var (
	recGenres   []string
	recMinScore float64
	recYearMin  int
	recYearMax  int
	recLimit    int
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "List titles matching genre, minimum score and year range",
	Long: `recommend keeps titles that carry at least one of the given genres, score at
least --min-score and were released within [--year-min, --year-max].
Unset year bounds default to the dataset's year range.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTable()
		if err != nil {
			return err
		}
		c := recommend.DefaultCriteria(t.Records)
		c.MinScore = cfg.MinScore
		c.Genres = append([]string{}, recGenres...)
		f := cmd.Flags()
		if f.Changed("min-score") {
			c.MinScore = recMinScore
		}
		if f.Changed("year-min") {
			c.YearMin = recYearMin
		}
		if f.Changed("year-max") {
			c.YearMax = recYearMax
		}
		if err := validation.Validate(&c); err != nil {
			return err
		}

		res := recommend.Filter(t.Records, c)
		if res.Empty() {
			fmt.Fprintln(os.Stderr, "⚠ Warning: no titles match these preferences")
		}
		if recLimit > 0 && len(res.Records) > recLimit {
			res.Records = res.Records[:recLimit]
		}
		return emit(cmd, res, func(w io.Writer) error {
			for _, r := range res.Records {
				year := "----"
				if r.Year != nil {
					year = fmt.Sprint(*r.Year)
				}
				fmt.Fprintf(w, "%5.2f  %s  %-7s %s\n", *r.Score, year, r.Type, r.Name)
			}
			fmt.Fprintf(w, "✓ %d of %d titles matched\n", res.Matched, t.Len())
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)
	recommendCmd.Flags().StringSliceVarP(&recGenres, "genre", "g", nil, "preferred genres (any of, repeatable)")
	recommendCmd.Flags().Float64Var(&recMinScore, "min-score", recommend.DefaultMinScore, "minimum score (default from config)")
	recommendCmd.Flags().IntVar(&recYearMin, "year-min", 0, "earliest release year (default: dataset minimum)")
	recommendCmd.Flags().IntVar(&recYearMax, "year-max", 0, "latest release year (default: dataset maximum)")
	recommendCmd.Flags().IntVar(&recLimit, "limit", 0, "maximum titles to print (0 = all)")
}
