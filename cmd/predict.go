package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/animelens/internal/estimate"
	"github.com/KaramelBytes/animelens/internal/validation"
)

var (
	predYear      int
	predEpisodes  int
	predStudio    string
	predGenres    []string
	predModelPath string
	predLoad      bool
	predSave      bool
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Estimate the score of a hypothetical title",
	Long: `predict fits a linear score model on the complete records of the dataset
(year, episodes, studio and genres) and estimates the score for the given
feature combination. Use --save to keep the fitted model and --load to reuse it
without refitting.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		in := estimate.Input{Year: predYear, Episodes: predEpisodes, Studio: predStudio, Genres: predGenres}
		if err := validation.Validate(&in); err != nil {
			return err
		}
		path := c.ModelPath
		if predModelPath != "" {
			path = predModelPath
		}

		var m *estimate.Model
		if predLoad {
			if m, err = estimate.LoadModel(path); err != nil {
				return err
			}
		} else {
			t, err := loadTable()
			if err != nil {
				return err
			}
			m, err = estimate.Fit(t.Records, estimate.FitOptions{Lambda: c.RidgeLambda})
			if err != nil {
				var under *estimate.UnderdeterminedError
				if errors.As(err, &under) {
					return fmt.Errorf("not enough complete records to fit: %w", err)
				}
				return err
			}
			m.Source = t.Revision.Path
			if predSave {
				if err := m.Save(path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved model %s to %s\n", m.ID, path)
			}
		}

		p, err := m.Predict(in)
		if err != nil {
			var unseen *estimate.UnseenCategoryError
			if errors.As(err, &unseen) {
				known := m.Vocabulary.Genres
				if unseen.Field == "studio" {
					known = m.Vocabulary.Studios
				}
				return fmt.Errorf("%w (known: %s)", err, strings.Join(known, ", "))
			}
			return err
		}
		if p.OutsideObserved {
			fmt.Fprintf(os.Stderr, "⚠ Warning: estimate %.2f is outside the observed range [%.2f, %.2f]\n",
				p.Score, p.ObservedMin, p.ObservedMax)
		}
		return emit(cmd, p, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "Estimated score: %.2f (model %s, n=%d, RMSE %.3f, R² %.3f)\n",
				p.Score, m.ID, m.Samples, m.RMSE, m.R2)
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(predictCmd)
	predictCmd.Flags().IntVar(&predYear, "year", 0, "release year")
	predictCmd.Flags().IntVar(&predEpisodes, "episodes", 0, "episode count")
	predictCmd.Flags().StringVar(&predStudio, "studio", "", "studio (empty = Unknown)")
	predictCmd.Flags().StringSliceVarP(&predGenres, "genre", "g", nil, "genres (repeatable)")
	predictCmd.Flags().StringVar(&predModelPath, "model", "", "model file (default from config)")
	predictCmd.Flags().BoolVar(&predLoad, "load", false, "use the saved model instead of fitting")
	predictCmd.Flags().BoolVar(&predSave, "save", false, "save the fitted model")
	_ = predictCmd.MarkFlagRequired("year")
}
