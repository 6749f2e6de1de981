package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/animelens/internal/analysis"
	"github.com/KaramelBytes/animelens/internal/utils"
)

var (
	statsOutputPath string
	statsSampleRows int
	statsNoCorr     bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the dataset: numeric fields, categories, correlations",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTable()
		if err != nil {
			return err
		}
		opt := analysis.DefaultReportOptions()
		opt.TopN = cfg.TopN
		if cmd.Flags().Changed("sample-rows") {
			opt.SampleRows = statsSampleRows
		}
		opt.Correlations = !statsNoCorr
		rep := analysis.Summarize(t, opt)
		for _, w := range rep.Warnings {
			fmt.Fprintf(os.Stderr, "⚠ Warning: %s\n", w)
		}

		if statsOutputPath != "" {
			if err := utils.SafeWriteFile(statsOutputPath, []byte(rep.Markdown())); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote summary to %s\n", statsOutputPath)
			return nil
		}
		return emit(cmd, rep, func(w io.Writer) error {
			_, err := fmt.Fprintln(w, rep.Markdown())
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVarP(&statsOutputPath, "output", "o", "", "optional path to write the summary (Markdown)")
	statsCmd.Flags().IntVar(&statsSampleRows, "sample-rows", 5, "number of sample records to include")
	statsCmd.Flags().BoolVar(&statsNoCorr, "no-correlations", false, "skip the correlation matrix")
}
