package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/animelens/internal/store"
)

var (
	exportDBPath string
	exportStatus bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the cleaned dataset to a SQLite snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		path := c.SQLitePath
		if exportDBPath != "" {
			path = exportDBPath
		}
		ctx := cmd.Context()
		st, err := store.Open(ctx, path)
		if err != nil {
			return err
		}
		defer st.Close()

		if exportStatus {
			snap, err := st.LastSnapshot(ctx)
			if errors.Is(err, store.ErrNoSnapshot) {
				fmt.Fprintf(cmd.OutOrStdout(), "(no snapshot in %s)\n", path)
				return nil
			}
			if err != nil {
				return err
			}
			return emit(cmd, snap, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "snapshot %d: %d records from %s at %s\n",
					snap.ID, snap.Records, snap.Source, snap.ExportedAt.Format("2006-01-02 15:04:05"))
				return err
			})
		}

		t, err := loadTable()
		if err != nil {
			return err
		}
		snap, err := st.ReplaceAll(ctx, t)
		if err != nil {
			return err
		}
		return emit(cmd, snap, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "✓ Exported %d records to %s\n", snap.Records, path)
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportDBPath, "db", "", "SQLite database path (default from config)")
	exportCmd.Flags().BoolVar(&exportStatus, "status", false, "show the last snapshot instead of exporting")
}
