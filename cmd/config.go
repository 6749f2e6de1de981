package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/animelens/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set animelens configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No config loaded")
			return nil
		}
		return emit(cmd, cfg, func(w io.Writer) error {
			fmt.Fprintf(w, "data_path: %s\n", cfg.DataPath)
			if cfg.Delimiter != "" {
				fmt.Fprintf(w, "delimiter: %q\n", cfg.Delimiter)
			}
			if cfg.MaxRows > 0 {
				fmt.Fprintf(w, "max_rows: %d\n", cfg.MaxRows)
			}
			fmt.Fprintf(w, "top_n: %d\n", cfg.TopN)
			fmt.Fprintf(w, "min_score: %.2f\n", cfg.MinScore)
			fmt.Fprintf(w, "hist_bins: %d\n", cfg.HistBins)
			fmt.Fprintf(w, "ridge_lambda: %g\n", cfg.RidgeLambda)
			fmt.Fprintf(w, "model_path: %s\n", cfg.ModelPath)
			fmt.Fprintf(w, "sqlite_path: %s\n", cfg.SQLitePath)
			fmt.Fprintf(w, "server_addr: %s\n", cfg.ServerAddr)
			fmt.Fprintf(w, "log_level: %s\n", cfg.LogLevel)
			fmt.Fprintf(w, "log_format: %s\n", cfg.LogFormat)
			return nil
		})
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if err := applySetting(c, key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func applySetting(c *cfgpkg.Global, key, val string) error {
	switch key {
	case "data_path":
		c.DataPath = val
	case "delimiter":
		if strings.EqualFold(val, "tab") {
			val = `\t`
		}
		c.Delimiter = val
	case "max_rows":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for max_rows: %v", val)
		}
		c.MaxRows = i
	case "top_n":
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid int for top_n: %w", err)
		}
		c.TopN = i
	case "min_score":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid float for min_score: %w", err)
		}
		c.MinScore = f
	case "hist_bins":
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid int for hist_bins: %w", err)
		}
		c.HistBins = i
	case "ridge_lambda":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid float for ridge_lambda: %w", err)
		}
		c.RidgeLambda = f
	case "model_path":
		c.ModelPath = val
	case "sqlite_path":
		c.SQLitePath = val
	case "server_addr":
		c.ServerAddr = val
	case "log_level":
		c.LogLevel = strings.ToLower(val)
	case "log_format":
		c.LogFormat = strings.ToLower(val)
	default:
		return fmt.Errorf("unknown key: %s (valid: %s)", key, strings.Join(cfgpkg.Keys, ", "))
	}
	return nil
}
