package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/animelens/internal/config"
	"github.com/KaramelBytes/animelens/internal/dataset"
	"github.com/KaramelBytes/animelens/internal/logging"
	"github.com/KaramelBytes/animelens/internal/utils"
)

var (
	// Global flags
	cfgFile       string
	flagDataPath  string
	flagLogFormat string
	debug         bool
	jsonOut       bool

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "animelens",
	Short: "animelens: explore and model an anime catalog CSV",
	Long: `animelens loads an anime catalog export (CSV/TSV), cleans it, and answers
questions about it: category frequencies, trends by year, correlations,
histograms, preference-based recommendations and a simple score estimate.
The same views can be served as a JSON API for chart front ends.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.animelens/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagDataPath, "data", "", "dataset CSV/TSV path (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format: console|json (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print results as JSON")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		cfg = nil
		logging.Init(logging.Config{Level: levelFor("warn"), Format: flagLogFormat})
		return
	}
	cfg = c

	// Apply CLI overrides if provided
	if flagDataPath != "" {
		cfg.DataPath = flagDataPath
	}
	if flagLogFormat != "" {
		cfg.LogFormat = flagLogFormat
	}
	logging.Init(logging.Config{Level: levelFor(cfg.LogLevel), Format: cfg.LogFormat})
}

func levelFor(configured string) string {
	if debug {
		return "debug"
	}
	return configured
}

// requireConfig returns the loaded config or an error explaining why none is available.
func requireConfig() (*cfgpkg.Global, error) {
	if cfg == nil {
		c, err := cfgpkg.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = c
		if flagDataPath != "" {
			cfg.DataPath = flagDataPath
		}
	}
	return cfg, nil
}

// newCache builds a dataset cache from the configured load options.
func newCache(c *cfgpkg.Global) *dataset.Cache {
	return dataset.NewCache(dataset.LoadOptions{Delimiter: c.DelimiterRune(), MaxRows: c.MaxRows})
}

// dataPath resolves a relative data_path missing from the working directory
// against the nearest parent directory that holds it.
func dataPath(c *cfgpkg.Global) string {
	p := c.DataPath
	if filepath.IsAbs(p) {
		return p
	}
	if _, err := os.Stat(p); err == nil {
		return p
	}
	found, err := utils.FindUp("", p)
	if err != nil {
		return p
	}
	logging.With("cmd").Debug().Str("data", found).Msg("resolved dataset in parent directory")
	return found
}

// loadTable reads the configured dataset.
func loadTable() (*dataset.Table, error) {
	c, err := requireConfig()
	if err != nil {
		return nil, err
	}
	t, err := newCache(c).Get(dataPath(c))
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	if t.Stats.Truncated {
		fmt.Fprintf(os.Stderr, "⚠ Warning: stopped after %d rows (max_rows)\n", t.Stats.Rows)
	}
	return t, nil
}

// emit writes v as indented JSON when --json is set, otherwise calls text.
func emit(cmd *cobra.Command, v any, text func(w io.Writer) error) error {
	w := cmd.OutOrStdout()
	if jsonOut {
		b, err := utils.PrettyJSON(v)
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
	return text(w)
}
