package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/animelens/internal/validation"
)

// dirName is the per-user directory under $HOME.
const dirName = ".animelens"

// Global configuration structure.
type Global struct {
	DataPath  string `mapstructure:"data_path" yaml:"data_path" json:"data_path" validate:"required"`
	Delimiter string `mapstructure:"delimiter" yaml:"delimiter" json:"delimiter" validate:"max=2"`
	MaxRows   int    `mapstructure:"max_rows" yaml:"max_rows" json:"max_rows" validate:"gte=0"`

	// View defaults
	TopN     int     `mapstructure:"top_n" yaml:"top_n" json:"top_n" validate:"min=1,max=1000"`
	MinScore float64 `mapstructure:"min_score" yaml:"min_score" json:"min_score" validate:"gte=0,lte=10"`
	HistBins int     `mapstructure:"hist_bins" yaml:"hist_bins" json:"hist_bins" validate:"min=1,max=500"`

	// Score model
	RidgeLambda float64 `mapstructure:"ridge_lambda" yaml:"ridge_lambda" json:"ridge_lambda" validate:"gt=0"`
	ModelPath   string  `mapstructure:"model_path" yaml:"model_path" json:"model_path"`

	// Snapshot export
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path" json:"sqlite_path"`

	// HTTP backend
	ServerAddr string `mapstructure:"server_addr" yaml:"server_addr" json:"server_addr" validate:"required,hostname_port"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level" validate:"oneof=trace debug info warn warning error disabled off"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format" json:"log_format" validate:"oneof=console json"`
}

// Keys lists the settable configuration keys.
var Keys = []string{
	"data_path", "delimiter", "max_rows", "top_n", "min_score", "hist_bins",
	"ridge_lambda", "model_path", "sqlite_path", "server_addr", "log_level", "log_format",
}

// Dir returns ~/.animelens.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.animelens/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	if err := validation.Validate(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env (ANIMELENS_*, .env in the working directory) > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("ANIMELENS")
	v.AutomaticEnv()

	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	// Defaults
	v.SetDefault("data_path", "anime.csv")
	v.SetDefault("delimiter", "")
	v.SetDefault("max_rows", 0)
	v.SetDefault("top_n", 10)
	v.SetDefault("min_score", 7.0)
	v.SetDefault("hist_bins", 30)
	v.SetDefault("ridge_lambda", 1e-3)
	v.SetDefault("model_path", filepath.Join(dir, "model.yaml"))
	v.SetDefault("sqlite_path", filepath.Join(dir, "anime.db"))
	v.SetDefault("server_addr", "127.0.0.1:8080")
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "console")

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read; a missing file is fine, a broken one is not
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validation.Validate(&c); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &c, nil
}

// DelimiterRune returns the configured delimiter, or 0 to sniff by extension.
func (c *Global) DelimiterRune() rune {
	if c.Delimiter == "" {
		return 0
	}
	if c.Delimiter == `\t` {
		return '\t'
	}
	return []rune(c.Delimiter)[0]
}
