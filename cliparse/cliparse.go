// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

type Config struct {
	Port         int    `validate:"min=1,max=65535"`
	DatabaseURL  string `validate:"required_if=DatabaseType postgres"`
	DatabaseType string `validate:"oneof=sqlite postgres"`

	// AppsFile replaces the embedded app registry when set
	AppsFile string

	// UpstreamURL is the default base URL of the prediction services,
	// UpstreamOverrides maps app name -> base URL
	UpstreamURL       string            `validate:"required,http_url"`
	UpstreamOverrides map[string]string `validate:"dive,http_url"`
	UpstreamTimeout   time.Duration     `validate:"gt=0"`

	SheetPath      string
	SheetKeyColumn string `validate:"required"`
	WatchSheet     bool

	AllowedOrigins []string
	LogLevel       string `validate:"omitempty,oneof=debug info warn error"`
	Env            string `validate:"oneof=development production"`

	// SonarSeed fixes the mock classifier weights; 0 seeds from the clock
	SonarSeed uint64
}

// envVars maps flag names to the environment variables they fall back to
var envVars = []struct{ flag, env string }{
	{"port", "PORT"},
	{"database-url", "DATABASE_URL"},
	{"database-type", "DATABASE_TYPE"},
	{"apps", "APPS_FILE"},
	{"predict-api-url", "PREDICT_API_URL"},
	{"upstream", "UPSTREAMS"},
	{"upstream-timeout", "UPSTREAM_TIMEOUT"},
	{"sheet", "SHEET_PATH"},
	{"sheet-key-column", "SHEET_KEY_COLUMN"},
	{"watch-sheet", "WATCH_SHEET"},
	{"cors-origins", "CORS_ORIGINS"},
	{"log-level", "LOG_LEVEL"},
	{"env", "APP_ENV"},
	{"sonar-seed", "SONAR_SEED"},
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// BindFlags registers the server flags, storing values in cfg
func BindFlags(flags *pflag.FlagSet, cfg *Config) {
	// Network and storage
	flags.IntVarP(&cfg.Port, "port", "p", 8080, "Server port")
	flags.StringVarP(&cfg.DatabaseURL, "database-url", "d", "", "Database URL (empty: in-memory sqlite)")
	flags.StringVarP(&cfg.DatabaseType, "database-type", "t", "sqlite", "Database type (sqlite or postgres)")

	// Prediction services
	flags.StringVar(&cfg.AppsFile, "apps", "", "YAML file replacing the built-in app registry")
	flags.StringVar(&cfg.UpstreamURL, "predict-api-url", "http://127.0.0.1:5000", "Default base URL of the prediction services")
	flags.StringToStringVar(&cfg.UpstreamOverrides, "upstream", nil, "Per-app base URL, e.g. fraud=http://fraud:5000")
	flags.DurationVar(&cfg.UpstreamTimeout, "upstream-timeout", 10*time.Second, "Timeout of one prediction call")

	// Spreadsheet editor
	flags.StringVar(&cfg.SheetPath, "sheet", "", "Workbook served by the trends API (empty: disabled)")
	flags.StringVar(&cfg.SheetKeyColumn, "sheet-key-column", "row_key", "Column holding stable row keys")
	flags.BoolVar(&cfg.WatchSheet, "watch-sheet", false, "Reload the workbook when it changes on disk")

	// Misc
	flags.StringSliceVar(&cfg.AllowedOrigins, "cors-origins", []string{"*"}, "Allowed CORS origins")
	flags.StringVar(&cfg.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&cfg.Env, "env", "development", "Environment (development or production)")
	flags.Uint64Var(&cfg.SonarSeed, "sonar-seed", 0, "Seed of the mock sonar classifier")
}

// Resolve fills flags the user did not set from the environment, then
// validates the result. CLI flags take precedence over environment variables.
func Resolve(flags *pflag.FlagSet, cfg *Config) error {
	for _, ev := range envVars {
		f := flags.Lookup(ev.flag)
		if f == nil || f.Changed {
			continue
		}
		v, ok := os.LookupEnv(ev.env)
		if !ok || v == "" {
			continue
		}
		if err := flags.Set(ev.flag, v); err != nil {
			return fmt.Errorf("invalid %s env variable: %w", ev.env, err)
		}
	}

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// LoadDotEnv reads .env files into the environment without overriding
// variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ParseFlags parses args into a Config, with .env and environment fallback
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	flags := pflag.NewFlagSet("quickly-predict", pflag.ContinueOnError)
	BindFlags(flags, &cfg)

	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}
	if err := LoadDotEnv(); err != nil {
		return Config{}, err
	}
	if err := Resolve(flags, &cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
