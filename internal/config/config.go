// Package config loads pairledger settings.
//
// Sources are applied in order, later ones winning:
//
//  1. Defaults()
//  2. an optional YAML file
//  3. PAIRLEDGER_* environment variables
//
// The merged result is validated against the embedded CUE schema.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "PAIRLEDGER_"

// Config is the full application configuration.
type Config struct {
	// Prefix is the command prefix word, e.g. "e" for "e money".
	Prefix string `yaml:"prefix" json:"prefix" env:"PREFIX"`

	StartingBalance int64 `yaml:"starting_balance" json:"starting_balance" env:"STARTING_BALANCE"`

	DailyReward   int64         `yaml:"daily_reward" json:"daily_reward" env:"DAILY_REWARD"`
	DailyCooldown time.Duration `yaml:"daily_cooldown" json:"daily_cooldown" env:"DAILY_COOLDOWN"`

	MarriageCost int64 `yaml:"marriage_cost" json:"marriage_cost" env:"MARRIAGE_COST"`
	DivorceCost  int64 `yaml:"divorce_cost" json:"divorce_cost" env:"DIVORCE_COST"`

	AffectionStep     int64         `yaml:"affection_step" json:"affection_step" env:"AFFECTION_STEP"`
	AffectionCooldown time.Duration `yaml:"affection_cooldown" json:"affection_cooldown" env:"AFFECTION_COOLDOWN"`

	// ConsentTimeout is how long a proposal or divorce request waits for an answer.
	ConsentTimeout time.Duration `yaml:"consent_timeout" json:"consent_timeout" env:"CONSENT_TIMEOUT"`
	// TickInterval is how often the transport sweeps expired workflows.
	TickInterval time.Duration `yaml:"tick_interval" json:"tick_interval" env:"TICK_INTERVAL"`

	// CacheCapacity bounds the account cache; 0 means unbounded.
	CacheCapacity int `yaml:"cache_capacity" json:"cache_capacity" env:"CACHE_CAPACITY"`

	Store StoreConfig `yaml:"store" json:"store" envPrefix:"STORE_"`
	Log   LogConfig   `yaml:"log" json:"log" envPrefix:"LOG_"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `yaml:"driver" json:"driver" env:"DRIVER"`
	Path   string `yaml:"path" json:"path" env:"PATH"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" json:"level" env:"LEVEL"`
	Format string `yaml:"format" json:"format" env:"FORMAT"`

	// File, when set, sends logs to a rotating file instead of stderr.
	File       string `yaml:"file" json:"file" env:"FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups" env:"MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days" env:"MAX_AGE_DAYS"`
	Compress   bool   `yaml:"compress" json:"compress" env:"COMPRESS"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Prefix:            "e",
		StartingBalance:   1000,
		DailyReward:       50_000,
		DailyCooldown:     24 * time.Hour,
		MarriageCost:      5_000_000,
		DivorceCost:       5_000_000,
		AffectionStep:     1,
		AffectionCooldown: time.Hour,
		ConsentTimeout:    60 * time.Second,
		TickInterval:      time.Second,
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "pairledger.db",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidationError lists every schema violation found in a Config.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid config: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid config: %d problems, first: %s", len(e.Problems), e.Problems[0])
}

// Validate checks cfg against the embedded CUE schema.
func Validate(cfg Config) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	value := ctx.Encode(cfg)
	if err := value.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	err := unified.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	verr := &ValidationError{}
	for _, e := range cueerrors.Errors(err) {
		verr.Problems = append(verr.Problems, e.Error())
	}
	if len(verr.Problems) == 0 {
		verr.Problems = []string{err.Error()}
	}
	return verr
}

// IsValidationError reports whether err came from schema validation.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
