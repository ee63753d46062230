// Package config loads the application configuration from config.yaml,
// CMED_-prefixed environment variables, and defaults, and initializes
// the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vigiapreco/cmed-cli/internal/catalog"
	"github.com/vigiapreco/cmed-cli/internal/matcher"
	"github.com/vigiapreco/cmed-cli/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig           `yaml:"store" mapstructure:"store"`
	Catalog   catalog.LoaderOptions `yaml:"catalog" mapstructure:"catalog"`
	Matcher   matcher.ScorerConfig  `yaml:"matcher" mapstructure:"matcher"`
	Cascade   matcher.CascadeConfig `yaml:"cascade" mapstructure:"cascade"`
	Manual    ManualConfig          `yaml:"manual" mapstructure:"manual"`
	Anthropic AnthropicConfig       `yaml:"anthropic" mapstructure:"anthropic"`
	Server    ServerConfig          `yaml:"server" mapstructure:"server"`
	Log       LogConfig             `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// ManualConfig points at the versioned manual reference artifacts. An
// empty path falls back to the built-in rules and deny-list.
type ManualConfig struct {
	TablePath string `yaml:"table_path" mapstructure:"table_path"`
}

// AnthropicConfig holds settings for the AI-assisted extraction
// fallback. An empty key disables the stage.
type AnthropicConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	Model          string  `yaml:"model" mapstructure:"model"`
	MaxTokens      int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// ServerConfig configures the lookup server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CMED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "cmed.db")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("catalog.latin1", true)
	v.SetDefault("catalog.sheet_index", 0)
	v.SetDefault("matcher.name_weight", 0.60)
	v.SetDefault("matcher.lab_weight", 0.10)
	v.SetDefault("matcher.numeric_weight", 0.30)
	v.SetDefault("matcher.precision_bonus", 0.15)
	v.SetDefault("matcher.precision_cutoff", 98)
	v.SetDefault("matcher.tolerance", 0.06)
	v.SetDefault("matcher.jaccard_threshold", 0.175)
	v.SetDefault("cascade.workers", 0) // 0 = NumCPU
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.requests_per_sec", 2.0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for the given command mode and
// returns every problem found, joined into one error.
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}
	if c.Matcher.Tolerance <= 0 || c.Matcher.Tolerance >= 1 {
		problems = append(problems, "matcher.tolerance must be in (0, 1)")
	}
	if c.Matcher.JaccardThreshold < 0 || c.Matcher.JaccardThreshold > 1 {
		problems = append(problems, "matcher.jaccard_threshold must be between 0 and 1")
	}
	for _, w := range []float64{c.Matcher.NameWeight, c.Matcher.LabWeight, c.Matcher.NumericWeight} {
		if w < 0 || w > 1 {
			problems = append(problems, "matcher weights must be between 0 and 1")
			break
		}
	}

	switch mode {
	case "match":
		// The AI stage is optional; a key only gates whether it runs.
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "prices", "catalog", "expiry":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
