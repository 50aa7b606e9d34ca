// Package config loads application configuration from file and environment
// and bootstraps the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pharmalink/decision-core/internal/db"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Batch       BatchConfig       `yaml:"batch" mapstructure:"batch"`
	Attribution AttributionConfig `yaml:"attribution" mapstructure:"attribution"`
	Exploration ExplorationConfig `yaml:"exploration" mapstructure:"exploration"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	DatabaseURL string        `yaml:"database_url" mapstructure:"database_url"`
	Pool        db.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// BatchConfig configures the batch entry points (batch uncertainty,
// staleness refresh).
type BatchConfig struct {
	MaxConcurrentEntities int     `yaml:"max_concurrent_entities" mapstructure:"max_concurrent_entities"`
	StoreWritesPerSec     float64 `yaml:"store_writes_per_sec" mapstructure:"store_writes_per_sec"`
}

// AttributionConfig holds the global attribution fallback policy used when
// neither a persisted override nor a channel default exists.
type AttributionConfig struct {
	DefaultWindowDays   int     `yaml:"default_window_days" mapstructure:"default_window_days"`
	DefaultHalfLifeDays float64 `yaml:"default_half_life_days" mapstructure:"default_half_life_days"`
	DefaultModel        string  `yaml:"default_model" mapstructure:"default_model"`
	DefaultDecay        string  `yaml:"default_decay" mapstructure:"default_decay"`
}

// ExplorationConfig holds the global exploration fallback parameters.
type ExplorationConfig struct {
	UncertaintyThreshold float64 `yaml:"uncertainty_threshold" mapstructure:"uncertainty_threshold"`
	MinSampleSize        int     `yaml:"min_sample_size" mapstructure:"min_sample_size"`
	UCBConstant          float64 `yaml:"ucb_constant" mapstructure:"ucb_constant"`
	Epsilon              float64 `yaml:"epsilon" mapstructure:"epsilon"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DECISION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("batch.max_concurrent_entities", 8)
	v.SetDefault("batch.store_writes_per_sec", 200)
	v.SetDefault("attribution.default_window_days", 14)
	v.SetDefault("attribution.default_half_life_days", 7)
	v.SetDefault("attribution.default_model", "last_touch")
	v.SetDefault("attribution.default_decay", "none")
	v.SetDefault("exploration.uncertainty_threshold", 0.7)
	v.SetDefault("exploration.min_sample_size", 5)
	v.SetDefault("exploration.ucb_constant", 2.0)
	v.SetDefault("exploration.epsilon", 0.1)

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
