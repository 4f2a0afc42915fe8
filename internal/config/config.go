package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Source     SourceConfig     `yaml:"source" mapstructure:"source"`
	Quality    QualityConfig    `yaml:"quality" mapstructure:"quality"`
	Momentum   MomentumConfig   `yaml:"momentum" mapstructure:"momentum"`
	Margin     MarginConfig     `yaml:"margin" mapstructure:"margin"`
	Saturation SaturationConfig `yaml:"saturation" mapstructure:"saturation"`
	Advisor    AdvisorConfig    `yaml:"advisor" mapstructure:"advisor"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SourceConfig configures the marketplace listing source.
type SourceConfig struct {
	BaseURL         string  `yaml:"base_url" mapstructure:"base_url"`
	Key             string  `yaml:"key" mapstructure:"key"`
	RateLimit       float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries      int     `yaml:"max_retries" mapstructure:"max_retries"`
	DefaultCurrency string  `yaml:"default_currency" mapstructure:"default_currency"`
}

// QualityConfig holds the Stage 2 hard-gate thresholds. Operators tune
// strictness here, never in stage code.
type QualityConfig struct {
	MinRating       float64 `yaml:"min_rating" mapstructure:"min_rating"`
	MinFeedbackRate float64 `yaml:"min_feedback_rate" mapstructure:"min_feedback_rate"`
	MinOrders       int     `yaml:"min_orders" mapstructure:"min_orders"` // 0 disables the rule
}

// MomentumConfig holds the Stage 1 score band boundaries, in orders/month.
type MomentumConfig struct {
	WeakMax       float64 `yaml:"weak_max" mapstructure:"weak_max"`             // below: weak band (0-30)
	StrongMin     float64 `yaml:"strong_min" mapstructure:"strong_min"`         // above: strong band (70-100)
	StrongCeiling float64 `yaml:"strong_ceiling" mapstructure:"strong_ceiling"` // orders/month that maps to 100
}

// MarkupTier maps a source-price ceiling to a markup multiplier. Tiers are
// evaluated in order; MaxPrice <= 0 marks the open-ended final tier.
type MarkupTier struct {
	MaxPrice   float64 `yaml:"max_price" mapstructure:"max_price"`
	Multiplier float64 `yaml:"multiplier" mapstructure:"multiplier"`
}

// MarginConfig holds the Stage 3 pricing parameters.
type MarginConfig struct {
	MarkupTiers []MarkupTier `yaml:"markup_tiers" mapstructure:"markup_tiers"`
	FeePercent  float64      `yaml:"fee_percent" mapstructure:"fee_percent"`   // fraction of suggested price
	FeeFixed    float64      `yaml:"fee_fixed" mapstructure:"fee_fixed"`       // flat fee per sale
	CaptureRate float64      `yaml:"capture_rate" mapstructure:"capture_rate"` // fraction of source volume captured
}

// SaturationConfig holds the Stage 4 matcher and risk-band parameters.
type SaturationConfig struct {
	MediumMin       int     `yaml:"medium_min" mapstructure:"medium_min"` // matches for Medium risk
	HighMin         int     `yaml:"high_min" mapstructure:"high_min"`     // matches for High risk
	TitleSimilarity float64 `yaml:"title_similarity" mapstructure:"title_similarity"`
}

// AdvisorConfig holds the optional narrative advisor settings. The advisor
// never influences the verdict.
type AdvisorConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// BatchConfig configures batch analysis.
type BatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// ServerConfig configures the serve mode.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultMarkupTiers is the fallback markup table used when the config
// supplies none: cheap items carry a higher multiplier than expensive ones.
func DefaultMarkupTiers() []MarkupTier {
	return []MarkupTier{
		{MaxPrice: 10, Multiplier: 3.0},
		{MaxPrice: 50, Multiplier: 2.5},
		{MaxPrice: 0, Multiplier: 1.8},
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DROPSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "dropsight.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.max_concurrent", 5)
	v.SetDefault("source.rate_limit", 2)
	v.SetDefault("source.timeout_secs", 20)
	v.SetDefault("source.max_retries", 3)
	v.SetDefault("source.default_currency", "USD")
	v.SetDefault("quality.min_rating", 4.7)
	v.SetDefault("quality.min_feedback_rate", 0.95)
	v.SetDefault("quality.min_orders", 0)
	v.SetDefault("momentum.weak_max", 5)
	v.SetDefault("momentum.strong_min", 50)
	v.SetDefault("momentum.strong_ceiling", 500)
	v.SetDefault("margin.fee_percent", 0.12)
	v.SetDefault("margin.fee_fixed", 0.30)
	v.SetDefault("margin.capture_rate", 0.05)
	v.SetDefault("saturation.medium_min", 1)
	v.SetDefault("saturation.high_min", 3)
	v.SetDefault("saturation.title_similarity", 0.35)
	v.SetDefault("advisor.model", "claude-haiku-4-5-20251001")
	v.SetDefault("advisor.max_tokens", 1024)

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

	if len(cfg.Margin.MarkupTiers) == 0 {
		cfg.Margin.MarkupTiers = DefaultMarkupTiers()
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
