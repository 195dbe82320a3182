// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/solkite/triarb/internal/apperror"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Pools     PoolsConfig     `mapstructure:"pools"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Search    SearchConfig    `mapstructure:"search"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// PoolsConfig describes where raw pool records come from.
type PoolsConfig struct {
	File        string  `mapstructure:"file"`
	MinTVL      float64 `mapstructure:"min_tvl"`
	MinVolume24 float64 `mapstructure:"min_volume_24h"`
}

// OracleConfig holds the Solana JSON-RPC reserve oracle settings.
type OracleConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	MaxBatchSize   int           `mapstructure:"max_batch_size"`
	RatePerSecond  float64       `mapstructure:"rate_per_second"`
	Concurrency    int           `mapstructure:"concurrency"`
}

// SearchConfig holds the cycle search parameters.
type SearchConfig struct {
	StartToken          string  `mapstructure:"start_token"`
	PivotToken          string  `mapstructure:"pivot_token"`
	InputAtomic         uint64  `mapstructure:"input_atomic"`
	ThresholdPct        float64 `mapstructure:"threshold_pct"`
	MaxProfitPct        float64 `mapstructure:"max_profit_pct"`
	MaxLossPct          float64 `mapstructure:"max_loss_pct"`
	MaxPoolsPerLeg      int     `mapstructure:"max_pools_per_leg"`
	MaxRoutes           int     `mapstructure:"max_routes"`
	MedianOutlierFactor float64 `mapstructure:"median_outlier_factor"`
}

// ThresholdPctDecimal returns the pass threshold as decimal.Decimal.
func (c *SearchConfig) ThresholdPctDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.ThresholdPct)
}

// MaxProfitPctDecimal returns the upper safety bound as decimal.Decimal.
func (c *SearchConfig) MaxProfitPctDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxProfitPct)
}

// MaxLossPctDecimal returns the lower safety bound as decimal.Decimal.
func (c *SearchConfig) MaxLossPctDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxLossPct)
}

// MedianOutlierFactorDecimal returns the anchor filter factor as decimal.Decimal.
func (c *SearchConfig) MedianOutlierFactorDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MedianOutlierFactor)
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
	HealthPort     int    `mapstructure:"health_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("TRIARB")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "TRIARB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "TRIARB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "TRIARB_LOG_LEVEL", "LOG_LEVEL")

	// Pools
	v.BindEnv("pools.file", "TRIARB_POOLS_FILE", "POOLS_FILE")

	// Oracle
	v.BindEnv("oracle.rpc_url", "TRIARB_RPC_URL", "SOLANA_RPC_URL")

	// Search
	v.BindEnv("search.start_token", "TRIARB_START_TOKEN")
	v.BindEnv("search.pivot_token", "TRIARB_PIVOT_TOKEN")
	v.BindEnv("search.input_atomic", "TRIARB_INPUT_ATOMIC")
	v.BindEnv("search.threshold_pct", "TRIARB_THRESHOLD_PCT")

	// Telemetry
	v.BindEnv("telemetry.enabled", "TRIARB_TELEMETRY_ENABLED")
	v.BindEnv("telemetry.service_name", "TRIARB_SERVICE_NAME", "OTEL_SERVICE_NAME")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "triarb-sim")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Pools defaults
	v.SetDefault("pools.file", "pools.json")
	v.SetDefault("pools.min_tvl", 0)
	v.SetDefault("pools.min_volume_24h", 0)

	// Oracle defaults
	v.SetDefault("oracle.rpc_url", "")
	v.SetDefault("oracle.request_timeout", "10s")
	v.SetDefault("oracle.max_retries", 3)
	v.SetDefault("oracle.retry_backoff", "500ms")
	v.SetDefault("oracle.max_batch_size", 100)
	v.SetDefault("oracle.rate_per_second", 10)
	v.SetDefault("oracle.concurrency", 16)

	// Search defaults
	v.SetDefault("search.start_token", "So11111111111111111111111111111111111111112")
	v.SetDefault("search.pivot_token", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	v.SetDefault("search.input_atomic", 1_000_000_000) // 1 SOL
	v.SetDefault("search.threshold_pct", 0.1)
	v.SetDefault("search.max_profit_pct", 50)
	v.SetDefault("search.max_loss_pct", 90)
	v.SetDefault("search.max_pools_per_leg", 6)
	v.SetDefault("search.max_routes", 200)
	v.SetDefault("search.median_outlier_factor", 2.0)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "triarb-sim")
	v.SetDefault("telemetry.prometheus_port", 9090)
	v.SetDefault("telemetry.health_port", 8081)
}

// Validate validates the configuration. Threshold and bound violations are
// fail-fast: a simulator run with nonsense bounds produces nonsense rankings.
func (c *Config) Validate() error {
	if c.Search.StartToken == "" {
		return apperror.New(apperror.CodeConfigurationError, apperror.WithContext("search.start_token is required"))
	}
	if c.Search.PivotToken == "" {
		return apperror.New(apperror.CodeConfigurationError, apperror.WithContext("search.pivot_token is required"))
	}
	if c.Search.StartToken == c.Search.PivotToken {
		return apperror.New(apperror.CodeConfigurationError, apperror.WithContext("start and pivot tokens must differ"))
	}
	if c.Search.InputAtomic == 0 {
		return apperror.New(apperror.CodeInvalidBounds, apperror.WithContext("search.input_atomic must be positive"))
	}
	if c.Search.ThresholdPct < 0 {
		return apperror.New(apperror.CodeInvalidThreshold, apperror.WithContext("search.threshold_pct must be >= 0"))
	}
	if c.Search.MaxProfitPct <= 0 {
		return apperror.New(apperror.CodeInvalidBounds, apperror.WithContext("search.max_profit_pct must be positive"))
	}
	if c.Search.MaxLossPct <= 0 || c.Search.MaxLossPct > 100 {
		return apperror.New(apperror.CodeInvalidBounds, apperror.WithContext("search.max_loss_pct must be in (0, 100]"))
	}
	if c.Search.MaxPoolsPerLeg <= 0 {
		return apperror.New(apperror.CodeInvalidBounds, apperror.WithContext("search.max_pools_per_leg must be positive"))
	}
	if c.Search.MaxRoutes <= 0 {
		return apperror.New(apperror.CodeInvalidBounds, apperror.WithContext("search.max_routes must be positive"))
	}
	if c.Search.MedianOutlierFactor < 1 {
		return apperror.New(apperror.CodeInvalidBounds, apperror.WithContext("search.median_outlier_factor must be >= 1"))
	}
	if c.Oracle.MaxBatchSize <= 0 || c.Oracle.MaxBatchSize > 100 {
		return apperror.New(apperror.CodeInvalidBounds, apperror.WithContext("oracle.max_batch_size must be in [1, 100]"))
	}
	if c.Oracle.Concurrency <= 0 {
		return apperror.New(apperror.CodeInvalidBounds, apperror.WithContext("oracle.concurrency must be positive"))
	}
	return nil
}
