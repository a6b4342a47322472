// Package config loads application configuration from file and
// environment and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Import  ImportConfig  `yaml:"import" mapstructure:"import"`
	Sweep   SweepConfig   `yaml:"sweep" mapstructure:"sweep"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the Postgres backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// GeocodeConfig configures the external geocoding provider.
type GeocodeConfig struct {
	GoogleAPIKey string  `yaml:"google_api_key" mapstructure:"google_api_key"`
	RateLimit    float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ImportConfig configures the CSV import pipeline.
type ImportConfig struct {
	MaxFileMB int `yaml:"max_file_mb" mapstructure:"max_file_mb"`
	ChunkSize int `yaml:"chunk_size" mapstructure:"chunk_size"`
}

// SweepConfig configures the asynchronous geocoding sweep.
type SweepConfig struct {
	TimeoutSecs   int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts   int `yaml:"max_attempts" mapstructure:"max_attempts"`
	CallDelayMS   int `yaml:"call_delay_ms" mapstructure:"call_delay_ms"`
	QueueCapacity int `yaml:"queue_capacity" mapstructure:"queue_capacity"`
}

// Timeout returns the sweep hard timeout as a duration.
func (c SweepConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// CallDelay returns the inter-call delay for provider lookups.
func (c SweepConfig) CallDelay() time.Duration {
	return time.Duration(c.CallDelayMS) * time.Millisecond
}

// ServerConfig configures the REST API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("INTROHQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("geocode.rate_limit", 10.0)
	v.SetDefault("geocode.timeout_secs", 20)
	v.SetDefault("import.max_file_mb", 20)
	v.SetDefault("import.chunk_size", 1000)
	v.SetDefault("sweep.timeout_secs", 300)
	v.SetDefault("sweep.max_attempts", 3)
	v.SetDefault("sweep.call_delay_ms", 100)
	v.SetDefault("sweep.queue_capacity", 256)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
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
