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
	DataGov DataGovConfig `yaml:"datagov" mapstructure:"datagov"`
	Ingest  IngestConfig  `yaml:"ingest" mapstructure:"ingest"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// DataGovConfig holds data.gov.in API settings.
type DataGovConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey         string  `yaml:"api_key" mapstructure:"api_key"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	PageLimit      int     `yaml:"page_limit" mapstructure:"page_limit"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// Timeout returns the per-call timeout as a duration.
func (c DataGovConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	StateName     string `yaml:"state_name" mapstructure:"state_name"`
	StateCode     string `yaml:"state_code" mapstructure:"state_code"`
	Year          int    `yaml:"year" mapstructure:"year"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	PauseMillis   int    `yaml:"pause_millis" mapstructure:"pause_millis"`
	Workers       int    `yaml:"workers" mapstructure:"workers"`
	CronSpec      string `yaml:"cron_spec" mapstructure:"cron_spec"`
}

// CacheTTL returns the endpoint-cache time-to-live as a duration.
func (c IngestConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// Pause returns the courtesy pause between district fetches.
func (c IngestConfig) Pause() time.Duration {
	return time.Duration(c.PauseMillis) * time.Millisecond
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port             int      `yaml:"port" mapstructure:"port"`
	Environment      string   `yaml:"environment" mapstructure:"environment"`
	CORSOrigins      []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RateLimit        int      `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateWindowMins   int      `yaml:"rate_window_mins" mapstructure:"rate_window_mins"`
	ShutdownTimeSecs int      `yaml:"shutdown_time_secs" mapstructure:"shutdown_time_secs"`
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
	v.SetEnvPrefix("MGNREGA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "mgnrega_data.db")
	v.SetDefault("datagov.base_url", "https://api.data.gov.in/resource")
	// Registered so the MGNREGA_DATAGOV_API_KEY env var survives Unmarshal.
	v.SetDefault("datagov.api_key", "")
	v.SetDefault("datagov.timeout_secs", 15)
	v.SetDefault("datagov.page_limit", 1000)
	v.SetDefault("datagov.requests_per_sec", 5)
	v.SetDefault("ingest.state_name", "Bihar")
	v.SetDefault("ingest.state_code", "BI")
	v.SetDefault("ingest.year", 2024)
	v.SetDefault("ingest.cache_ttl_hours", 6)
	v.SetDefault("ingest.pause_millis", 1000)
	v.SetDefault("ingest.workers", 1)
	v.SetDefault("ingest.cron_spec", "0 */6 * * *")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.rate_limit", 100)
	v.SetDefault("server.rate_window_mins", 15)
	v.SetDefault("server.shutdown_time_secs", 10)
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
