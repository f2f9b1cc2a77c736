// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all process-level configuration knobs loaded via Viper.
// Per-source settings (selectors, rate limits, thresholds) live in the
// source registry, not here.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	ML        MLConfig        `mapstructure:"ml"`
	DB        DBConfig        `mapstructure:"db"`
	Blob      BlobConfig      `mapstructure:"blob"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// PipelineConfig governs the run orchestrator.
type PipelineConfig struct {
	Workers           int     `mapstructure:"workers"`
	RunTimeoutMinutes int     `mapstructure:"run_timeout_minutes"`
	DefaultRPS        float64 `mapstructure:"default_rps"`
	DefaultBurst      int     `mapstructure:"default_burst"`
	SystemActor       string  `mapstructure:"system_actor"`
}

// HTTPConfig configures the plain-HTTP fetch strategy.
type HTTPConfig struct {
	UserAgent        string `mapstructure:"user_agent"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxRetries       int    `mapstructure:"max_retries"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int    `mapstructure:"backoff_max_ms"`
	RespectRobots    bool   `mapstructure:"respect_robots"`
}

// HeadlessConfig configures the rendered-browser fetch strategy.
type HeadlessConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	ForceAll        bool     `mapstructure:"force_all"`
	MaxParallel     int      `mapstructure:"max_parallel"`
	NavTimeoutSec   int      `mapstructure:"nav_timeout_seconds"`
	RenderRequired  []string `mapstructure:"render_required_hosts"`
	StealthEnabled  bool     `mapstructure:"stealth"`
	JitterMaxMillis int      `mapstructure:"jitter_max_ms"`
}

// MLConfig configures the external text-parsing collaborator.
type MLConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	Endpoint       string  `mapstructure:"endpoint"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	MinConfidence  float64 `mapstructure:"min_confidence"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MinConns     int    `mapstructure:"min_conns"`
}

// BlobConfig sets where raw page snapshots are archived.
type BlobConfig struct {
	Provider    string `mapstructure:"provider"` // memory, local, gcs
	BaseDir     string `mapstructure:"base_dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// SchedulerConfig toggles cron-driven scheduled runs.
type SchedulerConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JOBHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.run_timeout_minutes", 30)
	v.SetDefault("pipeline.default_rps", 1)
	v.SetDefault("pipeline.default_burst", 1)
	v.SetDefault("pipeline.system_actor", "system")
	v.SetDefault("http.user_agent", "jobharvest-bot/0.1")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("http.respect_robots", true)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.force_all", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.stealth", true)
	v.SetDefault("headless.jitter_max_ms", 1500)
	v.SetDefault("ml.enabled", false)
	v.SetDefault("ml.timeout_seconds", 10)
	v.SetDefault("ml.min_confidence", 0.7)
	v.SetDefault("blob.provider", "memory")
	v.SetDefault("blob.prefix", "pages")
	v.SetDefault("blob.content_type", "text/html; charset=utf-8")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.ML.Enabled && c.ML.Endpoint == "" {
		return fmt.Errorf("ml.endpoint must be set when ml is enabled")
	}
	if c.ML.MinConfidence < 0 || c.ML.MinConfidence > 1 {
		return fmt.Errorf("ml.min_confidence must be in [0,1]")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Blob.Provider {
	case "memory", "":
	case "local":
		if c.Blob.BaseDir == "" {
			return fmt.Errorf("blob.base_dir must be set for the local provider")
		}
	case "gcs":
		if c.Blob.GCSBucket == "" {
			return fmt.Errorf("blob.gcs_bucket must be set for the gcs provider")
		}
	default:
		return fmt.Errorf("unknown blob provider %q", c.Blob.Provider)
	}
	return nil
}

// RunTimeout converts the run ceiling into a duration.
func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.Pipeline.RunTimeoutMinutes) * time.Minute
}

// HTTPTimeout converts the per-request timeout into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
