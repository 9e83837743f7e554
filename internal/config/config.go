package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the maestro engine.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Model     ModelConfig     `yaml:"model"`
	KPI       KPIConfig       `yaml:"kpi"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Maestro   MaestroConfig   `yaml:"maestro"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Briefing  BriefingConfig  `yaml:"briefing"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig controls the HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
}

// ModelConfig configures the external language capability.
type ModelConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BaseURL       string        `yaml:"baseURL"`
	ClassifyPath  string        `yaml:"classifyPath"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"ratePerSecond"`
	Burst         float64       `yaml:"burst"`
}

// KPIConfig configures access to the KPI data gateway.
type KPIConfig struct {
	BaseURL     string        `yaml:"baseURL"`
	QueryPath   string        `yaml:"queryPath"`
	Timeout     time.Duration `yaml:"timeout"`
	CatalogPath string        `yaml:"catalogPath"`
}

// CacheConfig controls the response cache and its optional Redis backing.
type CacheConfig struct {
	Bucket       time.Duration `yaml:"bucket"`
	RedisEnabled bool          `yaml:"redisEnabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	TLS          bool          `yaml:"tls"`
}

// RateLimitConfig sizes the inbound admission bucket. The model-call bucket
// lives under ModelConfig since it protects that client specifically.
type RateLimitConfig struct {
	RatePerSecond float64 `yaml:"ratePerSecond"`
	Burst         float64 `yaml:"burst"`
}

// MaestroConfig tunes orchestration fan-out and synthesis.
type MaestroConfig struct {
	AgentTimeout   time.Duration `yaml:"agentTimeout"`
	OverallTimeout time.Duration `yaml:"overallTimeout"`
	IntentWeight   float64       `yaml:"intentWeight"`
	CauseWeight    float64       `yaml:"causeWeight"`
	SigmaThreshold float64       `yaml:"sigmaThreshold"`
	VocabularyPath string        `yaml:"vocabularyPath"`
}

// AlertsConfig tunes the monitoring scan.
type AlertsConfig struct {
	Interval time.Duration `yaml:"interval"`
	Window   time.Duration `yaml:"window"`
	P0Sigma  float64       `yaml:"p0Sigma"`
	P1Sigma  float64       `yaml:"p1Sigma"`
	P2Sigma  float64       `yaml:"p2Sigma"`
}

// BriefingConfig schedules digest generation.
type BriefingConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MAESTRO_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Model: ModelConfig{
			Enabled:       true,
			ClassifyPath:  "/api/v1/classify",
			Timeout:       2 * time.Second,
			RatePerSecond: 1,
			Burst:         5,
		},
		KPI: KPIConfig{
			QueryPath: "/api/v1/kpis/query",
			Timeout:   3 * time.Second,
		},
		Cache: CacheConfig{
			Bucket:       time.Hour,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		},
		RateLimit: RateLimitConfig{
			RatePerSecond: 5,
			Burst:         20,
		},
		Maestro: MaestroConfig{
			AgentTimeout:   3 * time.Second,
			OverallTimeout: 10 * time.Second,
			IntentWeight:   0.4,
			CauseWeight:    0.6,
			SigmaThreshold: 2.0,
		},
		Alerts: AlertsConfig{
			Interval: 5 * time.Minute,
			Window:   24 * time.Hour,
			P0Sigma:  3.0,
			P1Sigma:  2.5,
			P2Sigma:  2.0,
		},
		Briefing: BriefingConfig{Interval: 24 * time.Hour},
		Logging:  LoggingConfig{Level: "info", JSON: false},
	}
}

func (c *Config) validate() error {
	if c.Maestro.IntentWeight < 0 || c.Maestro.CauseWeight < 0 {
		return fmt.Errorf("maestro confidence weights must be non-negative")
	}
	if c.Alerts.P0Sigma < c.Alerts.P1Sigma || c.Alerts.P1Sigma < c.Alerts.P2Sigma {
		return fmt.Errorf("alert sigma thresholds must satisfy p0 >= p1 >= p2")
	}
	if c.RateLimit.RatePerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("inbound rate limit must be positive")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MAESTRO_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("MAESTRO_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("MAESTRO_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("MAESTRO_MODEL_ENABLED"); v != "" {
		cfg.Model.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("MAESTRO_MODEL_BASE_URL"); v != "" {
		cfg.Model.BaseURL = v
	}
	if v := os.Getenv("MAESTRO_MODEL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Model.Timeout = d
		}
	}
	if v := os.Getenv("MAESTRO_KPI_BASE_URL"); v != "" {
		cfg.KPI.BaseURL = v
	}
	if v := os.Getenv("MAESTRO_KPI_CATALOG_PATH"); v != "" {
		cfg.KPI.CatalogPath = v
	}
	if v := os.Getenv("MAESTRO_CACHE_BUCKET"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.Bucket = d
		}
	}
	if v := os.Getenv("MAESTRO_CACHE_REDIS_ENABLED"); v != "" {
		cfg.Cache.RedisEnabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("MAESTRO_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("MAESTRO_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("MAESTRO_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("MAESTRO_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimit.RatePerSecond = f
		}
	}
	if v := os.Getenv("MAESTRO_RATE_LIMIT_BURST"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimit.Burst = f
		}
	}
	if v := os.Getenv("MAESTRO_VOCABULARY_PATH"); v != "" {
		cfg.Maestro.VocabularyPath = v
	}
	if v := os.Getenv("MAESTRO_ALERTS_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Alerts.Interval = d
		}
	}
	if v := os.Getenv("MAESTRO_BRIEFING_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Briefing.Interval = d
		}
	}
	if v := os.Getenv("MAESTRO_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MAESTRO_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
}
