// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/siemql/siemql/internal/pkg/security"
)

// Config holds all application configuration.
type Config struct {
	// Log store connection
	LogStore LogStoreConfig `yaml:"log_store"`

	// Query planning defaults
	Query QueryConfig `yaml:"query"`

	// Session context
	Session SessionConfig `yaml:"session"`

	// Optional entity tagger
	Tagger TaggerConfig `yaml:"tagger"`

	// Audit event bus
	Bus BusConfig `yaml:"bus"`

	// Web front end
	Web WebConfig `yaml:"web"`

	// Logging configuration
	Log LogConfig `yaml:"log"`
}

// LogStoreConfig holds Elasticsearch-compatible log store settings.
type LogStoreConfig struct {
	URL                string        `envconfig:"SIEMQL_ES_URL" yaml:"url"`
	Username           string        `envconfig:"SIEMQL_ES_USER" yaml:"username"`
	Password           string        `envconfig:"SIEMQL_ES_PASSWORD" yaml:"password"`
	Index              string        `envconfig:"SIEMQL_INDEX" yaml:"index"`
	InsecureSkipVerify bool          `envconfig:"SIEMQL_ES_INSECURE" yaml:"insecure_skip_verify"`
	FallbackMajor      int           `envconfig:"SIEMQL_ES_FALLBACK_MAJOR" yaml:"fallback_major"`
	ProbeTimeout       time.Duration `envconfig:"SIEMQL_ES_PROBE_TIMEOUT" yaml:"probe_timeout"`
	MetadataTimeout    time.Duration `envconfig:"SIEMQL_ES_METADATA_TIMEOUT" yaml:"metadata_timeout"`
	SearchTimeout      time.Duration `envconfig:"SIEMQL_ES_SEARCH_TIMEOUT" yaml:"search_timeout"`
	Compress           bool          `envconfig:"SIEMQL_ES_COMPRESS" yaml:"compress"`
}

// QueryConfig holds query planning defaults and log field names.
type QueryConfig struct {
	PageSize          int    `envconfig:"SIEMQL_PAGE_SIZE" yaml:"page_size"`
	AggregationSize   int    `envconfig:"SIEMQL_AGG_SIZE" yaml:"aggregation_size"`
	HistogramInterval string `envconfig:"SIEMQL_HISTOGRAM_INTERVAL" yaml:"histogram_interval"`
	UserField         string `envconfig:"SIEMQL_FIELD_USER" yaml:"user_field"`
	IPField           string `envconfig:"SIEMQL_FIELD_IP" yaml:"ip_field"`
	TimestampField    string `envconfig:"SIEMQL_FIELD_TIMESTAMP" yaml:"timestamp_field"`
	EventField        string `envconfig:"SIEMQL_FIELD_EVENT" yaml:"event_field"`
}

// SessionConfig holds session context settings.
type SessionConfig struct {
	MaxTurns    int `envconfig:"SIEMQL_SESSION_MAX_TURNS" yaml:"max_turns"`
	MaxSessions int `envconfig:"SIEMQL_MAX_SESSIONS" yaml:"max_sessions"`
}

// TaggerConfig selects the optional entity tagger.
type TaggerConfig struct {
	Type        string        `envconfig:"SIEMQL_TAGGER" yaml:"type"`
	LexiconPath string        `envconfig:"SIEMQL_TAGGER_LEXICON" yaml:"lexicon_path"`
	URL         string        `envconfig:"SIEMQL_TAGGER_URL" yaml:"url"`
	Timeout     time.Duration `envconfig:"SIEMQL_TAGGER_TIMEOUT" yaml:"timeout"`
}

// BusConfig holds audit event bus settings.
type BusConfig struct {
	Type         string `envconfig:"SIEMQL_BUS_TYPE" yaml:"type"`
	KafkaBrokers string `envconfig:"SIEMQL_KAFKA_BROKERS" yaml:"kafka_brokers"`
	KafkaGroup   string `envconfig:"SIEMQL_KAFKA_GROUP" yaml:"kafka_group"`
	RedisURL     string `envconfig:"SIEMQL_REDIS_URL" yaml:"redis_url"`
	EventLog     string `envconfig:"SIEMQL_AUDIT_LOG" yaml:"event_log"` // JSONL audit file, empty = off
}

// WebConfig holds web front end settings.
type WebConfig struct {
	Host      string  `envconfig:"SIEMQL_HOST" yaml:"host"`
	Port      int     `envconfig:"SIEMQL_PORT" yaml:"port"`
	RateLimit float64 `envconfig:"SIEMQL_RATE_LIMIT" yaml:"rate_limit"` // 0 = disabled
	Burst     int     `envconfig:"SIEMQL_RATE_BURST" yaml:"burst"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `envconfig:"SIEMQL_LOG_LEVEL" yaml:"level"`
	Format     string `envconfig:"SIEMQL_LOG_FORMAT" yaml:"format"`
	File       string `envconfig:"SIEMQL_LOG_FILE" yaml:"file"`
	MaxSizeMB  int    `envconfig:"SIEMQL_LOG_MAX_SIZE_MB" yaml:"max_size_mb"`
	MaxBackups int    `envconfig:"SIEMQL_LOG_MAX_BACKUPS" yaml:"max_backups"`
	MaxAgeDays int    `envconfig:"SIEMQL_LOG_MAX_AGE_DAYS" yaml:"max_age_days"`
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	setDefaults(cfg)

	// YAML overrides defaults
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Environment has the highest priority
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// Default returns a configuration populated with defaults only.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	cfg.LogStore = LogStoreConfig{
		URL:                "https://localhost:9200",
		Username:           "elastic",
		Index:              "ps01_logs",
		InsecureSkipVerify: true,
		FallbackMajor:      8,
		ProbeTimeout:       3 * time.Second,
		MetadataTimeout:    10 * time.Second,
		SearchTimeout:      30 * time.Second,
	}

	cfg.Query = QueryConfig{
		PageSize:          100,
		AggregationSize:   10,
		HistogramInterval: "1h",
		UserField:         "user",
		IPField:           "source.ip",
		TimestampField:    "@timestamp",
		EventField:        "event",
	}

	cfg.Session = SessionConfig{
		MaxTurns:    50,
		MaxSessions: 1000,
	}

	cfg.Tagger = TaggerConfig{
		Type:    "none",
		Timeout: 2 * time.Second,
	}

	cfg.Bus = BusConfig{
		Type:       "memory",
		KafkaGroup: "siemql",
		RedisURL:   "redis://localhost:6379",
	}

	cfg.Web = WebConfig{
		Host:      "0.0.0.0",
		Port:      5000,
		RateLimit: 5,
		Burst:     10,
	}

	cfg.Log = LogConfig{
		Level:      "info",
		Format:     "text",
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	// Log store validation
	if u, err := url.Parse(c.LogStore.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("invalid log store url: %q (must be http(s)://host[:port])", c.LogStore.URL))
	}
	if err := security.ValidateIndexName(c.LogStore.Index); err != nil {
		errs = append(errs, err.Error())
	}
	if c.LogStore.FallbackMajor != 7 && c.LogStore.FallbackMajor != 8 {
		errs = append(errs, fmt.Sprintf("fallback_major must be 7 or 8, got %d", c.LogStore.FallbackMajor))
	}
	if c.LogStore.ProbeTimeout <= 0 || c.LogStore.MetadataTimeout <= 0 || c.LogStore.SearchTimeout <= 0 {
		errs = append(errs, "log store timeouts must be positive")
	}

	// Query validation
	if c.Query.PageSize < 1 {
		errs = append(errs, "page_size must be positive")
	}
	if c.Query.AggregationSize < 1 {
		errs = append(errs, "aggregation_size must be positive")
	}
	if _, err := time.ParseDuration(c.Query.HistogramInterval); err != nil {
		errs = append(errs, fmt.Sprintf("invalid histogram_interval: %s", c.Query.HistogramInterval))
	}
	for name, field := range map[string]string{
		"user_field":      c.Query.UserField,
		"ip_field":        c.Query.IPField,
		"timestamp_field": c.Query.TimestampField,
		"event_field":     c.Query.EventField,
	} {
		if field == "" {
			errs = append(errs, name+" must not be empty")
		}
	}

	// Session validation
	if c.Session.MaxTurns < 1 {
		errs = append(errs, "session max_turns must be positive")
	}
	if c.Session.MaxSessions < 1 {
		errs = append(errs, "max_sessions must be positive")
	}

	// Tagger validation
	switch c.Tagger.Type {
	case "none", "":
	case "lexicon":
		if c.Tagger.LexiconPath == "" {
			errs = append(errs, "lexicon tagger requires lexicon_path")
		}
	case "remote":
		if c.Tagger.URL == "" {
			errs = append(errs, "remote tagger requires url")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid tagger type: %s (must be none, lexicon, or remote)", c.Tagger.Type))
	}

	// Bus validation
	validBusTypes := map[string]bool{"memory": true, "kafka": true, "redis": true}
	if !validBusTypes[c.Bus.Type] {
		errs = append(errs, fmt.Sprintf("invalid bus type: %s (must be memory, kafka, or redis)", c.Bus.Type))
	}
	if c.Bus.Type == "kafka" && strings.TrimSpace(c.Bus.KafkaBrokers) == "" {
		errs = append(errs, "kafka bus requires kafka_brokers")
	}

	// Web validation
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}
	if c.Web.RateLimit < 0 {
		errs = append(errs, "rate_limit must not be negative")
	}

	// Log validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Address returns the web server address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Web.Host, c.Web.Port)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Log.Level == "debug"
}
