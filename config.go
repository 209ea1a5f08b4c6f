package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const (
	envPrefix        = "LUNCH_"
	configPathEnvVar = "LUNCH_CONFIG"
)

type Config struct {
	Postgres    PostgresConfig    `koanf:"postgres"`
	Replication ReplicationConfig `koanf:"replication"`
	Redis       RedisConfig       `koanf:"redis"`
	Geocode     GeocodeConfig     `koanf:"geocode"`
	Server      ServerConfig      `koanf:"server"`
	Log         LogConfig         `koanf:"log"`
	Supervisor  SupervisorConfig  `koanf:"supervisor"`
}

type PostgresConfig struct {
	DSN      string `koanf:"dsn"`
	MaxConns int    `koanf:"max_conns"`
	MinConns int    `koanf:"min_conns"`
	Migrate  bool   `koanf:"migrate"`
}

type ReplicationConfig struct {
	// DSN must carry replication=database
	DSN              string        `koanf:"dsn"`
	Slot             string        `koanf:"slot"`
	CreateSlot       bool          `koanf:"create_slot"`
	TemporarySlot    bool          `koanf:"temporary_slot"`
	Schema           string        `koanf:"schema"`
	Table            string        `koanf:"table"`
	PollInterval     time.Duration `koanf:"poll_interval"`
	StandbyTimeout   time.Duration `koanf:"standby_timeout"`
	AdvanceOnFailure bool          `koanf:"advance_on_failure"`
	DeadLetter       bool          `koanf:"dead_letter"`
	DeadLetterLimit  int64         `koanf:"dead_letter_limit"`
}

type RedisConfig struct {
	URL string `koanf:"url"`
}

type GeocodeConfig struct {
	BaseURL         string        `koanf:"base_url"`
	KeyID           string        `koanf:"key_id"`
	Key             string        `koanf:"key"`
	Timeout         time.Duration `koanf:"timeout"`
	Concurrency     int           `koanf:"concurrency"`
	RetryAttempts   int           `koanf:"retry_attempts"`
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
	CacheTTL        time.Duration `koanf:"cache_ttl"`
}

type ServerConfig struct {
	Listen         string        `koanf:"listen"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	UpsertTimeout  time.Duration `koanf:"upsert_timeout"`
	// MaxReplicationLag is how long the stream may stay silent before /health reports it
	MaxReplicationLag time.Duration `koanf:"max_replication_lag"`
}

type LogConfig struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

func defaultConfig() *Config {
	return &Config{
		Postgres: PostgresConfig{
			MaxConns: 20,
			MinConns: 2,
			Migrate:  true,
		},
		Replication: ReplicationConfig{
			Slot:             "seoul_restaurant",
			CreateSlot:       true,
			Schema:           "open_data_cloud",
			Table:            "seoul_restaurant",
			PollInterval:     50 * time.Millisecond,
			StandbyTimeout:   10 * time.Second,
			AdvanceOnFailure: true,
			DeadLetter:       true,
			DeadLetterLimit:  1000,
		},
		Redis: RedisConfig{
			URL: "redis://localhost:6379/0",
		},
		Geocode: GeocodeConfig{
			Timeout:         5 * time.Second,
			Concurrency:     8,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
			CacheTTL:        30 * 24 * time.Hour,
		},
		Server: ServerConfig{
			Listen:            ":8080",
			RequestTimeout:    3 * time.Second,
			UpsertTimeout:     10 * time.Second,
			MaxReplicationLag: 10 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// LoadConfig layers struct defaults, an optional YAML file and LUNCH_ environment
// variables, in that order of precedence.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(configPathEnvVar)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// envTransformFunc maps LUNCH_GEOCODE_KEY_ID to geocode.key_id. Only the first
// underscore separates the section from the key.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	if key == "config" {
		return ""
	}
	section, rest, found := strings.Cut(key, "_")
	if !found {
		return key
	}
	return section + "." + rest
}

func (c *Config) Validate() error {
	var errs []error
	if c.Postgres.DSN == "" {
		errs = append(errs, errors.New("postgres.dsn is required"))
	}
	if c.Replication.DSN == "" {
		errs = append(errs, errors.New("replication.dsn is required"))
	}
	if c.Replication.Table == "" {
		errs = append(errs, errors.New("replication.table is required"))
	}
	if c.Redis.URL == "" {
		errs = append(errs, errors.New("redis.url is required"))
	}
	if c.Geocode.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("geocode.concurrency must be positive, got %d", c.Geocode.Concurrency))
	}
	if c.Geocode.RetryAttempts < 0 {
		errs = append(errs, fmt.Errorf("geocode.retry_attempts must not be negative, got %d", c.Geocode.RetryAttempts))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// ReplicationTables is the wal2json add-tables filter for the configured source table
func (c *Config) ReplicationTables() []string {
	if c.Replication.Schema == "" {
		return nil
	}
	return []string{c.Replication.Schema + "." + c.Replication.Table}
}

func setupLogging(cfg LogConfig) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if cfg.JSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
