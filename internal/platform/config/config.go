// Package config loads server configuration. It uses koanf to merge an
// optional YAML file with environment variables; environment wins.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration for the registry server.
type Config struct {
	Addr string `koanf:"addr"`

	// AdminIdentity is seeded with the ADMIN role at startup so the system
	// has at least one caller able to grant roles and pause the registries.
	AdminIdentity string `koanf:"admin_identity"`

	JWTSigningKey string `koanf:"jwt_signing_key"`

	// DatabaseURL selects the PostgreSQL stores when set; empty means the
	// in-memory stores.
	DatabaseURL string `koanf:"database_url"`

	Redis RedisConfig `koanf:"redis"`
	Kafka KafkaConfig `koanf:"kafka"`

	// AuthorityCacheTTL bounds staleness of cached authority point lookups.
	// The verification path never reads the cache.
	AuthorityCacheTTL time.Duration `koanf:"authority_cache_ttl"`
}

// RedisConfig configures the optional authority read cache.
type RedisConfig struct {
	URL          string        `koanf:"url"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// KafkaConfig configures the optional signal publisher.
type KafkaConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

const (
	DefaultAddr              = ":8080"
	DefaultAuthorityCacheTTL = 5 * time.Minute
	DefaultKafkaTopic        = "healthpass.registry.signals"
	defaultRedisPoolSize     = 10
	defaultRedisTimeout      = 3 * time.Second
)

// Load reads configuration from an optional YAML file and the environment.
func Load(configFilePath string) (*Config, error) {
	k := koanf.New(".")

	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configFilePath, err)
		}
	}

	cfg := &Config{
		Addr:              DefaultAddr,
		AuthorityCacheTTL: DefaultAuthorityCacheTTL,
		Redis: RedisConfig{
			PoolSize:     defaultRedisPoolSize,
			DialTimeout:  defaultRedisTimeout,
			ReadTimeout:  defaultRedisTimeout,
			WriteTimeout: defaultRedisTimeout,
		},
		Kafka: KafkaConfig{Topic: DefaultKafkaTopic},
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Environment overrides (highest precedence).
	if v := os.Getenv("HEALTHPASS_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("HEALTHPASS_ADMIN_IDENTITY"); v != "" {
		cfg.AdminIdentity = v
	}
	if v := os.Getenv("JWT_SIGNING_KEY"); v != "" {
		cfg.JWTSigningKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitAndTrim(v)
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}

	if cfg.JWTSigningKey == "" {
		// Development default; override in production.
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	return cfg, nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
