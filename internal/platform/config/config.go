// Package config loads the process configuration from a YAML file with
// CLAIMGATE_* environment overrides layered on top.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// RedisConfig configures the enrichment cache connection.
type RedisConfig struct {
	URL          string        `koanf:"url"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// KafkaConfig configures the audit mirror feed. Empty brokers disable it.
type KafkaConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

// EnrichConfig points at the enrichment service fronted by the gateway.
type EnrichConfig struct {
	BaseURL   string        `koanf:"base_url"`
	Allowlist []string      `koanf:"allowlist"`
	CacheTTL  time.Duration `koanf:"cache_ttl"`
}

// Config is the full process configuration.
type Config struct {
	Environment    string       `koanf:"environment"`
	Addr           string       `koanf:"addr"`
	AdminTokenHash string       `koanf:"admin_token_hash"`
	PolicyPath     string       `koanf:"policy_path"`
	RulePackDir    string       `koanf:"rulepack_dir"`
	RetentionDays  int          `koanf:"retention_days"`
	PostgresURL    string       `koanf:"postgres_url"`
	Redis          RedisConfig  `koanf:"redis"`
	Kafka          KafkaConfig  `koanf:"kafka"`
	Enrich         EnrichConfig `koanf:"enrich"`
}

// Retention converts the configured window to a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// Default returns the development baseline.
func Default() *Config {
	return &Config{
		Environment:   "development",
		Addr:          ":8080",
		PolicyPath:    "configs/policy.yaml",
		RulePackDir:   "rulepacks",
		RetentionDays: 90,
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
}

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (CLAIMGATE_*). A missing file is fine; the
// defaults plus environment carry development setups.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	// CLAIMGATE_REDIS__URL -> redis.url, CLAIMGATE_ADDR -> addr.
	if err := k.Load(env.Provider("CLAIMGATE_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "CLAIMGATE_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields whose bad values would only surface much later.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.RetentionDays < 90 || c.RetentionDays > 365 {
		return fmt.Errorf("retention_days %d outside the 90-365 window", c.RetentionDays)
	}
	if c.PolicyPath == "" {
		return fmt.Errorf("policy_path is required")
	}
	if c.RulePackDir == "" {
		return fmt.Errorf("rulepack_dir is required")
	}
	if !c.Development() && c.AdminTokenHash == "" {
		return fmt.Errorf("admin_token_hash is required outside development")
	}
	return nil
}

// Development reports whether the process runs in a development or test
// environment, which relaxes the gateway's HTTPS and loopback rules.
func (c *Config) Development() bool {
	return c.Environment == "development" || c.Environment == "test"
}
