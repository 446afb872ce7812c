// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

// Package config loads server configuration from an optional YAML file with
// environment variable overrides. Environment always wins, so containerized
// deployments can run without a config file at all.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Pricing   PricingConfig   `yaml:"pricing"`
	Analytics AnalyticsConfig `yaml:"analytics"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig configures PostgreSQL.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// RedisConfig configures the optional Redis connection used for rate
// limiting and the suggestion cache. An empty URL disables Redis.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// AuthConfig configures credentials and rate limiting.
type AuthConfig struct {
	JWTSecret          string `yaml:"jwt_secret"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

// PricingConfig configures the pricing table.
type PricingConfig struct {
	// UnknownModelPolicy is "reject" or "allow".
	UnknownModelPolicy string `yaml:"unknown_model_policy"`
	// SyncIntervalMinutes is how often default prices are re-synced;
	// 0 disables the background loop.
	SyncIntervalMinutes int `yaml:"sync_interval_minutes"`
}

// AnalyticsConfig configures aggregation limits.
type AnalyticsConfig struct {
	MaxWindowDays int `yaml:"max_window_days"`
}

// Load reads the YAML file at path (skipped when path is empty or the file
// does not exist) and applies environment overrides on top.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server:    ServerConfig{Addr: ":8080"},
		Database:  DatabaseConfig{MaxOpenConns: 25},
		Auth:      AuthConfig{RateLimitPerMinute: 600},
		Pricing:   PricingConfig{UnknownModelPolicy: "reject", SyncIntervalMinutes: 60},
		Analytics: AnalyticsConfig{MaxWindowDays: 366},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "SERVER_ADDR")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setInt(&cfg.Database.MaxOpenConns, "DATABASE_MAX_OPEN_CONNS")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setInt(&cfg.Auth.RateLimitPerMinute, "RATE_LIMIT_PER_MINUTE")
	setString(&cfg.Pricing.UnknownModelPolicy, "PRICING_UNKNOWN_MODEL_POLICY")
	setInt(&cfg.Pricing.SyncIntervalMinutes, "PRICING_SYNC_INTERVAL_MINUTES")
	setInt(&cfg.Analytics.MaxWindowDays, "ANALYTICS_MAX_WINDOW_DAYS")

	// PORT alone is honored for container platforms that only set that.
	if port := os.Getenv("PORT"); port != "" && os.Getenv("SERVER_ADDR") == "" {
		cfg.Server.Addr = ":" + port
	}
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url (or DATABASE_URL) is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret (or JWT_SECRET) is required")
	}
	switch c.Pricing.UnknownModelPolicy {
	case "reject", "allow":
	default:
		return fmt.Errorf("pricing.unknown_model_policy must be reject or allow, got %q", c.Pricing.UnknownModelPolicy)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
