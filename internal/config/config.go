// Package config loads the broker's runtime configuration from environment
// variables, with sensible defaults applied first. This is the compile-time
// default plus env-var override scheme called for in the spec; file-based
// config loading is an explicit non-goal.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all broker runtime configuration.
type Config struct {
	MaxBodySize    uint32 `mapstructure:"max_body_size"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxQueueLength int    `mapstructure:"max_queue_length"`
	Password       string `mapstructure:"password"`
	BindAddr       string `mapstructure:"bind_addr"`

	// AdminAddr, if non-empty, serves a read-only introspection surface
	// (health and per-topic depth) alongside the broker's TCP listener.
	// It carries no write path: every state mutation still goes through
	// the binary protocol. Not part of the wire protocol in §6; an
	// operator convenience only.
	AdminAddr string `mapstructure:"admin_addr"`
}

// Default returns the documented defaults from §6 of the spec.
func Default() *Config {
	return &Config{
		MaxBodySize:    10_240_000,
		MaxConnections: 32,
		MaxQueueLength: 1024,
		Password:       "",
		BindAddr:       "127.0.0.1:25131",
		AdminAddr:      "",
	}
}

// envKeys lists every recognized config key; Load binds each one to the
// environment variable of the same name in uppercase (MAX_BODY_SIZE, ...).
var envKeys = []string{
	"max_body_size",
	"max_connections",
	"max_queue_length",
	"password",
	"bind_addr",
	"admin_addr",
}

// Load reads configuration from environment variables, falling back to
// Default for anything unset. Unlike the shared bunbase loader this uses no
// key prefix: the spec's env vars (MAX_BODY_SIZE, PASSWORD, ...) are the
// literal keys.
func Load() (*Config, error) {
	v := viper.New()

	d := Default()
	v.SetDefault("max_body_size", d.MaxBodySize)
	v.SetDefault("max_connections", d.MaxConnections)
	v.SetDefault("max_queue_length", d.MaxQueueLength)
	v.SetDefault("password", d.Password)
	v.SetDefault("bind_addr", d.BindAddr)
	v.SetDefault("admin_addr", d.AdminAddr)

	for _, key := range envKeys {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
