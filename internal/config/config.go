// Package config loads the democache demo's runtime settings from the
// environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the settings for the democache demo command. The cache
// library itself (package cache) never parses the environment — only
// this example host does, the way the rest of this codebase's services
// load their configuration.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPPort    int    `envconfig:"HTTP_PORT" default:"8080"`

	CacheName             string        `envconfig:"CACHE_NAME"`
	CacheCountLimit       int64         `envconfig:"CACHE_COUNT_LIMIT" default:"0"`
	CacheCostLimit        int64         `envconfig:"CACHE_COST_LIMIT" default:"0"`
	CacheAgeLimit         time.Duration `envconfig:"CACHE_AGE_LIMIT" default:"0s"`
	CacheAutoTrimInterval time.Duration `envconfig:"CACHE_AUTO_TRIM_INTERVAL" default:"5s"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}
