package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the render worker
type Config struct {
	WorkerID string `env:"WORKER_ID" envDefault:"render-1"`

	Redis    Redis
	Stream   Stream
	Partials Partials
	Render   Render

	HealthPort int    `env:"HEALTH_PORT" envDefault:"8083"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
}

// Redis holds the connection settings shared by the stream worker and the
// partial store
type Redis struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// Stream names where render requests arrive and results are published
type Stream struct {
	Key           string        `env:"STREAM_KEY" envDefault:"render.work"`
	ConsumerGroup string        `env:"CONSUMER_GROUP" envDefault:"render-workers"`
	Results       string        `env:"RESULT_STREAM" envDefault:"render.done"`
	BlockTime     time.Duration `env:"BLOCK_TIME" envDefault:"1s"`
}

// Partials lists where partials are loaded from at startup. Either source may
// be empty.
type Partials struct {
	RedisKey string `env:"PARTIALS_KEY" envDefault:"render:partials"`
	Dir      string `env:"PARTIALS_DIR" envDefault:""`
}

// Render bounds a single template execution
type Render struct {
	MaxDepth    int           `env:"RENDER_MAX_DEPTH" envDefault:"32"`
	Timeout     time.Duration `env:"RENDER_TIMEOUT" envDefault:"5s"`
	BuilderName string        `env:"BUILDER_NAME" envDefault:"json"`
}

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.WorkerID != "", "WORKER_ID is required")
	check(c.Redis.Addr != "", "REDIS_ADDR is required")
	check(c.Stream.Key != "", "STREAM_KEY is required")
	check(c.Stream.ConsumerGroup != "", "CONSUMER_GROUP is required")
	check(c.Stream.Results != "", "RESULT_STREAM is required")
	check(c.Stream.Key != c.Stream.Results, "RESULT_STREAM must differ from STREAM_KEY")
	check(c.Stream.BlockTime > 0, "BLOCK_TIME must be positive")
	check(c.Render.MaxDepth > 0, "RENDER_MAX_DEPTH must be positive")
	check(c.Render.Timeout > 0, "RENDER_TIMEOUT must be positive")
	check(c.Render.BuilderName != "", "BUILDER_NAME is required")
	check(c.HealthPort > 0 && c.HealthPort <= 65535, "HEALTH_PORT must be between 1 and 65535, got %d", c.HealthPort)
	check(logLevels[c.LogLevel], "LOG_LEVEL must be one of: debug, info, warn, error")

	return errors.Join(errs...)
}

// String describes the config without the Redis password
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{WorkerID=%s, Redis=%s/%d, Stream=%s->%s (group %s), Partials={key=%q dir=%q}, "+
			"Render={depth=%d timeout=%s builder=%s}, HealthPort=%d, LogLevel=%s}",
		c.WorkerID,
		c.Redis.Addr, c.Redis.DB,
		c.Stream.Key, c.Stream.Results, c.Stream.ConsumerGroup,
		c.Partials.RedisKey, c.Partials.Dir,
		c.Render.MaxDepth, c.Render.Timeout, c.Render.BuilderName,
		c.HealthPort,
		c.LogLevel,
	)
}
