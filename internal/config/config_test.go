package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Stream.Key != "render.work" || cfg.Stream.Results != "render.done" {
		t.Fatalf("unexpected stream defaults: %s", cfg)
	}
	if cfg.Render.MaxDepth != 32 || cfg.Render.Timeout != 5*time.Second || cfg.Render.BuilderName != "json" {
		t.Fatalf("unexpected render defaults: %s", cfg)
	}
	if cfg.Partials.RedisKey != "render:partials" || cfg.Partials.Dir != "" {
		t.Fatalf("unexpected partial defaults: %s", cfg)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("RENDER_MAX_DEPTH", "4")
	t.Setenv("RENDER_TIMEOUT", "250ms")
	t.Setenv("PARTIALS_DIR", "/etc/partials")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Render.MaxDepth != 4 || cfg.Render.Timeout != 250*time.Millisecond {
		t.Fatalf("unexpected render settings: %s", cfg)
	}
	if cfg.Partials.Dir != "/etc/partials" || cfg.Redis.DB != 3 || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected settings: %s", cfg)
	}
}

func TestLoadRejectsInvalidEnvironment(t *testing.T) {
	t.Setenv("RENDER_MAX_DEPTH", "0")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "RENDER_MAX_DEPTH") {
		t.Fatalf("expected RENDER_MAX_DEPTH error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing worker id", func(c *Config) { c.WorkerID = "" }, "WORKER_ID"},
		{"same streams", func(c *Config) { c.Stream.Results = c.Stream.Key }, "must differ"},
		{"zero depth", func(c *Config) { c.Render.MaxDepth = 0 }, "RENDER_MAX_DEPTH"},
		{"zero timeout", func(c *Config) { c.Render.Timeout = 0 }, "RENDER_TIMEOUT"},
		{"bad port", func(c *Config) { c.HealthPort = 70000 }, "HEALTH_PORT"},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %s, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateReportsAllErrors(t *testing.T) {
	cfg := valid()
	cfg.WorkerID = ""
	cfg.Render.BuilderName = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, want := range []string{"WORKER_ID", "BUILDER_NAME"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error mentioning %s, got %v", want, err)
		}
	}
}

func TestStringOmitsPassword(t *testing.T) {
	cfg := valid()
	cfg.Redis.Password = "secret"
	if strings.Contains(cfg.String(), "secret") {
		t.Fatalf("expected password to be omitted: %s", cfg)
	}
}

func valid() *Config {
	return &Config{
		WorkerID: "render-1",
		Redis:    Redis{Addr: "localhost:6379"},
		Stream: Stream{
			Key:           "render.work",
			ConsumerGroup: "render-workers",
			Results:       "render.done",
			BlockTime:     time.Second,
		},
		Render: Render{
			MaxDepth:    32,
			Timeout:     time.Second,
			BuilderName: "json",
		},
		HealthPort: 8083,
		LogLevel:   "info",
	}
}
