package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.Timezone != "America/Lima" {
		t.Fatalf("expected default timezone America/Lima, got %q", cfg.Timezone)
	}
	if cfg.FeedPollInterval != 3*time.Second {
		t.Fatalf("expected 3s poll interval, got %v", cfg.FeedPollInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("FEED_POLL_SECONDS", "5")
	t.Setenv("RATE_LIMIT_PER_MIN", "10")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected port 9090, got %q", cfg.Port)
	}
	if cfg.Timezone != "UTC" {
		t.Fatalf("expected timezone UTC, got %q", cfg.Timezone)
	}
	if cfg.FeedPollInterval != 5*time.Second {
		t.Fatalf("expected 5s poll interval, got %v", cfg.FeedPollInterval)
	}
	if cfg.RateLimitPerMinute != 10 {
		t.Fatalf("expected rate limit 10, got %d", cfg.RateLimitPerMinute)
	}
}

func TestLoadBadValuesFallBack(t *testing.T) {
	t.Setenv("FEED_POLL_SECONDS", "not-a-number")
	cfg := Load()
	if cfg.FeedPollInterval != 3*time.Second {
		t.Fatalf("expected fallback 3s, got %v", cfg.FeedPollInterval)
	}
}

func TestLocation(t *testing.T) {
	cfg := Config{Timezone: "America/Lima"}
	if cfg.Location().String() != "America/Lima" {
		t.Fatalf("unexpected location %v", cfg.Location())
	}

	cfg = Config{Timezone: "Not/AZone"}
	if cfg.Location() != time.UTC {
		t.Fatalf("expected UTC fallback, got %v", cfg.Location())
	}
}
