package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                string
	DatabaseURL         string
	Timezone            string
	FeedPollInterval    time.Duration
	RateLimitPerMinute  int
	RateLimitBurst      int
	RoomRateLimitPerMin int
	RoomRateLimitBurst  int
	ShutdownGracePeriod time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	timezone := os.Getenv("TIMEZONE")
	if timezone == "" {
		timezone = "America/Lima"
	}

	return Config{
		Port:                port,
		DatabaseURL:         os.Getenv("DB_DSN"),
		Timezone:            timezone,
		FeedPollInterval:    readDurationSeconds("FEED_POLL_SECONDS", 3),
		RateLimitPerMinute:  readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:      readInt("RATE_LIMIT_BURST", 30),
		RoomRateLimitPerMin: readInt("ROOM_RATE_LIMIT_PER_MIN", 60),
		RoomRateLimitBurst:  readInt("ROOM_RATE_LIMIT_BURST", 10),
		ShutdownGracePeriod: readDurationSeconds("SHUTDOWN_GRACE_SECONDS", 10),
	}
}

// Location resolves the configured timezone, falling back to UTC when the
// name is unknown. Day bounds for queue scoping come from this location.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
