package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	AppEnv   string
	LogLevel string

	DisconnectGrace        time.Duration
	DisconnectCleanupDelay time.Duration
	LeaveCleanupDelay      time.Duration
	MinRoomAge             time.Duration
	WSReadTimeout          time.Duration
	WSPingInterval         time.Duration

	AllowedOrigins []string
	DatabaseURL    string
	StatsSchedule  string
}

func (c Config) Development() bool { return c.AppEnv == "development" }

func (c Config) Addr() string { return ":" + c.Port }

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	c := Config{
		Port:          getenv("PORT", "3001"),
		AppEnv:        getenv("APP_ENV", "production"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		StatsSchedule: getenv("STATS_SCHEDULE", "@every 1m"),
	}

	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"DISCONNECT_GRACE", 5 * time.Minute, &c.DisconnectGrace},
		{"DISCONNECT_CLEANUP_DELAY", 10 * time.Second, &c.DisconnectCleanupDelay},
		{"LEAVE_CLEANUP_DELAY", time.Second, &c.LeaveCleanupDelay},
		{"MIN_ROOM_AGE", 2 * time.Minute, &c.MinRoomAge},
		{"WS_READ_TIMEOUT", 60 * time.Second, &c.WSReadTimeout},
		{"WS_PING_INTERVAL", 20 * time.Second, &c.WSPingInterval},
	}
	for _, d := range durations {
		v, err := duration(d.key, d.def)
		if err != nil {
			return Config{}, err
		}
		*d.dest = v
	}

	for _, o := range strings.Split(getenv("ALLOWED_ORIGINS", "*"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			c.AllowedOrigins = append(c.AllowedOrigins, o)
		}
	}
	return c, nil
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %s", key, v)
	}
	return d, nil
}
