// Package config loads the server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	// Addr serves the HTTP polling API; WSAddr serves the websocket
	// push endpoint.
	Addr   string
	WSAddr string

	// RedisURL selects the shared registry; empty means in-process.
	RedisURL string
	// DatabaseURL enables the finished-game archive; empty disables it.
	DatabaseURL string

	// RoomTTL evicts rooms idle for longer than this.
	RoomTTL time.Duration

	// WordsFile overrides the embedded card corpus.
	WordsFile string
	// MsgDir overrides the embedded message catalog.
	MsgDir string

	AllowedOrigins []string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		Addr:    ":8080",
		WSAddr:  ":8081",
		RoomTTL: 2 * time.Hour,
	}

	if v := strings.TrimSpace(os.Getenv("ADDR")); v != "" {
		cfg.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("WS_ADDR")); v != "" {
		cfg.WSAddr = v
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.WordsFile = strings.TrimSpace(os.Getenv("WORDS_FILE"))
	cfg.MsgDir = strings.TrimSpace(os.Getenv("MSG_DIR"))

	if v := strings.TrimSpace(os.Getenv("ROOM_TTL")); v != "" {
		d, err := parseTTL(v)
		if err != nil {
			return nil, fmt.Errorf("ROOM_TTL: %w", err)
		}
		cfg.RoomTTL = d
	}

	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, s)
			}
		}
	}

	if cfg.Addr == cfg.WSAddr {
		return nil, fmt.Errorf("ADDR and WS_ADDR must differ, both are %s", cfg.Addr)
	}
	return cfg, nil
}

// parseTTL accepts a Go duration ("2h") or a bare number of seconds.
func parseTTL(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("must be positive, got %d", n)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", d)
	}
	return d, nil
}
