package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	APIBaseURL        string
	SocketURL         string
	CacheFile         string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	RequestTimeout    time.Duration
}

func Load() (*Config, error) {
	attempts, err := strconv.Atoi(getEnv("RECONNECT_ATTEMPTS", "5"))
	if err != nil {
		return nil, fmt.Errorf("RECONNECT_ATTEMPTS is not a number: %w", err)
	}

	reconnectDelay, err := time.ParseDuration(getEnv("RECONNECT_DELAY", "1s"))
	if err != nil {
		return nil, err
	}

	requestTimeout, err := time.ParseDuration(getEnv("REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return nil, err
	}

	apiURL := getEnv("BANTUIN_API_URL", "http://localhost:5500/api")

	cfg := &Config{
		APIBaseURL:        strings.TrimSuffix(apiURL, "/"),
		SocketURL:         getEnv("BANTUIN_SOCKET_URL", socketURLFromAPI(apiURL)),
		CacheFile:         getEnv("BANTUIN_CACHE_DB", "bantuin-chat.db"),
		ReconnectAttempts: attempts,
		ReconnectDelay:    reconnectDelay,
		RequestTimeout:    requestTimeout,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("BANTUIN_API_URL is required")
	}

	if c.ReconnectAttempts < 0 {
		return fmt.Errorf("RECONNECT_ATTEMPTS must not be negative")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be greater than 0")
	}

	return nil
}

// socketURLFromAPI derives the realtime endpoint from the REST base URL: the
// socket listens on the API host without the trailing /api path segment.
func socketURLFromAPI(apiURL string) string {
	base := strings.TrimSuffix(strings.TrimSuffix(apiURL, "/"), "/api")
	base = strings.Replace(base, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	return base + "/ws"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
