package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	ServicePort int
	DatabaseURL string

	OtelExporterEndpoint string
	OtelServiceName      string

	LogLevel  string
	LogFormat string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int

	RabbitURL string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Env = getEnv("ENV", "dev")
	cfg.DatabaseURL = getEnv("DATABASE_URL", "")

	port, err := getIntEnv("SERVICE_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid SERVICE_PORT %d: must be between 1 and 65535", port)
	}
	cfg.ServicePort = port

	cfg.OtelExporterEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	cfg.OtelServiceName = getEnv("OTEL_SERVICE_NAME", "orderflow")

	defaultLogFormat := "console"
	if cfg.Env == "prod" {
		defaultLogFormat = "json"
	}
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", defaultLogFormat)

	cfg.OutboxPollInterval = getDuration("OUTBOX_POLL_INTERVAL", 2*time.Second)
	batchSize, err := getIntEnv("OUTBOX_BATCH_SIZE", 50)
	if err != nil {
		return nil, err
	}
	cfg.OutboxBatchSize = batchSize

	cfg.RabbitURL = getEnv("RABBIT_URL", "")

	// DATABASE_URL is required only on the path that actually opens a
	// connection (cmd/orderservice); Load() itself must succeed against an
	// empty environment so callers can validate config before wiring storage.

	return cfg, nil
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getIntEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return i, nil
}
