package config

import "os"

// Config holds everything the server reads from the environment. The ledger
// falls back to the in-memory store when DatabaseURL is empty; the outbox
// runs only when both DatabaseURL and AMQPURL are set.
type Config struct {
	HTTPAddr      string
	MetricsAddr   string
	DatabaseURL   string
	AMQPURL       string
	SigningSecret string
}

func Load() Config {
	return Config{
		HTTPAddr:      envOr("HTTP_ADDR", ":8080"),
		MetricsAddr:   envOr("METRICS_ADDR", ":9090"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		AMQPURL:       os.Getenv("AMQP_URL"),
		SigningSecret: envOr("SIGNING_SECRET", "dev-signing-secret"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
