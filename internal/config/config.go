package config

import (
	"time"

	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	PGDSN          string
	MongoURI       string
	RedisAddr      string
	RabbitURL      string
	JWTPublicKey   string
	GatewayBaseURL string
	GatewayKeyID   string
	GatewaySecret  string
	HoldTTL        time.Duration
	ReleaseBackoff time.Duration
	OTLPEndpoint   string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	holdTTL, _ := time.ParseDuration(os.Getenv("HOLD_TTL"))
	if holdTTL == 0 {
		holdTTL = 15 * time.Minute
	}
	releaseBackoff, _ := time.ParseDuration(os.Getenv("RELEASE_RETRY_BACKOFF"))
	if releaseBackoff == 0 {
		releaseBackoff = 30 * time.Second
	}

	return &Config{
		PGDSN:          os.Getenv("PG_DSN"),
		MongoURI:       os.Getenv("MONGO_URI"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RabbitURL:      os.Getenv("RABBIT_URL"),
		JWTPublicKey:   os.Getenv("JWT_PUBLIC_KEY"),
		GatewayBaseURL: os.Getenv("GATEWAY_BASE_URL"),
		GatewayKeyID:   os.Getenv("GATEWAY_KEY_ID"),
		GatewaySecret:  os.Getenv("GATEWAY_SECRET"),
		HoldTTL:        holdTTL,
		ReleaseBackoff: releaseBackoff,
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}
