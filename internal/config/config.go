package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	HTTPAddr     string `envconfig:"HTTP_ADDR" default:":8080"`
	PostgresDSN  string `envconfig:"POSTGRES_DSN" default:"host=localhost user=postgres password=postgres dbname=rentals sslmode=disable"`
	RedisAddr    string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	JWTSecret    string `envconfig:"JWT_SECRET" required:"true"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	AutoMigrate  bool   `envconfig:"AUTO_MIGRATE" default:"false"`

	Kafka      KafkaConfig
	Payment    PaymentConfig
	SendGrid   SendGridConfig
	Reconciler ReconcilerConfig
}

type KafkaConfig struct {
	Brokers            []string `envconfig:"KAFKA_BROKERS"`
	EventsTopic        string   `envconfig:"KAFKA_EVENTS_TOPIC" default:"order-events"`
	NotificationsTopic string   `envconfig:"KAFKA_NOTIFICATIONS_TOPIC" default:"notifications"`
	GroupID            string   `envconfig:"KAFKA_GROUP_ID" default:"rental-order-service"`
}

// Enabled reports whether a broker list was configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && strings.TrimSpace(k.Brokers[0]) != ""
}

type PaymentConfig struct {
	BaseURL         string        `envconfig:"PAYMENT_BASE_URL" default:"https://a.khalti.com/api/v2"`
	SecretKey       string        `envconfig:"PAYMENT_SECRET_KEY"`
	ReturnURL       string        `envconfig:"PAYMENT_RETURN_URL" default:"http://localhost:8080/payments/callback"`
	WebsiteURL      string        `envconfig:"PAYMENT_WEBSITE_URL" default:"http://localhost:3000"`
	InitiateTimeout time.Duration `envconfig:"PAYMENT_INITIATE_TIMEOUT" default:"10s"`
	LookupTimeout   time.Duration `envconfig:"PAYMENT_LOOKUP_TIMEOUT" default:"5s"`
}

type SendGridConfig struct {
	APIKey    string `envconfig:"SENDGRID_API_KEY"`
	FromEmail string `envconfig:"SENDGRID_FROM_EMAIL" default:"noreply@gaadi.example"`
	FromName  string `envconfig:"SENDGRID_FROM_NAME" default:"Vehicle Rentals"`
}

type ReconcilerConfig struct {
	Schedule   string        `envconfig:"RECONCILER_SCHEDULE" default:"@every 5m"`
	StaleAfter time.Duration `envconfig:"RECONCILER_STALE_AFTER" default:"15m"`
	BatchSize  int           `envconfig:"RECONCILER_BATCH_SIZE" default:"100"`
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using environment only", "error", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	slog.Info("config loaded",
		"http_addr", cfg.HTTPAddr,
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.Kafka.Brokers,
		"payment_base_url", cfg.Payment.BaseURL)
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Payment.LookupTimeout <= 0 {
		return fmt.Errorf("PAYMENT_LOOKUP_TIMEOUT must be positive")
	}
	if c.Payment.InitiateTimeout <= 0 {
		return fmt.Errorf("PAYMENT_INITIATE_TIMEOUT must be positive")
	}
	if c.Reconciler.BatchSize <= 0 {
		return fmt.Errorf("RECONCILER_BATCH_SIZE must be positive")
	}
	return nil
}
