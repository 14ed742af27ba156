package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	QR       QRConfig
	Audit    AuditConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Driver         string // "sqlite" or "postgres"
	DSN            string
	MaxOpenConns   int
	MaxIdleConns   int
	MaxLifetime    time.Duration
	ConnectRetries int
	RetryDelay     time.Duration
	AutoMigrate    bool
	MigrationsDir  string
}

type RedisConfig struct {
	Enabled        bool
	Addr           string
	IdempotencyTTL time.Duration
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topics  TopicConfig
}

type TopicConfig struct {
	TicketIssued    string
	TicketValidated string
	TicketCancelled string
}

type AuthConfig struct {
	// OIDCIssuer enables bearer token verification on mutating routes when set.
	OIDCIssuer string
}

type QRConfig struct {
	SecretKey string
}

type AuditConfig struct {
	Enabled  bool
	Interval time.Duration
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", ":8084"),
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:         getEnv("DB_DRIVER", "sqlite"),
			DSN:            getEnv("DB_DSN", "file:ticket_management.sqlite"),
			MaxOpenConns:   getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:   getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:    time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			ConnectRetries: getEnvInt("DB_CONNECT_RETRIES", 5),
			RetryDelay:     2 * time.Second,
			AutoMigrate:    getEnvBool("DB_AUTO_MIGRATE", true),
			MigrationsDir:  getEnv("DB_MIGRATIONS_DIR", "./migrations"),
		},
		Redis: RedisConfig{
			Enabled:        getEnvBool("REDIS_ENABLED", false),
			Addr:           getEnv("REDIS_ADDR", "localhost:6379"),
			IdempotencyTTL: time.Duration(getEnvInt("IDEMPOTENCY_TTL_MINUTES", 60)) * time.Minute,
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Brokers: getEnvList("KAFKA_BROKERS", "localhost:9092"),
			Topics: TopicConfig{
				TicketIssued:    getEnv("KAFKA_TOPIC_TICKET_ISSUED", "ticketing.ticket.issued"),
				TicketValidated: getEnv("KAFKA_TOPIC_TICKET_VALIDATED", "ticketing.ticket.validated"),
				TicketCancelled: getEnv("KAFKA_TOPIC_TICKET_CANCELLED", "ticketing.ticket.cancelled"),
			},
		},
		Auth: AuthConfig{
			OIDCIssuer: getEnv("OIDC_ISSUER", ""),
		},
		QR: QRConfig{
			SecretKey: getEnv("QR_SECRET_KEY", "change-me"),
		},
		Audit: AuditConfig{
			Enabled:  getEnvBool("CAPACITY_AUDIT_ENABLED", true),
			Interval: time.Duration(getEnvInt("CAPACITY_AUDIT_INTERVAL_MINUTES", 15)) * time.Minute,
		},
	}
}

// All returns every configured topic name.
func (t TopicConfig) All() []string {
	return []string{t.TicketIssued, t.TicketValidated, t.TicketCancelled}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key, defaultValue string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, defaultValue), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
