package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	ServiceName   string
	LogLevel      string
	HTTPAddr      string
	StorageDriver string
	PostgresDSN   string
	JWTSecret     string

	DBConnectAttempts int
	DBConnectDelay    time.Duration

	RedisAddr   string
	TopCacheTTL time.Duration

	KafkaBrokers       []string
	KafkaEventsTopic   string
	KafkaRequestsTopic string
	KafkaGroupID       string

	FarmReward   int64
	FarmCooldown time.Duration

	OTLPEndpoint string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "users-ledger")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("STORAGE_DRIVER", StorageDriverPostgres)
	v.SetDefault("POSTGRES_DSN", "host=localhost user=postgres password=postgres dbname=ledger sslmode=disable")
	v.SetDefault("JWT_SECRET", "supersecret")
	v.SetDefault("DB_CONNECT_ATTEMPTS", 5)
	v.SetDefault("DB_CONNECT_DELAY", 2*time.Second)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("TOP_CACHE_TTL", 30*time.Second)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_EVENTS_TOPIC", "transactions")
	v.SetDefault("KAFKA_REQUESTS_TOPIC", "transaction-requests")
	v.SetDefault("KAFKA_GROUP_ID", "users-ledger")
	v.SetDefault("FARM_REWARD", 10)
	v.SetDefault("FARM_COOLDOWN", time.Hour)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using environment and defaults", "error", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		ServiceName:        v.GetString("SERVICE_NAME"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		HTTPAddr:           v.GetString("HTTP_ADDR"),
		StorageDriver:      strings.ToLower(v.GetString("STORAGE_DRIVER")),
		PostgresDSN:        v.GetString("POSTGRES_DSN"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		DBConnectAttempts:  v.GetInt("DB_CONNECT_ATTEMPTS"),
		DBConnectDelay:     v.GetDuration("DB_CONNECT_DELAY"),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		TopCacheTTL:        v.GetDuration("TOP_CACHE_TTL"),
		KafkaBrokers:       splitList(v.GetString("KAFKA_BROKERS")),
		KafkaEventsTopic:   v.GetString("KAFKA_EVENTS_TOPIC"),
		KafkaRequestsTopic: v.GetString("KAFKA_REQUESTS_TOPIC"),
		KafkaGroupID:       v.GetString("KAFKA_GROUP_ID"),
		FarmReward:         v.GetInt64("FARM_REWARD"),
		FarmCooldown:       v.GetDuration("FARM_COOLDOWN"),
		OTLPEndpoint:       v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	switch cfg.StorageDriver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must not be empty")
	}

	slog.Info("config loaded",
		"storage_driver", cfg.StorageDriver,
		"http_addr", cfg.HTTPAddr,
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.KafkaBrokers,
	)
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
