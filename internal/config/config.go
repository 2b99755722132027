package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Checkout CheckoutConfig
	Payment  PaymentConfig
}

type ServerConfig struct {
	Env      string
	LogLevel string
}

type DatabaseConfig struct {
	URL      string // Full database URL
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type CheckoutConfig struct {
	PaymentWindow     time.Duration
	LowStockThreshold int
	TicketFee         decimal.Decimal
	CartTTL           time.Duration
	QRSecret          string
	ExpireBatchSize   int
}

type PaymentConfig struct {
	Provider      string
	WebhookSecret string
	WebhookDedupe time.Duration
}

func Load() (*Config, error) {
	// Load .env files if they exist (try .env.local first, then .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	config := &Config{
		Server: ServerConfig{
			Env:      getEnv("ENV", "development"),
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Database: parseDatabaseConfig(),
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvAsList("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_ORDER_TOPIC", "orders"),
		},
		Checkout: CheckoutConfig{
			PaymentWindow:     getEnvAsDuration("PAYMENT_WINDOW", 30*time.Minute),
			LowStockThreshold: getEnvAsInt("LOW_STOCK_THRESHOLD", 5),
			TicketFee:         getEnvAsDecimal("TICKET_FEE", decimal.Zero),
			CartTTL:           getEnvAsDuration("CART_TTL", 7*24*time.Hour),
			QRSecret:          getEnv("QR_SECRET", "change-me"),
			ExpireBatchSize:   getEnvAsInt("EXPIRE_BATCH_SIZE", 100),
		},
		Payment: PaymentConfig{
			Provider:      getEnv("PAYMENT_PROVIDER", "stripe"),
			WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
			WebhookDedupe: getEnvAsDuration("WEBHOOK_DEDUPE_TTL", 24*time.Hour),
		},
	}

	return config, nil
}

// IsProduction returns true when running in production
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func parseDatabaseConfig() DatabaseConfig {
	if databaseURL := getEnv("DATABASE_URL", ""); databaseURL != "" {
		return parseDatabaseURL(databaseURL)
	}

	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvAsInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		DBName:   getEnv("DB_NAME", "ticketing_checkout"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}

// parseDatabaseURL splits a postgres:// URL into its parts. An unparsable URL
// is kept in URL only and handed to the driver untouched.
func parseDatabaseURL(databaseURL string) DatabaseConfig {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return DatabaseConfig{URL: databaseURL}
	}

	port := 5432
	if p, err := strconv.Atoi(u.Port()); err == nil {
		port = p
	}

	var user, password string
	if u.User != nil {
		user = u.User.Username()
		password, _ = u.User.Password()
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		URL:      databaseURL,
		Host:     u.Hostname(),
		Port:     port,
		User:     user,
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
