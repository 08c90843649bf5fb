package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServiceName string
	HTTPAddr    string
	GRPCAddr    string

	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Gateway  GatewayConfig

	JWTSecret      string
	JaegerEndpoint string

	CancelWindow time.Duration
	ReturnWindow time.Duration
	// StockFloorGuard rejects any stock decrement that would take a
	// product's stock below zero.
	StockFloorGuard bool
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type RedisConfig struct {
	Host       string
	Port       string
	Password   string
	ProductTTL time.Duration
}

type KafkaConfig struct {
	Broker string
	Topic  string
	// Notifications starts the in-process consumer that turns lifecycle
	// events into customer notifications.
	Notifications bool
}

type GatewayConfig struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Currency  string
	Timeout   time.Duration
}

func Load() Config {
	return Config{
		ServiceName: getEnv("SERVICE_NAME", "storefront-service"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:    getEnv("GRPC_ADDR", ":50051"),
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", "storefrontdb"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", time.Minute),
		},
		Redis: RedisConfig{
			Host:       getEnv("REDIS_HOST", "localhost"),
			Port:       getEnv("REDIS_PORT", "6379"),
			Password:   getEnv("REDIS_PASSWORD", ""),
			ProductTTL: getEnvDuration("PRODUCT_CACHE_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Broker:        getEnv("KAFKA_BROKER", "localhost:9092"),
			Topic:         getEnv("KAFKA_TOPIC", "order_events"),
			Notifications: getEnvBool("KAFKA_NOTIFICATIONS", true),
		},
		Gateway: GatewayConfig{
			BaseURL:   getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com/v1"),
			KeyID:     getEnv("RAZORPAY_KEY_ID", ""),
			KeySecret: getEnv("RAZORPAY_KEY_SECRET", ""),
			Currency:  getEnv("PAYMENT_CURRENCY", "INR"),
			Timeout:   getEnvDuration("RAZORPAY_TIMEOUT", 10*time.Second),
		},
		JWTSecret:       getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JaegerEndpoint:  getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
		CancelWindow:    getEnvDuration("CANCEL_WINDOW", 12*time.Hour),
		ReturnWindow:    getEnvDuration("RETURN_WINDOW", 72*time.Hour),
		StockFloorGuard: getEnvBool("STOCK_FLOOR_GUARD", true),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return d
}
