package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Broker   BrokerConfig
	Hold     HoldConfig
	Server   ServerConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// BrokerConfig 通知隊列設定；DLQ 名稱固定為 <Queue>_dlq
type BrokerConfig struct {
	Queue        string
	ConsumerID   string
	OutboxPoll   time.Duration
	PublishLimit time.Duration // 單次 publish 的逾時上限
}

// HoldConfig 各種 TTL：hold 本體、ticket type 鎖、consumer 去重 claim
type HoldConfig struct {
	HoldTTL  time.Duration
	LockTTL  time.Duration
	DedupTTL time.Duration
}

type ServerConfig struct {
	Port string
}

var AppConfig *Config

func LoadConfig() *Config {
	AppConfig = &Config{
		Database: GetDatabaseConfig(),
		Redis:    GetRedisConfig(),
		Broker:   GetBrokerConfig(),
		Hold:     GetHoldConfig(),
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
	}

	return AppConfig
}

func LoadTestConfig() *Config {
	testConfig := &DatabaseConfig{
		Host:     "localhost",
		Port:     "5433", // 測試 DB 用 5433 port
		User:     "postgres",
		Password: "postgres",
		DBName:   "test_db",
		SSLMode:  "disable",
	}

	testRedisConfig := RedisConfig{
		Host:     "localhost",
		Port:     "6380", // 測試 Redis 用 6380 port
		Password: "",
		DB:       1,
	}

	return &Config{
		Database: *testConfig,
		Redis:    testRedisConfig,
		Broker: BrokerConfig{
			Queue:        "notifications_test",
			ConsumerID:   "test",
			OutboxPoll:   time.Second,
			PublishLimit: 8 * time.Second,
		},
		Hold: HoldConfig{
			HoldTTL:  300 * time.Second,
			LockTTL:  5 * time.Second,
			DedupTTL: 24 * time.Hour,
		},
		Server: ServerConfig{Port: "8081"},
	}
}

func GetDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		DBName:   getEnv("DB_NAME", "ruhu"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}
}

func GetRedisConfig() RedisConfig {
	db, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		panic(err)
	}

	return RedisConfig{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       db,
	}
}

func GetBrokerConfig() BrokerConfig {
	return BrokerConfig{
		Queue:        getEnv("NOTIFY_QUEUE", "notifications"),
		ConsumerID:   getEnv("CONSUMER_ID", ""),
		OutboxPoll:   getEnvSeconds("OUTBOX_POLL_SECONDS", 5),
		PublishLimit: getEnvSeconds("PUBLISH_TIMEOUT_SECONDS", 8),
	}
}

func GetHoldConfig() HoldConfig {
	return HoldConfig{
		HoldTTL:  getEnvSeconds("HOLD_TTL_SECONDS", 300),
		LockTTL:  getEnvSeconds("LOCK_TTL_SECONDS", 5),
		DedupTTL: getEnvSeconds("PROCESSED_TTL_SECONDS", 60*60*24),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return time.Duration(fallback) * time.Second
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		panic(err)
	}
	return time.Duration(n) * time.Second
}
