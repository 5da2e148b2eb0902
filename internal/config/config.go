package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendRedis = "redis"
	BackendMongo = "mongo"
)

type Config struct {
	HTTPPort int
	LogLevel string

	CatalogDBPath string

	PersistenceBackend string
	RedisAddr          string
	RedisPassword      string
	MongoURI           string
	MongoDBName        string

	CheckoutURL     string
	CheckoutTimeout time.Duration

	KafkaBrokers []string

	SessionIdleTTL  time.Duration
	ShutdownTimeout time.Duration
}

func Load() Config {
	return Config{
		HTTPPort:           getEnvInt("HTTP_PORT", 8080),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CatalogDBPath:      getEnv("CATALOG_DB_PATH", "./catalog.db"),
		PersistenceBackend: strings.ToLower(getEnv("PERSISTENCE_BACKEND", BackendRedis)),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		MongoURI:           getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:        getEnv("MONGO_DB_NAME", "storefront"),
		CheckoutURL:        getEnv("CHECKOUT_URL", "http://localhost:8090/checkout-sessions"),
		CheckoutTimeout:    getEnvDuration("CHECKOUT_TIMEOUT", 15*time.Second),
		KafkaBrokers:       getEnvList("KAFKA_BROKERS"),
		SessionIdleTTL:     getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
