package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/subosito/gotenv"
)

const (
	BackendBunt  = "bunt"
	BackendRedis = "redis"
	BackendMySQL = "mysql"
)

type Config struct {
	LogMode string

	Backend    string
	BuntPath   string
	RedisAddr  string
	RedisTTL   time.Duration
	MySQLDSN   string
	StorageKey string

	WriteRetries int
	WriteTimeout time.Duration
}

// Load reads the environment, after seeding it from envFile when that file
// exists. Variables already set in the environment take precedence.
func Load(envFile string) Config {
	if envFile != "" {
		_ = gotenv.Load(envFile)
	}

	return Config{
		LogMode:      getEnv("LOG_MODE", "dev"),
		Backend:      strings.ToLower(getEnv("CART_BACKEND", BackendBunt)),
		BuntPath:     getEnv("CART_BUNT_PATH", "cart.db"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		RedisTTL:     getEnvDuration("CART_REDIS_TTL", 0),
		MySQLDSN:     getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/cart?parseTime=true"),
		StorageKey:   getEnv("CART_STORAGE_KEY", "cart::products"),
		WriteRetries: getEnvInt("CART_WRITE_RETRIES", 5),
		WriteTimeout: getEnvDuration("CART_WRITE_TIMEOUT", 5*time.Second),
	}
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
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
