package config

import (
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

var (
	instance *Config
	once     sync.Once
)

type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string

	// Encryption key for deployment environment values (must be exactly 32 bytes for AES-256)
	EncryptionKey string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string

	// API key for internal services (health monitors, config-snapshot builder)
	InternalApiKey string

	// Per-call deadline for module control-channel RPCs, in seconds
	ControlTimeoutSeconds int

	// CORS
	CorsOrigins string
}

func Load() *Config {
	once.Do(func() {
		_ = godotenv.Load()

		instance = &Config{
			Port:                  getEnv("PORT", "8080"),
			DatabaseURL:           getEnv("DATABASE_URL", ""),
			JWTSecret:             getEnv("JWT_SECRET", ""),
			EncryptionKey:         getEnv("ENCRYPTION_KEY", ""),
			RedisHost:             getEnv("REDIS_HOST", "localhost"),
			RedisPort:             getEnv("REDIS_PORT", "6379"),
			RedisUsername:         getEnv("REDIS_USERNAME", ""),
			RedisPassword:         getEnv("REDIS_PASSWORD", ""),
			InternalApiKey:        getEnv("INTERNAL_API_KEY", ""),
			ControlTimeoutSeconds: getEnvInt("CONTROL_TIMEOUT_SECONDS", 5),
			CorsOrigins:           getEnv("CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000"),
		}
	})
	return instance
}

// Get returns the loaded config instance
func Get() *Config {
	return instance
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
