package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port             string
	DBDriver         string
	DBPath           string
	DatabaseURL      string
	EvolutionAPIURL  string
	EvolutionAPIKey  string
	DefaultSendDelay int
	MaxImageSizeMB   int64
	MaxVideoSizeMB   int64
	RateLimitRPS     float64
	RateLimitBurst   int
	LogLevel         string
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file")
	}

	return &Config{
		Port:             getEnv("PORT", "8080"),
		DBDriver:         getEnv("DB_DRIVER", "sqlite"),
		DBPath:           getEnv("DB_PATH", "./whatsapp_hub.db"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		EvolutionAPIURL:  getEnv("EVOLUTION_API_URL", "http://localhost:8081"),
		EvolutionAPIKey:  getEnv("EVOLUTION_API_KEY", ""),
		DefaultSendDelay: getEnvInt("DEFAULT_SEND_DELAY", 5),
		MaxImageSizeMB:   int64(getEnvInt("MAX_IMAGE_SIZE_MB", 10)),
		MaxVideoSizeMB:   int64(getEnvInt("MAX_VIDEO_SIZE_MB", 50)),
		RateLimitRPS:     getEnvFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:   getEnvInt("RATE_LIMIT_BURST", 20),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Warning: invalid integer for %s, using default %d", key, fallback)
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		log.Printf("Warning: invalid number for %s, using default %g", key, fallback)
	}
	return fallback
}
