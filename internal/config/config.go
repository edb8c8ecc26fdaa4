// Package config loads CLI configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the environment-sourced settings of the command line tool.
type Config struct {
	Endpoint       string
	Region         string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
	Parallelism    int
	PartSize       int64
}

// Load reads the configuration from the environment. A missing .env file
// is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug(".env file not found, using environment variables only")
	}

	config := &Config{
		Endpoint:       getEnv("OBJCP_ENDPOINT", ""),
		Region:         getEnv("OBJCP_REGION", "us-east-1"),
		AccessKey:      getEnv("OBJCP_ACCESS_KEY", ""),
		SecretKey:      getEnv("OBJCP_SECRET_KEY", ""),
		ForcePathStyle: getEnvBool("OBJCP_PATH_STYLE", false),
		Parallelism:    getEnvInt("OBJCP_PARALLELISM", 0),
		PartSize:       int64(getEnvInt("OBJCP_PART_SIZE", 0)),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
