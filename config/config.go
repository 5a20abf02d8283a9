package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	StorageType      string
	LocalStoragePath string
	DataSourceName   string
	S3BucketName     string
	S3Prefix         string

	JWTSecret    string
	ShareBaseURL string

	VectorMaxCount int
	VectorMaxBytes int
	FontMaxCount   int
	FontMaxBytes   int
}

// Load reads configuration from the environment, after loading a .env file
// if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		StorageType:      getEnv("STORAGE_TYPE", "memory"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./data"),
		DataSourceName:   getEnv("DATA_SOURCE_NAME", "designlink.db"),
		S3BucketName:     getEnv("S3_BUCKET_NAME", ""),
		S3Prefix:         getEnv("S3_PREFIX", ""),

		JWTSecret:    getEnv("JWT_SECRET", ""),
		ShareBaseURL: getEnv("SHARE_BASE_URL", ""),

		VectorMaxCount: getEnvInt("VECTOR_MAX_COUNT", 50),
		VectorMaxBytes: getEnvInt("VECTOR_MAX_BYTES", 512000),
		FontMaxCount:   getEnvInt("FONT_MAX_COUNT", 10),
		FontMaxBytes:   getEnvInt("FONT_MAX_BYTES", 2*1024*1024),
	}

	if cfg.StorageType == "s3" && cfg.S3BucketName == "" {
		return nil, fmt.Errorf("S3_BUCKET_NAME must be set for s3 storage type")
	}
	for name, v := range map[string]int{
		"VECTOR_MAX_COUNT": cfg.VectorMaxCount,
		"VECTOR_MAX_BYTES": cfg.VectorMaxBytes,
		"FONT_MAX_COUNT":   cfg.FontMaxCount,
		"FONT_MAX_BYTES":   cfg.FontMaxBytes,
	} {
		if v <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}

	return cfg, nil
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
