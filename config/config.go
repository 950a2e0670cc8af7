package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
)

type Config struct {
	Port     string
	DBUrl    string
	LogLevel string
	// CV Storage
	UploadDir          string
	MaxUploadSizeBytes int64
	StorageDriver      string // "local" or "s3"
	// S3-compatible storage (STORAGE_DRIVER=s3)
	S3Provider        string
	S3Region          string
	S3Bucket          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Endpoint        string // Optional override, e.g. Wasabi or MinIO
	// ClamAV daemon for CV scanning; empty disables scanning
	ClamAVAddress string
	// Redis Configuration
	RedisURL      string
	RedisPassword string
	// Rate Limiting Configuration
	RateLimitUploadPerMinute int
	// CORS
	CORSAllowedOrigins []string
}

func LoadConfig() (*Config, error) {
	// .env is only present locally; a missing file is not an error
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnv("PORT", "3010"),
		DBUrl:    getEnv("DATABASE_URL", ""),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		// CV Storage
		UploadDir:          getEnv("UPLOAD_DIR", "uploads/cvs"),
		MaxUploadSizeBytes: getEnvInt64("MAX_UPLOAD_SIZE_BYTES", 5*1024*1024), // 5MB
		StorageDriver:      strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverLocal)),
		// S3
		S3Provider:        getEnv("S3_PROVIDER", "aws"),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		ClamAVAddress:     getEnv("CLAMAV_ADDRESS", ""),
		// Redis
		RedisURL:      getEnv("REDIS_URL", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		// Rate Limiting
		RateLimitUploadPerMinute: getEnvInt("RATE_LIMIT_UPLOAD_PER_MINUTE", 10),
		// CORS
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}

	if err := validateOrigins(cfg.CORSAllowedOrigins); err != nil {
		return nil, err
	}

	if cfg.DBUrl == "" {
		log.Println("WARNING: DATABASE_URL is missing. Application may fail to connect.")
	}

	if cfg.RedisURL == "" {
		log.Println("WARNING: REDIS_URL not configured. Rate limiting will use in-memory fallback.")
	}

	if cfg.StorageDriver == StorageDriverS3 && cfg.S3Bucket == "" {
		log.Println("WARNING: STORAGE_DRIVER=s3 but S3_BUCKET is empty. CV uploads will fail.")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt returns an integer environment variable or fallback if not set/invalid
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil && intVal > 0 {
			return intVal
		}
	}
	return fallback
}

// getEnvList splits a comma separated variable, dropping empty items
func getEnvList(key string, fallback []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, strings.TrimRight(item, "/"))
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}

// validateOrigins accepts "*" or absolute http(s) origins; anything else
// would make the CORS middleware panic at startup.
func validateOrigins(origins []string) error {
	for _, origin := range origins {
		if origin == "*" {
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("CORS_ALLOWED_ORIGINS: invalid origin %q (expected http(s)://host[:port] or *)", origin)
		}
	}
	return nil
}
