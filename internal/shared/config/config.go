package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// RegionRoute describes where documents for one residency region live.
type RegionRoute struct {
	Bucket string
	Region string
	Prefix string
}

// Config holds application configuration.
type Config struct {
	Env             string
	Port            string
	DatabaseURL     string
	CORSAllowOrigin []string

	// Residency routing. Keys are residency tags ("au", "in").
	RegionRoutes  map[string]RegionRoute
	DefaultRegion string
	ArchivePrefix string

	// Queue.
	QueueURL          string
	AWSRegion         string
	WorkerConcurrency int
	MaxAttempts       int
	RetryBaseDelay    time.Duration

	// Lifecycle thresholds.
	ProcessingTimeout time.Duration
	StallThreshold    time.Duration
	ArchiveRetention  time.Duration
	PresignMaxTTL     time.Duration
	FallbackRecipient string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Env:             env,
		Port:            getEnv("PORT", "8080"),
		DatabaseURL:     dbURL,
		CORSAllowOrigin: splitCSV(getEnv("CORS_ALLOW_ORIGIN", "")),

		RegionRoutes: map[string]RegionRoute{
			"au": {
				Bucket: getEnv("S3_BUCKET_AU", "migration-zone-docs-au"),
				Region: getEnv("S3_REGION_AU", "ap-southeast-2"),
				Prefix: getEnv("S3_PREFIX_AU", "documents/au"),
			},
			"in": {
				Bucket: getEnv("S3_BUCKET_IN", "migration-zone-docs-in"),
				Region: getEnv("S3_REGION_IN", "ap-south-1"),
				Prefix: getEnv("S3_PREFIX_IN", "documents/in"),
			},
		},
		DefaultRegion: getEnv("DEFAULT_RESIDENCY_REGION", "au"),
		ArchivePrefix: getEnv("S3_ARCHIVE_PREFIX", "archive"),

		QueueURL:          getEnv("CD_SQS_QUEUE_URL", ""),
		AWSRegion:         getEnv("AWS_REGION", "ap-southeast-2"),
		WorkerConcurrency: getEnvInt("CD_WORKER_CONCURRENCY", 4),
		MaxAttempts:       getEnvInt("CD_MAX_PROCESS_ATTEMPTS", 3),
		RetryBaseDelay:    getEnvDuration("CD_RETRY_BASE_DELAY", 60*time.Second),

		ProcessingTimeout: getEnvDuration("CD_PROCESSING_TIMEOUT", 30*time.Minute),
		StallThreshold:    getEnvDuration("CD_STALL_THRESHOLD", time.Hour),
		ArchiveRetention:  getEnvDuration("CD_ARCHIVE_RETENTION", 90*24*time.Hour),
		PresignMaxTTL:     getEnvDuration("CD_PRESIGN_MAX_TTL", time.Hour),
		FallbackRecipient: getEnv("CD_NOTIFY_FALLBACK_RECIPIENT", ""),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config %s invalid int: %v", key, err)
		return def
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config %s invalid duration: %v", key, err)
		return def
	}
	return val
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}
