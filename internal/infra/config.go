package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends accepted by STORE_BACKEND.
const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// Artifact backends accepted by ARTIFACT_BACKEND.
const (
	ArtifactFilesystem = "filesystem"
	ArtifactMinIO      = "minio"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv       string
	Port         string
	StoreBackend string
	DatabaseURL  string
	MongoURI     string
	MongoDB      string
	SQLitePath   string

	ArtifactBackend string
	StoragePath     string
	StorageBaseURL  string
	MinIOEndpoint   string
	MinIOAccessKey  string
	MinIOSecretKey  string
	MinIOBucket     string
	MinIOUseSSL     bool
	MinIOPublicURL  string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	SubjectCollection string
	SubjectImageField string
	AdminToken        string

	JobMaxWait       time.Duration
	JobZombieTimeout time.Duration
	JobMinSpacing    time.Duration
	JobPollInterval  time.Duration
	JobHeartbeat     time.Duration
	GenMaxRetries    int
	GenBaseDelay     time.Duration
	JobRetention     time.Duration
	GCInterval       time.Duration
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:       getEnv("APP_ENV", "development"),
		Port:         port,
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendPostgres)),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		MongoURI:     os.Getenv("MONGO_URI"),
		MongoDB:      getEnv("MONGO_DATABASE", "imagequeue"),
		SQLitePath:   getEnv("SQLITE_PATH", "./imagequeue.db"),

		ArtifactBackend: strings.ToLower(getEnv("ARTIFACT_BACKEND", ArtifactFilesystem)),
		StoragePath:     getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:  getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"),
		MinIOEndpoint:   os.Getenv("MINIO_ENDPOINT"),
		MinIOAccessKey:  os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey:  os.Getenv("MINIO_SECRET_KEY"),
		MinIOBucket:     getEnv("MINIO_BUCKET", "generated-images"),
		MinIOUseSSL:     getEnvBool("MINIO_USE_SSL", false),
		MinIOPublicURL:  os.Getenv("MINIO_PUBLIC_URL"),

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),

		SubjectCollection: getEnv("SUBJECT_COLLECTION", "users"),
		SubjectImageField: getEnv("SUBJECT_IMAGE_FIELD", "image_url"),
		AdminToken:        strings.TrimSpace(os.Getenv("ADMIN_TOKEN")),

		JobMaxWait:       time.Second * time.Duration(getEnvInt("JOB_MAX_WAIT_SECONDS", 540)),
		JobZombieTimeout: time.Second * time.Duration(getEnvInt("JOB_ZOMBIE_TIMEOUT_SECONDS", 300)),
		JobMinSpacing:    time.Second * time.Duration(getEnvInt("JOB_MIN_SPACING_SECONDS", 10)),
		JobPollInterval:  time.Second * time.Duration(getEnvInt("JOB_POLL_INTERVAL_SECONDS", 5)),
		JobHeartbeat:     time.Second * time.Duration(getEnvInt("JOB_HEARTBEAT_SECONDS", 30)),
		GenMaxRetries:    getEnvInt("GEN_MAX_RETRIES", 3),
		GenBaseDelay:     time.Millisecond * time.Duration(getEnvInt("GEN_BASE_DELAY_MS", 2000)),
		JobRetention:     time.Hour * time.Duration(getEnvInt("JOB_RETENTION_HOURS", 24)),
		GCInterval:       time.Minute * time.Duration(getEnvInt("GC_INTERVAL_MINUTES", 60)),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 600)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	switch cfg.StoreBackend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case BackendMongo:
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("MONGO_URI is required")
		}
	case BackendSQLite:
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("SQLITE_PATH is required")
		}
	case BackendMemory:
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND %q", cfg.StoreBackend)
	}

	switch cfg.ArtifactBackend {
	case ArtifactFilesystem:
	case ArtifactMinIO:
		if cfg.MinIOEndpoint == "" {
			return nil, fmt.Errorf("MINIO_ENDPOINT is required when ARTIFACT_BACKEND=minio")
		}
	default:
		return nil, fmt.Errorf("unsupported ARTIFACT_BACKEND %q", cfg.ArtifactBackend)
	}

	if cfg.JobMaxWait < 0 || cfg.JobMinSpacing < 0 {
		return nil, fmt.Errorf("JOB_MAX_WAIT_SECONDS and JOB_MIN_SPACING_SECONDS must not be negative")
	}
	if cfg.JobZombieTimeout <= 0 || cfg.JobPollInterval <= 0 {
		return nil, fmt.Errorf("JOB_ZOMBIE_TIMEOUT_SECONDS and JOB_POLL_INTERVAL_SECONDS must be positive")
	}
	// A live job must heartbeat before others may consider it stale.
	if cfg.JobHeartbeat <= 0 || cfg.JobHeartbeat >= cfg.JobZombieTimeout {
		return nil, fmt.Errorf("JOB_HEARTBEAT_SECONDS (%s) must be positive and shorter than JOB_ZOMBIE_TIMEOUT_SECONDS (%s)", cfg.JobHeartbeat, cfg.JobZombieTimeout)
	}

	if cfg.GenMaxRetries <= 0 {
		cfg.GenMaxRetries = 1
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
