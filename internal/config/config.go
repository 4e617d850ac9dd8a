package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"

	BlobSupabase = "supabase"
	BlobS3       = "s3"
	BlobMemory   = "memory"
	BlobNone     = "none"
)

type Config struct {
	// Server
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
	BaseURL     string `yaml:"base_url"`
	LogMode     string `yaml:"log_mode"`

	// Auth
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	BcryptCost    int           `yaml:"bcrypt_cost"`
	EncryptionKey string        `yaml:"encryption_key"`

	// CORS
	CORSOrigin  string   `yaml:"cors_origin"`
	CORSMethods []string `yaml:"cors_methods"`
	CORSHeaders []string `yaml:"cors_headers"`

	// Record store
	StoreDriver string `yaml:"store_driver"`
	DatabaseURL string `yaml:"database_url"`
	SQLitePath  string `yaml:"sqlite_path"`
	TablePrefix string `yaml:"table_prefix"`

	// Blob storage
	BlobProvider       string        `yaml:"blob_provider"`
	SupabaseURL        string        `yaml:"supabase_url"`
	SupabaseServiceKey string        `yaml:"supabase_service_key"`
	StorageBucket      string        `yaml:"storage_bucket"`
	S3Endpoint         string        `yaml:"s3_endpoint"`
	S3AccessKey        string        `yaml:"s3_access_key"`
	S3SecretKey        string        `yaml:"s3_secret_key"`
	S3UseSSL           bool          `yaml:"s3_use_ssl"`
	S3PublicBaseURL    string        `yaml:"s3_public_base_url"`
	PresignExpiry      time.Duration `yaml:"presign_expiry"`

	// Upload and training limits
	MaxUploadBytes    int64    `yaml:"max_upload_bytes"`
	AllowedImageTypes []string `yaml:"allowed_image_types"`
	MinTrainingImages int      `yaml:"min_training_images"`
	MaxTrainingImages int      `yaml:"max_training_images"`
	DefaultPageLimit  int      `yaml:"default_page_limit"`
	MaxPageLimit      int      `yaml:"max_page_limit"`

	// fal.ai
	FalAPIKey        string `yaml:"fal_api_key"`
	FalAPIBaseURL    string `yaml:"fal_api_base_url"`
	FalQueueURL      string `yaml:"fal_queue_url"`
	FalTrainingApp   string `yaml:"fal_training_app"`
	FalGenerationApp string `yaml:"fal_generation_app"`
	WebhookSecret    string `yaml:"webhook_secret"`

	// Redis (optional: rate limiting and status events)
	RedisAddr         string        `yaml:"redis_addr"`
	RedisPassword     string        `yaml:"redis_password"`
	RedisDB           int           `yaml:"redis_db"`
	LoginRateLimit    int           `yaml:"login_rate_limit"`
	RegisterRateLimit int           `yaml:"register_rate_limit"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window"`
}

// Defaults returns the configuration used when nothing else is provided.
func Defaults() Config {
	return Config{
		Port:        "8080",
		Environment: "development",
		BaseURL:     "http://localhost:8080",
		LogMode:     "development",

		TokenTTL:   7 * 24 * time.Hour,
		BcryptCost: 12,

		CORSOrigin:  "*",
		CORSMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		CORSHeaders: []string{"Content-Type", "Authorization", "X-Api-Key", "X-Requested-With"},

		StoreDriver: StoreMemory,
		SQLitePath:  "lora-studio.db",
		TablePrefix: "lora-studio",

		BlobProvider:  BlobNone,
		StorageBucket: "lora-studio-images",
		PresignExpiry: 5 * time.Minute,

		MaxUploadBytes:    10 * 1024 * 1024,
		AllowedImageTypes: []string{"image/jpeg", "image/jpg", "image/png", "image/webp"},
		MinTrainingImages: 2,
		MaxTrainingImages: 50,
		DefaultPageLimit:  20,
		MaxPageLimit:      100,

		FalAPIBaseURL:    "https://fal.run",
		FalQueueURL:      "https://queue.fal.run",
		FalTrainingApp:   "fal-ai/flux-lora-fast-training",
		FalGenerationApp: "fal-ai/flux-lora",

		LoginRateLimit:    10,
		RegisterRateLimit: 5,
		RateLimitWindow:   time.Minute,
	}
}

// Load reads .env (if present), then the optional YAML file named by
// CONFIG_FILE, then environment overrides, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	base := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &base); err != nil {
			return nil, err
		}
	}

	cfg := fromEnv(base)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadFile(path string, into *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func fromEnv(b Config) *Config {
	return &Config{
		Port:        getEnv("PORT", b.Port),
		Environment: getEnv("ENVIRONMENT", b.Environment),
		BaseURL:     getEnv("BASE_URL", b.BaseURL),
		LogMode:     getEnv("LOG_MODE", b.LogMode),

		JWTSecret:     getEnv("JWT_SECRET", b.JWTSecret),
		TokenTTL:      getEnvAsDuration("TOKEN_TTL", b.TokenTTL),
		BcryptCost:    getEnvAsInt("BCRYPT_COST", b.BcryptCost),
		EncryptionKey: getEnv("ENCRYPTION_KEY", b.EncryptionKey),

		CORSOrigin:  getEnv("CORS_ORIGIN", b.CORSOrigin),
		CORSMethods: getEnvAsList("CORS_METHODS", b.CORSMethods),
		CORSHeaders: getEnvAsList("CORS_HEADERS", b.CORSHeaders),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", b.StoreDriver)),
		DatabaseURL: getEnv("DATABASE_URL", b.DatabaseURL),
		SQLitePath:  getEnv("SQLITE_PATH", b.SQLitePath),
		TablePrefix: getEnv("TABLE_PREFIX", b.TablePrefix),

		BlobProvider:       strings.ToLower(getEnv("BLOB_PROVIDER", b.BlobProvider)),
		SupabaseURL:        getEnv("SUPABASE_URL", b.SupabaseURL),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", b.SupabaseServiceKey),
		StorageBucket:      getEnv("STORAGE_BUCKET", b.StorageBucket),
		S3Endpoint:         getEnv("S3_ENDPOINT", b.S3Endpoint),
		S3AccessKey:        getEnv("S3_ACCESS_KEY", b.S3AccessKey),
		S3SecretKey:        getEnv("S3_SECRET_KEY", b.S3SecretKey),
		S3UseSSL:           getEnvAsBool("S3_USE_SSL", b.S3UseSSL),
		S3PublicBaseURL:    getEnv("S3_PUBLIC_BASE_URL", b.S3PublicBaseURL),
		PresignExpiry:      getEnvAsDuration("PRESIGN_EXPIRY", b.PresignExpiry),

		MaxUploadBytes:    int64(getEnvAsInt("MAX_UPLOAD_BYTES", int(b.MaxUploadBytes))),
		AllowedImageTypes: getEnvAsList("ALLOWED_IMAGE_TYPES", b.AllowedImageTypes),
		MinTrainingImages: getEnvAsInt("MIN_TRAINING_IMAGES", b.MinTrainingImages),
		MaxTrainingImages: getEnvAsInt("MAX_TRAINING_IMAGES", b.MaxTrainingImages),
		DefaultPageLimit:  getEnvAsInt("DEFAULT_PAGE_LIMIT", b.DefaultPageLimit),
		MaxPageLimit:      getEnvAsInt("MAX_PAGE_LIMIT", b.MaxPageLimit),

		FalAPIKey:        getEnv("FAL_API_KEY", b.FalAPIKey),
		FalAPIBaseURL:    getEnv("FAL_API_BASE_URL", b.FalAPIBaseURL),
		FalQueueURL:      getEnv("FAL_QUEUE_URL", b.FalQueueURL),
		FalTrainingApp:   getEnv("FAL_TRAINING_APP", b.FalTrainingApp),
		FalGenerationApp: getEnv("FAL_GENERATION_APP", b.FalGenerationApp),
		WebhookSecret:    getEnv("WEBHOOK_SECRET", b.WebhookSecret),

		RedisAddr:         getEnv("REDIS_ADDR", b.RedisAddr),
		RedisPassword:     getEnv("REDIS_PASSWORD", b.RedisPassword),
		RedisDB:           getEnvAsInt("REDIS_DB", b.RedisDB),
		LoginRateLimit:    getEnvAsInt("LOGIN_RATE_LIMIT", b.LoginRateLimit),
		RegisterRateLimit: getEnvAsInt("REGISTER_RATE_LIMIT", b.RegisterRateLimit),
		RateLimitWindow:   getEnvAsDuration("RATE_LIMIT_WINDOW", b.RateLimitWindow),
	}
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if _, err := c.EncryptionKeyBytes(); err != nil {
		return err
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}
	if c.MinTrainingImages < 1 || c.MaxTrainingImages < c.MinTrainingImages {
		return fmt.Errorf("training image limits are inconsistent")
	}

	switch c.StoreDriver {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.BlobProvider {
	case BlobNone, BlobMemory:
	case BlobSupabase:
		if c.SupabaseURL == "" {
			return fmt.Errorf("SUPABASE_URL is required")
		}
		if c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_SERVICE_KEY is required")
		}
	case BlobS3:
		if c.S3Endpoint == "" || c.S3AccessKey == "" || c.S3SecretKey == "" {
			return fmt.Errorf("S3_ENDPOINT, S3_ACCESS_KEY and S3_SECRET_KEY are required")
		}
	default:
		return fmt.Errorf("unsupported BLOB_PROVIDER %q", c.BlobProvider)
	}
	return nil
}

// EncryptionKeyBytes decodes the base64 API-key encryption key.
func (c *Config) EncryptionKeyBytes() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// TrainingWebhookURL is the callback address handed to the training provider.
func (c *Config) TrainingWebhookURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/api/v1/webhooks/training"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
