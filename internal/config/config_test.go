package config_test

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lora-studio-backend/internal/config"
)

func testKey() string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
}

func setRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ENCRYPTION_KEY", testKey())
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 7*24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, "*", cfg.CORSOrigin)
	assert.Equal(t, config.StoreMemory, cfg.StoreDriver)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxUploadBytes)
	assert.Equal(t, 2, cfg.MinTrainingImages)
	assert.Equal(t, 50, cfg.MaxTrainingImages)
	assert.Equal(t, 5*time.Minute, cfg.PresignExpiry)
	assert.Contains(t, cfg.AllowedImageTypes, "image/webp")
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ENCRYPTION_KEY", testKey())
	_, err := config.Load()
	assert.ErrorContains(t, err, "JWT_SECRET is required")

	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ENCRYPTION_KEY", "")
	_, err = config.Load()
	assert.ErrorContains(t, err, "ENCRYPTION_KEY is required")

	t.Setenv("ENCRYPTION_KEY", base64.StdEncoding.EncodeToString([]byte("short")))
	_, err = config.Load()
	assert.ErrorContains(t, err, "32 bytes")
}

func TestEnvOverridesFile(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
cors_origin: https://file.example.com
max_training_images: 20
presign_expiry: 2m
allowed_image_types: [image/png]
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CORS_ORIGIN", "https://env.example.com")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "https://env.example.com", cfg.CORSOrigin)
	assert.Equal(t, 20, cfg.MaxTrainingImages)
	assert.Equal(t, 2*time.Minute, cfg.PresignExpiry)
	assert.Equal(t, []string{"image/png"}, cfg.AllowedImageTypes)
}

func TestValidateDriverRequirements(t *testing.T) {
	cfg := config.Defaults()
	cfg.JWTSecret = "s"
	cfg.EncryptionKey = testKey()
	require.NoError(t, cfg.Validate())

	cfg.StoreDriver = config.StorePostgres
	assert.ErrorContains(t, cfg.Validate(), "DATABASE_URL")
	cfg.DatabaseURL = "postgres://localhost/lora"
	require.NoError(t, cfg.Validate())

	cfg.BlobProvider = config.BlobSupabase
	assert.ErrorContains(t, cfg.Validate(), "SUPABASE_URL")

	cfg.BlobProvider = config.BlobS3
	assert.ErrorContains(t, cfg.Validate(), "S3_ENDPOINT")

	cfg.BlobProvider = "ftp"
	assert.ErrorContains(t, cfg.Validate(), "unsupported BLOB_PROVIDER")
}

func TestListEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("ALLOWED_IMAGE_TYPES", "image/png, image/webp ,")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"image/png", "image/webp"}, cfg.AllowedImageTypes)
}

func TestTrainingWebhookURL(t *testing.T) {
	cfg := config.Defaults()
	cfg.BaseURL = "https://api.example.com/"
	assert.Equal(t, "https://api.example.com/api/v1/webhooks/training", cfg.TrainingWebhookURL())
}
