// @title           LoRA Studio Backend API
// @version         1.0.0
// @description     Backend API for training LoRA models on personal photos and generating images with them. Handles accounts, training models and images, direct uploads, generation and provider callbacks.

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"lora-studio-backend/internal/auth"
	"lora-studio-backend/internal/blob"
	"lora-studio-backend/internal/config"
	"lora-studio-backend/internal/database"
	"lora-studio-backend/internal/events"
	"lora-studio-backend/internal/falai"
	"lora-studio-backend/internal/handlers"
	"lora-studio-backend/internal/logger"
	"lora-studio-backend/internal/middleware"
	"lora-studio-backend/internal/ratelimit"
	"lora-studio-backend/internal/response"
	"lora-studio-backend/internal/services"
	"lora-studio-backend/internal/supabase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLog, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLog.Sync()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tables, closeTables, err := database.OpenTables(ctx, cfg, appLog)
	if err != nil {
		appLog.Fatal("failed to open record store", "driver", cfg.StoreDriver, "error", err)
	}
	defer func() {
		if err := closeTables(); err != nil {
			appLog.Warn("failed to close record store", "error", err)
		}
	}()

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		appLog.Fatal("failed to initialize blob storage", "provider", cfg.BlobProvider, "error", err)
	}
	var memoryFiles *blob.MemoryStore
	switch b := blobs.(type) {
	case blob.Disabled:
		appLog.Warn("blob storage disabled; uploads and training will be unavailable")
	case *blob.MemoryStore:
		appLog.Warn("using in-memory blob storage; files will not survive a restart")
		memoryFiles = b
	}

	var (
		publisher       events.Publisher = events.NopPublisher{}
		loginLimiter    ratelimit.Limiter
		registerLimiter ratelimit.Limiter
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			appLog.Fatal("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
		}
		publisher = events.NewRedisPublisher(rdb)
		if loginLimiter, err = ratelimit.NewFixedWindow(rdb, "ratelimit", cfg.LoginRateLimit, cfg.RateLimitWindow); err != nil {
			appLog.Fatal("failed to configure login rate limit", "error", err)
		}
		if registerLimiter, err = ratelimit.NewFixedWindow(rdb, "ratelimit", cfg.RegisterRateLimit, cfg.RateLimitWindow); err != nil {
			appLog.Fatal("failed to configure register rate limit", "error", err)
		}
	} else {
		appLog.Info("REDIS_ADDR not set; rate limiting and status events are off")
	}

	keyBytes, err := cfg.EncryptionKeyBytes()
	if err != nil {
		appLog.Fatal("invalid encryption key", "error", err)
	}
	box, err := auth.NewSecretBox(keyBytes)
	if err != nil {
		appLog.Fatal("failed to initialize secret box", "error", err)
	}
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)

	fal := falai.NewClient(falai.Options{
		BaseURL:       cfg.FalAPIBaseURL,
		QueueURL:      cfg.FalQueueURL,
		TrainingApp:   cfg.FalTrainingApp,
		GenerationApp: cfg.FalGenerationApp,
	})

	accounts := services.NewAccountService(tables.Accounts, auth.NewPasswordHasher(cfg.BcryptCost), tokens, box, appLog)
	router := handlers.NewRouter(handlers.Dependencies{
		Composer: middleware.NewComposer(tokens, response.CORSConfig{
			AllowOrigin:  cfg.CORSOrigin,
			AllowMethods: cfg.CORSMethods,
			AllowHeaders: cfg.CORSHeaders,
		}, appLog),
		Log:      appLog,
		Store:    tables,
		Accounts: accounts,
		Models:   services.NewModelService(tables, blobs, publisher, appLog),
		Images: services.NewImageService(tables, blobs, services.ImageLimits{
			MaxFileSize:       cfg.MaxUploadBytes,
			AllowedTypes:      cfg.AllowedImageTypes,
			MaxTrainingImages: cfg.MaxTrainingImages,
		}, appLog),
		Generation: services.NewGenerationService(tables, blobs, fal, accounts, cfg.FalAPIKey, publisher, appLog),
		Training: services.NewTrainingService(tables, blobs, fal, accounts, services.TrainingOptions{
			MinImages:     cfg.MinTrainingImages,
			WebhookURL:    cfg.TrainingWebhookURL(),
			WebhookSecret: cfg.WebhookSecret,
			ServerKey:     cfg.FalAPIKey,
		}, publisher, appLog),
		Uploads:          services.NewUploadService(tables.Models, blobs, cfg.AllowedImageTypes, cfg.PresignExpiry),
		Files:            memoryFiles,
		MaxUploadBytes:   cfg.MaxUploadBytes,
		LoginLimiter:     loginLimiter,
		RegisterLimiter:  registerLimiter,
		DefaultPageLimit: cfg.DefaultPageLimit,
		MaxPageLimit:     cfg.MaxPageLimit,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLog.Info("server starting", "port", cfg.Port, "store", cfg.StoreDriver, "blob", cfg.BlobProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	appLog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("graceful shutdown failed", "error", err)
	}
}

func openBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	switch cfg.BlobProvider {
	case config.BlobSupabase:
		client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey)
		if err != nil {
			return nil, err
		}
		return client.Storage(cfg.StorageBucket), nil
	case config.BlobS3:
		return blob.NewMinioStore(ctx, blob.MinioOptions{
			Endpoint:      cfg.S3Endpoint,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.StorageBucket,
			UseSSL:        cfg.S3UseSSL,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
	case config.BlobMemory:
		return blob.NewMemoryStore(cfg.BaseURL + "/files"), nil
	default:
		return blob.Disabled{}, nil
	}
}
