package handlers

import (
	"github.com/gin-gonic/gin"
	"lora-studio-backend/internal/blob"
	"lora-studio-backend/internal/logger"
	"lora-studio-backend/internal/middleware"
	"lora-studio-backend/internal/models"
	"lora-studio-backend/internal/ratelimit"
	"lora-studio-backend/internal/services"
)

// Dependencies is everything NewRouter wires into the route table.
type Dependencies struct {
	Composer *middleware.Composer
	Log      *logger.Logger
	Store    Pinger

	Accounts   *services.AccountService
	Models     *services.ModelService
	Images     *services.ImageService
	Generation *services.GenerationService
	Training   *services.TrainingService
	Uploads    *services.UploadService

	// Files is set when blobs live in process memory; it mounts /files.
	Files          *blob.MemoryStore
	MaxUploadBytes int64

	// Optional. Register and login are not throttled when nil.
	LoginLimiter    ratelimit.Limiter
	RegisterLimiter ratelimit.Limiter

	DefaultPageLimit int
	MaxPageLimit     int
}

func NewRouter(d Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(d.Log))

	// Unknown methods on known paths land in NoMethod, which also answers
	// preflight requests for every route.
	router.HandleMethodNotAllowed = true

	build := d.Composer.Build
	public := middleware.Options{CORS: true}
	private := middleware.Options{CORS: true, RequireAuth: true}
	withBody := func(base middleware.Options, v middleware.Validator) middleware.Options {
		base.ValidateBody = v
		return base
	}
	limited := func(base middleware.Options, scope string, l ratelimit.Limiter) middleware.Options {
		if l != nil {
			base.RateLimit = &middleware.RateLimit{Scope: scope, Limiter: l}
		}
		return base
	}

	router.NoMethod(build(public, methodNotAllowed))
	router.NoRoute(build(public, routeNotFound))

	health := NewHealthHandler(d.Store)
	router.GET("/health", build(public, health.Check))

	authHandler := NewAuthHandler(d.Accounts)
	modelsHandler := NewModelsHandler(d.Models, d.Training)
	imagesHandler := NewImagesHandler(d.Images)
	generatedHandler := NewGeneratedImagesHandler(d.Generation, d.DefaultPageLimit, d.MaxPageLimit)
	settingsHandler := NewSettingsHandler(d.Accounts)
	uploadHandler := NewUploadHandler(d.Uploads)
	webhookHandler := NewWebhookHandler(d.Training)

	api := router.Group("/api/v1")
	api.GET("/health", build(public, health.Check))

	// Auth
	api.POST("/auth/register", build(
		limited(withBody(public, middleware.StructValidator[models.RegisterRequest]()), "register", d.RegisterLimiter),
		authHandler.Register))
	api.POST("/auth/login", build(
		limited(withBody(public, middleware.StructValidator[models.LoginRequest]()), "login", d.LoginLimiter),
		authHandler.Login))
	api.GET("/auth/profile", build(private, authHandler.Profile))
	api.PUT("/auth/profile", build(withBody(private, middleware.JSONObject()), authHandler.UpdateProfile))

	// Models
	api.GET("/models", build(private, modelsHandler.List))
	api.POST("/models", build(withBody(private, middleware.RequireFields("name", "triggerWord")), modelsHandler.Create))
	api.GET("/models/:id", build(private, modelsHandler.Get))
	api.PUT("/models/:id", build(withBody(private, middleware.JSONObject()), modelsHandler.Update))
	api.DELETE("/models/:id", build(private, modelsHandler.Delete))
	api.POST("/models/:id/train", build(private, modelsHandler.Train))

	// Training images
	api.GET("/models/:id/images", build(private, imagesHandler.List))
	api.POST("/models/:id/images", build(
		withBody(private, middleware.StructValidator[models.AddTrainingImageRequest]()), imagesHandler.Add))
	api.DELETE("/images/:id", build(private, imagesHandler.Delete))

	// Generated images
	api.GET("/generated-images", build(private, generatedHandler.List))
	api.POST("/generated-images", build(
		withBody(private, middleware.StructValidator[models.GenerateImageRequest]()), generatedHandler.Create))
	api.GET("/generated-images/:id", build(private, generatedHandler.Get))
	api.PUT("/generated-images/:id", build(withBody(private, middleware.JSONObject()), generatedHandler.Update))
	api.DELETE("/generated-images/:id", build(private, generatedHandler.Delete))

	// Settings
	api.GET("/settings", build(private, settingsHandler.Get))
	api.PUT("/settings", build(withBody(private, middleware.JSONObject()), settingsHandler.Update))

	// Uploads
	api.POST("/upload/presigned", build(
		withBody(private, middleware.StructValidator[models.PresignRequest]()), uploadHandler.Presign))

	if d.Files != nil {
		files := NewFilesHandler(d.Files, d.MaxUploadBytes, d.Composer.CORSConfig())
		router.PUT("/files/*key", build(public, files.Upload))
		router.GET("/files/*key", files.Download)
	}

	// Provider callbacks authenticate with the token query parameter.
	api.POST("/webhooks/training", build(public, webhookHandler.Training))

	return router
}
