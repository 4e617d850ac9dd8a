package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"lora-studio-backend/internal/apperror"
	"lora-studio-backend/internal/blob"
	"lora-studio-backend/internal/events"
	"lora-studio-backend/internal/falai"
	"lora-studio-backend/internal/logger"
	"lora-studio-backend/internal/models"
	"lora-studio-backend/internal/store"
)

var generatedUpdateFields = []string{"isFavorite", "prompt", "negativePrompt"}

// Generator runs LoRA inference.
type Generator interface {
	Generate(ctx context.Context, apiKey string, req falai.GenerationRequest) (*falai.GenerationResult, error)
	DownloadFile(ctx context.Context, url string) ([]byte, string, error)
}

type GenerationService struct {
	tables    *store.Tables
	blobs     blob.Store
	generator Generator
	accounts  *AccountService
	serverKey string
	events    events.Publisher
	log       *logger.Logger
}

func NewGenerationService(
	tables *store.Tables,
	blobs blob.Store,
	generator Generator,
	accounts *AccountService,
	serverKey string,
	publisher events.Publisher,
	log *logger.Logger,
) *GenerationService {
	return &GenerationService{
		tables:    tables,
		blobs:     blobs,
		generator: generator,
		accounts:  accounts,
		serverKey: serverKey,
		events:    publisher,
		log:       log,
	}
}

// GeneratedPage is one page of generated images.
type GeneratedPage struct {
	Items      []models.GeneratedImage `json:"items"`
	Pagination store.PageMeta          `json:"pagination"`
}

func (s *GenerationService) List(ctx context.Context, userID string) ([]models.GeneratedImage, error) {
	docs, err := s.tables.GeneratedImages.QueryByIndex(ctx, store.IndexUserID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list generated images: %w", err)
	}
	store.NewestFirst(docs)
	return store.DecodeAll[models.GeneratedImage](docs)
}

// ListPaged pages through the caller's images, optionally favorites only.
func (s *GenerationService) ListPaged(ctx context.Context, userID string, q store.PageQuery, favoritesOnly bool) (GeneratedPage, error) {
	q.Filters = map[string]any{"userId": userID}
	if favoritesOnly {
		q.Filters["isFavorite"] = true
	}
	page, err := store.ListPaged(ctx, s.tables.GeneratedImages, q)
	if err != nil {
		return GeneratedPage{}, fmt.Errorf("failed to list generated images: %w", err)
	}
	items, err := store.DecodeAll[models.GeneratedImage](page.Items)
	if err != nil {
		return GeneratedPage{}, err
	}
	return GeneratedPage{Items: items, Pagination: page.Pagination}, nil
}

func (s *GenerationService) Get(ctx context.Context, userID, id string) (models.GeneratedImage, error) {
	doc, err := ownedRecord(ctx, s.tables.GeneratedImages, id, userID, msgImageNotFound)
	if err != nil {
		return models.GeneratedImage{}, err
	}
	var image models.GeneratedImage
	err = store.Decode(doc, &image)
	return image, err
}

func generationDefaults(in *models.GenerationConfig) models.GenerationConfig {
	cfg := models.GenerationConfig{Steps: 50, GuidanceScale: 7.5, LoraScale: 1}
	if in != nil {
		if in.Steps > 0 {
			cfg.Steps = min(in.Steps, 150)
		}
		if in.GuidanceScale > 0 {
			cfg.GuidanceScale = in.GuidanceScale
		}
		if in.LoraScale > 0 {
			cfg.LoraScale = in.LoraScale
		}
		cfg.Seed = in.Seed
		cfg.ImageSize = in.ImageSize
	}
	if cfg.Seed == 0 {
		cfg.Seed = rand.Int64N(1 << 31)
	}
	return cfg
}

// Create runs one generation against a completed model and records it.
func (s *GenerationService) Create(ctx context.Context, userID string, req models.GenerateImageRequest) (models.GeneratedImage, error) {
	prompt := strings.TrimSpace(req.Prompt)
	negative := strings.TrimSpace(req.NegativePrompt)
	errs := fieldErrors{}
	if n := utf8.RuneCountInString(prompt); n < 1 || n > 1000 {
		errs["prompt"] = "must be between 1 and 1000 characters"
	}
	if utf8.RuneCountInString(negative) > 1000 {
		errs["negativePrompt"] = "must be at most 1000 characters"
	}
	if err := errs.err(); err != nil {
		return models.GeneratedImage{}, err
	}

	modelDoc, err := ownedRecord(ctx, s.tables.Models, req.ModelID, userID, msgModelNotFound)
	if err != nil {
		return models.GeneratedImage{}, err
	}
	var model models.TrainingModel
	if err := store.Decode(modelDoc, &model); err != nil {
		return models.GeneratedImage{}, err
	}
	if model.Status != models.StatusCompleted || model.ModelURL == "" {
		return models.GeneratedImage{}, apperror.Validation("Model is not ready for generation", nil).WithCode(CodeModelNotReady)
	}

	apiKey, err := s.accounts.ProviderKey(ctx, userID, ServiceFalAI, s.serverKey)
	if err != nil {
		return models.GeneratedImage{}, err
	}

	cfg := generationDefaults(req.GenerationConfig)
	providerPrompt := prompt
	if !strings.Contains(prompt, model.TriggerWord) {
		providerPrompt = model.TriggerWord + " " + prompt
	}
	result, err := s.generator.Generate(ctx, apiKey, falai.GenerationRequest{
		Prompt:            providerPrompt,
		NegativePrompt:    negative,
		NumInferenceSteps: cfg.Steps,
		GuidanceScale:     cfg.GuidanceScale,
		Seed:              cfg.Seed,
		ImageSize:         cfg.ImageSize,
		NumImages:         1,
		Loras:             []falai.LoraWeight{{Path: model.ModelURL, Scale: cfg.LoraScale}},
		EnableSafety:      true,
	})
	if err != nil {
		return models.GeneratedImage{}, providerError("generation", err, s.log)
	}
	if len(result.Images) == 0 {
		return models.GeneratedImage{}, apperror.Internal(errors.New("generation returned no images"))
	}
	if result.Seed != 0 {
		cfg.Seed = result.Seed
	}

	id := uuid.NewString()
	imageURL, key := s.persist(ctx, userID, id, result.Images[0])

	doc, err := store.Encode(models.GeneratedImage{
		ID:               id,
		UserID:           userID,
		ModelID:          model.ID,
		Prompt:           prompt,
		NegativePrompt:   negative,
		ImageURL:         imageURL,
		Key:              key,
		GenerationConfig: cfg,
		IsFavorite:       false,
	})
	if err != nil {
		return models.GeneratedImage{}, err
	}
	created, err := s.tables.GeneratedImages.Create(ctx, doc)
	if err != nil {
		return models.GeneratedImage{}, fmt.Errorf("failed to record generated image: %w", err)
	}

	var image models.GeneratedImage
	if err := store.Decode(created, &image); err != nil {
		return models.GeneratedImage{}, err
	}
	publish(ctx, s.events, s.log, events.UserChannel(userID), events.EventImageGenerated, events.ImageGeneratedPayload(image))
	return image, nil
}

// persist copies the provider's output into our bucket. On any failure the
// provider URL is kept as is.
func (s *GenerationService) persist(ctx context.Context, userID, id string, out falai.GeneratedImage) (string, string) {
	data, contentType, err := s.generator.DownloadFile(ctx, out.URL)
	if err != nil {
		s.log.Warn("failed to download generated image", "image_id", id, "error", err)
		return out.URL, ""
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = out.ContentType
	}
	key := generatedKey(userID, id+"."+blob.ExtensionFor(contentType, out.URL))
	if err := s.blobs.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		s.log.Warn("failed to store generated image", "image_id", id, "error", err)
		return out.URL, ""
	}
	return s.blobs.PublicURL(key), key
}

func (s *GenerationService) Update(ctx context.Context, userID, id string, body store.Document) (models.GeneratedImage, error) {
	fields := pick(body, generatedUpdateFields...)
	if len(fields) == 0 {
		return models.GeneratedImage{}, noValidFields()
	}
	if _, err := s.Get(ctx, userID, id); err != nil {
		return models.GeneratedImage{}, err
	}

	update := store.Document{}
	errs := fieldErrors{}
	if v, ok := fields["isFavorite"]; ok {
		if fav, isBool := v.(bool); isBool {
			update["isFavorite"] = fav
		} else {
			errs["isFavorite"] = "must be a boolean"
		}
	}
	if v, ok := fields["prompt"]; ok {
		prompt, isString := v.(string)
		prompt = strings.TrimSpace(prompt)
		if n := utf8.RuneCountInString(prompt); !isString || n < 1 || n > 1000 {
			errs["prompt"] = "must be between 1 and 1000 characters"
		} else {
			update["prompt"] = prompt
		}
	}
	if v, ok := fields["negativePrompt"]; ok {
		negative, isString := v.(string)
		negative = strings.TrimSpace(negative)
		if !isString || utf8.RuneCountInString(negative) > 1000 {
			errs["negativePrompt"] = "must be at most 1000 characters"
		} else {
			update["negativePrompt"] = negative
		}
	}
	if err := errs.err(); err != nil {
		return models.GeneratedImage{}, err
	}

	doc, err := s.tables.GeneratedImages.Update(ctx, id, update)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.GeneratedImage{}, apperror.NotFound(msgImageNotFound)
		}
		return models.GeneratedImage{}, fmt.Errorf("failed to update generated image: %w", err)
	}
	var image models.GeneratedImage
	err = store.Decode(doc, &image)
	return image, err
}

func (s *GenerationService) Delete(ctx context.Context, userID, id string) error {
	image, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.tables.GeneratedImages.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperror.NotFound(msgImageNotFound)
		}
		return fmt.Errorf("failed to delete generated image: %w", err)
	}
	if image.Key != "" {
		deleteBlobs(ctx, s.blobs, s.log, []string{image.Key})
	}
	return nil
}

// providerError hides provider failures behind a 503; a rejected key is
// reported as a client error.
func providerError(op string, err error, log *logger.Logger) error {
	log.Error("provider request failed", "operation", op, "error", err)
	var apiErr *falai.APIError
	if errors.As(err, &apiErr) && (apiErr.StatusCode == 401 || apiErr.StatusCode == 403) {
		return apperror.Validation("The fal.ai API key was rejected", nil).WithCode(CodeMissingAPIKey)
	}
	return apperror.Unavailable(fmt.Sprintf("The %s provider is unavailable", op))
}
