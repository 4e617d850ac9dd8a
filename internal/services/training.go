package services

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"lora-studio-backend/internal/apperror"
	"lora-studio-backend/internal/blob"
	"lora-studio-backend/internal/events"
	"lora-studio-backend/internal/falai"
	"lora-studio-backend/internal/logger"
	"lora-studio-backend/internal/models"
	"lora-studio-backend/internal/store"
)

// Trainer queues LoRA training jobs.
type Trainer interface {
	SubmitTraining(ctx context.Context, apiKey string, req falai.TrainingRequest) (*falai.TrainingSubmission, error)
	DownloadFile(ctx context.Context, url string) ([]byte, string, error)
}

type TrainingOptions struct {
	MinImages     int
	WebhookURL    string
	WebhookSecret string
	ServerKey     string
}

type TrainingService struct {
	tables   *store.Tables
	blobs    blob.Store
	trainer  Trainer
	accounts *AccountService
	opts     TrainingOptions
	events   events.Publisher
	log      *logger.Logger
	now      func() time.Time
}

func NewTrainingService(
	tables *store.Tables,
	blobs blob.Store,
	trainer Trainer,
	accounts *AccountService,
	opts TrainingOptions,
	publisher events.Publisher,
	log *logger.Logger,
) *TrainingService {
	return &TrainingService{
		tables:   tables,
		blobs:    blobs,
		trainer:  trainer,
		accounts: accounts,
		opts:     opts,
		events:   publisher,
		log:      log,
		now:      time.Now,
	}
}

// Submit packs the model's training images into a zip, stores it and
// queues a training job whose result comes back through the webhook.
func (s *TrainingService) Submit(ctx context.Context, userID, modelID string) (*models.TrainingSubmittedResponse, error) {
	doc, err := ownedRecord(ctx, s.tables.Models, modelID, userID, msgModelNotFound)
	if err != nil {
		return nil, err
	}
	var model models.TrainingModel
	if err := store.Decode(doc, &model); err != nil {
		return nil, err
	}

	if model.Status != models.StatusPending {
		return nil, apperror.Validation(
			fmt.Sprintf("Cannot start training for a model that is %s", model.Status), nil,
		).WithCode(CodeInvalidStatusTransition)
	}
	if model.ImageCount < s.opts.MinImages {
		return nil, apperror.Validation(
			fmt.Sprintf("At least %d training images are required", s.opts.MinImages), nil,
		).WithCode(CodeInsufficientImages)
	}
	if s.opts.WebhookSecret == "" {
		return nil, apperror.Unavailable("Training callbacks are not configured")
	}

	apiKey, err := s.accounts.ProviderKey(ctx, userID, ServiceFalAI, s.opts.ServerKey)
	if err != nil {
		return nil, err
	}

	images, err := s.tables.TrainingImages.QueryByIndex(ctx, store.IndexModelID, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list training images: %w", err)
	}
	store.SortBy(images, store.FieldCreatedAt, store.SortAsc)

	archive, err := s.buildArchive(ctx, images)
	if err != nil {
		return nil, err
	}
	key := TrainingDataKey(userID, modelID)
	if err := s.blobs.Put(ctx, key, bytes.NewReader(archive), int64(len(archive)), "application/zip"); err != nil {
		return nil, blobError("store training data", err)
	}

	cfg := model.TrainingConfig.WithDefaults()
	submission, err := s.trainer.SubmitTraining(ctx, apiKey, falai.TrainingRequest{
		ImagesDataURL: s.blobs.PublicURL(key),
		TriggerWord:   model.TriggerWord,
		Steps:         cfg.Steps,
		LearningRate:  cfg.LearningRate,
		BatchSize:     cfg.BatchSize,
		CreateMasks:   true,
		WebhookURL:    s.webhookURL(modelID),
	})
	if err != nil {
		return nil, providerError("training", err, s.log)
	}

	updated, err := s.tables.Models.Update(ctx, modelID, store.Document{
		"status":        string(models.StatusTraining),
		"trainingJobId": submission.RequestID,
		"progress":      0,
		"errorMessage":  "",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark model as training: %w", err)
	}
	if err := store.Decode(updated, &model); err != nil {
		return nil, err
	}

	s.log.Info("training submitted", "model_id", modelID, "job_id", submission.RequestID, "images", len(images))
	publishStatus(ctx, s.events, s.log, model)
	return &models.TrainingSubmittedResponse{Model: model, JobID: submission.RequestID}, nil
}

func (s *TrainingService) buildArchive(ctx context.Context, images []store.Document) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, doc := range images {
		var image models.TrainingImage
		if err := store.Decode(doc, &image); err != nil {
			return nil, err
		}
		data, contentType, err := s.trainer.DownloadFile(ctx, image.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to download training image %s: %w", image.ID, err)
		}
		if image.MimeType != "" {
			contentType = image.MimeType
		}
		name := fmt.Sprintf("%03d.%s", i+1, blob.ExtensionFor(contentType, image.OriginalName))
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *TrainingService) webhookURL(modelID string) string {
	u, err := url.Parse(s.opts.WebhookURL)
	if err != nil {
		return s.opts.WebhookURL
	}
	q := u.Query()
	q.Set("modelId", modelID)
	q.Set("token", s.opts.WebhookSecret)
	u.RawQuery = q.Encode()
	return u.String()
}

// HandleWebhook applies a training callback. Callbacks for unknown models,
// models no longer training or a different job are acknowledged and
// ignored; the return value reports whether the model changed.
func (s *TrainingService) HandleWebhook(ctx context.Context, modelID, token string, payload models.TrainingWebhook) (bool, error) {
	if s.opts.WebhookSecret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.WebhookSecret)) != 1 {
		return false, apperror.Unauthorized("Invalid webhook token")
	}
	if modelID == "" {
		return false, apperror.Validation("Request validation failed", map[string]string{"modelId": "required"})
	}

	doc, err := s.tables.Models.Get(ctx, modelID)
	if err != nil {
		return false, fmt.Errorf("failed to load model: %w", err)
	}
	if doc == nil {
		s.log.Warn("training webhook for unknown model", "model_id", modelID)
		return false, nil
	}
	var model models.TrainingModel
	if err := store.Decode(doc, &model); err != nil {
		return false, err
	}
	if model.Status != models.StatusTraining {
		s.log.Info("ignoring training webhook", "model_id", modelID, "status", model.Status)
		return false, nil
	}
	if model.TrainingJobID != "" && payload.RequestID != "" && payload.RequestID != model.TrainingJobID {
		s.log.Warn("training webhook job mismatch", "model_id", modelID, "job_id", payload.RequestID)
		return false, nil
	}

	var update store.Document
	switch strings.ToUpper(payload.Status) {
	case "OK":
		if loraURL := payload.Payload.DiffusersLoraFile.URL; loraURL != "" {
			update = store.Document{
				"status":       string(models.StatusCompleted),
				"modelUrl":     loraURL,
				"progress":     100,
				"completedAt":  store.Stamp(s.now()),
				"errorMessage": "",
			}
		} else {
			update = failedUpdate("Training finished without producing a model file")
		}
	case "ERROR":
		message := strings.TrimSpace(payload.Error)
		if message == "" {
			message = "Training failed"
		}
		update = failedUpdate(message)
	default:
		s.log.Warn("training webhook with unknown status", "model_id", modelID, "status", payload.Status)
		return false, nil
	}

	updated, err := s.tables.Models.Update(ctx, modelID, update)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to apply training result: %w", err)
	}
	if err := store.Decode(updated, &model); err != nil {
		return false, err
	}
	s.log.Info("training finished", "model_id", modelID, "status", model.Status)
	publishStatus(ctx, s.events, s.log, model)
	return true, nil
}

func failedUpdate(message string) store.Document {
	return store.Document{
		"status":       string(models.StatusFailed),
		"errorMessage": message,
	}
}
