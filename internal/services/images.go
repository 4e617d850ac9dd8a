package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"lora-studio-backend/internal/apperror"
	"lora-studio-backend/internal/blob"
	"lora-studio-backend/internal/logger"
	"lora-studio-backend/internal/models"
	"lora-studio-backend/internal/store"
)

// ImageLimits bounds what may be registered as a training image.
type ImageLimits struct {
	MaxFileSize       int64
	AllowedTypes      []string
	MaxTrainingImages int
}

type ImageService struct {
	tables *store.Tables
	blobs  blob.Store
	limits ImageLimits
	log    *logger.Logger
}

func NewImageService(tables *store.Tables, blobs blob.Store, limits ImageLimits, log *logger.Logger) *ImageService {
	return &ImageService{tables: tables, blobs: blobs, limits: limits, log: log}
}

func (s *ImageService) ownedModel(ctx context.Context, userID, modelID string) (models.TrainingModel, error) {
	doc, err := ownedRecord(ctx, s.tables.Models, modelID, userID, msgModelNotFound)
	if err != nil {
		return models.TrainingModel{}, err
	}
	var model models.TrainingModel
	err = store.Decode(doc, &model)
	return model, err
}

// List returns the training images of an owned model, newest first.
func (s *ImageService) List(ctx context.Context, userID, modelID string) ([]models.TrainingImage, error) {
	if _, err := s.ownedModel(ctx, userID, modelID); err != nil {
		return nil, err
	}
	docs, err := s.tables.TrainingImages.QueryByIndex(ctx, store.IndexModelID, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list training images: %w", err)
	}
	store.NewestFirst(docs)
	return store.DecodeAll[models.TrainingImage](docs)
}

// Add registers an image the client has already uploaded through a
// presigned URL and bumps the model's imageCount.
func (s *ImageService) Add(ctx context.Context, userID, modelID string, req models.AddTrainingImageRequest) (models.TrainingImage, error) {
	model, err := s.ownedModel(ctx, userID, modelID)
	if err != nil {
		return models.TrainingImage{}, err
	}

	key := strings.TrimSpace(req.Key)
	errs := fieldErrors{}
	if !strings.HasPrefix(key, TrainingImagePrefix(userID, modelID)) || strings.Contains(key, "..") {
		errs["key"] = "must be an upload key issued for this model"
	}
	if !allowedType(s.limits.AllowedTypes, req.MimeType) {
		errs["mimeType"] = "must be one of " + strings.Join(s.limits.AllowedTypes, ", ")
	}
	if req.Size <= 0 || (s.limits.MaxFileSize > 0 && req.Size > s.limits.MaxFileSize) {
		errs["size"] = fmt.Sprintf("must be between 1 and %d bytes", s.limits.MaxFileSize)
	}
	if err := errs.err(); err != nil {
		return models.TrainingImage{}, err
	}

	if model.Status != models.StatusPending {
		return models.TrainingImage{}, apperror.Validation("Training images can only be added before training starts", nil).
			WithCode(CodeModelLocked)
	}
	if s.limits.MaxTrainingImages > 0 && model.ImageCount >= s.limits.MaxTrainingImages {
		return models.TrainingImage{}, apperror.Validation(
			fmt.Sprintf("A model can have at most %d training images", s.limits.MaxTrainingImages), nil,
		).WithCode(CodeTooManyImages)
	}

	hash := strings.TrimSpace(req.Hash)
	if hash != "" {
		siblings, err := s.tables.TrainingImages.QueryByIndex(ctx, store.IndexModelID, modelID)
		if err != nil {
			return models.TrainingImage{}, fmt.Errorf("failed to check duplicates: %w", err)
		}
		for _, sibling := range siblings {
			if sibling.String("hash") == hash {
				return models.TrainingImage{}, apperror.Conflict("This image has already been added to the model")
			}
		}
	}

	doc, err := store.Encode(models.TrainingImage{
		ID:           uuid.NewString(),
		ModelID:      modelID,
		UserID:       userID,
		Key:          key,
		URL:          s.blobs.PublicURL(key),
		OriginalName: strings.TrimSpace(req.OriginalName),
		Size:         req.Size,
		MimeType:     strings.ToLower(strings.TrimSpace(req.MimeType)),
		Width:        req.Width,
		Height:       req.Height,
		Hash:         hash,
	})
	if err != nil {
		return models.TrainingImage{}, err
	}
	created, err := s.tables.TrainingImages.Create(ctx, doc)
	if err != nil {
		return models.TrainingImage{}, fmt.Errorf("failed to create training image: %w", err)
	}

	if _, err := s.tables.Models.Increment(ctx, modelID, "imageCount", 1); err != nil {
		// The model vanished between the ownership check and the insert.
		_ = s.tables.TrainingImages.Delete(ctx, created.String("id"))
		if errors.Is(err, store.ErrNotFound) {
			return models.TrainingImage{}, apperror.NotFound(msgModelNotFound)
		}
		return models.TrainingImage{}, fmt.Errorf("failed to update image count: %w", err)
	}

	var image models.TrainingImage
	err = store.Decode(created, &image)
	return image, err
}

// Delete removes one training image, decrements its model's count and
// drops the blob on a best-effort basis.
func (s *ImageService) Delete(ctx context.Context, userID, imageID string) error {
	doc, err := ownedRecord(ctx, s.tables.TrainingImages, imageID, userID, msgImageNotFound)
	if err != nil {
		return err
	}
	if err := s.tables.TrainingImages.Delete(ctx, imageID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperror.NotFound(msgImageNotFound)
		}
		return fmt.Errorf("failed to delete training image: %w", err)
	}

	if modelID := doc.String("modelId"); modelID != "" {
		if _, err := s.tables.Models.Increment(ctx, modelID, "imageCount", -1); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to update image count: %w", err)
		}
	}

	if key := doc.String("key"); key != "" {
		deleteBlobs(ctx, s.blobs, s.log, []string{key})
	}
	return nil
}
