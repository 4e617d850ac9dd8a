package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"lora-studio-backend/internal/apperror"
	"lora-studio-backend/internal/blob"
	"lora-studio-backend/internal/models"
	"lora-studio-backend/internal/store"
)

type UploadService struct {
	models       store.Table
	blobs        blob.Store
	allowedTypes []string
	expiry       time.Duration
}

func NewUploadService(modelsTable store.Table, blobs blob.Store, allowedTypes []string, expiry time.Duration) *UploadService {
	if expiry <= 0 {
		expiry = 5 * time.Minute
	}
	return &UploadService{
		models:       modelsTable,
		blobs:        blobs,
		allowedTypes: allowedTypes,
		expiry:       expiry,
	}
}

// Presign issues a direct-upload URL. Object names are generated here so
// a client can never choose where its bytes land.
func (s *UploadService) Presign(ctx context.Context, userID string, req models.PresignRequest) (models.PresignResponse, error) {
	contentType := strings.ToLower(strings.TrimSpace(req.ContentType))
	if !allowedType(s.allowedTypes, contentType) {
		return models.PresignResponse{}, apperror.Validation("Unsupported content type", map[string]string{
			"contentType": "must be one of " + strings.Join(s.allowedTypes, ", "),
		})
	}

	name := uuid.NewString() + "." + blob.ExtensionFor(contentType, req.Filename)
	var key string
	switch req.Type {
	case models.UploadTraining:
		modelID := strings.TrimSpace(req.ModelID)
		if modelID == "" {
			return models.PresignResponse{}, apperror.Validation("modelId is required for training uploads", map[string]string{
				"modelId": "required",
			})
		}
		if _, err := ownedRecord(ctx, s.models, modelID, userID, msgModelNotFound); err != nil {
			return models.PresignResponse{}, err
		}
		key = TrainingImagePrefix(userID, modelID) + name
	case models.UploadGenerated:
		key = generatedKey(userID, name)
	case models.UploadAvatar:
		key = avatarKey(userID, name)
	default:
		return models.PresignResponse{}, apperror.Validation("Request validation failed", map[string]string{
			"type": "must be one of training, generated, avatar",
		})
	}

	uploadURL, err := s.blobs.PresignUpload(ctx, key, contentType, s.expiry)
	if err != nil {
		return models.PresignResponse{}, blobError("presign upload", err)
	}
	return models.PresignResponse{
		UploadURL: uploadURL,
		FileURL:   s.blobs.PublicURL(key),
		Key:       key,
		ExpiresIn: int(s.expiry.Seconds()),
	}, nil
}
