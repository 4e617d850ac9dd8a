// Package services holds the domain rules behind each API resource:
// ownership checks, update whitelists and the cascading side effects.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
	"lora-studio-backend/internal/apperror"
	"lora-studio-backend/internal/blob"
	"lora-studio-backend/internal/events"
	"lora-studio-backend/internal/logger"
	"lora-studio-backend/internal/models"
	"lora-studio-backend/internal/store"
)

const (
	msgModelNotFound = "Model not found"
	msgImageNotFound = "Image not found"
	msgUserNotFound  = "User not found"

	// ServiceFalAI names the stored API key used for training and generation.
	ServiceFalAI = "falai"

	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	CodeMissingAPIKey           = "MISSING_API_KEY"
	CodeModelNotReady           = "MODEL_NOT_READY"
	CodeInsufficientImages      = "INSUFFICIENT_IMAGES"
	CodeTooManyImages           = "TOO_MANY_IMAGES"
	CodeModelLocked             = "MODEL_LOCKED"
)

// ownedRecord loads id from table and hides records the caller does not own
// behind the same not-found error as missing ones.
func ownedRecord(ctx context.Context, table store.Table, id, userID, notFound string) (store.Document, error) {
	if id == "" {
		return nil, apperror.NotFound(notFound)
	}
	doc, err := table.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s record: %w", table.Name(), err)
	}
	if doc == nil || doc.String("userId") != userID {
		return nil, apperror.NotFound(notFound)
	}
	return doc, nil
}

// pick keeps only the allowed fields of body.
func pick(body store.Document, allowed ...string) store.Document {
	out := store.Document{}
	for _, field := range allowed {
		if v, ok := body[field]; ok {
			out[field] = v
		}
	}
	return out
}

func noValidFields() error {
	return apperror.Validation("No valid fields to update", nil)
}

type fieldErrors map[string]string

func (fe fieldErrors) err() error {
	if len(fe) == 0 {
		return nil
	}
	return apperror.Validation("Request validation failed", map[string]string(fe))
}

// blobError surfaces a missing blob provider as 503 and wraps the rest.
func blobError(op string, err error) error {
	if errors.Is(err, blob.ErrNotConfigured) {
		return apperror.Unavailable("File storage is not configured")
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// deleteBlobs removes keys with bounded concurrency. Failures are logged and
// dropped; the records are already gone.
func deleteBlobs(ctx context.Context, blobs blob.Store, log *logger.Logger, keys []string) {
	if len(keys) == 0 {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, key := range keys {
		g.Go(func() error {
			if err := blobs.Delete(gctx, key); err != nil {
				log.Warn("failed to delete blob", "key", key, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func publish(ctx context.Context, pub events.Publisher, log *logger.Logger, channel, event string, payload map[string]interface{}) {
	if err := pub.Publish(ctx, channel, event, payload); err != nil {
		log.Warn("failed to publish event", "channel", channel, "event", event, "error", err)
	}
}

// publishStatus announces a model status change on both the model's and the
// owner's channel.
func publishStatus(ctx context.Context, pub events.Publisher, log *logger.Logger, model models.TrainingModel) {
	payload := events.ModelStatusPayload(model)
	publish(ctx, pub, log, events.ModelChannel(model.ID), events.EventModelStatusChanged, payload)
	publish(ctx, pub, log, events.UserChannel(model.UserID), events.EventModelStatusChanged, payload)
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func allowedType(allowed []string, contentType string) bool {
	return slices.Contains(allowed, strings.ToLower(strings.TrimSpace(contentType)))
}

// TrainingImagePrefix is the blob key prefix for a model's training images.
func TrainingImagePrefix(userID, modelID string) string {
	return userID + "/models/" + modelID + "/images/"
}

// TrainingDataKey is where the zipped training set is stored for the trainer.
func TrainingDataKey(userID, modelID string) string {
	return userID + "/models/" + modelID + "/training-data.zip"
}

func generatedKey(userID, name string) string {
	return userID + "/generated/" + name
}

func avatarKey(userID, name string) string {
	return userID + "/avatars/" + name
}
