package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lora-studio-backend/internal/apperror"
	"lora-studio-backend/internal/models"
	"lora-studio-backend/internal/services"
	"lora-studio-backend/internal/store"
)

func TestCreateModelDefaults(t *testing.T) {
	h := newHarness(t)
	userID := h.register(t, "alice@example.com")

	model := h.createModel(t, userID)
	assert.Equal(t, models.StatusPending, model.Status)
	assert.Equal(t, 0, model.ImageCount)
	assert.Equal(t, userID, model.UserID)
	assert.Equal(t, models.DefaultTrainingConfig(), model.TrainingConfig)
	assert.NotEmpty(t, model.CreatedAt)

	_, err := h.models.Create(context.Background(), userID, models.CreateModelRequest{Name: "x", TriggerWord: "two words"})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestModelOwnership(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.register(t, "alice@example.com")
	bob := h.register(t, "bob@example.com")
	model := h.createModel(t, alice)

	_, err := h.models.Get(ctx, bob, model.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))

	_, err = h.models.Update(ctx, bob, model.ID, store.Document{"name": "stolen"})
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))

	assert.True(t, apperror.IsKind(h.models.Delete(ctx, bob, model.ID), apperror.KindNotFound))

	_, err = h.models.Get(ctx, alice, "missing")
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))

	list, err := h.models.List(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdateModelWhitelist(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.register(t, "alice@example.com")
	model := h.createModel(t, userID)

	_, err := h.models.Update(ctx, userID, model.ID, store.Document{"userId": "someone-else", "imageCount": 40})
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, "No valid fields to update", appErr.Message)

	updated, err := h.models.Update(ctx, userID, model.ID, store.Document{
		"name":       "Renamed",
		"userId":     "someone-else",
		"imageCount": 40,
		"progress":   float64(25),
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, userID, updated.UserID)
	assert.Equal(t, 0, updated.ImageCount)
	require.NotNil(t, updated.Progress)
	assert.Equal(t, 25, *updated.Progress)
	assert.Equal(t, model.CreatedAt, updated.CreatedAt)
}

func TestModelStatusOnlyMovesForward(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.register(t, "alice@example.com")
	model := h.createModel(t, userID)

	updated, err := h.models.Update(ctx, userID, model.ID, store.Document{
		"status":   "completed",
		"modelUrl": "https://cdn.test/lora.safetensors",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, updated.Status)
	assert.Equal(t, "https://cdn.test/lora.safetensors", updated.ModelURL)
	assert.NotEmpty(t, updated.CompletedAt)

	_, err = h.models.Update(ctx, userID, model.ID, store.Document{"status": "pending"})
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, services.CodeInvalidStatusTransition, appErr.Code)
	assert.Equal(t, 400, appErr.Status())

	_, err = h.models.Update(ctx, userID, model.ID, store.Document{"status": "archived"})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	got, err := h.models.Get(ctx, userID, model.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
}

func TestDeleteModelCascades(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.register(t, "alice@example.com")
	model := h.createModel(t, userID)
	first := h.addImage(t, userID, model.ID, "h1")
	second := h.addImage(t, userID, model.ID, "h2")
	require.Len(t, h.blobs.Keys(), 2)

	require.NoError(t, h.models.Delete(ctx, userID, model.ID))

	remaining, err := h.tables.TrainingImages.QueryByIndex(ctx, store.IndexModelID, model.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	_, err = h.models.Get(ctx, userID, model.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	assert.True(t, apperror.IsKind(h.images.Delete(ctx, userID, first.ID), apperror.KindNotFound))
	assert.True(t, apperror.IsKind(h.images.Delete(ctx, userID, second.ID), apperror.KindNotFound))
	assert.Empty(t, h.blobs.Keys())
}
