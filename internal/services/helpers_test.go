package services_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"lora-studio-backend/internal/auth"
	"lora-studio-backend/internal/blob"
	"lora-studio-backend/internal/events"
	"lora-studio-backend/internal/falai"
	"lora-studio-backend/internal/logger"
	"lora-studio-backend/internal/models"
	"lora-studio-backend/internal/services"
	"lora-studio-backend/internal/store"
)

const (
	testWebhookSecret = "whsec-test"
	testServerKey     = "server-fal-key"
)

// fakeFal stands in for the fal.ai client. Downloads are served from
// the blob store the harness writes to.
type fakeFal struct {
	mu        sync.Mutex
	blobs     *blob.MemoryStore
	external  map[string][]byte
	trainings []falai.TrainingRequest
	runs      []falai.GenerationRequest
	keys      []string

	submitErr   error
	generateErr error
}

func (f *fakeFal) SubmitTraining(_ context.Context, apiKey string, req falai.TrainingRequest) (*falai.TrainingSubmission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.keys = append(f.keys, apiKey)
	f.trainings = append(f.trainings, req)
	return &falai.TrainingSubmission{RequestID: fmt.Sprintf("job-%d", len(f.trainings))}, nil
}

func (f *fakeFal) Generate(_ context.Context, apiKey string, req falai.GenerationRequest) (*falai.GenerationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	f.keys = append(f.keys, apiKey)
	f.runs = append(f.runs, req)
	return &falai.GenerationResult{
		Images: []falai.GeneratedImage{{URL: "https://fal.media/out/1.png", ContentType: "image/png"}},
		Seed:   req.Seed,
	}, nil
}

func (f *fakeFal) DownloadFile(_ context.Context, url string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if data, ok := f.external[url]; ok {
		return data, "image/png", nil
	}
	key := strings.TrimPrefix(url, "https://cdn.test/")
	if obj, ok := f.blobs.Get(key); ok {
		return obj.Data, obj.ContentType, nil
	}
	return nil, "", fmt.Errorf("not found: %s", url)
}

type harness struct {
	tables     *store.Tables
	blobs      *blob.MemoryStore
	fal        *fakeFal
	box        *auth.SecretBox
	accounts   *services.AccountService
	models     *services.ModelService
	images     *services.ImageService
	uploads    *services.UploadService
	generation *services.GenerationService
	training   *services.TrainingService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logger.Nop()
	tables := store.NewMemoryTables(store.NewSchema("test"))
	blobs := blob.NewMemoryStore("https://cdn.test")
	fal := &fakeFal{blobs: blobs, external: map[string][]byte{"https://fal.media/out/1.png": []byte("generated-png")}}

	box, err := auth.NewSecretBox([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	accounts := services.NewAccountService(
		tables.Accounts,
		auth.NewPasswordHasher(4),
		auth.NewTokenService("test-secret", time.Hour),
		box,
		log,
	)
	return &harness{
		tables:   tables,
		blobs:    blobs,
		fal:      fal,
		box:      box,
		accounts: accounts,
		models:   services.NewModelService(tables, blobs, events.NopPublisher{}, log),
		images: services.NewImageService(tables, blobs, services.ImageLimits{
			MaxFileSize:       10 << 20,
			AllowedTypes:      []string{"image/jpeg", "image/jpg", "image/png", "image/webp"},
			MaxTrainingImages: 3,
		}, log),
		uploads:    services.NewUploadService(tables.Models, blobs, []string{"image/jpeg", "image/png", "image/webp"}, 0),
		generation: services.NewGenerationService(tables, blobs, fal, accounts, "", events.NopPublisher{}, log),
		training: services.NewTrainingService(tables, blobs, fal, accounts, services.TrainingOptions{
			MinImages:     2,
			WebhookURL:    "https://api.test/api/v1/webhooks/training",
			WebhookSecret: testWebhookSecret,
			ServerKey:     testServerKey,
		}, events.NopPublisher{}, log),
	}
}

func (h *harness) register(t *testing.T, email string) string {
	t.Helper()
	res, err := h.accounts.Register(context.Background(), models.RegisterRequest{Email: email, Password: "password123"})
	require.NoError(t, err)
	return res.User.ID
}

func (h *harness) createModel(t *testing.T, userID string) models.TrainingModel {
	t.Helper()
	model, err := h.models.Create(context.Background(), userID, models.CreateModelRequest{Name: "Test", TriggerWord: "trg1"})
	require.NoError(t, err)
	return model
}

// addImage uploads bytes under a valid key and registers them.
func (h *harness) addImage(t *testing.T, userID, modelID, hash string) models.TrainingImage {
	t.Helper()
	key := services.TrainingImagePrefix(userID, modelID) + uuid.NewString() + ".png"
	require.NoError(t, h.blobs.Put(context.Background(), key, strings.NewReader("png:"+hash), 0, "image/png"))
	image, err := h.images.Add(context.Background(), userID, modelID, models.AddTrainingImageRequest{
		Key:          key,
		OriginalName: "face.png",
		Size:         1024,
		MimeType:     "image/png",
		Hash:         hash,
	})
	require.NoError(t, err)
	return image
}
