package services_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lora-studio-backend/internal/apperror"
	"lora-studio-backend/internal/models"
	"lora-studio-backend/internal/services"
	"lora-studio-backend/internal/store"
)

func TestRegisterAndLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.accounts.Register(ctx, models.RegisterRequest{Email: "  Alice@Example.com ", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.Equal(t, "alice", res.User.DisplayName)
	assert.Equal(t, models.DefaultPreferences(), res.User.Preferences)
	assert.False(t, res.User.HasAPIKeys)

	login, err := h.accounts.Login(ctx, models.LoginRequest{Email: "ALICE@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, login.User.ID)
	assert.NotEmpty(t, login.Token)
}

func TestRegisterRejectsPasswordsBcryptCannotHash(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for name, password := range map[string]string{
		"73 bytes":         strings.Repeat("a", 73),
		"multi-byte runes": strings.Repeat("😀", 30),
	} {
		_, err := h.accounts.Register(ctx, models.RegisterRequest{Email: "long@example.com", Password: password})
		require.Error(t, err, name)
		appErr, ok := apperror.As(err)
		require.True(t, ok, name)
		assert.Equal(t, apperror.KindValidation, appErr.Kind, name)
		assert.Equal(t, map[string]string{"password": "must be at most 72 bytes"}, appErr.Details, name)
	}

	_, err := h.accounts.Register(ctx, models.RegisterRequest{Email: "edge@example.com", Password: strings.Repeat("a", 72)})
	assert.NoError(t, err)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "alice@example.com")

	_, err := h.accounts.Register(ctx, models.RegisterRequest{Email: "ALICE@example.com", Password: "different99"})
	assert.True(t, apperror.IsKind(err, apperror.KindConflict))

	// The first account's credentials still work.
	_, err = h.accounts.Login(ctx, models.LoginRequest{Email: "alice@example.com", Password: "password123"})
	assert.NoError(t, err)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "alice@example.com")

	_, wrongPassword := h.accounts.Login(ctx, models.LoginRequest{Email: "alice@example.com", Password: "nope-nope"})
	_, unknownEmail := h.accounts.Login(ctx, models.LoginRequest{Email: "bob@example.com", Password: "password123"})

	for _, err := range []error{wrongPassword, unknownEmail} {
		appErr, ok := apperror.As(err)
		require.True(t, ok)
		assert.Equal(t, apperror.KindUnauthorized, appErr.Kind)
		assert.Equal(t, "Invalid email or password", appErr.Message)
	}
}

func TestUpdateProfileWhitelist(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.register(t, "alice@example.com")

	_, err := h.accounts.UpdateProfile(ctx, userID, store.Document{"email": "mallory@example.com", "passwordHash": "x"})
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, "No valid fields to update", appErr.Message)

	user, err := h.accounts.UpdateProfile(ctx, userID, store.Document{
		"displayName": "  Alice A  ",
		"email":       "mallory@example.com",
		"preferences": map[string]any{"theme": "dark", "notifications": map[string]any{"push": false}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice A", user.DisplayName)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "dark", user.Preferences.Theme)
	assert.False(t, user.Preferences.Notifications.Push)
	assert.True(t, user.Preferences.Notifications.Email)

	_, err = h.accounts.UpdateProfile(ctx, userID, store.Document{"displayName": "A", "avatarUrl": "ftp://x"})
	appErr, ok = apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindValidation, appErr.Kind)
	assert.Contains(t, appErr.Details, "displayName")
	assert.Contains(t, appErr.Details, "avatarUrl")

	_, err = h.accounts.UpdateProfile(ctx, userID, store.Document{"preferences": map[string]any{"theme": "neon"}})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestSettingsCreatesDefaultsLazily(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.tables.Accounts.Create(ctx, store.Document{"id": "legacy", "email": "old@example.com"})
	require.NoError(t, err)

	settings, err := h.accounts.Settings(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPreferences(), settings.Preferences)

	doc, err := h.tables.Accounts.Get(ctx, "legacy")
	require.NoError(t, err)
	assert.Contains(t, doc, "preferences")
}

func TestSettingsEncryptsAPIKeys(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.register(t, "alice@example.com")

	settings, err := h.accounts.UpdateSettings(ctx, userID, store.Document{
		"apiKeys": map[string]any{"falai": "fal-secret-123", "replicate": "r8-abc"},
	})
	require.NoError(t, err)
	assert.True(t, settings.HasAPIKeys)
	assert.Equal(t, []string{"falai", "replicate"}, settings.APIKeyServices)

	doc, err := h.tables.Accounts.Get(ctx, userID)
	require.NoError(t, err)
	stored := doc["apiKeys"].(map[string]any)
	assert.NotEqual(t, "fal-secret-123", stored["falai"])
	assert.NotContains(t, stored["falai"], "fal-secret")

	key, err := h.accounts.ProviderKey(ctx, userID, services.ServiceFalAI, "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fal-secret-123", key)

	// A sealed value copied to another account does not decrypt there.
	otherID := h.register(t, "bob@example.com")
	_, err = h.tables.Accounts.Update(ctx, otherID, store.Document{"apiKeys": map[string]any{"falai": stored["falai"]}})
	require.NoError(t, err)
	_, err = h.accounts.ProviderKey(ctx, otherID, services.ServiceFalAI, "")
	assert.Error(t, err)

	settings, err = h.accounts.UpdateSettings(ctx, userID, store.Document{"apiKeys": map[string]any{"replicate": ""}})
	require.NoError(t, err)
	assert.Equal(t, []string{"falai"}, settings.APIKeyServices)
}

func TestProviderKeyFallback(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.register(t, "alice@example.com")

	key, err := h.accounts.ProviderKey(ctx, userID, services.ServiceFalAI, "server-key")
	require.NoError(t, err)
	assert.Equal(t, "server-key", key)

	_, err = h.accounts.ProviderKey(ctx, userID, services.ServiceFalAI, "")
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, services.CodeMissingAPIKey, appErr.Code)
}
