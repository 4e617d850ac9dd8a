package blob_test

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lora-studio-backend/internal/blob"
)

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, "jpg", blob.ExtensionFor("image/jpeg", "x.jpeg"))
	assert.Equal(t, "jpg", blob.ExtensionFor("image/jpg", ""))
	assert.Equal(t, "png", blob.ExtensionFor("IMAGE/PNG", ""))
	assert.Equal(t, "webp", blob.ExtensionFor("image/webp", ""))
	assert.Equal(t, "gif", blob.ExtensionFor("image/gif", "anim.GIF"))
	assert.Equal(t, "bin", blob.ExtensionFor("", "noext"))
}

func TestDisabledStore(t *testing.T) {
	var store blob.Store = blob.Disabled{}
	ctx := context.Background()

	_, err := store.PresignUpload(ctx, "k", "image/png", time.Minute)
	assert.ErrorIs(t, err, blob.ErrNotConfigured)
	assert.ErrorIs(t, store.Put(ctx, "k", strings.NewReader("x"), 1, "image/png"), blob.ErrNotConfigured)
	assert.ErrorIs(t, store.Delete(ctx, "k"), blob.ErrNotConfigured)
	assert.Equal(t, "/u1/avatars/a.png", store.PublicURL("u1/avatars/a.png"))
}

func TestMemoryStore(t *testing.T) {
	store := blob.NewMemoryStore("http://localhost:8080/files/")
	ctx := context.Background()

	uploadURL, err := store.PresignUpload(ctx, "u1/generated/a b.png", "image/png", 5*time.Minute)
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(uploadURL, "http://localhost:8080/files/u1/generated/a%20b.png?"))
	assert.Contains(t, uploadURL, "contentType=image%2Fpng")

	assert.NoError(t, store.Put(ctx, "u1/generated/a.png", strings.NewReader("png-bytes"), 9, "image/png"))
	obj, ok := store.Get("u1/generated/a.png")
	assert.True(t, ok)
	assert.Equal(t, "png-bytes", string(obj.Data))
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, []string{"u1/generated/a.png"}, store.Keys())

	assert.NoError(t, store.Delete(ctx, "u1/generated/a.png"))
	assert.Empty(t, store.Keys())
}

func TestMemoryStoreSignsUploads(t *testing.T) {
	store := blob.NewMemoryStore("http://localhost:8080/files")
	uploadURL, err := store.PresignUpload(context.Background(), "u1/avatars/a.png", "image/png", time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(uploadURL)
	require.NoError(t, err)
	expires, signature := u.Query().Get("expires"), u.Query().Get("signature")
	require.NotEmpty(t, signature)

	now := time.Now()
	assert.True(t, store.VerifyUpload("u1/avatars/a.png", expires, signature, now))
	assert.False(t, store.VerifyUpload("u2/avatars/a.png", expires, signature, now))
	assert.False(t, store.VerifyUpload("u1/avatars/a.png", expires, "", now))
	assert.False(t, store.VerifyUpload("u1/avatars/a.png", "2999-01-01T00:00:00Z", signature, now))
	assert.False(t, store.VerifyUpload("u1/avatars/a.png", expires, signature, now.Add(2*time.Minute)))
}
