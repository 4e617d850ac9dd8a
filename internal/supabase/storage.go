package supabase

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	storage "github.com/supabase-community/storage-go"
)

// StorageClient implements blob.Store on a Supabase Storage bucket.
type StorageClient struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

// PresignUpload creates a signed upload URL. Supabase fixes the lifetime of
// signed upload URLs server-side, so expiry is advisory here.
func (s *StorageClient) PresignUpload(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	resp, err := s.client.CreateSignedUploadUrl(s.bucket, key)
	if err != nil {
		return "", fmt.Errorf("failed to create signed upload url: %w", err)
	}
	if resp.Url == "" {
		return "", fmt.Errorf("failed to create signed upload url: empty response")
	}
	if strings.HasPrefix(resp.Url, "http://") || strings.HasPrefix(resp.Url, "https://") {
		return resp.Url, nil
	}
	return s.baseURL + "/storage/v1/" + strings.TrimLeft(resp.Url, "/"), nil
}

func (s *StorageClient) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	upsert := true
	_, err := s.client.UploadFile(s.bucket, key, r, storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	return nil
}

func (s *StorageClient) PublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, key)
}

func (s *StorageClient) Delete(_ context.Context, key string) error {
	if _, err := s.client.RemoveFile(s.bucket, []string{key}); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
