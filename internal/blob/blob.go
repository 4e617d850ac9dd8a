// Package blob abstracts the object storage holding uploaded and generated images.
package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("blob storage is not configured")

type Store interface {
	// PresignUpload returns a short-lived URL the client can PUT the object to.
	PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	// PublicURL is where the object can be read once uploaded.
	PublicURL(key string) string
}

// Disabled is used when no provider is configured. Every write fails with
// ErrNotConfigured.
type Disabled struct{}

func (Disabled) PresignUpload(context.Context, string, string, time.Duration) (string, error) {
	return "", ErrNotConfigured
}

func (Disabled) Put(context.Context, string, io.Reader, int64, string) error {
	return ErrNotConfigured
}

func (Disabled) Delete(context.Context, string) error {
	return ErrNotConfigured
}

func (Disabled) PublicURL(key string) string {
	return "/" + strings.TrimLeft(key, "/")
}

// ExtensionFor maps an image content type to a file extension.
func ExtensionFor(contentType, filename string) string {
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	}
	if i := strings.LastIndex(filename, "."); i >= 0 && i < len(filename)-1 {
		return strings.ToLower(filename[i+1:])
	}
	return "bin"
}
