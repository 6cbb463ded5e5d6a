// Package photostore keeps student and register photos in object storage.
package photostore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Backend names accepted in configuration.
const (
	BackendNone       = "none"
	BackendCloudinary = "cloudinary"
	BackendMinIO      = "minio"
)

// MaxPhotoBytes is the upload ceiling.
const MaxPhotoBytes = 10 * 1024 * 1024

var (
	ErrNotConfigured   = errors.New("photo storage is not configured")
	ErrUnsupportedType = errors.New("photo must be a JPEG, PNG or WebP image")
	ErrTooLarge        = errors.New("photo exceeds the 10MB limit")
)

// AllowedTypes maps accepted content types to file extensions.
var AllowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Store puts an image under folder and returns its public URL.
type Store interface {
	Put(ctx context.Context, folder string, data []byte, contentType string) (string, error)
}

// Check validates size and content type. An empty contentType is sniffed from the data.
func Check(data []byte, contentType string) (string, string, error) {
	if len(data) == 0 {
		return "", "", ErrUnsupportedType
	}
	if len(data) > MaxPhotoBytes {
		return "", "", ErrTooLarge
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	ext, ok := AllowedTypes[contentType]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	return contentType, ext, nil
}

// objectName builds a unique name like "registers/20240105-1a2b3c4d.jpg".
func objectName(folder, ext string) string {
	return fmt.Sprintf("%s/%s-%s%s", folder, time.Now().UTC().Format("20060102"), uuid.NewString()[:8], ext)
}
