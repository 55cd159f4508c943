// Package storage persists uploaded artifacts (mission proofs, profile
// pictures) and hands back durable public URLs.
package storage

import (
	"context"
	"errors"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Store writes artifacts under a key prefix and returns their public URL.
// Delete must ignore URLs the store did not produce.
type Store interface {
	Put(ctx context.Context, prefix string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}

var ErrEmptyArtifact = errors.New("artifact is empty")

var extensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/jpg":       ".jpg",
	"image/png":       ".png",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/x-msvideo": ".avi",
	"video/avi":       ".avi",
}

// objectKey builds "<prefix>/<uuid><ext>".
func objectKey(prefix, contentType string) string {
	ext, ok := extensions[strings.ToLower(contentType)]
	if !ok {
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	prefix = strings.Trim(path.Clean("/"+prefix), "/")
	name := uuid.NewString() + ext
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
