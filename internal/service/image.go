package service

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/msomdec/people-registry/internal/domain"
)

const maxOriginalNameLength = 100

// ImageService stores person photos under generated unique names.
type ImageService struct {
	files domain.FileStore
}

// NewImageService creates a new ImageService.
func NewImageService(files domain.FileStore) *ImageService {
	return &ImageService{files: files}
}

// Store writes the upload under "<uuid>_<original name>" and returns that
// name. A nil upload stores nothing and returns "". Write failures are
// returned as-is to the caller.
func (s *ImageService) Store(ctx context.Context, upload *domain.ImageUpload) (string, error) {
	if upload == nil || upload.Content == nil {
		return "", nil
	}

	key := uuid.NewString() + "_" + cleanFilename(upload.Filename)
	if err := s.files.Save(ctx, key, upload.Content); err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	return key, nil
}

// Get returns the stored bytes for key.
func (s *ImageService) Get(ctx context.Context, key string) ([]byte, error) {
	return s.files.Get(ctx, key)
}

// Remove deletes a stored image. Failures are logged, not returned: the
// record that referenced the file is already gone or repointed.
func (s *ImageService) Remove(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.files.Delete(ctx, key); err != nil {
		slog.Warn("remove image", "key", key, "error", err)
	}
}

// cleanFilename keeps the last path element of a client-supplied name,
// whichever separator the client used.
func cleanFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == "/" || name == ".." {
		return "image"
	}
	if utf8.RuneCountInString(name) > maxOriginalNameLength {
		runes := []rune(name)
		name = string(runes[len(runes)-maxOriginalNameLength:])
	}
	return name
}
