package domain

import (
	"context"
	"io"
)

// ImageUpload is an optional file submitted with a person form.
type ImageUpload struct {
	Filename string // Original client filename
	Content  io.Reader
}

// FileStore abstracts raw image byte storage. Keys are generated
// filenames; implementations must reject keys that escape their root.
type FileStore interface {
	Save(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
