// Package storage persists generated images to the local filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/atelierhq/atelier-api/internal/domain"
)

// ErrEmptyDir indicates the saver was configured without an output directory.
var ErrEmptyDir = errors.New("output directory cannot be empty")

// extensions maps image MIME types to file extensions. Unknown types
// fall back to .bin so no image is silently dropped.
var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// FileSaver writes images into a flat output directory, one file per
// image, named by the image's identifier.
type FileSaver struct {
	dir    string
	logger *slog.Logger
}

// NewFileSaver creates the output directory if needed and returns a
// saver writing into it.
func NewFileSaver(dir string, logger *slog.Logger) (*FileSaver, error) {
	if dir == "" {
		return nil, ErrEmptyDir
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &FileSaver{dir: dir, logger: logger}, nil
}

// Save writes the image to disk. Saving the same image twice overwrites
// the previous file, so repeated calls are safe.
func (s *FileSaver) Save(ctx context.Context, img *domain.Image) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if img == nil {
		return errors.New("image cannot be nil")
	}
	if len(img.Data) == 0 {
		return domain.ErrEmptyImageData
	}

	path := filepath.Join(s.dir, img.ID.String()+extensionFor(img.MIMEType))
	if err := os.WriteFile(path, img.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write image file: %w", err)
	}

	s.logger.Debug("image saved", "path", path, "bytes", len(img.Data))
	return nil
}

func extensionFor(mimeType string) string {
	if ext, ok := extensions[mimeType]; ok {
		return ext
	}
	return ".bin"
}
