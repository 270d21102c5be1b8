// Package storage keeps uploaded proof files on local disk behind an
// opaque reference. Size and content-type limits are enforced here, at the
// boundary, before anything touches the database.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"ms-backoffice/internal/utils"
)

// MaxUploadBytes caps proof uploads at 5MB.
const MaxUploadBytes = 5 << 20

var (
	ErrFileTooLarge    = errors.New("proof file exceeds the 5MB limit")
	ErrUnsupportedType = errors.New("proof file must be a JPEG, PNG or PDF")
	ErrEmptyFile       = errors.New("proof file is empty")
)

var extByContentType = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"application/pdf": ".pdf",
}

// DiskStore writes proof files under BaseDir/<orderID>/.
type DiskStore struct {
	BaseDir string
}

func NewDiskStore(baseDir string) (*DiskStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create proof storage directory: %w", err)
	}
	return &DiskStore{BaseDir: baseDir}, nil
}

// Store validates and persists one upload, returning the opaque reference
// recorded on the proof row.
func (s *DiskStore) Store(ctx context.Context, orderID, contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyFile
	}
	if len(data) > MaxUploadBytes {
		return "", ErrFileTooLarge
	}
	ext, ok := extByContentType[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}

	dir := filepath.Join(s.BaseDir, orderID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create order proof directory: %w", err)
	}

	name := utils.GenerateProofFileName(uuid.NewString(), ext)
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write proof file: %w", err)
	}

	return filepath.Join(orderID, name), nil
}

// Remove deletes a stored proof file. Used when the submission that wrote it
// rolls back; a file already gone is not an error.
func (s *DiskStore) Remove(ctx context.Context, ref string) error {
	if err := os.Remove(filepath.Join(s.BaseDir, ref)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove proof file: %w", err)
	}
	return nil
}

// Path resolves a stored reference back to an absolute file path.
func (s *DiskStore) Path(ref string) string {
	return filepath.Join(s.BaseDir, ref)
}
