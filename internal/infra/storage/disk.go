// Package storage keeps attachment contents on local disk.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/boddenberg/ifta-reports-go/internal/domain"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("storage")

// DiskStorage implements port.BlobStore on a local directory.
type DiskStorage struct {
	logger  *zap.Logger
	baseDir string
}

// NewDiskStorage creates the base directory if needed.
func NewDiskStorage(logger *zap.Logger, baseDir string) (*DiskStorage, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve attachments dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create attachments dir: %w", err)
	}
	return &DiskStorage{logger: logger, baseDir: abs}, nil
}

// Save writes content under key and returns the number of bytes written.
// The file appears atomically: readers never see a partial write.
func (s *DiskStorage) Save(ctx context.Context, key string, content io.Reader) (int64, error) {
	_, span := tracer.Start(ctx, "Storage.Save")
	defer span.End()

	path, err := s.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create attachment dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	n, copyErr := io.Copy(tmp, content)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("write attachment: %w", errors.Join(copyErr, closeErr))
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("commit attachment: %w", err)
	}

	s.logger.Debug("storage: saved", zap.String("key", key), zap.Int64("bytes", n))
	return n, nil
}

// Open returns the content stored under key.
func (s *DiskStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	_, span := tracer.Start(ctx, "Storage.Open")
	defer span.End()

	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &domain.ErrNotFound{Resource: "attachment content", ID: key}
	}
	if err != nil {
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	return f, nil
}

// Delete removes key. A missing key is not an error.
func (s *DiskStorage) Delete(ctx context.Context, key string) error {
	_, span := tracer.Start(ctx, "Storage.Delete")
	defer span.End()

	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete attachment: %w", err)
	}
	return nil
}

// resolve maps key to a path inside baseDir and rejects anything that
// would escape it.
func (s *DiskStorage) resolve(key string) (string, error) {
	if key == "" || filepath.IsAbs(key) {
		return "", &domain.ErrValidation{Field: "key", Message: "invalid storage key"}
	}
	path := filepath.Join(s.baseDir, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.baseDir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &domain.ErrValidation{Field: "key", Message: "invalid storage key"}
	}
	return path, nil
}
