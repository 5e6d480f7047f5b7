package printing

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"go.uber.org/zap"
)

// ArtifactStorage defines the interface for storing and retrieving exported images
type ArtifactStorage interface {
	// Store saves an artifact and returns its path and URL
	Store(ctx context.Context, req *StoreRequest) (*StoreResult, error)
	// Get retrieves an artifact by its path
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	// Delete removes an artifact
	Delete(ctx context.Context, path string) error
	// GetURL returns the accessible URL for a stored artifact
	GetURL(path string) string
}

// StoreRequest contains the parameters for storing an artifact
type StoreRequest struct {
	// TenantID for multi-tenant isolation
	TenantID uuid.UUID
	// JobID is the export job identifier
	JobID uuid.UUID
	// Data is the encoded image
	Data []byte
}

// StoreResult contains the result of storing an artifact
type StoreResult struct {
	// Path is the storage path (relative to base)
	Path string
	// URL is the accessible URL for the artifact
	URL string
	// Size is the file size in bytes
	Size int64
	// ContentType is the sniffed MIME type of the data
	ContentType string
}

// ValidateStoreRequest checks a store request and returns the file extension
// and MIME type of its data. Only image payloads are accepted.
func ValidateStoreRequest(req *StoreRequest) (ext, contentType string, err error) {
	if req == nil {
		return "", "", NewRenderError(ErrCodeStorageFailed, "store request is nil", nil)
	}
	if req.TenantID == uuid.Nil {
		return "", "", NewRenderError(ErrCodeStorageFailed, "tenant ID is required", nil)
	}
	if req.JobID == uuid.Nil {
		return "", "", NewRenderError(ErrCodeStorageFailed, "job ID is required", nil)
	}
	if len(req.Data) == 0 {
		return "", "", NewRenderError(ErrCodeStorageFailed, "artifact data is empty", nil)
	}

	kind, err := filetype.Match(req.Data)
	if err != nil || kind == filetype.Unknown || !filetype.IsImage(req.Data) {
		return "", "", NewRenderError(ErrCodeStorageFailed, "artifact data is not a supported image", err)
	}
	return kind.Extension, kind.MIME.Value, nil
}

// ArtifactKey builds the relative storage key {tenant_id}/{year}/{month}/{job_id}.{ext}
func ArtifactKey(tenantID, jobID uuid.UUID, ext string, at time.Time) string {
	return filepath.ToSlash(filepath.Join(
		tenantID.String(),
		fmt.Sprintf("%d", at.Year()),
		fmt.Sprintf("%02d", at.Month()),
		jobID.String()+"."+ext,
	))
}

// FileSystemStorageConfig contains configuration for file system storage
type FileSystemStorageConfig struct {
	// BasePath is the root directory for artifact storage
	// Default: /data/exports
	BasePath string
	// BaseURL is the URL prefix for accessing artifacts
	// Example: https://shop.example.com/api/v1/artifacts
	BaseURL string
	// Logger for operations
	Logger *zap.Logger
}

// FileSystemStorage stores artifacts on the local file system
type FileSystemStorage struct {
	config *FileSystemStorageConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewFileSystemStorage creates a new file system based artifact storage
func NewFileSystemStorage(config *FileSystemStorageConfig) (*FileSystemStorage, error) {
	if config == nil {
		config = &FileSystemStorageConfig{}
	}

	// Set defaults
	if config.BasePath == "" {
		config.BasePath = "/data/exports"
	}
	if config.BaseURL == "" {
		config.BaseURL = "/artifacts"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	// Ensure base directory exists
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed,
			fmt.Sprintf("failed to create storage directory: %s", config.BasePath), err)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FileSystemStorage{
		config: config,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Store saves an artifact to the file system
// Path structure: {base}/{tenant_id}/{year}/{month}/{job_id}.png
func (s *FileSystemStorage) Store(ctx context.Context, req *StoreRequest) (*StoreResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed, "operation cancelled", err)
	}

	ext, contentType, err := ValidateStoreRequest(req)
	if err != nil {
		return nil, err
	}

	relativePath := ArtifactKey(req.TenantID, req.JobID, ext, s.now())
	filePath := filepath.Join(s.config.BasePath, filepath.FromSlash(relativePath))

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed, "failed to create directory", err)
	}

	// Write to a temp file first so readers never see a partial image
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, req.Data, 0644); err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed, "failed to write artifact file", err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		_ = os.Remove(tmp)
		return nil, NewRenderError(ErrCodeStorageFailed, "failed to move artifact file", err)
	}

	url := s.GetURL(relativePath)

	s.logger.Info("artifact stored",
		zap.String("path", filePath),
		zap.Int("size", len(req.Data)),
		zap.String("url", url))

	return &StoreResult{
		Path:        relativePath,
		URL:         url,
		Size:        int64(len(req.Data)),
		ContentType: contentType,
	}, nil
}

// Get retrieves an artifact by its relative path
func (s *FileSystemStorage) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed, "operation cancelled", err)
	}

	fullPath, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewRenderError(ErrCodeArtifactNotFound, "artifact not found", err)
		}
		return nil, NewRenderError(ErrCodeStorageFailed, "failed to open artifact file", err)
	}

	return file, nil
}

// Delete removes an artifact
func (s *FileSystemStorage) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return NewRenderError(ErrCodeStorageFailed, "operation cancelled", err)
	}

	fullPath, err := s.resolve(path)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil // Already deleted, not an error
		}
		return NewRenderError(ErrCodeStorageFailed, "failed to delete artifact file", err)
	}

	s.logger.Info("artifact deleted", zap.String("path", path))
	return nil
}

// CleanupOlderThan removes image files older than the specified duration
func (s *FileSystemStorage) CleanupOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := s.now().Add(-age)
	deletedCount := 0

	err := filepath.Walk(s.config.BasePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if info.IsDir() || filepath.Ext(path) != ".png" {
			return nil
		}

		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				deletedCount++
				s.logger.Debug("deleted old artifact", zap.String("path", path))
			}
		}

		return nil
	})

	if err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		return deletedCount, NewRenderError(ErrCodeStorageFailed, "cleanup walk failed", err)
	}

	s.logger.Info("cleanup completed",
		zap.Int("deleted", deletedCount),
		zap.Duration("age", age))

	return deletedCount, nil
}

// RunCleanup sweeps artifacts older than age every interval until ctx is
// done
func (s *FileSystemStorage) RunCleanup(ctx context.Context, interval, age time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.CleanupOlderThan(ctx, age); err != nil {
			s.logger.Warn("artifact cleanup failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// GetURL returns the accessible URL for a stored artifact
func (s *FileSystemStorage) GetURL(path string) string {
	cleanPath := filepath.ToSlash(filepath.Clean(path))
	return fmt.Sprintf("%s/%s", s.config.BaseURL, cleanPath)
}

// resolve maps a relative artifact path to an absolute path under BasePath,
// rejecting anything that would escape it
func (s *FileSystemStorage) resolve(path string) (string, error) {
	cleanPath := filepath.Clean(path)
	if path == "" || filepath.IsAbs(cleanPath) || containsDotDot(path) {
		s.logger.Warn("blocked potentially malicious path",
			zap.String("path", path),
			zap.String("cleanPath", cleanPath))
		return "", NewRenderError(ErrCodeStorageFailed, "invalid path", nil)
	}

	fullPath := filepath.Join(s.config.BasePath, cleanPath)

	absBase, err := filepath.Abs(s.config.BasePath)
	if err != nil {
		return "", NewRenderError(ErrCodeStorageFailed, "failed to resolve base path", err)
	}
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", NewRenderError(ErrCodeStorageFailed, "failed to resolve file path", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		s.logger.Warn("path escape attempt blocked",
			zap.String("path", path),
			zap.String("absPath", absPath),
			zap.String("absBase", absBase))
		return "", NewRenderError(ErrCodeStorageFailed, "invalid path", nil)
	}
	return fullPath, nil
}

// containsDotDot checks if a path contains ".." components
func containsDotDot(path string) bool {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '\\' || r == filepath.Separator
	})
	return slices.Contains(parts, "..")
}

// Ensure FileSystemStorage implements ArtifactStorage
var _ ArtifactStorage = (*FileSystemStorage)(nil)
