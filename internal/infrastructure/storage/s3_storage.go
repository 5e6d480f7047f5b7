// Package storage provides object storage backends for exported artifacts.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	infraconfig "github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/printing"
	"go.uber.org/zap"
)

// Ensure S3ArtifactStorage implements ArtifactStorage
var _ printing.ArtifactStorage = (*S3ArtifactStorage)(nil)

// S3ArtifactStorage stores exported images in an S3 bucket.
// It is compatible with any S3-compatible storage (AWS S3, RustFS, MinIO, etc.)
type S3ArtifactStorage struct {
	client            *s3.Client
	presignClient     *s3.PresignClient
	bucket            string
	presignExpiration time.Duration
	publicBaseURL     string
	logger            *zap.Logger
	now               func() time.Time
}

// S3ArtifactStorageOption is a functional option for configuring S3ArtifactStorage
type S3ArtifactStorageOption func(*S3ArtifactStorage)

// WithLogger sets a custom logger for S3ArtifactStorage
func WithLogger(logger *zap.Logger) S3ArtifactStorageOption {
	return func(s *S3ArtifactStorage) {
		s.logger = logger
	}
}

// WithPresignExpiration sets a custom presign expiration duration
func WithPresignExpiration(d time.Duration) S3ArtifactStorageOption {
	return func(s *S3ArtifactStorage) {
		s.presignExpiration = d
	}
}

// WithPublicBaseURL serves artifact URLs from a public prefix (a CDN or a
// public-read bucket) instead of presigned links
func WithPublicBaseURL(base string) S3ArtifactStorageOption {
	return func(s *S3ArtifactStorage) {
		s.publicBaseURL = strings.TrimRight(base, "/")
	}
}

// NewS3ArtifactStorage creates a new S3ArtifactStorage from configuration.
// It supports any S3-compatible storage backend (AWS S3, RustFS, MinIO, etc.)
func NewS3ArtifactStorage(cfg *infraconfig.StorageConfig, opts ...S3ArtifactStorageOption) (*S3ArtifactStorage, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}

	// Validate required configuration
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	endpoint, err := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"", // session token (not used for static credentials)
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.BaseEndpoint = aws.String(endpoint)
	})

	storage := &S3ArtifactStorage{
		client:            client,
		presignClient:     s3.NewPresignClient(client),
		bucket:            cfg.Bucket,
		presignExpiration: cfg.PresignExpiration,
		logger:            zap.NewNop(),
		now:               time.Now,
	}

	for _, opt := range opts {
		opt(storage)
	}

	if storage.presignExpiration <= 0 {
		storage.presignExpiration = 15 * time.Minute
	}

	return storage, nil
}

// normalizeEndpoint defaults and validates the endpoint URL
func normalizeEndpoint(endpoint string, useSSL bool) (string, error) {
	if endpoint == "" {
		endpoint = "http://localhost:9000" // RustFS default
	}

	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if useSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid storage endpoint: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid storage endpoint: missing host in %q", endpoint)
	}
	return endpoint, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
// Call this during application startup to ensure the bucket is ready.
func (s *S3ArtifactStorage) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating artifact bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		// Ignore "BucketAlreadyOwnedByYou" error (race condition)
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	s.logger.Info("Artifact bucket created successfully", zap.String("bucket", s.bucket))
	return nil
}

// Store uploads an artifact under {tenant_id}/{year}/{month}/{job_id}.{ext}
func (s *S3ArtifactStorage) Store(ctx context.Context, req *printing.StoreRequest) (*printing.StoreResult, error) {
	ext, contentType, err := printing.ValidateStoreRequest(req)
	if err != nil {
		return nil, err
	}

	key := printing.ArtifactKey(req.TenantID, req.JobID, ext, s.now())

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(req.Data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(req.Data))),
		Metadata: map[string]string{
			"tenant-id": req.TenantID.String(),
			"job-id":    req.JobID.String(),
		},
	})
	if err != nil {
		return nil, printing.NewRenderError(printing.ErrCodeStorageFailed, "failed to upload artifact", err)
	}

	artifactURL := s.GetURL(key)

	s.logger.Info("artifact uploaded",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("size", len(req.Data)))

	return &printing.StoreResult{
		Path:        key,
		URL:         artifactURL,
		Size:        int64(len(req.Data)),
		ContentType: contentType,
	}, nil
}

// Get streams an artifact from the bucket
func (s *S3ArtifactStorage) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := validateKey(path); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, printing.NewRenderError(printing.ErrCodeArtifactNotFound, "artifact not found", err)
		}
		return nil, printing.NewRenderError(printing.ErrCodeStorageFailed, "failed to download artifact", err)
	}
	return out.Body, nil
}

// Delete removes an artifact. Missing objects are not an error.
func (s *S3ArtifactStorage) Delete(ctx context.Context, path string) error {
	if err := validateKey(path); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil && !isNotFound(err) {
		return printing.NewRenderError(printing.ErrCodeStorageFailed, "failed to delete artifact", err)
	}

	s.logger.Info("artifact deleted", zap.String("bucket", s.bucket), zap.String("key", path))
	return nil
}

// GetURL returns the public URL when configured, otherwise a presigned GET URL.
// Presigning is computed locally and needs no network round trip.
func (s *S3ArtifactStorage) GetURL(path string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + strings.TrimLeft(path, "/")
	}

	presigned, _, err := s.GenerateDownloadURL(context.Background(), path, 0)
	if err != nil {
		s.logger.Warn("failed to presign artifact URL", zap.String("key", path), zap.Error(err))
		return ""
	}
	return presigned
}

// GenerateDownloadURL generates a presigned URL for downloading an artifact.
// A non-positive expiresIn uses the configured presign expiration.
func (s *S3ArtifactStorage) GenerateDownloadURL(
	ctx context.Context,
	storageKey string,
	expiresIn time.Duration,
) (string, time.Time, error) {
	if storageKey == "" {
		return "", time.Time{}, errors.New("storage key is required")
	}

	if expiresIn <= 0 {
		expiresIn = s.presignExpiration
	}

	presignReq, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storageKey),
	}, s3.WithPresignExpires(expiresIn))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate download URL: %w", err)
	}

	return presignReq.URL, s.now().Add(expiresIn), nil
}

// ObjectExists checks if an artifact exists in the bucket.
func (s *S3ArtifactStorage) ObjectExists(ctx context.Context, storageKey string) (bool, error) {
	if storageKey == "" {
		return false, errors.New("storage key is required")
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storageKey),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}

	return true, nil
}

// GetBucket returns the bucket name
func (s *S3ArtifactStorage) GetBucket() string {
	return s.bucket
}

// isNotFound reports whether err is an S3 "missing key" response.
// Some S3-compatible services only expose it in the error text.
func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NotFound") || strings.Contains(msg, "NoSuchKey")
}

// validateKey rejects keys that could not have been produced by Store
func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return printing.NewRenderError(printing.ErrCodeStorageFailed, "invalid path", nil)
	}
	return nil
}
