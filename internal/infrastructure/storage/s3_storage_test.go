package storage

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/printing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testS3Config() *config.StorageConfig {
	return &config.StorageConfig{
		Type:              TypeS3,
		Bucket:            "test-bucket",
		AccessKey:         "test-key",
		SecretKey:         "test-secret",
		Region:            "us-east-1",
		Endpoint:          "http://localhost:9000",
		UsePathStyle:      true,
		PresignExpiration: 15 * time.Minute,
	}
}

func TestNewS3ArtifactStorage_Validation(t *testing.T) {
	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3ArtifactStorage(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		cfg := testS3Config()
		cfg.Bucket = ""
		_, err := NewS3ArtifactStorage(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("missing access key returns error", func(t *testing.T) {
		cfg := testS3Config()
		cfg.AccessKey = ""
		_, err := NewS3ArtifactStorage(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access key is required")
	})

	t.Run("missing secret key returns error", func(t *testing.T) {
		cfg := testS3Config()
		cfg.SecretKey = ""
		_, err := NewS3ArtifactStorage(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret key is required")
	})

	t.Run("valid config creates storage", func(t *testing.T) {
		storage, err := NewS3ArtifactStorage(testS3Config())
		require.NoError(t, err)
		assert.Equal(t, "test-bucket", storage.GetBucket())
		assert.Equal(t, 15*time.Minute, storage.presignExpiration)
	})

	t.Run("default presign expiration is 15 minutes", func(t *testing.T) {
		cfg := testS3Config()
		cfg.PresignExpiration = 0
		storage, err := NewS3ArtifactStorage(cfg)
		require.NoError(t, err)
		assert.Equal(t, 15*time.Minute, storage.presignExpiration)
	})
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		useSSL   bool
		want     string
	}{
		{"default endpoint is localhost", "", false, "http://localhost:9000"},
		{"adds http prefix when missing and no SSL", "minio:9000", false, "http://minio:9000"},
		{"adds https prefix when missing and SSL enabled", "s3.example.com", true, "https://s3.example.com"},
		{"keeps explicit scheme", "https://s3.example.com", false, "https://s3.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeEndpoint(tt.endpoint, tt.useSSL)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := normalizeEndpoint("http://", false)
	assert.Error(t, err)
}

func TestS3ArtifactStorageOptions(t *testing.T) {
	t.Run("WithLogger sets custom logger", func(t *testing.T) {
		logger := zaptest.NewLogger(t)
		storage, err := NewS3ArtifactStorage(testS3Config(), WithLogger(logger))
		require.NoError(t, err)
		assert.Same(t, logger, storage.logger)
	})

	t.Run("WithPresignExpiration sets custom duration", func(t *testing.T) {
		storage, err := NewS3ArtifactStorage(testS3Config(), WithPresignExpiration(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, time.Hour, storage.presignExpiration)
	})

	t.Run("WithPublicBaseURL trims trailing slash", func(t *testing.T) {
		storage, err := NewS3ArtifactStorage(testS3Config(), WithPublicBaseURL("https://cdn.example.com/exports/"))
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/exports/t/2024/05/j.png", storage.GetURL("t/2024/05/j.png"))
	})
}

func TestS3ArtifactStorage_GenerateDownloadURL(t *testing.T) {
	storage, err := NewS3ArtifactStorage(testS3Config())
	require.NoError(t, err)

	t.Run("empty storage key returns error", func(t *testing.T) {
		url, _, err := storage.GenerateDownloadURL(context.Background(), "", time.Minute)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage key is required")
		assert.Empty(t, url)
	})

	t.Run("generates valid presigned URL", func(t *testing.T) {
		url, expiresAt, err := storage.GenerateDownloadURL(context.Background(), "tenant/2024/05/job.png", 0)
		require.NoError(t, err)
		assert.Contains(t, url, "localhost:9000")
		assert.Contains(t, url, "test-bucket")
		assert.True(t, strings.Contains(url, "tenant/2024/05/job.png") || strings.Contains(url, "tenant%2F2024%2F05%2Fjob.png"))
		assert.Contains(t, url, "X-Amz-Signature")
		assert.True(t, expiresAt.After(time.Now()))
		assert.True(t, expiresAt.Before(time.Now().Add(16*time.Minute)))
	})

	t.Run("GetURL presigns by default", func(t *testing.T) {
		url := storage.GetURL("tenant/2024/05/job.png")
		assert.Contains(t, url, "X-Amz-Expires=900")
	})
}

func TestS3ArtifactStorage_RejectsBadInput(t *testing.T) {
	storage, err := NewS3ArtifactStorage(testS3Config())
	require.NoError(t, err)
	ctx := context.Background()

	// Validation happens before any request reaches the endpoint
	_, err = storage.Store(ctx, &printing.StoreRequest{TenantID: uuid.New(), JobID: uuid.New(), Data: []byte("plain text")})
	var renderErr *printing.RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, printing.ErrCodeStorageFailed, renderErr.Code)

	for _, key := range []string{"", "/abs/key.png", "a/../b.png"} {
		_, err = storage.Get(ctx, key)
		assert.Error(t, err, key)
		assert.Error(t, storage.Delete(ctx, key), key)
	}
}

func TestNewArtifactStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("local", func(t *testing.T) {
		cfg := &config.StorageConfig{Type: TypeLocal, LocalPath: t.TempDir(), BaseURL: "/files"}
		artifacts, err := NewArtifactStorage(ctx, cfg, nil)
		require.NoError(t, err)
		require.IsType(t, &printing.FileSystemStorage{}, artifacts)

		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 2, 2))))
		result, err := artifacts.Store(ctx, &printing.StoreRequest{TenantID: uuid.New(), JobID: uuid.New(), Data: buf.Bytes()})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(result.URL, "/files/"))
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := NewArtifactStorage(ctx, &config.StorageConfig{Type: "ftp"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported storage type")
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := NewArtifactStorage(ctx, nil, nil)
		assert.Error(t, err)
	})

	t.Run("s3 with bad config", func(t *testing.T) {
		_, err := NewArtifactStorage(ctx, &config.StorageConfig{Type: TypeS3}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})
}
