package export

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image/png"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/export"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/warranty"
	"github.com/storefront/backend/internal/infrastructure/cache"
	infra "github.com/storefront/backend/internal/infrastructure/printing"
	"github.com/storefront/backend/internal/infrastructure/raster"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

const (
	defaultSelector     = "body"
	defaultMaxHTMLBytes = 1 << 20
	defaultCacheTTL     = 24 * time.Hour
	defaultRenderBudget = time.Minute

	// previewLabel is the artifact_type profiling label of previews
	previewLabel = "PREVIEW"

	// Error codes surfaced by the service
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeRenderFailed   = "RENDER_FAILED"
	ErrCodeEncodeFailed   = "ENCODE_FAILED"
	ErrCodeStorageFailed  = "STORAGE_FAILED"
	ErrCodeArtifactAbsent = "ARTIFACT_NOT_AVAILABLE"
)

// WarrantyCardRenderer turns a warranty card into an HTML fragment
type WarrantyCardRenderer interface {
	RenderWarrantyCard(ctx context.Context, card *warranty.Card) (string, error)
}

// SurfaceExporter rasterizes, trims and encodes a surface
type SurfaceExporter interface {
	Export(ctx context.Context, surface raster.Surface, cfg *raster.Config) (*raster.ExportedImage, error)
}

// ArtifactResponse is an open handle on a stored PNG. The caller must close
// Reader.
type ArtifactResponse struct {
	Reader      io.ReadCloser
	ContentType string
	Size        int64
	FileName    string
}

// ExportService handles image export operations
type ExportService struct {
	jobRepo      export.ExportJobRepository
	cards        WarrantyCardRenderer
	loader       infra.SurfaceLoader
	engine       SurfaceExporter
	storage      infra.ArtifactStorage
	cache        cache.ArtifactCache
	cacheTTL     time.Duration
	publisher    shared.EventPublisher
	metrics      *telemetry.ExportMetrics
	defaults     export.RenderOptions
	maxHTMLBytes int
	renderBudget time.Duration
	renders      *semaphore.Weighted
	previews     singleflight.Group
	logger       *zap.Logger
}

// ExportServiceOption configures optional collaborators of the service
type ExportServiceOption func(*ExportService)

// WithArtifactCache enables the fingerprint cache
func WithArtifactCache(c cache.ArtifactCache, ttl time.Duration) ExportServiceOption {
	return func(s *ExportService) {
		s.cache = c
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithEventPublisher publishes job events after every save
func WithEventPublisher(p shared.EventPublisher) ExportServiceOption {
	return func(s *ExportService) {
		s.publisher = p
	}
}

// WithMetrics records export counters and histograms
func WithMetrics(m *telemetry.ExportMetrics) ExportServiceOption {
	return func(s *ExportService) {
		s.metrics = m
	}
}

// WithDefaultOptions replaces the render options used when a request
// leaves a field unset
func WithDefaultOptions(o export.RenderOptions) ExportServiceOption {
	return func(s *ExportService) {
		s.defaults = o
	}
}

// WithMaxHTMLBytes limits the size of submitted markup
func WithMaxHTMLBytes(n int) ExportServiceOption {
	return func(s *ExportService) {
		if n > 0 {
			s.maxHTMLBytes = n
		}
	}
}

// WithRenderTimeout bounds a shared preview render, which outlives the
// request that started it
func WithRenderTimeout(d time.Duration) ExportServiceOption {
	return func(s *ExportService) {
		if d > 0 {
			s.renderBudget = d
		}
	}
}

// WithMaxConcurrentRenders bounds the number of surfaces rendered at once
func WithMaxConcurrentRenders(n int) ExportServiceOption {
	return func(s *ExportService) {
		if n > 0 {
			s.renders = semaphore.NewWeighted(int64(n))
		}
	}
}

// NewExportService creates a new ExportService
func NewExportService(
	jobRepo export.ExportJobRepository,
	cards WarrantyCardRenderer,
	loader infra.SurfaceLoader,
	engine SurfaceExporter,
	storage infra.ArtifactStorage,
	logger *zap.Logger,
	opts ...ExportServiceOption,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ExportService{
		jobRepo:      jobRepo,
		cards:        cards,
		loader:       loader,
		engine:       engine,
		storage:      storage,
		cacheTTL:     defaultCacheTTL,
		defaults:     export.DefaultRenderOptions(),
		maxHTMLBytes: defaultMaxHTMLBytes,
		renderBudget: defaultRenderBudget,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// Export Operations
// =============================================================================

// ExportWarrantyCard renders a warranty card and exports it as a trimmed PNG
func (s *ExportService) ExportWarrantyCard(ctx context.Context, tenantID, userID uuid.UUID, req ExportWarrantyCardRequest) (*JobResponse, error) {
	purchaseDate, err := time.Parse(time.DateOnly, req.PurchaseDate)
	if err != nil {
		return nil, shared.NewDomainError(ErrCodeInvalidInput, "Purchase date must be formatted as YYYY-MM-DD")
	}

	card, err := warranty.NewCard(warranty.CardParams{
		StoreName:      req.StoreName,
		CardNumber:     req.CardNumber,
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
		ProductName:    req.ProductName,
		ProductSKU:     req.ProductSKU,
		SerialNumber:   req.SerialNumber,
		PurchaseDate:   purchaseDate,
		WarrantyMonths: req.WarrantyMonths,
		PurchasePrice:  req.PurchasePrice,
		Notes:          req.Notes,
	})
	if err != nil {
		return nil, err
	}

	html, err := s.cards.RenderWarrantyCard(ctx, card)
	if err != nil {
		return nil, fmt.Errorf("failed to render warranty card: %w", err)
	}

	job, err := export.NewExportJob(tenantID, export.ArtifactTypeWarrantyCard, card.CardNumber,
		infra.WarrantyCardSelector, s.resolveOptions(req.Options), userID)
	if err != nil {
		return nil, err
	}

	return s.run(ctx, job, html, "Warranty card "+card.CardNumber)
}

// ExportHTML exports caller-supplied markup as a trimmed PNG
func (s *ExportService) ExportHTML(ctx context.Context, tenantID, userID uuid.UUID, req ExportHTMLRequest) (*JobResponse, error) {
	if err := s.checkHTML(req.HTML); err != nil {
		return nil, err
	}

	job, err := export.NewExportJob(tenantID, export.ArtifactTypeHTMLSnippet, req.Reference,
		selectorOrDefault(req.Selector), s.resolveOptions(req.Options), userID)
	if err != nil {
		return nil, err
	}

	return s.run(ctx, job, req.HTML, req.Title)
}

// Preview renders markup and returns the PNG without creating a job
func (s *ExportService) Preview(ctx context.Context, req PreviewRequest) (*PreviewResponse, error) {
	if err := s.checkHTML(req.HTML); err != nil {
		return nil, err
	}
	opts := s.resolveOptions(req.Options)
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	selector := selectorOrDefault(req.Selector)
	fingerprint := Fingerprint(req.HTML, selector, opts)

	if data, ok := s.cacheGet(ctx, fingerprint); ok {
		if w, h, err := pngSize(data); err == nil {
			return &PreviewResponse{
				Data:        data,
				ContentType: raster.ContentTypePNG,
				Width:       w,
				Height:      h,
				FromCache:   true,
			}, nil
		}
	}

	// Identical previews in flight share one render. It is detached from the
	// caller so one caller leaving does not fail the others.
	ch := s.previews.DoChan(fingerprint, func() (interface{}, error) {
		renderCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.renderBudget)
		defer cancel()
		img, err := s.render(renderCtx, previewLabel, req.HTML, selector, req.Title, opts)
		if err != nil {
			return nil, err
		}
		s.cacheSet(renderCtx, fingerprint, img.Data)
		return img, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, mapExportError(raster.NewRenderError(raster.ErrCodeCancelled, "preview cancelled", ctx.Err()))
	}
	if res.Err != nil {
		return nil, mapExportError(res.Err)
	}
	img := res.Val.(*raster.ExportedImage)

	return &PreviewResponse{
		Data:         img.Data,
		ContentType:  img.ContentType,
		Width:        img.Width,
		Height:       img.Height,
		SourceWidth:  img.SourceWidth,
		SourceHeight: img.SourceHeight,
		Trimmed:      img.Trimmed,
	}, nil
}

// run drives a new job through rendering and storage
func (s *ExportService) run(ctx context.Context, job *export.ExportJob, html, title string) (*JobResponse, error) {
	start := time.Now()
	done := s.metrics.Started(ctx, string(job.ArtifactType))
	defer done()

	job.SetFingerprint(Fingerprint(html, job.Selector, job.Options))

	if err := s.jobRepo.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create export job: %w", err)
	}

	if err := job.StartRendering(); err != nil {
		return nil, err
	}
	if err := s.jobRepo.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to update export job: %w", err)
	}

	out, err := s.produce(ctx, job, html, title)
	if err != nil {
		mapped := mapExportError(err)
		s.fail(ctx, job, mapped, start)
		return nil, mapped
	}

	stored, err := s.storage.Store(ctx, &infra.StoreRequest{
		TenantID: job.TenantID,
		JobID:    job.ID,
		Data:     out.data,
	})
	if err != nil {
		mapped := shared.NewDomainError(ErrCodeStorageFailed, "Failed to store exported image")
		s.logger.Error("failed to store artifact",
			zap.String("jobId", job.ID.String()),
			zap.Error(err))
		s.fail(ctx, job, mapped, start)
		return nil, mapped
	}

	if err := job.Complete(export.Artifact{
		Path:      stored.Path,
		URL:       stored.URL,
		Width:     out.width,
		Height:    out.height,
		SizeBytes: stored.Size,
	}, out.fromCache); err != nil {
		return nil, err
	}
	if err := s.jobRepo.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to update export job: %w", err)
	}
	s.publish(ctx, job)

	s.metrics.Record(ctx, telemetry.ExportOutcome{
		ArtifactType: string(job.ArtifactType),
		Status:       string(job.Status),
		FromCache:    job.FromCache,
	}, time.Since(start), job.SizeBytes)

	s.logger.Info("export completed",
		zap.String("jobId", job.ID.String()),
		zap.String("reference", job.Reference),
		zap.Int("width", job.Width),
		zap.Int("height", job.Height),
		zap.Bool("fromCache", job.FromCache),
		zap.Duration("duration", time.Since(start)))

	return toJobResponse(job), nil
}

// fail marks the job as failed, persists it and records the outcome
func (s *ExportService) fail(ctx context.Context, job *export.ExportJob, cause error, start time.Time) {
	code := ""
	var domainErr *shared.DomainError
	if errors.As(cause, &domainErr) {
		code = domainErr.Code
	}

	// The job row must reach FAILED even when the request was cancelled
	saveCtx := context.WithoutCancel(ctx)
	_ = job.Fail(cause.Error())
	if err := s.jobRepo.Save(saveCtx, job); err != nil {
		s.logger.Error("failed to save failed export job",
			zap.String("jobId", job.ID.String()),
			zap.Error(err))
	}
	s.publish(saveCtx, job)

	s.metrics.Record(saveCtx, telemetry.ExportOutcome{
		ArtifactType: string(job.ArtifactType),
		Status:       string(job.Status),
		ErrorCode:    code,
	}, time.Since(start), 0)
}

type produced struct {
	data      []byte
	width     int
	height    int
	fromCache bool
}

// produce returns the PNG for a job from the cache, from an earlier job with
// the same fingerprint, or by rendering
func (s *ExportService) produce(ctx context.Context, job *export.ExportJob, html, title string) (*produced, error) {
	if data, ok := s.cacheGet(ctx, job.Fingerprint); ok {
		if w, h, err := pngSize(data); err == nil {
			return &produced{data: data, width: w, height: h, fromCache: true}, nil
		}
		s.logger.Warn("discarding unreadable cached artifact", zap.String("fingerprint", job.Fingerprint))
	}

	if out := s.reuse(ctx, job); out != nil {
		return out, nil
	}

	img, err := s.render(ctx, job.ArtifactType.String(), html, job.Selector, title, job.Options)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, job.Fingerprint, img.Data)

	return &produced{data: img.Data, width: img.Width, height: img.Height}, nil
}

// reuse copies the artifact of the latest completed job with the same
// fingerprint. Any failure falls back to rendering.
func (s *ExportService) reuse(ctx context.Context, job *export.ExportJob) *produced {
	prev, err := s.jobRepo.FindByFingerprint(ctx, job.TenantID, job.Fingerprint)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("fingerprint lookup failed", zap.Error(err))
		}
		return nil
	}
	if !prev.HasArtifact() {
		return nil
	}

	rc, err := s.storage.Get(ctx, prev.StoragePath)
	if err != nil {
		s.logger.Warn("stored artifact unavailable for reuse",
			zap.String("jobId", prev.ID.String()),
			zap.Error(err))
		return nil
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil || len(data) == 0 {
		return nil
	}
	s.cacheSet(ctx, job.Fingerprint, data)

	return &produced{data: data, width: prev.Width, height: prev.Height, fromCache: true}
}

// render loads the markup into the browser and runs the engine on it. kind
// labels the profile samples taken during the export.
func (s *ExportService) render(ctx context.Context, kind, html, selector, title string, opts export.RenderOptions) (*raster.ExportedImage, error) {
	if s.renders != nil {
		if err := s.renders.Acquire(ctx, 1); err != nil {
			return nil, raster.NewRenderError(raster.ErrCodeCancelled, "waiting for a render slot", err)
		}
		defer s.renders.Release(1)
	}

	surface, err := s.loader.Load(ctx, &infra.LoadRequest{
		HTML:     html,
		Selector: selector,
		Title:    title,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := surface.Close(); cerr != nil {
			s.logger.Debug("failed to close surface", zap.Error(cerr))
		}
	}()

	cfg := toRasterConfig(opts)
	var (
		img    *raster.ExportedImage
		rerr   error
		labels = map[string]string{
			telemetry.ProfilingLabelOperation:    "raster_export",
			telemetry.ProfilingLabelArtifactType: kind,
		}
	)
	telemetry.WithProfilingLabels(ctx, labels, func(ctx context.Context) {
		img, rerr = s.engine.Export(ctx, surface, &cfg)
	})
	return img, rerr
}

// =============================================================================
// Job Queries
// =============================================================================

// GetJob retrieves an export job by ID
func (s *ExportService) GetJob(ctx context.Context, tenantID, jobID uuid.UUID) (*JobResponse, error) {
	job, err := s.findJob(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	return toJobResponse(job), nil
}

// ListJobs retrieves a paginated list of export jobs
func (s *ExportService) ListJobs(ctx context.Context, tenantID uuid.UUID, req ListJobsRequest) (*shared.Paginated[JobResponse], error) {
	filter := export.ExportJobFilter{
		Filter: shared.Filter{
			Page:     req.Page,
			PageSize: req.PageSize,
			OrderBy:  req.OrderBy,
			OrderDir: req.OrderDir,
			Search:   req.Search,
		},
		Reference: strings.TrimSpace(req.Reference),
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = shared.DefaultFilter().PageSize
	}
	if req.Status != "" {
		status := export.JobStatus(strings.ToUpper(req.Status))
		if !status.IsValid() {
			return nil, shared.NewDomainError(ErrCodeInvalidInput, "Invalid status: "+req.Status)
		}
		filter.Status = &status
	}
	if req.ArtifactType != "" {
		artifactType := export.ArtifactType(strings.ToUpper(req.ArtifactType))
		if !artifactType.IsValid() {
			return nil, shared.NewDomainError(ErrCodeInvalidInput, "Invalid artifact type: "+req.ArtifactType)
		}
		filter.ArtifactType = &artifactType
	}

	jobs, err := s.jobRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list export jobs: %w", err)
	}

	total, err := s.jobRepo.CountForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count export jobs: %w", err)
	}

	items := make([]JobResponse, len(jobs))
	for i := range jobs {
		items[i] = *toJobResponse(&jobs[i])
	}

	result := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &result, nil
}

// DeleteJob removes a finished job and its stored artifact
func (s *ExportService) DeleteJob(ctx context.Context, tenantID, jobID uuid.UUID) error {
	job, err := s.findJob(ctx, tenantID, jobID)
	if err != nil {
		return err
	}
	if !job.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", "Cannot delete a job that is still running")
	}

	if job.HasArtifact() {
		if err := s.storage.Delete(ctx, job.StoragePath); err != nil {
			return fmt.Errorf("failed to delete artifact: %w", err)
		}
	}
	if err := s.jobRepo.Delete(ctx, tenantID, jobID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewDomainError("NOT_FOUND", "Export job not found")
		}
		return fmt.Errorf("failed to delete export job: %w", err)
	}

	s.logger.Info("export job deleted", zap.String("jobId", jobID.String()))
	return nil
}

// OpenArtifact opens the stored PNG of a completed job
func (s *ExportService) OpenArtifact(ctx context.Context, tenantID, jobID uuid.UUID) (*ArtifactResponse, error) {
	job, err := s.completedJob(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}

	rc, err := s.storage.Get(ctx, job.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}

	return &ArtifactResponse{
		Reader:      rc,
		ContentType: raster.ContentTypePNG,
		Size:        job.SizeBytes,
		FileName:    artifactFileName(job),
	}, nil
}

// Thumbnail returns a downsized PNG of a completed job's artifact
func (s *ExportService) Thumbnail(ctx context.Context, tenantID, jobID uuid.UUID, maxWidth int) ([]byte, error) {
	if maxWidth <= 0 {
		return nil, shared.NewDomainError(ErrCodeInvalidInput, "Thumbnail width must be positive")
	}
	job, err := s.completedJob(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}

	rc, err := s.storage.Get(ctx, job.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer rc.Close()

	img, err := png.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode artifact: %w", err)
	}

	data, err := raster.EncodePNG(raster.Thumbnail(img, maxWidth))
	if err != nil {
		return nil, mapExportError(err)
	}
	return data, nil
}

func (s *ExportService) findJob(ctx context.Context, tenantID, jobID uuid.UUID) (*export.ExportJob, error) {
	job, err := s.jobRepo.FindByIDForTenant(ctx, tenantID, jobID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Export job not found")
		}
		return nil, fmt.Errorf("failed to get export job: %w", err)
	}
	return job, nil
}

func (s *ExportService) completedJob(ctx context.Context, tenantID, jobID uuid.UUID) (*export.ExportJob, error) {
	job, err := s.findJob(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	if !job.IsCompleted() || !job.HasArtifact() {
		return nil, shared.NewDomainError(ErrCodeArtifactAbsent, "Export job has no artifact")
	}
	return job, nil
}

// =============================================================================
// Helpers
// =============================================================================

func (s *ExportService) checkHTML(html string) error {
	if strings.TrimSpace(html) == "" {
		return shared.NewDomainError(ErrCodeInvalidInput, "HTML content cannot be empty")
	}
	if len(html) > s.maxHTMLBytes {
		return shared.NewDomainError(ErrCodeInvalidInput,
			"HTML content exceeds "+strconv.Itoa(s.maxHTMLBytes)+" bytes")
	}
	return nil
}

// resolveOptions overlays request overrides on the service defaults
func (s *ExportService) resolveOptions(dto *RenderOptionsDTO) export.RenderOptions {
	opts := s.defaults
	if dto == nil {
		return opts
	}
	if dto.Scale != nil {
		opts.Scale = *dto.Scale
	}
	if dto.Padding != nil {
		opts.Padding = *dto.Padding
	}
	if dto.WhiteThreshold != nil {
		opts.WhiteThreshold = *dto.WhiteThreshold
	}
	if dto.SampleStep != nil {
		opts.SampleStep = *dto.SampleStep
	}
	if dto.Background != nil {
		opts.Background = *dto.Background
	}
	return opts
}

func (s *ExportService) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if s.cache == nil || key == "" {
		return nil, false
	}
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("artifact cache read failed", zap.Error(err))
		return nil, false
	}
	return data, ok
}

func (s *ExportService) cacheSet(ctx context.Context, key string, data []byte) {
	if s.cache == nil || key == "" {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		s.logger.Warn("artifact cache write failed", zap.Error(err))
	}
}

func (s *ExportService) publish(ctx context.Context, job *export.ExportJob) {
	events := job.GetDomainEvents()
	if s.publisher == nil || len(events) == 0 {
		job.ClearDomainEvents()
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish export job events",
			zap.String("jobId", job.ID.String()),
			zap.Error(err))
	}
	job.ClearDomainEvents()
}

// Fingerprint identifies an export by its markup, selector and options
func Fingerprint(html, selector string, opts export.RenderOptions) string {
	h := sha256.New()
	h.Write([]byte(html))
	h.Write([]byte{0})
	h.Write([]byte(selector))
	h.Write([]byte{0})
	bg := opts.BackgroundColor()
	fmt.Fprintf(h, "scale=%g;padding=%d;white=%d;step=%d;bg=%02x%02x%02x%02x",
		opts.Scale, opts.Padding, opts.WhiteThreshold, opts.SampleStep, bg.R, bg.G, bg.B, bg.A)
	return hex.EncodeToString(h.Sum(nil))
}

func toRasterConfig(o export.RenderOptions) raster.Config {
	return raster.Config{
		Render: raster.RenderConfig{
			Scale:      o.Scale,
			Background: o.BackgroundColor(),
		},
		Trim: raster.TrimConfig{
			Padding:        o.Padding,
			WhiteThreshold: o.WhiteThreshold,
			SampleStep:     o.SampleStep,
		},
	}
}

// mapExportError converts engine and browser errors into domain errors
func mapExportError(err error) error {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var configErr *raster.ConfigError
	if errors.As(err, &configErr) {
		return shared.NewDomainError(ErrCodeInvalidInput, configErr.Message)
	}
	var renderErr *raster.RenderError
	if errors.As(err, &renderErr) {
		return shared.NewDomainError(ErrCodeRenderFailed, renderErr.Error())
	}
	var loadErr *infra.RenderError
	if errors.As(err, &loadErr) {
		return shared.NewDomainError(ErrCodeRenderFailed, loadErr.Error())
	}
	var encodeErr *raster.EncodeError
	if errors.As(err, &encodeErr) {
		return shared.NewDomainError(ErrCodeEncodeFailed, encodeErr.Error())
	}
	return fmt.Errorf("failed to export image: %w", err)
}

func pngSize(data []byte) (int, int, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func selectorOrDefault(selector string) string {
	if s := strings.TrimSpace(selector); s != "" {
		return s
	}
	return defaultSelector
}

func artifactFileName(job *export.ExportJob) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, job.Reference)
	if name == "" {
		name = job.ID.String()
	}
	return name + ".png"
}

func toJobResponse(job *export.ExportJob) *JobResponse {
	resp := &JobResponse{
		ID:           job.ID.String(),
		TenantID:     job.TenantID.String(),
		ArtifactType: string(job.ArtifactType),
		Reference:    job.Reference,
		Selector:     job.Selector,
		Status:       string(job.Status),
		Options: RenderOptionsResponse{
			Scale:          job.Options.Scale,
			Padding:        job.Options.Padding,
			WhiteThreshold: job.Options.WhiteThreshold,
			SampleStep:     job.Options.SampleStep,
			Background:     job.Options.Background,
		},
		Fingerprint:  job.Fingerprint,
		Width:        job.Width,
		Height:       job.Height,
		SizeBytes:    job.SizeBytes,
		ArtifactURL:  job.ArtifactURL,
		FromCache:    job.FromCache,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
		CompletedAt:  job.CompletedAt,
	}
	if job.RequestedBy != nil {
		requestedBy := job.RequestedBy.String()
		resp.RequestedBy = &requestedBy
	}
	return resp
}
