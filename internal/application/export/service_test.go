package export_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"runtime/pprof"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/application/export"
	domain "github.com/storefront/backend/internal/domain/export"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/warranty"
	"github.com/storefront/backend/internal/infrastructure/cache"
	infra "github.com/storefront/backend/internal/infrastructure/printing"
	"github.com/storefront/backend/internal/infrastructure/raster"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// Mock Implementations
// =============================================================================

type MockJobRepository struct {
	mock.Mock
	saved []domain.JobStatus
}

func (m *MockJobRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*domain.ExportJob, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExportJob), args.Error(1)
}

func (m *MockJobRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter domain.ExportJobFilter) ([]domain.ExportJob, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ExportJob), args.Error(1)
}

func (m *MockJobRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter domain.ExportJobFilter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockJobRepository) FindByFingerprint(ctx context.Context, tenantID uuid.UUID, fingerprint string) (*domain.ExportJob, error) {
	args := m.Called(ctx, tenantID, fingerprint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExportJob), args.Error(1)
}

func (m *MockJobRepository) Save(ctx context.Context, job *domain.ExportJob) error {
	m.saved = append(m.saved, job.Status)
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

// savedStatuses returns the job status seen by every Save call
func (m *MockJobRepository) savedStatuses() []domain.JobStatus {
	return m.saved
}

type fakeSurface struct {
	width, height float64
	closed        bool
}

func (s *fakeSurface) Size(ctx context.Context) (float64, float64, error) {
	return s.width, s.height, nil
}

func (s *fakeSurface) Close() error {
	s.closed = true
	return nil
}

type fakeLoader struct {
	mu       sync.Mutex
	surface  *fakeSurface
	err      error
	requests []*infra.LoadRequest
}

func (l *fakeLoader) Load(ctx context.Context, req *infra.LoadRequest) (infra.LoadedSurface, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, req)
	if l.err != nil {
		return nil, l.err
	}
	return l.surface, nil
}

func (l *fakeLoader) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.requests)
}

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte)}
}

func (s *memoryStorage) Store(ctx context.Context, req *infra.StoreRequest) (*infra.StoreResult, error) {
	if s.failPut {
		return nil, errors.New("disk full")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := req.TenantID.String() + "/" + req.JobID.String() + ".png"
	s.objects[path] = append([]byte(nil), req.Data...)
	return &infra.StoreResult{
		Path:        path,
		URL:         "/files/" + path,
		Size:        int64(len(req.Data)),
		ContentType: raster.ContentTypePNG,
	}, nil
}

func (s *memoryStorage) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[path]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memoryStorage) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, path)
	return nil
}

func (s *memoryStorage) GetURL(path string) string {
	return "/files/" + path
}

type recordingPublisher struct {
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

type stubCards struct {
	html string
}

func (c stubCards) RenderWarrantyCard(ctx context.Context, card *warranty.Card) (string, error) {
	return c.html, nil
}

// =============================================================================
// Fixtures
// =============================================================================

var (
	testTenantID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	testUserID   = uuid.MustParse("00000000-0000-0000-0000-0000000000aa")
)

// boxRasterizer draws a black square in the middle of a white bitmap
func boxRasterizer() raster.RasterizerFunc {
	return func(ctx context.Context, surface raster.Surface, cfg raster.RenderConfig) (image.Image, error) {
		w, h, err := surface.Size(ctx)
		if err != nil {
			return nil, err
		}
		pw, ph := int(w*cfg.Scale), int(h*cfg.Scale)
		img := image.NewNRGBA(image.Rect(0, 0, pw, ph))
		for y := 0; y < ph; y++ {
			for x := 0; x < pw; x++ {
				c := color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
				if x >= pw/4 && x < pw*3/4 && y >= ph/4 && y < ph*3/4 {
					c = color.NRGBA{A: 0xff}
				}
				img.SetNRGBA(x, y, c)
			}
		}
		return img, nil
	}
}

type fixture struct {
	repo      *MockJobRepository
	loader    *fakeLoader
	storage   *memoryStorage
	cache     *cache.InMemoryArtifactCache
	publisher *recordingPublisher
	service   *export.ExportService
}

func newFixture(t *testing.T, rasterizer raster.Rasterizer, extra ...export.ExportServiceOption) *fixture {
	t.Helper()
	engine, err := raster.NewEngine(rasterizer, nil, nil)
	require.NoError(t, err)

	f := &fixture{
		repo:      new(MockJobRepository),
		loader:    &fakeLoader{surface: &fakeSurface{width: 40, height: 20}},
		storage:   newMemoryStorage(),
		cache:     cache.NewInMemoryArtifactCache(16),
		publisher: &recordingPublisher{},
	}
	opts := domain.DefaultRenderOptions()
	opts.Scale = 1
	opts.Padding = 2
	opts.SampleStep = 1
	options := append([]export.ExportServiceOption{
		export.WithArtifactCache(f.cache, time.Hour),
		export.WithEventPublisher(f.publisher),
		export.WithDefaultOptions(opts),
		export.WithMaxHTMLBytes(1024),
	}, extra...)
	f.service = export.NewExportService(
		f.repo,
		stubCards{html: `<div class="warranty-card">card</div>`},
		f.loader,
		engine,
		f.storage,
		zap.NewNop(),
		options...,
	)
	return f
}

func (f *fixture) expectFreshRender() {
	f.repo.On("Save", mock.Anything, mock.AnythingOfType("*export.ExportJob")).Return(nil)
	f.repo.On("FindByFingerprint", mock.Anything, testTenantID, mock.Anything).Return(nil, shared.ErrNotFound)
}

func htmlRequest() export.ExportHTMLRequest {
	return export.ExportHTMLRequest{
		Reference: "receipt-1",
		HTML:      `<div id="r">receipt</div>`,
		Selector:  "#r",
	}
}

func completedJob(t *testing.T, storage *memoryStorage, data []byte, w, h int) *domain.ExportJob {
	t.Helper()
	job, err := domain.NewExportJob(testTenantID, domain.ArtifactTypeHTMLSnippet, "receipt-0", "#r",
		domain.DefaultRenderOptions(), uuid.Nil)
	require.NoError(t, err)
	stored, err := storage.Store(context.Background(), &infra.StoreRequest{TenantID: testTenantID, JobID: job.ID, Data: data})
	require.NoError(t, err)
	require.NoError(t, job.StartRendering())
	require.NoError(t, job.Complete(domain.Artifact{
		Path: stored.Path, URL: stored.URL, Width: w, Height: h, SizeBytes: stored.Size,
	}, false))
	job.ClearDomainEvents()
	return job
}

func encodeSolid(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	data, err := raster.EncodePNG(img)
	require.NoError(t, err)
	return data
}

// =============================================================================
// Export
// =============================================================================

func TestExportService_ExportHTML(t *testing.T) {
	f := newFixture(t, boxRasterizer())
	f.expectFreshRender()

	resp, err := f.service.ExportHTML(context.Background(), testTenantID, testUserID, htmlRequest())
	require.NoError(t, err)

	assert.Equal(t, string(domain.JobStatusCompleted), resp.Status)
	assert.Equal(t, "HTML_SNIPPET", resp.ArtifactType)
	assert.Equal(t, "#r", resp.Selector)
	// 40x20 bitmap with a 20x10 box, padded by 2 on every side
	assert.Equal(t, 24, resp.Width)
	assert.Equal(t, 14, resp.Height)
	assert.False(t, resp.FromCache)
	assert.NotEmpty(t, resp.Fingerprint)
	assert.NotEmpty(t, resp.ArtifactURL)
	require.NotNil(t, resp.RequestedBy)
	assert.Equal(t, testUserID.String(), *resp.RequestedBy)

	assert.Equal(t, []domain.JobStatus{
		domain.JobStatusPending, domain.JobStatusRendering, domain.JobStatusCompleted,
	}, f.repo.savedStatuses())
	assert.Equal(t, 1, f.loader.calls())
	assert.True(t, f.loader.surface.closed)
	assert.Equal(t, "#r", f.loader.requests[0].Selector)

	assert.Equal(t, []string{
		domain.EventTypeExportJobCreated,
		domain.EventTypeExportJobStatusChanged,
		domain.EventTypeExportJobStatusChanged,
		domain.EventTypeExportJobCompleted,
	}, f.publisher.types())

	cached, ok, err := f.cache.Get(context.Background(), resp.Fingerprint)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, resp.SizeBytes, int64(len(cached)))
}

func TestExportService_ExportHTML_DefaultSelector(t *testing.T) {
	f := newFixture(t, boxRasterizer())
	f.expectFreshRender()

	req := htmlRequest()
	req.Selector = "  "
	resp, err := f.service.ExportHTML(context.Background(), testTenantID, uuid.Nil, req)
	require.NoError(t, err)

	assert.Equal(t, "body", resp.Selector)
	assert.Nil(t, resp.RequestedBy)
}

func TestExportService_ExportHTML_ServedFromCache(t *testing.T) {
	f := newFixture(t, boxRasterizer())
	f.expectFreshRender()

	first, err := f.service.ExportHTML(context.Background(), testTenantID, testUserID, htmlRequest())
	require.NoError(t, err)

	second, err := f.service.ExportHTML(context.Background(), testTenantID, testUserID, htmlRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, f.loader.calls(), "second export must not render")
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, first.Width, second.Width)
	assert.Equal(t, first.Height, second.Height)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestExportService_ExportHTML_ReusesEarlierArtifact(t *testing.T) {
	f := newFixture(t, boxRasterizer())
	data := encodeSolid(t, 7, 5)
	prev := completedJob(t, f.storage, data, 7, 5)

	f.repo.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.repo.On("FindByFingerprint", mock.Anything, testTenantID, mock.Anything).Return(prev, nil)

	resp, err := f.service.ExportHTML(context.Background(), testTenantID, testUserID, htmlRequest())
	require.NoError(t, err)

	assert.Equal(t, 0, f.loader.calls())
	assert.True(t, resp.FromCache)
	assert.Equal(t, 7, resp.Width)
	assert.Equal(t, 5, resp.Height)
	assert.Equal(t, int64(len(data)), resp.SizeBytes)
	assert.NotEqual(t, prev.StoragePath, resp.ArtifactURL)
}

func TestExportService_ExportHTML_DifferentOptionsRender(t *testing.T) {
	f := newFixture(t, boxRasterizer())
	f.expectFreshRender()

	_, err := f.service.ExportHTML(context.Background(), testTenantID, testUserID, htmlRequest())
	require.NoError(t, err)

	req := htmlRequest()
	padding := 0
	req.Options = &export.RenderOptionsDTO{Padding: &padding}
	resp, err := f.service.ExportHTML(context.Background(), testTenantID, testUserID, req)
	require.NoError(t, err)

	assert.Equal(t, 2, f.loader.calls())
	assert.Equal(t, 20, resp.Width)
	assert.Equal(t, 10, resp.Height)
	assert.Equal(t, 0, resp.Options.Padding)
}

func TestExportService_ExportHTML_InvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*export.ExportHTMLRequest)
		wantCode string
	}{
		{"empty html", func(r *export.ExportHTMLRequest) { r.HTML = "   " }, "INVALID_INPUT"},
		{"html too large", func(r *export.ExportHTMLRequest) { r.HTML = string(make([]byte, 2048)) + "x" }, "INVALID_INPUT"},
		{"negative padding", func(r *export.ExportHTMLRequest) {
			p := -1
			r.Options = &export.RenderOptionsDTO{Padding: &p}
		}, "INVALID_PADDING"},
		{"zero sample step", func(r *export.ExportHTMLRequest) {
			s := 0
			r.Options = &export.RenderOptionsDTO{SampleStep: &s}
		}, "INVALID_SAMPLE_STEP"},
		{"empty reference", func(r *export.ExportHTMLRequest) { r.Reference = "" }, "INVALID_REFERENCE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, boxRasterizer())
			req := htmlRequest()
			tt.mutate(&req)

			_, err := f.service.ExportHTML(context.Background(), testTenantID, testUserID, req)
			require.Error(t, err)

			var domainErr *shared.DomainError
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, tt.wantCode, domainErr.Code)
			f.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
			assert.Equal(t, 0, f.loader.calls())
		})
	}
}

func TestExportService_ExportHTML_RenderFailureFailsJob(t *testing.T) {
	failing := raster.RasterizerFunc(func(ctx context.Context, s raster.Surface, cfg raster.RenderConfig) (image.Image, error) {
		return nil, errors.New("tab crashed")
	})
	f := newFixture(t, failing)
	f.expectFreshRender()

	_, err := f.service.ExportHTML(context.Background(), testTenantID, testUserID, htmlRequest())
	require.Error(t, err)

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, export.ErrCodeRenderFailed, domainErr.Code)
	assert.Contains(t, domainErr.Message, "tab crashed")

	statuses := f.repo.savedStatuses()
	require.NotEmpty(t, statuses)
	assert.Equal(t, domain.JobStatusFailed, statuses[len(statuses)-1])
	assert.Contains(t, f.publisher.types(), domain.EventTypeExportJobFailed)
	assert.Empty(t, f.storage.objects)
}

func TestExportService_ExportHTML_LoadFailureFailsJob(t *testing.T) {
	f := newFixture(t, boxRasterizer())
	f.loader.err = &infra.RenderError{Code: infra.ErrCodeElementNotFound, Message: "element not found: #r"}
	f.expectFreshRender()

	_, err := f.service.ExportHTML(context.Background(), testTenantID, testUserID, htmlRequest())

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, export.ErrCodeRenderFailed, domainErr.Code)
	statuses := f.repo.savedStatuses()
	assert.Equal(t, domain.JobStatusFailed, statuses[len(statuses)-1])
}

func TestExportService_ExportHTML_EmptyRasterFailsJob(t *testing.T) {
	f := newFixture(t, boxRasterizer())
	f.loader.surface = &fakeSurface{width: 0, height: 10}
	f.expectFreshRender()

	_, err := f.service.ExportHTML(context.Background(), testTenantID, testUserID, htmlRequest())

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, export.ErrCodeRenderFailed, domainErr.Code)
}

func TestExportService_ExportHTML_StorageFailureFailsJob(t *testing.T) {
	f := newFixture(t, boxRasterizer())
	f.storage.failPut = true
	f.expectFreshRender()

	_, err := f.service.ExportHTML(context.Background(), testTenantID, testUserID, htmlRequest())

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, export.ErrCodeStorageFailed, domainErr.Code)
	statuses := f.repo.savedStatuses()
	assert.Equal(t, domain.JobStatusFailed, statuses[len(statuses)-1])
}

func TestExportService_ExportHTML_SaveFailure(t *testing.T) {
	f := newFixture(t, boxRasterizer())
	f.repo.On("Save", mock.Anything, mock.Anything).Return(errors.New("db down"))

	_, err := f.service.ExportHTML(context.Background(), testTenantID, testUserID, htmlRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create export job")
	assert.Equal(t, 0, f.loader.calls())
}

func TestExportService_ExportWarrantyCard(t *testing.T) {
	f := newFixture(t, boxRasterizer())
	f.expectFreshRender()

	resp, err := f.service.ExportWarrantyCard(context.Background(), testTenantID, testUserID, export.ExportWarrantyCardRequest{
		StoreName:      "Corner Store",
		CardNumber:     "WC-0001",
		CustomerName:   "Sam Lee",
		ProductName:    "Blender",
		PurchaseDate:   "2026-03-01",
		WarrantyMonths: 12,
		PurchasePrice:  decimal.NewFromInt(120),
	})
	require.NoError(t, err)

	assert.Equal(t, "WARRANTY_CARD", resp.ArtifactType)
	assert.Equal(t, "WC-0001", resp.Reference)
	assert.Equal(t, infra.WarrantyCardSelector, resp.Selector)
	require.Len(t, f.loader.requests, 1)
	assert.Equal(t, infra.WarrantyCardSelector, f.loader.requests[0].Selector)
	assert.Contains(t, f.loader.requests[0].Title, "WC-0001")
}

func TestExportService_ExportWarrantyCard_InvalidDate(t *testing.T) {
	f := newFixture(t, boxRasterizer())

	_, err := f.service.ExportWarrantyCard(context.Background(), testTenantID, testUserID, export.ExportWarrantyCardRequest{
		StoreName:      "Corner Store",
		CardNumber:     "WC-0001",
		CustomerName:   "Sam Lee",
		ProductName:    "Blender",
		PurchaseDate:   "01/03/2026",
		WarrantyMonths: 12,
	})

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_INPUT", domainErr.Code)
}

// =============================================================================
// Preview
// =============================================================================

func TestExportService_Preview(t *testing.T) {
	f := newFixture(t, boxRasterizer())

	resp, err := f.service.Preview(context.Background(), export.PreviewRequest{HTML: "<p>hi</p>"})
	require.NoError(t, err)

	assert.Equal(t, "image/png", resp.ContentType)
	assert.Equal(t, 24, resp.Width)
	assert.Equal(t, 14, resp.Height)
	assert.Equal(t, 40, resp.SourceWidth)
	assert.True(t, resp.Trimmed)
	assert.False(t, resp.FromCache)

	decoded, err := png.Decode(bytes.NewReader(resp.Data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 24, 14), decoded.Bounds())

	again, err := f.service.Preview(context.Background(), export.PreviewRequest{HTML: "<p>hi</p>"})
	require.NoError(t, err)
	assert.True(t, again.FromCache)
	assert.Equal(t, resp.Data, again.Data)
	assert.Equal(t, 1, f.loader.calls())
	f.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestExportService_Preview_InvalidScale(t *testing.T) {
	f := newFixture(t, boxRasterizer())
	scale := -2.0

	_, err := f.service.Preview(context.Background(), export.PreviewRequest{
		HTML:    "<p>hi</p>",
		Options: &export.RenderOptionsDTO{Scale: &scale},
	})

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_SCALE", domainErr.Code)
}

func TestExportService_Preview_RenderSlotsBounded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	blocking := raster.RasterizerFunc(func(ctx context.Context, s raster.Surface, cfg raster.RenderConfig) (image.Image, error) {
		close(started)
		<-release
		return boxRasterizer()(ctx, s, cfg)
	})
	f := newFixture(t, blocking, export.WithMaxConcurrentRenders(1))

	done := make(chan error, 1)
	go func() {
		_, err := f.service.Preview(context.Background(), export.PreviewRequest{HTML: "<p>first</p>"})
		done <- err
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.service.Preview(ctx, export.PreviewRequest{HTML: "<p>second</p>"})

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, export.ErrCodeRenderFailed, domainErr.Code)
	assert.Equal(t, 1, f.loader.calls(), "second preview never reached the browser")

	close(release)
	require.NoError(t, <-done)
}

func TestExportService_Preview_IdenticalRequestsShareRender(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	blocking := raster.RasterizerFunc(func(ctx context.Context, s raster.Surface, cfg raster.RenderConfig) (image.Image, error) {
		once.Do(func() { close(started) })
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return boxRasterizer()(ctx, s, cfg)
	})
	f := newFixture(t, blocking)
	req := export.PreviewRequest{HTML: "<p>shared</p>"}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := f.service.Preview(firstCtx, req)
		first <- err
	}()
	<-started

	type result struct {
		resp *export.PreviewResponse
		err  error
	}
	second := make(chan result, 1)
	go func() {
		resp, err := f.service.Preview(context.Background(), req)
		second <- result{resp, err}
	}()
	time.Sleep(50 * time.Millisecond)

	// the first caller leaving must not fail the render the second one waits on
	cancelFirst()
	var domainErr *shared.DomainError
	require.ErrorAs(t, <-first, &domainErr)
	assert.Equal(t, export.ErrCodeRenderFailed, domainErr.Code)

	close(release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, 24, got.resp.Width)
	assert.Equal(t, 1, f.loader.calls())
}

func TestExportService_RenderProfilingLabels(t *testing.T) {
	var (
		mu     sync.Mutex
		labels []string
	)
	labelling := raster.RasterizerFunc(func(ctx context.Context, s raster.Surface, cfg raster.RenderConfig) (image.Image, error) {
		value, _ := pprof.Label(ctx, telemetry.ProfilingLabelArtifactType)
		mu.Lock()
		labels = append(labels, value)
		mu.Unlock()
		return boxRasterizer()(ctx, s, cfg)
	})
	f := newFixture(t, labelling)
	f.expectFreshRender()

	_, err := f.service.Preview(context.Background(), export.PreviewRequest{HTML: "<p>label</p>"})
	require.NoError(t, err)
	_, err = f.service.ExportHTML(context.Background(), testTenantID, testUserID, htmlRequest())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"PREVIEW", domain.ArtifactTypeHTMLSnippet.String()}, labels)
}

// =============================================================================
// Queries
// =============================================================================

func TestExportService_GetJob_NotFound(t *testing.T) {
	f := newFixture(t, boxRasterizer())
	jobID := uuid.New()
	f.repo.On("FindByIDForTenant", mock.Anything, testTenantID, jobID).Return(nil, shared.ErrNotFound)

	_, err := f.service.GetJob(context.Background(), testTenantID, jobID)

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "NOT_FOUND", domainErr.Code)
}

func TestExportService_ListJobs(t *testing.T) {
	f := newFixture(t, boxRasterizer())
	job := completedJob(t, f.storage, encodeSolid(t, 3, 3), 3, 3)

	status := domain.JobStatusCompleted
	expected := domain.ExportJobFilter{
		Filter: shared.Filter{Page: 1, PageSize: 20},
		Status: &status,
	}
	f.repo.On("FindAllForTenant", mock.Anything, testTenantID, expected).Return([]domain.ExportJob{*job}, nil)
	f.repo.On("CountForTenant", mock.Anything, testTenantID, expected).Return(int64(21), nil)

	page, err := f.service.ListJobs(context.Background(), testTenantID, export.ListJobsRequest{Status: "completed"})
	require.NoError(t, err)

	require.Len(t, page.Items, 1)
	assert.Equal(t, job.ID.String(), page.Items[0].ID)
	assert.Equal(t, int64(21), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 1, page.Page)
}

func TestExportService_ListJobs_InvalidFilter(t *testing.T) {
	f := newFixture(t, boxRasterizer())

	_, err := f.service.ListJobs(context.Background(), testTenantID, export.ListJobsRequest{Status: "BOGUS"})
	require.Error(t, err)

	_, err = f.service.ListJobs(context.Background(), testTenantID, export.ListJobsRequest{ArtifactType: "PDF"})
	require.Error(t, err)
	f.repo.AssertNotCalled(t, "FindAllForTenant", mock.Anything, mock.Anything, mock.Anything)
}

func TestExportService_OpenArtifact(t *testing.T) {
	f := newFixture(t, boxRasterizer())
	data := encodeSolid(t, 4, 2)
	job := completedJob(t, f.storage, data, 4, 2)
	f.repo.On("FindByIDForTenant", mock.Anything, testTenantID, job.ID).Return(job, nil)

	artifact, err := f.service.OpenArtifact(context.Background(), testTenantID, job.ID)
	require.NoError(t, err)
	defer artifact.Reader.Close()

	got, err := io.ReadAll(artifact.Reader)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, "image/png", artifact.ContentType)
	assert.Equal(t, "receipt-0.png", artifact.FileName)
}

func TestExportService_OpenArtifact_NotCompleted(t *testing.T) {
	f := newFixture(t, boxRasterizer())
	job, err := domain.NewExportJob(testTenantID, domain.ArtifactTypeHTMLSnippet, "r", "body",
		domain.DefaultRenderOptions(), uuid.Nil)
	require.NoError(t, err)
	f.repo.On("FindByIDForTenant", mock.Anything, testTenantID, job.ID).Return(job, nil)

	_, err = f.service.OpenArtifact(context.Background(), testTenantID, job.ID)

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, export.ErrCodeArtifactAbsent, domainErr.Code)
}

func TestExportService_Thumbnail(t *testing.T) {
	f := newFixture(t, boxRasterizer())
	job := completedJob(t, f.storage, encodeSolid(t, 200, 100), 200, 100)
	f.repo.On("FindByIDForTenant", mock.Anything, testTenantID, job.ID).Return(job, nil)

	data, err := f.service.Thumbnail(context.Background(), testTenantID, job.ID, 50)
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Width)
	assert.Equal(t, 25, cfg.Height)
}

func TestExportService_DeleteJob(t *testing.T) {
	f := newFixture(t, boxRasterizer())
	job := completedJob(t, f.storage, encodeSolid(t, 2, 2), 2, 2)
	f.repo.On("FindByIDForTenant", mock.Anything, testTenantID, job.ID).Return(job, nil)
	f.repo.On("Delete", mock.Anything, testTenantID, job.ID).Return(nil)

	require.NoError(t, f.service.DeleteJob(context.Background(), testTenantID, job.ID))

	assert.Empty(t, f.storage.objects)
	f.repo.AssertExpectations(t)
}

func TestExportService_DeleteJob_Running(t *testing.T) {
	f := newFixture(t, boxRasterizer())
	job, err := domain.NewExportJob(testTenantID, domain.ArtifactTypeHTMLSnippet, "r", "body",
		domain.DefaultRenderOptions(), uuid.Nil)
	require.NoError(t, err)
	require.NoError(t, job.StartRendering())
	f.repo.On("FindByIDForTenant", mock.Anything, testTenantID, job.ID).Return(job, nil)

	err = f.service.DeleteJob(context.Background(), testTenantID, job.ID)

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_STATE", domainErr.Code)
	f.repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

// =============================================================================
// Fingerprint
// =============================================================================

func TestFingerprint(t *testing.T) {
	opts := domain.DefaultRenderOptions()
	base := export.Fingerprint("<p>a</p>", "body", opts)

	assert.Len(t, base, 64)
	assert.Equal(t, base, export.Fingerprint("<p>a</p>", "body", opts))
	assert.NotEqual(t, base, export.Fingerprint("<p>b</p>", "body", opts))
	assert.NotEqual(t, base, export.Fingerprint("<p>a</p>", "#x", opts))

	changed := opts
	changed.WhiteThreshold = 200
	assert.NotEqual(t, base, export.Fingerprint("<p>a</p>", "body", changed))

	// #fff and #ffffff are the same colour
	short := opts
	short.Background = "#fff"
	assert.Equal(t, base, export.Fingerprint("<p>a</p>", "body", short))
}
