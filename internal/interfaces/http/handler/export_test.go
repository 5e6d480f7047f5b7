package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	exportapp "github.com/storefront/backend/internal/application/export"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	"github.com/storefront/backend/internal/interfaces/http/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockExporter implements Exporter for testing
type MockExporter struct {
	mock.Mock
}

func (m *MockExporter) ExportWarrantyCard(ctx context.Context, tenantID, userID uuid.UUID, req exportapp.ExportWarrantyCardRequest) (*exportapp.JobResponse, error) {
	args := m.Called(ctx, tenantID, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*exportapp.JobResponse), args.Error(1)
}

func (m *MockExporter) ExportHTML(ctx context.Context, tenantID, userID uuid.UUID, req exportapp.ExportHTMLRequest) (*exportapp.JobResponse, error) {
	args := m.Called(ctx, tenantID, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*exportapp.JobResponse), args.Error(1)
}

func (m *MockExporter) Preview(ctx context.Context, req exportapp.PreviewRequest) (*exportapp.PreviewResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*exportapp.PreviewResponse), args.Error(1)
}

func (m *MockExporter) GetJob(ctx context.Context, tenantID, jobID uuid.UUID) (*exportapp.JobResponse, error) {
	args := m.Called(ctx, tenantID, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*exportapp.JobResponse), args.Error(1)
}

func (m *MockExporter) ListJobs(ctx context.Context, tenantID uuid.UUID, req exportapp.ListJobsRequest) (*shared.Paginated[exportapp.JobResponse], error) {
	args := m.Called(ctx, tenantID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[exportapp.JobResponse]), args.Error(1)
}

func (m *MockExporter) DeleteJob(ctx context.Context, tenantID, jobID uuid.UUID) error {
	args := m.Called(ctx, tenantID, jobID)
	return args.Error(0)
}

func (m *MockExporter) OpenArtifact(ctx context.Context, tenantID, jobID uuid.UUID) (*exportapp.ArtifactResponse, error) {
	args := m.Called(ctx, tenantID, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*exportapp.ArtifactResponse), args.Error(1)
}

func (m *MockExporter) Thumbnail(ctx context.Context, tenantID, jobID uuid.UUID, maxWidth int) ([]byte, error) {
	args := m.Called(ctx, tenantID, jobID, maxWidth)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// =============================================================================
// Helpers
// =============================================================================

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

func setupExportRouter(exporter Exporter) *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.RequestID(), middleware.Tenant(middleware.DefaultTenantConfig()))
	r := router.NewRouter(engine)
	r.Register(ExportRoutes(NewExportHandler(exporter), nil))
	r.Setup()
	return engine
}

func doJSON(engine *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func sampleJob(id uuid.UUID) *exportapp.JobResponse {
	return &exportapp.JobResponse{
		ID:           id.String(),
		TenantID:     DefaultTenantID.String(),
		ArtifactType: "HTML",
		Reference:    "ORD-1001",
		Status:       "COMPLETED",
		Width:        320,
		Height:       180,
	}
}

// =============================================================================
// Export Endpoints
// =============================================================================

func TestExportHandler_ExportHTML(t *testing.T) {
	exporter := new(MockExporter)
	engine := setupExportRouter(exporter)
	tenant := uuid.New()
	user := uuid.New()
	jobID := uuid.New()

	exporter.On("ExportHTML", mock.Anything, tenant, user, mock.MatchedBy(func(req exportapp.ExportHTMLRequest) bool {
		return req.Reference == "ORD-1001" && req.HTML == "<p>hi</p>" && req.Options != nil && *req.Options.Padding == 4
	})).Return(sampleJob(jobID), nil)

	w := doJSON(engine, http.MethodPost, "/api/v1/export/html",
		`{"reference":"ORD-1001","html":"<p>hi</p>","options":{"padding":4}}`,
		map[string]string{"X-Tenant-ID": tenant.String(), "X-User-ID": user.String()})

	require.Equal(t, http.StatusCreated, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]any)
	assert.Equal(t, jobID.String(), data["id"])
	assert.Equal(t, float64(320), data["width"])
	exporter.AssertExpectations(t)
}

func TestExportHandler_ExportHTML_ValidationError(t *testing.T) {
	exporter := new(MockExporter)
	engine := setupExportRouter(exporter)

	w := doJSON(engine, http.MethodPost, "/api/v1/export/html",
		`{"reference":"ORD-1001","options":{"padding":-3}}`, nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	fields := map[string]bool{}
	for _, d := range resp.Error.Details {
		fields[d.Field] = true
	}
	assert.True(t, fields["html"])
	assert.True(t, fields["options.padding"])
	exporter.AssertNotCalled(t, "ExportHTML", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExportHandler_ExportHTML_MalformedJSON(t *testing.T) {
	engine := setupExportRouter(new(MockExporter))

	w := doJSON(engine, http.MethodPost, "/api/v1/export/html", `{"reference":`, nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidJSON, decodeResponse(t, w).Error.Code)
}

func TestExportHandler_ExportHTML_DomainErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid input", shared.NewDomainError("INVALID_INPUT", "Padding must not be negative"), http.StatusBadRequest, dto.ErrCodeInvalidInput},
		{"render failure", shared.NewDomainError("RENDER_FAILED", "Element not found"), http.StatusUnprocessableEntity, dto.ErrCodeRenderFailed},
		{"encode failure", shared.NewDomainError("ENCODE_FAILED", "encode"), http.StatusInternalServerError, dto.ErrCodeEncodeFailed},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter := new(MockExporter)
			engine := setupExportRouter(exporter)
			exporter.On("ExportHTML", mock.Anything, DefaultTenantID, uuid.Nil, mock.Anything).Return(nil, tt.err)

			w := doJSON(engine, http.MethodPost, "/api/v1/export/html",
				`{"reference":"ORD-1","html":"<p>x</p>"}`, nil)

			require.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.RequestID)
			if tt.wantCode == dto.ErrCodeInternal {
				assert.NotContains(t, resp.Error.Message, "disk on fire")
			}
		})
	}
}

func TestExportHandler_ExportWarrantyCard(t *testing.T) {
	exporter := new(MockExporter)
	engine := setupExportRouter(exporter)
	jobID := uuid.New()

	exporter.On("ExportWarrantyCard", mock.Anything, DefaultTenantID, uuid.Nil, mock.MatchedBy(func(req exportapp.ExportWarrantyCardRequest) bool {
		return req.CardNumber == "WC-0001" && req.PurchasePrice.String() == "1299.5" && req.WarrantyMonths == 24
	})).Return(sampleJob(jobID), nil)

	body := `{
		"store_name":"Corner Electronics",
		"card_number":"WC-0001",
		"customer_name":"Sam Lee",
		"product_name":"Espresso Machine",
		"purchase_date":"2026-03-14",
		"warranty_months":24,
		"purchase_price":"1299.50"
	}`
	w := doJSON(engine, http.MethodPost, "/api/v1/export/warranty-cards", body, nil)

	require.Equal(t, http.StatusCreated, w.Code)
	exporter.AssertExpectations(t)
}

func TestExportHandler_ExportWarrantyCard_BadDate(t *testing.T) {
	engine := setupExportRouter(new(MockExporter))

	body := `{"store_name":"S","card_number":"C","customer_name":"N","product_name":"P","purchase_date":"14/03/2026","warranty_months":12}`
	w := doJSON(engine, http.MethodPost, "/api/v1/export/warranty-cards", body, nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "purchase_date", resp.Error.Details[0].Field)
}

func TestExportHandler_Preview(t *testing.T) {
	exporter := new(MockExporter)
	engine := setupExportRouter(exporter)
	png := []byte("\x89PNG\r\n\x1a\nfake")

	exporter.On("Preview", mock.Anything, mock.MatchedBy(func(req exportapp.PreviewRequest) bool {
		return req.Selector == "#card"
	})).Return(&exportapp.PreviewResponse{
		Data:         png,
		ContentType:  "image/png",
		Width:        100,
		Height:       40,
		SourceWidth:  800,
		SourceHeight: 600,
		Trimmed:      true,
		FromCache:    true,
	}, nil)

	w := doJSON(engine, http.MethodPost, "/api/v1/export/preview", `{"html":"<div id=\"card\"></div>","selector":"#card"}`, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, png, w.Body.Bytes())
	assert.Equal(t, "100", w.Header().Get("X-Export-Width"))
	assert.Equal(t, "40", w.Header().Get("X-Export-Height"))
	assert.Equal(t, "800x600", w.Header().Get("X-Export-Source-Size"))
	assert.Equal(t, "true", w.Header().Get("X-Export-Trimmed"))
	assert.Equal(t, "HIT", w.Header().Get("X-Export-Cache"))
}

// =============================================================================
// Job Endpoints
// =============================================================================

func TestExportHandler_ListJobs(t *testing.T) {
	exporter := new(MockExporter)
	engine := setupExportRouter(exporter)

	page := shared.NewPaginated([]exportapp.JobResponse{*sampleJob(uuid.New())}, 41, 2, 20)
	exporter.On("ListJobs", mock.Anything, DefaultTenantID, exportapp.ListJobsRequest{
		Page:     2,
		PageSize: 20,
		OrderBy:  "created_at",
		OrderDir: "desc",
		Status:   "COMPLETED",
	}).Return(&page, nil)

	w := doJSON(engine, http.MethodGet, "/api/v1/export/jobs?page=2&status=COMPLETED", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(41), resp.Meta.Total)
	assert.Equal(t, 3, resp.Meta.TotalPages)
	assert.Len(t, resp.Data.([]any), 1)
	exporter.AssertExpectations(t)
}

func TestExportHandler_ListJobs_BadQuery(t *testing.T) {
	engine := setupExportRouter(new(MockExporter))

	w := doJSON(engine, http.MethodGet, "/api/v1/export/jobs?order_dir=sideways", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportHandler_GetJob(t *testing.T) {
	exporter := new(MockExporter)
	engine := setupExportRouter(exporter)
	jobID := uuid.New()

	exporter.On("GetJob", mock.Anything, DefaultTenantID, jobID).Return(sampleJob(jobID), nil)
	exporter.On("GetJob", mock.Anything, DefaultTenantID, mock.Anything).
		Return(nil, shared.NewDomainError("NOT_FOUND", "Export job not found"))

	w := doJSON(engine, http.MethodGet, "/api/v1/export/jobs/"+jobID.String(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(engine, http.MethodGet, "/api/v1/export/jobs/"+uuid.NewString(), "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.ErrCodeNotFound, decodeResponse(t, w).Error.Code)

	w = doJSON(engine, http.MethodGet, "/api/v1/export/jobs/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportHandler_DownloadArtifact(t *testing.T) {
	exporter := new(MockExporter)
	engine := setupExportRouter(exporter)
	jobID := uuid.New()
	png := []byte("\x89PNG\r\n\x1a\nbody")

	exporter.On("OpenArtifact", mock.Anything, DefaultTenantID, jobID).Return(&exportapp.ArtifactResponse{
		Reader:      io.NopCloser(bytes.NewReader(png)),
		ContentType: "image/png",
		Size:        int64(len(png)),
		FileName:    "ORD-1001.png",
	}, nil)

	w := doJSON(engine, http.MethodGet, "/api/v1/export/jobs/"+jobID.String()+"/download", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, png, w.Body.Bytes())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="ORD-1001.png"`, w.Header().Get("Content-Disposition"))
}

func TestExportHandler_DownloadArtifact_NotReady(t *testing.T) {
	exporter := new(MockExporter)
	engine := setupExportRouter(exporter)
	jobID := uuid.New()

	exporter.On("OpenArtifact", mock.Anything, DefaultTenantID, jobID).
		Return(nil, shared.NewDomainError("ARTIFACT_NOT_AVAILABLE", "Export job has no image yet"))

	w := doJSON(engine, http.MethodGet, "/api/v1/export/jobs/"+jobID.String()+"/download", "", nil)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.ErrCodeArtifactNotAvailable, decodeResponse(t, w).Error.Code)
}

func TestExportHandler_Thumbnail(t *testing.T) {
	exporter := new(MockExporter)
	engine := setupExportRouter(exporter)
	jobID := uuid.New()

	exporter.On("Thumbnail", mock.Anything, DefaultTenantID, jobID, defaultThumbnailWidth).Return([]byte("small"), nil)
	exporter.On("Thumbnail", mock.Anything, DefaultTenantID, jobID, 64).Return([]byte("tiny"), nil)

	base := "/api/v1/export/jobs/" + jobID.String() + "/thumbnail"

	w := doJSON(engine, http.MethodGet, base, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "small", w.Body.String())

	w = doJSON(engine, http.MethodGet, base+"?width=64", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tiny", w.Body.String())

	for _, bad := range []string{"0", "abc", "5000"} {
		w = doJSON(engine, http.MethodGet, base+"?width="+bad, "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}
	exporter.AssertNumberOfCalls(t, "Thumbnail", 2)
}

func TestExportHandler_DeleteJob(t *testing.T) {
	exporter := new(MockExporter)
	engine := setupExportRouter(exporter)
	done := uuid.New()
	running := uuid.New()

	exporter.On("DeleteJob", mock.Anything, DefaultTenantID, done).Return(nil)
	exporter.On("DeleteJob", mock.Anything, DefaultTenantID, running).
		Return(shared.NewDomainError("INVALID_STATE", "Only finished export jobs can be deleted"))

	w := doJSON(engine, http.MethodDelete, "/api/v1/export/jobs/"+done.String(), "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(engine, http.MethodDelete, "/api/v1/export/jobs/"+running.String(), "", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidState, decodeResponse(t, w).Error.Code)
}

func TestExportRoutes_RenderLimit(t *testing.T) {
	exporter := new(MockExporter)
	engine := gin.New()
	r := router.NewRouter(engine)

	limited := 0
	r.Register(ExportRoutes(NewExportHandler(exporter), func(c *gin.Context) {
		limited++
		c.AbortWithStatus(http.StatusTooManyRequests)
	}))
	r.Setup()

	jobID := uuid.New()
	exporter.On("GetJob", mock.Anything, DefaultTenantID, jobID).Return(sampleJob(jobID), nil)

	assert.Equal(t, http.StatusTooManyRequests, doJSON(engine, http.MethodPost, "/api/v1/export/preview", `{"html":"x"}`, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, doJSON(engine, http.MethodPost, "/api/v1/export/html", `{"html":"x"}`, nil).Code)
	assert.Equal(t, http.StatusOK, doJSON(engine, http.MethodGet, "/api/v1/export/jobs/"+jobID.String(), "", nil).Code)
	assert.Equal(t, 2, limited)
}
