package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	exportapp "github.com/storefront/backend/internal/application/export"
	"github.com/storefront/backend/internal/domain/shared"
)

const (
	defaultThumbnailWidth = 240
	maxThumbnailWidth     = 1024
)

// Exporter is the application surface the export endpoints drive
type Exporter interface {
	ExportWarrantyCard(ctx context.Context, tenantID, userID uuid.UUID, req exportapp.ExportWarrantyCardRequest) (*exportapp.JobResponse, error)
	ExportHTML(ctx context.Context, tenantID, userID uuid.UUID, req exportapp.ExportHTMLRequest) (*exportapp.JobResponse, error)
	Preview(ctx context.Context, req exportapp.PreviewRequest) (*exportapp.PreviewResponse, error)
	GetJob(ctx context.Context, tenantID, jobID uuid.UUID) (*exportapp.JobResponse, error)
	ListJobs(ctx context.Context, tenantID uuid.UUID, req exportapp.ListJobsRequest) (*shared.Paginated[exportapp.JobResponse], error)
	DeleteJob(ctx context.Context, tenantID, jobID uuid.UUID) error
	OpenArtifact(ctx context.Context, tenantID, jobID uuid.UUID) (*exportapp.ArtifactResponse, error)
	Thumbnail(ctx context.Context, tenantID, jobID uuid.UUID, maxWidth int) ([]byte, error)
}

var _ Exporter = (*exportapp.ExportService)(nil)

// ExportHandler handles image export API endpoints
type ExportHandler struct {
	BaseHandler
	exporter Exporter
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(exporter Exporter) *ExportHandler {
	return &ExportHandler{exporter: exporter}
}

// =============================================================================
// Export Endpoints
// =============================================================================

// ExportWarrantyCard godoc
//
//	@ID				createExportWarrantyCard
//
//	@Summary		Export a warranty card as PNG
//	@Description	Renders the card, trims the surrounding margin and stores the image
//	@Tags			export
//	@Accept			json
//	@Produce		json
//	@Param			request	body		exportapp.ExportWarrantyCardRequest	true	"Warranty card"
//	@Success		201		{object}	APIResponse[exportapp.JobResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Router			/export/warranty-cards [post]
func (h *ExportHandler) ExportWarrantyCard(c *gin.Context) {
	tenantID, userID, ok := h.caller(c)
	if !ok {
		return
	}

	var req exportapp.ExportWarrantyCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}

	job, err := h.exporter.ExportWarrantyCard(c.Request.Context(), tenantID, userID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, job)
}

// ExportHTML godoc
//
//	@ID				createExportHTML
//
//	@Summary		Export an HTML fragment as PNG
//	@Tags			export
//	@Accept			json
//	@Produce		json
//	@Param			request	body		exportapp.ExportHTMLRequest	true	"Markup to export"
//	@Success		201		{object}	APIResponse[exportapp.JobResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		413		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Router			/export/html [post]
func (h *ExportHandler) ExportHTML(c *gin.Context) {
	tenantID, userID, ok := h.caller(c)
	if !ok {
		return
	}

	var req exportapp.ExportHTMLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}

	job, err := h.exporter.ExportHTML(c.Request.Context(), tenantID, userID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, job)
}

// Preview godoc
//
//	@ID				previewExport
//
//	@Summary		Render markup to PNG without storing it
//	@Tags			export
//	@Accept			json
//	@Produce		image/png
//	@Param			request	body	exportapp.PreviewRequest	true	"Markup to render"
//	@Success		200
//	@Failure		400	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Router			/export/preview [post]
func (h *ExportHandler) Preview(c *gin.Context) {
	var req exportapp.PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}

	result, err := h.exporter.Preview(c.Request.Context(), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	c.Header("X-Export-Width", strconv.Itoa(result.Width))
	c.Header("X-Export-Height", strconv.Itoa(result.Height))
	c.Header("X-Export-Source-Size", fmt.Sprintf("%dx%d", result.SourceWidth, result.SourceHeight))
	c.Header("X-Export-Trimmed", strconv.FormatBool(result.Trimmed))
	c.Header("X-Export-Cache", cacheHeader(result.FromCache))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

// =============================================================================
// Job Endpoints
// =============================================================================

// ListJobs godoc
//
//	@ID				listExportJobs
//
//	@Summary		List export jobs
//	@Tags			export-jobs
//	@Produce		json
//	@Param			page			query		int		false	"Page number"		default(1)
//	@Param			page_size		query		int		false	"Page size"			default(20)
//	@Param			order_by		query		string	false	"Order by field"	default(created_at)
//	@Param			order_dir		query		string	false	"Order direction"	Enums(asc, desc)	default(desc)
//	@Param			status			query		string	false	"Filter by status"
//	@Param			artifact_type	query		string	false	"Filter by artifact type"
//	@Param			reference		query		string	false	"Filter by reference"
//	@Success		200				{object}	APIResponse[[]exportapp.JobResponse]
//	@Failure		400				{object}	ErrorResponse
//	@Router			/export/jobs [get]
func (h *ExportHandler) ListJobs(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	req := exportapp.ListJobsRequest{
		Page:     1,
		PageSize: 20,
		OrderBy:  "created_at",
		OrderDir: "desc",
	}
	if err := c.ShouldBindQuery(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}

	result, err := h.exporter.ListJobs(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// GetJob godoc
//
//	@ID				getExportJob
//
//	@Summary		Get an export job
//	@Tags			export-jobs
//	@Produce		json
//	@Param			id	path		string	true	"Job ID"	format(uuid)
//	@Success		200	{object}	APIResponse[exportapp.JobResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Router			/export/jobs/{id} [get]
func (h *ExportHandler) GetJob(c *gin.Context) {
	tenantID, jobID, ok := h.jobParams(c)
	if !ok {
		return
	}

	job, err := h.exporter.GetJob(c.Request.Context(), tenantID, jobID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, job)
}

// DownloadArtifact godoc
//
//	@ID				downloadExportJobArtifact
//
//	@Summary		Download the PNG of a completed job
//	@Tags			export-jobs
//	@Produce		image/png
//	@Param			id	path	string	true	"Job ID"	format(uuid)
//	@Success		200
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Router			/export/jobs/{id}/download [get]
func (h *ExportHandler) DownloadArtifact(c *gin.Context) {
	tenantID, jobID, ok := h.jobParams(c)
	if !ok {
		return
	}

	artifact, err := h.exporter.OpenArtifact(c.Request.Context(), tenantID, jobID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	defer artifact.Reader.Close()

	c.DataFromReader(http.StatusOK, artifact.Size, artifact.ContentType, artifact.Reader, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, artifact.FileName),
	})
}

// Thumbnail godoc
//
//	@ID				getExportJobThumbnail
//
//	@Summary		Downsized PNG of a completed job
//	@Tags			export-jobs
//	@Produce		image/png
//	@Param			id		path	string	true	"Job ID"	format(uuid)
//	@Param			width	query	int		false	"Maximum width"	default(240)
//	@Success		200
//	@Failure		400	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Router			/export/jobs/{id}/thumbnail [get]
func (h *ExportHandler) Thumbnail(c *gin.Context) {
	tenantID, jobID, ok := h.jobParams(c)
	if !ok {
		return
	}

	width := defaultThumbnailWidth
	if raw := c.Query("width"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxThumbnailWidth {
			h.BadRequest(c, fmt.Sprintf("width must be between 1 and %d", maxThumbnailWidth))
			return
		}
		width = n
	}

	data, err := h.exporter.Thumbnail(c.Request.Context(), tenantID, jobID, width)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	c.Data(http.StatusOK, "image/png", data)
}

// DeleteJob godoc
//
//	@ID				deleteExportJob
//
//	@Summary		Delete a finished export job and its image
//	@Tags			export-jobs
//	@Param			id	path	string	true	"Job ID"	format(uuid)
//	@Success		204
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Router			/export/jobs/{id} [delete]
func (h *ExportHandler) DeleteJob(c *gin.Context) {
	tenantID, jobID, ok := h.jobParams(c)
	if !ok {
		return
	}

	if err := h.exporter.DeleteJob(c.Request.Context(), tenantID, jobID); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}

// =============================================================================
// Helpers
// =============================================================================

func (h *ExportHandler) caller(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return uuid.Nil, uuid.Nil, false
	}
	userID, err := getUserID(c)
	if err != nil {
		h.BadRequest(c, "Invalid user ID")
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, userID, true
}

func (h *ExportHandler) jobParams(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return uuid.Nil, uuid.Nil, false
	}
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID format")
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, jobID, true
}

func cacheHeader(fromCache bool) string {
	if fromCache {
		return "HIT"
	}
	return "MISS"
}
