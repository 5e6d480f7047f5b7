package export

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// Request DTOs
// =============================================================================

// RenderOptionsDTO overrides engine options. Nil fields keep the configured
// defaults.
type RenderOptionsDTO struct {
	Scale          *float64 `json:"scale" binding:"omitempty,gt=0,lte=8"`
	Padding        *int     `json:"padding" binding:"omitempty,min=0,max=512"`
	WhiteThreshold *int     `json:"white_threshold" binding:"omitempty,min=0,max=255"`
	SampleStep     *int     `json:"sample_step" binding:"omitempty,min=1,max=64"`
	Background     *string  `json:"background" binding:"omitempty,max=9"`
}

// ExportWarrantyCardRequest represents a request to export a warranty card
type ExportWarrantyCardRequest struct {
	StoreName      string            `json:"store_name" binding:"required,max=100"`
	CardNumber     string            `json:"card_number" binding:"required,max=50"`
	CustomerName   string            `json:"customer_name" binding:"required,max=100"`
	CustomerPhone  string            `json:"customer_phone" binding:"max=30"`
	ProductName    string            `json:"product_name" binding:"required,max=200"`
	ProductSKU     string            `json:"product_sku" binding:"max=50"`
	SerialNumber   string            `json:"serial_number" binding:"max=100"`
	PurchaseDate   string            `json:"purchase_date" binding:"required,datetime=2006-01-02"`
	WarrantyMonths int               `json:"warranty_months" binding:"required,min=1,max=120"`
	PurchasePrice  decimal.Decimal   `json:"purchase_price"`
	Notes          string            `json:"notes" binding:"max=500"`
	Options        *RenderOptionsDTO `json:"options"`
}

// ExportHTMLRequest represents a request to export arbitrary markup
type ExportHTMLRequest struct {
	Reference string            `json:"reference" binding:"required,max=100"`
	HTML      string            `json:"html" binding:"required"`
	Selector  string            `json:"selector" binding:"max=200"`
	Title     string            `json:"title" binding:"max=200"`
	Options   *RenderOptionsDTO `json:"options"`
}

// PreviewRequest represents a request to render markup without creating a job
type PreviewRequest struct {
	HTML     string            `json:"html" binding:"required"`
	Selector string            `json:"selector" binding:"max=200"`
	Title    string            `json:"title" binding:"max=200"`
	Options  *RenderOptionsDTO `json:"options"`
}

// ListJobsRequest represents a request to list export jobs
type ListJobsRequest struct {
	Page         int    `form:"page" binding:"omitempty,min=1"`
	PageSize     int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy      string `form:"order_by"`
	OrderDir     string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Search       string `form:"search"`
	Status       string `form:"status"`
	ArtifactType string `form:"artifact_type"`
	Reference    string `form:"reference"`
}

// =============================================================================
// Response DTOs
// =============================================================================

// RenderOptionsResponse reports the options a job was rendered with
type RenderOptionsResponse struct {
	Scale          float64 `json:"scale"`
	Padding        int     `json:"padding"`
	WhiteThreshold int     `json:"white_threshold"`
	SampleStep     int     `json:"sample_step"`
	Background     string  `json:"background"`
}

// JobResponse represents an export job
type JobResponse struct {
	ID           string                `json:"id"`
	TenantID     string                `json:"tenant_id"`
	ArtifactType string                `json:"artifact_type"`
	Reference    string                `json:"reference"`
	Selector     string                `json:"selector"`
	Status       string                `json:"status"`
	Options      RenderOptionsResponse `json:"options"`
	Fingerprint  string                `json:"fingerprint,omitempty"`
	Width        int                   `json:"width,omitempty"`
	Height       int                   `json:"height,omitempty"`
	SizeBytes    int64                 `json:"size_bytes,omitempty"`
	ArtifactURL  string                `json:"artifact_url,omitempty"`
	FromCache    bool                  `json:"from_cache"`
	ErrorMessage string                `json:"error_message,omitempty"`
	RequestedBy  *string               `json:"requested_by,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	CompletedAt  *time.Time            `json:"completed_at,omitempty"`
}

// PreviewResponse is an image rendered without persistence
type PreviewResponse struct {
	Data         []byte
	ContentType  string
	Width        int
	Height       int
	SourceWidth  int
	SourceHeight int
	Trimmed      bool
	FromCache    bool
}
