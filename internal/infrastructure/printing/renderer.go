package printing

import (
	"context"

	"github.com/storefront/backend/internal/infrastructure/raster"
)

// LoadRequest contains the parameters for loading markup into a browser tab
type LoadRequest struct {
	// HTML content to load. Fragments are wrapped in a complete document.
	HTML string
	// Selector of the element to export (default: body)
	Selector string
	// Title for the wrapping document (optional)
	Title string
}

// SurfaceLoader loads markup and returns it as an exportable surface
type SurfaceLoader interface {
	// Load renders the markup and returns the selected element. The caller
	// must Close the returned surface.
	Load(ctx context.Context, req *LoadRequest) (LoadedSurface, error)
}

// LoadedSurface is a raster.Surface that holds browser resources
type LoadedSurface interface {
	raster.Surface
	Close() error
}

// Browser is a surface loader that can also rasterize and await its own
// surfaces
type Browser interface {
	SurfaceLoader
	raster.Rasterizer
	raster.ReadinessSignal
	// Close releases any resources held by the browser
	Close() error
}

// RenderError represents an error while loading or capturing a page
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// Error codes for rendering failures
const (
	ErrCodeRenderTimeout      = "RENDER_TIMEOUT"
	ErrCodeRenderFailed       = "RENDER_FAILED"
	ErrCodeInvalidHTML        = "INVALID_HTML"
	ErrCodeElementNotFound    = "ELEMENT_NOT_FOUND"
	ErrCodeUnsupportedSurface = "UNSUPPORTED_SURFACE"
	ErrCodeStorageFailed      = "STORAGE_FAILED"
	ErrCodeArtifactNotFound   = "ARTIFACT_NOT_FOUND"
)

// NewRenderError creates a new RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
