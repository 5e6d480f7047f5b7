package raster

// Error codes for export failures
const (
	ErrCodeInvalidScale     = "INVALID_SCALE"
	ErrCodeInvalidStep      = "INVALID_SAMPLE_STEP"
	ErrCodeInvalidThreshold = "INVALID_WHITE_THRESHOLD"
	ErrCodeInvalidPadding   = "INVALID_PADDING"
	ErrCodeInvalidSurface   = "INVALID_SURFACE"
	ErrCodeRasterizeFailed  = "RASTERIZE_FAILED"
	ErrCodeEmptyRaster      = "EMPTY_RASTER"
	ErrCodeEncodeFailed     = "ENCODE_FAILED"
	ErrCodeEmptyOutput      = "EMPTY_OUTPUT"
	ErrCodeBadOutputFormat  = "BAD_OUTPUT_FORMAT"
	ErrCodeCancelled        = "CANCELLED"
)

// ConfigError reports caller-supplied options that cannot be used.
// It is always returned before any rendering work starts.
type ConfigError struct {
	Code    string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// NewConfigError creates a new ConfigError
func NewConfigError(code, message string) *ConfigError {
	return &ConfigError{Code: code, Message: message}
}

// RenderError reports a surface that could not be rasterized or produced a
// degenerate bitmap.
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

// NewRenderError creates a new RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{Code: code, Message: message, Cause: cause}
}

// EncodeError reports a bitmap that could not be serialized to PNG.
type EncodeError struct {
	Code    string
	Message string
	Cause   error
}

func (e *EncodeError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *EncodeError) Unwrap() error {
	return e.Cause
}

// NewEncodeError creates a new EncodeError
func NewEncodeError(code, message string, cause error) *EncodeError {
	return &EncodeError{Code: code, Message: message, Cause: cause}
}
