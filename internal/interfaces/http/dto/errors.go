package dto

import (
	"net/http"
	"strings"
)

// API error codes. Domain errors carry the same names without the ERR_
// prefix.
const (
	ErrCodeInternal             = "ERR_INTERNAL"
	ErrCodeValidation           = "ERR_VALIDATION"
	ErrCodeBadRequest           = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput         = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON          = "ERR_INVALID_JSON"
	ErrCodeRequestTooLarge      = "ERR_REQUEST_TOO_LARGE"
	ErrCodeNotFound             = "ERR_NOT_FOUND"
	ErrCodeConflict             = "ERR_CONFLICT"
	ErrCodeInvalidState         = "ERR_INVALID_STATE"
	ErrCodeArtifactNotAvailable = "ERR_ARTIFACT_NOT_AVAILABLE"
	ErrCodeRenderFailed         = "ERR_RENDER_FAILED"
	ErrCodeEncodeFailed         = "ERR_ENCODE_FAILED"
	ErrCodeStorageFailed        = "ERR_STORAGE_FAILED"
	ErrCodeRateLimited          = "ERR_RATE_LIMITED"
)

var codeStatus = map[string]int{
	ErrCodeInternal:             http.StatusInternalServerError,
	ErrCodeValidation:           http.StatusBadRequest,
	ErrCodeBadRequest:           http.StatusBadRequest,
	ErrCodeInvalidInput:         http.StatusBadRequest,
	ErrCodeInvalidJSON:          http.StatusBadRequest,
	ErrCodeRequestTooLarge:      http.StatusRequestEntityTooLarge,
	ErrCodeNotFound:             http.StatusNotFound,
	ErrCodeConflict:             http.StatusConflict,
	ErrCodeInvalidState:         http.StatusUnprocessableEntity,
	ErrCodeArtifactNotAvailable: http.StatusConflict,
	ErrCodeRenderFailed:         http.StatusUnprocessableEntity,
	ErrCodeEncodeFailed:         http.StatusInternalServerError,
	ErrCodeStorageFailed:        http.StatusInternalServerError,
	ErrCodeRateLimited:          http.StatusTooManyRequests,
}

// domainAliases are domain codes whose API name is not just ERR_ + code
var domainAliases = map[string]string{
	"VALIDATION_ERROR": ErrCodeValidation,
	"INTERNAL_ERROR":   ErrCodeInternal,
}

// GetHTTPStatus maps an API error code to its status. Unlisted
// ERR_INVALID_* codes are field-level input errors (400); any other unknown
// code is a 500.
func GetHTTPStatus(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	if strings.HasPrefix(code, "ERR_INVALID_") {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// NormalizeErrorCode turns a domain error code into its API form. Codes
// already carrying ERR_ are returned unchanged.
func NormalizeErrorCode(code string) string {
	if alias, ok := domainAliases[code]; ok {
		return alias
	}
	if code == "" || strings.HasPrefix(code, "ERR_") {
		return code
	}
	return "ERR_" + code
}
