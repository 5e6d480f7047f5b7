package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeInvalidState, http.StatusUnprocessableEntity},
		{ErrCodeArtifactNotAvailable, http.StatusConflict},
		{ErrCodeRenderFailed, http.StatusUnprocessableEntity},
		{ErrCodeEncodeFailed, http.StatusInternalServerError},
		{ErrCodeStorageFailed, http.StatusInternalServerError},
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		// Field-level input codes
		{"ERR_INVALID_PADDING", http.StatusBadRequest},
		{"ERR_INVALID_CARD_NUMBER", http.StatusBadRequest},
		// Unknown code should return 500
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"NOT_FOUND", ErrCodeNotFound},
		{"INVALID_INPUT", ErrCodeInvalidInput},
		{"INVALID_STATE", ErrCodeInvalidState},
		{"RENDER_FAILED", ErrCodeRenderFailed},
		{"ENCODE_FAILED", ErrCodeEncodeFailed},
		{"ARTIFACT_NOT_AVAILABLE", ErrCodeArtifactNotAvailable},
		{"VALIDATION_ERROR", ErrCodeValidation},
		{"INTERNAL_ERROR", ErrCodeInternal},
		// Domain codes without a mapping gain the prefix
		{"INVALID_SCALE", "ERR_INVALID_SCALE"},
		// New codes pass through unchanged
		{ErrCodeNotFound, ErrCodeNotFound},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeErrorCode(tt.input))
		})
	}
}

func TestDomainAliasesHaveStatus(t *testing.T) {
	for domain, code := range domainAliases {
		_, ok := codeStatus[code]
		assert.True(t, ok, "%s maps to %s which has no HTTP status", domain, code)
	}
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	resp := NewSuccessResponseWithMeta([]int{1, 2}, 41, 2, 20)

	require.NotNil(t, resp.Meta)
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.Meta.TotalPages)
	assert.Equal(t, 2, resp.Meta.Page)

	empty := NewSuccessResponseWithMeta(nil, 0, 1, 0)
	assert.Equal(t, 0, empty.Meta.TotalPages)
}

func TestNewValidationErrorResponse_JSON(t *testing.T) {
	resp := NewValidationErrorResponse("Request validation failed", "req-1", []ValidationDetail{
		{Field: "html", Message: "This field is required"},
	})

	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, false, decoded["success"])

	errInfo := decoded["error"].(map[string]any)
	assert.Equal(t, ErrCodeValidation, errInfo["code"])
	assert.Equal(t, "req-1", errInfo["request_id"])
	details := errInfo["details"].([]any)
	require.Len(t, details, 1)
	assert.Equal(t, "html", details[0].(map[string]any)["field"])
}

func TestNewErrorResponse_OmitsEmptyRequestID(t *testing.T) {
	raw, err := json.Marshal(NewErrorResponse(ErrCodeNotFound, "missing"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "request_id")
	assert.NotContains(t, string(raw), "data")
}
