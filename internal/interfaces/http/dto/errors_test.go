package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeConfiguration, http.StatusUnprocessableEntity},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeInvalidState, http.StatusUnprocessableEntity},
		{ErrCodeTransient, http.StatusServiceUnavailable},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodePayloadTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeInternal, http.StatusInternalServerError},
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
		{shared.CodeValidation, ErrCodeValidation},
		{shared.CodeNotFound, ErrCodeNotFound},
		{shared.CodeConfiguration, ErrCodeConfiguration},
		{shared.CodeConflict, ErrCodeConflict},
		{shared.CodeInvalidState, ErrCodeInvalidState},
		{shared.CodeTransient, ErrCodeTransient},
		{ErrCodeRateLimited, ErrCodeRateLimited},
		{"SOMETHING_ELSE", ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeErrorCode(tt.input))
		})
	}
}

func TestErrorResponseJSON(t *testing.T) {
	data, err := json.Marshal(NewErrorResponse(ErrCodeNotFound, "bill x not found", "req-1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":{"code":"ERR_NOT_FOUND","message":"bill x not found"},"request_id":"req-1"}`, string(data))

	data, err = json.Marshal(NewValidationErrorResponse("Request validation failed", "", []ValidationDetail{{Field: "name", Message: "This field is required"}}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":{"code":"ERR_VALIDATION","message":"Request validation failed","details":[{"field":"name","message":"This field is required"}]}}`, string(data))
}

func TestParseHelpers(t *testing.T) {
	_, ok := ParseUUIDParam("not-a-uuid")
	assert.False(t, ok)
	_, ok = ParseUUIDParam("00000000-0000-0000-0000-000000000000")
	assert.False(t, ok)
	_, ok = ParseUUIDParam("6f1c1f8e-4b1a-4d43-9a53-0d5b0b9b8f11")
	assert.True(t, ok)

	v, ok := ParseBoolQuery("", true)
	assert.True(t, v)
	assert.True(t, ok)
	v, ok = ParseBoolQuery("false", true)
	assert.False(t, v)
	assert.True(t, ok)
	_, ok = ParseBoolQuery("maybe", false)
	assert.False(t, ok)
}
