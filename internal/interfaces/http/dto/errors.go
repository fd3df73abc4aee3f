package dto

import (
	"net/http"

	"github.com/faasbill/backend/internal/domain/shared"
)

// Error codes returned in the error envelope. Format: ERR_<CATEGORY>
const (
	ErrCodeInternal        = "ERR_INTERNAL"
	ErrCodeValidation      = "ERR_VALIDATION"
	ErrCodeNotFound        = "ERR_NOT_FOUND"
	ErrCodeConfiguration   = "ERR_CONFIGURATION"
	ErrCodeConflict        = "ERR_CONFLICT"
	ErrCodeInvalidState    = "ERR_INVALID_STATE"
	ErrCodeTransient       = "ERR_TRANSIENT"
	ErrCodeRateLimited     = "ERR_RATE_LIMITED"
	ErrCodePayloadTooLarge = "ERR_PAYLOAD_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeNotFound:        http.StatusNotFound,
	ErrCodeConfiguration:   http.StatusUnprocessableEntity,
	ErrCodeConflict:        http.StatusConflict,
	ErrCodeInvalidState:    http.StatusUnprocessableEntity,
	ErrCodeTransient:       http.StatusServiceUnavailable,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodePayloadTooLarge: http.StatusRequestEntityTooLarge,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainCodes maps domain error codes to wire codes
var domainCodes = map[string]string{
	shared.CodeValidation:    ErrCodeValidation,
	shared.CodeNotFound:      ErrCodeNotFound,
	shared.CodeConfiguration: ErrCodeConfiguration,
	shared.CodeConflict:      ErrCodeConflict,
	shared.CodeInvalidState:  ErrCodeInvalidState,
	shared.CodeTransient:     ErrCodeTransient,
}

// NormalizeErrorCode converts a domain error code to its wire code.
// Unknown codes map to ERR_INTERNAL.
func NormalizeErrorCode(code string) string {
	if c, ok := domainCodes[code]; ok {
		return c
	}
	if _, ok := ErrorCodeHTTPStatus[code]; ok {
		return code
	}
	return ErrCodeInternal
}
