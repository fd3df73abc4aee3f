package dto

import (
	"strconv"

	"github.com/google/uuid"
)

// ErrorResponse is the envelope of every failed request
type ErrorResponse struct {
	Success   bool       `json:"success"`
	Error     *ErrorInfo `json:"error"`
	RequestID string     `json:"request_id,omitempty"`
}

// ErrorInfo represents error details
type ErrorInfo struct {
	Code    string             `json:"code"`
	Message string             `json:"message"`
	Details []ValidationDetail `json:"details,omitempty"`
}

// ValidationDetail describes one invalid request field
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewErrorResponse creates an error envelope
func NewErrorResponse(code, message, requestID string) ErrorResponse {
	return ErrorResponse{
		Success:   false,
		Error:     &ErrorInfo{Code: code, Message: message},
		RequestID: requestID,
	}
}

// NewValidationErrorResponse creates a validation error envelope with field details
func NewValidationErrorResponse(message, requestID string, details []ValidationDetail) ErrorResponse {
	resp := NewErrorResponse(ErrCodeValidation, message, requestID)
	resp.Error.Details = details
	return resp
}

// DataResponse wraps list results that the dashboard reads from a data field
type DataResponse[T any] struct {
	Data []T `json:"data"`
}

// IngestResponse reports the outcome of a usage batch
type IngestResponse struct {
	Accepted   int `json:"accepted"`
	Duplicates int `json:"duplicates"`
	Late       int `json:"late"`
}

// CloseResponse reports how many windows were closed
type CloseResponse struct {
	Closed int64 `json:"closed"`
}

// HealthResponse is the body of the health endpoint
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache,omitempty"`
	Time     string `json:"time"`
}

// PageQuery holds pagination query parameters
type PageQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// ParseUUIDParam parses a path or query value as a UUID
func ParseUUIDParam(raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	return id, err == nil && id != uuid.Nil
}

// ParseBoolQuery parses an optional boolean query value
func ParseBoolQuery(raw string, fallback bool) (bool, bool) {
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.ParseBool(raw)
	return v, err == nil
}
