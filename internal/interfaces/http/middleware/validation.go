package middleware

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/faasbill/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// SetupValidator configures gin's validator: errors name fields by their
// JSON or form tag, and decimals validate as numbers (gte=0 etc.).
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// FormatValidationErrors turns binding errors into the error envelope.
// Non-validator errors (malformed JSON, bad time format) carry no details.
func FormatValidationErrors(err error, requestID string) dto.ErrorResponse {
	var details []dto.ValidationDetail

	var elementErrors ElementErrors
	var sliceErrors binding.SliceValidationError
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &elementErrors):
		for _, el := range elementErrors {
			if errors.As(el.Err, &validationErrors) {
				details = appendDetails(details, "["+strconv.Itoa(el.Index)+"].", validationErrors)
			}
		}
		return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
	case errors.As(err, &sliceErrors):
		// gin drops element positions, so only field names are reported
		for _, elemErr := range sliceErrors {
			if errors.As(elemErr, &validationErrors) {
				details = appendDetails(details, "", validationErrors)
			}
		}
		return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
	case errors.As(err, &validationErrors):
		details = appendDetails(details, "", validationErrors)
		return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
	}

	return dto.NewValidationErrorResponse("Malformed request: "+err.Error(), requestID, nil)
}

// ElementError is a validation failure of one batch element
type ElementError struct {
	Index int
	Err   error
}

// ElementErrors collects per-element failures of a batch
type ElementErrors []ElementError

func (e ElementErrors) Error() string {
	var b strings.Builder
	for i, el := range e {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString("[" + strconv.Itoa(el.Index) + "]: " + el.Err.Error())
	}
	return b.String()
}

// ValidateElements validates every element with gin's validator and keeps
// the positions of the failing ones
func ValidateElements[T any](items []T) error {
	var errs ElementErrors
	for i := range items {
		if err := binding.Validator.ValidateStruct(&items[i]); err != nil {
			errs = append(errs, ElementError{Index: i, Err: err})
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// HandleValidationError writes a 400 validation envelope
func HandleValidationError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(dto.GetHTTPStatus(dto.ErrCodeValidation), FormatValidationErrors(err, GetRequestID(c)))
}

func appendDetails(details []dto.ValidationDetail, prefix string, errs validator.ValidationErrors) []dto.ValidationDetail {
	for _, e := range errs {
		details = append(details, dto.ValidationDetail{
			Field:   prefix + fieldPath(e),
			Message: getValidationMessage(e),
		})
	}
	return details
}

// fieldPath drops the root struct name: "EventInput.event_id" -> "event_id",
// "ingestRequest.events[2].tenant_id" -> "events[2].tenant_id"
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "len":
		return "Must be exactly " + e.Param() + " characters"
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "lte":
		return "Must be less than or equal to " + e.Param()
	case "gt":
		return "Must be greater than " + e.Param()
	case "iso4217":
		return "Must be an ISO 4217 currency code"
	case "dive":
		return "Invalid element"
	default:
		return "Invalid value"
	}
}
