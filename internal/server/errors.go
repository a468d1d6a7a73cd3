package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	businessdomain "github.com/smallbiznis/reviewboost/internal/business/domain"
	obsmiddleware "github.com/smallbiznis/reviewboost/internal/observability/logger"
	outreachdomain "github.com/smallbiznis/reviewboost/internal/outreach/domain"
	"github.com/smallbiznis/reviewboost/internal/providers/dispatch"
	"github.com/smallbiznis/reviewboost/internal/providers/places"
	"github.com/smallbiznis/reviewboost/internal/providers/textgen"
	redirectdomain "github.com/smallbiznis/reviewboost/internal/redirect/domain"
	reviewdomain "github.com/smallbiznis/reviewboost/internal/reviewrequest/domain"
	shortcodedomain "github.com/smallbiznis/reviewboost/internal/shortcode/domain"
	"github.com/smallbiznis/reviewboost/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		logMappedError(c, status, lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func logMappedError(c *gin.Context, status int, err error) {
	log := obsmiddleware.FromContext(c.Request.Context())
	switch {
	case errors.Is(err, shortcodedomain.ErrCodeSpaceExhausted):
		log.Error("short code space exhausted", zap.String("route", c.FullPath()))
	case errors.Is(err, reviewdomain.ErrInvalidTransition):
		log.Warn("review request transition rejected", zap.String("route", c.FullPath()), zap.Error(err))
	case status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable && status != http.StatusBadGateway:
		log.Error("request failed", zap.String("route", c.FullPath()), zap.Error(err))
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, reviewdomain.ErrInvalidTransition):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "review request is not in a state that allows this action",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, dispatch.ErrConfiguration):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	case errors.Is(err, dispatch.ErrBackendUnavailable),
		errors.Is(err, textgen.ErrGeneration):
		return http.StatusBadGateway, errorPayload{
			Type:    "upstream_error",
			Message: "upstream service failed",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, pagination.ErrInvalidPageToken),
		errors.Is(err, outreachdomain.ErrNoContacts),
		errors.Is(err, outreachdomain.ErrTooManyContacts),
		errors.Is(err, outreachdomain.ErrBusinessRequired),
		errors.Is(err, outreachdomain.ErrNoItems),
		errors.Is(err, outreachdomain.ErrTooManyItems),
		errors.Is(err, businessdomain.ErrInvalidPlaceID),
		errors.Is(err, businessdomain.ErrInvalidName),
		errors.Is(err, businessdomain.ErrInvalidReference),
		errors.Is(err, reviewdomain.ErrInvalidContact),
		errors.Is(err, reviewdomain.ErrInvalidText),
		errors.Is(err, reviewdomain.ErrInvalidShortCode),
		errors.Is(err, reviewdomain.ErrInvalidBusiness),
		errors.Is(err, dispatch.ErrInvalidContact),
		errors.Is(err, places.ErrEmptyInput):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, businessdomain.ErrNotFound),
		errors.Is(err, reviewdomain.ErrNotFound),
		errors.Is(err, shortcodedomain.ErrNotFound),
		errors.Is(err, redirectdomain.ErrNotFound),
		errors.Is(err, places.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// validationErrorCode reports the sentinel behind err, not the wrapped detail.
func validationErrorCode(err error) string {
	for _, sentinel := range []error{
		ErrInvalidRequest,
		pagination.ErrInvalidPageToken,
		outreachdomain.ErrNoContacts,
		outreachdomain.ErrTooManyContacts,
		outreachdomain.ErrBusinessRequired,
		outreachdomain.ErrNoItems,
		outreachdomain.ErrTooManyItems,
		businessdomain.ErrInvalidPlaceID,
		businessdomain.ErrInvalidName,
		businessdomain.ErrInvalidReference,
		reviewdomain.ErrInvalidContact,
		reviewdomain.ErrInvalidText,
		reviewdomain.ErrInvalidShortCode,
		reviewdomain.ErrInvalidBusiness,
		dispatch.ErrInvalidContact,
		places.ErrEmptyInput,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	if field, _, ok := strings.Cut(code, "_"); ok {
		return field
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_contact":
		return "contact must be a 10-digit US number, an E.164 number or an email address"
	case "contacts_required":
		return "at least one contact is required"
	case "too_many_contacts":
		return "too many contacts in one batch"
	case "items_required":
		return "at least one item is required"
	case "too_many_items":
		return "too many items in one batch"
	case "business_required":
		return "business_id or place_url is required"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog feeds the request logger with a stable type and code.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}
