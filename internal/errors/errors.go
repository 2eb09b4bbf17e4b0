package errors

import (
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/stwalsh4118/covenant/internal/middleware"
)

// Error code constants for standardized error responses
const (
	ErrNotFound           = "NOT_FOUND"
	ErrBadRequest         = "BAD_REQUEST"
	ErrConflict           = "CONFLICT"
	ErrInternalServer     = "INTERNAL_SERVER_ERROR"
	ErrValidation         = "VALIDATION_ERROR"
	ErrServiceUnavailable = "SERVICE_UNAVAILABLE"
)

var (
	translator ut.Translator

	registerOnce sync.Once
	registerErr  error
)

func init() {
	translator, _ = ut.New(en.New()).GetTranslator("en")
}

// ErrorResponse is the top-level error response structure.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// RegisterValidator installs English messages on v and makes it report
// fields by their JSON names. The translations can be registered only once
// per process, so only the first validator passed is configured; gin binds
// every request through a single engine.
func RegisterValidator(v *validator.Validate) error {
	registerOnce.Do(func() {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		registerErr = entranslations.RegisterDefaultTranslations(v, translator)
	})
	return registerErr
}

func write(c *gin.Context, status int, code, message string, details map[string]interface{}) {
	c.JSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: middleware.GetRequestID(c),
		},
	})
}

func logFields(c *gin.Context, message string) map[string]interface{} {
	return map[string]interface{}{
		"message":    message,
		"request_id": middleware.GetRequestID(c),
		"path":       c.Request.URL.Path,
	}
}

// NotFound returns a 404 Not Found error response.
func NotFound(c *gin.Context, message string) {
	if log := middleware.GetLogger(c); log != nil {
		log.Warn("Resource not found", logFields(c, message))
	}
	write(c, http.StatusNotFound, ErrNotFound, message, nil)
}

// BadRequest returns a 400 Bad Request error response with optional details.
func BadRequest(c *gin.Context, message string, details map[string]interface{}) {
	if log := middleware.GetLogger(c); log != nil {
		fields := logFields(c, message)
		if details != nil {
			fields["details"] = details
		}
		log.Warn("Bad request", fields)
	}
	write(c, http.StatusBadRequest, ErrBadRequest, message, details)
}

// Conflict returns a 409 Conflict error response for a request that is valid
// but not allowed in the resource's current state.
func Conflict(c *gin.Context, message string) {
	if log := middleware.GetLogger(c); log != nil {
		log.Warn("Conflict", logFields(c, message))
	}
	write(c, http.StatusConflict, ErrConflict, message, nil)
}

// ServiceUnavailable returns a 503 response for a dependency that failed
// after retries. The client may retry the request.
func ServiceUnavailable(c *gin.Context, message string, err error) {
	if log := middleware.GetLogger(c); log != nil {
		log.Error("Service unavailable", err, logFields(c, message))
	}
	c.Header("Retry-After", "5")
	write(c, http.StatusServiceUnavailable, ErrServiceUnavailable, message, nil)
}

// InternalServerError returns a 500 Internal Server Error response.
// The error is logged but never exposed to the client.
func InternalServerError(c *gin.Context, message string, err error) {
	if log := middleware.GetLogger(c); log != nil {
		fields := logFields(c, message)
		fields["method"] = c.Request.Method
		log.Error("Internal server error", err, fields)
	}
	write(c, http.StatusInternalServerError, ErrInternalServer, message, nil)
}

// ValidationError returns a 400 Bad Request error response with field-specific validation errors.
func ValidationError(c *gin.Context, validationErrors validator.ValidationErrors) {
	details := make(map[string]interface{}, len(validationErrors))
	for _, err := range validationErrors {
		details[err.Field()] = formatValidationError(err)
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Warn("Validation error", map[string]interface{}{
			"request_id": middleware.GetRequestID(c),
			"path":       c.Request.URL.Path,
			"fields":     details,
		})
	}

	write(c, http.StatusBadRequest, ErrValidation, "Validation failed for one or more fields", details)
}

// formatValidationError converts a validator.FieldError to a human-readable
// message, preferring the registered translation.
func formatValidationError(err validator.FieldError) string {
	if msg := err.Translate(translator); msg != "" && msg != err.Error() {
		return msg
	}

	switch err.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Must be a valid email address"
	case "min":
		return "Value is too short or small (minimum: " + err.Param() + ")"
	case "max":
		return "Value is too long or large (maximum: " + err.Param() + ")"
	case "gt":
		return "Must be greater than " + err.Param()
	case "gte":
		return "Must be greater than or equal to " + err.Param()
	case "lte":
		return "Must be less than or equal to " + err.Param()
	case "oneof":
		return "Must be one of: " + err.Param()
	case "uuid":
		return "Must be a valid UUID"
	default:
		return "Validation failed for tag: " + err.Tag()
	}
}
