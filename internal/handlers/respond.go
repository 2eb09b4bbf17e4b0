package handlers

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/stwalsh4118/covenant/internal/database"
	apierrors "github.com/stwalsh4118/covenant/internal/errors"
	"github.com/stwalsh4118/covenant/internal/services"
)

// respondError maps a service error onto the HTTP error envelope. fallback is
// the client message for errors that carry no meaning for the caller.
func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrPropertyNotFound),
		errors.Is(err, services.ErrViolationNotFound),
		errors.Is(err, services.ErrViolationNotActionable),
		errors.Is(err, services.ErrBillNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrNotPendingReview),
		errors.Is(err, services.ErrBillAlreadyPaid):
		apierrors.Conflict(c, err.Error())
	case errors.Is(err, services.ErrInvalidProperty),
		errors.Is(err, services.ErrInvalidViolation):
		apierrors.BadRequest(c, err.Error(), nil)
	case errors.Is(err, services.ErrAnalysisUnavailable):
		apierrors.ServiceUnavailable(c, "Violation analysis is not available", err)
	case errors.Is(err, database.ErrStoreUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		apierrors.ServiceUnavailable(c, "Store temporarily unavailable, please retry", err)
	default:
		apierrors.InternalServerError(c, fallback, err)
	}
}

// bindJSON binds the request body into req, writing the error response on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			apierrors.ValidationError(c, validationErrors)
			return false
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return false
	}
	return true
}

// pathID parses a UUID path parameter, writing a 400 on failure.
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		apierrors.BadRequest(c, "Invalid "+name, map[string]interface{}{
			name: c.Param(name),
		})
		return uuid.Nil, false
	}
	return id, true
}
