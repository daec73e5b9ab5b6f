package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/pdfsigner/internal/common"
)

const internalErrorMessage = "internal server error"

// statusFor maps service errors to HTTP status codes and client-safe
// messages. Anything unrecognised is reported as a 500 without detail.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrInvalidToken):
		return http.StatusBadRequest, common.ErrInvalidToken.Error()
	case errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, common.ErrTokenExpired.Error()
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, "you do not have access to this document"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, common.ErrAlreadyFinalized):
		return http.StatusConflict, common.ErrAlreadyFinalized.Error()
	case errors.Is(err, common.ErrSignaturesChanged):
		return http.StatusConflict, common.ErrSignaturesChanged.Error()
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusConflict, "already exists"
	case errors.Is(err, common.ErrFatalIO):
		return http.StatusInternalServerError, common.ErrFatalIO.Error()
	default:
		return http.StatusInternalServerError, internalErrorMessage
	}
}

// writeError sends the error body {"error", "request_id"} plus "field" for
// validation errors. Server-side failures are logged with the full error.
func (h *Handler) writeError(c *gin.Context, err error) {
	status, msg := statusFor(err)

	if status >= http.StatusInternalServerError {
		h.logger.Error(c.Request.Context(), "request failed", "error", err, "path", c.FullPath())
	}

	body := gin.H{
		"error":      msg,
		"request_id": GetRequestID(c),
	}
	var ve *common.ValidationError
	if errors.As(err, &ve) {
		body["error"] = ve.Message
		if ve.Field != "" {
			body["field"] = ve.Field
		}
	}

	c.AbortWithStatusJSON(status, body)
}

func (h *Handler) badRequest(c *gin.Context, field, msg string) {
	h.writeError(c, common.NewValidationError(field, msg))
}
