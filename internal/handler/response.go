package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"visadesk/internal/repository"
	"visadesk/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse wraps a payload with a machine-readable result code.
type SuccessResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// respondSuccess sends a 200 with the result code envelope.
func respondSuccess(c *gin.Context, message string, data any) {
	respondJSON(c, http.StatusOK, SuccessResponse{Message: message, Data: data})
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrProviderRejected),
		errors.Is(err, service.ErrInvalidSessionID),
		errors.Is(err, service.ErrInvalidApplicationID),
		errors.Is(err, service.ErrSignatureVerification),
		errors.Is(err, service.ErrPayloadParse):
		return http.StatusBadRequest

	// Card declined
	case errors.Is(err, service.ErrCardDeclined):
		return http.StatusPaymentRequired

	// Conflict errors
	case errors.Is(err, repository.ErrSessionAlreadyAttached),
		errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict

	// Upstream provider failures
	case errors.Is(err, service.ErrSessionCreationFailed),
		errors.Is(err, service.ErrUnknownProvider):
		return http.StatusBadGateway

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
