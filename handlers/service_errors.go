package handlers

import (
	"errors"
	"net/http"

	"github.com/puanakeyla/ChatbotMasakanIndonesia/services"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses.
// Only validation and not-found messages reach the client verbatim.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)

	var writeErr error
	switch {
	case services.IsValidationError(err):
		writeErr = utils.WriteBadRequest(w, messageOf(err), details)

	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, messageOf(err))

	case services.IsConfigurationError(err):
		logger.Error("configuration error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "Service is not configured correctly")

	case services.IsIndexError(err):
		logger.Error("recipe index error", zap.Error(err))
		writeErr = utils.WriteError(w, http.StatusServiceUnavailable, "Recipe index is unavailable", nil)

	case services.IsBackendError(err):
		logger.Error("generation backend error", zap.Error(err))
		writeErr = utils.WriteError(w, http.StatusBadGateway, "Generation backend failed", nil)

	case services.IsInternalError(err):
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "An internal error occurred")

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var details map[string]interface{}
	message := err.Error()

	if utils.IsValidationError(err) {
		details = make(map[string]interface{})
		for k, v := range utils.GetValidationFields(err) {
			details[k] = v
		}
		message = "Validation failed"
	}

	if err := utils.WriteBadRequest(w, message, details); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}

func messageOf(err error) string {
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}
