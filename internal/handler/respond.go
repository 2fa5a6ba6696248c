package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/FrontdeskLabs/reception-voice-service/internal/domain"
	"github.com/FrontdeskLabs/reception-voice-service/internal/repository"
	"github.com/FrontdeskLabs/reception-voice-service/pkg/logger"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logger.Base().Error("failed to encode response", zap.Error(err))
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError maps domain errors onto HTTP status codes. Unrecognized errors
// become a 500 without leaking internals.
func writeError(w http.ResponseWriter, err error) {
	var (
		validationErr  *domain.ValidationError
		configErr      *domain.ConfigError
		providerErr    *domain.ProviderError
		notConnected   *domain.NotConnectedError
		timeoutErr     *domain.TimeoutError
		persistenceErr *domain.PersistenceError
	)

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validationErr.Error(), Code: "validation_error"})
	case errors.As(err, &configErr):
		logger.Base().Error("configuration error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "service misconfigured", Code: "config_error"})
	case errors.As(err, &notConnected):
		writeJSON(w, http.StatusPreconditionFailed, errorResponse{Error: notConnected.Error(), Code: "not_connected"})
	case errors.As(err, &timeoutErr):
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: timeoutErr.Error(), Code: "provider_timeout"})
	case errors.As(err, &providerErr):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: providerErr.Error(), Code: "provider_error"})
	case errors.As(err, &persistenceErr):
		logger.Base().Error("persistence error", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "storage unavailable", Code: "persistence_error"})
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found", Code: "not_found"})
	default:
		logger.Base().Error("unhandled error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Code: "internal_error"})
	}
}
