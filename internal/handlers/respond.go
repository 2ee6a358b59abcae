package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/BerylCAtieno/travel-extract/internal/models"
	"github.com/BerylCAtieno/travel-extract/internal/utils"
)

func respondJSON(w http.ResponseWriter, logger *utils.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", "error", err)
	}
}

// appError converts any error into an AppError, hiding the text of
// foreign errors.
func appError(err error) *utils.AppError {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return utils.NewInternalError("Internal server error")
}

func respondError(w http.ResponseWriter, logger *utils.Logger, err error) {
	e := appError(err)
	logger.Error("Request error", "status", e.StatusCode, "kind", string(e.Kind), "error", err)

	respondJSON(w, logger, e.StatusCode, models.ErrorResponse{
		Error:   e.Message,
		Kind:    string(e.Kind),
		Details: e.Details,
	})
}
