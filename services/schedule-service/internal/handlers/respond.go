package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/catalog"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/conversation"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/daygrid"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/storage"
	"github.com/md-rashed-zaman/workhours/services/schedule-service/internal/timeline"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type inputErrorResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// writeError maps domain errors to status codes. Anything unknown is logged and becomes a 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error, what string) {
	var ie *catalog.InputError
	switch {
	case errors.As(err, &ie):
		writeJSON(w, http.StatusUnprocessableEntity, inputErrorResponse{Field: ie.Field, Message: ie.Message})
	case errors.Is(err, daygrid.ErrInvalidClick), errors.Is(err, timeline.ErrInvalidClick),
		errors.Is(err, daygrid.ErrInvalidGrid), errors.Is(err, timeline.ErrInvalidLine):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, daygrid.ErrMonthInPast),
		errors.Is(err, conversation.ErrNothingToSave),
		errors.Is(err, conversation.ErrNoWorkingHours):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case storage.IsNotFound(err):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrConflict):
		http.Error(w, "conflict", http.StatusConflict)
	default:
		logger.Error(what, "err", err)
		http.Error(w, what, http.StatusInternalServerError)
	}
}
