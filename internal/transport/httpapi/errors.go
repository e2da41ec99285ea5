package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"booking/internal/service/appointments"
	"booking/internal/store"
)

const (
	codeInvalidRequest  = "invalid_request"
	codeInvalidInput    = "invalid_input"
	codeInvalidInterval = "invalid_interval"
	codeConflict        = "scheduling_conflict"
	codeNotFound        = "not_found"
	codeUnavailable     = "store_unavailable"
	codeInternal        = "internal"
	codeTooLarge        = "request_too_large"
	codeRateLimited     = "rate_limited"
	codeRateLimiterDown = "rate_limiter_unavailable"
	codeMethod          = "method_not_allowed"
)

type errorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{ErrorCode: code, Message: msg})
}

// writeServiceError maps the engine error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, log *slog.Logger, msg string, err error) {
	var vErr *appointments.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, codeInvalidInput, vErr.Error())
	case errors.Is(err, appointments.ErrInvalidInterval):
		writeError(w, http.StatusBadRequest, codeInvalidInterval, "The end time must be after the start time.")
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, codeConflict, "This time slot is already booked. Please choose another one.")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "Appointment not found.")
	case errors.Is(err, store.ErrUnavailable):
		log.Error(msg, slog.Any("err", err))
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "Storage is temporarily unavailable. Try again.")
	default:
		log.Error(msg, slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}
