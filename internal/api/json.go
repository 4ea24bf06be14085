package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/gebo/internal/apperr"
)

// envelope is the tagged response wrapper every endpoint returns. Callers
// must branch on Success before touching Payload.
type envelope struct {
	Success bool   `json:"success"`
	Payload any    `json:"payload,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeSuccess(w http.ResponseWriter, status int, payload any) {
	writeJSON(w, status, envelope{Success: true, Payload: payload})
}

func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

// respondError maps domain errors onto HTTP failure envelopes.
func respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeFailure(w, http.StatusNotFound, "not found")
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeFailure(w, http.StatusConflict, "already exists")
	case errors.Is(err, apperr.ErrValidation):
		writeFailure(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeFailure(w, http.StatusInternalServerError, "internal error")
	}
}
