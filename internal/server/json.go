package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/playperu/geoguess/internal/game"
)

const (
	codeValidation            = "validation_error"
	codeUnauthorized          = "unauthorized"
	codeForbidden             = "forbidden"
	codeNotFound              = "not_found"
	codeInvalidState          = "invalid_state"
	codeAlreadyGuessed        = "already_guessed"
	codeNoLocations           = "no_locations"
	codeInsufficientLocations = "insufficient_locations"
	codeStoreUnavailable      = "store_unavailable"
	codeRateLimited           = "rate_limited"
	codeInternal              = "internal"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

// writeServiceError maps a service error onto its status and code.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr *game.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, codeValidation, verr.Error())
	case errors.Is(err, game.ErrValidation):
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, game.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
	case errors.Is(err, game.ErrForbidden):
		writeError(w, http.StatusForbidden, codeForbidden, "game belongs to another player")
	case errors.Is(err, game.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "game not found")
	case errors.Is(err, game.ErrAlreadyGuessed):
		writeError(w, http.StatusConflict, codeAlreadyGuessed, "round already guessed")
	case errors.Is(err, game.ErrInvalidState):
		writeError(w, http.StatusConflict, codeInvalidState, err.Error())
	case errors.Is(err, game.ErrNoLocationsAvailable):
		writeError(w, http.StatusServiceUnavailable, codeNoLocations, "no locations available")
	case errors.Is(err, game.ErrInsufficientLocations):
		writeError(w, http.StatusServiceUnavailable, codeInsufficientLocations, "not enough locations for a game")
	case errors.Is(err, game.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, codeStoreUnavailable, "storage temporarily unavailable")
	default:
		logger.Error("unhandled service error", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}
