package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/geoguess/internal/game"
	"github.com/playperu/geoguess/internal/geoguess"
)

type CreateGameRequest struct {
	Mode geoguess.Mode `json:"mode" required:"true" enum:"classic,timed,no-move"`
}

type GuessRequest struct {
	Lat       *float64 `json:"lat" required:"true" minimum:"-90" maximum:"90"`
	Lng       *float64 `json:"lng" required:"true" minimum:"-180" maximum:"180"`
	TimeSpent *int     `json:"timeSpent" required:"true" minimum:"0" description:"Seconds spent on the round."`

	// RoundNumber guards against replays when set.
	RoundNumber int `json:"roundNumber,omitempty" minimum:"1" maximum:"5" description:"Round being answered; omit for the current round."`
}

func handleCreateGame(logger *slog.Logger, svc *game.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateGameRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
			return
		}
		if req.Mode == "" {
			writeError(w, http.StatusBadRequest, codeValidation, "mode is required")
			return
		}

		res, err := svc.CreateGame(r.Context(), identity(r).UserID, req.Mode)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

func handleCurrentRound(logger *slog.Logger, svc *game.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.GetCurrentRound(r.Context(), chi.URLParam(r, "gameID"), identity(r).UserID)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func handleGuess(logger *slog.Logger, svc *game.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GuessRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
			return
		}
		switch {
		case req.Lat == nil:
			writeError(w, http.StatusBadRequest, codeValidation, "lat is required")
			return
		case req.Lng == nil:
			writeError(w, http.StatusBadRequest, codeValidation, "lng is required")
			return
		case req.TimeSpent == nil:
			writeError(w, http.StatusBadRequest, codeValidation, "timeSpent is required")
			return
		}

		res, err := svc.SubmitGuess(r.Context(), game.GuessInput{
			GameID:      chi.URLParam(r, "gameID"),
			UserID:      identity(r).UserID,
			Lat:         *req.Lat,
			Lng:         *req.Lng,
			TimeSpent:   *req.TimeSpent,
			RoundNumber: req.RoundNumber,
		})
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleResults(logger *slog.Logger, svc *game.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.GetGameResults(r.Context(), chi.URLParam(r, "gameID"), identity(r).UserID)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
