package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/playperu/geoguess/internal/game"
)

type LeaderboardParams struct {
	Mode     string `query:"mode" enum:"all,classic,timed,no-move" default:"all"`
	Page     int    `query:"page" minimum:"1" default:"1"`
	PageSize int    `query:"pageSize" minimum:"1" maximum:"100" default:"20"`
}

type ModesResponse struct {
	Modes []game.ModeInfo `json:"modes"`
}

func handleModes(svc *game.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ModesResponse{Modes: svc.Modes()})
	}
}

func handleLeaderboard(logger *slog.Logger, svc *game.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, err := intParam(q.Get("page"))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "page must be an integer")
			return
		}
		pageSize, err := intParam(q.Get("pageSize"))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "pageSize must be an integer")
			return
		}

		res, err := svc.GetLeaderboard(r.Context(), game.LeaderboardQuery{
			Mode:     q.Get("mode"),
			Page:     page,
			PageSize: pageSize,
		})
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleUserStats(logger *slog.Logger, svc *game.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.GetUserStats(r.Context(), identity(r).UserID)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// intParam parses an optional integer query parameter; empty is zero.
func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
