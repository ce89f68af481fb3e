package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/geoguess/internal/game"
)

type gamePath struct {
	GameID string `path:"gameID" description:"Game identifier."`
}

type guessOperation struct {
	gamePath
	GuessRequest
}

type HealthResponse struct {
	Status string `json:"status" enum:"ok,degraded"`
	Checks map[string]struct {
		Status    string `json:"status" enum:"ok,error"`
		LatencyMs int64  `json:"latency_ms"`
	} `json:"checks"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "GeoGuess API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the GeoGuess street-imagery guessing game.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /api/modes
	getModes, _ := r.NewOperationContext(http.MethodGet, "/api/modes")
	getModes.SetSummary("List game modes")
	getModes.AddRespStructure(ModesResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getModes)

	// POST /api/games
	postGame, _ := r.NewOperationContext(http.MethodPost, "/api/games")
	postGame.SetSummary("Start a game")
	postGame.SetDescription("Samples five locations and opens round 1. Requires Bearer token.")
	postGame.AddReqStructure(CreateGameRequest{})
	postGame.AddRespStructure(game.CreateGameResult{}, openapi.WithHTTPStatus(http.StatusCreated))
	postGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	postGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(postGame)

	// GET /api/games/{gameID}/round
	getRound, _ := r.NewOperationContext(http.MethodGet, "/api/games/{gameID}/round")
	getRound.SetSummary("Current round")
	getRound.SetDescription("Returns the open round without its answer. Requires Bearer token.")
	getRound.AddReqStructure(gamePath{})
	getRound.AddRespStructure(game.RoundView{}, openapi.WithHTTPStatus(http.StatusOK))
	getRound.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	getRound.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	getRound.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(getRound)

	// POST /api/games/{gameID}/guess
	postGuess, _ := r.NewOperationContext(http.MethodPost, "/api/games/{gameID}/guess")
	postGuess.SetSummary("Submit guess")
	postGuess.SetDescription("Scores a guess for the current round and advances or completes the game. Requires Bearer token.")
	postGuess.AddReqStructure(guessOperation{})
	postGuess.AddRespStructure(game.GuessResult{}, openapi.WithHTTPStatus(http.StatusOK))
	postGuess.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postGuess.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	postGuess.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	postGuess.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	postGuess.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusTooManyRequests))
	_ = r.AddOperation(postGuess)

	// GET /api/games/{gameID}/results
	getResults, _ := r.NewOperationContext(http.MethodGet, "/api/games/{gameID}/results")
	getResults.SetSummary("Game results")
	getResults.SetDescription("Round-by-round breakdown of a completed game. Requires Bearer token.")
	getResults.AddReqStructure(gamePath{})
	getResults.AddRespStructure(game.GameResults{}, openapi.WithHTTPStatus(http.StatusOK))
	getResults.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	getResults.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	getResults.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(getResults)

	// GET /api/leaderboard
	getLeaderboard, _ := r.NewOperationContext(http.MethodGet, "/api/leaderboard")
	getLeaderboard.SetSummary("Leaderboard")
	getLeaderboard.SetDescription("Completed games ranked by total score, earliest completion first on ties.")
	getLeaderboard.AddReqStructure(LeaderboardParams{})
	getLeaderboard.AddRespStructure(game.LeaderboardPage{}, openapi.WithHTTPStatus(http.StatusOK))
	getLeaderboard.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(getLeaderboard)

	// GET /api/me/stats
	getStats, _ := r.NewOperationContext(http.MethodGet, "/api/me/stats")
	getStats.SetSummary("Player statistics")
	getStats.SetDescription("Aggregates and recent games of the caller. Requires Bearer token.")
	getStats.AddRespStructure(game.UserStats{}, openapi.WithHTTPStatus(http.StatusOK))
	getStats.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getStats)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
