package game

import (
	"time"

	"github.com/playperu/geoguess/internal/geo"
	"github.com/playperu/geoguess/internal/geoguess"
)

// RoundView is what a player sees of a round before guessing.
type RoundView struct {
	RoundNumber   int    `json:"roundNumber"`
	ImageID       string `json:"imageId"`
	Provider      string `json:"provider"`
	TotalRounds   int    `json:"totalRounds"`
	TimeLimit     *int   `json:"timeLimit"`
	AllowMovement bool   `json:"allowMovement"`
}

type CreateGameResult struct {
	GameID     string        `json:"gameId"`
	Mode       geoguess.Mode `json:"mode"`
	FirstRound RoundView     `json:"firstRound"`
}

type GuessInput struct {
	GameID    string
	UserID    string
	Lat       float64
	Lng       float64
	TimeSpent int

	// RoundNumber optionally names the round being answered. Zero means
	// the current round.
	RoundNumber int
}

type RoundResult struct {
	RoundNumber int     `json:"roundNumber"`
	GuessLat    float64 `json:"guessLat"`
	GuessLng    float64 `json:"guessLng"`
	ActualLat   float64 `json:"actualLat"`
	ActualLng   float64 `json:"actualLng"`
	Distance    float64 `json:"distance"`
	Score       int     `json:"score"`
	TimeSpent   int     `json:"timeSpent"`
	Rating      string  `json:"rating"`
}

type GuessResult struct {
	RoundResult  RoundResult `json:"roundResult"`
	NextRound    *RoundView  `json:"nextRound"`
	GameComplete bool        `json:"gameComplete"`
	TotalScore   int         `json:"totalScore"`
}

type GameResults struct {
	GameID           string        `json:"gameId"`
	Mode             geoguess.Mode `json:"mode"`
	TotalScore       int           `json:"totalScore"`
	MaxPossibleScore int           `json:"maxPossibleScore"`
	Rounds           []RoundResult `json:"rounds"`
	CompletedAt      time.Time     `json:"completedAt"`
}

type LeaderboardQuery struct {
	// Mode is a game mode or "all".
	Mode     string
	Page     int
	PageSize int
}

type LeaderboardEntry struct {
	Rank        int           `json:"rank"`
	GameID      string        `json:"gameId"`
	UserID      string        `json:"userId"`
	UserName    string        `json:"userName"`
	TotalScore  int           `json:"totalScore"`
	Mode        geoguess.Mode `json:"mode"`
	CompletedAt time.Time     `json:"completedAt"`
}

type LeaderboardPage struct {
	Entries  []LeaderboardEntry `json:"entries"`
	Total    int                `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"pageSize"`
}

type GameSummary struct {
	GameID      string        `json:"gameId"`
	Mode        geoguess.Mode `json:"mode"`
	TotalScore  int           `json:"totalScore"`
	CompletedAt time.Time     `json:"completedAt"`
}

type ModeBest struct {
	HighScore   int `json:"highScore"`
	GamesPlayed int `json:"gamesPlayed"`
}

// PlayerHistory aggregates a user's completed games.
type PlayerHistory struct {
	AverageScore   float64
	CompletedGames int
	Recent         []GameSummary
	BestByMode     map[geoguess.Mode]ModeBest
}

type UserStats struct {
	HighScore      int                        `json:"highScore"`
	TotalGames     int                        `json:"totalGames"`
	CurrentStreak  int                        `json:"currentStreak"`
	LongestStreak  int                        `json:"longestStreak"`
	LastPlayedAt   *time.Time                 `json:"lastPlayedAt"`
	MemberSince    time.Time                  `json:"memberSince"`
	AverageScore   int                        `json:"averageScore"`
	CompletedGames int                        `json:"completedGames"`
	RecentGames    []GameSummary              `json:"recentGames"`
	BestByMode     map[geoguess.Mode]ModeBest `json:"bestByMode"`
}

type ModeInfo struct {
	Mode          geoguess.Mode `json:"mode"`
	Label         string        `json:"label"`
	Description   string        `json:"description"`
	AllowMovement bool          `json:"allowMovement"`
	TimeLimit     *int          `json:"timeLimit"`
}

func roundResult(r geoguess.Round) RoundResult {
	res := RoundResult{
		RoundNumber: r.RoundNumber,
		ActualLat:   r.Actual.Lat,
		ActualLng:   r.Actual.Lng,
	}
	if r.Guess != nil {
		res.GuessLat = r.Guess.Coord.Lat
		res.GuessLng = r.Guess.Coord.Lng
		res.Distance = r.Guess.DistanceKm
		res.Score = r.Guess.Score
		res.TimeSpent = r.Guess.TimeSpent
		res.Rating = geo.Rating(r.Guess.Score)
	}
	return res
}
