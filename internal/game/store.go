package game

import (
	"context"
	"time"

	"github.com/playperu/geoguess/internal/geoguess"
)

// Reader is the read side shared by the store and its transactions.
type Reader interface {
	// GetGame returns ErrNotFound when no game has the id.
	GetGame(ctx context.Context, gameID string) (geoguess.Game, error)
	// GetRound returns ErrNotFound when the game has no such round.
	GetRound(ctx context.Context, gameID string, roundNumber int) (geoguess.Round, error)
	// ListRounds returns the rounds ordered by round number.
	ListRounds(ctx context.Context, gameID string) ([]geoguess.Round, error)
}

// Tx is the write surface available inside Store.InTx.
type Tx interface {
	Reader

	// EnsureUser creates the aggregate row for userID if it is missing.
	EnsureUser(ctx context.Context, userID string) error
	InsertGame(ctx context.Context, g geoguess.Game, rounds []geoguess.Round) error

	// RecordGuess writes every guess field of a pending round in one
	// conditional update. It returns ErrAlreadyGuessed when the round
	// already carries a guess.
	RecordGuess(ctx context.Context, gameID string, roundNumber int, guess geoguess.Guess) error
	// AdvanceRound sets the running total and moves current_round from
	// fromRound to fromRound+1. It returns ErrAlreadyGuessed when the game
	// is no longer at fromRound.
	AdvanceRound(ctx context.Context, gameID string, fromRound, totalScore int) error
	// CompleteGame finalizes an in-progress game. It returns
	// ErrInvalidState when the game is not in progress.
	CompleteGame(ctx context.Context, gameID string, totalScore int, at time.Time) error

	// GetUser returns the user's aggregates, locking the row until the
	// transaction ends where the store supports row locks. It returns
	// ErrNotFound when the user has no row yet.
	GetUser(ctx context.Context, userID string) (geoguess.User, error)
	SaveUserStats(ctx context.Context, u geoguess.User) error
}

// Store is the transactional record store the service runs on.
type Store interface {
	Reader

	// InTx runs fn in a single transaction. A non-nil error from fn rolls
	// back every write made through tx.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	SetDisplayName(ctx context.Context, userID, name string) error
	GetUser(ctx context.Context, userID string) (geoguess.User, error)

	// Leaderboard returns completed games ordered by total score
	// descending, then completion time ascending, and the total count.
	// An empty mode matches every mode.
	Leaderboard(ctx context.Context, mode geoguess.Mode, offset, limit int) ([]LeaderboardEntry, int, error)
	PlayerHistory(ctx context.Context, userID string, recent int) (PlayerHistory, error)
}

// LocationSampler picks the locations of a new game.
type LocationSampler interface {
	Sample(ctx context.Context, count int) ([]geoguess.Location, error)
}

// LeaderboardCache keeps rendered leaderboard pages. Implementations are
// best effort; the service logs and ignores their errors.
//
// Get reports the cache generation it read under, and Set stores the page
// under that generation. A page computed before an Invalidate is therefore
// never visible after it.
type LeaderboardCache interface {
	Get(ctx context.Context, key string) (page LeaderboardPage, gen int64, ok bool, err error)
	Set(ctx context.Context, key string, gen int64, page LeaderboardPage) error
	Invalidate(ctx context.Context) error
}

// Metrics receives game lifecycle observations.
type Metrics interface {
	GameCreated(mode geoguess.Mode)
	RoundScored(mode geoguess.Mode, score int, distanceKm float64)
	GameCompleted(mode geoguess.Mode, totalScore int)
	GuessRejected(reason string)
}

type noopMetrics struct{}

func (noopMetrics) GameCreated(geoguess.Mode) {}
func (noopMetrics) RoundScored(geoguess.Mode, int, float64) {}
func (noopMetrics) GameCompleted(geoguess.Mode, int) {}
func (noopMetrics) GuessRejected(string) {}
