package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/playperu/geoguess/internal/game"
	"github.com/playperu/geoguess/internal/geoguess"
)

type tx struct {
	queries
}

var _ game.Tx = (*tx)(nil)

func (t *tx) EnsureUser(ctx context.Context, userID string) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO users (id) VALUES (?)
		ON CONFLICT (id) DO NOTHING
	`, userID)
	return err
}

func (t *tx) InsertGame(ctx context.Context, g geoguess.Game, rounds []geoguess.Round) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO games (id, user_id, mode, status, current_round, total_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, g.ID, g.UserID, string(g.Mode), string(g.Status), g.CurrentRound, g.TotalScore, formatTime(g.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting game: %w", err)
	}

	for _, r := range rounds {
		_, err := t.q.ExecContext(ctx, `
			INSERT INTO rounds (id, game_id, round_number, actual_lat, actual_lng, image_id)
			VALUES (?, ?, ?, ?, ?, ?)
		`, r.ID, g.ID, r.RoundNumber, r.Actual.Lat, r.Actual.Lng, r.ImageID)
		if err != nil {
			return fmt.Errorf("inserting round %d: %w", r.RoundNumber, err)
		}
	}
	return nil
}

func (t *tx) RecordGuess(ctx context.Context, gameID string, roundNumber int, guess geoguess.Guess) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE rounds
		SET guess_lat = ?, guess_lng = ?, distance_km = ?, score = ?, time_spent = ?, guessed_at = ?
		WHERE game_id = ? AND round_number = ? AND guessed_at IS NULL
	`, guess.Coord.Lat, guess.Coord.Lng, guess.DistanceKm, guess.Score, guess.TimeSpent, formatTime(guess.GuessedAt),
		gameID, roundNumber)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	if _, err := t.GetRound(ctx, gameID, roundNumber); err != nil {
		return err
	}
	return game.ErrAlreadyGuessed
}

func (t *tx) AdvanceRound(ctx context.Context, gameID string, fromRound, totalScore int) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE games SET current_round = current_round + 1, total_score = ?
		WHERE id = ? AND current_round = ? AND status = 'in_progress'
	`, totalScore, gameID, fromRound)
	return expectOne(res, err, game.ErrAlreadyGuessed)
}

func (t *tx) CompleteGame(ctx context.Context, gameID string, totalScore int, at time.Time) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE games SET status = 'completed', total_score = ?, completed_at = ?
		WHERE id = ? AND status = 'in_progress'
	`, totalScore, formatTime(at), gameID)
	return expectOne(res, err, game.ErrInvalidState)
}

// GetUser needs no row lock: SQLite holds the database write lock for the
// rest of the transaction once it has written.
func (t *tx) GetUser(ctx context.Context, userID string) (geoguess.User, error) {
	return t.queries.GetUser(ctx, userID)
}

func (t *tx) SaveUserStats(ctx context.Context, u geoguess.User) error {
	var lastPlayed sql.NullString
	if u.LastPlayedAt != nil {
		lastPlayed = sql.NullString{String: formatTime(*u.LastPlayedAt), Valid: true}
	}
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO users (id, high_score, total_games, current_streak, longest_streak, last_played_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			high_score = excluded.high_score,
			total_games = excluded.total_games,
			current_streak = excluded.current_streak,
			longest_streak = excluded.longest_streak,
			last_played_at = excluded.last_played_at
	`, u.ID, u.HighScore, u.TotalGames, u.CurrentStreak, u.LongestStreak, lastPlayed)
	return err
}

func expectOne(res sql.Result, err error, none error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return none
	}
	return nil
}
