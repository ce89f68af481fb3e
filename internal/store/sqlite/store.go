// Package sqlite implements the game store on SQLite through libSQL.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/playperu/geoguess/internal/game"
	"github.com/playperu/geoguess/internal/geoguess"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000Z"

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	queries
	db *sql.DB
}

var _ game.Store = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{queries: queries{q: db}, db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx game.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(ctx, &tx{queries{q: sqlTx}}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *Store) SetDisplayName(ctx context.Context, userID, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET display_name = excluded.display_name
	`, userID, name)
	return err
}

// AbandonIdle marks in-progress games with no activity since cutoff as
// abandoned and reports how many changed. Activity is the latest guess, or
// creation when no round has been answered.
func (s *Store) AbandonIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE games SET status = 'abandoned'
		WHERE status = 'in_progress'
		  AND COALESCE(
		        (SELECT MAX(guessed_at) FROM rounds WHERE rounds.game_id = games.id),
		        created_at
		      ) < ?
	`, formatTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// queries holds the reads shared by Store and tx.
type queries struct {
	q querier
}

func (r queries) GetGame(ctx context.Context, gameID string) (geoguess.Game, error) {
	var (
		g           geoguess.Game
		createdAt   string
		completedAt sql.NullString
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, user_id, mode, status, current_round, total_score, created_at, completed_at
		FROM games WHERE id = ?
	`, gameID).Scan(&g.ID, &g.UserID, &g.Mode, &g.Status, &g.CurrentRound, &g.TotalScore, &createdAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return g, game.ErrNotFound
	}
	if err != nil {
		return g, err
	}
	if g.CreatedAt, err = parseTime(createdAt); err != nil {
		return g, err
	}
	if g.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return g, err
	}
	return g, nil
}

const roundColumns = `id, game_id, round_number, actual_lat, actual_lng, image_id,
	guess_lat, guess_lng, distance_km, score, time_spent, guessed_at`

func (r queries) GetRound(ctx context.Context, gameID string, roundNumber int) (geoguess.Round, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+roundColumns+`
		FROM rounds WHERE game_id = ? AND round_number = ?
	`, gameID, roundNumber)
	rd, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rd, game.ErrNotFound
	}
	return rd, err
}

func (r queries) ListRounds(ctx context.Context, gameID string) ([]geoguess.Round, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+roundColumns+`
		FROM rounds WHERE game_id = ?
		ORDER BY round_number
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rounds []geoguess.Round
	for rows.Next() {
		rd, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, rd)
	}
	return rounds, rows.Err()
}

func (r queries) GetUser(ctx context.Context, userID string) (geoguess.User, error) {
	var (
		u            geoguess.User
		lastPlayedAt sql.NullString
		createdAt    string
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, display_name, high_score, total_games, current_streak, longest_streak, last_played_at, created_at
		FROM users WHERE id = ?
	`, userID).Scan(&u.ID, &u.DisplayName, &u.HighScore, &u.TotalGames, &u.CurrentStreak, &u.LongestStreak, &lastPlayedAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, game.ErrNotFound
	}
	if err != nil {
		return u, err
	}
	if u.LastPlayedAt, err = parseNullTime(lastPlayedAt); err != nil {
		return u, err
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return u, err
	}
	return u, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRound(s scanner) (geoguess.Round, error) {
	var (
		rd        geoguess.Round
		guessLat  sql.NullFloat64
		guessLng  sql.NullFloat64
		distance  sql.NullFloat64
		score     sql.NullInt64
		timeSpent sql.NullInt64
		guessedAt sql.NullString
	)
	err := s.Scan(&rd.ID, &rd.GameID, &rd.RoundNumber, &rd.Actual.Lat, &rd.Actual.Lng, &rd.ImageID,
		&guessLat, &guessLng, &distance, &score, &timeSpent, &guessedAt)
	if err != nil {
		return rd, err
	}
	if !guessedAt.Valid {
		return rd, nil
	}

	at, err := parseTime(guessedAt.String)
	if err != nil {
		return rd, err
	}
	rd.Guess = &geoguess.Guess{
		Coord:      geoguess.Coord{Lat: guessLat.Float64, Lng: guessLng.Float64},
		DistanceKm: distance.Float64,
		Score:      int(score.Int64),
		TimeSpent:  int(timeSpent.Int64),
		GuessedAt:  at,
	}
	return rd, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
