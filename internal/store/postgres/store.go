// Package postgres implements the game store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/playperu/geoguess/internal/game"
	"github.com/playperu/geoguess/internal/geoguess"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Store struct {
	queries
	pool *pgxpool.Pool
}

var _ game.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{queries: queries{q: pool}, pool: pool}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx game.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(pgTx pgx.Tx) error {
		return fn(ctx, &tx{queries{q: pgTx}})
	})
}

func (s *Store) SetDisplayName(ctx context.Context, userID, name string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, display_name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name
	`, userID, name)
	return err
}

// AbandonIdle marks in-progress games with no activity since cutoff as
// abandoned and reports how many changed. Activity is the latest guess, or
// creation when no round has been answered.
func (s *Store) AbandonIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE games SET status = 'abandoned'
		WHERE status = 'in_progress'
		  AND COALESCE(
		        (SELECT MAX(guessed_at) FROM rounds WHERE rounds.game_id = games.id),
		        created_at
		      ) < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type queries struct {
	q querier
}

const gameQuery = `
	SELECT id, user_id, mode, status, current_round, total_score, created_at, completed_at
	FROM games WHERE id = $1`

func (r queries) GetGame(ctx context.Context, gameID string) (geoguess.Game, error) {
	return r.getGame(ctx, gameQuery, gameID)
}

func (r queries) getGame(ctx context.Context, query, gameID string) (geoguess.Game, error) {
	var g geoguess.Game
	err := r.q.QueryRow(ctx, query, gameID).
		Scan(&g.ID, &g.UserID, &g.Mode, &g.Status, &g.CurrentRound, &g.TotalScore, &g.CreatedAt, &g.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return g, game.ErrNotFound
	}
	g.CreatedAt = g.CreatedAt.UTC()
	g.CompletedAt = utcPtr(g.CompletedAt)
	return g, err
}

const roundColumns = `id, game_id, round_number, actual_lat, actual_lng, image_id,
	guess_lat, guess_lng, distance_km, score, time_spent, guessed_at`

func (r queries) GetRound(ctx context.Context, gameID string, roundNumber int) (geoguess.Round, error) {
	rd, err := scanRound(r.q.QueryRow(ctx, `
		SELECT `+roundColumns+`
		FROM rounds WHERE game_id = $1 AND round_number = $2
	`, gameID, roundNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return rd, game.ErrNotFound
	}
	return rd, err
}

func (r queries) ListRounds(ctx context.Context, gameID string) ([]geoguess.Round, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+roundColumns+`
		FROM rounds WHERE game_id = $1
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

const userQuery = `
	SELECT id, display_name, high_score, total_games, current_streak, longest_streak, last_played_at, created_at
	FROM users WHERE id = $1`

func (r queries) GetUser(ctx context.Context, userID string) (geoguess.User, error) {
	return r.getUser(ctx, userQuery, userID)
}

func (r queries) getUser(ctx context.Context, query, userID string) (geoguess.User, error) {
	var u geoguess.User
	err := r.q.QueryRow(ctx, query, userID).
		Scan(&u.ID, &u.DisplayName, &u.HighScore, &u.TotalGames, &u.CurrentStreak, &u.LongestStreak, &u.LastPlayedAt, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return u, game.ErrNotFound
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.LastPlayedAt = utcPtr(u.LastPlayedAt)
	return u, err
}

func scanRound(row pgx.Row) (geoguess.Round, error) {
	var (
		rd        geoguess.Round
		guessLat  *float64
		guessLng  *float64
		distance  *float64
		score     *int
		timeSpent *int
		guessedAt *time.Time
	)
	err := row.Scan(&rd.ID, &rd.GameID, &rd.RoundNumber, &rd.Actual.Lat, &rd.Actual.Lng, &rd.ImageID,
		&guessLat, &guessLng, &distance, &score, &timeSpent, &guessedAt)
	if err != nil || guessedAt == nil {
		return rd, err
	}
	rd.Guess = &geoguess.Guess{
		Coord:      geoguess.Coord{Lat: *guessLat, Lng: *guessLng},
		DistanceKm: *distance,
		Score:      *score,
		TimeSpent:  *timeSpent,
		GuessedAt:  guessedAt.UTC(),
	}
	return rd, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

type tx struct {
	queries
}

var _ game.Tx = (*tx)(nil)

// GetGame locks the game row so concurrent guesses on one game queue up
// behind each other.
func (t *tx) GetGame(ctx context.Context, gameID string) (geoguess.Game, error) {
	return t.getGame(ctx, gameQuery+` FOR UPDATE`, gameID)
}

func (t *tx) GetUser(ctx context.Context, userID string) (geoguess.User, error) {
	return t.getUser(ctx, userQuery+` FOR UPDATE`, userID)
}

func (t *tx) EnsureUser(ctx context.Context, userID string) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO users (id) VALUES ($1)
		ON CONFLICT (id) DO NOTHING
	`, userID)
	return err
}

func (t *tx) InsertGame(ctx context.Context, g geoguess.Game, rounds []geoguess.Round) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO games (id, user_id, mode, status, current_round, total_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, g.ID, g.UserID, string(g.Mode), string(g.Status), g.CurrentRound, g.TotalScore, g.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting game: %w", err)
	}

	batch := &pgx.Batch{}
	for _, r := range rounds {
		batch.Queue(`
			INSERT INTO rounds (id, game_id, round_number, actual_lat, actual_lng, image_id)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, r.ID, g.ID, r.RoundNumber, r.Actual.Lat, r.Actual.Lng, r.ImageID)
	}
	br := t.q.SendBatch(ctx, batch)
	for _, r := range rounds {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("inserting round %d: %w", r.RoundNumber, err)
		}
	}
	return br.Close()
}

func (t *tx) RecordGuess(ctx context.Context, gameID string, roundNumber int, guess geoguess.Guess) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE rounds
		SET guess_lat = $1, guess_lng = $2, distance_km = $3, score = $4, time_spent = $5, guessed_at = $6
		WHERE game_id = $7 AND round_number = $8 AND guessed_at IS NULL
	`, guess.Coord.Lat, guess.Coord.Lng, guess.DistanceKm, guess.Score, guess.TimeSpent, guess.GuessedAt,
		gameID, roundNumber)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := t.GetRound(ctx, gameID, roundNumber); err != nil {
		return err
	}
	return game.ErrAlreadyGuessed
}

func (t *tx) AdvanceRound(ctx context.Context, gameID string, fromRound, totalScore int) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE games SET current_round = current_round + 1, total_score = $1
		WHERE id = $2 AND current_round = $3 AND status = 'in_progress'
	`, totalScore, gameID, fromRound)
	return expectOne(tag, err, game.ErrAlreadyGuessed)
}

func (t *tx) CompleteGame(ctx context.Context, gameID string, totalScore int, at time.Time) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE games SET status = 'completed', total_score = $1, completed_at = $2
		WHERE id = $3 AND status = 'in_progress'
	`, totalScore, at, gameID)
	return expectOne(tag, err, game.ErrInvalidState)
}

func (t *tx) SaveUserStats(ctx context.Context, u geoguess.User) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO users (id, high_score, total_games, current_streak, longest_streak, last_played_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			high_score = EXCLUDED.high_score,
			total_games = EXCLUDED.total_games,
			current_streak = EXCLUDED.current_streak,
			longest_streak = EXCLUDED.longest_streak,
			last_played_at = EXCLUDED.last_played_at
	`, u.ID, u.HighScore, u.TotalGames, u.CurrentStreak, u.LongestStreak, u.LastPlayedAt)
	return err
}

func expectOne(tag pgconn.CommandTag, err error, none error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return none
	}
	return nil
}
