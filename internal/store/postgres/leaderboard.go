package postgres

import (
	"context"
	"fmt"

	"github.com/playperu/geoguess/internal/game"
	"github.com/playperu/geoguess/internal/geoguess"
)

func (s *Store) Leaderboard(ctx context.Context, mode geoguess.Mode, offset, limit int) ([]game.LeaderboardEntry, int, error) {
	var total int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM games
		WHERE status = 'completed' AND ($1::text = '' OR mode = $1)
	`, string(mode)).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting games: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT g.id, g.user_id, COALESCE(u.display_name, ''), g.total_score, g.mode, g.completed_at
		FROM games g
		LEFT JOIN users u ON u.id = g.user_id
		WHERE g.status = 'completed' AND ($1::text = '' OR g.mode = $1)
		ORDER BY g.total_score DESC, g.completed_at ASC, g.id
		LIMIT $2 OFFSET $3
	`, string(mode), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing games: %w", err)
	}
	defer rows.Close()

	var entries []game.LeaderboardEntry
	for rows.Next() {
		var e game.LeaderboardEntry
		if err := rows.Scan(&e.GameID, &e.UserID, &e.UserName, &e.TotalScore, &e.Mode, &e.CompletedAt); err != nil {
			return nil, 0, err
		}
		e.CompletedAt = e.CompletedAt.UTC()
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func (s *Store) PlayerHistory(ctx context.Context, userID string, recent int) (game.PlayerHistory, error) {
	h := game.PlayerHistory{BestByMode: map[geoguess.Mode]game.ModeBest{}}

	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(AVG(total_score), 0)::float8
		FROM games WHERE user_id = $1 AND status = 'completed'
	`, userID).Scan(&h.CompletedGames, &h.AverageScore)
	if err != nil {
		return h, fmt.Errorf("aggregating games: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, mode, total_score, completed_at
		FROM games WHERE user_id = $1 AND status = 'completed'
		ORDER BY completed_at DESC
		LIMIT $2
	`, userID, recent)
	if err != nil {
		return h, fmt.Errorf("listing recent games: %w", err)
	}
	for rows.Next() {
		var g game.GameSummary
		if err := rows.Scan(&g.GameID, &g.Mode, &g.TotalScore, &g.CompletedAt); err != nil {
			rows.Close()
			return h, err
		}
		g.CompletedAt = g.CompletedAt.UTC()
		h.Recent = append(h.Recent, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return h, err
	}

	best, err := s.pool.Query(ctx, `
		SELECT mode, MAX(total_score), COUNT(*)
		FROM games WHERE user_id = $1 AND status = 'completed'
		GROUP BY mode
	`, userID)
	if err != nil {
		return h, fmt.Errorf("aggregating modes: %w", err)
	}
	defer best.Close()

	for best.Next() {
		var (
			mode geoguess.Mode
			mb   game.ModeBest
		)
		if err := best.Scan(&mode, &mb.HighScore, &mb.GamesPlayed); err != nil {
			return h, err
		}
		h.BestByMode[mode] = mb
	}
	return h, best.Err()
}
