package sqlite

import (
	"context"
	"fmt"

	"github.com/playperu/geoguess/internal/game"
	"github.com/playperu/geoguess/internal/geoguess"
)

func (s *Store) Leaderboard(ctx context.Context, mode geoguess.Mode, offset, limit int) ([]game.LeaderboardEntry, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM games
		WHERE status = 'completed' AND (? = '' OR mode = ?)
	`, string(mode), string(mode)).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting games: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.user_id, COALESCE(u.display_name, ''), g.total_score, g.mode, g.completed_at
		FROM games g
		LEFT JOIN users u ON u.id = g.user_id
		WHERE g.status = 'completed' AND (? = '' OR g.mode = ?)
		ORDER BY g.total_score DESC, g.completed_at ASC, g.id
		LIMIT ? OFFSET ?
	`, string(mode), string(mode), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing games: %w", err)
	}
	defer rows.Close()

	var entries []game.LeaderboardEntry
	for rows.Next() {
		var (
			e           game.LeaderboardEntry
			completedAt string
		)
		if err := rows.Scan(&e.GameID, &e.UserID, &e.UserName, &e.TotalScore, &e.Mode, &completedAt); err != nil {
			return nil, 0, err
		}
		if e.CompletedAt, err = parseTime(completedAt); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func (s *Store) PlayerHistory(ctx context.Context, userID string, recent int) (game.PlayerHistory, error) {
	h := game.PlayerHistory{BestByMode: map[geoguess.Mode]game.ModeBest{}}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(total_score), 0)
		FROM games WHERE user_id = ? AND status = 'completed'
	`, userID).Scan(&h.CompletedGames, &h.AverageScore)
	if err != nil {
		return h, fmt.Errorf("aggregating games: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mode, total_score, completed_at
		FROM games WHERE user_id = ? AND status = 'completed'
		ORDER BY completed_at DESC
		LIMIT ?
	`, userID, recent)
	if err != nil {
		return h, fmt.Errorf("listing recent games: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			g           game.GameSummary
			completedAt string
		)
		if err := rows.Scan(&g.GameID, &g.Mode, &g.TotalScore, &completedAt); err != nil {
			return h, err
		}
		if g.CompletedAt, err = parseTime(completedAt); err != nil {
			return h, err
		}
		h.Recent = append(h.Recent, g)
	}
	if err := rows.Err(); err != nil {
		return h, err
	}

	best, err := s.db.QueryContext(ctx, `
		SELECT mode, MAX(total_score), COUNT(*)
		FROM games WHERE user_id = ? AND status = 'completed'
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
