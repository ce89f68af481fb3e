// Package game runs the lifecycle of a geo-guessing game: creation from a
// sampled location set, one guess per round in order, and completion with
// the player's streak and high score updated in the same transaction.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/playperu/geoguess/internal/geo"
	"github.com/playperu/geoguess/internal/geoguess"
)

const (
	// StreakWindow is the longest gap between completed games that keeps a
	// streak alive.
	StreakWindow = 48 * time.Hour

	DefaultPageSize = 20
	MaxPageSize     = 100
	RecentGames     = 5

	// ModeAll selects every mode on the leaderboard.
	ModeAll = "all"

	maxDisplayName = 64
)

type Service struct {
	store    Store
	sampler  LocationSampler
	logger   *slog.Logger
	metrics  Metrics
	cache    LeaderboardCache
	tracer   trace.Tracer
	now      func() time.Time
	provider string
	newID    func() string

	// guessing holds the ids of games with a guess in flight.
	guessing sync.Map
}

type Option func(*Service)

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithCache serves leaderboard pages through c.
func WithCache(c LeaderboardCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithProvider sets the imagery provider tag sent with every round view.
func WithProvider(p string) Option {
	return func(s *Service) {
		if p != "" {
			s.provider = p
		}
	}
}

func NewService(store Store, sampler LocationSampler, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:    store,
		sampler:  sampler,
		logger:   logger,
		metrics:  noopMetrics{},
		tracer:   otel.Tracer("github.com/playperu/geoguess/internal/game"),
		now:      time.Now,
		provider: "mapillary",
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Modes lists every mode with its configuration.
func (s *Service) Modes() []ModeInfo {
	modes := geoguess.Modes()
	out := make([]ModeInfo, 0, len(modes))
	for _, m := range modes {
		cfg := m.Config()
		out = append(out, ModeInfo{
			Mode:          m,
			Label:         cfg.Label,
			Description:   cfg.Description,
			AllowMovement: cfg.AllowMovement,
			TimeLimit:     cfg.TimeLimit,
		})
	}
	return out
}

// RegisterUser records the display name shown for userID on the
// leaderboard. An empty name keeps the stored one.
func (s *Service) RegisterUser(ctx context.Context, userID, displayName string) error {
	if userID == "" {
		return ErrUnauthorized
	}
	name := strings.TrimSpace(displayName)
	if name == "" {
		return nil
	}
	if utf8.RuneCountInString(name) > maxDisplayName {
		name = string([]rune(name)[:maxDisplayName])
	}
	u, err := s.store.GetUser(ctx, userID)
	switch {
	case err == nil && u.DisplayName == name:
		return nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return s.fail(ctx, "register user", storeErr("loading user", err))
	}
	return s.fail(ctx, "register user", storeErr("setting display name", s.store.SetDisplayName(ctx, userID, name)))
}

func (s *Service) CreateGame(ctx context.Context, userID string, mode geoguess.Mode) (CreateGameResult, error) {
	return traced(s, ctx, "game.CreateGame", func(ctx context.Context) (CreateGameResult, error) {
		if userID == "" {
			return CreateGameResult{}, ErrUnauthorized
		}
		if !mode.Valid() {
			return CreateGameResult{}, invalid("mode", fmt.Sprintf("unknown mode %q", mode))
		}

		locs, err := s.sampler.Sample(ctx, geoguess.RoundsPerGame)
		if err != nil {
			return CreateGameResult{}, storeErr("sampling locations", err)
		}

		now := s.now()
		g := geoguess.Game{
			ID:           s.newID(),
			UserID:       userID,
			Mode:         mode,
			Status:       geoguess.GameStatusInProgress,
			CurrentRound: 1,
			CreatedAt:    now,
		}
		rounds := make([]geoguess.Round, len(locs))
		for i, l := range locs {
			rounds[i] = geoguess.Round{
				ID:          s.newID(),
				GameID:      g.ID,
				RoundNumber: i + 1,
				Actual:      geoguess.Coord{Lat: l.Lat, Lng: l.Lng},
				ImageID:     l.ImageID,
			}
		}

		err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
			if err := tx.EnsureUser(ctx, userID); err != nil {
				return fmt.Errorf("ensuring user: %w", err)
			}
			if err := tx.InsertGame(ctx, g, rounds); err != nil {
				return fmt.Errorf("inserting game: %w", err)
			}
			return nil
		})
		if err != nil {
			return CreateGameResult{}, storeErr("creating game", err)
		}

		s.metrics.GameCreated(mode)
		s.logger.InfoContext(ctx, "game created", "game_id", g.ID, "user_id", userID, "mode", mode)

		return CreateGameResult{
			GameID:     g.ID,
			Mode:       mode,
			FirstRound: s.view(g, rounds[0]),
		}, nil
	})
}

func (s *Service) GetCurrentRound(ctx context.Context, gameID, userID string) (RoundView, error) {
	return traced(s, ctx, "game.GetCurrentRound", func(ctx context.Context) (RoundView, error) {
		g, err := loadOwned(ctx, s.store, gameID, userID)
		if err != nil {
			return RoundView{}, err
		}
		if g.Status != geoguess.GameStatusInProgress {
			return RoundView{}, fmt.Errorf("game is %s: %w", g.Status, ErrInvalidState)
		}
		r, err := s.store.GetRound(ctx, g.ID, g.CurrentRound)
		if err != nil {
			return RoundView{}, storeErr("loading round", err)
		}
		s.logger.DebugContext(ctx, "current round", "game_id", g.ID, "round", r.RoundNumber)
		return s.view(g, r), nil
	})
}

// SubmitGuess scores a guess against the current round. The guess write,
// the round advance or game completion, and the user stats update commit
// together or not at all.
func (s *Service) SubmitGuess(ctx context.Context, in GuessInput) (GuessResult, error) {
	return traced(s, ctx, "game.SubmitGuess", func(ctx context.Context) (GuessResult, error) {
		if in.UserID == "" {
			return GuessResult{}, ErrUnauthorized
		}
		if err := validateGuess(in); err != nil {
			s.metrics.GuessRejected("validation")
			return GuessResult{}, err
		}

		release, ok := s.claimGuess(in.GameID)
		if !ok {
			if _, err := loadOwned(ctx, s.store, in.GameID, in.UserID); err != nil {
				return GuessResult{}, err
			}
			s.metrics.GuessRejected("already_guessed")
			return GuessResult{}, ErrAlreadyGuessed
		}
		defer release()

		// Pin the round this call answers before taking the write lock, so a
		// duplicate queued behind the winner is rejected instead of scoring
		// the next round.
		expected := in.RoundNumber
		if expected == 0 {
			g, err := loadOwned(ctx, s.store, in.GameID, in.UserID)
			if err != nil {
				return GuessResult{}, err
			}
			if g.Status == geoguess.GameStatusInProgress {
				expected = g.CurrentRound
			}
		}

		var (
			res  GuessResult
			mode geoguess.Mode
		)
		err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
			res = GuessResult{}
			g, err := loadOwned(ctx, tx, in.GameID, in.UserID)
			if err != nil {
				return err
			}
			if err := checkExpectedRound(g, expected); err != nil {
				return err
			}
			mode = g.Mode

			r, err := tx.GetRound(ctx, g.ID, g.CurrentRound)
			if err != nil {
				return fmt.Errorf("loading round %d: %w", g.CurrentRound, err)
			}
			if !r.Pending() {
				return ErrAlreadyGuessed
			}

			now := s.now()
			distance := geo.Distance(r.Actual.Lat, r.Actual.Lng, in.Lat, in.Lng)
			r.Guess = &geoguess.Guess{
				Coord:      geoguess.Coord{Lat: in.Lat, Lng: in.Lng},
				DistanceKm: distance,
				Score:      geo.Score(distance),
				TimeSpent:  in.TimeSpent,
				GuessedAt:  now,
			}
			if err := tx.RecordGuess(ctx, g.ID, r.RoundNumber, *r.Guess); err != nil {
				return fmt.Errorf("recording guess: %w", err)
			}

			total := g.TotalScore + r.Guess.Score
			res.RoundResult = roundResult(r)
			res.TotalScore = total

			if g.CurrentRound >= geoguess.RoundsPerGame {
				if err := tx.CompleteGame(ctx, g.ID, total, now); err != nil {
					return fmt.Errorf("completing game: %w", err)
				}
				u, err := tx.GetUser(ctx, in.UserID)
				switch {
				case errors.Is(err, ErrNotFound):
					u = geoguess.User{ID: in.UserID, CreatedAt: now}
				case err != nil:
					return fmt.Errorf("loading user: %w", err)
				}
				if err := tx.SaveUserStats(ctx, applyCompletion(u, total, now)); err != nil {
					return fmt.Errorf("saving user stats: %w", err)
				}
				res.GameComplete = true
				return nil
			}

			if err := tx.AdvanceRound(ctx, g.ID, g.CurrentRound, total); err != nil {
				return fmt.Errorf("advancing round: %w", err)
			}
			next, err := tx.GetRound(ctx, g.ID, g.CurrentRound+1)
			if err != nil {
				return fmt.Errorf("loading round %d: %w", g.CurrentRound+1, err)
			}
			g.CurrentRound++
			v := s.view(g, next)
			res.NextRound = &v
			return nil
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrAlreadyGuessed):
				s.metrics.GuessRejected("already_guessed")
			case errors.Is(err, ErrInvalidState):
				s.metrics.GuessRejected("invalid_state")
			}
			return GuessResult{}, storeErr("submitting guess", err)
		}

		s.metrics.RoundScored(mode, res.RoundResult.Score, res.RoundResult.Distance)
		if res.GameComplete {
			s.metrics.GameCompleted(mode, res.TotalScore)
			s.logger.InfoContext(ctx, "game completed",
				"game_id", in.GameID,
				"user_id", in.UserID,
				"total_score", res.TotalScore,
			)
			s.invalidateLeaderboard(ctx)
		}
		return res, nil
	})
}

func (s *Service) GetGameResults(ctx context.Context, gameID, userID string) (GameResults, error) {
	return traced(s, ctx, "game.GetGameResults", func(ctx context.Context) (GameResults, error) {
		g, err := loadOwned(ctx, s.store, gameID, userID)
		if err != nil {
			return GameResults{}, err
		}
		if g.Status != geoguess.GameStatusCompleted {
			return GameResults{}, fmt.Errorf("game is %s: %w", g.Status, ErrInvalidState)
		}
		rounds, err := s.store.ListRounds(ctx, g.ID)
		if err != nil {
			return GameResults{}, storeErr("listing rounds", err)
		}

		out := GameResults{
			GameID:           g.ID,
			Mode:             g.Mode,
			TotalScore:       g.TotalScore,
			MaxPossibleScore: geoguess.MaxGameScore,
			Rounds:           make([]RoundResult, 0, len(rounds)),
		}
		if g.CompletedAt != nil {
			out.CompletedAt = *g.CompletedAt
		}
		for _, r := range rounds {
			out.Rounds = append(out.Rounds, roundResult(r))
		}
		return out, nil
	})
}

// GetLeaderboard pages through completed games by total score. Page and
// page size fall back to 1 and DefaultPageSize; page size is clamped to
// [1, MaxPageSize].
func (s *Service) GetLeaderboard(ctx context.Context, q LeaderboardQuery) (LeaderboardPage, error) {
	return traced(s, ctx, "game.GetLeaderboard", func(ctx context.Context) (LeaderboardPage, error) {
		q, mode, err := normalizeLeaderboard(q)
		if err != nil {
			return LeaderboardPage{}, err
		}

		key := fmt.Sprintf("%s:%d:%d", q.Mode, q.Page, q.PageSize)
		var (
			gen       int64
			cacheable bool
		)
		if s.cache != nil {
			page, g, ok, err := s.cache.Get(ctx, key)
			switch {
			case err != nil:
				s.logger.WarnContext(ctx, "leaderboard cache read failed", "key", key, "error", err)
			case ok:
				return page, nil
			default:
				gen, cacheable = g, true
			}
		}

		offset := (q.Page - 1) * q.PageSize
		entries, total, err := s.store.Leaderboard(ctx, mode, offset, q.PageSize)
		if err != nil {
			return LeaderboardPage{}, storeErr("loading leaderboard", err)
		}
		for i := range entries {
			entries[i].Rank = offset + i + 1
		}
		if entries == nil {
			entries = []LeaderboardEntry{}
		}
		page := LeaderboardPage{
			Entries:  entries,
			Total:    total,
			Page:     q.Page,
			PageSize: q.PageSize,
		}

		if cacheable {
			if err := s.cache.Set(ctx, key, gen, page); err != nil {
				s.logger.WarnContext(ctx, "leaderboard cache write failed", "key", key, "error", err)
			}
		}
		return page, nil
	})
}

func (s *Service) GetUserStats(ctx context.Context, userID string) (UserStats, error) {
	return traced(s, ctx, "game.GetUserStats", func(ctx context.Context) (UserStats, error) {
		if userID == "" {
			return UserStats{}, ErrUnauthorized
		}
		u, err := s.store.GetUser(ctx, userID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return UserStats{}, storeErr("loading user", err)
		}
		h, err := s.store.PlayerHistory(ctx, userID, RecentGames)
		if err != nil {
			return UserStats{}, storeErr("loading history", err)
		}

		stats := UserStats{
			HighScore:      u.HighScore,
			TotalGames:     u.TotalGames,
			CurrentStreak:  u.CurrentStreak,
			LongestStreak:  u.LongestStreak,
			LastPlayedAt:   u.LastPlayedAt,
			MemberSince:    u.CreatedAt,
			AverageScore:   int(math.Round(h.AverageScore)),
			CompletedGames: h.CompletedGames,
			RecentGames:    h.Recent,
			BestByMode:     h.BestByMode,
		}
		if stats.RecentGames == nil {
			stats.RecentGames = []GameSummary{}
		}
		if stats.BestByMode == nil {
			stats.BestByMode = map[geoguess.Mode]ModeBest{}
		}
		return stats, nil
	})
}

// applyCompletion folds one completed game into the user's aggregates.
func applyCompletion(u geoguess.User, totalScore int, now time.Time) geoguess.User {
	streak := 1
	if u.LastPlayedAt != nil && now.Sub(*u.LastPlayedAt) <= StreakWindow {
		streak = u.CurrentStreak + 1
	}
	u.CurrentStreak = streak
	u.LongestStreak = max(u.LongestStreak, streak)
	u.HighScore = max(u.HighScore, totalScore)
	u.TotalGames++
	u.LastPlayedAt = &now
	return u
}

// claimGuess marks gameID as having a guess in flight. Overlapping
// submissions for one game can only be duplicates, since a client needs the
// previous response to see the next round.
func (s *Service) claimGuess(gameID string) (release func(), ok bool) {
	if _, busy := s.guessing.LoadOrStore(gameID, struct{}{}); busy {
		return nil, false
	}
	return func() { s.guessing.Delete(gameID) }, true
}

func validateGuess(in GuessInput) error {
	if math.IsNaN(in.Lat) || in.Lat < -90 || in.Lat > 90 {
		return invalid("lat", "must be between -90 and 90")
	}
	if math.IsNaN(in.Lng) || in.Lng < -180 || in.Lng > 180 {
		return invalid("lng", "must be between -180 and 180")
	}
	if in.TimeSpent < 0 {
		return invalid("timeSpent", "must not be negative")
	}
	if in.RoundNumber < 0 || in.RoundNumber > geoguess.RoundsPerGame {
		return invalid("roundNumber", fmt.Sprintf("must be between 1 and %d", geoguess.RoundsPerGame))
	}
	return nil
}

// checkExpectedRound compares the round a client believes it is answering
// with the game's current round. A replayed guess for a round that has
// already been answered reports ErrAlreadyGuessed.
func checkExpectedRound(g geoguess.Game, expected int) error {
	if expected > 0 && (expected < g.CurrentRound ||
		(expected == g.CurrentRound && g.Status == geoguess.GameStatusCompleted)) {
		return ErrAlreadyGuessed
	}
	if g.Status != geoguess.GameStatusInProgress {
		return fmt.Errorf("game is %s: %w", g.Status, ErrInvalidState)
	}
	if expected > g.CurrentRound {
		return fmt.Errorf("round %d is not open yet: %w", expected, ErrInvalidState)
	}
	return nil
}

func normalizeLeaderboard(q LeaderboardQuery) (LeaderboardQuery, geoguess.Mode, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = DefaultPageSize
	}
	q.PageSize = min(max(q.PageSize, 1), MaxPageSize)

	switch q.Mode {
	case "", ModeAll:
		q.Mode = ModeAll
		return q, "", nil
	}
	mode := geoguess.Mode(q.Mode)
	if !mode.Valid() {
		return q, "", invalid("mode", fmt.Sprintf("unknown mode %q", q.Mode))
	}
	return q, mode, nil
}

func loadOwned(ctx context.Context, r Reader, gameID, userID string) (geoguess.Game, error) {
	if userID == "" {
		return geoguess.Game{}, ErrUnauthorized
	}
	if gameID == "" {
		return geoguess.Game{}, ErrNotFound
	}
	g, err := r.GetGame(ctx, gameID)
	if err != nil {
		return geoguess.Game{}, storeErr("loading game", err)
	}
	if g.UserID != userID {
		return geoguess.Game{}, ErrForbidden
	}
	return g, nil
}

func (s *Service) view(g geoguess.Game, r geoguess.Round) RoundView {
	cfg := g.Mode.Config()
	return RoundView{
		RoundNumber:   r.RoundNumber,
		ImageID:       r.ImageID,
		Provider:      s.provider,
		TotalRounds:   geoguess.RoundsPerGame,
		TimeLimit:     cfg.TimeLimit,
		AllowMovement: cfg.AllowMovement,
	}
}

func (s *Service) invalidateLeaderboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "leaderboard cache invalidation failed", "error", err)
	}
}

// fail logs store failures once before handing err back.
func (s *Service) fail(ctx context.Context, op string, err error) error {
	if err != nil && errors.Is(err, ErrStoreUnavailable) {
		s.logger.ErrorContext(ctx, "store failure", "op", op, "error", err)
	}
	return err
}

// traced runs op inside a span named name and logs store failures once.
func traced[T any](s *Service, ctx context.Context, name string, op func(context.Context) (T, error)) (T, error) {
	ctx, span := s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("operation", name)))
	defer span.End()

	out, err := op(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return out, s.fail(ctx, name, err)
	}
	return out, nil
}
