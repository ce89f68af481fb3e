package game

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/playperu/geoguess/internal/geoguess"
)

// memStore is an in-memory Store. InTx serializes transactions and restores
// a snapshot when fn fails.
type memStore struct {
	mu     sync.Mutex
	games  map[string]geoguess.Game
	rounds map[string][]geoguess.Round
	users  map[string]geoguess.User

	// failOn makes the named Tx method return errFailed.
	failOn string

	LeaderboardFunc   func(ctx context.Context, mode geoguess.Mode, offset, limit int) ([]LeaderboardEntry, int, error)
	PlayerHistoryFunc func(ctx context.Context, userID string, recent int) (PlayerHistory, error)

	// beforeTx runs at the start of InTx, before the store lock is taken.
	beforeTx func()

	leaderboardCalls int
	displayNameSets  int
}

var errFailed = errors.New("disk on fire")

func newMemStore() *memStore {
	return &memStore{
		games:  map[string]geoguess.Game{},
		rounds: map[string][]geoguess.Round{},
		users:  map[string]geoguess.User{},
	}
}

func (m *memStore) snapshot() (map[string]geoguess.Game, map[string][]geoguess.Round, map[string]geoguess.User) {
	games := make(map[string]geoguess.Game, len(m.games))
	for k, v := range m.games {
		games[k] = v
	}
	rounds := make(map[string][]geoguess.Round, len(m.rounds))
	for k, v := range m.rounds {
		rounds[k] = append([]geoguess.Round(nil), v...)
	}
	users := make(map[string]geoguess.User, len(m.users))
	for k, v := range m.users {
		users[k] = v
	}
	return games, rounds, users
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if m.beforeTx != nil {
		m.beforeTx()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	games, rounds, users := m.snapshot()
	if err := fn(ctx, memTx{m}); err != nil {
		m.games, m.rounds, m.users = games, rounds, users
		return err
	}
	return nil
}

func (m *memStore) GetGame(ctx context.Context, gameID string) (geoguess.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memTx{m}.GetGame(ctx, gameID)
}

func (m *memStore) GetRound(ctx context.Context, gameID string, n int) (geoguess.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memTx{m}.GetRound(ctx, gameID, n)
}

func (m *memStore) ListRounds(ctx context.Context, gameID string) ([]geoguess.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memTx{m}.ListRounds(ctx, gameID)
}

func (m *memStore) GetUser(ctx context.Context, userID string) (geoguess.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return geoguess.User{}, ErrNotFound
	}
	return u, nil
}

func (m *memStore) SetDisplayName(_ context.Context, userID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.displayNameSets++
	u := m.users[userID]
	u.ID = userID
	u.DisplayName = name
	m.users[userID] = u
	return nil
}

func (m *memStore) Leaderboard(ctx context.Context, mode geoguess.Mode, offset, limit int) ([]LeaderboardEntry, int, error) {
	m.mu.Lock()
	m.leaderboardCalls++
	m.mu.Unlock()
	if m.LeaderboardFunc != nil {
		return m.LeaderboardFunc(ctx, mode, offset, limit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var all []LeaderboardEntry
	for _, g := range m.games {
		if g.Status != geoguess.GameStatusCompleted || (mode != "" && g.Mode != mode) {
			continue
		}
		all = append(all, LeaderboardEntry{
			GameID:      g.ID,
			UserID:      g.UserID,
			UserName:    m.users[g.UserID].DisplayName,
			TotalScore:  g.TotalScore,
			Mode:        g.Mode,
			CompletedAt: *g.CompletedAt,
		})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].TotalScore != all[j].TotalScore {
			return all[i].TotalScore > all[j].TotalScore
		}
		return all[i].CompletedAt.Before(all[j].CompletedAt)
	})
	if offset >= len(all) {
		return nil, len(all), nil
	}
	return all[offset:min(offset+limit, len(all))], len(all), nil
}

func (m *memStore) PlayerHistory(ctx context.Context, userID string, recent int) (PlayerHistory, error) {
	if m.PlayerHistoryFunc != nil {
		return m.PlayerHistoryFunc(ctx, userID, recent)
	}
	return PlayerHistory{}, nil
}

type memTx struct{ m *memStore }

func (t memTx) fail(op string) error {
	if t.m.failOn == op {
		return errFailed
	}
	return nil
}

func (t memTx) GetGame(_ context.Context, gameID string) (geoguess.Game, error) {
	g, ok := t.m.games[gameID]
	if !ok {
		return geoguess.Game{}, ErrNotFound
	}
	return g, nil
}

func (t memTx) GetRound(_ context.Context, gameID string, n int) (geoguess.Round, error) {
	for _, r := range t.m.rounds[gameID] {
		if r.RoundNumber == n {
			return r, nil
		}
	}
	return geoguess.Round{}, ErrNotFound
}

func (t memTx) ListRounds(_ context.Context, gameID string) ([]geoguess.Round, error) {
	return append([]geoguess.Round(nil), t.m.rounds[gameID]...), nil
}

func (t memTx) EnsureUser(_ context.Context, userID string) error {
	if err := t.fail("EnsureUser"); err != nil {
		return err
	}
	if _, ok := t.m.users[userID]; !ok {
		t.m.users[userID] = geoguess.User{ID: userID, CreatedAt: time.Unix(0, 0).UTC()}
	}
	return nil
}

func (t memTx) InsertGame(_ context.Context, g geoguess.Game, rounds []geoguess.Round) error {
	if err := t.fail("InsertGame"); err != nil {
		return err
	}
	t.m.games[g.ID] = g
	t.m.rounds[g.ID] = append([]geoguess.Round(nil), rounds...)
	return nil
}

func (t memTx) RecordGuess(_ context.Context, gameID string, n int, guess geoguess.Guess) error {
	if err := t.fail("RecordGuess"); err != nil {
		return err
	}
	rounds := t.m.rounds[gameID]
	for i := range rounds {
		if rounds[i].RoundNumber != n {
			continue
		}
		if !rounds[i].Pending() {
			return ErrAlreadyGuessed
		}
		rounds[i].Guess = &guess
		return nil
	}
	return ErrNotFound
}

func (t memTx) AdvanceRound(_ context.Context, gameID string, from, total int) error {
	if err := t.fail("AdvanceRound"); err != nil {
		return err
	}
	g := t.m.games[gameID]
	if g.CurrentRound != from {
		return ErrAlreadyGuessed
	}
	g.CurrentRound++
	g.TotalScore = total
	t.m.games[gameID] = g
	return nil
}

func (t memTx) CompleteGame(_ context.Context, gameID string, total int, at time.Time) error {
	if err := t.fail("CompleteGame"); err != nil {
		return err
	}
	g := t.m.games[gameID]
	if g.Status != geoguess.GameStatusInProgress {
		return ErrInvalidState
	}
	g.Status = geoguess.GameStatusCompleted
	g.TotalScore = total
	g.CompletedAt = &at
	t.m.games[gameID] = g
	return nil
}

func (t memTx) GetUser(_ context.Context, userID string) (geoguess.User, error) {
	u, ok := t.m.users[userID]
	if !ok {
		return geoguess.User{}, ErrNotFound
	}
	return u, nil
}

func (t memTx) SaveUserStats(_ context.Context, u geoguess.User) error {
	if err := t.fail("SaveUserStats"); err != nil {
		return err
	}
	t.m.users[u.ID] = u
	return nil
}

type fakeSampler struct {
	locations []geoguess.Location
	err       error
}

func (f *fakeSampler) Sample(_ context.Context, count int) ([]geoguess.Location, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.locations[:count], nil
}

// fakeCache keeps pages per generation, like the Redis cache.
type fakeCache struct {
	mu          sync.Mutex
	gen         int64
	pages       map[int64]map[string]LeaderboardPage
	invalidated int
}

func (c *fakeCache) Get(_ context.Context, key string) (LeaderboardPage, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pages[c.gen][key]
	return p, c.gen, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key string, gen int64, page LeaderboardPage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pages == nil {
		c.pages = map[int64]map[string]LeaderboardPage{}
	}
	if c.pages[gen] == nil {
		c.pages[gen] = map[string]LeaderboardPage{}
	}
	c.pages[gen][key] = page
	return nil
}

func (c *fakeCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.invalidated++
	return nil
}

type fakeMetrics struct {
	mu        sync.Mutex
	created   int
	scored    []int
	completed []int
	rejected  []string
}

func (f *fakeMetrics) GameCreated(geoguess.Mode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
}

func (f *fakeMetrics) RoundScored(_ geoguess.Mode, score int, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scored = append(f.scored, score)
}

func (f *fakeMetrics) GameCompleted(_ geoguess.Mode, total int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, total)
}

func (f *fakeMetrics) GuessRejected(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected = append(f.rejected, reason)
}
