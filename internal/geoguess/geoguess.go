// Package geoguess defines the core domain types of the guessing game.
// Nothing here touches storage or the network.
package geoguess

import "time"

// RoundsPerGame is the fixed number of rounds in every game.
const RoundsPerGame = 5

// MaxRoundScore is the score awarded for a guess at distance zero.
const MaxRoundScore = 5000

// MaxGameScore is the best possible total for one game.
const MaxGameScore = RoundsPerGame * MaxRoundScore

type Mode string

const (
	ModeClassic Mode = "classic"
	ModeTimed   Mode = "timed"
	ModeNoMove  Mode = "no-move"
)

// ModeConfig is the ruleset a mode applies to every round.
type ModeConfig struct {
	Label         string
	Description   string
	AllowMovement bool
	// TimeLimit is the per-round limit in seconds; nil means unlimited.
	TimeLimit *int
}

var timedLimit = 120

var modeConfigs = map[Mode]ModeConfig{
	ModeClassic: {
		Label:         "Classic",
		Description:   "Unlimited time. Move freely to explore.",
		AllowMovement: true,
	},
	ModeTimed: {
		Label:         "Timed",
		Description:   "Race against the clock. 2 minutes per round.",
		AllowMovement: true,
		TimeLimit:     &timedLimit,
	},
	ModeNoMove: {
		Label:       "No Move",
		Description: "Locked position. Use only what you can see.",
	},
}

// Modes lists the modes in display order.
func Modes() []Mode {
	return []Mode{ModeClassic, ModeTimed, ModeNoMove}
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	_, ok := modeConfigs[m]
	return ok
}

// Config returns the ruleset for m. Unknown modes get the zero config.
func (m Mode) Config() ModeConfig {
	cfg := modeConfigs[m]
	if cfg.TimeLimit != nil {
		limit := *cfg.TimeLimit
		cfg.TimeLimit = &limit
	}
	return cfg
}

type GameStatus string

const (
	GameStatusInProgress GameStatus = "in_progress"
	GameStatusCompleted  GameStatus = "completed"
	GameStatusAbandoned  GameStatus = "abandoned"
)

// Terminal reports whether no further transition is allowed.
func (s GameStatus) Terminal() bool {
	return s == GameStatusCompleted || s == GameStatusAbandoned
}

type Game struct {
	ID           string
	UserID       string
	Mode         Mode
	Status       GameStatus
	CurrentRound int
	TotalScore   int
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// Coord is a WGS-84 point in degrees.
type Coord struct {
	Lat float64
	Lng float64
}

// Round is one panorama of a game. Guess is nil while the round is pending
// and set exactly once, with every guess-time field, when it is answered.
type Round struct {
	ID          string
	GameID      string
	RoundNumber int
	Actual      Coord
	ImageID     string
	Guess       *Guess
}

// Pending reports whether the round still awaits its guess.
func (r Round) Pending() bool {
	return r.Guess == nil
}

type Guess struct {
	Coord      Coord
	DistanceKm float64
	Score      int
	TimeSpent  int
	GuessedAt  time.Time
}

// User holds the aggregate statistics kept per player. Identity itself is
// owned elsewhere; only these fields are read and written here.
type User struct {
	ID            string
	DisplayName   string
	HighScore     int
	TotalGames    int
	CurrentStreak int
	LongestStreak int
	LastPlayedAt  *time.Time
	CreatedAt     time.Time
}

// Location is an entry of the panorama pool.
type Location struct {
	ID       string
	Lat      float64
	Lng      float64
	ImageID  string
	Country  string
	Region   string
	Provider string
	Verified bool
}
