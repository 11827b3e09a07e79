package competition

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusSetup              Status = "setup"
	StatusOpen               Status = "open"
	StatusRegularInProgress  Status = "regular_in_progress"
	StatusRegularComplete    Status = "regular_complete"
	StatusPlayoffsInProgress Status = "playoffs_in_progress"
	StatusCompleted          Status = "completed"
	StatusCancelled          Status = "cancelled"
)

// Terminal reports whether no further mutation is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Mode string

const (
	// League partitions participants into boxes that play round robin, followed by playoffs.
	ModeLeague Mode = "league"
	// Tournament seeds every participant straight into a single elimination bracket.
	ModeTournament Mode = "tournament"
)

type PlayoffMode string

const (
	PlayoffPerBox  PlayoffMode = "per_box"
	PlayoffOverall PlayoffMode = "overall"
)

type WithdrawalPolicy string

const (
	WithdrawalCancel   WithdrawalPolicy = "cancel"
	WithdrawalWalkover WithdrawalPolicy = "walkover"
)

type Settings struct {
	BoxSize         int `db:"box_size" json:"box_size" yaml:"box_size"`
	MinParticipants int `db:"min_participants" json:"min_participants" yaml:"min_participants"`
	MaxParticipants int `db:"max_participants" json:"max_participants" yaml:"max_participants"`
	// RegularRounds is the configured schedule length; 0 runs a full round-robin cycle.
	RegularRounds     int              `db:"regular_rounds" json:"regular_rounds" yaml:"regular_rounds"`
	PlayoffQualifiers int              `db:"playoff_qualifiers" json:"playoff_qualifiers" yaml:"playoff_qualifiers"`
	PlayoffMode       PlayoffMode      `db:"playoff_mode" json:"playoff_mode" yaml:"playoff_mode"`
	WithdrawalPolicy  WithdrawalPolicy `db:"withdrawal_policy" json:"withdrawal_policy" yaml:"withdrawal_policy"`
}

// MaxBoxSize bounds a box; every member meets every other once per box cycle.
const MaxBoxSize = 8

// DefaultSettings mirrors the defaults documented for the engine configuration.
func DefaultSettings() Settings {
	return Settings{
		BoxSize:           4,
		MinParticipants:   2,
		MaxParticipants:   64,
		RegularRounds:     0,
		PlayoffQualifiers: 1,
		PlayoffMode:       PlayoffPerBox,
		WithdrawalPolicy:  WithdrawalCancel,
	}
}

func (s Settings) Validate() error {
	switch {
	case s.BoxSize < 2:
		return Validation(CodeInvalidSettings, "box size must be at least 2")
	case s.BoxSize > MaxBoxSize:
		return Validation(CodeInvalidSettings, "box size must be at most %d", MaxBoxSize)
	case s.MinParticipants < 2:
		return Validation(CodeInvalidSettings, "minimum participants must be at least 2")
	case s.MaxParticipants < s.MinParticipants:
		return Validation(CodeInvalidSettings, "maximum participants must not be below the minimum")
	case s.RegularRounds < 0:
		return Validation(CodeInvalidSettings, "regular rounds must not be negative")
	case s.PlayoffQualifiers < 0:
		return Validation(CodeInvalidSettings, "playoff qualifiers must not be negative")
	}

	if s.PlayoffMode != PlayoffPerBox && s.PlayoffMode != PlayoffOverall {
		return Validation(CodeInvalidSettings, "unknown playoff mode %q", s.PlayoffMode)
	}
	if s.WithdrawalPolicy != WithdrawalCancel && s.WithdrawalPolicy != WithdrawalWalkover {
		return Validation(CodeInvalidSettings, "unknown withdrawal policy %q", s.WithdrawalPolicy)
	}
	return nil
}

type Competition struct {
	ID     uuid.UUID `db:"id" json:"id"`
	Name   string    `db:"name" json:"name"`
	Mode   Mode      `db:"mode" json:"mode"`
	Status Status    `db:"status" json:"status"`

	Settings

	// Fixed when the competition starts; 0 for tournaments.
	TotalRegularRounds int        `db:"total_regular_rounds" json:"total_regular_rounds"`
	ParticipantCount   int        `db:"participant_count" json:"participant_count"`
	CurrentRound       int        `db:"current_round" json:"current_round"`
	ChampionID         *uuid.UUID `db:"champion_id" json:"champion_id,omitempty"`
	LockVersion        int        `db:"lock_version" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
