package competition

import (
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchScheduled  MatchStatus = "scheduled"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
	MatchWalkover   MatchStatus = "walkover"
	MatchCancelled  MatchStatus = "cancelled"
)

// Resolved reports whether the match no longer blocks its round.
func (s MatchStatus) Resolved() bool {
	return s == MatchCompleted || s == MatchWalkover || s == MatchCancelled
}

// Counts reports whether the match contributes to standings.
func (s MatchStatus) Counts() bool {
	return s == MatchCompleted || s == MatchWalkover
}

type Match struct {
	ID            uuid.UUID `db:"id" json:"id"`
	CompetitionID uuid.UUID `db:"competition_id" json:"competition_id"`
	RoundID       uuid.UUID `db:"round_id" json:"round_id"`
	RoundNumber   int       `db:"round_number" json:"round_number"`

	// Regular matches reference their box, playoff matches their bracket position
	BoxID           *uuid.UUID `db:"box_id" json:"box_id,omitempty"`
	BracketRound    *int       `db:"bracket_round" json:"bracket_round,omitempty"`
	BracketPosition *int       `db:"bracket_position" json:"bracket_position,omitempty"`
	MatchOrder      int        `db:"match_order" json:"match_order"`

	HomeID *uuid.UUID `db:"home_id" json:"home_id,omitempty"`
	AwayID *uuid.UUID `db:"away_id" json:"away_id,omitempty"`

	Status      MatchStatus `db:"status" json:"status"`
	HomeScore   *int        `db:"home_score" json:"home_score,omitempty"`
	AwayScore   *int        `db:"away_score" json:"away_score,omitempty"`
	WinnerID    *uuid.UUID  `db:"winner_id" json:"winner_id,omitempty"`
	ScheduledAt *time.Time  `db:"scheduled_at" json:"scheduled_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (m *Match) Involves(id uuid.UUID) bool {
	return (m.HomeID != nil && *m.HomeID == id) || (m.AwayID != nil && *m.AwayID == id)
}

// Opponent returns the other side of the match, or nil if id does not play in it.
func (m *Match) Opponent(id uuid.UUID) *uuid.UUID {
	switch {
	case m.HomeID != nil && *m.HomeID == id:
		return m.AwayID
	case m.AwayID != nil && *m.AwayID == id:
		return m.HomeID
	}
	return nil
}

func (m *Match) IsWinner(id uuid.UUID) bool {
	return m.Status.Counts() && m.WinnerID != nil && *m.WinnerID == id
}

func (m *Match) IsLoser(id uuid.UUID) bool {
	return m.Status.Counts() && m.WinnerID != nil && *m.WinnerID != id && m.Involves(id)
}

// IsPlayoff reports whether the match sits in the elimination bracket.
func (m *Match) IsPlayoff() bool {
	return m.BracketRound != nil
}

type Stage string

const (
	StageRegular Stage = "regular"
	StagePlayoff Stage = "playoff"
)

type RoundStatus string

const (
	RoundScheduled  RoundStatus = "scheduled"
	RoundInProgress RoundStatus = "in_progress"
	RoundComplete   RoundStatus = "complete"
)

type Round struct {
	ID            uuid.UUID   `db:"id" json:"id"`
	CompetitionID uuid.UUID   `db:"competition_id" json:"competition_id"`
	Number        int         `db:"number" json:"number"`
	Stage         Stage       `db:"stage" json:"stage"`
	Status        RoundStatus `db:"status" json:"status"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// RoundStatusOf derives a round's status from its matches.
func RoundStatusOf(matches []Match) RoundStatus {
	resolved := 0
	started := false
	for _, m := range matches {
		if m.Status.Resolved() {
			resolved++
		}
		if m.Status == MatchInProgress {
			started = true
		}
	}

	switch {
	case resolved == len(matches):
		return RoundComplete
	case resolved > 0 || started:
		return RoundInProgress
	default:
		return RoundScheduled
	}
}

// Unresolved counts matches still scheduled or in progress.
func Unresolved(matches []Match) int {
	n := 0
	for _, m := range matches {
		if !m.Status.Resolved() {
			n++
		}
	}
	return n
}
