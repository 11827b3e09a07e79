package store

import (
	"context"

	"github.com/AdamBeresnev/box-league-engine/internal/competition"
	"github.com/google/uuid"
)

// Reader is the read side of the entity store. Single-row lookups return a NotFound
// competition error when nothing matches.
type Reader interface {
	GetCompetition(ctx context.Context, id uuid.UUID) (*competition.Competition, error)
	ListCompetitions(ctx context.Context) ([]competition.Competition, error)
	GetParticipant(ctx context.Context, id uuid.UUID) (*competition.Participant, error)
	ListParticipants(ctx context.Context, competitionID uuid.UUID) ([]competition.Participant, error)
	GetBox(ctx context.Context, id uuid.UUID) (*competition.Box, error)
	ListBoxes(ctx context.Context, competitionID uuid.UUID) ([]competition.Box, error)
	GetRound(ctx context.Context, competitionID uuid.UUID, number int) (*competition.Round, error)
	ListRounds(ctx context.Context, competitionID uuid.UUID) ([]competition.Round, error)
	GetMatch(ctx context.Context, id uuid.UUID) (*competition.Match, error)
	ListMatches(ctx context.Context, competitionID uuid.UUID) ([]competition.Match, error)
	ListRoundMatches(ctx context.Context, roundID uuid.UUID) ([]competition.Match, error)
	ListBracketSlots(ctx context.Context, competitionID uuid.UUID) ([]competition.BracketSlot, error)
}

// Tx is a unit of work running under a competition lock. Reads made through it see the
// writes made earlier in the same unit.
type Tx interface {
	Reader

	UpdateCompetition(ctx context.Context, c *competition.Competition) error
	CreateParticipant(ctx context.Context, p *competition.Participant) error
	UpdateParticipant(ctx context.Context, p *competition.Participant) error
	CreateBoxes(ctx context.Context, boxes []competition.Box) error
	CreateRound(ctx context.Context, r *competition.Round) error
	UpdateRoundStatus(ctx context.Context, roundID uuid.UUID, status competition.RoundStatus) error
	CreateMatches(ctx context.Context, matches []competition.Match) error
	UpdateMatch(ctx context.Context, m *competition.Match) error
	// ResolveMatch writes an outcome only while the match is still open and fails with
	// MATCH_ALREADY_RESOLVED otherwise.
	ResolveMatch(ctx context.Context, m *competition.Match) error
	CreateBracketSlots(ctx context.Context, slots []competition.BracketSlot) error
	UpdateBracketSlot(ctx context.Context, slot *competition.BracketSlot) error
}

// EntityStore is the persistence contract of the engine.
type EntityStore interface {
	Reader

	CreateCompetition(ctx context.Context, c *competition.Competition) error
	// WithCompetitionLock runs fn in a single transaction holding the competition's lock.
	// Nothing fn writes becomes visible unless fn returns nil and the commit succeeds.
	WithCompetitionLock(ctx context.Context, competitionID uuid.UUID, fn func(tx Tx) error) error
}
