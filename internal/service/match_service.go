package service

import (
	"context"
	"log/slog"

	"github.com/AdamBeresnev/box-league-engine/internal/competition"
	"github.com/AdamBeresnev/box-league-engine/internal/store"
	"github.com/google/uuid"
)

type MatchService struct {
	store  store.EntityStore
	logger *slog.Logger
}

func NewMatchService(store store.EntityStore, logger *slog.Logger) *MatchService {
	return &MatchService{store: store, logger: logger}
}

// ResultInput carries either both scores or the winner of a walkover.
type ResultInput struct {
	HomeScore      *int       `json:"home_score,omitempty"`
	AwayScore      *int       `json:"away_score,omitempty"`
	WalkoverWinner *uuid.UUID `json:"walkover_winner,omitempty"`
}

func (in ResultInput) validate() error {
	if in.WalkoverWinner != nil {
		if in.HomeScore != nil || in.AwayScore != nil {
			return competition.Validation(competition.CodeInvalidScore, "a walkover carries no score")
		}
		return nil
	}

	switch {
	case in.HomeScore == nil || in.AwayScore == nil:
		return competition.Validation(competition.CodeInvalidScore, "both scores are required")
	case *in.HomeScore < 0 || *in.AwayScore < 0:
		return competition.Validation(competition.CodeInvalidScore, "scores must not be negative")
	case *in.HomeScore == *in.AwayScore:
		return competition.Validation(competition.CodeInvalidScore, "a match needs a winner, draws are not recorded")
	}
	return nil
}

func (s *MatchService) GetMatch(ctx context.Context, id uuid.UUID) (*competition.Match, error) {
	m, err := s.store.GetMatch(ctx, id)
	if err != nil {
		return nil, competition.Internal("failed to get match", err)
	}
	return m, nil
}

// StartMatch marks a scheduled match as being played. Starting it again is a no-op.
func (s *MatchService) StartMatch(ctx context.Context, id uuid.UUID) (*competition.Match, error) {
	var result *competition.Match

	err := s.withMatch(ctx, id, func(tx store.Tx, m *competition.Match) error {
		result = m
		switch m.Status {
		case competition.MatchInProgress:
			return nil
		case competition.MatchScheduled:
		default:
			return competition.Conflict(competition.CodeMatchAlreadyResolved, "match %s is %s", m.ID, m.Status)
		}
		if m.HomeID == nil || m.AwayID == nil {
			return competition.Conflict(competition.CodeInvalidTransition, "match %s is missing a participant", m.ID)
		}

		m.Status = competition.MatchInProgress
		if err := tx.UpdateMatch(ctx, m); err != nil {
			return err
		}
		return refreshRound(ctx, tx, m.RoundID)
	})
	if err != nil {
		return nil, competition.Internal("failed to start match", err)
	}
	return result, nil
}

// RecordResult resolves a match. Only scheduled or in-progress matches accept a result;
// a second submission for the same match fails with MATCH_ALREADY_RESOLVED. Bracket
// winners move into the slot of the next bracket round.
func (s *MatchService) RecordResult(ctx context.Context, id uuid.UUID, input ResultInput) (*competition.Match, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var result *competition.Match
	err := s.withMatch(ctx, id, func(tx store.Tx, m *competition.Match) error {
		if m.Status.Resolved() {
			return competition.Conflict(competition.CodeMatchAlreadyResolved, "match %s is already %s", m.ID, m.Status)
		}
		if m.HomeID == nil || m.AwayID == nil {
			return competition.Conflict(competition.CodeInvalidTransition, "match %s is missing a participant", m.ID)
		}

		if input.WalkoverWinner != nil {
			if !m.Involves(*input.WalkoverWinner) {
				return competition.Validation(competition.CodeInvalidInput,
					"participant %s does not play in match %s", *input.WalkoverWinner, m.ID)
			}
			winner := *input.WalkoverWinner
			m.Status = competition.MatchWalkover
			m.HomeScore, m.AwayScore = nil, nil
			m.WinnerID = &winner
		} else {
			home, away := *input.HomeScore, *input.AwayScore
			m.Status = competition.MatchCompleted
			m.HomeScore, m.AwayScore = &home, &away
			m.WinnerID = m.HomeID
			if away > home {
				m.WinnerID = m.AwayID
			}
		}

		if err := tx.ResolveMatch(ctx, m); err != nil {
			return err
		}

		if m.IsPlayoff() {
			slots, err := tx.ListBracketSlots(ctx, m.CompetitionID)
			if err != nil {
				return err
			}
			if err := advanceWinner(ctx, tx, slots, *m); err != nil {
				return err
			}
		}

		result = m
		return refreshRound(ctx, tx, m.RoundID)
	})
	if err != nil {
		return nil, competition.Internal("failed to record result", err)
	}

	s.logger.Info("match resolved",
		"competition_id", result.CompetitionID,
		"match_id", result.ID,
		"status", result.Status,
		"winner_id", result.WinnerID,
	)
	return result, nil
}

// withMatch locks the match's competition and hands fn a fresh copy of the match read
// under the lock.
func (s *MatchService) withMatch(ctx context.Context, id uuid.UUID, fn func(tx store.Tx, m *competition.Match) error) error {
	m, err := s.store.GetMatch(ctx, id)
	if err != nil {
		return err
	}

	return s.store.WithCompetitionLock(ctx, m.CompetitionID, func(tx store.Tx) error {
		if _, err := loadMutable(ctx, tx, m.CompetitionID); err != nil {
			return err
		}
		current, err := tx.GetMatch(ctx, id)
		if err != nil {
			return err
		}
		return fn(tx, current)
	})
}
