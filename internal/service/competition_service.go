package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AdamBeresnev/box-league-engine/internal/competition"
	"github.com/AdamBeresnev/box-league-engine/internal/store"
	"github.com/AdamBeresnev/box-league-engine/internal/utils"
	"github.com/google/uuid"
)

// Archiver receives the final snapshot of every completed competition.
type Archiver interface {
	Archive(ctx context.Context, snapshot *competition.Snapshot) error
}

// CompetitionService drives a competition through its lifecycle. Every mutation runs
// under the competition lock, so concurrent calls on one competition are serialised
// while different competitions proceed independently.
type CompetitionService struct {
	store     store.EntityStore
	logger    *slog.Logger
	defaults  competition.Settings
	archiver  Archiver
	snapshots *StandingsService

	archiveTimeout time.Duration
}

type Option func(*CompetitionService)

// WithDefaults sets the settings used when a competition is created without any.
func WithDefaults(settings competition.Settings) Option {
	return func(s *CompetitionService) {
		s.defaults = settings
	}
}

func WithArchiver(archiver Archiver) Option {
	return func(s *CompetitionService) {
		s.archiver = archiver
	}
}

// WithArchiveTimeout caps how long Complete waits on the archiver. A caller deadline
// that ends sooner wins.
func WithArchiveTimeout(timeout time.Duration) Option {
	return func(s *CompetitionService) {
		s.archiveTimeout = timeout
	}
}

func NewCompetitionService(store store.EntityStore, logger *slog.Logger, opts ...Option) *CompetitionService {
	s := &CompetitionService{
		store:          store,
		logger:         logger,
		defaults:       competition.DefaultSettings(),
		snapshots:      NewStandingsService(store),
		archiveTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Defaults returns a copy of the settings applied to new competitions.
func (s *CompetitionService) Defaults() competition.Settings {
	return s.defaults
}

// CreateInput describes a new competition. A nil Settings means the defaults; callers
// decoding partial settings should start from Defaults.
type CreateInput struct {
	Name     string                `json:"name"`
	Mode     competition.Mode      `json:"mode"`
	Settings *competition.Settings `json:"settings,omitempty"`
}

type EnrollInput struct {
	Name       string  `json:"name"`
	AccountRef *string `json:"account_ref,omitempty"`
	Rating     *int    `json:"rating,omitempty"`
}

func (s *CompetitionService) CreateCompetition(ctx context.Context, input CreateInput) (*competition.Competition, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, competition.Validation(competition.CodeInvalidInput, "competition name is required")
	}

	mode := input.Mode
	if mode == "" {
		mode = competition.ModeLeague
	}
	if mode != competition.ModeLeague && mode != competition.ModeTournament {
		return nil, competition.Validation(competition.CodeInvalidInput, "unknown mode %q", mode)
	}

	settings := s.defaults
	if input.Settings != nil {
		settings = *input.Settings
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	c := &competition.Competition{
		ID:       uuid.New(),
		Name:     name,
		Mode:     mode,
		Status:   competition.StatusSetup,
		Settings: settings,
	}
	if err := s.store.CreateCompetition(ctx, c); err != nil {
		return nil, competition.Internal("failed to create competition", err)
	}

	s.logger.Info("competition created", "competition_id", c.ID, "mode", c.Mode)
	return c, nil
}

func (s *CompetitionService) GetCompetition(ctx context.Context, id uuid.UUID) (*competition.Competition, error) {
	c, err := s.store.GetCompetition(ctx, id)
	if err != nil {
		return nil, competition.Internal("failed to get competition", err)
	}
	return c, nil
}

func (s *CompetitionService) ListCompetitions(ctx context.Context) ([]competition.Competition, error) {
	competitions, err := s.store.ListCompetitions(ctx)
	if err != nil {
		return nil, competition.Internal("failed to list competitions", err)
	}
	return competitions, nil
}

// OpenRegistration moves a competition from setup to open. Opening an open competition
// is a no-op.
func (s *CompetitionService) OpenRegistration(ctx context.Context, id uuid.UUID) (*competition.Competition, error) {
	var result *competition.Competition
	var from competition.Status

	err := s.store.WithCompetitionLock(ctx, id, func(tx store.Tx) error {
		c, err := loadMutable(ctx, tx, id)
		if err != nil {
			return err
		}
		result, from = c, c.Status

		switch c.Status {
		case competition.StatusOpen:
			return nil
		case competition.StatusSetup:
			c.Status = competition.StatusOpen
			return tx.UpdateCompetition(ctx, c)
		default:
			return invalidTransition(c, competition.StatusOpen)
		}
	})
	if err != nil {
		return nil, competition.Internal("failed to open registration", err)
	}

	s.logTransition(result, from)
	return result, nil
}

// Enroll adds a participant to an open competition. The seed is the join order.
func (s *CompetitionService) Enroll(ctx context.Context, id uuid.UUID, input EnrollInput) (*competition.Participant, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, competition.Validation(competition.CodeInvalidInput, "participant name is required")
	}
	accountRef := utils.StringOrNil(utils.OrZero(input.AccountRef))

	var p *competition.Participant
	err := s.store.WithCompetitionLock(ctx, id, func(tx store.Tx) error {
		c, err := loadMutable(ctx, tx, id)
		if err != nil {
			return err
		}
		if c.Status != competition.StatusOpen {
			return competition.Conflict(competition.CodeInvalidTransition,
				"competition %s is %s, enrollment requires %s", c.ID, c.Status, competition.StatusOpen)
		}

		existing, err := tx.ListParticipants(ctx, id)
		if err != nil {
			return err
		}
		if len(competition.Active(existing)) >= c.MaxParticipants {
			return competition.Validation(competition.CodeParticipantLimit,
				"competition %s already has %d participants", c.ID, c.MaxParticipants)
		}
		if accountRef != nil {
			for _, e := range existing {
				if !e.Withdrawn && e.AccountRef != nil && *e.AccountRef == *accountRef {
					return competition.Validation(competition.CodeDuplicateParticipant,
						"account %s is already enrolled", *accountRef)
				}
			}
		}

		p = &competition.Participant{
			ID:            uuid.New(),
			CompetitionID: id,
			Name:          name,
			AccountRef:    accountRef,
			Rating:        input.Rating,
			Seed:          len(existing) + 1,
		}
		if err := tx.CreateParticipant(ctx, p); err != nil {
			return err
		}

		c.ParticipantCount = len(competition.Active(existing)) + 1
		return tx.UpdateCompetition(ctx, c)
	})
	if err != nil {
		return nil, competition.Internal("failed to enroll participant", err)
	}

	s.logger.Info("participant enrolled", "competition_id", id, "participant_id", p.ID, "seed", p.Seed)
	return p, nil
}

// Withdraw removes a participant from future pairings. Their open matches are cancelled,
// or awarded to the opponent in playoffs and under the walkover policy. Withdrawing twice
// is a no-op.
func (s *CompetitionService) Withdraw(ctx context.Context, id, participantID uuid.UUID) (*competition.Participant, error) {
	var p *competition.Participant
	err := s.store.WithCompetitionLock(ctx, id, func(tx store.Tx) error {
		c, err := loadMutable(ctx, tx, id)
		if err != nil {
			return err
		}

		p, err = tx.GetParticipant(ctx, participantID)
		if err != nil {
			return err
		}
		if p.CompetitionID != id {
			return competition.NotFound("participant %s not found in competition %s", participantID, id)
		}
		if p.Withdrawn {
			return nil
		}

		p.Withdrawn = true
		if err := tx.UpdateParticipant(ctx, p); err != nil {
			return err
		}

		if err := s.forfeitOpenMatches(ctx, tx, c, participantID); err != nil {
			return err
		}

		c.ParticipantCount = max(c.ParticipantCount-1, 0)
		return tx.UpdateCompetition(ctx, c)
	})
	if err != nil {
		return nil, competition.Internal("failed to withdraw participant", err)
	}

	s.logger.Info("participant withdrawn", "competition_id", id, "participant_id", participantID)
	return p, nil
}

func (s *CompetitionService) forfeitOpenMatches(ctx context.Context, tx store.Tx, c *competition.Competition, participantID uuid.UUID) error {
	matches, err := tx.ListMatches(ctx, c.ID)
	if err != nil {
		return err
	}

	var slots []competition.BracketSlot
	touched := make(map[uuid.UUID]bool)
	for i := range matches {
		m := &matches[i]
		if m.Status.Resolved() || !m.Involves(participantID) {
			continue
		}

		opponent := m.Opponent(participantID)
		awardable := m.IsPlayoff() || c.WithdrawalPolicy == competition.WithdrawalWalkover
		if awardable && opponent != nil {
			m.Status = competition.MatchWalkover
			m.WinnerID = opponent
		} else {
			m.Status = competition.MatchCancelled
		}
		m.HomeScore, m.AwayScore = nil, nil

		if err := tx.ResolveMatch(ctx, m); err != nil {
			return err
		}
		touched[m.RoundID] = true

		if m.IsPlayoff() && m.WinnerID != nil {
			if slots == nil {
				if slots, err = tx.ListBracketSlots(ctx, c.ID); err != nil {
					return err
				}
			}
			if err := advanceWinner(ctx, tx, slots, *m); err != nil {
				return err
			}
		}
	}

	for roundID := range touched {
		if err := refreshRound(ctx, tx, roundID); err != nil {
			return err
		}
	}
	return nil
}

// Cancel stops a competition for good. Open matches are cancelled.
func (s *CompetitionService) Cancel(ctx context.Context, id uuid.UUID) (*competition.Competition, error) {
	var result *competition.Competition
	var from competition.Status

	err := s.store.WithCompetitionLock(ctx, id, func(tx store.Tx) error {
		c, err := tx.GetCompetition(ctx, id)
		if err != nil {
			return err
		}
		result, from = c, c.Status

		switch c.Status {
		case competition.StatusCancelled:
			return nil
		case competition.StatusCompleted:
			return competition.Conflict(competition.CodeCompetitionClosed, "competition %s is already completed", c.ID)
		}

		matches, err := tx.ListMatches(ctx, id)
		if err != nil {
			return err
		}
		touched := make(map[uuid.UUID]bool)
		for i := range matches {
			if matches[i].Status.Resolved() {
				continue
			}
			matches[i].Status = competition.MatchCancelled
			if err := tx.ResolveMatch(ctx, &matches[i]); err != nil {
				return err
			}
			touched[matches[i].RoundID] = true
		}
		for roundID := range touched {
			if err := refreshRound(ctx, tx, roundID); err != nil {
				return err
			}
		}

		c.Status = competition.StatusCancelled
		return tx.UpdateCompetition(ctx, c)
	})
	if err != nil {
		return nil, competition.Internal("failed to cancel competition", err)
	}

	s.logTransition(result, from)
	return result, nil
}

func (s *CompetitionService) logTransition(c *competition.Competition, from competition.Status) {
	if c == nil || c.Status == from {
		return
	}
	s.logger.Info("competition transitioned",
		"competition_id", c.ID,
		"from", from,
		"to", c.Status,
		"round", c.CurrentRound,
	)
}

// loadMutable reads the competition and rejects terminal ones.
func loadMutable(ctx context.Context, tx store.Tx, id uuid.UUID) (*competition.Competition, error) {
	c, err := tx.GetCompetition(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status.Terminal() {
		return nil, competition.Conflict(competition.CodeCompetitionClosed, "competition %s is %s", c.ID, c.Status)
	}
	return c, nil
}

func invalidTransition(c *competition.Competition, to competition.Status) error {
	return competition.Conflict(competition.CodeInvalidTransition,
		"competition %s cannot move from %s to %s", c.ID, c.Status, to)
}

// refreshRound stores the status derived from the round's matches.
func refreshRound(ctx context.Context, tx store.Tx, roundID uuid.UUID) error {
	matches, err := tx.ListRoundMatches(ctx, roundID)
	if err != nil {
		return err
	}
	if err := tx.UpdateRoundStatus(ctx, roundID, competition.RoundStatusOf(matches)); err != nil {
		return fmt.Errorf("failed to refresh round status: %w", err)
	}
	return nil
}
