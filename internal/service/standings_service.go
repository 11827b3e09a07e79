package service

import (
	"context"

	"github.com/AdamBeresnev/box-league-engine/internal/competition"
	"github.com/AdamBeresnev/box-league-engine/internal/standings"
	"github.com/AdamBeresnev/box-league-engine/internal/store"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// StandingsService serves read models. It takes no locks and recomputes everything from
// the latest committed matches on every call.
type StandingsService struct {
	store store.Reader
}

func NewStandingsService(store store.Reader) *StandingsService {
	return &StandingsService{store: store}
}

// GetBoxStructure lists the boxes of a league with their members in seat order.
func (s *StandingsService) GetBoxStructure(ctx context.Context, competitionID uuid.UUID) ([]competition.Box, error) {
	if _, err := s.store.GetCompetition(ctx, competitionID); err != nil {
		return nil, competition.Internal("failed to get competition", err)
	}

	boxes, err := s.store.ListBoxes(ctx, competitionID)
	if err != nil {
		return nil, competition.Internal("failed to list boxes", err)
	}
	participants, err := s.store.ListParticipants(ctx, competitionID)
	if err != nil {
		return nil, competition.Internal("failed to list participants", err)
	}

	for i := range boxes {
		boxes[i].Members = membersOf(boxes[i].ID, participants)
	}
	return boxes, nil
}

// GetBoxStandings ranks the members of one box.
func (s *StandingsService) GetBoxStandings(ctx context.Context, competitionID, boxID uuid.UUID) (*competition.BoxStandings, error) {
	box, err := s.store.GetBox(ctx, boxID)
	if err != nil {
		return nil, competition.Internal("failed to get box", err)
	}
	if box.CompetitionID != competitionID {
		return nil, competition.NotFound("box %s not found in competition %s", boxID, competitionID)
	}

	participants, err := s.store.ListParticipants(ctx, competitionID)
	if err != nil {
		return nil, competition.Internal("failed to list participants", err)
	}
	matches, err := s.store.ListMatches(ctx, competitionID)
	if err != nil {
		return nil, competition.Internal("failed to list matches", err)
	}

	box.Members = membersOf(box.ID, participants)
	return &competition.BoxStandings{
		Box:       *box,
		Standings: standings.Compute(box.Members, boxMatches(box.ID, matches)),
	}, nil
}

// GetBracket returns the playoff tree and its matches. Competitions without playoffs yet
// return an empty bracket.
func (s *StandingsService) GetBracket(ctx context.Context, competitionID uuid.UUID) (*competition.Bracket, error) {
	if _, err := s.store.GetCompetition(ctx, competitionID); err != nil {
		return nil, competition.Internal("failed to get competition", err)
	}
	return s.bracket(ctx, competitionID)
}

func (s *StandingsService) bracket(ctx context.Context, competitionID uuid.UUID) (*competition.Bracket, error) {
	slots, err := s.store.ListBracketSlots(ctx, competitionID)
	if err != nil {
		return nil, competition.Internal("failed to list bracket slots", err)
	}
	matches, err := s.store.ListMatches(ctx, competitionID)
	if err != nil {
		return nil, competition.Internal("failed to list matches", err)
	}

	b := &competition.Bracket{Slots: slots, Matches: []competition.Match{}}
	for _, m := range matches {
		if m.IsPlayoff() {
			b.Matches = append(b.Matches, m)
		}
	}
	if b.Slots == nil {
		b.Slots = []competition.BracketSlot{}
	}
	return b, nil
}

// Snapshot assembles the full read model of a competition.
func (s *StandingsService) Snapshot(ctx context.Context, competitionID uuid.UUID) (*competition.Snapshot, error) {
	c, err := s.store.GetCompetition(ctx, competitionID)
	if err != nil {
		return nil, competition.Internal("failed to get competition", err)
	}
	snapshot := &competition.Snapshot{Competition: *c}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		boxes, err := s.GetBoxStructure(gctx, competitionID)
		if err != nil {
			return err
		}
		matches, err := s.store.ListMatches(gctx, competitionID)
		if err != nil {
			return competition.Internal("failed to list matches", err)
		}

		snapshot.Boxes = make([]competition.BoxStandings, len(boxes))
		for i, box := range boxes {
			snapshot.Boxes[i] = competition.BoxStandings{
				Box:       box,
				Standings: standings.Compute(box.Members, boxMatches(box.ID, matches)),
			}
		}
		return nil
	})

	g.Go(func() error {
		rounds, err := s.store.ListRounds(gctx, competitionID)
		if err != nil {
			return competition.Internal("failed to list rounds", err)
		}
		snapshot.Rounds = rounds
		return nil
	})

	g.Go(func() error {
		b, err := s.bracket(gctx, competitionID)
		if err != nil {
			return err
		}
		snapshot.Bracket = *b
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snapshot, nil
}
