package service

import (
	"context"
	"time"

	"github.com/AdamBeresnev/box-league-engine/internal/bracket"
	"github.com/AdamBeresnev/box-league-engine/internal/competition"
	"github.com/AdamBeresnev/box-league-engine/internal/pairing"
	"github.com/AdamBeresnev/box-league-engine/internal/standings"
	"github.com/AdamBeresnev/box-league-engine/internal/store"
	"github.com/google/uuid"
)

// RoundResult describes the round a progression call produced.
type RoundResult struct {
	Competition *competition.Competition `json:"competition"`
	Round       *competition.Round       `json:"round,omitempty"`
	Matches     []competition.Match      `json:"matches,omitempty"`
	// Final is set when the bracket final has been played and nothing is left to generate.
	Final bool `json:"final,omitempty"`
	// Replayed is set when the call repeated an advance that had already happened.
	Replayed bool `json:"replayed,omitempty"`
}

type RoundCompletion struct {
	Round      competition.Round `json:"round"`
	Complete   bool              `json:"complete"`
	Unresolved int               `json:"unresolved"`
}

// Start closes enrollment and builds the first round. Leagues are split into boxes by
// seeding rank; tournaments go straight to a seeded bracket. Repeating a start that
// already happened returns the current state.
func (s *CompetitionService) Start(ctx context.Context, id uuid.UUID) (*RoundResult, error) {
	var result *RoundResult
	var from competition.Status

	err := s.store.WithCompetitionLock(ctx, id, func(tx store.Tx) error {
		c, err := loadMutable(ctx, tx, id)
		if err != nil {
			return err
		}
		from = c.Status

		if started(c) && c.CurrentRound == 1 {
			result = &RoundResult{Competition: c, Replayed: true}
			return nil
		}
		if c.Status != competition.StatusOpen {
			return invalidTransition(c, competition.StatusRegularInProgress)
		}

		participants, err := tx.ListParticipants(ctx, id)
		if err != nil {
			return err
		}
		active := competition.Active(participants)
		if len(active) < c.MinParticipants {
			return competition.Validation(competition.CodeInsufficientParticipants,
				"competition %s has %d active participants, at least %d required", c.ID, len(active), c.MinParticipants)
		}
		if len(active) > c.MaxParticipants {
			return competition.Validation(competition.CodeParticipantLimit,
				"competition %s has %d active participants, at most %d allowed", c.ID, len(active), c.MaxParticipants)
		}
		ranked := competition.RankForSeeding(active)

		var round *competition.Round
		var matches []competition.Match
		switch c.Mode {
		case competition.ModeTournament:
			round, matches, err = seedBracket(ctx, tx, c, 1, participantIDs(ranked))
			if err != nil {
				return err
			}
			c.Status = competition.StatusPlayoffsInProgress
		default:
			if err := assignBoxes(ctx, tx, c, ranked); err != nil {
				return err
			}
			round, matches, err = generateRegularRound(ctx, tx, c, 1)
			if err != nil {
				return err
			}
			c.Status = competition.StatusRegularInProgress
		}

		c.CurrentRound = 1
		c.ParticipantCount = len(active)
		if err := tx.UpdateCompetition(ctx, c); err != nil {
			return err
		}

		result = &RoundResult{Competition: c, Round: round, Matches: matches}
		return nil
	})
	if err != nil {
		return nil, competition.Internal("failed to start competition", err)
	}

	s.logTransition(result.Competition, from)
	return result, nil
}

func started(c *competition.Competition) bool {
	switch c.Mode {
	case competition.ModeTournament:
		return c.Status == competition.StatusPlayoffsInProgress
	default:
		return c.Status == competition.StatusRegularInProgress
	}
}

func participantIDs(participants []competition.Participant) []uuid.UUID {
	ids := make([]uuid.UUID, len(participants))
	for i, p := range participants {
		ids[i] = p.ID
	}
	return ids
}

// assignBoxes seats ranked participants into boxes, best box first, and fixes the number
// of regular rounds.
func assignBoxes(ctx context.Context, tx store.Tx, c *competition.Competition, ranked []competition.Participant) error {
	groups := pairing.AssignBoxes(ranked, c.BoxSize)

	boxes := make([]competition.Box, len(groups))
	for i := range groups {
		boxes[i] = competition.Box{ID: uuid.New(), CompetitionID: c.ID, Level: i + 1}
	}
	if err := tx.CreateBoxes(ctx, boxes); err != nil {
		return err
	}

	longest := 0
	for i, group := range groups {
		longest = max(longest, pairing.CycleLength(len(group)))
		for position := range group {
			p := group[position]
			p.BoxID = &boxes[i].ID
			p.BoxPosition = &position
			if err := tx.UpdateParticipant(ctx, &p); err != nil {
				return err
			}
		}
	}

	c.TotalRegularRounds = longest
	if c.RegularRounds > 0 && c.RegularRounds < longest {
		c.TotalRegularRounds = c.RegularRounds
	}
	return nil
}

// GenerateRound creates round number explicitly, or the next round when number is 0. It
// must directly follow the current round, which has to be fully resolved.
func (s *CompetitionService) GenerateRound(ctx context.Context, id uuid.UUID, number int) (*RoundResult, error) {
	var result *RoundResult

	err := s.store.WithCompetitionLock(ctx, id, func(tx store.Tx) error {
		c, err := loadMutable(ctx, tx, id)
		if err != nil {
			return err
		}
		if number == 0 {
			number = c.CurrentRound + 1
		}

		if _, err := tx.GetRound(ctx, id, number); err == nil {
			return competition.Conflict(competition.CodeRoundAlreadyExists, "round %d of competition %s already exists", number, id)
		} else if competition.KindOf(err) != competition.KindNotFound {
			return err
		}
		if number != c.CurrentRound+1 {
			return competition.Conflict(competition.CodeInvalidTransition,
				"round %d cannot follow round %d", number, c.CurrentRound)
		}
		if err := requireResolved(ctx, tx, c); err != nil {
			return err
		}

		var round *competition.Round
		var matches []competition.Match
		switch c.Status {
		case competition.StatusRegularInProgress:
			if number > c.TotalRegularRounds {
				return competition.Conflict(competition.CodeInvalidTransition,
					"competition %s has only %d regular rounds", id, c.TotalRegularRounds)
			}
			round, matches, err = generateRegularRound(ctx, tx, c, number)
		case competition.StatusPlayoffsInProgress:
			var final bool
			round, matches, final, err = nextPlayoffRound(ctx, tx, c)
			if err == nil && final {
				return competition.Conflict(competition.CodeInvalidTransition, "bracket of competition %s is finished", id)
			}
		default:
			return competition.Conflict(competition.CodeInvalidTransition, "competition %s is %s, no round to generate", id, c.Status)
		}
		if err != nil {
			return err
		}

		c.CurrentRound = number
		if err := tx.UpdateCompetition(ctx, c); err != nil {
			return err
		}
		result = &RoundResult{Competition: c, Round: round, Matches: matches}
		return nil
	})
	if err != nil {
		return nil, competition.Internal("failed to generate round", err)
	}

	s.logger.Info("round generated", "competition_id", id, "round", number, "matches", len(result.Matches))
	return result, nil
}

// AdvanceRound closes the current round and opens the next one. At the end of the regular
// stage the competition moves to regular_complete; at the bracket final it reports Final.
// A caller that passes the round it believes is current gets the present state back,
// unchanged, when that round was already closed.
func (s *CompetitionService) AdvanceRound(ctx context.Context, id uuid.UUID, expectedRound int) (*RoundResult, error) {
	var result *RoundResult
	var from competition.Status

	err := s.store.WithCompetitionLock(ctx, id, func(tx store.Tx) error {
		c, err := loadMutable(ctx, tx, id)
		if err != nil {
			return err
		}
		from = c.Status

		if expectedRound > 0 {
			if expectedRound < c.CurrentRound || (expectedRound == c.CurrentRound && c.Status == competition.StatusRegularComplete) {
				result = &RoundResult{Competition: c, Replayed: true}
				return nil
			}
			if expectedRound > c.CurrentRound {
				return competition.Conflict(competition.CodeInvalidTransition,
					"competition %s is at round %d, not %d", id, c.CurrentRound, expectedRound)
			}
		}

		switch c.Status {
		case competition.StatusRegularInProgress, competition.StatusPlayoffsInProgress:
		default:
			return competition.Conflict(competition.CodeInvalidTransition, "competition %s is %s, no round to advance", id, c.Status)
		}
		if err := requireResolved(ctx, tx, c); err != nil {
			return err
		}

		result = &RoundResult{Competition: c}
		if c.Status == competition.StatusPlayoffsInProgress {
			round, matches, final, err := nextPlayoffRound(ctx, tx, c)
			if err != nil {
				return err
			}
			if final {
				result.Final = true
				return nil
			}
			c.CurrentRound++
			result.Round, result.Matches = round, matches
			return tx.UpdateCompetition(ctx, c)
		}

		// Rounds emptied by withdrawals are recorded as complete and skipped.
		for c.CurrentRound < c.TotalRegularRounds {
			c.CurrentRound++
			round, matches, err := generateRegularRound(ctx, tx, c, c.CurrentRound)
			if err != nil {
				return err
			}
			result.Round, result.Matches = round, matches
			if round.Status != competition.RoundComplete {
				return tx.UpdateCompetition(ctx, c)
			}
		}

		c.Status = competition.StatusRegularComplete
		return tx.UpdateCompetition(ctx, c)
	})
	if err != nil {
		return nil, competition.Internal("failed to advance round", err)
	}

	s.logTransition(result.Competition, from)
	return result, nil
}

// requireResolved fails with ROUND_INCOMPLETE while the current round has open matches,
// and marks it complete otherwise.
func requireResolved(ctx context.Context, tx store.Tx, c *competition.Competition) error {
	if c.CurrentRound == 0 {
		return nil
	}
	round, err := tx.GetRound(ctx, c.ID, c.CurrentRound)
	if err != nil {
		return err
	}
	matches, err := tx.ListRoundMatches(ctx, round.ID)
	if err != nil {
		return err
	}
	if open := competition.Unresolved(matches); open > 0 {
		return competition.Conflict(competition.CodeRoundIncomplete,
			"round %d of competition %s has %d unresolved matches", round.Number, c.ID, open)
	}
	if round.Status != competition.RoundComplete {
		return tx.UpdateRoundStatus(ctx, round.ID, competition.RoundComplete)
	}
	return nil
}

// nextPlayoffRound generates the bracket round after the current one, or reports final
// when the current round was the last.
func nextPlayoffRound(ctx context.Context, tx store.Tx, c *competition.Competition) (*competition.Round, []competition.Match, bool, error) {
	current, err := currentBracketRound(ctx, tx, c)
	if err != nil {
		return nil, nil, false, err
	}
	slots, err := tx.ListBracketSlots(ctx, c.ID)
	if err != nil {
		return nil, nil, false, err
	}
	if current >= bracket.Rounds(slots) {
		return nil, nil, true, nil
	}

	round, matches, err := generatePlayoffRound(ctx, tx, c, c.CurrentRound+1, current+1)
	if err != nil {
		return nil, nil, false, err
	}
	return round, matches, false, nil
}

func currentBracketRound(ctx context.Context, tx store.Tx, c *competition.Competition) (int, error) {
	rounds, err := tx.ListRounds(ctx, c.ID)
	if err != nil {
		return 0, err
	}
	return c.CurrentRound - playoffOffset(rounds), nil
}

// CheckRoundCompletion reports whether every match of a round is resolved.
func (s *CompetitionService) CheckRoundCompletion(ctx context.Context, id uuid.UUID, number int) (*RoundCompletion, error) {
	if _, err := s.store.GetCompetition(ctx, id); err != nil {
		return nil, competition.Internal("failed to get competition", err)
	}
	round, err := s.store.GetRound(ctx, id, number)
	if err != nil {
		return nil, competition.Internal("failed to get round", err)
	}
	matches, err := s.store.ListRoundMatches(ctx, round.ID)
	if err != nil {
		return nil, competition.Internal("failed to list round matches", err)
	}

	open := competition.Unresolved(matches)
	return &RoundCompletion{Round: *round, Complete: open == 0, Unresolved: open}, nil
}

// StartPlayoffs seeds the bracket from the final regular standings. In per_box mode the
// top PlayoffQualifiers of every box qualify, box winners seeded first in box order; in
// overall mode the best PlayoffQualifiers across all boxes qualify.
func (s *CompetitionService) StartPlayoffs(ctx context.Context, id uuid.UUID) (*RoundResult, error) {
	var result *RoundResult
	var from competition.Status

	err := s.store.WithCompetitionLock(ctx, id, func(tx store.Tx) error {
		c, err := loadMutable(ctx, tx, id)
		if err != nil {
			return err
		}
		from = c.Status

		if c.Mode == competition.ModeLeague && c.Status == competition.StatusPlayoffsInProgress {
			result = &RoundResult{Competition: c, Replayed: true}
			return nil
		}
		if c.Status != competition.StatusRegularComplete {
			return invalidTransition(c, competition.StatusPlayoffsInProgress)
		}
		if c.PlayoffQualifiers == 0 {
			return competition.Validation(competition.CodeInvalidSettings, "competition %s has playoffs disabled", id)
		}

		tables, err := regularTables(ctx, tx, c.ID)
		if err != nil {
			return err
		}
		// A lone qualifier gets a bracket without matches and is champion on completion.
		seeds := qualifiers(tables, c.PlayoffQualifiers, c.PlayoffMode)
		if len(seeds) == 0 {
			return competition.Validation(competition.CodeInsufficientParticipants,
				"no participant qualifies for playoffs")
		}

		round, matches, err := seedBracket(ctx, tx, c, c.CurrentRound+1, seeds)
		if err != nil {
			return err
		}

		c.CurrentRound++
		c.Status = competition.StatusPlayoffsInProgress
		if err := tx.UpdateCompetition(ctx, c); err != nil {
			return err
		}
		result = &RoundResult{Competition: c, Round: round, Matches: matches}
		return nil
	})
	if err != nil {
		return nil, competition.Internal("failed to start playoffs", err)
	}

	s.logTransition(result.Competition, from)
	return result, nil
}

// regularTables computes the standings of every box, in box order.
func regularTables(ctx context.Context, r store.Reader, competitionID uuid.UUID) ([][]competition.Standing, error) {
	boxes, err := r.ListBoxes(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	participants, err := r.ListParticipants(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	matches, err := r.ListMatches(ctx, competitionID)
	if err != nil {
		return nil, err
	}

	tables := make([][]competition.Standing, len(boxes))
	for i, box := range boxes {
		tables[i] = standings.Compute(membersOf(box.ID, participants), boxMatches(box.ID, matches))
	}
	return tables, nil
}

func withoutWithdrawn(table []competition.Standing) []competition.Standing {
	var out []competition.Standing
	for _, row := range table {
		if !row.Withdrawn {
			out = append(out, row)
		}
	}
	return out
}

func qualifiers(tables [][]competition.Standing, q int, mode competition.PlayoffMode) []uuid.UUID {
	var seeds []uuid.UUID

	if mode == competition.PlayoffOverall {
		var pool []competition.Standing
		for _, table := range tables {
			pool = append(pool, withoutWithdrawn(table)...)
		}
		for i, row := range standings.Rank(pool) {
			if i >= q {
				break
			}
			seeds = append(seeds, row.ParticipantID)
		}
		return seeds
	}

	active := make([][]competition.Standing, len(tables))
	for i, table := range tables {
		active[i] = withoutWithdrawn(table)
	}
	for rank := 0; rank < q; rank++ {
		for _, table := range active {
			if rank < len(table) {
				seeds = append(seeds, table[rank].ParticipantID)
			}
		}
	}
	return seeds
}

// Complete closes the competition and names the champion: the bracket winner, or the top of
// the first box when playoffs are disabled. Completing twice returns the same result.
func (s *CompetitionService) Complete(ctx context.Context, id uuid.UUID) (*competition.Competition, error) {
	var result *competition.Competition
	var from competition.Status
	replayed := false

	err := s.store.WithCompetitionLock(ctx, id, func(tx store.Tx) error {
		c, err := tx.GetCompetition(ctx, id)
		if err != nil {
			return err
		}
		result, from = c, c.Status

		switch c.Status {
		case competition.StatusCompleted:
			replayed = true
			return nil
		case competition.StatusCancelled:
			return competition.Conflict(competition.CodeCompetitionClosed, "competition %s is cancelled", id)
		case competition.StatusPlayoffsInProgress:
			slots, err := tx.ListBracketSlots(ctx, id)
			if err != nil {
				return err
			}
			current, err := currentBracketRound(ctx, tx, c)
			if err != nil {
				return err
			}
			if current < bracket.Rounds(slots) {
				return competition.Conflict(competition.CodeInvalidTransition,
					"competition %s has bracket rounds left to play", id)
			}
			if err := requireResolved(ctx, tx, c); err != nil {
				return err
			}
			c.ChampionID = bracket.Champion(slots)
		case competition.StatusRegularComplete:
			if c.PlayoffQualifiers > 0 {
				return competition.Conflict(competition.CodeInvalidTransition, "competition %s must play its playoffs first", id)
			}
			tables, err := regularTables(ctx, tx, id)
			if err != nil {
				return err
			}
			if len(tables) > 0 {
				if top := withoutWithdrawn(tables[0]); len(top) > 0 {
					champion := top[0].ParticipantID
					c.ChampionID = &champion
				}
			}
		default:
			return invalidTransition(c, competition.StatusCompleted)
		}

		c.Status = competition.StatusCompleted
		return tx.UpdateCompetition(ctx, c)
	})
	if err != nil {
		return nil, competition.Internal("failed to complete competition", err)
	}

	s.logTransition(result, from)
	if !replayed {
		s.archive(ctx, id)
	}
	return result, nil
}

// archive uploads the final snapshot. Failures are logged and never undo the completion.
func (s *CompetitionService) archive(ctx context.Context, id uuid.UUID) {
	if s.archiver == nil {
		return
	}

	// The archive outlives a cancelled caller but not the caller's deadline.
	timeout := s.archiveTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	if timeout <= 0 {
		s.logger.Warn("skipping archive, no time left", "competition_id", id)
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	snapshot, err := s.snapshots.Snapshot(ctx, id)
	if err == nil {
		err = s.archiver.Archive(ctx, snapshot)
	}
	if err != nil {
		s.logger.Error("failed to archive competition", "competition_id", id, "error", err)
		return
	}
	s.logger.Info("competition archived", "competition_id", id)
}
