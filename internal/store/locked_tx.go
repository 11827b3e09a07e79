package store

import (
	"context"
	"fmt"
	"time"

	"github.com/AdamBeresnev/box-league-engine/internal/competition"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type lockedTx struct {
	queries
}

func (t *lockedTx) exec(ctx context.Context, missing error, query string, args ...any) error {
	res, err := t.q.ExecContext(ctx, t.q.Rebind(query), args...)
	if err != nil {
		return err
	}
	return expectRow(res, missing)
}

func (t *lockedTx) UpdateCompetition(ctx context.Context, c *competition.Competition) error {
	c.UpdatedAt = time.Now().UTC()
	err := t.exec(ctx, competition.NotFound("competition %s not found", c.ID),
		`UPDATE competitions SET status = ?, total_regular_rounds = ?, participant_count = ?, current_round = ?,
		champion_id = ?, updated_at = ? WHERE id = ?`,
		c.Status, c.TotalRegularRounds, c.ParticipantCount, c.CurrentRound, c.ChampionID, c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("update competition: %w", err)
	}
	return nil
}

func (t *lockedTx) CreateParticipant(ctx context.Context, p *competition.Participant) error {
	if p.EnrolledAt.IsZero() {
		p.EnrolledAt = time.Now().UTC()
	}
	_, err := sqlx.NamedExecContext(ctx, t.q, `INSERT INTO participants (id, competition_id, name, account_ref, rating, seed, withdrawn, box_id, box_position, enrolled_at)
		VALUES (:id, :competition_id, :name, :account_ref, :rating, :seed, :withdrawn, :box_id, :box_position, :enrolled_at)`, p)
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (t *lockedTx) UpdateParticipant(ctx context.Context, p *competition.Participant) error {
	err := t.exec(ctx, competition.NotFound("participant %s not found", p.ID),
		"UPDATE participants SET withdrawn = ?, box_id = ?, box_position = ? WHERE id = ?",
		p.Withdrawn, p.BoxID, p.BoxPosition, p.ID)
	if err != nil {
		return fmt.Errorf("update participant: %w", err)
	}
	return nil
}

func (t *lockedTx) CreateBoxes(ctx context.Context, boxes []competition.Box) error {
	if len(boxes) == 0 {
		return nil
	}
	_, err := sqlx.NamedExecContext(ctx, t.q, `INSERT INTO boxes (id, competition_id, level)
		VALUES (:id, :competition_id, :level)`, boxes)
	if err != nil {
		return fmt.Errorf("insert boxes: %w", err)
	}
	return nil
}

func (t *lockedTx) CreateRound(ctx context.Context, r *competition.Round) error {
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	_, err := sqlx.NamedExecContext(ctx, t.q, `INSERT INTO rounds (id, competition_id, number, stage, status, created_at, updated_at)
		VALUES (:id, :competition_id, :number, :stage, :status, :created_at, :updated_at)`, r)
	if err != nil {
		return fmt.Errorf("insert round: %w", err)
	}
	return nil
}

func (t *lockedTx) UpdateRoundStatus(ctx context.Context, roundID uuid.UUID, status competition.RoundStatus) error {
	err := t.exec(ctx, competition.NotFound("round %s not found", roundID),
		"UPDATE rounds SET status = ?, updated_at = ? WHERE id = ?", status, time.Now().UTC(), roundID)
	if err != nil {
		return fmt.Errorf("update round: %w", err)
	}
	return nil
}

func (t *lockedTx) CreateMatches(ctx context.Context, matches []competition.Match) error {
	if len(matches) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range matches {
		matches[i].CreatedAt, matches[i].UpdatedAt = now, now
	}
	_, err := sqlx.NamedExecContext(ctx, t.q, `INSERT INTO matches (id, competition_id, round_id, round_number, box_id, bracket_round, bracket_position,
		match_order, home_id, away_id, status, home_score, away_score, winner_id, scheduled_at, created_at, updated_at)
		VALUES (:id, :competition_id, :round_id, :round_number, :box_id, :bracket_round, :bracket_position,
		:match_order, :home_id, :away_id, :status, :home_score, :away_score, :winner_id, :scheduled_at, :created_at, :updated_at)`, matches)
	if err != nil {
		return fmt.Errorf("insert matches: %w", err)
	}
	return nil
}

func (t *lockedTx) UpdateMatch(ctx context.Context, m *competition.Match) error {
	m.UpdatedAt = time.Now().UTC()
	err := t.exec(ctx, competition.NotFound("match %s not found", m.ID),
		`UPDATE matches SET status = ?, home_score = ?, away_score = ?, winner_id = ?, updated_at = ? WHERE id = ?`,
		m.Status, m.HomeScore, m.AwayScore, m.WinnerID, m.UpdatedAt, m.ID)
	if err != nil {
		return fmt.Errorf("update match: %w", err)
	}
	return nil
}

func (t *lockedTx) ResolveMatch(ctx context.Context, m *competition.Match) error {
	m.UpdatedAt = time.Now().UTC()
	err := t.exec(ctx, competition.Conflict(competition.CodeMatchAlreadyResolved, "match %s is already resolved", m.ID),
		`UPDATE matches SET status = ?, home_score = ?, away_score = ?, winner_id = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		m.Status, m.HomeScore, m.AwayScore, m.WinnerID, m.UpdatedAt, m.ID,
		competition.MatchScheduled, competition.MatchInProgress)
	if err != nil {
		return fmt.Errorf("resolve match: %w", err)
	}
	return nil
}

func (t *lockedTx) CreateBracketSlots(ctx context.Context, slots []competition.BracketSlot) error {
	if len(slots) == 0 {
		return nil
	}
	_, err := sqlx.NamedExecContext(ctx, t.q, `INSERT INTO bracket_slots (id, competition_id, bracket_round, position, participant_id, is_bye)
		VALUES (:id, :competition_id, :bracket_round, :position, :participant_id, :is_bye)`, slots)
	if err != nil {
		return fmt.Errorf("insert bracket slots: %w", err)
	}
	return nil
}

func (t *lockedTx) UpdateBracketSlot(ctx context.Context, slot *competition.BracketSlot) error {
	err := t.exec(ctx, competition.NotFound("bracket slot %s not found", slot.ID),
		"UPDATE bracket_slots SET participant_id = ? WHERE id = ?", slot.ParticipantID, slot.ID)
	if err != nil {
		return fmt.Errorf("update bracket slot: %w", err)
	}
	return nil
}
