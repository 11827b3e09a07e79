package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AdamBeresnev/box-league-engine/internal/competition"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type CompetitionStore struct {
	db *sqlx.DB
	queries
}

func NewCompetitionStore(db *sqlx.DB) *CompetitionStore {
	return &CompetitionStore{db: db, queries: queries{q: db}}
}

var _ EntityStore = (*CompetitionStore)(nil)

func (s *CompetitionStore) CreateCompetition(ctx context.Context, c *competition.Competition) error {
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := sqlx.NamedExecContext(ctx, s.db, `INSERT INTO competitions (id, name, mode, status, box_size, min_participants, max_participants,
		regular_rounds, playoff_qualifiers, playoff_mode, withdrawal_policy, total_regular_rounds, participant_count, current_round,
		champion_id, lock_version, created_at, updated_at)
		VALUES (:id, :name, :mode, :status, :box_size, :min_participants, :max_participants,
		:regular_rounds, :playoff_qualifiers, :playoff_mode, :withdrawal_policy, :total_regular_rounds, :participant_count, :current_round,
		:champion_id, :lock_version, :created_at, :updated_at)`, c)
	if err != nil {
		return fmt.Errorf("insert competition: %w", err)
	}
	return nil
}

func (s *CompetitionStore) WithCompetitionLock(ctx context.Context, competitionID uuid.UUID, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Row lock on postgres, write lock on sqlite. Held until commit or rollback.
	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE competitions SET lock_version = lock_version + 1 WHERE id = ?`), competitionID)
	if err != nil {
		return fmt.Errorf("lock competition: %w", err)
	}
	if err := expectRow(res, competition.NotFound("competition %s not found", competitionID)); err != nil {
		return err
	}

	if err := fn(&lockedTx{queries: queries{q: tx}}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// queries runs the same statements against the pool or a transaction.
type queries struct {
	q sqlx.ExtContext
}

func (q queries) get(ctx context.Context, dest any, what string, id any, query string, args ...any) error {
	err := sqlx.GetContext(ctx, q.q, dest, q.q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return competition.NotFound("%s %v not found", what, id)
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", what, err)
	}
	return nil
}

func (q queries) list(ctx context.Context, dest any, what string, query string, args ...any) error {
	if err := sqlx.SelectContext(ctx, q.q, dest, q.q.Rebind(query), args...); err != nil {
		return fmt.Errorf("list %s: %w", what, err)
	}
	return nil
}

func (q queries) GetCompetition(ctx context.Context, id uuid.UUID) (*competition.Competition, error) {
	var c competition.Competition
	if err := q.get(ctx, &c, "competition", id, "SELECT * FROM competitions WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &c, nil
}

func (q queries) ListCompetitions(ctx context.Context) ([]competition.Competition, error) {
	var competitions []competition.Competition
	err := q.list(ctx, &competitions, "competitions", "SELECT * FROM competitions ORDER BY created_at DESC")
	return competitions, err
}

func (q queries) GetParticipant(ctx context.Context, id uuid.UUID) (*competition.Participant, error) {
	var p competition.Participant
	if err := q.get(ctx, &p, "participant", id, "SELECT * FROM participants WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (q queries) ListParticipants(ctx context.Context, competitionID uuid.UUID) ([]competition.Participant, error) {
	var participants []competition.Participant
	err := q.list(ctx, &participants, "participants",
		"SELECT * FROM participants WHERE competition_id = ? ORDER BY seed ASC", competitionID)
	return participants, err
}

func (q queries) GetBox(ctx context.Context, id uuid.UUID) (*competition.Box, error) {
	var b competition.Box
	if err := q.get(ctx, &b, "box", id, "SELECT * FROM boxes WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &b, nil
}

func (q queries) ListBoxes(ctx context.Context, competitionID uuid.UUID) ([]competition.Box, error) {
	var boxes []competition.Box
	err := q.list(ctx, &boxes, "boxes", "SELECT * FROM boxes WHERE competition_id = ? ORDER BY level ASC", competitionID)
	return boxes, err
}

func (q queries) GetRound(ctx context.Context, competitionID uuid.UUID, number int) (*competition.Round, error) {
	var r competition.Round
	err := q.get(ctx, &r, "round", number, "SELECT * FROM rounds WHERE competition_id = ? AND number = ?", competitionID, number)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (q queries) ListRounds(ctx context.Context, competitionID uuid.UUID) ([]competition.Round, error) {
	var rounds []competition.Round
	err := q.list(ctx, &rounds, "rounds", "SELECT * FROM rounds WHERE competition_id = ? ORDER BY number ASC", competitionID)
	return rounds, err
}

func (q queries) GetMatch(ctx context.Context, id uuid.UUID) (*competition.Match, error) {
	var m competition.Match
	if err := q.get(ctx, &m, "match", id, "SELECT * FROM matches WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &m, nil
}

func (q queries) ListMatches(ctx context.Context, competitionID uuid.UUID) ([]competition.Match, error) {
	var matches []competition.Match
	err := q.list(ctx, &matches, "matches",
		"SELECT * FROM matches WHERE competition_id = ? ORDER BY round_number ASC, match_order ASC", competitionID)
	return matches, err
}

func (q queries) ListRoundMatches(ctx context.Context, roundID uuid.UUID) ([]competition.Match, error) {
	var matches []competition.Match
	err := q.list(ctx, &matches, "matches", "SELECT * FROM matches WHERE round_id = ? ORDER BY match_order ASC", roundID)
	return matches, err
}

func (q queries) ListBracketSlots(ctx context.Context, competitionID uuid.UUID) ([]competition.BracketSlot, error) {
	var slots []competition.BracketSlot
	err := q.list(ctx, &slots, "bracket slots",
		"SELECT * FROM bracket_slots WHERE competition_id = ? ORDER BY bracket_round ASC, position ASC", competitionID)
	return slots, err
}

func expectRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return missing
	}
	return nil
}
