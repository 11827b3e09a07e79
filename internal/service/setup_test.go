package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/AdamBeresnev/box-league-engine/internal/competition"
	"github.com/AdamBeresnev/box-league-engine/internal/db"
	"github.com/AdamBeresnev/box-league-engine/internal/store"
	"github.com/AdamBeresnev/box-league-engine/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")

	// Every connection to :memory: is a separate database
	database.SetMaxOpenConns(1)

	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	err = db.RunMigrations(database.DB, db.DriverSQLite)
	require.NoError(t, err, "Failed to apply migrations")

	t.Cleanup(func() { database.Close() })
	return database
}

type fakeArchiver struct {
	mu        sync.Mutex
	snapshots []*competition.Snapshot
	err       error
	// block makes Archive hang until its context ends.
	block bool
}

func (f *fakeArchiver) Archive(ctx context.Context, snapshot *competition.Snapshot) error {
	f.mu.Lock()
	f.snapshots = append(f.snapshots, snapshot)
	block, err := f.block, f.err
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

var errWriteFailed = errors.New("write failed")

// failingTx fails one kind of write and passes everything else through.
type failingTx struct {
	store.Tx
	failOn string
}

func (f failingTx) CreateMatches(ctx context.Context, matches []competition.Match) error {
	if f.failOn == "CreateMatches" {
		return errWriteFailed
	}
	return f.Tx.CreateMatches(ctx, matches)
}

func (f failingTx) CreateBracketSlots(ctx context.Context, slots []competition.BracketSlot) error {
	if f.failOn == "CreateBracketSlots" {
		return errWriteFailed
	}
	return f.Tx.CreateBracketSlots(ctx, slots)
}

type failingStore struct {
	*store.CompetitionStore
	failOn string
}

func (f *failingStore) WithCompetitionLock(ctx context.Context, competitionID uuid.UUID, fn func(tx store.Tx) error) error {
	return f.CompetitionStore.WithCompetitionLock(ctx, competitionID, func(tx store.Tx) error {
		return fn(failingTx{Tx: tx, failOn: f.failOn})
	})
}

// failingWrites returns a competition service over the same database whose transactions
// fail on the named write.
func (e *testEngine) failingWrites(failOn string) *CompetitionService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCompetitionService(&failingStore{CompetitionStore: e.store, failOn: failOn}, logger)
}

type testEngine struct {
	store        *store.CompetitionStore
	competitions *CompetitionService
	matches      *MatchService
	standings    *StandingsService
	archiver     *fakeArchiver
}

func newTestEngine(t *testing.T, opts ...Option) *testEngine {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	competitionStore := store.NewCompetitionStore(setupTestDB(t))
	archiver := &fakeArchiver{}

	return &testEngine{
		store:        competitionStore,
		competitions: NewCompetitionService(competitionStore, logger, append([]Option{WithArchiver(archiver)}, opts...)...),
		matches:      NewMatchService(competitionStore, logger),
		standings:    NewStandingsService(competitionStore),
		archiver:     archiver,
	}
}

// openCompetition creates and opens a competition and enrolls n participants in join order.
func (e *testEngine) openCompetition(t *testing.T, mode competition.Mode, settings competition.Settings, n int) (*competition.Competition, []competition.Participant) {
	t.Helper()
	ctx := context.Background()

	c, err := e.competitions.CreateCompetition(ctx, CreateInput{Name: "Test League", Mode: mode, Settings: &settings})
	require.NoError(t, err)
	_, err = e.competitions.OpenRegistration(ctx, c.ID)
	require.NoError(t, err)

	participants := make([]competition.Participant, n)
	for i := range participants {
		p, err := e.competitions.Enroll(ctx, c.ID, EnrollInput{Name: fmt.Sprintf("Player %d", i+1)})
		require.NoError(t, err)
		participants[i] = *p
	}
	return c, participants
}

// playHomeWins records an 11-5 home win for every open match in the list.
func (e *testEngine) playHomeWins(t *testing.T, matches []competition.Match) {
	t.Helper()

	for _, m := range matches {
		if m.Status.Resolved() {
			continue
		}
		_, err := e.matches.RecordResult(context.Background(), m.ID, ResultInput{
			HomeScore: utils.Ptr(11),
			AwayScore: utils.Ptr(5),
		})
		require.NoError(t, err)
	}
}

func leagueSettings() competition.Settings {
	settings := competition.DefaultSettings()
	settings.PlayoffQualifiers = 0
	return settings
}
