package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AdamBeresnev/box-league-engine/internal/competition"
	"github.com/AdamBeresnev/box-league-engine/internal/config"
	"github.com/AdamBeresnev/box-league-engine/internal/db"
	"github.com/AdamBeresnev/box-league-engine/internal/service"
	"github.com/AdamBeresnev/box-league-engine/internal/store"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err)
	database.SetMaxOpenConns(1)
	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(database.DB, db.DriverSQLite))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	competitionStore := store.NewCompetitionStore(database)
	defaults := competition.DefaultSettings()
	defaults.PlayoffQualifiers = 0

	app := &application{
		competitions: service.NewCompetitionService(competitionStore, logger, service.WithDefaults(defaults)),
		matches:      service.NewMatchService(competitionStore, logger),
		standings:    service.NewStandingsService(competitionStore),
	}
	cfg := &config.Config{OperationTimeout: 5 * time.Second, CORSAllowedOrigins: []string{"https://club.example"}}

	server := httptest.NewServer(newRouter(app, cfg, logger))
	t.Cleanup(func() {
		server.Close()
		database.Close()
	})
	return server
}

// call sends a JSON request and decodes the response into out when it is not nil.
func call(t *testing.T, server *httptest.Server, method, path string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type errorBody struct {
	Error struct {
		Kind   string `json:"kind"`
		Code   string `json:"code"`
		Reason string `json:"reason"`
	} `json:"error"`
}

func TestLeagueOverHTTP(t *testing.T) {
	server := setupTestServer(t)

	var c competition.Competition
	status := call(t, server, http.MethodPost, "/competitions", map[string]any{"name": "Thursday Ladder"}, &c)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, competition.StatusSetup, c.Status)
	base := "/competitions/" + c.ID.String()

	var eb errorBody
	status = call(t, server, http.MethodPost, base+"/participants", map[string]any{"name": "Early"}, &eb)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INVALID_TRANSITION", eb.Error.Code)

	status = call(t, server, http.MethodPost, base+"/open", nil, &c)
	require.Equal(t, http.StatusOK, status)

	for i := 1; i <= 4; i++ {
		var p competition.Participant
		status = call(t, server, http.MethodPost, base+"/participants", map[string]any{"name": fmt.Sprintf("Player %d", i)}, &p)
		require.Equal(t, http.StatusCreated, status)
		assert.Equal(t, i, p.Seed)
	}

	var started service.RoundResult
	status = call(t, server, http.MethodPost, base+"/start", nil, &started)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, started.Matches, 2)

	status = call(t, server, http.MethodPost, base+"/advance?expected_round=1", nil, &eb)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ROUND_INCOMPLETE", eb.Error.Code)

	var completion service.RoundCompletion
	status = call(t, server, http.MethodGet, base+"/rounds/1/complete", nil, &completion)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, completion.Unresolved)

	status = call(t, server, http.MethodPost, "/matches/"+started.Matches[0].ID.String()+"/result",
		map[string]any{"home_score": 9, "away_score": 9}, &eb)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_SCORE", eb.Error.Code)

	for _, m := range started.Matches {
		var resolved competition.Match
		status = call(t, server, http.MethodPost, "/matches/"+m.ID.String()+"/result",
			map[string]any{"home_score": 11, "away_score": 6}, &resolved)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, competition.MatchCompleted, resolved.Status)
	}

	var advanced service.RoundResult
	status = call(t, server, http.MethodPost, base+"/advance?expected_round=1", nil, &advanced)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, advanced.Competition.CurrentRound)

	var replayed service.RoundResult
	status = call(t, server, http.MethodPost, base+"/advance?expected_round=1", nil, &replayed)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, replayed.Replayed)

	var boxes []competition.Box
	status = call(t, server, http.MethodGet, base+"/boxes", nil, &boxes)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, boxes, 1)

	var table competition.BoxStandings
	status = call(t, server, http.MethodGet, base+"/boxes/"+boxes[0].ID.String()+"/standings", nil, &table)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, table.Standings, 4)

	var snapshot competition.Snapshot
	status = call(t, server, http.MethodGet, base, nil, &snapshot)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, snapshot.Rounds, 2)
}

func TestRouteErrors(t *testing.T) {
	server := setupTestServer(t)

	testCases := []struct {
		name           string
		method         string
		path           string
		body           any
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "Malformed competition id",
			method:         http.MethodGet,
			path:           "/competitions/not-a-uuid",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_INPUT",
		},
		{
			name:           "Unknown competition",
			method:         http.MethodPost,
			path:           "/competitions/00000000-0000-0000-0000-000000000001/start",
			expectedStatus: http.StatusNotFound,
			expectedCode:   "NOT_FOUND",
		},
		{
			name:           "Unknown body field",
			method:         http.MethodPost,
			path:           "/competitions",
			body:           map[string]any{"title": "Typo"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_INPUT",
		},
		{
			name:           "Invalid settings",
			method:         http.MethodPost,
			path:           "/competitions",
			body:           map[string]any{"name": "Tiny", "settings": map[string]any{"box_size": 1}},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_SETTINGS",
		},
		{
			name:           "Unknown route",
			method:         http.MethodGet,
			path:           "/tournaments",
			expectedStatus: http.StatusNotFound,
			expectedCode:   "NOT_FOUND",
		},
		{
			name:           "Oversized box",
			method:         http.MethodPost,
			path:           "/competitions",
			body:           map[string]any{"name": "Crowd", "settings": map[string]any{"box_size": 40}},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_SETTINGS",
		},
		{
			name:           "Bad expected round",
			method:         http.MethodPost,
			path:           "/competitions/00000000-0000-0000-0000-000000000001/advance?expected_round=x",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_INPUT",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var eb errorBody
			status := call(t, server, tc.method, tc.path, tc.body, &eb)
			assert.Equal(t, tc.expectedStatus, status)
			assert.Equal(t, tc.expectedCode, eb.Error.Code)
		})
	}
}

func TestCreateCompetitionPartialSettings(t *testing.T) {
	server := setupTestServer(t)

	var c competition.Competition
	status := call(t, server, http.MethodPost, "/competitions",
		map[string]any{"name": "Big Boxes", "settings": map[string]any{"box_size": 5}}, &c)
	require.Equal(t, http.StatusCreated, status)

	expected := competition.DefaultSettings()
	expected.PlayoffQualifiers = 0
	expected.BoxSize = 5
	assert.Equal(t, expected, c.Settings)

	var fetched competition.Snapshot
	status = call(t, server, http.MethodGet, "/competitions/"+c.ID.String(), nil, &fetched)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, expected, fetched.Competition.Settings)

	status = call(t, server, http.MethodPost, "/competitions", map[string]any{"name": "Plain"}, &c)
	require.Equal(t, http.StatusCreated, status)
	expected.BoxSize = 4
	assert.Equal(t, expected, c.Settings)
}

func TestTimeoutBudgetHeader(t *testing.T) {
	server := setupTestServer(t)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Timeout-Budget", "later")

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))
}
