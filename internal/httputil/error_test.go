package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AdamBeresnev/box-league-engine/internal/competition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	testCases := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   competition.Code
	}{
		{
			name:           "Validation",
			err:            competition.Validation(competition.CodeInvalidScore, "draws are not recorded"),
			expectedStatus: http.StatusBadRequest,
			expectedCode:   competition.CodeInvalidScore,
		},
		{
			name:           "State conflict",
			err:            competition.Conflict(competition.CodeRoundIncomplete, "round 1 has open matches"),
			expectedStatus: http.StatusConflict,
			expectedCode:   competition.CodeRoundIncomplete,
		},
		{
			name:           "Wrapped not found",
			err:            fmt.Errorf("lookup: %w", competition.NotFound("competition missing")),
			expectedStatus: http.StatusNotFound,
			expectedCode:   competition.CodeNotFound,
		},
		{
			name:           "Untyped",
			err:            errors.New("disk full"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   competition.CodeInternal,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)

			Error(w, r, tc.err)

			assert.Equal(t, tc.expectedStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.expectedCode, body.Error.Code)
			assert.NotContains(t, body.Error.Reason, "disk full")
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	testCases := []struct {
		name     string
		body     string
		wantErr  bool
		expected string
	}{
		{name: "Valid", body: `{"name":"Ana"}`, expected: "Ana"},
		{name: "Empty body", body: ""},
		{name: "Unknown field", body: `{"nmae":"Ana"}`, wantErr: true},
		{name: "Malformed", body: `{"name":`, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))

			var p payload
			err := DecodeJSON(r, &p)
			if tc.wantErr {
				assert.ErrorIs(t, err, competition.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, p.Name)
		})
	}
}
