package httputil

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/AdamBeresnev/box-league-engine/internal/competition"
)

type errorDetail struct {
	Kind   competition.Kind `json:"kind"`
	Code   competition.Code `json:"code"`
	Reason string           `json:"reason"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind competition.Kind) int {
	switch kind {
	case competition.KindValidation:
		return http.StatusBadRequest
	case competition.KindStateConflict:
		return http.StatusConflict
	case competition.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err as a JSON error body. Internal failures are logged with their cause
// and reported without it.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var typed *competition.Error
	if !errors.As(err, &typed) {
		if errors.Is(err, context.DeadlineExceeded) {
			typed = &competition.Error{Kind: competition.KindInternal, Code: competition.CodeInternal, Reason: "operation timed out", Err: err}
		} else {
			typed = &competition.Error{Kind: competition.KindInternal, Code: competition.CodeInternal, Reason: "internal error", Err: err}
		}
	}

	status := StatusOf(typed.Kind)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), typed.Reason, "path", r.URL.Path, "error", err)
	} else {
		slog.WarnContext(r.Context(), "request rejected", "path", r.URL.Path, "code", typed.Code, "reason", typed.Reason)
	}

	WriteJSON(w, status, errorResponse{Error: errorDetail{Kind: typed.Kind, Code: typed.Code, Reason: typed.Reason}})
}

func BadRequest(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if err != nil {
		slog.WarnContext(r.Context(), "bad request", "message", msg, "error", err)
	}
	Error(w, r, competition.Validation(competition.CodeInvalidInput, "%s", msg))
}

func NotFound(w http.ResponseWriter, r *http.Request, msg string) {
	Error(w, r, competition.NotFound("%s", msg))
}
