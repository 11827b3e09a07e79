package competition

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how the caller should react to it.
type Kind string

const (
	// KindValidation: malformed or insufficient input, the caller must fix the request.
	KindValidation Kind = "validation"
	// KindStateConflict: illegal for the current state, retry once the state settles.
	KindStateConflict Kind = "state_conflict"
	KindNotFound      Kind = "not_found"
	// KindInternal: persistence failure or timeout, state unchanged and safe to retry.
	KindInternal Kind = "internal"
)

type Code string

const (
	CodeInsufficientParticipants Code = "INSUFFICIENT_PARTICIPANTS"
	CodeParticipantLimit         Code = "PARTICIPANT_LIMIT"
	CodeInvalidSettings          Code = "INVALID_SETTINGS"
	CodeInvalidInput             Code = "INVALID_INPUT"
	CodeInvalidScore             Code = "INVALID_SCORE"
	CodeEmptySeedList            Code = "EMPTY_SEED_LIST"
	CodeDuplicateParticipant     Code = "DUPLICATE_PARTICIPANT"
	CodeRoundAlreadyExists       Code = "ROUND_ALREADY_EXISTS"
	CodeRoundIncomplete          Code = "ROUND_INCOMPLETE"
	CodeCompetitionClosed        Code = "COMPETITION_CLOSED"
	CodeMatchAlreadyResolved     Code = "MATCH_ALREADY_RESOLVED"
	CodeInvalidTransition        Code = "INVALID_TRANSITION"
	CodeNotFound                 Code = "NOT_FOUND"
	CodeInternal                 Code = "INTERNAL"
)

// Error is the engine's typed error. Two errors are considered equal by errors.Is when
// their codes match, so the sentinels below can be compared against any instance.
type Error struct {
	Kind   Kind
	Code   Code
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Reason, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrInsufficientParticipants = &Error{Kind: KindValidation, Code: CodeInsufficientParticipants, Reason: "not enough active participants"}
	ErrParticipantLimit         = &Error{Kind: KindValidation, Code: CodeParticipantLimit, Reason: "participant count outside configured limits"}
	ErrInvalidSettings          = &Error{Kind: KindValidation, Code: CodeInvalidSettings, Reason: "invalid competition settings"}
	ErrInvalidInput             = &Error{Kind: KindValidation, Code: CodeInvalidInput, Reason: "invalid input"}
	ErrInvalidScore             = &Error{Kind: KindValidation, Code: CodeInvalidScore, Reason: "invalid score"}
	ErrEmptySeedList            = &Error{Kind: KindValidation, Code: CodeEmptySeedList, Reason: "seed list is empty"}
	ErrDuplicateParticipant     = &Error{Kind: KindValidation, Code: CodeDuplicateParticipant, Reason: "participant appears twice"}
	ErrRoundAlreadyExists       = &Error{Kind: KindStateConflict, Code: CodeRoundAlreadyExists, Reason: "round already exists"}
	ErrRoundIncomplete          = &Error{Kind: KindStateConflict, Code: CodeRoundIncomplete, Reason: "round has unresolved matches"}
	ErrCompetitionClosed        = &Error{Kind: KindStateConflict, Code: CodeCompetitionClosed, Reason: "competition is closed"}
	ErrMatchAlreadyResolved     = &Error{Kind: KindStateConflict, Code: CodeMatchAlreadyResolved, Reason: "match already resolved"}
	ErrInvalidTransition        = &Error{Kind: KindStateConflict, Code: CodeInvalidTransition, Reason: "transition not allowed"}
	ErrNotFound                 = &Error{Kind: KindNotFound, Code: CodeNotFound, Reason: "not found"}
	ErrInternal                 = &Error{Kind: KindInternal, Code: CodeInternal, Reason: "internal error"}
)

func newError(kind Kind, code Code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Reason: fmt.Sprintf(format, args...)}
}

func Validation(code Code, format string, args ...any) *Error {
	return newError(KindValidation, code, format, args...)
}

func Conflict(code Code, format string, args ...any) *Error {
	return newError(KindStateConflict, code, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, CodeNotFound, format, args...)
}

// Internal wraps a persistence or infrastructure failure. Typed errors pass through untouched.
func Internal(reason string, err error) error {
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return &Error{Kind: KindInternal, Code: CodeInternal, Reason: reason, Err: err}
}

// KindOf returns the kind of err, treating untyped errors as internal.
func KindOf(err error) Kind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return KindInternal
}
