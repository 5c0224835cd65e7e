package engine

import (
	"errors"
	"fmt"
)

// Reason is the machine-readable code attached to a rejected request
type Reason string

const (
	ReasonInvalidPhase    Reason = "INVALID_PHASE"
	ReasonNotAlive        Reason = "NOT_ALIVE"
	ReasonNotAuthorized   Reason = "NOT_AUTHORIZED"
	ReasonSelfTarget      Reason = "SELF_TARGET_FORBIDDEN"
	ReasonDeadTarget      Reason = "DEAD_TARGET"
	ReasonUnknownTarget   Reason = "UNKNOWN_TARGET"
	ReasonMalformed       Reason = "MALFORMED"
	ReasonAlreadyAdjusted Reason = "TIME_ALREADY_ADJUSTED"
	ReasonStale           Reason = "STALE"
	ReasonNotFound        Reason = "NOT_FOUND"
	ReasonConflict        Reason = "CONFLICT"
)

var (
	ErrGameEnded      = errors.New("game has ended")
	ErrNotStarted     = errors.New("game has not started")
	ErrAlreadyStarted = errors.New("game already started")
)

// ValidationError rejects a malformed or rule-breaking payload without touching state
type ValidationError struct {
	Reason  Reason
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s", e.Message)
}

// AuthorizationError rejects an actor who may not perform the action
type AuthorizationError struct {
	Reason  Reason
	Message string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("not authorized: %s", e.Message)
}

// PhaseMismatchError rejects an action that is not legal in the current phase.
// Stale is set when the action or timer belongs to a phase instance that has
// already ended; such errors are dropped instead of reported to the actor.
type PhaseMismatchError struct {
	Current Phase
	Stale   bool
	Message string
}

func (e *PhaseMismatchError) Error() string {
	return fmt.Sprintf("phase mismatch (current %s): %s", e.Current, e.Message)
}

// ConcurrencyConflict reports a lost race that serialization should have
// prevented. It is logged, never shown to players.
type ConcurrencyConflict struct {
	Message string
}

func (e *ConcurrencyConflict) Error() string {
	return fmt.Sprintf("concurrency conflict: %s", e.Message)
}

// NotFoundError reports an unknown game, room or player id
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ReasonOf extracts the rejection reason from any error in the taxonomy
func ReasonOf(err error) Reason {
	var (
		validation *ValidationError
		auth       *AuthorizationError
		phase      *PhaseMismatchError
		conflict   *ConcurrencyConflict
		notFound   *NotFoundError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return validation.Reason
	case errors.As(err, &auth):
		return auth.Reason
	case errors.As(err, &phase):
		if phase.Stale {
			return ReasonStale
		}
		return ReasonInvalidPhase
	case errors.As(err, &conflict):
		return ReasonConflict
	case errors.As(err, &notFound):
		return ReasonNotFound
	case errors.Is(err, ErrGameEnded), errors.Is(err, ErrNotStarted):
		return ReasonInvalidPhase
	}
	return ReasonMalformed
}

// IsStale reports whether err marks a late action or timer that should be dropped silently
func IsStale(err error) bool {
	var phase *PhaseMismatchError
	return errors.As(err, &phase) && phase.Stale
}

func invalid(reason Reason, format string, args ...any) error {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func denied(reason Reason, format string, args ...any) error {
	return &AuthorizationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}
