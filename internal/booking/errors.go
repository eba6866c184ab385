package booking

import (
	"errors"
	"fmt"

	"glowbook/internal/models"
)

var (
	ErrInvalidTransition = errors.New("invalid booking transition")
	ErrRemoteFailure     = errors.New("remote failure")
)

// ValidationKind classifies a rejected booking request.
type ValidationKind string

const (
	MissingSelection ValidationKind = "missing_selection"
	UnknownService   ValidationKind = "unknown_service"
	SlotUnavailable  ValidationKind = "slot_unavailable"
)

// ValidationError is returned before any mutating call is made.
type ValidationError struct {
	Kind   ValidationKind
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func newValidationError(kind ValidationKind, reason string) *ValidationError {
	return &ValidationError{Kind: kind, Reason: reason}
}

// IsValidation reports whether err is a ValidationError of the given kind.
func IsValidation(err error, kind ValidationKind) bool {
	var verr *ValidationError
	return errors.As(err, &verr) && verr.Kind == kind
}

// TransitionError describes a refused lifecycle move.
type TransitionError struct {
	From   models.Status
	Event  Event
	Party  models.BookingParty
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("cannot %s a %s booking as %s", e.Event, e.From, partyName(e.Party))
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func partyName(p models.BookingParty) string {
	if p == "" {
		return "outsider"
	}
	return string(p)
}

// RemoteError wraps a failure of the persistence collaborator.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

func (e *RemoteError) Is(target error) bool {
	return target == ErrRemoteFailure
}

// Remote wraps err as a RemoteError unless it is nil.
func Remote(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RemoteError{Op: op, Err: err}
}
