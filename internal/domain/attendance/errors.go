package attendance

import (
	"errors"
	"fmt"

	"github.com/kayuraya/presensi-backend/internal/pkg/validator"
)

// Attendance domain errors
var (
	// Check-in errors
	ErrNoSchedule       = errors.New("no schedule found for today")
	ErrOutsideWindow    = errors.New("outside the check-in window")
	ErrAlreadyCheckedIn = errors.New("you have already checked in today")
	ErrLocationRequired = errors.New("location is required to check in")

	// Check-out errors
	ErrNotCheckedIn      = errors.New("you have not checked in yet")
	ErrAlreadyCheckedOut = errors.New("you have already checked out")
	ErrTooSoon           = errors.New("too soon to check out")

	// Request errors
	ErrAlreadyPending  = errors.New("a request is already pending for this day")
	ErrWrongPhase      = errors.New("request not allowed at this point of the day")
	ErrNotPending      = errors.New("request is not pending")
	ErrRequestNotFound = errors.New("request not found")

	// ErrConcurrentUpdate marks a transition that lost the row lock to an
	// identical one. It is always joined with the denial the loser got.
	ErrConcurrentUpdate = errors.New("another request changed this day first")
)

// LostRace joins denial with ErrConcurrentUpdate so callers see a conflict
// while errors.Is(err, denial) still holds.
func LostRace(denial error) error {
	return fmt.Errorf("%w: %w", ErrConcurrentUpdate, denial)
}

// DenialError carries the user-facing detail of a rejected transition.
// It unwraps to one of the sentinel errors above.
type DenialError struct {
	Err              error
	Message          string
	MinutesRemaining int
}

func (e *DenialError) Error() string {
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Message
}

func (e *DenialError) Unwrap() error {
	return e.Err
}

func deny(err error, message string) *DenialError {
	return &DenialError{Err: err, Message: message}
}

// Kind groups errors by how the caller should surface them.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindPolicyDenied
	KindConflict
	KindNotFound
)

// KindOf classifies err. Unrecognized errors are KindUnknown.
func KindOf(err error) Kind {
	var validationErrs validator.ValidationErrors
	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &validationErrs), errors.Is(err, ErrLocationRequired):
		return KindValidation
	case errors.Is(err, ErrAlreadyPending), errors.Is(err, ErrConcurrentUpdate):
		return KindConflict
	case errors.Is(err, ErrNoSchedule), errors.Is(err, ErrRequestNotFound):
		return KindNotFound
	case errors.Is(err, ErrOutsideWindow),
		errors.Is(err, ErrAlreadyCheckedIn),
		errors.Is(err, ErrNotCheckedIn),
		errors.Is(err, ErrAlreadyCheckedOut),
		errors.Is(err, ErrTooSoon),
		errors.Is(err, ErrWrongPhase),
		errors.Is(err, ErrNotPending):
		return KindPolicyDenied
	}
	return KindUnknown
}
