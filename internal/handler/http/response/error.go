package response

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kayuraya/presensi-backend/internal/domain/attendance"
	"github.com/kayuraya/presensi-backend/internal/pkg/validator"
)

// denialReasons gives each policy sentinel a stable code for clients.
var denialReasons = []struct {
	err  error
	code string
}{
	{attendance.ErrOutsideWindow, "OUTSIDE_WINDOW"},
	{attendance.ErrAlreadyCheckedIn, "ALREADY_CHECKED_IN"},
	{attendance.ErrNotCheckedIn, "NOT_CHECKED_IN"},
	{attendance.ErrAlreadyCheckedOut, "ALREADY_CHECKED_OUT"},
	{attendance.ErrTooSoon, "TOO_SOON"},
	{attendance.ErrWrongPhase, "WRONG_PHASE"},
	{attendance.ErrNotPending, "NOT_PENDING"},
}

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch attendance.KindOf(err) {
	case attendance.KindValidation:
		ValidationError(w, map[string]string{"location": err.Error()})
	case attendance.KindPolicyDenied:
		PolicyDenied(w, err)
	case attendance.KindConflict:
		Conflict(w, err.Error())
	case attendance.KindNotFound:
		NotFound(w, err.Error())
	default:
		slog.Error("unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}

// PolicyDenied reports a transition the current time or day state does not allow.
func PolicyDenied(w http.ResponseWriter, err error) {
	details := map[string]string{}
	for _, r := range denialReasons {
		if errors.Is(err, r.err) {
			details["reason"] = r.code
			break
		}
	}

	message := err.Error()
	var denial *attendance.DenialError
	if errors.As(err, &denial) {
		if denial.Message != "" {
			message = denial.Message
		}
		if denial.MinutesRemaining > 0 {
			details["minutes_remaining"] = strconv.Itoa(denial.MinutesRemaining)
			if errors.Is(err, attendance.ErrOutsideWindow) {
				details["countdown"] = denial.Message
			}
		}
	}

	writeJSON(w, http.StatusBadRequest, Response{
		Success: false,
		Error: &ErrorDetail{
			Code:    "POLICY_DENIED",
			Message: message,
			Details: details,
		},
	})
}
