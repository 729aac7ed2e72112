package attendance

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kayuraya/presensi-backend/internal/pkg/validator"
)

// RequestDraft is the editable content of an izin/lembur.
// Time is used by LATE/EARLY_LEAVE permissions, Start/End by OVERTIME.
type RequestDraft struct {
	Kind   RequestKind
	Reason string
	Time   *time.Time
	Start  *time.Time
	End    *time.Time
}

// RequestGate keeps requests and attendance actions of one day from conflicting.
type RequestGate struct {
	MinReasonLength int
}

func DefaultRequestGate() RequestGate {
	return RequestGate{MinReasonLength: 10}
}

// CanRequestPermission: izin only makes sense before the employee has attended.
func CanRequestPermission(rec *Attendance) bool {
	return !rec.HasCheckedIn()
}

// CanRequestOvertime: lembur is requested while on shift.
func CanRequestOvertime(rec *Attendance) bool {
	return rec.HasCheckedIn() && !rec.HasCheckedOut()
}

// BlocksCheckIn reports whether a pending or approved absence permission
// rules out checking in.
func BlocksCheckIn(rec *Attendance) bool {
	return rec.hasRequest(RequestKindAbsencePermission, RequestStatusPending, RequestStatusApproved)
}

// Validate checks the draft fields for its kind.
func (g RequestGate) Validate(d RequestDraft) error {
	var errs validator.ValidationErrors

	if utf8.RuneCountInString(strings.TrimSpace(d.Reason)) < g.MinReasonLength {
		errs = append(errs, validator.ValidationError{
			Field:   "reason",
			Message: fmt.Sprintf("reason must be at least %d characters", g.MinReasonLength),
		})
	}

	switch {
	case d.Kind.NeedsTime():
		if d.Time == nil {
			errs = append(errs, validator.ValidationError{
				Field:   "time",
				Message: fmt.Sprintf("time is required for %s", d.Kind),
			})
		}
	case d.Kind == RequestKindOvertime:
		if d.Start == nil {
			errs = append(errs, validator.ValidationError{Field: "start", Message: "start is required for OVERTIME"})
		}
		if d.End == nil {
			errs = append(errs, validator.ValidationError{Field: "end", Message: "end is required for OVERTIME"})
		}
		if d.Start != nil && d.End != nil && !d.Start.Before(*d.End) {
			errs = append(errs, validator.ValidationError{Field: "end", Message: "end must be after start"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// EvaluateSubmit checks exclusivity and phase for a new request of kind.
// An approval closes its slot for the day: a second izin after an approved
// izin is refused, while lembur is still possible.
func (g RequestGate) EvaluateSubmit(rec *Attendance, kind RequestKind) error {
	if rec.HasPendingRequest() {
		return ErrAlreadyPending
	}
	if rec.approvedInSlot(kind) {
		if kind == RequestKindOvertime {
			return deny(ErrWrongPhase, "Lembur hari ini sudah disetujui")
		}
		return deny(ErrWrongPhase, "Izin hari ini sudah disetujui")
	}
	switch {
	case kind.IsPermission() && !CanRequestPermission(rec):
		return deny(ErrWrongPhase, "Izin hanya dapat diajukan sebelum absen masuk")
	case kind == RequestKindOvertime && !CanRequestOvertime(rec):
		return deny(ErrWrongPhase, "Lembur hanya dapat diajukan setelah absen masuk dan sebelum absen pulang")
	}
	return nil
}

// Submit appends a new PENDING request with identity id to rec. Earlier
// requests of the day are kept as they are.
func (g RequestGate) Submit(rec Attendance, d RequestDraft, id string, now time.Time) (Attendance, error) {
	if err := g.Validate(d); err != nil {
		return rec, err
	}
	if err := g.EvaluateSubmit(&rec, d.Kind); err != nil {
		return rec, err
	}

	submittedAt := now
	req := Request{
		ID:          id,
		Kind:        d.Kind,
		Status:      RequestStatusPending,
		SubmittedAt: &submittedAt,
	}
	applyDraft(&req, d)
	rec.Requests = append(slices.Clone(rec.Requests), req)
	return rec, nil
}

// Edit replaces the content of the pending request in place.
// The kind of a request cannot change.
func (g RequestGate) Edit(rec Attendance, requestID string, d RequestDraft) (Attendance, error) {
	rec.Requests = slices.Clone(rec.Requests)
	r, err := findPending(&rec, requestID)
	if err != nil {
		return rec, err
	}
	d.Kind = r.Kind
	if err := g.Validate(d); err != nil {
		return rec, err
	}
	applyDraft(r, d)
	return rec, nil
}

// Cancel withdraws the pending request. It stays in the history as CANCELLED
// and the day no longer counts it.
func (g RequestGate) Cancel(rec Attendance, requestID string) (Attendance, error) {
	rec.Requests = slices.Clone(rec.Requests)
	r, err := findPending(&rec, requestID)
	if err != nil {
		return rec, err
	}
	r.Status = RequestStatusCancelled
	return rec, nil
}

// Decide records the approver's verdict on the pending request.
func (g RequestGate) Decide(rec Attendance, requestID string, verdict RequestStatus, approver string, notes *string, now time.Time) (Attendance, error) {
	if verdict != RequestStatusApproved && verdict != RequestStatusRejected {
		return rec, fmt.Errorf("invalid verdict %q", verdict)
	}
	rec.Requests = slices.Clone(rec.Requests)
	r, err := findPending(&rec, requestID)
	if err != nil {
		return rec, err
	}

	decidedAt := now
	r.Status = verdict
	r.ApprovedBy = &approver
	r.ApprovedAt = &decidedAt
	r.Notes = notes

	if verdict == RequestStatusApproved && r.Kind == RequestKindAbsencePermission {
		rec.Status = StatusPermission
	}
	return rec, nil
}

func findPending(rec *Attendance, requestID string) (*Request, error) {
	r := rec.FindRequest(requestID)
	if r == nil {
		return nil, ErrRequestNotFound
	}
	if r.Status != RequestStatusPending {
		return nil, ErrNotPending
	}
	return r, nil
}

func applyDraft(r *Request, d RequestDraft) {
	r.Reason = strings.TrimSpace(d.Reason)
	r.Time, r.OvertimeStart, r.OvertimeEnd = nil, nil, nil
	switch {
	case d.Kind.NeedsTime():
		r.Time = d.Time
	case d.Kind == RequestKindOvertime:
		r.OvertimeStart = d.Start
		r.OvertimeEnd = d.End
	}
}
