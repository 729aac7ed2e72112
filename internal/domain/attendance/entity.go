package attendance

import (
	"fmt"
	"strings"
	"time"

	"github.com/kayuraya/presensi-backend/internal/pkg/validator"
)

// Status is the attendance status of a work day.
type Status string

const (
	StatusNone       Status = "NONE"
	StatusPresent    Status = "PRESENT"
	StatusLate       Status = "LATE"
	StatusPermission Status = "PERMISSION"
	StatusSick       Status = "SICK"
	StatusLeave      Status = "LEAVE"
	StatusAbsent     Status = "ABSENT"
)

var StatusValues = []string{
	string(StatusNone),
	string(StatusPresent),
	string(StatusLate),
	string(StatusPermission),
	string(StatusSick),
	string(StatusLeave),
	string(StatusAbsent),
}

// Legacy labels still sent by older clients.
var statusAliases = map[string]Status{
	"hadir":     StatusPresent,
	"terlambat": StatusLate,
	"telat":     StatusLate,
	"izin":      StatusPermission,
	"sakit":     StatusSick,
	"cuti":      StatusLeave,
	"alpha":     StatusAbsent,
	"alpa":      StatusAbsent,
	"absen":     StatusAbsent,
}

// ParseStatus normalizes case and legacy Indonesian labels into a Status.
func ParseStatus(s string) (Status, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if alias, ok := statusAliases[v]; ok {
		return alias, nil
	}
	for _, known := range StatusValues {
		if strings.EqualFold(known, v) {
			return Status(known), nil
		}
	}
	return "", fmt.Errorf("unknown attendance status %q", s)
}

// RequestKind is the type of izin/lembur attached to a day.
type RequestKind string

const (
	RequestKindNone                 RequestKind = "NONE"
	RequestKindLatePermission       RequestKind = "LATE_PERMISSION"
	RequestKindEarlyLeavePermission RequestKind = "EARLY_LEAVE_PERMISSION"
	RequestKindAbsencePermission    RequestKind = "ABSENCE_PERMISSION"
	RequestKindOvertime             RequestKind = "OVERTIME"
)

var RequestKindValues = []string{
	string(RequestKindLatePermission),
	string(RequestKindEarlyLeavePermission),
	string(RequestKindAbsencePermission),
	string(RequestKindOvertime),
}

// ParseRequestKind accepts any casing and '-' in place of '_'.
func ParseRequestKind(s string) (RequestKind, error) {
	v := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	if validator.IsInSlice(v, RequestKindValues) {
		return RequestKind(v), nil
	}
	return "", fmt.Errorf("unknown request kind %q", s)
}

// IsPermission reports whether k is one of the izin kinds.
func (k RequestKind) IsPermission() bool {
	return k == RequestKindLatePermission ||
		k == RequestKindEarlyLeavePermission ||
		k == RequestKindAbsencePermission
}

// NeedsTime reports whether the kind carries an arrival or leave time.
func (k RequestKind) NeedsTime() bool {
	return k == RequestKindLatePermission || k == RequestKindEarlyLeavePermission
}

// sharesSlot reports whether k and other compete for the same approval on a day.
// All izin kinds share one slot, lembur has its own.
func (k RequestKind) sharesSlot(other RequestKind) bool {
	return k.IsPermission() == other.IsPermission()
}

type RequestStatus string

const (
	RequestStatusNone     RequestStatus = "NONE"
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusApproved RequestStatus = "APPROVED"
	RequestStatusRejected RequestStatus = "REJECTED"

	// RequestStatusCancelled marks a withdrawn request in the day's history.
	// The day itself reports NONE for it.
	RequestStatusCancelled RequestStatus = "CANCELLED"
)

var RequestStatusValues = []string{
	string(RequestStatusNone),
	string(RequestStatusPending),
	string(RequestStatusApproved),
	string(RequestStatusRejected),
}

// ParseRequestStatus normalizes case.
func ParseRequestStatus(s string) (RequestStatus, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if validator.IsInSlice(v, RequestStatusValues) {
		return RequestStatus(v), nil
	}
	return "", fmt.Errorf("unknown request status %q", s)
}

// GeoLocation is the position reported on check-in.
type GeoLocation struct {
	Latitude  float64
	Longitude float64
}

// Request is one izin/lembur of a day. Requests are never removed from a day;
// a cancelled or decided request stays in its history.
// ApprovedBy, ApprovedAt and Notes are written by the HR approver.
type Request struct {
	ID            string
	Kind          RequestKind
	Status        RequestStatus
	Reason        string
	Time          *time.Time
	OvertimeStart *time.Time
	OvertimeEnd   *time.Time
	Notes         *string
	ApprovedBy    *string
	ApprovedAt    *time.Time
	SubmittedAt   *time.Time
}

// Attendance is the presensi record of one employee for one date.
// Invariant: CheckOut != nil implies CheckIn != nil.
type Attendance struct {
	ID               string
	EmployeeID       string
	Date             time.Time
	ShiftID          *string
	Status           Status
	CheckIn          *time.Time
	CheckOut         *time.Time
	CheckInLatitude  *float64
	CheckInLongitude *float64
	Requests         []Request // oldest first
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewBlank returns the empty record a day starts from.
func NewBlank(employeeID string, date time.Time) Attendance {
	return Attendance{
		EmployeeID: employeeID,
		Date:       date,
		Status:     StatusNone,
	}
}

func (a *Attendance) HasCheckedIn() bool {
	return a != nil && a.CheckIn != nil
}

func (a *Attendance) HasCheckedOut() bool {
	return a != nil && a.CheckOut != nil
}

// PendingRequest returns the request awaiting approval, or nil.
func (a *Attendance) PendingRequest() *Request {
	if a == nil {
		return nil
	}
	for i := range a.Requests {
		if a.Requests[i].Status == RequestStatusPending {
			return &a.Requests[i]
		}
	}
	return nil
}

// HasPendingRequest reports whether an izin/lembur awaits approval.
func (a *Attendance) HasPendingRequest() bool {
	return a.PendingRequest() != nil
}

// FindRequest returns the request with id, or nil.
func (a *Attendance) FindRequest(id string) *Request {
	if a == nil || id == "" {
		return nil
	}
	for i := range a.Requests {
		if a.Requests[i].ID == id {
			return &a.Requests[i]
		}
	}
	return nil
}

// CurrentRequest is the request that sets the day's request sub-state: the
// pending one, else the most recent decided one. Cancelled requests are skipped.
func (a *Attendance) CurrentRequest() *Request {
	if p := a.PendingRequest(); p != nil {
		return p
	}
	if a == nil {
		return nil
	}
	for i := len(a.Requests) - 1; i >= 0; i-- {
		if a.Requests[i].Status != RequestStatusCancelled {
			return &a.Requests[i]
		}
	}
	return nil
}

// RequestStatus is the day's request sub-state.
func (a *Attendance) RequestStatus() RequestStatus {
	if r := a.CurrentRequest(); r != nil {
		return r.Status
	}
	return RequestStatusNone
}

// RequestKind is the kind of the current request, NONE without one.
func (a *Attendance) RequestKind() RequestKind {
	if r := a.CurrentRequest(); r != nil {
		return r.Kind
	}
	return RequestKindNone
}

// hasRequest reports whether a request of exactly kind is in one of statuses.
func (a *Attendance) hasRequest(kind RequestKind, statuses ...RequestStatus) bool {
	if a == nil {
		return false
	}
	for _, r := range a.Requests {
		if r.Kind != kind {
			continue
		}
		for _, st := range statuses {
			if r.Status == st {
				return true
			}
		}
	}
	return false
}

// approvedInSlot reports whether a request sharing kind's slot was approved.
func (a *Attendance) approvedInSlot(kind RequestKind) bool {
	if a == nil {
		return false
	}
	for _, r := range a.Requests {
		if r.Status == RequestStatusApproved && r.Kind.sharesSlot(kind) {
			return true
		}
	}
	return false
}

// DateOnly truncates t to midnight of its calendar date in its own location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
