package attendance

import (
	"strings"
	"time"

	"github.com/kayuraya/presensi-backend/internal/domain/schedule"
	"github.com/kayuraya/presensi-backend/internal/pkg/validator"
)

// ========================================
// EMPLOYEE SELF-SERVICE DTOs
// ========================================

type CheckInRequest struct {
	EmployeeID string   `json:"employee_id" validate:"required"`
	ScheduleID string   `json:"schedule_id" validate:"omitempty,uuid"`
	Latitude   *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude  *float64 `json:"longitude" validate:"omitempty,longitude"`
}

func (r *CheckInRequest) Validate() error {
	return validator.Struct(r)
}

// Location returns nil unless both coordinates were sent.
func (r *CheckInRequest) Location() *GeoLocation {
	if r.Latitude == nil || r.Longitude == nil {
		return nil
	}
	return &GeoLocation{Latitude: *r.Latitude, Longitude: *r.Longitude}
}

type CheckOutRequest struct {
	EmployeeID string `json:"employee_id" validate:"required"`
}

func (r *CheckOutRequest) Validate() error {
	return validator.Struct(r)
}

// SubmitRequestRequest carries a new izin or lembur. Times are "HH:MM" on the current day.
type SubmitRequestRequest struct {
	EmployeeID string  `json:"employee_id" validate:"required"`
	Kind       string  `json:"kind" validate:"required"`
	Reason     string  `json:"reason"`
	Time       *string `json:"time,omitempty" validate:"omitempty,datetime=15:04"`
	Start      *string `json:"start,omitempty" validate:"omitempty,datetime=15:04"`
	End        *string `json:"end,omitempty" validate:"omitempty,datetime=15:04"`
}

func (r *SubmitRequestRequest) Validate() error {
	var errs validator.ValidationErrors
	if err := validator.Struct(r); err != nil {
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		errs = append(errs, fieldErrs...)
	}

	if r.Kind != "" {
		if _, err := ParseRequestKind(r.Kind); err != nil {
			errs = append(errs, validator.ValidationError{
				Field:   "kind",
				Message: "kind must be one of: " + strings.Join(RequestKindValues, ", "),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Draft resolves the clock fields against day. Call Validate first.
func (r *SubmitRequestRequest) Draft(day time.Time) (RequestDraft, error) {
	kind, err := ParseRequestKind(r.Kind)
	if err != nil {
		return RequestDraft{}, err
	}
	return buildDraft(kind, r.Reason, r.Time, r.Start, r.End, day)
}

// EditRequestRequest replaces the content of a pending request. The kind is fixed.
type EditRequestRequest struct {
	EmployeeID string  `json:"employee_id" validate:"required"`
	RequestID  string  `json:"request_id" validate:"required,uuid7"`
	Reason     string  `json:"reason"`
	Time       *string `json:"time,omitempty" validate:"omitempty,datetime=15:04"`
	Start      *string `json:"start,omitempty" validate:"omitempty,datetime=15:04"`
	End        *string `json:"end,omitempty" validate:"omitempty,datetime=15:04"`
}

func (r *EditRequestRequest) Validate() error {
	return validator.Struct(r)
}

// Draft resolves the clock fields against day for an existing request of kind.
func (r *EditRequestRequest) Draft(kind RequestKind, day time.Time) (RequestDraft, error) {
	return buildDraft(kind, r.Reason, r.Time, r.Start, r.End, day)
}

type CancelRequestRequest struct {
	EmployeeID string `json:"employee_id" validate:"required"`
	RequestID  string `json:"request_id" validate:"required,uuid7"`
}

func (r *CancelRequestRequest) Validate() error {
	return validator.Struct(r)
}

// ========================================
// HR DTOs
// ========================================

type DecideRequestRequest struct {
	RequestID  string  `json:"request_id" validate:"required,uuid7"`
	ApproverID string  `json:"approver_id" validate:"required"`
	Approve    bool    `json:"-"`
	Notes      *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

func (r *DecideRequestRequest) Validate() error {
	return validator.Struct(r)
}

func (r *DecideRequestRequest) Verdict() RequestStatus {
	if r.Approve {
		return RequestStatusApproved
	}
	return RequestStatusRejected
}

type AttendanceFilter struct {
	EmployeeID    *string `json:"employee_id,omitempty"`
	StartDate     *string `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate       *string `json:"end_date,omitempty"`   // YYYY-MM-DD
	Status        *string `json:"status,omitempty"`
	RequestKind   *string `json:"request_kind,omitempty"`
	RequestStatus *string `json:"request_status,omitempty"`

	// Pagination
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Validate applies pagination defaults and normalizes enum filters in place.
func (f *AttendanceFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.Page < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "page",
			Message: "page must be a positive number",
		})
	}
	if f.Page == 0 {
		f.Page = 1
	}

	if f.Limit < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must be a positive number",
		})
	}
	if f.Limit == 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must not exceed 100",
		})
	}

	if f.Status != nil {
		status, err := ParseStatus(*f.Status)
		if err != nil {
			errs = append(errs, validator.ValidationError{
				Field:   "status",
				Message: "status must be one of: " + strings.Join(StatusValues, ", "),
			})
		} else {
			s := string(status)
			f.Status = &s
		}
	}

	if f.RequestKind != nil {
		kind, err := ParseRequestKind(*f.RequestKind)
		if err != nil {
			errs = append(errs, validator.ValidationError{
				Field:   "request_kind",
				Message: "request_kind must be one of: " + strings.Join(RequestKindValues, ", "),
			})
		} else {
			k := string(kind)
			f.RequestKind = &k
		}
	}

	if f.RequestStatus != nil {
		status, err := ParseRequestStatus(*f.RequestStatus)
		if err != nil {
			errs = append(errs, validator.ValidationError{
				Field:   "request_status",
				Message: "request_status must be one of: " + strings.Join(RequestStatusValues, ", "),
			})
		} else {
			s := string(status)
			f.RequestStatus = &s
		}
	}

	var start, end time.Time
	if f.StartDate != nil && *f.StartDate != "" {
		d, valid := validator.IsValidDate(*f.StartDate)
		if !valid {
			errs = append(errs, validator.ValidationError{
				Field:   "start_date",
				Message: "start_date must be in YYYY-MM-DD format",
			})
		}
		start = d
	}
	if f.EndDate != nil && *f.EndDate != "" {
		d, valid := validator.IsValidDate(*f.EndDate)
		if !valid {
			errs = append(errs, validator.ValidationError{
				Field:   "end_date",
				Message: "end_date must be in YYYY-MM-DD format",
			})
		}
		end = d
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		errs = append(errs, validator.ValidationError{
			Field:   "end_date",
			Message: "end_date must not be before start_date",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ========================================
// RESPONSES
// ========================================

type ShiftResponse struct {
	ID             string `json:"id"`
	Date           string `json:"date"`
	ScheduledStart string `json:"scheduled_start"`
	ScheduledEnd   string `json:"scheduled_end"`
	ShiftLabel     string `json:"shift_label"`
}

type RequestResponse struct {
	ID          string  `json:"id"`
	EmployeeID  string  `json:"employee_id"`
	Date        string  `json:"date"`
	Kind        string  `json:"kind"`
	Status      string  `json:"status"`
	Reason      string  `json:"reason"`
	Time        *string `json:"time,omitempty"`
	Start       *string `json:"start,omitempty"`
	End         *string `json:"end,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	ApprovedBy  *string `json:"approved_by,omitempty"`
	ApprovedAt  *string `json:"approved_at,omitempty"`
	SubmittedAt *string `json:"submitted_at,omitempty"`
}

// AttendanceResponse is one day. Request is the request that sets the day's
// request status; Requests is the full history, cancelled and decided ones included.
type AttendanceResponse struct {
	ID               string            `json:"id"`
	EmployeeID       string            `json:"employee_id"`
	Date             string            `json:"date"`
	ShiftID          *string           `json:"shift_id,omitempty"`
	Status           string            `json:"status"`
	CheckInTime      *string           `json:"check_in_time,omitempty"`
	CheckOutTime     *string           `json:"check_out_time,omitempty"`
	CheckInLatitude  *float64          `json:"check_in_latitude,omitempty"`
	CheckInLongitude *float64          `json:"check_in_longitude,omitempty"`
	WorkingMinutes   *int              `json:"working_minutes,omitempty"`
	RequestKind      string            `json:"request_kind"`
	RequestStatus    string            `json:"request_status"`
	Request          *RequestResponse  `json:"request,omitempty"`
	Requests         []RequestResponse `json:"requests,omitempty"`
	CreatedAt        string            `json:"created_at"`
	UpdatedAt        string            `json:"updated_at"`
}

type TodayStatusResponse struct {
	Date                 string              `json:"date"`
	State                string              `json:"state"`
	HasSchedule          bool                `json:"has_schedule"`
	HasCheckedIn         bool                `json:"has_checked_in"`
	HasCheckedOut        bool                `json:"has_checked_out"`
	CanCheckIn           bool                `json:"can_check_in"`
	CanCheckOut          bool                `json:"can_check_out"`
	CanRequestPermission bool                `json:"can_request_permission"`
	CanRequestOvertime   bool                `json:"can_request_overtime"`
	CheckInMessage       *string             `json:"check_in_message,omitempty"`
	MinutesUntilCheckOut int                 `json:"minutes_until_check_out"`
	Shift                *ShiftResponse      `json:"shift,omitempty"`
	NextSchedule         *ShiftResponse      `json:"next_schedule,omitempty"`
	Record               *AttendanceResponse `json:"record"`
}

type ListAttendanceResponse struct {
	TotalCount  int64                `json:"total_count"`
	Page        int                  `json:"page"`
	Limit       int                  `json:"limit"`
	TotalPages  int                  `json:"total_pages"`
	Showing     string               `json:"showing"`
	Attendances []AttendanceResponse `json:"attendances"`
}

func buildDraft(kind RequestKind, reason string, clock, start, end *string, day time.Time) (RequestDraft, error) {
	d := RequestDraft{Kind: kind, Reason: reason}
	var err error
	if d.Time, err = clockOn(clock, day); err != nil {
		return RequestDraft{}, err
	}
	if d.Start, err = clockOn(start, day); err != nil {
		return RequestDraft{}, err
	}
	if d.End, err = clockOn(end, day); err != nil {
		return RequestDraft{}, err
	}
	return d, nil
}

func clockOn(s *string, day time.Time) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	c, err := schedule.ParseClock(*s)
	if err != nil {
		return nil, err
	}
	t := time.Date(day.Year(), day.Month(), day.Day(), c.Hour(), c.Minute(), c.Second(), 0, day.Location())
	return &t, nil
}
