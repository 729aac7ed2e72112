package attendance

import (
	"context"
	"time"
)

// TransitionFunc receives the current record of a day (blank if none exists)
// and returns the record to store. Returning an error stores nothing.
type TransitionFunc func(current Attendance) (Attendance, error)

// AttendanceRepository persists one record per (employee, date).
type AttendanceRepository interface {
	// GetByEmployeeAndDate returns nil, nil when the day has no record yet.
	GetByEmployeeAndDate(ctx context.Context, employeeID string, date time.Time) (*Attendance, error)

	// GetByRequestID finds the day carrying the request. ErrRequestNotFound if none.
	GetByRequestID(ctx context.Context, requestID string) (Attendance, error)

	// Transition serializes writers of the same (employee, date): fn sees the
	// latest committed record and its result is written atomically.
	Transition(ctx context.Context, employeeID string, date time.Time, fn TransitionFunc) (Attendance, error)

	// ListByEmployee returns records with from <= date <= to, newest first.
	ListByEmployee(ctx context.Context, employeeID string, from, to time.Time) ([]Attendance, error)

	// List retrieves records with filters and pagination for HR.
	List(ctx context.Context, filter AttendanceFilter) ([]Attendance, int64, error)

	// MarkAbsent records ABSENT for every rostered employee on date who did not
	// check in, has status NONE and no pending request. It returns the rows affected.
	MarkAbsent(ctx context.Context, date time.Time) (int64, error)
}
