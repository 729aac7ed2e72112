package schedule

import (
	"context"
	"time"
)

// ShiftRepository is the read-only roster lookup used by attendance.
// Assignments are written by the roster process, never by this service.
type ShiftRepository interface {
	// GetByEmployeeAndDate returns nil, nil when the employee has no shift on date.
	GetByEmployeeAndDate(ctx context.Context, employeeID string, date time.Time) (*ShiftAssignment, error)

	// GetNextAfter returns the first assignment strictly after date, or nil, nil.
	GetNextAfter(ctx context.Context, employeeID string, date time.Time) (*ShiftAssignment, error)
}
