package attendance

import (
	"bytes"
	"context"
)

// AttendanceService defines business logic for attendance operations
type AttendanceService interface {
	// GetTodayStatus reports what the employee can do right now. It never mutates.
	GetTodayStatus(ctx context.Context, employeeID string) (TodayStatusResponse, error)

	CheckIn(ctx context.Context, req CheckInRequest) (AttendanceResponse, error)
	CheckOut(ctx context.Context, req CheckOutRequest) (AttendanceResponse, error)

	// Izin / lembur
	SubmitRequest(ctx context.Context, req SubmitRequestRequest) (RequestResponse, error)
	EditRequest(ctx context.Context, req EditRequestRequest) (RequestResponse, error)
	CancelRequest(ctx context.Context, req CancelRequestRequest) error

	// GetHistory lists the employee's recent days, newest first.
	GetHistory(ctx context.Context, employeeID string) ([]AttendanceResponse, error)

	// HR
	DecideRequest(ctx context.Context, req DecideRequestRequest) (RequestResponse, error)
	ListAttendance(ctx context.Context, filter AttendanceFilter) (ListAttendanceResponse, error)
	ExportAttendance(ctx context.Context, filter AttendanceFilter) (*bytes.Buffer, error)

	// MarkAbsent is run by the daily job for the day that just ended.
	MarkAbsent(ctx context.Context) (int64, error)
}
