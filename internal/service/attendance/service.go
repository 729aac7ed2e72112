package attendance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/kayuraya/presensi-backend/internal/domain/attendance"
	"github.com/kayuraya/presensi-backend/internal/domain/schedule"
)

type Options struct {
	// Location is the wall-clock zone shifts are defined in.
	Location *time.Location
	// HistoryDays is how many days, today included, GetHistory returns.
	HistoryDays int
}

type AttendanceServiceImpl struct {
	attendance.AttendanceRepository
	schedule.ShiftRepository
	machine     attendance.Machine
	clock       clockwork.Clock
	loc         *time.Location
	historyDays int
}

func NewAttendanceService(
	attendanceRepo attendance.AttendanceRepository,
	shiftRepo schedule.ShiftRepository,
	machine attendance.Machine,
	clock clockwork.Clock,
	opts Options,
) attendance.AttendanceService {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	historyDays := opts.HistoryDays
	if historyDays <= 0 {
		historyDays = 7
	}
	return &AttendanceServiceImpl{
		AttendanceRepository: attendanceRepo,
		ShiftRepository:      shiftRepo,
		machine:              machine,
		clock:                clock,
		loc:                  loc,
		historyDays:          historyDays,
	}
}

func (s *AttendanceServiceImpl) now() time.Time {
	return s.clock.Now().In(s.loc)
}

// dayOf returns local midnight of the calendar date of t, read in t's own zone.
func (s *AttendanceServiceImpl) dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}

// GetTodayStatus implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) GetTodayStatus(ctx context.Context, employeeID string) (attendance.TodayStatusResponse, error) {
	if employeeID == "" {
		return attendance.TodayStatusResponse{}, fmt.Errorf("employee_id is required")
	}

	now := s.now()
	today := attendance.DateOnly(now)

	var (
		shift *schedule.ShiftAssignment
		next  *schedule.ShiftAssignment
		rec   *attendance.Attendance
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		shift, err = s.ShiftRepository.GetByEmployeeAndDate(gctx, employeeID, today)
		if err != nil {
			return fmt.Errorf("failed to get today's shift: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		next, err = s.ShiftRepository.GetNextAfter(gctx, employeeID, today)
		if err != nil {
			return fmt.Errorf("failed to get next shift: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		rec, err = s.AttendanceRepository.GetByEmployeeAndDate(gctx, employeeID, today)
		if err != nil {
			return fmt.Errorf("failed to get today's attendance: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return attendance.TodayStatusResponse{}, err
	}

	view := s.machine.View(now, shift, rec)

	resp := attendance.TodayStatusResponse{
		Date:                 today.Format("2006-01-02"),
		State:                string(view.State),
		HasSchedule:          view.HasSchedule,
		HasCheckedIn:         view.HasCheckedIn,
		HasCheckedOut:        view.HasCheckedOut,
		CanCheckIn:           view.CanCheckIn,
		CanCheckOut:          view.CanCheckOut,
		CanRequestPermission: view.CanRequestPermission,
		CanRequestOvertime:   view.CanRequestOvertime,
		MinutesUntilCheckOut: view.MinutesUntilCheckOut,
		Shift:                mapShiftToResponse(shift),
	}
	if view.CheckInMessage != "" {
		msg := view.CheckInMessage
		resp.CheckInMessage = &msg
	}
	if shift == nil {
		resp.NextSchedule = mapShiftToResponse(next)
	}
	if rec != nil {
		r := mapAttendanceToResponse(*rec, s.loc)
		resp.Record = &r
	}

	return resp, nil
}

// CheckIn implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) CheckIn(ctx context.Context, req attendance.CheckInRequest) (attendance.AttendanceResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	now := s.now()
	today := attendance.DateOnly(now)

	shift, err := s.ShiftRepository.GetByEmployeeAndDate(ctx, req.EmployeeID, today)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to get today's shift: %w", err)
	}
	if shift == nil || (req.ScheduleID != "" && req.ScheduleID != shift.ID) {
		return attendance.AttendanceResponse{}, attendance.ErrNoSchedule
	}

	seen, err := s.AttendanceRepository.GetByEmployeeAndDate(ctx, req.EmployeeID, today)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to get today's attendance: %w", err)
	}

	rec, err := s.AttendanceRepository.Transition(ctx, req.EmployeeID, today, func(current attendance.Attendance) (attendance.Attendance, error) {
		next, err := s.machine.CheckIn(now, shift, current, req.Location())
		// The check-in landed between our read and the row lock.
		if errors.Is(err, attendance.ErrAlreadyCheckedIn) && !seen.HasCheckedIn() {
			return current, attendance.LostRace(err)
		}
		return next, err
	})
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}

	slog.Info("employee checked in",
		"employee_id", rec.EmployeeID,
		"date", today.Format("2006-01-02"),
		"status", rec.Status,
	)
	return mapAttendanceToResponse(rec, s.loc), nil
}

// CheckOut implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) CheckOut(ctx context.Context, req attendance.CheckOutRequest) (attendance.AttendanceResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	now := s.now()
	today := attendance.DateOnly(now)

	rec, err := s.AttendanceRepository.Transition(ctx, req.EmployeeID, today, func(current attendance.Attendance) (attendance.Attendance, error) {
		return s.machine.CheckOut(now, current)
	})
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}

	slog.Info("employee checked out",
		"employee_id", rec.EmployeeID,
		"date", today.Format("2006-01-02"),
	)
	return mapAttendanceToResponse(rec, s.loc), nil
}

// SubmitRequest implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) SubmitRequest(ctx context.Context, req attendance.SubmitRequestRequest) (attendance.RequestResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.RequestResponse{}, err
	}

	now := s.now()
	today := attendance.DateOnly(now)

	draft, err := req.Draft(today)
	if err != nil {
		return attendance.RequestResponse{}, err
	}

	shift, err := s.ShiftRepository.GetByEmployeeAndDate(ctx, req.EmployeeID, today)
	if err != nil {
		return attendance.RequestResponse{}, fmt.Errorf("failed to get today's shift: %w", err)
	}
	if shift == nil {
		return attendance.RequestResponse{}, attendance.ErrNoSchedule
	}

	id, err := uuid.NewV7()
	if err != nil {
		return attendance.RequestResponse{}, fmt.Errorf("failed to generate request id: %w", err)
	}

	rec, err := s.AttendanceRepository.Transition(ctx, req.EmployeeID, today, func(current attendance.Attendance) (attendance.Attendance, error) {
		return s.machine.SubmitRequest(now, shift, current, draft, id.String())
	})
	if err != nil {
		return attendance.RequestResponse{}, err
	}

	slog.Info("attendance request submitted",
		"employee_id", rec.EmployeeID,
		"request_id", id.String(),
		"kind", draft.Kind,
	)
	return requestResponseFor(rec, id.String(), s.loc)
}

// EditRequest implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) EditRequest(ctx context.Context, req attendance.EditRequestRequest) (attendance.RequestResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.RequestResponse{}, err
	}

	owned, err := s.ownedRequest(ctx, req.EmployeeID, req.RequestID)
	if err != nil {
		return attendance.RequestResponse{}, err
	}

	draft, err := req.Draft(owned.FindRequest(req.RequestID).Kind, s.dayOf(owned.Date))
	if err != nil {
		return attendance.RequestResponse{}, err
	}

	rec, err := s.AttendanceRepository.Transition(ctx, owned.EmployeeID, owned.Date, func(current attendance.Attendance) (attendance.Attendance, error) {
		return s.machine.EditRequest(current, req.RequestID, draft)
	})
	if err != nil {
		return attendance.RequestResponse{}, err
	}

	return requestResponseFor(rec, req.RequestID, s.loc)
}

// CancelRequest implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) CancelRequest(ctx context.Context, req attendance.CancelRequestRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	owned, err := s.ownedRequest(ctx, req.EmployeeID, req.RequestID)
	if err != nil {
		return err
	}

	_, err = s.AttendanceRepository.Transition(ctx, owned.EmployeeID, owned.Date, func(current attendance.Attendance) (attendance.Attendance, error) {
		return s.machine.CancelRequest(current, req.RequestID)
	})
	if err != nil {
		return err
	}

	slog.Info("attendance request cancelled", "employee_id", owned.EmployeeID, "request_id", req.RequestID)
	return nil
}

// ownedRequest loads the day carrying requestID and hides other employees' requests.
func (s *AttendanceServiceImpl) ownedRequest(ctx context.Context, employeeID, requestID string) (attendance.Attendance, error) {
	rec, err := s.AttendanceRepository.GetByRequestID(ctx, requestID)
	if err != nil {
		return attendance.Attendance{}, err
	}
	if rec.EmployeeID != employeeID || rec.FindRequest(requestID) == nil {
		return attendance.Attendance{}, attendance.ErrRequestNotFound
	}
	return rec, nil
}

// DecideRequest implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) DecideRequest(ctx context.Context, req attendance.DecideRequestRequest) (attendance.RequestResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.RequestResponse{}, err
	}

	found, err := s.AttendanceRepository.GetByRequestID(ctx, req.RequestID)
	if err != nil {
		return attendance.RequestResponse{}, err
	}

	now := s.now()
	rec, err := s.AttendanceRepository.Transition(ctx, found.EmployeeID, found.Date, func(current attendance.Attendance) (attendance.Attendance, error) {
		return s.machine.DecideRequest(now, current, req.RequestID, req.Verdict(), req.ApproverID, req.Notes)
	})
	if err != nil {
		return attendance.RequestResponse{}, err
	}

	slog.Info("attendance request decided",
		"request_id", req.RequestID,
		"employee_id", rec.EmployeeID,
		"verdict", req.Verdict(),
		"approved_by", req.ApproverID,
	)
	return requestResponseFor(rec, req.RequestID, s.loc)
}

// GetHistory implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) GetHistory(ctx context.Context, employeeID string) ([]attendance.AttendanceResponse, error) {
	if employeeID == "" {
		return nil, fmt.Errorf("employee_id is required")
	}

	today := attendance.DateOnly(s.now())
	from := today.AddDate(0, 0, -(s.historyDays - 1))

	attendances, err := s.AttendanceRepository.ListByEmployee(ctx, employeeID, from, today)
	if err != nil {
		return nil, fmt.Errorf("failed to get attendance history: %w", err)
	}

	responses := make([]attendance.AttendanceResponse, 0, len(attendances))
	for _, att := range attendances {
		responses = append(responses, mapAttendanceToResponse(att, s.loc))
	}
	return responses, nil
}

// ListAttendance implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) ListAttendance(ctx context.Context, filter attendance.AttendanceFilter) (attendance.ListAttendanceResponse, error) {
	if err := filter.Validate(); err != nil {
		return attendance.ListAttendanceResponse{}, err
	}

	attendances, total, err := s.AttendanceRepository.List(ctx, filter)
	if err != nil {
		return attendance.ListAttendanceResponse{}, fmt.Errorf("failed to list attendances: %w", err)
	}

	responses := make([]attendance.AttendanceResponse, 0, len(attendances))
	for _, att := range attendances {
		responses = append(responses, mapAttendanceToResponse(att, s.loc))
	}

	totalPages := int(math.Ceil(float64(total) / float64(filter.Limit)))
	showing := fmt.Sprintf("%d-%d of %d", (filter.Page-1)*filter.Limit+1, min(filter.Page*filter.Limit, int(total)), total)
	if total == 0 {
		showing = "0 of 0"
	}

	return attendance.ListAttendanceResponse{
		TotalCount:  total,
		Page:        filter.Page,
		Limit:       filter.Limit,
		TotalPages:  totalPages,
		Showing:     showing,
		Attendances: responses,
	}, nil
}

// ExportAttendance implements attendance.AttendanceService.
// Page and Limit of the filter are ignored; every matching row is exported.
func (s *AttendanceServiceImpl) ExportAttendance(ctx context.Context, filter attendance.AttendanceFilter) (*bytes.Buffer, error) {
	filter.Page, filter.Limit = 1, 100
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	var all []attendance.Attendance
	for {
		page, total, err := s.AttendanceRepository.List(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to list attendances for export: %w", err)
		}
		all = append(all, page...)
		if len(page) == 0 || int64(len(all)) >= total {
			break
		}
		filter.Page++
	}

	buf, err := writeAttendanceWorkbook(all, s.loc)
	if err != nil {
		return nil, fmt.Errorf("failed to build attendance workbook: %w", err)
	}
	return buf, nil
}

// MarkAbsent implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) MarkAbsent(ctx context.Context) (int64, error) {
	yesterday := attendance.DateOnly(s.now()).AddDate(0, 0, -1)

	n, err := s.AttendanceRepository.MarkAbsent(ctx, yesterday)
	if err != nil {
		return 0, fmt.Errorf("failed to mark absent for %s: %w", yesterday.Format("2006-01-02"), err)
	}

	slog.Info("marked absent attendances", "date", yesterday.Format("2006-01-02"), "count", n)
	return n, nil
}

// ========================================
// MAPPING
// ========================================

func timePtrToString(t *time.Time, loc *time.Location, layout string) *string {
	if t == nil {
		return nil
	}
	s := t.In(loc).Format(layout)
	return &s
}

func mapShiftToResponse(shift *schedule.ShiftAssignment) *attendance.ShiftResponse {
	if shift == nil {
		return nil
	}
	return &attendance.ShiftResponse{
		ID:             shift.ID,
		Date:           shift.Date.Format("2006-01-02"),
		ScheduledStart: shift.ScheduledStart.Format("15:04"),
		ScheduledEnd:   shift.ScheduledEnd.Format("15:04"),
		ShiftLabel:     shift.ShiftLabel,
	}
}

// requestResponseFor maps the request id of att.
func requestResponseFor(att attendance.Attendance, id string, loc *time.Location) (attendance.RequestResponse, error) {
	r := att.FindRequest(id)
	if r == nil {
		return attendance.RequestResponse{}, fmt.Errorf("request %s missing from stored day", id)
	}
	return mapRequestToResponse(att, *r, loc), nil
}

func mapRequestToResponse(att attendance.Attendance, r attendance.Request, loc *time.Location) attendance.RequestResponse {
	return attendance.RequestResponse{
		ID:          r.ID,
		EmployeeID:  att.EmployeeID,
		Date:        att.Date.Format("2006-01-02"),
		Kind:        string(r.Kind),
		Status:      string(r.Status),
		Reason:      r.Reason,
		Time:        timePtrToString(r.Time, loc, "15:04"),
		Start:       timePtrToString(r.OvertimeStart, loc, "15:04"),
		End:         timePtrToString(r.OvertimeEnd, loc, "15:04"),
		Notes:       r.Notes,
		ApprovedBy:  r.ApprovedBy,
		ApprovedAt:  timePtrToString(r.ApprovedAt, loc, "2006-01-02 15:04:05"),
		SubmittedAt: timePtrToString(r.SubmittedAt, loc, "2006-01-02 15:04:05"),
	}
}

// mapAttendanceToResponse converts an Attendance entity to AttendanceResponse
func mapAttendanceToResponse(att attendance.Attendance, loc *time.Location) attendance.AttendanceResponse {
	var workingMinutes *int
	if att.CheckIn != nil && att.CheckOut != nil {
		m := int(att.CheckOut.Sub(*att.CheckIn) / time.Minute)
		workingMinutes = &m
	}

	var current *attendance.RequestResponse
	if r := att.CurrentRequest(); r != nil {
		resp := mapRequestToResponse(att, *r, loc)
		current = &resp
	}

	var history []attendance.RequestResponse
	for _, r := range att.Requests {
		history = append(history, mapRequestToResponse(att, r, loc))
	}

	return attendance.AttendanceResponse{
		ID:               att.ID,
		EmployeeID:       att.EmployeeID,
		Date:             att.Date.Format("2006-01-02"),
		ShiftID:          att.ShiftID,
		Status:           string(att.Status),
		CheckInTime:      timePtrToString(att.CheckIn, loc, "2006-01-02 15:04:05"),
		CheckOutTime:     timePtrToString(att.CheckOut, loc, "2006-01-02 15:04:05"),
		CheckInLatitude:  att.CheckInLatitude,
		CheckInLongitude: att.CheckInLongitude,
		WorkingMinutes:   workingMinutes,
		RequestKind:      string(att.RequestKind()),
		RequestStatus:    string(att.RequestStatus()),
		Request:          current,
		Requests:         history,
		CreatedAt:        att.CreatedAt.In(loc).Format("2006-01-02 15:04:05"),
		UpdatedAt:        att.UpdatedAt.In(loc).Format("2006-01-02 15:04:05"),
	}
}
