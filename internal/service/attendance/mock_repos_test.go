package attendance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kayuraya/presensi-backend/internal/domain/attendance"
	"github.com/kayuraya/presensi-backend/internal/domain/schedule"
)

func dayKey(employeeID string, date time.Time) string {
	return employeeID + "|" + date.Format("2006-01-02")
}

// memAttendanceRepo serializes every Transition behind one mutex, the same
// guarantee the row lock gives in PostgreSQL.
type memAttendanceRepo struct {
	mu         sync.Mutex
	days       map[string]attendance.Attendance
	seq        int
	absentDate time.Time
	listCalls  int

	// beforeTransition runs under the lock ahead of each Transition, letting a
	// test commit a competing write that the caller has not seen.
	beforeTransition func(days map[string]attendance.Attendance)
}

func newMemAttendanceRepo() *memAttendanceRepo {
	return &memAttendanceRepo{days: make(map[string]attendance.Attendance)}
}

func (r *memAttendanceRepo) put(att attendance.Attendance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if att.ID == "" {
		r.seq++
		att.ID = fmt.Sprintf("att-%d", r.seq)
	}
	r.days[dayKey(att.EmployeeID, att.Date)] = att
}

func (r *memAttendanceRepo) GetByEmployeeAndDate(_ context.Context, employeeID string, date time.Time) (*attendance.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	att, ok := r.days[dayKey(employeeID, date)]
	if !ok {
		return nil, nil
	}
	return &att, nil
}

func (r *memAttendanceRepo) GetByRequestID(_ context.Context, requestID string) (attendance.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, att := range r.days {
		if att.FindRequest(requestID) != nil {
			return att, nil
		}
	}
	return attendance.Attendance{}, attendance.ErrRequestNotFound
}

func (r *memAttendanceRepo) Transition(_ context.Context, employeeID string, date time.Time, fn attendance.TransitionFunc) (attendance.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.beforeTransition != nil {
		r.beforeTransition(r.days)
		r.beforeTransition = nil
	}

	key := dayKey(employeeID, date)
	current, ok := r.days[key]
	if !ok {
		current = attendance.NewBlank(employeeID, date)
	}

	next, err := fn(current)
	if err != nil {
		return attendance.Attendance{}, err
	}
	if next.ID == "" {
		r.seq++
		next.ID = fmt.Sprintf("att-%d", r.seq)
	}
	r.days[key] = next
	return next, nil
}

func (r *memAttendanceRepo) ListByEmployee(_ context.Context, employeeID string, from, to time.Time) ([]attendance.Attendance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lo, hi := from.Format("2006-01-02"), to.Format("2006-01-02")
	var out []attendance.Attendance
	for _, att := range r.days {
		d := att.Date.Format("2006-01-02")
		if att.EmployeeID == employeeID && d >= lo && d <= hi {
			out = append(out, att)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (r *memAttendanceRepo) List(_ context.Context, filter attendance.AttendanceFilter) ([]attendance.Attendance, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++

	var matched []attendance.Attendance
	for _, att := range r.days {
		if filter.EmployeeID != nil && att.EmployeeID != *filter.EmployeeID {
			continue
		}
		if filter.Status != nil && string(att.Status) != *filter.Status {
			continue
		}
		if filter.RequestStatus != nil && string(att.RequestStatus()) != *filter.RequestStatus {
			continue
		}
		matched = append(matched, att)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.After(matched[j].Date)
		}
		return matched[i].EmployeeID < matched[j].EmployeeID
	})

	total := int64(len(matched))
	start := (filter.Page - 1) * filter.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := min(start+filter.Limit, len(matched))
	return matched[start:end], total, nil
}

func (r *memAttendanceRepo) MarkAbsent(_ context.Context, date time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.absentDate = date
	return 2, nil
}

type memShiftRepo struct {
	shifts map[string]*schedule.ShiftAssignment
}

func newMemShiftRepo(shifts ...*schedule.ShiftAssignment) *memShiftRepo {
	r := &memShiftRepo{shifts: make(map[string]*schedule.ShiftAssignment)}
	for _, s := range shifts {
		r.shifts[dayKey(s.EmployeeID, s.Date)] = s
	}
	return r
}

func (r *memShiftRepo) GetByEmployeeAndDate(_ context.Context, employeeID string, date time.Time) (*schedule.ShiftAssignment, error) {
	return r.shifts[dayKey(employeeID, date)], nil
}

func (r *memShiftRepo) GetNextAfter(_ context.Context, employeeID string, date time.Time) (*schedule.ShiftAssignment, error) {
	var next *schedule.ShiftAssignment
	for _, s := range r.shifts {
		if s.EmployeeID != employeeID || !s.Date.After(date) {
			continue
		}
		if next == nil || s.Date.Before(next.Date) {
			next = s
		}
	}
	return next, nil
}
