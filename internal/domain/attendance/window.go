package attendance

import (
	"errors"
	"fmt"
	"time"

	"github.com/kayuraya/presensi-backend/internal/domain/schedule"
)

// WindowPolicy bounds when check-in and check-out are accepted.
// It is a pure function of the supplied time, shift and record.
type WindowPolicy struct {
	EarlyTolerance  time.Duration // check-in opens this long before the shift starts
	LateCeiling     time.Duration // check-in closes this long after the shift starts
	MinimumDuration time.Duration // check-out needs at least this much time after check-in
}

func DefaultWindowPolicy() WindowPolicy {
	return WindowPolicy{
		EarlyTolerance:  2 * time.Hour,
		LateCeiling:     4 * time.Hour,
		MinimumDuration: 15 * time.Minute,
	}
}

// CheckInWindow returns the inclusive bounds of the check-in window for shift,
// evaluated in loc.
func (p WindowPolicy) CheckInWindow(shift schedule.ShiftAssignment, loc *time.Location) (opens, closes time.Time) {
	start := shift.StartOn(loc)
	return start.Add(-p.EarlyTolerance), start.Add(p.LateCeiling)
}

// EvaluateCheckIn returns nil when a check-in at now is inside the window,
// otherwise the denial.
func (p WindowPolicy) EvaluateCheckIn(now time.Time, shift *schedule.ShiftAssignment, rec *Attendance) error {
	if shift == nil || !shift.IsOn(now) {
		return ErrNoSchedule
	}
	if rec.HasCheckedIn() {
		return ErrAlreadyCheckedIn
	}

	opens, closes := p.CheckInWindow(*shift, now.Location())
	if now.Before(opens) {
		wait := opens.Sub(now)
		return &DenialError{
			Err:              ErrOutsideWindow,
			Message:          Countdown(wait),
			MinutesRemaining: ceilMinutes(wait),
		}
	}
	if now.After(closes) {
		return deny(ErrOutsideWindow, "Batas waktu absen masuk sudah lewat")
	}
	return nil
}

// CanCheckIn reports whether check-in is currently permitted.
func (p WindowPolicy) CanCheckIn(now time.Time, shift *schedule.ShiftAssignment, rec *Attendance) bool {
	return p.EvaluateCheckIn(now, shift, rec) == nil
}

// EvaluateCheckOut returns nil once the minimum on-shift duration has passed.
func (p WindowPolicy) EvaluateCheckOut(now time.Time, rec *Attendance) error {
	if !rec.HasCheckedIn() {
		return ErrNotCheckedIn
	}
	if rec.HasCheckedOut() {
		return ErrAlreadyCheckedOut
	}

	earliest := rec.CheckIn.Add(p.MinimumDuration)
	if now.Before(earliest) {
		mins := ceilMinutes(earliest.Sub(now))
		return &DenialError{
			Err:              ErrTooSoon,
			Message:          fmt.Sprintf("Absen pulang dapat dilakukan %d menit lagi", mins),
			MinutesRemaining: mins,
		}
	}
	return nil
}

func (p WindowPolicy) CanCheckOut(now time.Time, rec *Attendance) bool {
	return p.EvaluateCheckOut(now, rec) == nil
}

// MinutesUntilCheckOut is zero when check-out is already allowed or impossible.
func (p WindowPolicy) MinutesUntilCheckOut(now time.Time, rec *Attendance) int {
	var denial *DenialError
	if err := p.EvaluateCheckOut(now, rec); errors.As(err, &denial) {
		return denial.MinutesRemaining
	}
	return 0
}

// Countdown renders the wait before check-in opens, e.g. "Absen dalam 1 jam 30 menit lagi".
// It returns "" for non-positive durations.
func Countdown(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	mins := ceilMinutes(d)
	return fmt.Sprintf("Absen dalam %d jam %d menit lagi", mins/60, mins%60)
}

func ceilMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Minute - 1) / time.Minute)
}
