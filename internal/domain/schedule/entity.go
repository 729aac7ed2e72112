package schedule

import "time"

// ShiftAssignment is the roster entry for one employee on one date.
// ScheduledStart and ScheduledEnd only carry a time of day.
type ShiftAssignment struct {
	ID             string
	EmployeeID     string
	Date           time.Time
	ScheduledStart time.Time
	ScheduledEnd   time.Time
	ShiftLabel     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// StartOn returns the scheduled start as an absolute time on the assignment date in loc.
func (s ShiftAssignment) StartOn(loc *time.Location) time.Time {
	return combine(s.Date, s.ScheduledStart, loc)
}

// IsOn reports whether the assignment belongs to the calendar date of t.
func (s ShiftAssignment) IsOn(t time.Time) bool {
	y1, m1, d1 := s.Date.Date()
	y2, m2, d2 := t.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func combine(date, clock time.Time, loc *time.Location) time.Time {
	return time.Date(
		date.Year(), date.Month(), date.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0,
		loc,
	)
}

// ParseClock parses "15:04" or "15:04:05" into a time-of-day value.
func ParseClock(s string) (time.Time, error) {
	if t, err := time.Parse("15:04:05", s); err == nil {
		return t, nil
	}
	return time.Parse("15:04", s)
}
