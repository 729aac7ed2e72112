package attendance

import (
	"time"

	"github.com/kayuraya/presensi-backend/internal/domain/schedule"
)

// State is the base lifecycle state of a work day. The request sub-state is
// tracked separately by Attendance.RequestStatus.
type State string

const (
	StateNoSchedule State = "NO_SCHEDULE"
	StateScheduled  State = "SCHEDULED"
	StateCheckedIn  State = "CHECKED_IN"
	StateCheckedOut State = "CHECKED_OUT"
)

// DeriveState maps a shift and record onto the day lifecycle.
func DeriveState(shift *schedule.ShiftAssignment, rec *Attendance) State {
	switch {
	case rec.HasCheckedOut():
		return StateCheckedOut
	case rec.HasCheckedIn():
		return StateCheckedIn
	case shift == nil:
		return StateNoSchedule
	default:
		return StateScheduled
	}
}

// StatusClassifier decides PRESENT vs LATE for a check-in.
type StatusClassifier interface {
	Classify(checkIn time.Time, shift schedule.ShiftAssignment) Status
}

// GraceClassifier marks a check-in LATE once it is past the scheduled start plus Grace.
type GraceClassifier struct {
	Grace time.Duration
}

func (c GraceClassifier) Classify(checkIn time.Time, shift schedule.ShiftAssignment) Status {
	if checkIn.After(shift.StartOn(checkIn.Location()).Add(c.Grace)) {
		return StatusLate
	}
	return StatusPresent
}

// Machine applies the day transitions. Every method takes the current record
// by value and returns the next one; nothing is persisted here.
type Machine struct {
	Window     WindowPolicy
	Gate       RequestGate
	Classifier StatusClassifier
}

func NewMachine(window WindowPolicy, gate RequestGate, classifier StatusClassifier) Machine {
	if classifier == nil {
		classifier = GraceClassifier{}
	}
	return Machine{Window: window, Gate: gate, Classifier: classifier}
}

// EvaluateCheckIn combines the window with the absence-permission block.
func (m Machine) EvaluateCheckIn(now time.Time, shift *schedule.ShiftAssignment, rec *Attendance) error {
	if err := m.Window.EvaluateCheckIn(now, shift, rec); err != nil {
		return err
	}
	if BlocksCheckIn(rec) {
		return deny(ErrWrongPhase, "Izin tidak masuk untuk hari ini sedang diajukan atau sudah disetujui")
	}
	return nil
}

// CheckIn: SCHEDULED -> CHECKED_IN.
func (m Machine) CheckIn(now time.Time, shift *schedule.ShiftAssignment, rec Attendance, loc *GeoLocation) (Attendance, error) {
	if err := m.EvaluateCheckIn(now, shift, &rec); err != nil {
		return rec, err
	}
	if loc == nil {
		return rec, ErrLocationRequired
	}

	checkIn := now
	lat, lng := loc.Latitude, loc.Longitude
	shiftID := shift.ID
	rec.CheckIn = &checkIn
	rec.CheckInLatitude = &lat
	rec.CheckInLongitude = &lng
	rec.ShiftID = &shiftID
	rec.Status = m.Classifier.Classify(now, *shift)
	return rec, nil
}

// CheckOut: CHECKED_IN -> CHECKED_OUT.
func (m Machine) CheckOut(now time.Time, rec Attendance) (Attendance, error) {
	if err := m.Window.EvaluateCheckOut(now, &rec); err != nil {
		return rec, err
	}
	checkOut := now
	rec.CheckOut = &checkOut
	return rec, nil
}

// SubmitRequest puts the day into the PENDING sub-state. There must be a shift.
func (m Machine) SubmitRequest(now time.Time, shift *schedule.ShiftAssignment, rec Attendance, d RequestDraft, id string) (Attendance, error) {
	if shift == nil {
		return rec, ErrNoSchedule
	}
	next, err := m.Gate.Submit(rec, d, id, now)
	if err != nil {
		return rec, err
	}
	if next.ShiftID == nil {
		shiftID := shift.ID
		next.ShiftID = &shiftID
	}
	return next, nil
}

func (m Machine) EditRequest(rec Attendance, requestID string, d RequestDraft) (Attendance, error) {
	return m.Gate.Edit(rec, requestID, d)
}

func (m Machine) CancelRequest(rec Attendance, requestID string) (Attendance, error) {
	return m.Gate.Cancel(rec, requestID)
}

func (m Machine) DecideRequest(now time.Time, rec Attendance, requestID string, verdict RequestStatus, approver string, notes *string) (Attendance, error) {
	return m.Gate.Decide(rec, requestID, verdict, approver, notes, now)
}

// DayView is what an employee sees about today.
type DayView struct {
	State                State
	HasSchedule          bool
	HasCheckedIn         bool
	HasCheckedOut        bool
	CanCheckIn           bool
	CanCheckOut          bool
	CanRequestPermission bool
	CanRequestOvertime   bool
	CheckInMessage       string
	MinutesUntilCheckOut int
}

// View evaluates every guard at now without changing anything.
func (m Machine) View(now time.Time, shift *schedule.ShiftAssignment, rec *Attendance) DayView {
	v := DayView{
		State:         DeriveState(shift, rec),
		HasSchedule:   shift != nil,
		HasCheckedIn:  rec.HasCheckedIn(),
		HasCheckedOut: rec.HasCheckedOut(),
	}

	checkInErr := m.EvaluateCheckIn(now, shift, rec)
	v.CanCheckIn = checkInErr == nil
	if shift != nil && !rec.HasCheckedIn() {
		opens, _ := m.Window.CheckInWindow(*shift, now.Location())
		v.CheckInMessage = Countdown(opens.Sub(now))
	}

	v.CanCheckOut = m.Window.CanCheckOut(now, rec)
	v.MinutesUntilCheckOut = m.Window.MinutesUntilCheckOut(now, rec)

	if shift != nil {
		v.CanRequestPermission = m.Gate.EvaluateSubmit(rec, RequestKindAbsencePermission) == nil
		v.CanRequestOvertime = m.Gate.EvaluateSubmit(rec, RequestKindOvertime) == nil
	}
	return v
}
