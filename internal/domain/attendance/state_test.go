package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var office = &GeoLocation{Latitude: -6.5971, Longitude: 110.6781}

func newTestMachine() Machine {
	return NewMachine(DefaultWindowPolicy(), DefaultRequestGate(), nil)
}

func TestMachine_DaySession(t *testing.T) {
	m := newTestMachine()
	shift := shiftOn(t, at(0, 0), "08:00", "16:00")
	rec := NewBlank("emp-1", DateOnly(at(0, 0)))

	// Too early.
	_, err := m.CheckIn(at(5, 30), shift, rec, office)
	assert.ErrorIs(t, err, ErrOutsideWindow)

	// Early arrival inside the window.
	rec, err = m.CheckIn(at(6, 30), shift, rec, office)
	require.NoError(t, err)
	assert.Equal(t, StatusPresent, rec.Status)
	require.NotNil(t, rec.CheckIn)
	assert.True(t, rec.CheckIn.Equal(at(6, 30)))
	require.NotNil(t, rec.ShiftID)
	assert.Equal(t, shift.ID, *rec.ShiftID)
	assert.Equal(t, office.Latitude, *rec.CheckInLatitude)
	assert.Equal(t, office.Longitude, *rec.CheckInLongitude)
	assert.Equal(t, StateCheckedIn, DeriveState(shift, &rec))

	// Same minute check-out.
	_, err = m.CheckOut(at(6, 30), rec)
	var denial *DenialError
	require.ErrorAs(t, err, &denial)
	assert.ErrorIs(t, err, ErrTooSoon)
	assert.Equal(t, 15, denial.MinutesRemaining)

	// Sixteen minutes later.
	rec, err = m.CheckOut(at(6, 46), rec)
	require.NoError(t, err)
	assert.True(t, rec.CheckOut.Equal(at(6, 46)))

	view := m.View(at(6, 47), shift, &rec)
	assert.Equal(t, StateCheckedOut, view.State)
	assert.True(t, view.HasCheckedIn)
	assert.True(t, view.HasCheckedOut)
	assert.False(t, view.CanCheckIn)
	assert.False(t, view.CanCheckOut)
	assert.False(t, view.CanRequestPermission)
	assert.False(t, view.CanRequestOvertime)

	// Terminal.
	_, err = m.CheckOut(at(17, 0), rec)
	assert.ErrorIs(t, err, ErrAlreadyCheckedOut)
	_, err = m.CheckIn(at(7, 0), shift, rec, office)
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)
}

func TestMachine_NoSchedule(t *testing.T) {
	m := newTestMachine()
	rec := NewBlank("emp-1", DateOnly(at(0, 0)))

	view := m.View(at(8, 0), nil, nil)
	assert.False(t, view.HasSchedule)
	assert.Equal(t, StateNoSchedule, view.State)
	assert.False(t, view.CanCheckIn)
	assert.False(t, view.CanRequestPermission)
	assert.False(t, view.CanRequestOvertime)
	assert.Empty(t, view.CheckInMessage)

	_, err := m.CheckIn(at(8, 0), nil, rec, office)
	assert.ErrorIs(t, err, ErrNoSchedule)

	_, err = m.SubmitRequest(at(8, 0), nil, rec, latePermission("ban motor bocor di jalan"), requestID)
	assert.ErrorIs(t, err, ErrNoSchedule)
}

func TestMachine_CheckInRequiresLocation(t *testing.T) {
	m := newTestMachine()
	shift := shiftOn(t, at(0, 0), "08:00", "16:00")

	next, err := m.CheckIn(at(7, 0), shift, NewBlank("emp-1", DateOnly(at(0, 0))), nil)
	assert.ErrorIs(t, err, ErrLocationRequired)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Nil(t, next.CheckIn)
}

func TestMachine_CheckInOutsideWindowWinsOverMissingLocation(t *testing.T) {
	m := newTestMachine()
	shift := shiftOn(t, at(0, 0), "08:00", "16:00")

	_, err := m.CheckIn(at(5, 0), shift, NewBlank("emp-1", DateOnly(at(0, 0))), nil)
	assert.ErrorIs(t, err, ErrOutsideWindow)
}

func TestMachine_StatusClassification(t *testing.T) {
	shift := shiftOn(t, at(0, 0), "08:00", "16:00")
	blank := NewBlank("emp-1", DateOnly(at(0, 0)))

	tests := []struct {
		name  string
		grace time.Duration
		now   time.Time
		want  Status
	}{
		{"exactly on time", 0, at(8, 0), StatusPresent},
		{"one minute late", 0, at(8, 1), StatusLate},
		{"inside grace", 10 * time.Minute, at(8, 10), StatusPresent},
		{"past grace", 10 * time.Minute, at(8, 11), StatusLate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(DefaultWindowPolicy(), DefaultRequestGate(), GraceClassifier{Grace: tt.grace})
			rec, err := m.CheckIn(tt.now, shift, blank, office)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Status)
		})
	}
}

func TestMachine_AbsencePermissionBlocksCheckIn(t *testing.T) {
	m := newTestMachine()
	shift := shiftOn(t, at(0, 0), "08:00", "16:00")
	rec := NewBlank("emp-1", DateOnly(at(0, 0)))

	rec, err := m.SubmitRequest(at(6, 0), shift, rec, RequestDraft{Kind: RequestKindAbsencePermission, Reason: "acara keluarga di kampung"}, requestID)
	require.NoError(t, err)
	require.NotNil(t, rec.ShiftID)

	_, err = m.CheckIn(at(7, 0), shift, rec, office)
	assert.ErrorIs(t, err, ErrWrongPhase)
	assert.False(t, m.View(at(7, 0), shift, &rec).CanCheckIn)

	rec, err = m.CancelRequest(rec, requestID)
	require.NoError(t, err)
	_, err = m.CheckIn(at(7, 0), shift, rec, office)
	assert.NoError(t, err)
}

func TestMachine_LatePermissionDoesNotBlockCheckIn(t *testing.T) {
	m := newTestMachine()
	shift := shiftOn(t, at(0, 0), "08:00", "16:00")

	rec, err := m.SubmitRequest(at(6, 0), shift, NewBlank("emp-1", DateOnly(at(0, 0))), latePermission("ban motor bocor di jalan"), requestID)
	require.NoError(t, err)

	rec, err = m.CheckIn(at(9, 20), shift, rec, office)
	require.NoError(t, err)
	assert.Equal(t, StatusLate, rec.Status)
	assert.Equal(t, RequestStatusPending, rec.RequestStatus())
}

func TestMachine_OvertimeAfterApprovedLatePermission(t *testing.T) {
	m := newTestMachine()
	shift := shiftOn(t, at(0, 0), "08:00", "16:00")
	rec := NewBlank("emp-1", DateOnly(at(0, 0)))

	rec, err := m.SubmitRequest(at(6, 0), shift, rec, latePermission("ban motor bocor di jalan"), requestID)
	require.NoError(t, err)
	rec, err = m.DecideRequest(at(6, 30), rec, requestID, RequestStatusApproved, "hr-1", nil)
	require.NoError(t, err)

	rec, err = m.CheckIn(at(9, 30), shift, rec, office)
	require.NoError(t, err)

	view := m.View(at(15, 0), shift, &rec)
	assert.True(t, CanRequestOvertime(&rec))
	assert.True(t, view.CanRequestOvertime)
	assert.False(t, view.CanRequestPermission)

	overtime := RequestDraft{Kind: RequestKindOvertime, Reason: "kejar pengiriman lemari", Start: timePtr(at(16, 0)), End: timePtr(at(18, 0))}
	rec, err = m.SubmitRequest(at(15, 0), shift, rec, overtime, "overtime-id")
	require.NoError(t, err)

	require.Len(t, rec.Requests, 2)
	assert.Equal(t, RequestStatusApproved, rec.FindRequest(requestID).Status)
	assert.Equal(t, RequestKindOvertime, rec.RequestKind())
	assert.Equal(t, RequestStatusPending, rec.RequestStatus())
}

func TestMachine_OvertimeWhileOnShift(t *testing.T) {
	m := newTestMachine()
	shift := shiftOn(t, at(0, 0), "08:00", "16:00")
	rec, err := m.CheckIn(at(7, 50), shift, NewBlank("emp-1", DateOnly(at(0, 0))), office)
	require.NoError(t, err)

	overtime := RequestDraft{Kind: RequestKindOvertime, Reason: "kejar pengiriman lemari", Start: timePtr(at(16, 0)), End: timePtr(at(19, 0))}
	rec, err = m.SubmitRequest(at(13, 0), shift, rec, overtime, requestID)
	require.NoError(t, err)
	assert.Equal(t, StateCheckedIn, DeriveState(shift, &rec))

	// A pending lembur does not hold the employee on shift.
	rec, err = m.CheckOut(at(19, 5), rec)
	require.NoError(t, err)
	assert.Equal(t, RequestStatusPending, rec.RequestStatus())

	rec, err = m.DecideRequest(at(20, 0), rec, requestID, RequestStatusApproved, "hr-1", nil)
	require.NoError(t, err)
	assert.Equal(t, RequestStatusApproved, rec.RequestStatus())
	assert.Equal(t, StatusPresent, rec.Status)
}

func TestMachine_View(t *testing.T) {
	m := newTestMachine()
	shift := shiftOn(t, at(0, 0), "08:00", "16:00")

	t.Run("before the window opens", func(t *testing.T) {
		view := m.View(at(5, 0), shift, nil)
		assert.Equal(t, StateScheduled, view.State)
		assert.True(t, view.HasSchedule)
		assert.False(t, view.CanCheckIn)
		assert.Equal(t, "Absen dalam 1 jam 0 menit lagi", view.CheckInMessage)
		assert.True(t, view.CanRequestPermission)
		assert.False(t, view.CanRequestOvertime)
	})

	t.Run("window open", func(t *testing.T) {
		view := m.View(at(7, 0), shift, nil)
		assert.True(t, view.CanCheckIn)
		assert.Empty(t, view.CheckInMessage)
	})

	t.Run("just checked in", func(t *testing.T) {
		rec := checkedInAt(at(7, 0))
		view := m.View(at(7, 5), shift, rec)
		assert.Equal(t, StateCheckedIn, view.State)
		assert.False(t, view.CanCheckIn)
		assert.False(t, view.CanCheckOut)
		assert.Equal(t, 10, view.MinutesUntilCheckOut)
		assert.False(t, view.CanRequestPermission)
		assert.True(t, view.CanRequestOvertime)
	})

	t.Run("pending request", func(t *testing.T) {
		rec := pendingDay(RequestKindLatePermission)
		view := m.View(at(7, 0), shift, &rec)
		assert.True(t, view.CanCheckIn)
		assert.False(t, view.CanRequestPermission)
	})

	t.Run("repeated calls agree", func(t *testing.T) {
		rec := checkedInAt(at(7, 0))
		assert.Equal(t, m.View(at(7, 3), shift, rec), m.View(at(7, 3), shift, rec))
	})
}
