package postgresql

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayuraya/presensi-backend/internal/domain/attendance"
	"github.com/kayuraya/presensi-backend/internal/pkg/database"
)

// setupTestDB connects to TEST_DATABASE_URL, migrates it and empties every table.
// The tests are skipped when the variable is not set.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	require.NoError(t, database.RunMigrations(dsn))

	ctx := context.Background()
	db, err := database.NewPostgreSQLDB(ctx, dsn, database.PoolOptions{MaxConns: 20})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	_, err = db.Exec(ctx, "TRUNCATE TABLE attendance_requests, attendance_days, shift_assignments CASCADE")
	require.NoError(t, err)
	return db
}

func insertShift(t *testing.T, db *database.DB, employeeID, date, start, end string) string {
	t.Helper()
	var id string
	err := db.QueryRow(context.Background(), `
		INSERT INTO shift_assignments (employee_id, date, scheduled_start, scheduled_end, shift_label)
		VALUES ($1, $2, $3, $4, 'Pagi')
		RETURNING id::text`,
		employeeID, date, start, end,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

var testDay = time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

func checkInAt(ts time.Time) attendance.TransitionFunc {
	return func(current attendance.Attendance) (attendance.Attendance, error) {
		if current.HasCheckedIn() {
			return current, attendance.ErrAlreadyCheckedIn
		}
		current.CheckIn = &ts
		current.Status = attendance.StatusPresent
		return current, nil
	}
}

func TestAttendanceRepository_TransitionCreatesAndUpdates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()

	rec, err := repo.GetByEmployeeAndDate(ctx, "emp-1", testDay)
	require.NoError(t, err)
	assert.Nil(t, rec)

	checkIn := time.Date(2025, time.March, 10, 7, 30, 0, 0, time.UTC)
	saved, err := repo.Transition(ctx, "emp-1", testDay, checkInAt(checkIn))
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, attendance.StatusPresent, saved.Status)
	require.NotNil(t, saved.CheckIn)
	assert.True(t, checkIn.Equal(*saved.CheckIn))
	assert.Equal(t, attendance.RequestStatusNone, saved.RequestStatus())
	assert.Empty(t, saved.Requests)

	got, err := repo.GetByEmployeeAndDate(ctx, "emp-1", testDay)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, saved.ID, got.ID)
}

func TestAttendanceRepository_FailedTransitionLeavesNoRow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()

	_, err := repo.Transition(ctx, "emp-1", testDay, func(current attendance.Attendance) (attendance.Attendance, error) {
		return current, attendance.ErrNotCheckedIn
	})
	assert.ErrorIs(t, err, attendance.ErrNotCheckedIn)

	rec, err := repo.GetByEmployeeAndDate(ctx, "emp-1", testDay)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestAttendanceRepository_ConcurrentTransitionsSerialize(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()

	const attempts = 10
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ts := time.Date(2025, time.March, 10, 7, i, 0, 0, time.UTC)
			_, errs[i] = repo.Transition(ctx, "emp-1", testDay, checkInAt(ts))
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, attendance.ErrAlreadyCheckedIn), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, ok)
}

func TestAttendanceRepository_RequestLookupAndList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()
	requestID := "0195764e-6c2a-7b1e-9a57-5d1c2f3e4a5b"

	_, err := repo.GetByRequestID(ctx, requestID)
	assert.ErrorIs(t, err, attendance.ErrRequestNotFound)

	submitted := time.Date(2025, time.March, 10, 6, 0, 0, 0, time.UTC)
	_, err = repo.Transition(ctx, "emp-2", testDay, func(current attendance.Attendance) (attendance.Attendance, error) {
		current.Requests = append(current.Requests, attendance.Request{
			ID:          requestID,
			Kind:        attendance.RequestKindAbsencePermission,
			Status:      attendance.RequestStatusPending,
			Reason:      "acara keluarga di kampung",
			SubmittedAt: &submitted,
		})
		return current, nil
	})
	require.NoError(t, err)

	found, err := repo.GetByRequestID(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, "emp-2", found.EmployeeID)
	require.Len(t, found.Requests, 1)
	assert.Equal(t, attendance.RequestKindAbsencePermission, found.Requests[0].Kind)
	require.NotNil(t, found.Requests[0].SubmittedAt)
	assert.True(t, submitted.Equal(*found.Requests[0].SubmittedAt))

	_, err = repo.Transition(ctx, "emp-1", testDay, checkInAt(testDay.Add(8*time.Hour)))
	require.NoError(t, err)
	_, err = repo.Transition(ctx, "emp-1", testDay.AddDate(0, 0, -1), checkInAt(testDay.Add(-16*time.Hour)))
	require.NoError(t, err)

	pending := string(attendance.RequestStatusPending)
	rows, total, err := repo.List(ctx, attendance.AttendanceFilter{RequestStatus: &pending, Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, rows, 1)
	require.Len(t, rows[0].Requests, 1)
	assert.Equal(t, requestID, rows[0].Requests[0].ID)

	rows, total, err = repo.List(ctx, attendance.AttendanceFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, rows, 1)
	assert.Equal(t, "2025-03-09", rows[0].Date.Format("2006-01-02"))

	history, err := repo.ListByEmployee(ctx, "emp-1", testDay.AddDate(0, 0, -6), testDay)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2025-03-10", history[0].Date.Format("2006-01-02"))
}

func submitAt(id string, kind attendance.RequestKind, ts time.Time) attendance.TransitionFunc {
	return func(current attendance.Attendance) (attendance.Attendance, error) {
		current.Requests = append(current.Requests, attendance.Request{
			ID:          id,
			Kind:        kind,
			Status:      attendance.RequestStatusPending,
			Reason:      "ban motor bocor di jalan",
			SubmittedAt: &ts,
		})
		return current, nil
	}
}

func TestAttendanceRepository_RequestHistorySurvivesResubmit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()
	firstID := "0195764e-6c2a-7b1e-9a57-000000000010"
	secondID := "0195764e-6c2a-7b1e-9a57-000000000011"

	_, err := repo.Transition(ctx, "emp-1", testDay, submitAt(firstID, attendance.RequestKindLatePermission, testDay.Add(6*time.Hour)))
	require.NoError(t, err)

	decidedAt := testDay.Add(7 * time.Hour)
	_, err = repo.Transition(ctx, "emp-1", testDay, func(current attendance.Attendance) (attendance.Attendance, error) {
		notes, approver := "tidak ada bukti", "hr-1"
		current.Requests[0].Status = attendance.RequestStatusRejected
		current.Requests[0].Notes = &notes
		current.Requests[0].ApprovedBy = &approver
		current.Requests[0].ApprovedAt = &decidedAt
		return current, nil
	})
	require.NoError(t, err)

	saved, err := repo.Transition(ctx, "emp-1", testDay, submitAt(secondID, attendance.RequestKindLatePermission, testDay.Add(7*time.Hour+30*time.Minute)))
	require.NoError(t, err)
	require.Len(t, saved.Requests, 2)

	rejected := saved.Requests[0]
	assert.Equal(t, firstID, rejected.ID)
	assert.Equal(t, attendance.RequestStatusRejected, rejected.Status)
	require.NotNil(t, rejected.Notes)
	assert.Equal(t, "tidak ada bukti", *rejected.Notes)
	require.NotNil(t, rejected.ApprovedBy)
	assert.Equal(t, "hr-1", *rejected.ApprovedBy)
	require.NotNil(t, rejected.ApprovedAt)
	assert.True(t, decidedAt.Equal(*rejected.ApprovedAt))
	assert.Equal(t, secondID, saved.Requests[1].ID)
	assert.Equal(t, attendance.RequestStatusPending, saved.RequestStatus())

	byOld, err := repo.GetByRequestID(ctx, firstID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, byOld.ID)
	assert.Len(t, byOld.Requests, 2)

	pending := string(attendance.RequestStatusPending)
	_, total, err := repo.List(ctx, attendance.AttendanceFilter{RequestStatus: &pending, Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	rejectedStatus := string(attendance.RequestStatusRejected)
	_, total, err = repo.List(ctx, attendance.AttendanceFilter{RequestStatus: &rejectedStatus, Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestAttendanceRepository_OnePendingRequestPerDay(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()

	_, err := repo.Transition(ctx, "emp-1", testDay, submitAt("0195764e-6c2a-7b1e-9a57-000000000020", attendance.RequestKindLatePermission, testDay.Add(6*time.Hour)))
	require.NoError(t, err)

	_, err = repo.Transition(ctx, "emp-1", testDay, submitAt("0195764e-6c2a-7b1e-9a57-000000000021", attendance.RequestKindOvertime, testDay.Add(6*time.Hour+time.Minute)))
	require.Error(t, err)

	rec, err := repo.GetByEmployeeAndDate(ctx, "emp-1", testDay)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Len(t, rec.Requests, 1)
}

func TestAttendanceRepository_MarkAbsent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()

	insertShift(t, db, "present", "2025-03-10", "08:00", "16:00")
	insertShift(t, db, "missing", "2025-03-10", "08:00", "16:00")
	insertShift(t, db, "pending", "2025-03-10", "08:00", "16:00")
	insertShift(t, db, "untouched", "2025-03-10", "08:00", "16:00")

	_, err := repo.Transition(ctx, "present", testDay, checkInAt(testDay.Add(time.Hour)))
	require.NoError(t, err)
	_, err = repo.Transition(ctx, "pending", testDay, func(current attendance.Attendance) (attendance.Attendance, error) {
		current.Requests = append(current.Requests, attendance.Request{
			ID:     "0195764e-6c2a-7b1e-9a57-000000000001",
			Kind:   attendance.RequestKindAbsencePermission,
			Status: attendance.RequestStatusPending,
			Reason: "acara keluarga di kampung",
		})
		return current, nil
	})
	require.NoError(t, err)
	_, err = repo.Transition(ctx, "untouched", testDay, func(current attendance.Attendance) (attendance.Attendance, error) {
		return current, nil
	})
	require.NoError(t, err)

	n, err := repo.MarkAbsent(ctx, testDay)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	expect := map[string]attendance.Status{
		"present":   attendance.StatusPresent,
		"missing":   attendance.StatusAbsent,
		"pending":   attendance.StatusNone,
		"untouched": attendance.StatusAbsent,
	}
	for employeeID, status := range expect {
		rec, err := repo.GetByEmployeeAndDate(ctx, employeeID, testDay)
		require.NoError(t, err)
		require.NotNil(t, rec, employeeID)
		assert.Equal(t, status, rec.Status, employeeID)
	}
}

func TestShiftAssignmentRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewShiftAssignmentRepository(db)
	ctx := context.Background()

	id := insertShift(t, db, "emp-1", "2025-03-10", "08:00", "16:30")
	insertShift(t, db, "emp-1", "2025-03-14", "13:00", "21:00")
	insertShift(t, db, "emp-1", "2025-03-12", "07:00", "15:00")

	shift, err := repo.GetByEmployeeAndDate(ctx, "emp-1", testDay)
	require.NoError(t, err)
	require.NotNil(t, shift)
	assert.Equal(t, id, shift.ID)
	assert.Equal(t, "08:00", shift.ScheduledStart.Format("15:04"))
	assert.Equal(t, "16:30", shift.ScheduledEnd.Format("15:04"))

	none, err := repo.GetByEmployeeAndDate(ctx, "emp-1", testDay.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Nil(t, none)

	next, err := repo.GetNextAfter(ctx, "emp-1", testDay)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "2025-03-12", next.Date.Format("2006-01-02"))

	last, err := repo.GetNextAfter(ctx, "emp-1", testDay.AddDate(0, 0, 4))
	require.NoError(t, err)
	assert.Nil(t, last)
}
