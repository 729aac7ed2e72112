package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kayuraya/presensi-backend/internal/domain/schedule"
	"github.com/kayuraya/presensi-backend/internal/pkg/database"
)

type shiftAssignmentRepository struct {
	db *database.DB
}

func NewShiftAssignmentRepository(db *database.DB) schedule.ShiftRepository {
	return &shiftAssignmentRepository{db: db}
}

func scanShift(row pgx.Row) (schedule.ShiftAssignment, error) {
	var (
		shift      schedule.ShiftAssignment
		start, end string
	)
	if err := row.Scan(
		&shift.ID, &shift.EmployeeID, &shift.Date, &start, &end,
		&shift.ShiftLabel, &shift.CreatedAt, &shift.UpdatedAt,
	); err != nil {
		return schedule.ShiftAssignment{}, err
	}

	var err error
	if shift.ScheduledStart, err = schedule.ParseClock(start); err != nil {
		return schedule.ShiftAssignment{}, fmt.Errorf("invalid scheduled_start %q: %w", start, err)
	}
	if shift.ScheduledEnd, err = schedule.ParseClock(end); err != nil {
		return schedule.ShiftAssignment{}, fmt.Errorf("invalid scheduled_end %q: %w", end, err)
	}
	return shift, nil
}

// GetByEmployeeAndDate implements schedule.ShiftRepository.
func (s *shiftAssignmentRepository) GetByEmployeeAndDate(ctx context.Context, employeeID string, date time.Time) (*schedule.ShiftAssignment, error) {
	q := GetQuerier(ctx, s.db)

	query := `
		SELECT id, employee_id, date, scheduled_start::text, scheduled_end::text,
			   shift_label, created_at, updated_at
		FROM shift_assignments
		WHERE employee_id = $1 AND date = $2
	`

	shift, err := scanShift(q.QueryRow(ctx, query, employeeID, dateKey(date)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get shift assignment: %w", err)
	}
	return &shift, nil
}

// GetNextAfter implements schedule.ShiftRepository.
func (s *shiftAssignmentRepository) GetNextAfter(ctx context.Context, employeeID string, date time.Time) (*schedule.ShiftAssignment, error) {
	q := GetQuerier(ctx, s.db)

	query := `
		SELECT id, employee_id, date, scheduled_start::text, scheduled_end::text,
			   shift_label, created_at, updated_at
		FROM shift_assignments
		WHERE employee_id = $1 AND date > $2
		ORDER BY date ASC
		LIMIT 1
	`

	shift, err := scanShift(q.QueryRow(ctx, query, employeeID, dateKey(date)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get next shift assignment: %w", err)
	}
	return &shift, nil
}
