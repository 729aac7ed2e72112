package postgresql

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kayuraya/presensi-backend/internal/domain/attendance"
	"github.com/kayuraya/presensi-backend/internal/pkg/database"
)

const attendanceColumns = `
	d.id, d.employee_id, d.date, d.shift_id, d.status,
	d.check_in, d.check_out, d.check_in_latitude, d.check_in_longitude,
	d.created_at, d.updated_at`

const requestColumns = `
	r.id, r.employee_id, r.date, r.kind, r.status, r.reason,
	r.request_time, r.overtime_start, r.overtime_end,
	r.notes, r.approved_by, r.approved_at, r.submitted_at`

type attendanceRepository struct {
	db *database.DB
}

func NewAttendanceRepository(db *database.DB) attendance.AttendanceRepository {
	return &attendanceRepository{db: db}
}

func scanAttendance(row pgx.Row) (attendance.Attendance, error) {
	var att attendance.Attendance
	err := row.Scan(
		&att.ID, &att.EmployeeID, &att.Date, &att.ShiftID, &att.Status,
		&att.CheckIn, &att.CheckOut, &att.CheckInLatitude, &att.CheckInLongitude,
		&att.CreatedAt, &att.UpdatedAt,
	)
	if err != nil {
		return attendance.Attendance{}, err
	}
	return att, nil
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func dayKey(employeeID string, date time.Time) string {
	return employeeID + "|" + dateKey(date)
}

// loadRequests fills the request history of every day in days with one query.
func loadRequests(ctx context.Context, q database.Querier, days []attendance.Attendance) error {
	if len(days) == 0 {
		return nil
	}

	employees := make([]string, len(days))
	dates := make([]string, len(days))
	index := make(map[string]int, len(days))
	for i := range days {
		employees[i] = days[i].EmployeeID
		dates[i] = dateKey(days[i].Date)
		index[dayKey(days[i].EmployeeID, days[i].Date)] = i
		days[i].Requests = nil
	}

	rows, err := q.Query(ctx, `SELECT `+requestColumns+`
		FROM attendance_requests r
		JOIN unnest($1::text[], $2::text[]) AS k(employee_id, day)
		  ON r.employee_id = k.employee_id AND r.date = k.day::date
		ORDER BY r.submitted_at, r.id`,
		employees, dates,
	)
	if err != nil {
		return fmt.Errorf("failed to query attendance requests: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			employeeID string
			date       time.Time
			req        attendance.Request
		)
		err := rows.Scan(
			&req.ID, &employeeID, &date, &req.Kind, &req.Status, &req.Reason,
			&req.Time, &req.OvertimeStart, &req.OvertimeEnd,
			&req.Notes, &req.ApprovedBy, &req.ApprovedAt, &req.SubmittedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to scan attendance request: %w", err)
		}
		if i, ok := index[dayKey(employeeID, date)]; ok {
			days[i].Requests = append(days[i].Requests, req)
		}
	}
	return rows.Err()
}

// saveRequests writes the requests of next that differ from prev. Rows are
// never deleted, a cancelled or decided request stays in the history.
func saveRequests(ctx context.Context, q database.Querier, prev []attendance.Request, next attendance.Attendance) error {
	stored := make(map[string]attendance.Request, len(prev))
	for _, r := range prev {
		stored[r.ID] = r
	}

	for _, r := range next.Requests {
		if old, ok := stored[r.ID]; ok && old == r {
			continue
		}
		_, err := q.Exec(ctx, `
			INSERT INTO attendance_requests (
				id, employee_id, date, kind, status, reason,
				request_time, overtime_start, overtime_end,
				notes, approved_by, approved_at, submitted_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, COALESCE($13, NOW()))
			ON CONFLICT (id) DO UPDATE SET
				status = EXCLUDED.status,
				reason = EXCLUDED.reason,
				request_time = EXCLUDED.request_time,
				overtime_start = EXCLUDED.overtime_start,
				overtime_end = EXCLUDED.overtime_end,
				notes = EXCLUDED.notes,
				approved_by = EXCLUDED.approved_by,
				approved_at = EXCLUDED.approved_at,
				updated_at = NOW()`,
			r.ID, next.EmployeeID, dateKey(next.Date), string(r.Kind), string(r.Status), r.Reason,
			r.Time, r.OvertimeStart, r.OvertimeEnd,
			r.Notes, r.ApprovedBy, r.ApprovedAt, r.SubmittedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save attendance request %s: %w", r.ID, err)
		}
	}
	return nil
}

// GetByEmployeeAndDate implements attendance.AttendanceRepository.
func (a *attendanceRepository) GetByEmployeeAndDate(ctx context.Context, employeeID string, date time.Time) (*attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT ` + attendanceColumns + `
		FROM attendance_days d
		WHERE d.employee_id = $1 AND d.date = $2`

	att, err := scanAttendance(q.QueryRow(ctx, query, employeeID, dateKey(date)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get attendance by employee and date: %w", err)
	}

	days := []attendance.Attendance{att}
	if err := loadRequests(ctx, q, days); err != nil {
		return nil, err
	}
	return &days[0], nil
}

// GetByRequestID implements attendance.AttendanceRepository.
func (a *attendanceRepository) GetByRequestID(ctx context.Context, requestID string) (attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT ` + attendanceColumns + `
		FROM attendance_days d
		JOIN attendance_requests r ON r.employee_id = d.employee_id AND r.date = d.date
		WHERE r.id = $1`

	att, err := scanAttendance(q.QueryRow(ctx, query, requestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Attendance{}, attendance.ErrRequestNotFound
		}
		return attendance.Attendance{}, fmt.Errorf("failed to get attendance by request: %w", err)
	}

	days := []attendance.Attendance{att}
	if err := loadRequests(ctx, q, days); err != nil {
		return attendance.Attendance{}, err
	}
	return days[0], nil
}

// Transition implements attendance.AttendanceRepository. The day row is created
// blank if missing and then locked, so concurrent callers queue on the row lock.
// Request rows are only written under that lock.
// If fn fails the transaction rolls back and a freshly created blank row goes with it.
func (a *attendanceRepository) Transition(ctx context.Context, employeeID string, date time.Time, fn attendance.TransitionFunc) (attendance.Attendance, error) {
	var result attendance.Attendance

	err := WithTransaction(ctx, a.db, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO attendance_days (employee_id, date)
			VALUES ($1, $2)
			ON CONFLICT (employee_id, date) DO NOTHING`,
			employeeID, dateKey(date),
		)
		if err != nil {
			return fmt.Errorf("failed to ensure attendance row: %w", err)
		}

		current, err := scanAttendance(tx.QueryRow(ctx, `SELECT `+attendanceColumns+`
			FROM attendance_days d
			WHERE d.employee_id = $1 AND d.date = $2
			FOR UPDATE`,
			employeeID, dateKey(date),
		))
		if err != nil {
			return fmt.Errorf("failed to lock attendance row: %w", err)
		}
		locked := []attendance.Attendance{current}
		if err := loadRequests(ctx, tx, locked); err != nil {
			return err
		}
		current = locked[0]
		stored := slices.Clone(current.Requests)

		next, err := fn(current)
		if err != nil {
			return err
		}

		updated, err := a.update(ctx, employeeID, date, next)
		if err != nil {
			return err
		}
		if err := saveRequests(ctx, tx, stored, next); err != nil {
			return err
		}

		saved := []attendance.Attendance{updated}
		if err := loadRequests(ctx, tx, saved); err != nil {
			return err
		}
		result = saved[0]
		return nil
	})
	if err != nil {
		return attendance.Attendance{}, err
	}
	return result, nil
}

func (a *attendanceRepository) update(ctx context.Context, employeeID string, date time.Time, att attendance.Attendance) (attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		UPDATE attendance_days d SET
			shift_id = $3,
			status = $4,
			check_in = $5,
			check_out = $6,
			check_in_latitude = $7,
			check_in_longitude = $8,
			updated_at = NOW()
		WHERE d.employee_id = $1 AND d.date = $2
		RETURNING ` + attendanceColumns

	updated, err := scanAttendance(q.QueryRow(ctx, query,
		employeeID, dateKey(date),
		att.ShiftID, string(att.Status),
		att.CheckIn, att.CheckOut, att.CheckInLatitude, att.CheckInLongitude,
	))
	if err != nil {
		return attendance.Attendance{}, fmt.Errorf("failed to update attendance: %w", err)
	}
	return updated, nil
}

// ListByEmployee implements attendance.AttendanceRepository.
func (a *attendanceRepository) ListByEmployee(ctx context.Context, employeeID string, from, to time.Time) ([]attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT ` + attendanceColumns + `
		FROM attendance_days d
		WHERE d.employee_id = $1 AND d.date BETWEEN $2 AND $3
		ORDER BY d.date DESC`

	rows, err := q.Query(ctx, query, employeeID, dateKey(from), dateKey(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance history: %w", err)
	}
	defer rows.Close()

	var attendances []attendance.Attendance
	for rows.Next() {
		att, err := scanAttendance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		attendances = append(attendances, att)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendance history: %w", err)
	}
	rows.Close()

	if err := loadRequests(ctx, q, attendances); err != nil {
		return nil, err
	}
	return attendances, nil
}

// listFrom joins each day to the request that decides its request status:
// the pending one, else the latest one not cancelled.
const listFrom = `attendance_days d
	LEFT JOIN LATERAL (
		SELECT r.kind, r.status
		FROM attendance_requests r
		WHERE r.employee_id = d.employee_id AND r.date = d.date AND r.status <> 'CANCELLED'
		ORDER BY (r.status = 'PENDING') DESC, r.submitted_at DESC, r.id DESC
		LIMIT 1
	) cur ON TRUE`

// List implements attendance.AttendanceRepository.
func (a *attendanceRepository) List(ctx context.Context, filter attendance.AttendanceFilter) ([]attendance.Attendance, int64, error) {
	q := GetQuerier(ctx, a.db)

	baseWhere := "1 = 1"
	args := []interface{}{}
	argIdx := 1

	if filter.EmployeeID != nil && *filter.EmployeeID != "" {
		baseWhere += fmt.Sprintf(" AND d.employee_id = $%d", argIdx)
		args = append(args, *filter.EmployeeID)
		argIdx++
	}
	if filter.StartDate != nil && *filter.StartDate != "" {
		baseWhere += fmt.Sprintf(" AND d.date >= $%d", argIdx)
		args = append(args, *filter.StartDate)
		argIdx++
	}
	if filter.EndDate != nil && *filter.EndDate != "" {
		baseWhere += fmt.Sprintf(" AND d.date <= $%d", argIdx)
		args = append(args, *filter.EndDate)
		argIdx++
	}
	if filter.Status != nil && *filter.Status != "" {
		baseWhere += fmt.Sprintf(" AND d.status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}
	if filter.RequestKind != nil && *filter.RequestKind != "" {
		baseWhere += fmt.Sprintf(" AND COALESCE(cur.kind, 'NONE') = $%d", argIdx)
		args = append(args, *filter.RequestKind)
		argIdx++
	}
	if filter.RequestStatus != nil && *filter.RequestStatus != "" {
		baseWhere += fmt.Sprintf(" AND COALESCE(cur.status, 'NONE') = $%d", argIdx)
		args = append(args, *filter.RequestStatus)
		argIdx++
	}

	var total int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*) FROM "+listFrom+" WHERE "+baseWhere, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count attendances: %w", err)
	}

	limit := filter.Limit
	if limit == 0 {
		limit = 20
	}
	page := filter.Page
	if page == 0 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)

	selectQuery := fmt.Sprintf(`SELECT %s
		FROM %s
		WHERE %s
		ORDER BY d.date DESC, d.employee_id ASC
		LIMIT $%d OFFSET $%d`,
		attendanceColumns, listFrom, baseWhere, argIdx, argIdx+1)

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query attendances: %w", err)
	}
	defer rows.Close()

	var attendances []attendance.Attendance
	for rows.Next() {
		att, err := scanAttendance(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan attendance: %w", err)
		}
		attendances = append(attendances, att)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate attendances: %w", err)
	}
	rows.Close()

	if err := loadRequests(ctx, q, attendances); err != nil {
		return nil, 0, err
	}
	return attendances, total, nil
}

// MarkAbsent implements attendance.AttendanceRepository.
func (a *attendanceRepository) MarkAbsent(ctx context.Context, date time.Time) (int64, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		INSERT INTO attendance_days (employee_id, date, shift_id, status)
		SELECT s.employee_id, s.date, s.id, 'ABSENT'
		FROM shift_assignments s
		WHERE s.date = $1
		ON CONFLICT (employee_id, date) DO UPDATE
		SET status = 'ABSENT',
			shift_id = COALESCE(attendance_days.shift_id, EXCLUDED.shift_id),
			updated_at = NOW()
		WHERE attendance_days.check_in IS NULL
		  AND attendance_days.status = 'NONE'
		  AND NOT EXISTS (
			SELECT 1 FROM attendance_requests r
			WHERE r.employee_id = attendance_days.employee_id
			  AND r.date = attendance_days.date
			  AND r.status = 'PENDING'
		  )`

	tag, err := q.Exec(ctx, query, dateKey(date))
	if err != nil {
		return 0, fmt.Errorf("failed to mark absent attendances: %w", err)
	}
	return tag.RowsAffected(), nil
}
