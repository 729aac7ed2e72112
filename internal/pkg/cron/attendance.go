package cron

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kayuraya/presensi-backend/internal/domain/attendance"
)

const MarkAbsentJob = "mark_absent_employees"

type AttendanceJobs struct {
	attendanceService attendance.AttendanceService
}

func NewAttendanceJobs(attendanceService attendance.AttendanceService) *AttendanceJobs {
	return &AttendanceJobs{attendanceService: attendanceService}
}

// RegisterJobs schedules the daily absent marking on markAbsentSpec.
func (j *AttendanceJobs) RegisterJobs(scheduler *Scheduler, markAbsentSpec string) error {
	return scheduler.AddJob(MarkAbsentJob, markAbsentSpec, j.MarkAbsentEmployees)
}

// MarkAbsentEmployees closes yesterday for rostered employees who never showed up.
func (j *AttendanceJobs) MarkAbsentEmployees(ctx context.Context) error {
	slog.Info("Cron: Starting mark absent employees job")

	n, err := j.attendanceService.MarkAbsent(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark absent employees: %w", err)
	}

	slog.Info("Cron: Mark absent employees job completed", "marked_absent", n)
	return nil
}
