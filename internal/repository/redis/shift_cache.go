package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kayuraya/presensi-backend/internal/domain/schedule"
)

const shiftKeyPrefix = "presensi:shift:"

// noShift is cached for days without an assignment. It lives for missTTL only,
// since a roster published later in the day must become visible quickly.
const noShift = "none"

type cachedShift struct {
	ID             string    `json:"id"`
	EmployeeID     string    `json:"employee_id"`
	Date           string    `json:"date"`
	ScheduledStart string    `json:"scheduled_start"`
	ScheduledEnd   string    `json:"scheduled_end"`
	ShiftLabel     string    `json:"shift_label"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// shiftCache is a read-through cache in front of the roster lookup.
// Redis failures fall back to the underlying repository.
type shiftCache struct {
	next    schedule.ShiftRepository
	rdb     goredis.UniversalClient
	ttl     time.Duration
	missTTL time.Duration
}

// NewShiftCache caches found shifts for ttl and missing ones for missTTL.
// missTTL is capped at ttl.
func NewShiftCache(next schedule.ShiftRepository, rdb goredis.UniversalClient, ttl, missTTL time.Duration) schedule.ShiftRepository {
	if missTTL <= 0 || missTTL > ttl {
		missTTL = ttl
	}
	return &shiftCache{next: next, rdb: rdb, ttl: ttl, missTTL: missTTL}
}

func shiftKey(employeeID string, date time.Time) string {
	return shiftKeyPrefix + employeeID + ":" + date.Format("2006-01-02")
}

// GetByEmployeeAndDate implements schedule.ShiftRepository.
func (c *shiftCache) GetByEmployeeAndDate(ctx context.Context, employeeID string, date time.Time) (*schedule.ShiftAssignment, error) {
	key := shiftKey(employeeID, date)

	raw, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		shift, decodeErr := decodeShift(raw)
		if decodeErr == nil {
			return shift, nil
		}
		slog.Warn("discarding corrupt cached shift", "key", key, "error", decodeErr)
	case !errors.Is(err, goredis.Nil):
		slog.Warn("shift cache read failed", "key", key, "error", err)
	}

	shift, err := c.next.GetByEmployeeAndDate(ctx, employeeID, date)
	if err != nil {
		return nil, err
	}

	ttl := c.ttl
	if shift == nil {
		ttl = c.missTTL
	}
	if setErr := c.rdb.Set(ctx, key, encodeShift(shift), ttl).Err(); setErr != nil {
		slog.Warn("shift cache write failed", "key", key, "error", setErr)
	}
	return shift, nil
}

// GetNextAfter implements schedule.ShiftRepository. It is not cached.
func (c *shiftCache) GetNextAfter(ctx context.Context, employeeID string, date time.Time) (*schedule.ShiftAssignment, error) {
	return c.next.GetNextAfter(ctx, employeeID, date)
}

func encodeShift(shift *schedule.ShiftAssignment) string {
	if shift == nil {
		return noShift
	}
	b, _ := json.Marshal(cachedShift{
		ID:             shift.ID,
		EmployeeID:     shift.EmployeeID,
		Date:           shift.Date.Format("2006-01-02"),
		ScheduledStart: shift.ScheduledStart.Format("15:04:05"),
		ScheduledEnd:   shift.ScheduledEnd.Format("15:04:05"),
		ShiftLabel:     shift.ShiftLabel,
		CreatedAt:      shift.CreatedAt,
		UpdatedAt:      shift.UpdatedAt,
	})
	return string(b)
}

func decodeShift(raw string) (*schedule.ShiftAssignment, error) {
	if raw == noShift {
		return nil, nil
	}

	var c cachedShift
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, err
	}

	date, err := time.Parse("2006-01-02", c.Date)
	if err != nil {
		return nil, fmt.Errorf("date: %w", err)
	}
	start, err := schedule.ParseClock(c.ScheduledStart)
	if err != nil {
		return nil, fmt.Errorf("scheduled_start: %w", err)
	}
	end, err := schedule.ParseClock(c.ScheduledEnd)
	if err != nil {
		return nil, fmt.Errorf("scheduled_end: %w", err)
	}

	return &schedule.ShiftAssignment{
		ID:             c.ID,
		EmployeeID:     c.EmployeeID,
		Date:           date,
		ScheduledStart: start,
		ScheduledEnd:   end,
		ShiftLabel:     c.ShiftLabel,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}, nil
}
