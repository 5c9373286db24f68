package services

import (
	"fmt"
	"time"

	"github.com/mroshb/reward_engine/internal/models"
)

// Periods computes day and ISO week boundaries in the platform timezone.
// Boundaries are returned as UTC midnights of the local calendar date so
// they compare equal once stored in date columns.
type Periods struct {
	loc *time.Location
}

func NewPeriods(loc *time.Location) Periods {
	if loc == nil {
		loc = time.UTC
	}
	return Periods{loc: loc}
}

// Day returns the local calendar date of t.
func (p Periods) Day(t time.Time) time.Time {
	y, m, d := t.In(p.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayKey is the quota period key of t, e.g. 2025-01-01.
func (p Periods) DayKey(t time.Time) string {
	return p.Day(t).Format("2006-01-02")
}

// WeekStart returns the Monday of t's ISO week.
func (p Periods) WeekStart(t time.Time) time.Time {
	day := p.Day(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// WeekKey is the ISO week key of t, e.g. 2025-W01.
func (p Periods) WeekKey(t time.Time) string {
	year, week := p.Day(t).ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// Bounds returns [start, end] of the schedule's period containing t.
func (p Periods) Bounds(schedule string, t time.Time) (time.Time, time.Time) {
	if schedule == models.TaskScheduleWeekly {
		start := p.WeekStart(t)
		return start, start.AddDate(0, 0, 6)
	}
	day := p.Day(t)
	return day, day
}
