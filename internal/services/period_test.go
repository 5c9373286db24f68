package services

import (
	"testing"
	"time"

	"github.com/mroshb/reward_engine/internal/models"
)

func TestPeriods_DayKey(t *testing.T) {
	tehran, err := time.LoadLocation("Asia/Tehran")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}

	tests := []struct {
		name     string
		loc      *time.Location
		at       time.Time
		expected string
	}{
		{
			name:     "UTC midday",
			loc:      time.UTC,
			at:       time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
			expected: "2025-01-01",
		},
		{
			name:     "Local day already rolled over",
			loc:      tehran,
			at:       time.Date(2024, 12, 31, 21, 0, 0, 0, time.UTC),
			expected: "2025-01-01",
		},
		{
			name:     "Local day not yet rolled over",
			loc:      tehran,
			at:       time.Date(2024, 12, 31, 20, 0, 0, 0, time.UTC),
			expected: "2024-12-31",
		},
		{
			name:     "Nil location falls back to UTC",
			loc:      nil,
			at:       time.Date(2025, 3, 9, 23, 59, 59, 0, time.UTC),
			expected: "2025-03-09",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewPeriods(tt.loc).DayKey(tt.at); got != tt.expected {
				t.Errorf("DayKey() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestPeriods_Week(t *testing.T) {
	p := NewPeriods(time.UTC)

	tests := []struct {
		name      string
		at        time.Time
		wantStart string
		wantKey   string
	}{
		{name: "Monday", at: time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC), wantStart: "2025-01-06", wantKey: "2025-W02"},
		{name: "Sunday", at: time.Date(2025, 1, 12, 23, 0, 0, 0, time.UTC), wantStart: "2025-01-06", wantKey: "2025-W02"},
		{name: "ISO year boundary", at: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), wantStart: "2024-12-30", wantKey: "2025-W01"},
		{name: "Week 53", at: time.Date(2021, 1, 3, 0, 0, 0, 0, time.UTC), wantStart: "2020-12-28", wantKey: "2020-W53"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.WeekStart(tt.at).Format("2006-01-02"); got != tt.wantStart {
				t.Errorf("WeekStart() = %s, want %s", got, tt.wantStart)
			}
			if got := p.WeekKey(tt.at); got != tt.wantKey {
				t.Errorf("WeekKey() = %s, want %s", got, tt.wantKey)
			}
		})
	}
}

func TestPeriods_Bounds(t *testing.T) {
	p := NewPeriods(time.UTC)
	at := time.Date(2025, 1, 8, 15, 30, 0, 0, time.UTC)

	start, end := p.Bounds(models.TaskScheduleDaily, at)
	if !start.Equal(end) || start.Format("2006-01-02") != "2025-01-08" {
		t.Errorf("daily Bounds() = %v..%v, want 2025-01-08", start, end)
	}

	start, end = p.Bounds(models.TaskScheduleWeekly, at)
	if start.Format("2006-01-02") != "2025-01-06" || end.Format("2006-01-02") != "2025-01-12" {
		t.Errorf("weekly Bounds() = %v..%v, want 2025-01-06..2025-01-12", start, end)
	}
}
