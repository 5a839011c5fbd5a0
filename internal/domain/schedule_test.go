package domain

import (
	"testing"
	"time"
)

func TestDueAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		timeOfDay string
		want      bool
		wantErr   bool
	}{
		{"10:30", true, false},
		{"10:29", true, false},
		{"00:00", true, false},
		{"10:31", false, false},
		{"23:59", false, false},
		{"not-a-time", false, true},
		{"25:00", false, true},
	}

	for _, tt := range tests {
		slot := &ScheduleSlot{TimeOfDay: tt.timeOfDay}
		due, err := slot.DueAt(now)
		if (err != nil) != tt.wantErr {
			t.Errorf("DueAt(%q): err = %v, wantErr %v", tt.timeOfDay, err, tt.wantErr)
			continue
		}
		if due != tt.want {
			t.Errorf("DueAt(%q) = %v, want %v", tt.timeOfDay, due, tt.want)
		}
	}
}

func TestDayKey(t *testing.T) {
	now := time.Date(2025, 6, 1, 23, 59, 59, 0, time.UTC)
	if got := DayKey(now); got != "2025-06-01" {
		t.Errorf("DayKey = %q, want %q", got, "2025-06-01")
	}

	// A slot consumed one day is due again the next: the key must roll over.
	next := now.Add(time.Second)
	if got := DayKey(next); got != "2025-06-02" {
		t.Errorf("DayKey after midnight = %q, want %q", got, "2025-06-02")
	}
}
