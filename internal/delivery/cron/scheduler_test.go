package cron

import "testing"

func TestNormalizeSchedule(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"*/30 * * * * *", "*/30 * * * * *"},
		{"*/5 * * * *", "0 */5 * * * *"},
		{"0 0 12 * * *", "0 0 12 * * *"},
	}

	for _, tt := range tests {
		if got := normalizeSchedule(tt.expr); got != tt.want {
			t.Errorf("normalizeSchedule(%q) = %q, want %q", tt.expr, got, tt.want)
		}
	}
}
