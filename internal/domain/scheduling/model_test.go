package scheduling

import (
	"testing"
	"time"
)

func TestConflicts(t *testing.T) {
	base := time.Date(2099, 3, 10, 10, 0, 0, 0, time.Local)

	tests := []struct {
		name string
		a, b time.Time
		want bool
	}{
		{"same slot", base, base, true},
		{"overlap by half hour", base, base.Add(30 * time.Minute), true},
		{"touching boundaries collide", base, base.Add(time.Hour), true},
		{"touching boundaries collide, reversed", base.Add(time.Hour), base, true},
		{"one minute of clearance", base, base.Add(time.Hour + time.Minute), false},
		{"two hours apart", base, base.Add(2 * time.Hour), false},
		{"previous day", base, base.Add(-24 * time.Hour), false},
	}
	for _, tt := range tests {
		if got := conflicts(tt.a, tt.b); got != tt.want {
			t.Errorf("%s: conflicts(%v, %v) = %v, want %v", tt.name, tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSameDay(t *testing.T) {
	a := time.Date(2099, 3, 10, 0, 0, 0, 0, time.Local)
	if !sameDay(a, a.Add(23*time.Hour)) {
		t.Error("instants on the same calendar day should match")
	}
	if sameDay(a, a.Add(24*time.Hour)) {
		t.Error("midnight rollover should not match")
	}
}

func TestEndTime(t *testing.T) {
	start := time.Date(2099, 3, 10, 10, 0, 0, 0, time.Local)
	a := Appointment{StartTime: start}
	if a.EndTime() != start.Add(time.Hour) {
		t.Errorf("EndTime() = %v, want %v", a.EndTime(), start.Add(time.Hour))
	}
}
