package activity

import (
	"testing"
	"time"

	"qrattend/internal/model"
)

func TestOngoing_WindowBoundaries(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	a := model.Activity{StartTime: start, EndTime: end, IsActive: true}

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"one second before start", start.Add(-time.Second), false},
		{"exactly at start", start, true},
		{"middle of window", start.Add(time.Hour), true},
		{"exactly at end", end, true},
		{"one second after end", end.Add(time.Second), false},
	}
	for _, tc := range cases {
		if got := Ongoing(a, tc.now); got != tc.want {
			t.Errorf("%s: Ongoing = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestOngoing_InactiveActivity(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	a := model.Activity{StartTime: start, EndTime: start.Add(time.Hour), IsActive: false}

	if Ongoing(a, start.Add(30*time.Minute)) {
		t.Error("inactive activity reported ongoing inside its window")
	}
}
