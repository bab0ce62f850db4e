package weekly

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWindow_Contains(t *testing.T) {
	w := NewWindow(date(2026, time.March, 10), 7) // Mar 10-16 inclusive

	tests := []struct {
		death string
		want  bool
	}{
		{"1978-03-13", true},  // mid-window, different year
		{"2001-03-10", true},  // window start
		{"1990-03-16", true},  // window end
		{"1990-03-17", false}, // one past the end
		{"1990-03-09", false}, // one before the start
		{"1990-09-13", false}, // right day, wrong month
		{"1983", false},       // year-only, no anniversary day
		{"unknown", false},
	}
	for _, tt := range tests {
		if got := w.Contains(tt.death); got != tt.want {
			t.Errorf("Contains(%q): expected %v, got %v", tt.death, tt.want, got)
		}
	}
}

func TestWindow_YearBoundary(t *testing.T) {
	w := NewWindow(date(2026, time.December, 29), 7) // Dec 29 - Jan 4

	tests := []struct {
		death string
		want  bool
	}{
		{"1999-12-31", true},
		{"1977-01-02", true}, // anniversary lands in the following year
		{"1985-01-04", true},
		{"1985-01-05", false},
		{"1985-12-28", false},
	}
	for _, tt := range tests {
		if got := w.Contains(tt.death); got != tt.want {
			t.Errorf("Contains(%q) across year boundary: expected %v, got %v", tt.death, tt.want, got)
		}
	}
}

func TestWindow_MonthBoundary(t *testing.T) {
	w := NewWindow(date(2026, time.April, 28), 7) // Apr 28 - May 4

	if !w.Contains("1960-05-01") {
		t.Error("Expected May 1 anniversary inside an April-starting window")
	}
	if w.Contains("1960-05-05") {
		t.Error("Expected May 5 outside the window")
	}
}

func TestWindow_LeapDay(t *testing.T) {
	// 2026 is not a leap year: a Feb 29 death surfaces on Feb 28.
	w := NewWindow(date(2026, time.February, 25), 7)
	if !w.Contains("2004-02-29") {
		t.Error("Expected leap-day death to surface in a non-leap year")
	}

	// In a leap year the anniversary is the real Feb 29.
	leap := NewWindow(date(2028, time.February, 27), 7)
	if !leap.Contains("2004-02-29") {
		t.Error("Expected leap-day death to surface in a leap year")
	}
}

func TestWindow_MinimumLength(t *testing.T) {
	w := NewWindow(date(2026, time.June, 1), 0)
	if !w.Contains("1990-06-01") {
		t.Error("Expected a zero-length window to clamp to one day")
	}
	if w.Contains("1990-06-02") {
		t.Error("Expected the clamped window to cover only its start day")
	}
}
