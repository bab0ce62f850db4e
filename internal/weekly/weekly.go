// Package weekly selects subjects whose death anniversary falls inside
// a rolling calendar window, for "died this week" features.
package weekly

import (
	"context"
	"time"

	"github.com/deadonfilm/morbid/internal/model"
	"github.com/deadonfilm/morbid/internal/storage"
)

// Window is a month/day span anchored at a start date. The span may
// cross a month or year boundary; matching works on the anniversary,
// ignoring the death year.
type Window struct {
	start time.Time
	days  int
}

// NewWindow builds a window of the given length starting at the given
// date. Lengths under one day are clamped to one.
func NewWindow(start time.Time, days int) Window {
	if days < 1 {
		days = 1
	}
	return Window{start: start, days: days}
}

// ThisWeek is the seven-day window starting today.
func ThisWeek(now time.Time) Window {
	return NewWindow(now, 7)
}

// Contains reports whether the death date's anniversary falls inside
// the window. Dates must be full ISO dates; year-only records never
// match since they have no anniversary day. A December window that
// runs into January matches both ends.
func (w Window) Contains(death string) bool {
	t, err := time.Parse("2006-01-02", death)
	if err != nil {
		return false
	}

	// Project the anniversary into the window's starting year and, if
	// the window wraps into the next year, that one too.
	for _, year := range []int{w.start.Year(), w.start.Year() + 1} {
		anniversary := time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		if !projectionValid(anniversary, t) {
			// Feb 29 in a non-leap year rolls to Mar 1; treat it as
			// Feb 28 so leap-day deaths still surface annually.
			anniversary = time.Date(year, time.February, 28, 0, 0, 0, 0, time.UTC)
		}

		dayStart := time.Date(w.start.Year(), w.start.Month(), w.start.Day(), 0, 0, 0, 0, time.UTC)
		if !anniversary.Before(dayStart) && anniversary.Before(dayStart.AddDate(0, 0, w.days)) {
			return true
		}
	}
	return false
}

// projectionValid reports whether placing the death's month/day in
// another year preserved the day (false only for Feb 29 projected
// into a non-leap year).
func projectionValid(projected, original time.Time) bool {
	return projected.Month() == original.Month() && projected.Day() == original.Day()
}

// Select returns the subjects with full death dates whose anniversary
// falls inside the window, in storage order.
func Select(ctx context.Context, store *storage.Store, w Window) ([]model.Subject, error) {
	subjects, err := store.DeadSubjects(ctx)
	if err != nil {
		return nil, err
	}

	var matched []model.Subject
	for _, subject := range subjects {
		if w.Contains(subject.Death) {
			matched = append(matched, subject)
		}
	}
	return matched, nil
}
