package schedule

import (
	"fmt"
	"sort"
	"time"

	"glowbook/internal/models"
)

// Clock returns the current time. Services receive one instead of calling time.Now.
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time { return time.Now() }

// ParseDate parses a "YYYY-MM-DD" civil date.
func ParseDate(raw string) (time.Time, error) {
	d, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q; expected YYYY-MM-DD", raw)
	}
	return d, nil
}

// Today is the civil date of now in loc.
func Today(now time.Time, loc *time.Location) string {
	return now.In(loc).Format(models.DateLayout)
}

// At combines a civil date and a time of day in loc.
func At(date string, t models.TimeOfDay, loc *time.Location) (time.Time, error) {
	d, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}

// Split is the inverse of At.
func Split(ts time.Time, loc *time.Location) (string, models.TimeOfDay) {
	local := ts.In(loc)
	return local.Format(models.DateLayout), models.TimeOfDay(local.Hour()*60 + local.Minute())
}

// Window bounds the dates clients may book: strictly after today and at most
// maxDays ahead (0 means unbounded).
type Window struct {
	Now     time.Time
	Loc     *time.Location
	MaxDays int
}

// Contains reports whether date is bookable.
func (w Window) Contains(date string) bool {
	today := Today(w.Now, w.Loc)
	if date <= today {
		return false
	}
	if w.MaxDays > 0 {
		d, err := ParseDate(today)
		if err != nil {
			return false
		}
		if date > d.AddDate(0, 0, w.MaxDays).Format(models.DateLayout) {
			return false
		}
	}
	return true
}

// BookableDates lists dates inside the window that still yield at least one
// slot, ascending.
func BookableDates(availability map[string][]models.Interval, w Window) []string {
	dates := make([]string, 0, len(availability))
	for date, intervals := range availability {
		if _, err := ParseDate(date); err != nil {
			continue
		}
		if !w.Contains(date) {
			continue
		}
		if len(GenerateSlots(intervals)) == 0 {
			continue
		}
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}
