// Package schedule computes the next automated publish instant from a
// cadence policy (daily/weekly/monthly at a fixed wall-clock hour).
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/contentpilot/contentpilot/models"
)

// ErrInvalidPolicy signals a policy value outside the contract, for
// example a publish hour outside 0-23 or an unknown timezone.
var ErrInvalidPolicy = errors.New("invalid schedule policy")

// Policy is the cadence configuration NextRun operates on.
type Policy struct {
	Cadence     models.Cadence
	PublishHour int
	Timezone    string
}

// NextRun returns the next instant strictly after now that matches the
// policy's publish hour: today's occurrence if it is still ahead,
// otherwise the occurrence one cadence unit later. The hour rule is a
// wall-clock rule in the policy's timezone, so DST shifts fall out of
// time.Date in that location.
func NextRun(p Policy, now time.Time) (time.Time, error) {
	if p.PublishHour < 0 || p.PublishHour > 23 {
		return time.Time{}, fmt.Errorf("%w: publish hour %d out of range", ErrInvalidPolicy, p.PublishHour)
	}
	switch p.Cadence {
	case models.CadenceDaily, models.CadenceWeekly, models.CadenceMonthly:
	default:
		return time.Time{}, fmt.Errorf("%w: unknown cadence %q", ErrInvalidPolicy, p.Cadence)
	}
	loc := time.UTC
	if p.Timezone != "" {
		l, err := time.LoadLocation(p.Timezone)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: timezone %q: %v", ErrInvalidPolicy, p.Timezone, err)
		}
		loc = l
	}

	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), p.PublishHour, 0, 0, 0, loc)
	if today.After(local) {
		return today, nil
	}

	switch p.Cadence {
	case models.CadenceDaily:
		return today.AddDate(0, 0, 1), nil
	case models.CadenceWeekly:
		return today.AddDate(0, 0, 7), nil
	case models.CadenceMonthly:
		return addMonthClamped(today), nil
	}
	return time.Time{}, fmt.Errorf("%w: unknown cadence %q", ErrInvalidPolicy, p.Cadence)
}

// addMonthClamped adds one calendar month, clamping the day to the last
// day of the target month instead of letting the date normalize
// (Jan 31 -> Feb 28/29, not Mar 2/3).
func addMonthClamped(t time.Time) time.Time {
	year, month := t.Year(), t.Month()+1
	if month > time.December {
		month = time.January
		year++
	}
	day := t.Day()
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), 0, 0, t.Location())
}

func daysIn(year int, month time.Month) int {
	// day 0 of the following month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
