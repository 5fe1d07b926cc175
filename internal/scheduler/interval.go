// Package scheduler implements the recurring-payment dispatcher: the cron
// tick that scans the schedule index, fires due schedules against the
// executor endpoint, and advances or retires them.
//
// This file holds the pure time arithmetic: computing a schedule's first run
// and advancing nextRun by one interval. All calculations are in UTC.
package scheduler

import (
	"fmt"
	"time"

	"github.com/voicepay/go-voicepay-backend/internal/domain"
)

// InitialNextRun combines a YYYY-MM-DD start date with an optional HH:MM or
// HH:MM:SS time of day, interpreted in UTC. A missing time of day means
// midnight.
func InitialNextRun(startDate, timeOfDay string) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", startDate, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start_date %q: %w", startDate, err)
	}
	if timeOfDay == "" {
		return d, nil
	}
	layout := "15:04"
	if len(timeOfDay) == len("15:04:05") {
		layout = "15:04:05"
	}
	tod, err := time.ParseInLocation(layout, timeOfDay, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time_of_day %q: %w", timeOfDay, err)
	}
	return d.Add(time.Duration(tod.Hour())*time.Hour +
		time.Duration(tod.Minute())*time.Minute +
		time.Duration(tod.Second())*time.Second), nil
}

// NextAfter advances prev by one interval. The result is always strictly
// greater than prev.
//
// Rules:
//   - custom with a positive intervalMs adds that many milliseconds;
//   - daily +1 day, weekly +7 days, yearly +1 calendar year;
//   - monthly adds one calendar month, clamping the day-of-month to the
//     target month's length (Jan 31 -> Feb 28 -> Mar 28; no re-anchoring);
//   - anything else falls back to daily.
func NextAfter(prev time.Time, interval string, intervalMs *int64) time.Time {
	switch interval {
	case domain.IntervalCustom:
		if intervalMs != nil && *intervalMs > 0 {
			return prev.Add(time.Duration(*intervalMs) * time.Millisecond)
		}
		return prev.AddDate(0, 0, 1)
	case domain.IntervalWeekly:
		return prev.AddDate(0, 0, 7)
	case domain.IntervalMonthly:
		return addMonthClamped(prev, 1)
	case domain.IntervalYearly:
		return addYearClamped(prev, 1)
	case domain.IntervalDaily:
		return prev.AddDate(0, 0, 1)
	default:
		return prev.AddDate(0, 0, 1)
	}
}

// addMonthClamped adds n calendar months, clamping the day to the target
// month's length. time.AddDate would normalize Jan 31 +1mo to Mar 3, which
// is not what a monthly payment means.
func addMonthClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	month := int(m) + n
	year := y + (month-1)/12
	month = (month-1)%12 + 1
	if month <= 0 {
		month += 12
		year--
	}
	if max := daysIn(year, time.Month(month)); d > max {
		d = max
	}
	h, min, sec := t.Clock()
	return time.Date(year, time.Month(month), d, h, min, sec, t.Nanosecond(), time.UTC)
}

// addYearClamped adds n years, clamping Feb 29 to Feb 28 off leap years.
func addYearClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	year := y + n
	if max := daysIn(year, m); d > max {
		d = max
	}
	h, min, sec := t.Clock()
	return time.Date(year, m, d, h, min, sec, t.Nanosecond(), time.UTC)
}

// daysIn returns the number of days in the given month.
func daysIn(year int, m time.Month) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
