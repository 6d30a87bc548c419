package schedule

import (
	"time"

	"github.com/robfig/cron/v3"
)

// matchesSpec reports whether t's wall-clock minute, hour, day and month
// satisfy the parsed cron fields. Seconds are not considered.
func matchesSpec(s *cron.SpecSchedule, t time.Time) bool {
	return 1<<uint(t.Minute())&s.Minute != 0 &&
		1<<uint(t.Hour())&s.Hour != 0 &&
		1<<uint(t.Month())&s.Month != 0 &&
		dayMatches(s, t)
}

// dayMatches applies the standard cron day rule: when either the
// day-of-month or day-of-week field is a wildcard the two are ANDed,
// otherwise a match on either field suffices.
func dayMatches(s *cron.SpecSchedule, t time.Time) bool {
	domMatch := 1<<uint(t.Day())&s.Dom != 0
	dowMatch := 1<<uint(t.Weekday())&s.Dow != 0
	if s.Dom&starBit != 0 || s.Dow&starBit != 0 {
		return domMatch && dowMatch
	}
	return domMatch || dowMatch
}

// exactBoundaryMatch reports whether start is itself a tick of the
// schedule: exactly on a minute boundary and matching every cron field.
// The two most common daily/hourly forms short-circuit on the raw string.
func exactBoundaryMatch(exp *Expansion, start time.Time) bool {
	if start.Second() != 0 || start.Nanosecond() != 0 {
		return false
	}
	switch exp.Raw {
	case "0 0 * * *":
		return start.Hour() == 0 && start.Minute() == 0
	case "0 * * * *":
		return start.Minute() == 0
	}
	return matchesSpec(exp.Spec, start)
}

// nextMatch returns the first tick strictly after t, in t's location.
// A zero return means no tick exists within the search horizon.
func nextMatch(s *cron.SpecSchedule, t time.Time) time.Time {
	next := s.Next(t)
	if next.IsZero() {
		return next
	}
	return next.In(t.Location())
}

// prevMatch returns the latest tick strictly before t, stepping the wall
// clock backward field by field the same way robfig/cron's Next steps it
// forward. A zero return means no tick exists within the search horizon.
func prevMatch(s *cron.SpecSchedule, t time.Time) time.Time {
	loc := t.Location()

	// Snap to the containing minute boundary; if t is exactly on one, step
	// back a minute so the result is strictly before t.
	sub := time.Duration(t.Second())*time.Second + time.Duration(t.Nanosecond())
	if sub > 0 {
		t = t.Add(-sub)
	} else {
		t = t.Add(-time.Minute)
	}

	yearLimit := t.Year() - 5

WRAP:
	for {
		if t.Year() < yearLimit {
			return time.Time{}
		}

		for 1<<uint(t.Month())&s.Month == 0 {
			// Jump to the last minute of the previous month.
			y, m, _ := t.Date()
			t = lastMinuteBefore(y, m, 1, loc)
			if t.Year() < yearLimit {
				return time.Time{}
			}
		}

		for !dayMatches(s, t) {
			y, m, d := t.Date()
			t = lastMinuteBefore(y, m, d, loc)
			if t.Month() != m || t.Year() != y {
				continue WRAP
			}
		}

		for 1<<uint(t.Hour())&s.Hour == 0 {
			day := t.Day()
			// Last minute of the previous hour, by absolute subtraction so
			// DST transitions cannot re-enter the same hour.
			t = t.Add(-time.Duration(t.Minute())*time.Minute - time.Minute)
			if t.Day() != day {
				continue WRAP
			}
		}

		for 1<<uint(t.Minute())&s.Minute == 0 {
			hour := t.Hour()
			t = t.Add(-time.Minute)
			if t.Hour() != hour {
				continue WRAP
			}
		}

		return t
	}
}

// lastMinuteBefore returns 23:59 of the calendar day preceding (year,
// month, day). Construction can land inside a DST gap and normalize
// forward, so back up by hours until the result is genuinely on an earlier
// day.
func lastMinuteBefore(year int, month time.Month, day int, loc *time.Location) time.Time {
	t := time.Date(year, month, day-1, 23, 59, 0, 0, loc)
	for !dateBefore(t, year, month, day) {
		t = t.Add(-time.Hour)
	}
	return t
}

// dateBefore reports whether t's calendar date falls before the given
// (possibly denormalized) date, comparing after normalization.
func dateBefore(t time.Time, year int, month time.Month, day int) bool {
	bound := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	cur := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return cur.Before(bound)
}
