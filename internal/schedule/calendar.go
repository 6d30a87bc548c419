package schedule

import "time"

// resolveWall materializes the instant with the given wall-clock fields in
// loc, applying the transition recovery policies:
//
//   - A wall time that does not exist (spring-forward gap) resolves to the
//     first minute of the following hour.
//   - A wall time that exists twice (fall-back overlap) resolves to the
//     later of the two instants.
//
// Seconds and nanoseconds are always zero; ticks are minute-granular.
func resolveWall(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	t := time.Date(year, month, day, hour, minute, 0, 0, loc)
	if t.Hour() != hour || t.Minute() != minute {
		// The requested wall time fell in a gap and time.Date normalized it
		// forward. Resolve to the first minute after the transition.
		return time.Date(year, month, day, hour+1, 0, 0, 0, loc)
	}
	// Probe for an overlap: a repeated wall time reappears exactly one hour
	// (or thirty minutes, for half-hour offset zones) later.
	for _, d := range []time.Duration{time.Hour, 30 * time.Minute} {
		later := t.Add(d)
		if later.Hour() == hour && later.Minute() == minute && later.Day() == t.Day() {
			return later
		}
	}
	return t
}

// setWallFields returns the instant in t's zone and month with the given
// wall-clock day, hour and minute, subject to the resolveWall policies.
func setWallFields(t time.Time, hour, minute, day int) time.Time {
	return resolveWall(t.Year(), t.Month(), day, hour, minute, t.Location())
}

// withWallTime replaces only the hour and minute of t's wall clock.
func withWallTime(t time.Time, hour, minute int) time.Time {
	y, m, d := t.Date()
	return resolveWall(y, m, d, hour, minute, t.Location())
}

// addDays shifts t by n calendar days, preserving the wall-clock hour and
// minute where the target time exists.
func addDays(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	return resolveWall(y, m, d+n, t.Hour(), t.Minute(), t.Location())
}

// addWeeks shifts t by n calendar weeks.
func addWeeks(t time.Time, n int) time.Time {
	return addDays(t, 7*n)
}

// addMonths shifts t by n calendar months, clamping the day to the target
// month's last day rather than rolling over into the next month.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + n
	year := y + floorDiv(total, 12)
	month := time.Month(mod(total, 12) + 1)
	if last := daysIn(year, month); d > last {
		d = last
	}
	return resolveWall(year, month, d, t.Hour(), t.Minute(), t.Location())
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// zoneOffset returns t's UTC offset in seconds.
func zoneOffset(t time.Time) int {
	_, off := t.Zone()
	return off
}

func mod(a, b int) int {
	return ((a % b) + b) % b
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
