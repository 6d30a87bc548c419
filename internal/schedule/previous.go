package schedule

import (
	"fmt"
	"time"

	"tickwise/internal/types"
)

// PreviousTick returns the latest tick of a classified schedule strictly
// before ref, by direct calendar arithmetic. Only classified expansions are
// supported; generic schedules step through prevMatch instead.
func PreviousTick(exp *Expansion, ref time.Time) (time.Time, error) {
	switch exp.Type {
	case TypeHourly:
		// Snap to the minute boundary, shift back to the expected minute,
		// then back a full hour if that lands at or past ref.
		ts := ref.Unix()
		ts -= ts % 60
		shift := mod(ref.Minute()-*exp.Minute, 60)
		prev := time.Unix(ts-int64(60*shift), 0).In(ref.Location())
		if !prev.Before(ref) {
			prev = prev.Add(-time.Hour)
		}
		return prev, nil

	case TypeDaily:
		prev := setWallFields(ref, *exp.Hour, *exp.Minute, ref.Day())
		if !prev.Before(ref) {
			prev = addDays(prev, -1)
			prev = setWallFields(prev, *exp.Hour, *exp.Minute, prev.Day())
		}
		return prev, nil

	case TypeWeekly:
		prev := setWallFields(ref, *exp.Hour, *exp.Minute, ref.Day())
		if shift := mod(int(prev.Weekday())-*exp.DayOfWeek, 7); shift != 0 {
			prev = addDays(prev, -shift)
		}
		if !prev.Before(ref) {
			prev = addWeeks(prev, -1)
		}
		return setWallFields(prev, *exp.Hour, *exp.Minute, prev.Day()), nil

	case TypeMonthly:
		prev := setWallFields(ref, *exp.Hour, *exp.Minute, *exp.Day)
		if !prev.Before(ref) {
			prev = addMonths(prev, -1)
			prev = setWallFields(prev, *exp.Hour, *exp.Minute, *exp.Day)
		}
		return prev, nil

	default:
		return time.Time{}, types.NewAppError(types.ErrCodeInternalUnexpected,
			fmt.Sprintf("unexpected schedule type for cron string %q", exp.Raw), nil)
	}
}
