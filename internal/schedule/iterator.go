package schedule

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"tickwise/internal/types"
)

// Stream produces schedule ticks one at a time. All work happens inside
// Next: there are no background goroutines and nothing to release, so a
// stream may be abandoned at any point and a fresh one started from the
// last consumed tick.
type Stream struct {
	// step advances the underlying generator once, emitting zero or more
	// ticks. It returns false when the generator is exhausted.
	step    func(emit func(time.Time)) bool
	pending []time.Time
	done    bool
}

// Next returns the next tick. ok is false only when the schedule can never
// produce another tick (an unsatisfiable field combination such as Feb 30).
func (s *Stream) Next() (time.Time, bool) {
	for len(s.pending) == 0 {
		if s.done {
			return time.Time{}, false
		}
		if !s.step(func(t time.Time) { s.pending = append(s.pending, t) }) {
			s.done = true
		}
	}
	t := s.pending[0]
	s.pending = s.pending[1:]
	return t, true
}

// doneStream is a stream that yields nothing.
func doneStream() *Stream {
	return &Stream{done: true}
}

// leapDaySuffix marks an expression pinned to February 29th. Such schedules
// are generated by iterating the 28th, keeping leap years only, and
// shifting each tick forward a day.
const leapDaySuffix = " 29 2 *"

// CronTicks returns the ascending stream of ticks for one cron expression
// in the named timezone (empty means UTC), beginning with the first tick at
// or after start. startOffset must be <= 0; each unit includes one
// additional tick before start.
func CronTicks(start time.Time, cronString, timezone string, startOffset int) (*Stream, error) {
	if startOffset > 0 {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
			"start offset must be negative or zero", nil)
	}

	if prefix, ok := strings.CutSuffix(cronString, leapDaySuffix); ok {
		inner, err := CronTicks(start, prefix+" 28 2 *", timezone, startOffset)
		if err != nil {
			return nil, err
		}
		return leapDayStream(inner), nil
	}

	loc, err := loadLocation(timezone)
	if err != nil {
		return nil, err
	}
	exp, err := Expand(cronString)
	if err != nil {
		return nil, err
	}
	startLocal := start.In(loc)

	if exp.Type == TypeUnknown {
		cursor := prevMatch(exp.Spec, startLocal)
		if cursor.IsZero() {
			// No tick inside the backward search horizon; a sparse schedule
			// may still have future ticks, so seed iteration just before
			// start instead of declaring the stream exhausted.
			cursor = startLocal.Add(-time.Minute)
		} else {
			for i := 0; i < -startOffset; i++ {
				prev := prevMatch(exp.Spec, cursor)
				if prev.IsZero() {
					break
				}
				cursor = prev
			}
		}
		return &Stream{step: genericForwardStep(exp.Spec, &cursor, startLocal, startOffset)}, nil
	}

	s := &Stream{}
	var anchor time.Time
	if startOffset == 0 && exactBoundaryMatch(exp, startLocal) {
		// The requested start is itself a tick; yield it before stepping.
		s.pending = append(s.pending, startLocal)
		anchor = startLocal
	} else {
		anchor, err = PreviousTick(exp, startLocal)
		if err != nil {
			return nil, err
		}
		for i := 0; i < -startOffset; i++ {
			anchor, err = PreviousTick(exp, anchor)
			if err != nil {
				return nil, err
			}
		}
	}
	s.step = fastForwardStep(exp, &anchor, startLocal, startOffset)
	return s, nil
}

// ReverseCronTicks returns the descending stream of ticks for one cron
// expression, beginning with the latest tick at or before end.
func ReverseCronTicks(end time.Time, cronString, timezone string) (*Stream, error) {
	loc, err := loadLocation(timezone)
	if err != nil {
		return nil, err
	}
	exp, err := Expand(cronString)
	if err != nil {
		return nil, err
	}
	endLocal := end.In(loc)

	// Anchor at the first tick after end; each step subtracts from there,
	// so the first emitted tick is the latest one at or before end.
	anchor := nextMatch(exp.Spec, endLocal)
	if anchor.IsZero() {
		return doneStream(), nil
	}

	if exp.Type == TypeUnknown {
		return &Stream{step: genericReverseStep(exp.Spec, &anchor, endLocal)}, nil
	}
	return &Stream{step: fastReverseStep(exp, &anchor, endLocal)}, nil
}

// ScheduleTicks returns the merged tick stream for a set of cron
// expressions sharing one timezone. Instants produced by more than one
// expression are emitted once. ascending streams forward from start;
// descending streams backward from it.
func ScheduleTicks(start time.Time, cronSchedule []string, timezone string, ascending bool) (*Stream, error) {
	if !IsValidCronSchedule(cronSchedule) {
		return nil, types.NewAppError(types.ErrCodeScheduleInvalidCron,
			"cron schedule must be a non-empty set of valid cron strings", nil)
	}

	subs := make([]*Stream, len(cronSchedule))
	for i, expr := range cronSchedule {
		var err error
		if ascending {
			subs[i], err = CronTicks(start, expr, timezone, 0)
		} else {
			subs[i], err = ReverseCronTicks(start, expr, timezone)
		}
		if err != nil {
			return nil, err
		}
	}
	if len(subs) == 1 {
		return subs[0], nil
	}
	return mergeStreams(subs, ascending), nil
}

// fastForwardStep advances a classified schedule by its fixed calendar
// delta, repairing wall-clock drift introduced by DST transitions.
func fastForwardStep(exp *Expansion, anchor *time.Time, start time.Time, startOffset int) func(emit func(time.Time)) bool {
	delta, hourShouldChange := deltaForType(exp.Type)
	return func(emit func(time.Time)) bool {
		curHour := anchor.Hour()
		cand := delta(*anchor, 1)
		newHour, newMinute := cand.Hour(), cand.Minute()

		if !hourShouldChange && newHour != curHour {
			// The scheduled wall time fell in a spring-forward gap. Run once
			// at the first instant after the transition, then resume the
			// normal cadence a full period later.
			emit(withWallTime(cand, cand.Hour(), 0))
			cand = delta(*anchor, 2)
		} else if exp.Hour != nil && newHour != *exp.Hour && zoneOffset(cand) == zoneOffset(*anchor) {
			// Hour drifted without a zone transition; force it back.
			cand = withWallTime(cand, *exp.Hour, cand.Minute())
		}
		if exp.Minute != nil && newMinute != *exp.Minute {
			cand = withWallTime(cand, cand.Hour(), *exp.Minute)
		}

		*anchor = cand
		if startOffset == 0 && cand.Before(start) {
			// Progression guard: corrections may momentarily step behind the
			// requested window; skip and keep going.
			return true
		}
		emit(cand)
		return true
	}
}

// fastReverseStep mirrors fastForwardStep with subtraction deltas.
func fastReverseStep(exp *Expansion, anchor *time.Time, end time.Time) func(emit func(time.Time)) bool {
	delta, hourShouldChange := deltaForType(exp.Type)
	return func(emit func(time.Time)) bool {
		curHour := anchor.Hour()
		cand := delta(*anchor, -1)

		if !hourShouldChange && cand.Hour() != curHour {
			emit(withWallTime(cand, cand.Hour(), 0))
			cand = delta(*anchor, -2)
		}

		*anchor = cand
		if cand.After(end) {
			return true
		}
		emit(cand)
		return true
	}
}

// deltaForType maps a schedule type onto its period arithmetic. The second
// return is true for hourly schedules, whose ticks legitimately change hour
// every period.
func deltaForType(t Type) (func(time.Time, int) time.Time, bool) {
	switch t {
	case TypeMonthly:
		return addMonths, false
	case TypeWeekly:
		return addWeeks, false
	case TypeDaily:
		return addDays, false
	default:
		return func(t time.Time, n int) time.Time {
			return t.Add(time.Duration(n) * time.Hour)
		}, true
	}
}

func genericForwardStep(spec *cron.SpecSchedule, cursor *time.Time, start time.Time, startOffset int) func(emit func(time.Time)) bool {
	return func(emit func(time.Time)) bool {
		next := nextMatch(spec, *cursor)
		if next.IsZero() {
			return false
		}
		*cursor = next
		if startOffset == 0 && next.Before(start) {
			return true
		}
		emit(next)
		return true
	}
}

func genericReverseStep(spec *cron.SpecSchedule, cursor *time.Time, end time.Time) func(emit func(time.Time)) bool {
	return func(emit func(time.Time)) bool {
		prev := prevMatch(spec, *cursor)
		if prev.IsZero() {
			return false
		}
		*cursor = prev
		if prev.After(end) {
			return true
		}
		emit(prev)
		return true
	}
}

// leapDayStream filters a Feb-28 stream down to leap years and shifts each
// kept tick forward one day onto the 29th.
func leapDayStream(inner *Stream) *Stream {
	return &Stream{step: func(emit func(time.Time)) bool {
		for {
			t, ok := inner.Next()
			if !ok {
				return false
			}
			if isLeapYear(t.Year()) {
				emit(addDays(t, 1))
				return true
			}
		}
	}}
}

// mergeStreams merges sub-streams already ordered in the same direction,
// emitting the extreme head each round and advancing every sub-stream tied
// at that instant so shared ticks collapse to one.
func mergeStreams(subs []*Stream, ascending bool) *Stream {
	heads := make([]time.Time, len(subs))
	live := make([]bool, len(subs))
	for i, sub := range subs {
		heads[i], live[i] = sub.Next()
	}
	return &Stream{step: func(emit func(time.Time)) bool {
		best := -1
		for i := range subs {
			if !live[i] {
				continue
			}
			if best < 0 ||
				(ascending && heads[i].Before(heads[best])) ||
				(!ascending && heads[i].After(heads[best])) {
				best = i
			}
		}
		if best < 0 {
			return false
		}
		pick := heads[best]
		for i := range subs {
			if live[i] && heads[i].Equal(pick) {
				heads[i], live[i] = subs[i].Next()
			}
		}
		emit(pick)
		return true
	}}
}
