package schedule

import (
	"testing"
	"time"
)

func takeTicks(t *testing.T, s *Stream, n int) []time.Time {
	t.Helper()
	out := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		tick, ok := s.Next()
		if !ok {
			t.Fatalf("stream exhausted after %d ticks, want %d", i, n)
		}
		out = append(out, tick)
	}
	return out
}

func assertTicks(t *testing.T, got, want []time.Time) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d ticks, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("tick %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCronTicksDaily(t *testing.T) {
	start := time.Date(2024, 5, 14, 12, 0, 0, 0, time.UTC)
	s, err := CronTicks(start, "15 6 * * *", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	assertTicks(t, takeTicks(t, s, 3), []time.Time{
		time.Date(2024, 5, 15, 6, 15, 0, 0, time.UTC),
		time.Date(2024, 5, 16, 6, 15, 0, 0, time.UTC),
		time.Date(2024, 5, 17, 6, 15, 0, 0, time.UTC),
	})
}

func TestCronTicksStartOnBoundary(t *testing.T) {
	// A start that is itself a tick is the first tick.
	start := time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)
	s, err := CronTicks(start, "0 0 * * *", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	assertTicks(t, takeTicks(t, s, 2), []time.Time{
		start,
		time.Date(2024, 5, 16, 0, 0, 0, 0, time.UTC),
	})
}

func TestCronTicksStartOffset(t *testing.T) {
	start := time.Date(2024, 5, 14, 12, 0, 0, 0, time.UTC)
	s, err := CronTicks(start, "0 0 * * *", "", -2)
	if err != nil {
		t.Fatal(err)
	}
	assertTicks(t, takeTicks(t, s, 3), []time.Time{
		time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC),
	})
}

func TestCronTicksRejectsPositiveOffset(t *testing.T) {
	if _, err := CronTicks(time.Now(), "0 0 * * *", "", 1); err == nil {
		t.Fatal("expected error for positive start offset")
	}
}

func TestCronTicksGeneric(t *testing.T) {
	start := time.Date(2024, 5, 14, 10, 7, 0, 0, time.UTC)
	s, err := CronTicks(start, "*/15 * * * *", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	assertTicks(t, takeTicks(t, s, 4), []time.Time{
		time.Date(2024, 5, 14, 10, 15, 0, 0, time.UTC),
		time.Date(2024, 5, 14, 10, 30, 0, 0, time.UTC),
		time.Date(2024, 5, 14, 10, 45, 0, 0, time.UTC),
		time.Date(2024, 5, 14, 11, 0, 0, 0, time.UTC),
	})
}

func TestCronTicksGenericWeekdays(t *testing.T) {
	// 2024-05-17 is a Friday; the next weekday tick after it is Monday.
	start := time.Date(2024, 5, 17, 12, 0, 0, 0, time.UTC)
	s, err := CronTicks(start, "0 9 * * 1-5", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	assertTicks(t, takeTicks(t, s, 2), []time.Time{
		time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 21, 9, 0, 0, 0, time.UTC),
	})
}

func TestCronTicksDailyAcrossSpringForward(t *testing.T) {
	// Chicago, 2019-03-10: 02:00 -> 03:00. The 02:30 schedule runs once at
	// 03:00 that day and returns to 02:30 the next.
	loc := mustLoc(t, "America/Chicago")
	start := time.Date(2019, 3, 9, 12, 0, 0, 0, loc)
	s, err := CronTicks(start, "30 2 * * *", "America/Chicago", 0)
	if err != nil {
		t.Fatal(err)
	}
	assertTicks(t, takeTicks(t, s, 3), []time.Time{
		time.Date(2019, 3, 10, 3, 0, 0, 0, loc),
		time.Date(2019, 3, 11, 2, 30, 0, 0, loc),
		time.Date(2019, 3, 12, 2, 30, 0, 0, loc),
	})
}

func TestCronTicksDailyAcrossFallBack(t *testing.T) {
	// Chicago, 2019-11-03: 02:00 -> 01:00. The repeated 01:30 resolves to
	// the later (standard-time) occurrence.
	loc := mustLoc(t, "America/Chicago")
	start := time.Date(2019, 11, 2, 12, 0, 0, 0, loc)
	s, err := CronTicks(start, "30 1 * * *", "America/Chicago", 0)
	if err != nil {
		t.Fatal(err)
	}
	got := takeTicks(t, s, 2)
	want := []time.Time{
		// 01:30 CST == 07:30 UTC (the second occurrence).
		time.Date(2019, 11, 3, 7, 30, 0, 0, time.UTC),
		time.Date(2019, 11, 4, 7, 30, 0, 0, time.UTC),
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("tick %d = %v (%v UTC), want %v", i, got[i], got[i].UTC(), want[i])
		}
	}
}

func TestCronTicksHourlyAcrossSpringForward(t *testing.T) {
	// Hourly schedules keep their absolute-hour cadence through the gap:
	// 01:00 CST is followed by 03:00 CDT.
	loc := mustLoc(t, "America/Chicago")
	start := time.Date(2019, 3, 10, 1, 0, 0, 0, loc)
	s, err := CronTicks(start, "0 * * * *", "America/Chicago", 0)
	if err != nil {
		t.Fatal(err)
	}
	got := takeTicks(t, s, 3)
	wantUTC := []time.Time{
		time.Date(2019, 3, 10, 7, 0, 0, 0, time.UTC), // 01:00 CST
		time.Date(2019, 3, 10, 8, 0, 0, 0, time.UTC), // 03:00 CDT
		time.Date(2019, 3, 10, 9, 0, 0, 0, time.UTC), // 04:00 CDT
	}
	for i := range wantUTC {
		if !got[i].Equal(wantUTC[i]) {
			t.Errorf("tick %d = %v UTC, want %v", i, got[i].UTC(), wantUTC[i])
		}
	}
	if got[1].Hour() != 3 {
		t.Errorf("post-gap tick local hour = %d, want 3", got[1].Hour())
	}
}

func TestCronTicksHourlyAcrossFallBack(t *testing.T) {
	// The repeated hour runs twice: 01:00 CDT and 01:00 CST are distinct
	// instants an absolute hour apart.
	loc := mustLoc(t, "America/Chicago")
	start := time.Date(2019, 11, 3, 0, 0, 0, 0, loc)
	s, err := CronTicks(start, "0 * * * *", "America/Chicago", 0)
	if err != nil {
		t.Fatal(err)
	}
	got := takeTicks(t, s, 4)
	wantUTC := []time.Time{
		time.Date(2019, 11, 3, 5, 0, 0, 0, time.UTC), // 00:00 CDT
		time.Date(2019, 11, 3, 6, 0, 0, 0, time.UTC), // 01:00 CDT
		time.Date(2019, 11, 3, 7, 0, 0, 0, time.UTC), // 01:00 CST
		time.Date(2019, 11, 3, 8, 0, 0, 0, time.UTC), // 02:00 CST
	}
	for i := range wantUTC {
		if !got[i].Equal(wantUTC[i]) {
			t.Errorf("tick %d = %v UTC, want %v", i, got[i].UTC(), wantUTC[i])
		}
	}
}

func TestCronTicksMonthEndPinnedDay(t *testing.T) {
	// A day not every month has must skip the short months (June and
	// September here), never drift onto the 1st of the following month.
	start := time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)
	s, err := CronTicks(start, "0 0 31 * *", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	assertTicks(t, takeTicks(t, s, 4), []time.Time{
		time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 8, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 10, 31, 0, 0, 0, 0, time.UTC),
	})
}

func TestCronTicksLeapDay(t *testing.T) {
	start := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := CronTicks(start, "0 0 29 2 *", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	assertTicks(t, takeTicks(t, s, 2), []time.Time{
		time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
	})
}

func TestCronTicksGenericSparseHistory(t *testing.T) {
	// 2100 is not a leap year, so the last Feb 29 before 2103 was 2096,
	// beyond the backward search horizon. Future ticks must still flow.
	// The month name keeps the expression on the raw-field path.
	start := time.Date(2103, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := CronTicks(start, "0 0 29 FEB *", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	assertTicks(t, takeTicks(t, s, 2), []time.Time{
		time.Date(2104, 2, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2108, 2, 29, 0, 0, 0, 0, time.UTC),
	})
}

func TestReverseCronTicksDaily(t *testing.T) {
	end := time.Date(2024, 5, 14, 12, 0, 0, 0, time.UTC)
	s, err := ReverseCronTicks(end, "15 6 * * *", "")
	if err != nil {
		t.Fatal(err)
	}
	assertTicks(t, takeTicks(t, s, 3), []time.Time{
		time.Date(2024, 5, 14, 6, 15, 0, 0, time.UTC),
		time.Date(2024, 5, 13, 6, 15, 0, 0, time.UTC),
		time.Date(2024, 5, 12, 6, 15, 0, 0, time.UTC),
	})
}

func TestReverseCronTicksEndOnBoundary(t *testing.T) {
	end := time.Date(2024, 5, 14, 6, 15, 0, 0, time.UTC)
	s, err := ReverseCronTicks(end, "15 6 * * *", "")
	if err != nil {
		t.Fatal(err)
	}
	got := takeTicks(t, s, 1)
	if !got[0].Equal(end) {
		t.Errorf("first reverse tick = %v, want %v", got[0], end)
	}
}

func TestReverseCronTicksAcrossSpringForward(t *testing.T) {
	loc := mustLoc(t, "America/Chicago")
	end := time.Date(2019, 3, 11, 12, 0, 0, 0, loc)
	s, err := ReverseCronTicks(end, "30 2 * * *", "America/Chicago")
	if err != nil {
		t.Fatal(err)
	}
	assertTicks(t, takeTicks(t, s, 3), []time.Time{
		time.Date(2019, 3, 11, 2, 30, 0, 0, loc),
		time.Date(2019, 3, 10, 3, 0, 0, 0, loc),
		time.Date(2019, 3, 9, 2, 30, 0, 0, loc),
	})
}

func TestForwardBackwardSymmetry(t *testing.T) {
	// The ticks of a window agree whether generated forward from its start
	// or backward from its end.
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC)

	for _, cron := range []string{"15 6 * * *", "*/20 * * * *", "0 9 * * 1-5"} {
		fwd, err := CronTicks(start, cron, "", 0)
		if err != nil {
			t.Fatal(err)
		}
		var forward []time.Time
		for {
			tick, ok := fwd.Next()
			if !ok || tick.After(end) {
				break
			}
			forward = append(forward, tick)
		}

		rev, err := ReverseCronTicks(end, cron, "")
		if err != nil {
			t.Fatal(err)
		}
		var backward []time.Time
		for {
			tick, ok := rev.Next()
			if !ok || tick.Before(start) {
				break
			}
			backward = append(backward, tick)
		}

		if len(forward) != len(backward) {
			t.Fatalf("%q: %d forward ticks, %d backward", cron, len(forward), len(backward))
		}
		for i := range forward {
			if !forward[i].Equal(backward[len(backward)-1-i]) {
				t.Errorf("%q: tick %d mismatch: %v vs %v", cron, i, forward[i], backward[len(backward)-1-i])
			}
		}
	}
}

func TestStreamRestartable(t *testing.T) {
	start := time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC)
	s, err := CronTicks(start, "*/15 * * * *", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	first := takeTicks(t, s, 3)

	// A fresh stream resumed just past the last consumed tick continues
	// the same sequence.
	resumed, err := CronTicks(first[2].Add(time.Second), "*/15 * * * *", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	next := takeTicks(t, resumed, 1)
	if !next[0].Equal(takeTicks(t, s, 1)[0]) {
		t.Errorf("resumed stream diverged: %v", next[0])
	}
}

func TestScheduleTicksUnion(t *testing.T) {
	start := time.Date(2024, 5, 14, 0, 1, 0, 0, time.UTC)
	s, err := ScheduleTicks(start, []string{"0 * * * *", "30 * * * *"}, "", true)
	if err != nil {
		t.Fatal(err)
	}
	assertTicks(t, takeTicks(t, s, 4), []time.Time{
		time.Date(2024, 5, 14, 0, 30, 0, 0, time.UTC),
		time.Date(2024, 5, 14, 1, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 14, 1, 30, 0, 0, time.UTC),
		time.Date(2024, 5, 14, 2, 0, 0, 0, time.UTC),
	})
}

func TestScheduleTicksUnionCollapsesTies(t *testing.T) {
	// 2024-01-07 is a Sunday, where the daily and weekly expressions
	// coincide; the shared instant appears once.
	start := time.Date(2024, 1, 6, 12, 0, 0, 0, time.UTC)
	s, err := ScheduleTicks(start, []string{"0 0 * * *", "0 0 * * 0"}, "", true)
	if err != nil {
		t.Fatal(err)
	}
	assertTicks(t, takeTicks(t, s, 3), []time.Time{
		time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC),
	})
}

func TestScheduleTicksDescending(t *testing.T) {
	end := time.Date(2024, 5, 14, 2, 0, 0, 0, time.UTC)
	s, err := ScheduleTicks(end, []string{"0 * * * *", "30 * * * *"}, "", false)
	if err != nil {
		t.Fatal(err)
	}
	assertTicks(t, takeTicks(t, s, 3), []time.Time{
		time.Date(2024, 5, 14, 2, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 14, 1, 30, 0, 0, time.UTC),
		time.Date(2024, 5, 14, 1, 0, 0, 0, time.UTC),
	})
}

func TestScheduleTicksRejectsInvalid(t *testing.T) {
	if _, err := ScheduleTicks(time.Now(), nil, "", true); err == nil {
		t.Fatal("expected error for empty schedule")
	}
	if _, err := ScheduleTicks(time.Now(), []string{"bogus"}, "", true); err == nil {
		t.Fatal("expected error for invalid member")
	}
}

func TestCronTicksInvalidTimezone(t *testing.T) {
	if _, err := CronTicks(time.Now(), "0 0 * * *", "Not/AZone", 0); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}
