package schedule

import (
	"fmt"
	"time"

	"tickwise/internal/types"
)

// DefaultPartitionFormat renders daily-style partition keys.
const DefaultPartitionFormat = "2006-01-02"

// TimeWindowPartitions defines an ordered partition set backed by a cron
// cadence: each tick opens a window that closes at the following tick, and
// a partition exists once its window has fully elapsed.
type TimeWindowPartitions struct {
	Start    time.Time
	Cron     string
	Timezone string
	// Format is the time layout used to render keys; defaults to
	// DefaultPartitionFormat when empty.
	Format string
}

func (p *TimeWindowPartitions) format() string {
	if p.Format == "" {
		return DefaultPartitionFormat
	}
	return p.Format
}

// Validate checks the definition's cron string and timezone.
func (p *TimeWindowPartitions) Validate() error {
	if !IsValidCronString(p.Cron) {
		return types.NewAppError(types.ErrCodeScheduleInvalidCron,
			fmt.Sprintf("invalid partition cron string %q", p.Cron), nil)
	}
	_, err := loadLocation(p.Timezone)
	return err
}

// Keys returns, in window order, every partition key whose window has
// closed by now.
func (p *TimeWindowPartitions) Keys(now time.Time) ([]string, error) {
	stream, err := CronTicks(p.Start, p.Cron, p.Timezone, 0)
	if err != nil {
		return nil, err
	}
	var keys []string
	open, ok := stream.Next()
	if !ok {
		return nil, nil
	}
	for {
		closeAt, ok := stream.Next()
		if !ok || closeAt.After(now) {
			return keys, nil
		}
		keys = append(keys, open.Format(p.format()))
		open = closeAt
	}
}

// LastKey returns the most recent closed partition key, or "" when no
// window has closed yet.
func (p *TimeWindowPartitions) LastKey(now time.Time) (string, error) {
	stream, err := ReverseCronTicks(now, p.Cron, p.Timezone)
	if err != nil {
		return "", err
	}
	// The first reverse tick closes the latest elapsed window; the second
	// opens it and names the partition.
	if _, ok := stream.Next(); !ok {
		return "", nil
	}
	open, ok := stream.Next()
	if !ok || open.Before(p.Start) {
		return "", nil
	}
	return open.Format(p.format()), nil
}

// WindowFor resolves a partition key to its [start, end) time window.
func (p *TimeWindowPartitions) WindowFor(key string) (time.Time, time.Time, error) {
	loc, err := loadLocation(p.Timezone)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	open, err := time.ParseInLocation(p.format(), key, loc)
	if err != nil {
		return time.Time{}, time.Time{}, types.NewAppError(types.ErrCodePartitionInvalidKey,
			fmt.Sprintf("partition key %q does not match format %q", key, p.format()), err)
	}
	if open.Before(p.Start) {
		return time.Time{}, time.Time{}, types.NewAppError(types.ErrCodePartitionInvalidKey,
			fmt.Sprintf("partition key %q precedes the partition set start", key), nil)
	}
	stream, err := CronTicks(open, p.Cron, p.Timezone, 0)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	first, ok := stream.Next()
	if !ok || !first.Equal(open) {
		return time.Time{}, time.Time{}, types.NewAppError(types.ErrCodePartitionInvalidKey,
			fmt.Sprintf("partition key %q is not on the partition cadence", key), nil)
	}
	end, ok := stream.Next()
	if !ok {
		return time.Time{}, time.Time{}, types.NewAppError(types.ErrCodePartitionInvalidKey,
			fmt.Sprintf("partition key %q has no closing boundary", key), nil)
	}
	return first, end, nil
}

// MapPartitionKeys maps a partition key of one time-window set onto the
// keys of another whose windows overlap it. Mapping a daily key onto an
// hourly set yields 24 keys; the inverse yields the containing day.
func MapPartitionKeys(key string, from, to *TimeWindowPartitions, now time.Time) ([]string, error) {
	ws, we, err := from.WindowFor(key)
	if err != nil {
		return nil, err
	}
	// Start one tick before the window opens so a coarser target window
	// that merely contains ws is included.
	stream, err := CronTicks(ws, to.Cron, to.Timezone, -1)
	if err != nil {
		return nil, err
	}
	var keys []string
	open, ok := stream.Next()
	if !ok {
		return nil, nil
	}
	for {
		closeAt, ok := stream.Next()
		if !ok || !open.Before(we) {
			return keys, nil
		}
		// Keep windows intersecting [ws, we) that are closed by now and
		// inside the target set's range.
		if closeAt.After(ws) && !closeAt.After(now) && !open.Before(to.Start) {
			keys = append(keys, open.Format(to.format()))
		}
		open = closeAt
	}
}
