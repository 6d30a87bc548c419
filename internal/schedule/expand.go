// Package schedule implements cron tick resolution for the Tickwise
// platform: parsing and classifying cron expressions, locating previous
// ticks by direct calendar arithmetic, and generating forward or backward
// streams of execution instants with daylight-saving-time handling.
//
// The package is pure time math: it performs no I/O and holds no state
// beyond a bounded expansion cache, so streams may be computed on any
// goroutine and are restartable by construction.
package schedule

import (
	"container/list"
	"fmt"
	"math/bits"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tickwise/internal/types"
)

// Type classifies a cron expression by its interval pattern. Classified
// schedules take the fast arithmetic paths in PreviousTick and the tick
// streams; everything else iterates the raw cron fields.
type Type int

const (
	TypeUnknown Type = iota
	TypeHourly
	TypeDaily
	TypeWeekly
	TypeMonthly
)

// String returns the lowercase name of the schedule type.
func (t Type) String() string {
	switch t {
	case TypeHourly:
		return "hourly"
	case TypeDaily:
		return "daily"
	case TypeWeekly:
		return "weekly"
	case TypeMonthly:
		return "monthly"
	default:
		return "unknown"
	}
}

// Expansion is the parsed, classified form of a cron string. It is
// immutable once computed and shared via the expansion cache.
type Expansion struct {
	Raw  string
	Spec *cron.SpecSchedule
	Type Type

	// Expected wall-clock fields, set when the corresponding cron field is
	// a single explicit numeric value. Nil means the field is not pinned.
	Minute    *int
	Hour      *int
	Day       *int
	DayOfWeek *int
}

// standardParser accepts exactly the five standard fields
// (minute hour dom month dow). Seconds-granularity expressions and @
// descriptors are rejected.
var standardParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// starBit mirrors the high bit robfig/cron sets on a field bitmask when the
// field was written as a pure "*" or "?".
const starBit = 1 << 63

// fieldBitCounts is the number of admissible values per field, used to
// distinguish a true wildcard from a stepped range that happens to carry
// the star bit.
var fieldBitCounts = [5]int{60, 24, 31, 12, 7}

// Expand parses and classifies a cron string. Results are memoized in a
// process-wide bounded LRU cache keyed by the raw string, since schedules
// are re-expanded on every tick lookup but cron strings are low-cardinality.
func Expand(cronString string) (*Expansion, error) {
	if exp, ok := expandCache.get(cronString); ok {
		return exp, nil
	}

	sched, err := standardParser.Parse(cronString)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeScheduleInvalidCron,
			fmt.Sprintf("invalid cron string %q", cronString), err)
	}
	spec, ok := sched.(*cron.SpecSchedule)
	if !ok {
		return nil, types.NewAppError(types.ErrCodeScheduleInvalidCron,
			fmt.Sprintf("cron string %q did not resolve to a field schedule", cronString), nil)
	}

	exp := classify(cronString, spec)
	expandCache.put(cronString, exp)
	return exp, nil
}

// classify derives the per-field numeric/wildcard flags from the parsed
// bitmasks and maps the field pattern onto a schedule type.
func classify(raw string, spec *cron.SpecSchedule) *Expansion {
	masks := [5]uint64{spec.Minute, spec.Hour, spec.Dom, spec.Month, spec.Dow}

	var numeric, wildcard [5]bool
	var value [5]int
	for i, m := range masks {
		set := m &^ uint64(starBit)
		wildcard[i] = m&starBit != 0 && bits.OnesCount64(set) == fieldBitCounts[i]
		if !wildcard[i] && bits.OnesCount64(set) == 1 {
			numeric[i] = true
			value[i] = bits.TrailingZeros64(set)
		}
	}

	exp := &Expansion{Raw: raw, Spec: spec, Type: TypeUnknown}
	if numeric[0] {
		exp.Minute = &value[0]
	}
	if numeric[1] {
		exp.Hour = &value[1]
	}
	if numeric[2] {
		exp.Day = &value[2]
	}
	if numeric[4] {
		exp.DayOfWeek = &value[4]
	}

	switch {
	// Monthly is limited to days every month has. A pinned day of 29+ must
	// skip the months that lack it, which the fixed-delta fast path cannot
	// express; those expressions iterate the raw fields instead.
	case numeric[0] && numeric[1] && numeric[2] && value[2] <= 28 && wildcard[3] && wildcard[4]:
		exp.Type = TypeMonthly
	case numeric[0] && numeric[1] && numeric[4] && wildcard[2] && wildcard[3]:
		exp.Type = TypeWeekly
	case numeric[0] && numeric[1] && wildcard[2] && wildcard[3] && wildcard[4]:
		exp.Type = TypeDaily
	case numeric[0] && wildcard[1] && wildcard[2] && wildcard[3] && wildcard[4]:
		exp.Type = TypeHourly
	}
	return exp
}

// IsValidCronString reports whether the string parses as a standard 5-field
// cron expression. Used at definition-registration time to reject malformed
// schedules early.
func IsValidCronString(cronString string) bool {
	_, err := Expand(cronString)
	return err == nil
}

// IsValidCronSchedule reports whether the expression set is non-empty and
// every member is a valid cron string.
func IsValidCronSchedule(cronSchedule []string) bool {
	if len(cronSchedule) == 0 {
		return false
	}
	for _, s := range cronSchedule {
		if !IsValidCronString(s) {
			return false
		}
	}
	return true
}

// expandCacheCapacity bounds the expansion cache. Eviction is
// least-recently-used; cron strings are low-cardinality in practice so the
// cache behaves as a permanent memo.
const expandCacheCapacity = 128

type expansionCache struct {
	mu      sync.Mutex
	order   *list.List // front = most recently used
	entries map[string]*list.Element
}

type cacheEntry struct {
	key string
	exp *Expansion
}

var expandCache = &expansionCache{
	order:   list.New(),
	entries: make(map[string]*list.Element),
}

func (c *expansionCache) get(key string) (*Expansion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).exp, true
}

func (c *expansionCache) put(key string, exp *Expansion) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		el.Value.(*cacheEntry).exp = exp
		return
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, exp: exp})
	if c.order.Len() > expandCacheCapacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

// loadLocation resolves a timezone name, defaulting to UTC when empty.
func loadLocation(timezone string) (*time.Location, error) {
	if timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeScheduleInvalidTimezone,
			fmt.Sprintf("unknown timezone %q", timezone), err)
	}
	return loc, nil
}
