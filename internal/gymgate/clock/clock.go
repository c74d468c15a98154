// Package clock supplies "now" in the gym's civil timezone and the calendar
// arithmetic (civil days, ISO weeks) every access decision is made against.
package clock

import (
	"fmt"
	"strings"
	"sync"
	"time"
	_ "time/tzdata" // zone database for hosts without one
)

// DefaultTimeZone is the gym's civil timezone when none is configured.
const DefaultTimeZone = "America/Argentina/Buenos_Aires"

type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// LoadLocation resolves an IANA zone name, falling back to DefaultTimeZone
// for an empty name.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultTimeZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// System is the wall clock, reported in a fixed location.
type System struct {
	loc *time.Location
}

func NewSystem(loc *time.Location) *System {
	if loc == nil {
		loc = time.UTC
	}
	return &System{loc: loc}
}

func (c *System) Now() time.Time           { return time.Now().In(c.loc) }
func (c *System) Location() *time.Location { return c.loc }

// Fixed is a settable clock for tests and dry runs.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed returns a clock frozen at t, reporting t's location.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t}
}

func (c *Fixed) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Fixed) Location() *time.Location {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.Location()
}

func (c *Fixed) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *Fixed) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// StartOfDay returns midnight of t's civil day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// EndOfDay returns the last nanosecond of t's civil day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// ISOWeekday returns 1 for Monday through 7 for Sunday.
func ISOWeekday(t time.Time, loc *time.Location) int {
	wd := int(t.In(loc).Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func ISOWeekNumber(t time.Time, loc *time.Location) int {
	_, w := t.In(loc).ISOWeek()
	return w
}

// StartOfISOWeek returns Monday 00:00 of the ISO week containing t.
func StartOfISOWeek(t time.Time, loc *time.Location) time.Time {
	day := StartOfDay(t, loc)
	return day.AddDate(0, 0, 1-ISOWeekday(t, loc))
}

// SameISOWeek compares ISO year and week, so week 5 of two different years
// is never considered the same week.
func SameISOWeek(a, b time.Time, loc *time.Location) bool {
	ay, aw := a.In(loc).ISOWeek()
	by, bw := b.In(loc).ISOWeek()
	return ay == by && aw == bw
}

// CompareDates compares the civil days of a and b in loc and returns -1, 0
// or +1.
func CompareDates(a, b time.Time, loc *time.Location) int {
	ka, kb := dayKey(a, loc), dayKey(b, loc)
	switch {
	case ka < kb:
		return -1
	case ka > kb:
		return 1
	default:
		return 0
	}
}

func dayKey(t time.Time, loc *time.Location) int {
	y, m, d := t.In(loc).Date()
	return y*10000 + int(m)*100 + d
}
