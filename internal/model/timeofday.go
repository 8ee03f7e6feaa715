package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-sql/civil"
)

// DefaultTimeOfDay is used when a time picker value cannot be parsed.
var DefaultTimeOfDay = TimeOfDay{Hour: 9, Minute: 0}

// TimeOfDay is a wall-clock time with minute resolution.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses an "HH:MM" picker value. It never fails: input that
// does not look like HH:MM yields DefaultTimeOfDay and out-of-range fields
// are clamped.
func ParseTimeOfDay(s string) TimeOfDay {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return DefaultTimeOfDay
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return DefaultTimeOfDay
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return DefaultTimeOfDay
	}
	return TimeOfDay{Hour: h, Minute: m}.Normalize()
}

// Normalize clamps Hour to 0–23 and Minute to 0–59.
func (t TimeOfDay) Normalize() TimeOfDay {
	return TimeOfDay{
		Hour:   clamp(t.Hour, 0, 23),
		Minute: clamp(t.Minute, 0, 59),
	}
}

// On returns the instant at which this time of day occurs on date d in loc.
func (t TimeOfDay) On(d civil.Date, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, t.Hour, t.Minute, 0, 0, loc)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
