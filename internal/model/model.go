package model

import (
	"time"

	"github.com/golang-sql/civil"
)

// Frequency selects how a reminder repeats.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

// MonthEndPolicy decides which day a monthly reminder lands on when the
// target month is shorter than the requested day-of-month.
type MonthEndPolicy string

const (
	// MonthEndClamp28 moves the occurrence to the 28th of that month.
	MonthEndClamp28 MonthEndPolicy = "clamp28"
	// MonthEndLastDay moves the occurrence to the real last day of that month.
	MonthEndLastDay MonthEndPolicy = "last_day"
)

// RecurrenceRule describes when a reminder fires. All civil values are
// interpreted in a single fixed timezone chosen by the caller.
type RecurrenceRule struct {
	Frequency Frequency
	TimeOfDay TimeOfDay

	// WeeklyDays is only used for Weekly rules. Empty means Monday.
	WeeklyDays []time.Weekday

	// MonthlyDay is only used for Monthly rules (1–31).
	MonthlyDay int

	// StartDate is the earliest date an occurrence may fall on. The zero
	// value (or any invalid date) means the rule has no start date yet.
	StartDate civil.Date

	MonthEnd MonthEndPolicy
}

// HasStart reports whether the rule carries a usable start date.
func (r RecurrenceRule) HasStart() bool {
	return r.StartDate.IsValid()
}

// EffectiveWeekdays returns the distinct valid weekdays of the rule in
// Sunday..Saturday order, falling back to Monday when none remain.
func (r RecurrenceRule) EffectiveWeekdays() []time.Weekday {
	var seen [7]bool
	for _, d := range r.WeeklyDays {
		if d >= time.Sunday && d <= time.Saturday {
			seen[d] = true
		}
	}

	out := make([]time.Weekday, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if seen[d] {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		out = append(out, time.Monday)
	}
	return out
}

// EffectiveMonthlyDay returns MonthlyDay clamped to [1, 31].
func (r RecurrenceRule) EffectiveMonthlyDay() int {
	switch {
	case r.MonthlyDay < 1:
		return 1
	case r.MonthlyDay > 31:
		return 31
	default:
		return r.MonthlyDay
	}
}

// Channel is the messaging channel a reminder is displayed for. It has no
// effect on occurrence computation.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelWhatsApp Channel = "whatsapp"
)

// Reminder is the collaborator-owned record that carries a rule.
type Reminder struct {
	ID       string
	Name     string
	Channel  Channel
	Template string
	Enabled  bool

	Rule RecurrenceRule
}

// Occurrence represents a single computed run of a reminder in the
// configured display timezone.
type Occurrence struct {
	ReminderID string
	Name       string
	Channel    Channel

	// InstanceKey uniquely identifies a single run of a reminder, derived
	// from the local start time.
	InstanceKey string

	Start time.Time
}
