package schedule

import (
	"time"

	"github.com/golang-sql/civil"

	"remindcal/internal/model"
)

// weeklyWindowDays is how far ahead a weekly scan looks before jumping a
// week. Any non-empty weekday set recurs within 7 days.
const weeklyWindowDays = 14

// maxPrealloc caps the initial result capacity; larger counts grow by append.
const maxPrealloc = 64

// Generate computes the next count occurrences of rule.
//
// Civil values of the rule are interpreted in now.Location(); callers pass
// now already converted to the display timezone. The result is strictly
// increasing and no element is earlier than the later of the rule's start
// (at its time of day) and now floored to the minute.
//
// Generate never fails. It returns nil when count <= 0 or the rule has no
// start date; otherwise it returns exactly count instants.
func Generate(rule model.RecurrenceRule, now time.Time, count int) []time.Time {
	if count <= 0 || !rule.HasStart() {
		return nil
	}

	g := generator{
		rule: rule,
		tod:  rule.TimeOfDay.Normalize(),
		loc:  now.Location(),
	}
	g.lower = g.at(rule.StartDate)
	if floor := floorToMinute(now); floor.After(g.lower) {
		g.lower = floor
	}

	out := make([]time.Time, 0, min(count, maxPrealloc))
	c := cursor{date: civil.DateOf(g.lower)}

	for len(out) < count {
		var next time.Time
		// Unknown frequencies behave like Monthly.
		switch rule.Frequency {
		case model.Daily:
			next, c = g.nextDaily(c)
		case model.Weekly:
			next, c = g.nextWeekly(c)
		default:
			next, c = g.nextMonthly(c)
		}
		out = append(out, next)
	}

	return out
}

type generator struct {
	rule  model.RecurrenceRule
	tod   model.TimeOfDay
	loc   *time.Location
	lower time.Time
}

func (g generator) at(d civil.Date) time.Time {
	return g.tod.On(d, g.loc)
}

func (g generator) past(t time.Time) bool {
	return t.Before(g.lower)
}

func (g generator) nextDaily(c cursor) (time.Time, cursor) {
	for {
		candidate := g.at(c.date)
		if g.past(candidate) {
			c = c.addDays(1)
			continue
		}
		return candidate, c.addDays(1)
	}
}

func (g generator) nextWeekly(c cursor) (time.Time, cursor) {
	days := g.rule.EffectiveWeekdays()
	for {
		for i := 0; i < weeklyWindowDays; i++ {
			day := c.addDays(i)
			candidate := g.at(day.date)
			if g.past(candidate) {
				continue
			}
			if containsWeekday(days, candidate.Weekday()) {
				return candidate, day.addDays(1)
			}
		}
		c = c.addDays(7)
	}
}

func (g generator) nextMonthly(c cursor) (time.Time, cursor) {
	day := g.rule.EffectiveMonthlyDay()

	this := c.monthStart()
	candidate := g.at(this.dayInMonth(day, g.rule.MonthEnd))
	if !g.past(candidate) {
		return candidate, this.nextMonth()
	}

	next := this.nextMonth()
	return g.at(next.dayInMonth(day, g.rule.MonthEnd)), next.nextMonth()
}

func containsWeekday(days []time.Weekday, d time.Weekday) bool {
	for _, x := range days {
		if x == d {
			return true
		}
	}
	return false
}

func floorToMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}
