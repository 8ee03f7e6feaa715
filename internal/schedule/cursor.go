package schedule

import (
	"time"

	"github.com/golang-sql/civil"

	"remindcal/internal/model"
)

// cursor is the search position of one Generate call. It is a value: every
// move returns a new cursor and never touches the receiver.
type cursor struct {
	date civil.Date
}

func (c cursor) addDays(n int) cursor {
	return cursor{date: c.date.AddDays(n)}
}

// monthStart returns day 1 of the cursor's month.
func (c cursor) monthStart() cursor {
	return cursor{date: civil.Date{Year: c.date.Year, Month: c.date.Month, Day: 1}}
}

// nextMonth returns day 1 of the month after the cursor's month.
func (c cursor) nextMonth() cursor {
	y, m := c.date.Year, c.date.Month+1
	if m > time.December {
		y, m = y+1, time.January
	}
	return cursor{date: civil.Date{Year: y, Month: m, Day: 1}}
}

// dayInMonth returns the date in the cursor's month that a monthly rule for
// day lands on. Months too short for day fall back according to policy.
func (c cursor) dayInMonth(day int, policy model.MonthEndPolicy) civil.Date {
	last := daysIn(c.date.Year, c.date.Month)
	if day > last {
		if policy == model.MonthEndLastDay {
			day = last
		} else {
			day = 28
		}
	}
	return civil.Date{Year: c.date.Year, Month: c.date.Month, Day: day}
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
