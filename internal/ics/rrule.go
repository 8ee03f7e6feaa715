package ics

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"remindcal/internal/model"
)

// ErrUnsupportedRule is returned for RRULEs that have no reminder equivalent.
var ErrUnsupportedRule = errors.New("unsupported recurrence rule")

var toRRuleWeekday = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// ROption returns the RFC 5545 recurrence options that produce exactly the
// same runs as rule, starting at the rule's first run. The second result is
// false when no such RRULE exists (monthly days the 28-day clamp rewrites).
func ROption(rule model.RecurrenceRule) (rrule.ROption, bool) {
	switch rule.Frequency {
	case model.Daily:
		return rrule.ROption{Freq: rrule.DAILY}, true

	case model.Weekly:
		days := rule.EffectiveWeekdays()
		byday := make([]rrule.Weekday, 0, len(days))
		for _, d := range days {
			byday = append(byday, toRRuleWeekday[d])
		}
		return rrule.ROption{Freq: rrule.WEEKLY, Byweekday: byday}, true

	default:
		day := rule.EffectiveMonthlyDay()
		switch {
		case day <= 28:
			return rrule.ROption{Freq: rrule.MONTHLY, Bymonthday: []int{day}}, true
		case day == 31 && rule.MonthEnd == model.MonthEndLastDay:
			return rrule.ROption{Freq: rrule.MONTHLY, Bymonthday: []int{-1}}, true
		default:
			return rrule.ROption{}, false
		}
	}
}

// RRule returns the RRULE property value for rule, if one exists.
func RRule(rule model.RecurrenceRule) (string, bool) {
	opt, ok := ROption(rule)
	if !ok {
		return "", false
	}
	return opt.RRuleString(), true
}

// ruleFromRRule maps a parsed RRULE back onto a recurrence rule. start
// supplies the time of day, the start date, and the default weekday or
// month day when the RRULE leaves them implicit.
func ruleFromRRule(opt *rrule.ROption, start time.Time) (model.RecurrenceRule, error) {
	if opt.Interval > 1 {
		return model.RecurrenceRule{}, fmt.Errorf("%w: interval %d", ErrUnsupportedRule, opt.Interval)
	}
	if opt.Count != 0 || !opt.Until.IsZero() {
		return model.RecurrenceRule{}, fmt.Errorf("%w: bounded recurrence", ErrUnsupportedRule)
	}
	if len(opt.Bysetpos)+len(opt.Bymonth)+len(opt.Byyearday)+len(opt.Byweekno)+
		len(opt.Byhour)+len(opt.Byminute)+len(opt.Bysecond)+len(opt.Byeaster) > 0 {
		return model.RecurrenceRule{}, fmt.Errorf("%w: unsupported BY* part", ErrUnsupportedRule)
	}

	rule := model.RecurrenceRule{
		TimeOfDay: model.TimeOfDay{Hour: start.Hour(), Minute: start.Minute()},
		MonthEnd:  model.MonthEndClamp28,
	}
	rule.StartDate.Year, rule.StartDate.Month, rule.StartDate.Day = start.Date()

	switch opt.Freq {
	case rrule.DAILY:
		if len(opt.Byweekday)+len(opt.Bymonthday) > 0 {
			return model.RecurrenceRule{}, fmt.Errorf("%w: filtered daily rule", ErrUnsupportedRule)
		}
		rule.Frequency = model.Daily

	case rrule.WEEKLY:
		if len(opt.Bymonthday) > 0 {
			return model.RecurrenceRule{}, fmt.Errorf("%w: weekly rule with BYMONTHDAY", ErrUnsupportedRule)
		}
		rule.Frequency = model.Weekly
		if len(opt.Byweekday) == 0 {
			rule.WeeklyDays = []time.Weekday{start.Weekday()}
		}
		for i := range opt.Byweekday {
			// rrule-go numbers weekdays from Monday.
			rule.WeeklyDays = append(rule.WeeklyDays, time.Weekday((opt.Byweekday[i].Day()+1)%7))
		}

	case rrule.MONTHLY:
		if len(opt.Byweekday) > 0 || len(opt.Bymonthday) > 1 {
			return model.RecurrenceRule{}, fmt.Errorf("%w: monthly rule by weekday or several days", ErrUnsupportedRule)
		}
		rule.Frequency = model.Monthly
		rule.MonthlyDay = start.Day()
		if len(opt.Bymonthday) == 1 {
			switch d := opt.Bymonthday[0]; {
			case d == -1:
				rule.MonthlyDay = 31
				rule.MonthEnd = model.MonthEndLastDay
			case d >= 1 && d <= 31:
				rule.MonthlyDay = d
			default:
				return model.RecurrenceRule{}, fmt.Errorf("%w: BYMONTHDAY=%d", ErrUnsupportedRule, d)
			}
		}

	default:
		return model.RecurrenceRule{}, fmt.Errorf("%w: frequency %v", ErrUnsupportedRule, opt.Freq)
	}

	return rule, nil
}
