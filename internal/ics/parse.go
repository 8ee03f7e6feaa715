package ics

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/golang-sql/civil"
	"github.com/teambition/rrule-go"

	appLog "remindcal/internal/log"
	"remindcal/internal/model"
)

// ParseFile reads an .ics file and converts its recurring events into
// reminders. See ParseCalendar.
func ParseFile(path string, loc *time.Location) ([]model.Reminder, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ics %s: %w", path, err)
	}
	return ParseCalendar(body, loc)
}

// ParseCalendar converts every VEVENT carrying a supported RRULE into an
// enabled reminder evaluated in loc.
//
//   - UID becomes the reminder ID, SUMMARY its name, DESCRIPTION its template.
//   - DTSTART supplies the start date and time of day (converted to loc);
//     all-day events default to 09:00.
//   - Events without RRULE, or with an RRULE that has no reminder
//     equivalent, are logged and skipped.
func ParseCalendar(body []byte, loc *time.Location) ([]model.Reminder, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse ics: %w", err)
	}

	reminders := make([]model.Reminder, 0)
	for _, ve := range cal.Events() {
		r, perr := parseVEvent(ve, loc)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Warn("ics vevent skipped", "reason", perr.Error())
			continue
		}
		reminders = append(reminders, r)
	}

	appLog.Info("ics parse completed", "event_count", len(cal.Events()), "reminder_count", len(reminders))
	return reminders, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (model.Reminder, error) {
	var out model.Reminder

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.ID = uidProp.Value
	out.Enabled = true
	out.Channel = model.ChannelTelegram

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Name = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Template = p.Value
	}
	if p := ve.GetProperty(ical.ComponentProperty("X-REMINDCAL-CHANNEL")); p != nil {
		if ch := model.Channel(p.Value); ch == model.ChannelWhatsApp {
			out.Channel = ch
		}
	}

	rruleProp := ve.GetProperty(ical.ComponentPropertyRrule)
	if rruleProp == nil || rruleProp.Value == "" {
		return out, fmt.Errorf("uid %s: not recurring", out.ID)
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, fmt.Errorf("uid %s: missing DTSTART", out.ID)
	}
	var start time.Time
	if isAllDay(dtStart) {
		day, err := time.ParseInLocation("20060102", strings.TrimSpace(dtStart.Value), loc)
		if err != nil {
			return out, fmt.Errorf("uid %s: DTSTART: %w", out.ID, err)
		}
		start = model.DefaultTimeOfDay.On(civil.DateOf(day), loc)
	} else {
		at, err := ve.GetStartAt()
		if err != nil {
			return out, fmt.Errorf("uid %s: DTSTART: %w", out.ID, err)
		}
		start = at.In(loc)
	}

	opt, err := rrule.StrToROption(rruleProp.Value)
	if err != nil {
		return out, fmt.Errorf("uid %s: RRULE: %w", out.ID, err)
	}
	out.Rule, err = ruleFromRRule(opt, start)
	if err != nil {
		return out, fmt.Errorf("uid %s: %w", out.ID, err)
	}
	return out, nil
}

// isAllDay reports whether DTSTART has VALUE=DATE or a date-only value.
func isAllDay(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters[string(ical.ParameterValue)]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}
