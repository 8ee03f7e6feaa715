package ics

import (
	"errors"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "remindcal/internal/log"
	"remindcal/internal/model"
	"remindcal/internal/schedule"
)

const (
	productID = "-//remindcal//reminders//EN"

	// icsLocalLayout is the floating DATE-TIME form used together with TZID.
	icsLocalLayout = "20060102T150405"
)

// ExportConfig controls calendar export.
type ExportConfig struct {
	// Location is the timezone the rules are evaluated in. If nil,
	// time.Local is used.
	Location *time.Location

	// Now is the reference instant. If zero, time.Now() is used.
	Now time.Time

	// Count is the number of runs exported for reminders that cannot be
	// expressed as a single RRULE.
	Count int
}

// Export renders the enabled reminders as an iCalendar document.
//
// A reminder whose rule has an exact RRULE equivalent becomes one VEVENT with
// DTSTART at its next run plus the RRULE. Others become one VEVENT per run,
// limited to cfg.Count. Reminders with no upcoming run are omitted.
//
// RRULEs are only emitted when cfg.Location is UTC or a named IANA zone a
// client can resolve from TZID. For time.Local or a fixed zone every reminder
// is exported as dated runs in UTC, since an RRULE anchored in UTC would
// shift weekdays and wall-clock times of the original zone.
func Export(reminders []model.Reminder, cfg ExportConfig) ([]byte, error) {
	if cfg.Count <= 0 {
		return nil, errors.New("export: Count must be positive")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	now := cfg.Now.In(cfg.Location)

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	tzid, named := tzidFor(cfg.Location, now)

	events := 0
	for _, r := range reminders {
		if !r.Enabled {
			continue
		}

		if rr, ok := RRule(r.Rule); ok && named {
			next := schedule.Generate(r.Rule, now, 1)
			if len(next) == 0 {
				continue
			}
			ev := addEvent(cal, r.ID, r, next[0], now, tzid)
			ev.SetProperty(ical.ComponentPropertyRrule, rr)
			events++
			continue
		}

		for _, occ := range schedule.Upcoming(r, now, cfg.Count) {
			addEvent(cal, r.ID+"/"+occ.InstanceKey, r, occ.Start, now, tzid)
			events++
		}
	}

	appLog.Debug("ics export completed", "reminders", len(reminders), "event_count", events)
	return []byte(cal.Serialize()), nil
}

// tzidFor returns the TZID to write for loc and whether loc is a zone that
// RRULE expansion can follow. An empty TZID means DTSTART is written in UTC.
func tzidFor(loc *time.Location, at time.Time) (string, bool) {
	switch loc {
	case time.UTC:
		return "", true
	case time.Local:
		return "", false
	}
	name := loc.String()
	if name == "" || name == "UTC" || name == "Local" {
		return "", false
	}
	named, err := time.LoadLocation(name)
	if err != nil {
		return "", false
	}
	// A fixed zone that happens to share a zoneinfo name must agree on offset.
	_, want := at.In(loc).Zone()
	_, got := at.In(named).Zone()
	if want != got {
		return "", false
	}
	return name, true
}

func addEvent(cal *ical.Calendar, uid string, r model.Reminder, start, stamp time.Time, tzid string) *ical.VEvent {
	ev := cal.AddEvent(uid)
	ev.SetDtStampTime(stamp)
	if tzid == "" {
		ev.SetStartAt(start.UTC())
	} else {
		ev.SetProperty(ical.ComponentPropertyDtStart, start.Format(icsLocalLayout),
			&ical.KeyValues{Key: string(ical.ParameterTzid), Value: []string{tzid}})
	}
	ev.SetSummary(r.Name)
	if r.Template != "" {
		ev.SetDescription(r.Template)
	}
	if r.Channel != "" {
		ev.SetProperty(ical.ComponentProperty("X-REMINDCAL-CHANNEL"), string(r.Channel))
	}
	return ev
}
