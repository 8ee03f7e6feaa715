package ics

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	ical "github.com/arran4/golang-ical"
	"github.com/golang-sql/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"

	"remindcal/internal/model"
	"remindcal/internal/schedule"
)

func jakarta(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	return loc
}

func TestRRule(t *testing.T) {
	nine := model.TimeOfDay{Hour: 9}

	tests := []struct {
		name   string
		rule   model.RecurrenceRule
		want   string
		wantOK bool
	}{
		{"daily", model.RecurrenceRule{Frequency: model.Daily, TimeOfDay: nine}, "FREQ=DAILY", true},
		{"weekly", model.RecurrenceRule{Frequency: model.Weekly, WeeklyDays: []time.Weekday{time.Friday, time.Monday, time.Wednesday}}, "FREQ=WEEKLY;BYDAY=MO,WE,FR", true},
		{"weekly default monday", model.RecurrenceRule{Frequency: model.Weekly}, "FREQ=WEEKLY;BYDAY=MO", true},
		{"monthly", model.RecurrenceRule{Frequency: model.Monthly, MonthlyDay: 5}, "FREQ=MONTHLY;BYMONTHDAY=5", true},
		{"monthly 28", model.RecurrenceRule{Frequency: model.Monthly, MonthlyDay: 28}, "FREQ=MONTHLY;BYMONTHDAY=28", true},
		{"monthly 31 last day", model.RecurrenceRule{Frequency: model.Monthly, MonthlyDay: 31, MonthEnd: model.MonthEndLastDay}, "FREQ=MONTHLY;BYMONTHDAY=-1", true},
		{"monthly 30 clamped", model.RecurrenceRule{Frequency: model.Monthly, MonthlyDay: 30}, "", false},
		{"monthly 30 last day", model.RecurrenceRule{Frequency: model.Monthly, MonthlyDay: 30, MonthEnd: model.MonthEndLastDay}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RRule(tt.rule)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// An expressible rule must produce the same runs through rrule-go as
// through the generator.
func TestROption_MatchesGenerator(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	start := civil.Date{Year: 2024, Month: time.January, Day: 17}

	rules := []model.RecurrenceRule{
		{Frequency: model.Daily, TimeOfDay: model.TimeOfDay{Hour: 6, Minute: 30}},
		{Frequency: model.Weekly, TimeOfDay: model.TimeOfDay{Hour: 9}, WeeklyDays: []time.Weekday{time.Sunday, time.Tuesday, time.Saturday}},
		{Frequency: model.Monthly, TimeOfDay: model.TimeOfDay{Hour: 9}, MonthlyDay: 1},
		{Frequency: model.Monthly, TimeOfDay: model.TimeOfDay{Hour: 20}, MonthlyDay: 28},
		{Frequency: model.Monthly, TimeOfDay: model.TimeOfDay{Hour: 9}, MonthlyDay: 31, MonthEnd: model.MonthEndLastDay},
	}
	nows := []time.Time{
		time.Date(2024, time.January, 1, 0, 0, 0, 0, loc),
		time.Date(2024, time.February, 29, 9, 30, 0, 0, loc),
		time.Date(2024, time.December, 28, 23, 59, 0, 0, loc),
	}

	const count = 15
	for _, base := range rules {
		for _, now := range nows {
			rule := base
			rule.StartDate = start

			want := schedule.Generate(rule, now, count)
			require.Len(t, want, count)

			opt, ok := ROption(rule)
			require.True(t, ok)
			opt.Dtstart = want[0]
			opt.Count = count
			rr, err := rrule.NewRRule(opt)
			require.NoError(t, err)

			got := rr.All()
			require.Len(t, got, count, opt.RRuleString())
			for i := range got {
				assert.True(t, want[i].Equal(got[i]), "%s #%d: want %s got %s", opt.RRuleString(), i, want[i], got[i])
			}
		}
	}
}

func icsDoc(lines ...string) []byte {
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN"}, lines...)
	all = append(all, "END:VCALENDAR", "")
	return []byte(strings.Join(all, "\r\n"))
}

func TestParseCalendar(t *testing.T) {
	loc := jakarta(t)
	body := icsDoc(
		"BEGIN:VEVENT",
		"UID:weekly-1",
		"DTSTAMP:20240301T000000Z",
		"DTSTART;TZID=Asia/Jakarta:20240304T090000",
		"SUMMARY:Weekly sync",
		"DESCRIPTION:Halo {name}",
		"X-REMINDCAL-CHANNEL:whatsapp",
		"RRULE:FREQ=WEEKLY;BYDAY=MO,WE,FR",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:monthly-last",
		"DTSTAMP:20240301T000000Z",
		"DTSTART:20240131T020000Z",
		"RRULE:FREQ=MONTHLY;BYMONTHDAY=-1",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:allday-daily",
		"DTSTAMP:20240301T000000Z",
		"DTSTART;VALUE=DATE:20240310",
		"RRULE:FREQ=DAILY",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:biweekly",
		"DTSTAMP:20240301T000000Z",
		"DTSTART:20240304T020000Z",
		"RRULE:FREQ=WEEKLY;INTERVAL=2",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:oneoff",
		"DTSTAMP:20240301T000000Z",
		"DTSTART:20240304T020000Z",
		"END:VEVENT",
	)

	got, err := ParseCalendar(body, loc)
	require.NoError(t, err)
	require.Len(t, got, 3)

	weekly := got[0]
	assert.Equal(t, "weekly-1", weekly.ID)
	assert.Equal(t, "Weekly sync", weekly.Name)
	assert.Equal(t, "Halo {name}", weekly.Template)
	assert.Equal(t, model.ChannelWhatsApp, weekly.Channel)
	assert.True(t, weekly.Enabled)
	assert.Equal(t, model.RecurrenceRule{
		Frequency:  model.Weekly,
		TimeOfDay:  model.TimeOfDay{Hour: 9},
		WeeklyDays: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
		StartDate:  civil.Date{Year: 2024, Month: time.March, Day: 4},
		MonthEnd:   model.MonthEndClamp28,
	}, weekly.Rule)

	monthly := got[1]
	assert.Equal(t, model.ChannelTelegram, monthly.Channel)
	assert.Equal(t, model.Monthly, monthly.Rule.Frequency)
	assert.Equal(t, 31, monthly.Rule.MonthlyDay)
	assert.Equal(t, model.MonthEndLastDay, monthly.Rule.MonthEnd)
	assert.Equal(t, model.TimeOfDay{Hour: 9}, monthly.Rule.TimeOfDay)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.January, Day: 31}, monthly.Rule.StartDate)

	daily := got[2]
	assert.Equal(t, model.Daily, daily.Rule.Frequency)
	assert.Equal(t, model.DefaultTimeOfDay, daily.Rule.TimeOfDay)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.March, Day: 10}, daily.Rule.StartDate)
}

func TestParseCalendar_Errors(t *testing.T) {
	_, err := ParseCalendar(nil, time.UTC)
	assert.Error(t, err)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.ics"), time.UTC)
	assert.Error(t, err)
}

func TestRuleFromRRule_Unsupported(t *testing.T) {
	start := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)

	for _, s := range []string{
		"FREQ=YEARLY",
		"FREQ=DAILY;INTERVAL=3",
		"FREQ=DAILY;COUNT=4",
		"FREQ=DAILY;BYDAY=MO",
		"FREQ=MONTHLY;BYDAY=1MO",
		"FREQ=MONTHLY;BYMONTHDAY=1,15",
		"FREQ=MONTHLY;BYMONTHDAY=-2",
		"FREQ=WEEKLY;BYMONTH=3",
	} {
		t.Run(s, func(t *testing.T) {
			opt, err := rrule.StrToROption(s)
			require.NoError(t, err)

			_, err = ruleFromRRule(opt, start)
			assert.True(t, errors.Is(err, ErrUnsupportedRule), "got %v", err)
		})
	}
}

func TestExport(t *testing.T) {
	loc := jakarta(t)
	now := time.Date(2024, time.March, 4, 8, 0, 0, 0, loc)

	weekly := model.Reminder{
		ID:       "wk",
		Name:     "Weekly sync",
		Channel:  model.ChannelWhatsApp,
		Template: "Halo {name}",
		Enabled:  true,
		Rule: model.RecurrenceRule{
			Frequency:  model.Weekly,
			TimeOfDay:  model.TimeOfDay{Hour: 9},
			WeeklyDays: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
			StartDate:  civil.Date{Year: 2024, Month: time.March, Day: 4},
		},
	}
	monthly31 := model.Reminder{
		ID:      "m31",
		Name:    "Tagihan",
		Enabled: true,
		Rule: model.RecurrenceRule{
			Frequency:  model.Monthly,
			TimeOfDay:  model.TimeOfDay{Hour: 9},
			MonthlyDay: 31,
			StartDate:  civil.Date{Year: 2024, Month: time.January, Day: 1},
		},
	}
	disabled := weekly
	disabled.ID = "off"
	disabled.Enabled = false
	noStart := weekly
	noStart.ID = "nostart"
	noStart.Rule.StartDate = civil.Date{}

	body, err := Export([]model.Reminder{weekly, monthly31, disabled, noStart}, ExportConfig{Location: loc, Now: now, Count: 3})
	require.NoError(t, err)

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	require.NoError(t, err)
	require.Len(t, cal.Events(), 4)

	uids := make([]string, 0, 4)
	for _, ev := range cal.Events() {
		uids = append(uids, ev.GetProperty(ical.ComponentPropertyUniqueId).Value)
	}
	assert.Equal(t, []string{
		"wk",
		"m31/2024-03-31T09:00:00+07:00",
		"m31/2024-04-28T09:00:00+07:00",
		"m31/2024-05-31T09:00:00+07:00",
	}, uids)

	first := cal.Events()[0]
	start, err := first.GetStartAt()
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2024, time.March, 4, 9, 0, 0, 0, loc)))
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=MO,WE,FR", first.GetProperty(ical.ComponentPropertyRrule).Value)
	assert.Nil(t, cal.Events()[1].GetProperty(ical.ComponentPropertyRrule))

	// Exported recurring events import back as the same rule.
	back, err := ParseCalendar(body, loc)
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, "wk", back[0].ID)
	assert.Equal(t, model.ChannelWhatsApp, back[0].Channel)
	assert.Equal(t, weekly.Rule.WeeklyDays, back[0].Rule.WeeklyDays)
	assert.Equal(t, weekly.Rule.StartDate, back[0].Rule.StartDate)
	assert.Equal(t, weekly.Rule.TimeOfDay, back[0].Rule.TimeOfDay)
}

func TestExport_UnnamedZoneUsesUTC(t *testing.T) {
	wib := time.FixedZone("WIB", 7*3600)
	now := time.Date(2024, time.March, 4, 5, 0, 0, 0, wib)
	weekly := model.Reminder{
		ID:      "wk",
		Name:    "Pagi",
		Enabled: true,
		Rule: model.RecurrenceRule{
			Frequency:  model.Weekly,
			TimeOfDay:  model.TimeOfDay{Hour: 6},
			WeeklyDays: []time.Weekday{time.Monday},
			StartDate:  civil.Date{Year: 2024, Month: time.March, Day: 4},
		},
	}

	for name, loc := range map[string]*time.Location{"fixed": wib, "unnamed": time.FixedZone("", 7*3600)} {
		t.Run(name, func(t *testing.T) {
			body, err := Export([]model.Reminder{weekly}, ExportConfig{Location: loc, Now: now, Count: 2})
			require.NoError(t, err)
			assert.NotContains(t, string(body), "TZID")

			cal, err := ical.ParseCalendar(bytes.NewReader(body))
			require.NoError(t, err)
			require.Len(t, cal.Events(), 2)

			ev := cal.Events()[0]
			assert.Nil(t, ev.GetProperty(ical.ComponentPropertyRrule))
			// Monday 06:00 WIB is Sunday 23:00 UTC.
			assert.Equal(t, "20240303T230000Z", ev.GetProperty(ical.ComponentPropertyDtStart).Value)
			assert.Equal(t, "wk/2024-03-04T06:00:00+07:00", ev.GetProperty(ical.ComponentPropertyUniqueId).Value)
		})
	}
}

func TestTzidFor(t *testing.T) {
	loc := jakarta(t)
	now := time.Date(2024, time.March, 4, 8, 0, 0, 0, loc)

	tzid, ok := tzidFor(loc, now)
	assert.True(t, ok)
	assert.Equal(t, "Asia/Jakarta", tzid)

	tzid, ok = tzidFor(time.UTC, now)
	assert.True(t, ok)
	assert.Empty(t, tzid)

	_, ok = tzidFor(time.Local, now)
	assert.False(t, ok)

	// Same name as a zoneinfo entry but a different offset.
	_, ok = tzidFor(time.FixedZone("Asia/Jakarta", 3600), now)
	assert.False(t, ok)
}

func TestExport_RequiresCount(t *testing.T) {
	_, err := Export(nil, ExportConfig{Count: 0})
	assert.Error(t, err)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.ics")
	require.NoError(t, os.WriteFile(path, icsDoc(
		"BEGIN:VEVENT",
		"UID:d1",
		"DTSTAMP:20240301T000000Z",
		"DTSTART:20240304T090000Z",
		"RRULE:FREQ=DAILY",
		"END:VEVENT",
	), 0o600))

	got, err := ParseFile(path, time.UTC)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "d1", got[0].ID)
	assert.Equal(t, model.TimeOfDay{Hour: 9}, got[0].Rule.TimeOfDay)
}
