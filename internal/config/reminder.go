package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"

	"remindcal/internal/model"
)

// ScheduleConfig mirrors the schedule editor fields of a reminder.
type ScheduleConfig struct {
	// Freq is one of "daily", "weekly", "monthly".
	Freq string `yaml:"freq" json:"freq"`
	// Time is the "HH:MM" time of day in the configured timezone.
	Time string `yaml:"time" json:"time"`
	// WeeklyDays are weekday indices, 0=Sunday..6=Saturday.
	WeeklyDays []int `yaml:"weekly_days" json:"weekly_days"`
	// MonthlyDay is the day of month, 1-31.
	MonthlyDay int `yaml:"monthly_day" json:"monthly_day"`
	// StartDate is an ISO "YYYY-MM-DD" date. Empty means not set yet.
	StartDate string `yaml:"start_date" json:"start_date"`
	// MonthEnd is "clamp28" (default) or "last_day".
	MonthEnd string `yaml:"month_end,omitempty" json:"month_end,omitempty"`
}

// ReminderConfig describes one reminder as stored in the config file.
type ReminderConfig struct {
	ID       string         `yaml:"id" json:"id"`
	Name     string         `yaml:"name" json:"name"`
	Channel  string         `yaml:"channel" json:"channel"`
	Template string         `yaml:"template" json:"template"`
	Enabled  bool           `yaml:"enabled" json:"enabled"`
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`
}

// normalize fills defaults in place. seen counts earlier reminders per name
// so that a repeated name still gets its own derived ID.
func (r *ReminderConfig) normalize(seen map[string]int) {
	if r.ID == "" {
		seed := r.Name
		if n := seen[r.Name]; n > 0 {
			seed += "#" + strconv.Itoa(n)
		}
		seen[r.Name]++
		r.ID = uuid.NewSHA1(reminderNamespace, []byte(seed)).String()
	}

	r.Channel = strings.ToLower(strings.TrimSpace(r.Channel))
	switch model.Channel(r.Channel) {
	case model.ChannelTelegram, model.ChannelWhatsApp:
	default:
		r.Channel = string(model.ChannelTelegram)
	}

	r.Schedule.Freq = strings.ToLower(strings.TrimSpace(r.Schedule.Freq))
	switch model.Frequency(r.Schedule.Freq) {
	case model.Daily, model.Weekly, model.Monthly:
	default:
		r.Schedule.Freq = string(model.Daily)
	}

	r.Schedule.MonthEnd = strings.ToLower(strings.TrimSpace(r.Schedule.MonthEnd))
	switch model.MonthEndPolicy(r.Schedule.MonthEnd) {
	case model.MonthEndClamp28, model.MonthEndLastDay:
	default:
		r.Schedule.MonthEnd = ""
	}
	if r.Schedule.Time == "" {
		r.Schedule.Time = model.DefaultTimeOfDay.String()
	}
	if r.Schedule.MonthlyDay < 1 || r.Schedule.MonthlyDay > 31 {
		r.Schedule.MonthlyDay = 1
	}
}

// Reminder converts the stored fields into a model.Reminder. Conversion is
// lenient: an unparsable start date leaves the rule without a start.
func (r ReminderConfig) Reminder() model.Reminder {
	return model.Reminder{
		ID:       r.ID,
		Name:     r.Name,
		Channel:  model.Channel(r.Channel),
		Template: r.Template,
		Enabled:  r.Enabled,
		Rule:     r.Schedule.Rule(),
	}
}

// Rule converts the schedule editor fields into a recurrence rule.
func (s ScheduleConfig) Rule() model.RecurrenceRule {
	days := make([]time.Weekday, 0, len(s.WeeklyDays))
	for _, d := range s.WeeklyDays {
		days = append(days, time.Weekday(d))
	}

	rule := model.RecurrenceRule{
		Frequency:  model.Frequency(strings.ToLower(strings.TrimSpace(s.Freq))),
		TimeOfDay:  model.ParseTimeOfDay(s.Time),
		WeeklyDays: days,
		MonthlyDay: s.MonthlyDay,
		MonthEnd:   model.MonthEndClamp28,
	}
	if model.MonthEndPolicy(strings.ToLower(strings.TrimSpace(s.MonthEnd))) == model.MonthEndLastDay {
		rule.MonthEnd = model.MonthEndLastDay
	}
	if d, err := civil.ParseDate(strings.TrimSpace(s.StartDate)); err == nil {
		rule.StartDate = d
	}
	return rule
}

// ReminderModels converts all configured reminders.
func (c *Config) ReminderModels() []model.Reminder {
	out := make([]model.Reminder, 0, len(c.Reminders))
	for _, r := range c.Reminders {
		out = append(out, r.Reminder())
	}
	return out
}
