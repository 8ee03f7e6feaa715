package web

import (
	"time"

	"remindcal/internal/config"
	"remindcal/internal/model"
)

// previewRequest is the body of POST /api/preview. Field names match the
// schedule section of a reminder in the config file.
type previewRequest struct {
	Freq       string `json:"freq" validate:"required,oneof=daily weekly monthly"`
	Time       string `json:"time" validate:"required,datetime=15:04"`
	WeeklyDays []int  `json:"weekly_days" validate:"max=7,dive,min=0,max=6"`
	MonthlyDay int    `json:"monthly_day" validate:"required_if=Freq monthly,min=0,max=31"`
	// StartDate may be empty; the schedule then has no runs yet.
	StartDate string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	MonthEnd  string `json:"month_end" validate:"omitempty,oneof=clamp28 last_day"`
}

func (p previewRequest) schedule() config.ScheduleConfig {
	return config.ScheduleConfig{
		Freq:       p.Freq,
		Time:       p.Time,
		WeeklyDays: p.WeeklyDays,
		MonthlyDay: p.MonthlyDay,
		StartDate:  p.StartDate,
		MonthEnd:   p.MonthEnd,
	}
}

// previewResponse is the JSON response shape for /api/preview.
type previewResponse struct {
	Timezone    string      `json:"timezone"`
	Now         time.Time   `json:"now"`
	RRule       string      `json:"rrule,omitempty"`
	Occurrences []time.Time `json:"occurrences"`
}

// remindersResponse is the JSON response shape for /api/reminders.
type remindersResponse struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Timezone    string          `json:"timezone"`
	Reminders   []reminderDTO   `json:"reminders"`
	Agenda      []occurrenceDTO `json:"agenda"`
}

type scheduleDTO struct {
	Freq       string `json:"freq"`
	Time       string `json:"time"`
	WeeklyDays []int  `json:"weekly_days"`
	MonthlyDay int    `json:"monthly_day"`
	StartDate  string `json:"start_date"`
	MonthEnd   string `json:"month_end"`
}

type reminderDTO struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Channel  string      `json:"channel"`
	Enabled  bool        `json:"enabled"`
	Schedule scheduleDTO `json:"schedule"`
	RRule    string      `json:"rrule,omitempty"`
	Next     []time.Time `json:"next"`
}

// occurrenceDTO is a JSON-friendly view of occurrences.
type occurrenceDTO struct {
	ReminderID  string    `json:"reminder_id"`
	Name        string    `json:"name"`
	Channel     string    `json:"channel"`
	InstanceKey string    `json:"instance_key"`
	Start       time.Time `json:"start"`
}

func newReminderDTO(r model.Reminder, rrule string, next []time.Time) reminderDTO {
	days := make([]int, 0, len(r.Rule.WeeklyDays))
	for _, d := range r.Rule.WeeklyDays {
		days = append(days, int(d))
	}
	start := ""
	if r.Rule.HasStart() {
		start = r.Rule.StartDate.String()
	}

	return reminderDTO{
		ID:      r.ID,
		Name:    r.Name,
		Channel: string(r.Channel),
		Enabled: r.Enabled,
		Schedule: scheduleDTO{
			Freq:       string(r.Rule.Frequency),
			Time:       r.Rule.TimeOfDay.String(),
			WeeklyDays: days,
			MonthlyDay: r.Rule.MonthlyDay,
			StartDate:  start,
			MonthEnd:   string(r.Rule.MonthEnd),
		},
		RRule: rrule,
		Next:  nonNil(next),
	}
}

func newOccurrenceDTO(o model.Occurrence) occurrenceDTO {
	return occurrenceDTO{
		ReminderID:  o.ReminderID,
		Name:        o.Name,
		Channel:     string(o.Channel),
		InstanceKey: o.InstanceKey,
		Start:       o.Start,
	}
}
