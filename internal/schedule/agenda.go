package schedule

import (
	"sort"
	"time"

	"remindcal/internal/model"
)

// Upcoming returns the next count runs of a single reminder as occurrences.
// The enabled flag is not consulted; callers previewing a disabled reminder
// still get its schedule.
func Upcoming(r model.Reminder, now time.Time, count int) []model.Occurrence {
	starts := Generate(r.Rule, now, count)
	out := make([]model.Occurrence, 0, len(starts))
	for _, start := range starts {
		out = append(out, makeOccurrence(r, start))
	}
	return out
}

// Agenda merges the next perReminder runs of every enabled reminder into one
// list ordered by start time. Runs at the same instant are ordered by
// reminder ID.
func Agenda(reminders []model.Reminder, now time.Time, perReminder int) []model.Occurrence {
	all := make([]model.Occurrence, 0)
	for _, r := range reminders {
		if !r.Enabled {
			continue
		}
		all = append(all, Upcoming(r, now, perReminder)...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].Start.Equal(all[j].Start) {
			return all[i].Start.Before(all[j].Start)
		}
		return all[i].ReminderID < all[j].ReminderID
	})
	return all
}

func makeOccurrence(r model.Reminder, start time.Time) model.Occurrence {
	return model.Occurrence{
		ReminderID: r.ID,
		Name:       r.Name,
		Channel:    r.Channel,
		// Use start time in RFC3339 as a stable per-run key.
		InstanceKey: start.Format(time.RFC3339),
		Start:       start,
	}
}
