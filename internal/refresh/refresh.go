package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"remindcal/internal/ics"
	appLog "remindcal/internal/log"
	"remindcal/internal/model"
	"remindcal/internal/schedule"
)

// ReminderRuns is one reminder together with its upcoming runs.
type ReminderRuns struct {
	Reminder model.Reminder
	// RRule is the equivalent RFC 5545 rule, empty when none exists.
	RRule string
	Next  []time.Time
}

// Snapshot is the result of one refresh.
type Snapshot struct {
	GeneratedAt time.Time
	Location    *time.Location
	Reminders   []ReminderRuns
	Agenda      []model.Occurrence
}

// Options configures a Refresher.
type Options struct {
	// Location is the timezone rules are evaluated in. If nil, time.Local
	// is used.
	Location *time.Location
	// Cron is the refresh schedule in standard 5-field cron syntax.
	Cron string
	// Count is the number of runs computed per reminder.
	Count int
	// Now overrides the clock; used by tests.
	Now func() time.Time
}

// Refresher keeps an in-memory snapshot of upcoming runs for a fixed set of
// reminders and rebuilds it on a cron schedule.
type Refresher struct {
	reminders []model.Reminder
	opts      Options

	mu       sync.RWMutex
	snapshot *Snapshot

	cron *cron.Cron
}

// New constructs a Refresher. It does not start the schedule.
func New(reminders []model.Reminder, opts Options) (*Refresher, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Count <= 0 {
		return nil, errors.New("refresh: Count must be positive")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Refresher{
		reminders: append([]model.Reminder(nil), reminders...),
		opts:      opts,
		cron:      cron.New(cron.WithLocation(opts.Location)),
	}, nil
}

// Start builds the first snapshot and schedules later rebuilds. The
// schedule stops when ctx is canceled.
func (r *Refresher) Start(ctx context.Context) error {
	if _, err := r.cron.AddFunc(r.opts.Cron, r.Refresh); err != nil {
		return fmt.Errorf("refresh: invalid cron %q: %w", r.opts.Cron, err)
	}

	r.Refresh()
	r.cron.Start()
	appLog.Info("refresh schedule started", "cron", r.opts.Cron, "timezone", r.opts.Location.String())

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
}

// Refresh rebuilds the snapshot now.
func (r *Refresher) Refresh() {
	now := r.opts.Now().In(r.opts.Location)

	snap := &Snapshot{
		GeneratedAt: now,
		Location:    r.opts.Location,
		Reminders:   make([]ReminderRuns, 0, len(r.reminders)),
		Agenda:      schedule.Agenda(r.reminders, now, r.opts.Count),
	}
	for _, rem := range r.reminders {
		rr, _ := ics.RRule(rem.Rule)
		snap.Reminders = append(snap.Reminders, ReminderRuns{
			Reminder: rem,
			RRule:    rr,
			Next:     schedule.Generate(rem.Rule, now, r.opts.Count),
		})
	}

	r.mu.Lock()
	r.snapshot = snap
	r.mu.Unlock()

	appLog.Debug("refresh completed", "reminders", len(r.reminders), "agenda", len(snap.Agenda))
}

// Snapshot returns the latest snapshot, building one if none exists yet.
func (r *Refresher) Snapshot() *Snapshot {
	r.mu.RLock()
	snap := r.snapshot
	r.mu.RUnlock()
	if snap != nil {
		return snap
	}
	r.Refresh()

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// Reminders returns the reminders this Refresher was built with.
func (r *Refresher) Reminders() []model.Reminder {
	return append([]model.Reminder(nil), r.reminders...)
}

// Find returns the reminder with the given ID.
func (r *Refresher) Find(id string) (model.Reminder, bool) {
	for _, rem := range r.reminders {
		if rem.ID == id {
			return rem, true
		}
	}
	return model.Reminder{}, false
}

// Location returns the timezone rules are evaluated in.
func (r *Refresher) Location() *time.Location {
	return r.opts.Location
}

// Now returns the refresher's clock reading in its timezone.
func (r *Refresher) Now() time.Time {
	return r.opts.Now().In(r.opts.Location)
}

// Count returns the configured number of runs per reminder.
func (r *Refresher) Count() int {
	return r.opts.Count
}
