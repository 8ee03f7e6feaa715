package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"remindcal/internal/config"
	"remindcal/internal/ics"
	appLog "remindcal/internal/log"
	"remindcal/internal/model"
	"remindcal/internal/refresh"
	"remindcal/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	count      int
	debug      bool
}

func main() {
	appLog.Info("remindcal starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI flags override config file values if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.count > 0 {
		conf.PreviewCount = min(flags.count, config.MaxPreviewCount)
	}
	level := appLog.ParseLevel(conf.LogLevel)
	if flags.debug {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	loc := conf.Location()
	reminders := append(conf.ReminderModels(), importReminders(conf, loc)...)

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"refresh", conf.RefreshCron,
		"preview_count", conf.PreviewCount,
		"reminder_count", len(reminders),
		"once", flags.once,
	)

	sched, err := refresh.New(reminders, refresh.Options{
		Location: loc,
		Cron:     conf.RefreshCron,
		Count:    conf.PreviewCount,
	})
	if err != nil {
		appLog.Error("failed to build refresher", err)
		os.Exit(1)
	}

	if flags.once {
		printAgenda(os.Stdout, sched.Snapshot())
		return
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		appLog.Error("failed to start refresh schedule", err)
		os.Exit(1)
	}

	srv := web.NewServer(conf, sched)
	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		appLog.Error("HTTP server failed", err)
		sched.Stop()
		os.Exit(1)
	}

	sched.Stop()
	appLog.Info("remindcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/remindcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Print upcoming runs of all reminders and exit")
	flag.IntVar(&cfg.count, "count", 0, "Runs per reminder (overrides config preview_count if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}

// importReminders loads reminders from the configured .ics files and feed
// URLs. Sources that fail to load are logged and skipped.
func importReminders(conf *config.Config, loc *time.Location) []model.Reminder {
	if len(conf.ImportICS) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fetcher := ics.NewFetcher(conf.CacheDir)
	out := make([]model.Reminder, 0)
	for _, src := range conf.ImportICS {
		rs, err := fetcher.Import(ctx, src, loc)
		if err != nil {
			appLog.Error("ics import failed", err, "source", src)
			continue
		}
		out = append(out, rs...)
	}
	return out
}

func printAgenda(w io.Writer, snap *refresh.Snapshot) {
	for _, rr := range snap.Reminders {
		state := "enabled"
		if !rr.Reminder.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(w, "%s  %s [%s, %s]\n", rr.Reminder.ID, rr.Reminder.Name, rr.Reminder.Channel, state)
		if len(rr.Next) == 0 {
			fmt.Fprintln(w, "    (no start date)")
		}
		for _, t := range rr.Next {
			fmt.Fprintf(w, "    %s\n", t.Format("Mon 02 Jan 2006 15:04 MST"))
		}
	}
}
