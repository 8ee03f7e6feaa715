package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	"remindcal/internal/config"
	"remindcal/internal/ics"
	appLog "remindcal/internal/log"
	"remindcal/internal/refresh"
	"remindcal/internal/schedule"
)

// Server provides the HTTP API over the configured reminders.
type Server struct {
	cfg       *config.Config
	schedules *refresh.Refresher
	validate  *validator.Validate
	router    chi.Router
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, schedules *refresh.Refresher) *Server {
	s := &Server{
		cfg:       cfg,
		schedules: schedules,
		validate:  validator.New(),
		router:    chi.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for this server, wrapped with Basic Auth
// when it is configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// ListenAndServe serves on cfg.Listen until ctx is canceled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password disables auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="remindcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/reminders", s.handleReminders)
		r.Get("/reminders/{id}", s.handleReminder)
		r.Post("/preview", s.handlePreview)
		r.Get("/calendar.ics", s.handleCalendar)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReminders returns the latest refresh snapshot.
func (s *Server) handleReminders(w http.ResponseWriter, _ *http.Request) {
	snap := s.schedules.Snapshot()

	resp := remindersResponse{
		GeneratedAt: snap.GeneratedAt,
		Timezone:    snap.Location.String(),
		Reminders:   make([]reminderDTO, 0, len(snap.Reminders)),
		Agenda:      make([]occurrenceDTO, 0, len(snap.Agenda)),
	}
	for _, rr := range snap.Reminders {
		resp.Reminders = append(resp.Reminders, newReminderDTO(rr.Reminder, rr.RRule, rr.Next))
	}
	for _, occ := range snap.Agenda {
		resp.Agenda = append(resp.Agenda, newOccurrenceDTO(occ))
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleReminder returns one reminder with freshly computed runs.
//
// GET /api/reminders/{id}?count=5
func (s *Server) handleReminder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rem, ok := s.schedules.Find(id)
	if !ok {
		writeError(w, http.StatusNotFound, "reminder not found")
		return
	}

	count, err := s.parseCount(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rr, _ := ics.RRule(rem.Rule)
	next := schedule.Generate(rem.Rule, s.schedules.Now(), count)
	writeJSON(w, http.StatusOK, newReminderDTO(rem, rr, next))
}

// handlePreview computes runs for an unsaved schedule so an editor can show
// them before the reminder is stored.
//
// POST /api/preview?count=5
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	count, err := s.parseCount(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req previewRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	rule := req.schedule().Rule()
	now := s.schedules.Now()
	rr, _ := ics.RRule(rule)

	resp := previewResponse{
		Timezone:    now.Location().String(),
		Now:         now,
		RRule:       rr,
		Occurrences: nonNil(schedule.Generate(rule, now, count)),
	}
	appLog.Debug("api preview", "freq", req.Freq, "count", count, "result", len(resp.Occurrences))
	writeJSON(w, http.StatusOK, resp)
}

// handleCalendar exports all enabled reminders as iCalendar.
func (s *Server) handleCalendar(w http.ResponseWriter, _ *http.Request) {
	body, err := ics.Export(s.schedules.Reminders(), ics.ExportConfig{
		Location: s.schedules.Location(),
		Now:      s.schedules.Now(),
		Count:    s.schedules.Count(),
	})
	if err != nil {
		appLog.Error("api calendar: export failed", err)
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="reminders.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// parseCount reads ?count=, defaulting to the configured preview count.
func (s *Server) parseCount(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("count")
	if raw == "" {
		return s.schedules.Count(), nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > config.MaxPreviewCount {
		return 0, errors.New("count must be an integer between 0 and " + strconv.Itoa(config.MaxPreviewCount))
	}
	return n, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Field()+" failed "+fe.Tag())
	}
	return "invalid schedule: " + strings.Join(msgs, "; ")
}

func nonNil(ts []time.Time) []time.Time {
	if ts == nil {
		return []time.Time{}
	}
	return ts
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
