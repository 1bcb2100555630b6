package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jmhodges/clock"

	"github.com/conorfennell/wristreminder/internal/calendar"
	"github.com/conorfennell/wristreminder/internal/display"
	"github.com/conorfennell/wristreminder/internal/domain"
	"github.com/conorfennell/wristreminder/internal/reconcile"
	"github.com/conorfennell/wristreminder/internal/reminders"
	"github.com/conorfennell/wristreminder/internal/stats"
)

// SyncRunner runs one calendar sync.
type SyncRunner interface {
	Run(ctx context.Context) (reconcile.Result, error)
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	reminders *reminders.Service
	stats     *stats.Service
	syncer    SyncRunner
	loc       *time.Location
	clk       clock.Clock
	router    *http.ServeMux
}

// NewServer creates and configures a new server. syncer may be nil when no
// calendar sources are configured.
func NewServer(svc *reminders.Service, st *stats.Service, syncer SyncRunner, loc *time.Location, clk clock.Clock) *Server {
	if clk == nil {
		clk = clock.New()
	}
	if loc == nil {
		loc = time.Local
	}
	s := &Server{
		reminders: svc,
		stats:     st,
		syncer:    syncer,
		loc:       loc,
		clk:       clk,
		router:    http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /health", s.handleHealth())

	s.router.HandleFunc("GET /reminders", s.handleListReminders())
	s.router.HandleFunc("POST /reminders", s.handleCreateReminder())
	s.router.HandleFunc("GET /reminders/{id}", s.handleGetReminder())
	s.router.HandleFunc("PUT /reminders/{id}", s.handleUpdateReminder())
	s.router.HandleFunc("DELETE /reminders/{id}", s.handleDeleteReminder())
	s.router.HandleFunc("POST /reminders/{id}/complete", s.handleCompleteReminder())

	s.router.HandleFunc("GET /settings/{priority}", s.handleGetSettings())
	s.router.HandleFunc("PUT /settings/{priority}", s.handlePutSettings())

	s.router.HandleFunc("POST /sync", s.handleSync())
	s.router.HandleFunc("GET /stats", s.handleStats())
	s.router.HandleFunc("GET /calendar.ics", s.handleExport())
}

// reminderView is a reminder with its display labels.
type reminderView struct {
	domain.Reminder
	DateLabel     string `json:"date_label"`
	TimeLabel     string `json:"time_label"`
	PriorityLabel string `json:"priority_label"`
}

func (s *Server) view(r domain.Reminder) reminderView {
	now := s.clk.Now().In(s.loc)
	return reminderView{
		Reminder:      r,
		DateLabel:     display.HumanizeDate(r.Date, now),
		TimeLabel:     display.HumanizeTime(r.Time, now),
		PriorityLabel: domain.DescribePriority(r.Priority),
	}
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// handleListReminders returns every reminder, or only pending ones with ?pending=true.
func (s *Server) handleListReminders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := s.reminders.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		pendingOnly := r.URL.Query().Get("pending") == "true"
		views := make([]reminderView, 0, len(all))
		for _, rem := range all {
			if pendingOnly && rem.Completed {
				continue
			}
			views = append(views, s.view(rem))
		}
		writeJSON(w, http.StatusOK, map[string]any{"reminders": views})
	}
}

func (s *Server) handleCreateReminder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rem domain.Reminder
		if err := decode(r, &rem); err != nil {
			writeError(w, err)
			return
		}
		id, err := s.reminders.Create(r.Context(), rem)
		if err != nil && id == 0 {
			writeError(w, err)
			return
		}
		resp := map[string]any{"id": id}
		if err != nil {
			// Stored but not scheduled.
			resp["warning"] = err.Error()
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

func (s *Server) handleGetReminder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, err)
			return
		}
		rem, err := s.reminders.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.view(rem))
	}
}

func (s *Server) handleUpdateReminder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, err)
			return
		}
		var rem domain.Reminder
		if err := decode(r, &rem); err != nil {
			writeError(w, err)
			return
		}
		rem.ID = id
		if err := s.reminders.Update(r.Context(), rem); err != nil {
			writeError(w, err)
			return
		}
		updated, err := s.reminders.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.view(updated))
	}
}

func (s *Server) handleDeleteReminder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := s.reminders.Delete(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleCompleteReminder sets the completion flag. An empty body completes
// the reminder; {"completed": false} reopens it.
func (s *Server) handleCompleteReminder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, err)
			return
		}
		body := struct {
			Completed *bool `json:"completed"`
		}{}
		if r.ContentLength != 0 {
			if err := decode(r, &body); err != nil {
				writeError(w, err)
				return
			}
		}
		completed := body.Completed == nil || *body.Completed
		if err := s.reminders.SetCompleted(r.Context(), id, completed); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "completed": completed})
	}
}

func (s *Server) handleGetSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		priority, err := pathPriority(r)
		if err != nil {
			writeError(w, err)
			return
		}
		settings, err := s.reminders.Settings(r.Context(), priority)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"settings":    settings,
			"description": settings.Describe(),
			"suggested":   domain.SuggestedSettings(priority),
		})
	}
}

func (s *Server) handlePutSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		priority, err := pathPriority(r)
		if err != nil {
			writeError(w, err)
			return
		}
		var settings domain.Settings
		if err := decode(r, &settings); err != nil {
			writeError(w, err)
			return
		}
		settings.Priority = priority
		if err := s.reminders.SaveSettings(r.Context(), settings); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"settings":    settings,
			"description": settings.Describe(),
		})
	}
}

// handleSync triggers a calendar sync in the foreground.
func (s *Server) handleSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.syncer == nil {
			http.Error(w, "No calendar sources configured", http.StatusServiceUnavailable)
			return
		}
		res, err := s.syncer.Run(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := s.stats.Summary(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"summary":         sum,
			"completion_rate": stats.FormatRate(sum.CompletionRate),
			"today_rate":      stats.FormatRate(sum.TodayRate),
		})
	}
}

func (s *Server) handleExport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := s.reminders.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		body, err := calendar.Export(all, s.loc)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Write([]byte(body))
	}
}

var errBadRequest = errors.New("bad request")

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadRequest
	}
	return id, nil
}

func pathPriority(r *http.Request) (int, error) {
	p, err := strconv.Atoi(r.PathValue("priority"))
	if err != nil || p < domain.PriorityLow || p > domain.PriorityUrgent {
		return 0, errBadRequest
	}
	return p, nil
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	body := map[string]string{"error": err.Error()}
	var authErr *domain.AuthError

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, domain.ErrInvalidReminder):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrPermissionDenied):
		status = http.StatusConflict
	case errors.As(err, &authErr):
		status = http.StatusUnauthorized
		body["recovery_url"] = authErr.RecoveryURL
	case errors.Is(err, domain.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrNetworkUnavailable):
		status = http.StatusBadGateway
	default:
		slog.Error("Request failed", "error", err)
	}
	writeJSON(w, status, body)
}
