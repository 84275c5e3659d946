// Package api exposes the manual test surface, the settings editor, the
// toast and health endpoints over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"forkcast/internal/meals"
	"forkcast/internal/toast"
	"forkcast/internal/vclock"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const maxSettingsBody = 64 << 10

// Harness is the manual operation set of the scheduler.
type Harness interface {
	TriggerTest(ctx context.Context) meals.ReminderEvent
	ScheduleQuick(ctx context.Context) (string, error)
	Settings(ctx context.Context) meals.Settings
	VirtualTime() time.Time
	Reload(ctx context.Context) (meals.Settings, error)
	CheckNow(ctx context.Context) []meals.ReminderEvent
}

// SettingsEditor merges and saves settings edits.
type SettingsEditor interface {
	Update(ctx context.Context, patch []byte) (meals.Settings, error)
}

// Pinger reports storage readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options wires the server's collaborators. Metrics may be nil.
type Options struct {
	Harness  Harness
	Settings SettingsEditor
	Toasts   *toast.Board
	Storage  Pinger
	Metrics  http.Handler
}

type Server struct {
	opts   Options
	logger zerolog.Logger
}

func New(opts Options, logger *zerolog.Logger) *Server {
	return &Server{
		opts:   opts,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/test/trigger", s.trigger)
		r.Post("/test/schedule-quick", s.scheduleQuick)
		r.Get("/settings", s.getSettings)
		r.Put("/settings", s.putSettings)
		r.Get("/time", s.virtualTime)
		r.Post("/reload", s.reload)
		r.Post("/check", s.check)
		r.Get("/toast", s.currentToast)
		r.Delete("/toast/{id}", s.dismissToast)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "resource not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})
	return r
}

// Run serves on port until ctx is cancelled.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	s.logger.Info().Str("addr", srv.Addr).Msg("api server starting")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

type timeResponse struct {
	Time    string    `json:"time"`
	Date    string    `json:"date"`
	Instant time.Time `json:"instant"`
}

type scheduleResponse struct {
	Breakfast string `json:"breakfast"`
}

type checkResponse struct {
	Fired []meals.ReminderEvent `json:"fired"`
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.opts.Storage != nil {
		ctxPing, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if err := s.opts.Storage.Ping(ctxPing); err != nil {
			http.Error(w, "storage not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) trigger(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Harness.TriggerTest(r.Context()))
}

func (s *Server) scheduleQuick(w http.ResponseWriter, r *http.Request) {
	at, err := s.opts.Harness.ScheduleQuick(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("schedule quick reminder failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, scheduleResponse{Breakfast: at})
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Harness.Settings(r.Context()))
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSettingsBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "could not read body"})
		return
	}
	updated, err := s.opts.Settings.Update(r.Context(), body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) virtualTime(w http.ResponseWriter, _ *http.Request) {
	now := s.opts.Harness.VirtualTime()
	writeJSON(w, http.StatusOK, timeResponse{
		Time:    now.Format("15:04"),
		Date:    now.Format(vclock.DateKeyLayout),
		Instant: now,
	})
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	settings, err := s.opts.Harness.Reload(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("reload failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) check(w http.ResponseWriter, r *http.Request) {
	fired := s.opts.Harness.CheckNow(r.Context())
	if fired == nil {
		fired = []meals.ReminderEvent{}
	}
	writeJSON(w, http.StatusOK, checkResponse{Fired: fired})
}

func (s *Server) currentToast(w http.ResponseWriter, _ *http.Request) {
	t, ok := s.opts.Toasts.Current()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) dismissToast(w http.ResponseWriter, r *http.Request) {
	if !s.opts.Toasts.Dismiss(chi.URLParam(r, "id")) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "toast not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
