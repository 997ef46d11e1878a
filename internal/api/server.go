// Package api is the admin HTTP surface: scheduler control, pipeline
// status, email listing, and the live monitoring stream.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignite/alertops/internal/domain"
	"github.com/ignite/alertops/internal/repository/postgres"
	"github.com/ignite/alertops/internal/scheduler"
	"github.com/ignite/alertops/internal/supervisor"
)

// Server wires the admin handlers.
type Server struct {
	Scheduler   *scheduler.Scheduler
	Supervisor  *supervisor.Supervisor
	Emails      *postgres.EmailRepo
	Jobs        *postgres.JobRepo
	Maintenance *postgres.MaintenanceRepo
}

// Routes builds the admin router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST", "PUT"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/scheduler/status", s.handleSchedulerStatus)
	r.Post("/scheduler/start", s.handleSchedulerStart)
	r.Post("/scheduler/stop", s.handleSchedulerStop)
	r.Post("/scheduler/trigger", s.handleSchedulerTrigger)

	r.Put("/config/interval", s.handleUpdateInterval)
	r.Get("/config/next_run", s.handleNextRun)

	r.Get("/emails", s.handleListEmails)
	r.Get("/jobs/history", s.handleJobHistory)

	r.Get("/maintenance", s.handleListMaintenance)
	r.Post("/maintenance", s.handleCreateMaintenance)

	r.Get("/monitoring/status", s.handleMonitoringStatus)
	r.Get("/monitoring/stream", s.handleMonitoringStream)

	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "alertops",
		"status":  "running",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.Supervisor.Latest()
	code := http.StatusOK
	if report.Status == supervisor.StatusDegraded {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, report)
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"is_running": s.Scheduler.Running()}
	if next := s.Scheduler.NextRun(); !next.IsZero() {
		status["next_run"] = next.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSchedulerStart(w http.ResponseWriter, r *http.Request) {
	if err := s.Scheduler.Start(context.Background()); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (s *Server) handleSchedulerStop(w http.ResponseWriter, r *http.Request) {
	s.Scheduler.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleSchedulerTrigger(w http.ResponseWriter, r *http.Request) {
	s.Scheduler.TriggerNow()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

// handleUpdateInterval persists a new ingestion interval and restarts the
// scheduler, pausing the watchdog so the restart is not raced.
func (s *Server) handleUpdateInterval(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Unit  string `json:"unit"`
		Value int    `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.Scheduler.SetInterval(r.Context(), req.Unit, req.Value); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.Supervisor.Pause()
	defer s.Supervisor.Resume()
	if err := s.Scheduler.Restart(context.Background()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "updated",
		"unit":   req.Unit,
		"value":  req.Value,
	})
}

func (s *Server) handleNextRun(w http.ResponseWriter, r *http.Request) {
	next := s.Scheduler.NextRun()
	if next.IsZero() {
		writeJSON(w, http.StatusOK, map[string]any{"next_run": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"next_run": next.UTC().Format(time.RFC3339)})
}

func (s *Server) handleListEmails(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	emails, err := s.Emails.ListRecent(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	type item struct {
		EmailID    string    `json:"email_id"`
		Subject    string    `json:"subject"`
		Sender     string    `json:"sender"`
		ReceivedAt time.Time `json:"received_at"`
		Enqueued   bool      `json:"enqueued"`
	}
	out := make([]item, 0, len(emails))
	for _, e := range emails {
		out = append(out, item{
			EmailID:    e.EmailID,
			Subject:    e.Subject,
			Sender:     e.Sender,
			ReceivedAt: e.ReceivedAt,
			Enqueued:   e.Status,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"emails": out, "count": len(out)})
}

func (s *Server) handleJobHistory(w http.ResponseWriter, r *http.Request) {
	runs, err := s.Jobs.History(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": runs})
}

// handleListMaintenance returns all windows with their status computed
// at request time.
func (s *Server) handleListMaintenance(w http.ResponseWriter, r *http.Request) {
	windows, err := s.Maintenance.List(r.Context(), time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"maintenance_windows": windows})
}

func (s *Server) handleCreateMaintenance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ServerGroup string    `json:"server_group"`
		ServerName  string    `json:"server_name"`
		OtherServer string    `json:"other_server"`
		Comments    string    `json:"comments"`
		Start       time.Time `json:"start_datetime"`
		End         time.Time `json:"end_datetime"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ServerGroup == "" || req.Start.IsZero() || req.End.IsZero() || !req.End.After(req.Start) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("server_group and a valid start/end interval are required"))
		return
	}

	window := &domain.MaintenanceWindow{
		ServerGroup:   req.ServerGroup,
		ServerName:    req.ServerName,
		OtherServer:   req.OtherServer,
		Comments:      req.Comments,
		StartDatetime: req.Start,
		EndDatetime:   req.End,
	}
	if err := s.Maintenance.Create(r.Context(), window); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	window.Status = domain.ComputeMaintenanceStatus(window.StartDatetime, window.EndDatetime, time.Now().UTC())
	writeJSON(w, http.StatusCreated, window)
}

func (s *Server) handleMonitoringStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Supervisor.Latest())
}

// handleMonitoringStream serves the supervisor broadcast as server-sent
// events.
func (s *Server) handleMonitoringStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	reports, cancel := s.Supervisor.Subscribe()
	defer cancel()

	// Send the current report immediately, then follow the broadcast.
	writeEvent(w, s.Supervisor.Latest())
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case report := <-reports:
			writeEvent(w, report)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, report supervisor.Report) {
	data, _ := json.Marshal(report)
	w.Write([]byte("data: "))
	w.Write(data)
	w.Write([]byte("\n\n"))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
