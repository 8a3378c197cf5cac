package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/homee/internal/domain/home"
	"github.com/oshokin/homee/internal/logger"
)

const (
	// DefaultLogLimit is the number of log entries returned without a limit parameter.
	DefaultLogLimit = 50
	// MaxLogLimit caps the limit parameter.
	MaxLogLimit = 500

	exportFilename = "homee_events.csv"
)

// Service is the monitor as seen by the dashboard.
type Service interface {
	Status(ctx context.Context) home.Status
	ToggleLight(ctx context.Context) (home.Status, error)
}

// Log is the in-memory event history.
type Log interface {
	List(limit int) []home.Event
	Clear()
}

// Archive is the on-disk event log.
type Archive interface {
	Export(dst io.Writer) error
	Truncate() error
}

// Handler serves the dashboard routes.
type Handler struct {
	service  Service
	log      Log
	archive  Archive
	registry *prometheus.Registry
	router   *mux.Router
}

// NewHandler builds the router. archive and registry may be nil, which
// disables export and metrics.
func NewHandler(service Service, log Log, archive Archive, registry *prometheus.Registry) *Handler {
	h := &Handler{
		service:  service,
		log:      log,
		archive:  archive,
		registry: registry,
		router:   mux.NewRouter(),
	}

	h.router.Use(logRequests)
	h.router.Path("/").Methods(http.MethodGet).HandlerFunc(h.index)
	h.router.Path("/healthz").Methods(http.MethodGet).HandlerFunc(h.healthz)

	// API routes stay on the root router so a wrong method answers 405.
	h.router.Path("/api/status").Methods(http.MethodGet).HandlerFunc(h.status)
	h.router.Path("/api/toggle_light").Methods(http.MethodPost).HandlerFunc(h.toggleLight)
	h.router.Path("/api/motion_log").Methods(http.MethodGet).HandlerFunc(h.motionLog)
	h.router.Path("/api/clear_log").Methods(http.MethodPost).HandlerFunc(h.clearLog)
	h.router.Path("/api/export_log").Methods(http.MethodGet).HandlerFunc(h.exportLog)

	if registry != nil {
		h.router.Path("/metrics").Methods(http.MethodGet).
			Handler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	}

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, indexPage)
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, h.service.Status(r.Context()).Map())
}

func (h *Handler) toggleLight(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.ToggleLight(r.Context())
	if err != nil {
		errorResponse(r.Context(), w, http.StatusServiceUnavailable, err)

		return
	}

	jsonResponse(w, http.StatusOK, st.Map())
}

// logEntry is the JSON form of an event.
type logEntry struct {
	ID          string            `json:"id"`
	Kind        home.EventKind    `json:"kind"`
	Source      string            `json:"source"`
	Timestamp   float64           `json:"timestamp"`
	DateTimeUTC string            `json:"datetime_utc"`
	Detail      string            `json:"detail"`
	Payload     map[string]string `json:"payload"`
}

func (h *Handler) motionLog(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		errorResponse(r.Context(), w, http.StatusBadRequest, err)

		return
	}

	evs := h.log.List(limit)

	entries := make([]logEntry, 0, len(evs))
	for _, ev := range evs {
		entries = append(entries, logEntry{
			ID:          ev.ID,
			Kind:        ev.Kind,
			Source:      ev.Source,
			Timestamp:   float64(ev.Timestamp.UnixMilli()) / 1000,
			DateTimeUTC: ev.Timestamp.UTC().Format(time.DateTime),
			Detail:      ev.Detail(),
			Payload:     ev.Payload,
		})
	}

	jsonResponse(w, http.StatusOK, entries)
}

func (h *Handler) clearLog(w http.ResponseWriter, r *http.Request) {
	h.log.Clear()

	if h.archive != nil {
		if err := h.archive.Truncate(); err != nil {
			errorResponse(r.Context(), w, http.StatusInternalServerError, err)

			return
		}
	}

	logger.Info(r.Context(), "Event log cleared")
	jsonResponse(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) exportLog(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		errorResponse(r.Context(), w, http.StatusNotFound, errNoArchive)

		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename))

	if err := h.archive.Export(w); err != nil {
		logger.ErrorKV(r.Context(), "Event log export failed", "error", err)
	}
}

var (
	errNoArchive = errors.New("event archive is disabled")
	errBadLimit  = errors.New("limit must be a positive integer")
)

// parseLimit applies the default and the cap.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return DefaultLogLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errBadLimit
	}

	return min(limit, MaxLogLimit), nil
}

func jsonResponse(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func errorResponse(ctx context.Context, w http.ResponseWriter, code int, err error) {
	logger.WarnKV(ctx, "Dashboard request failed", "status", code, "error", err)
	jsonResponse(w, code, map[string]string{"error": err.Error()})
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.DebugKV(r.Context(), "HTTP request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
