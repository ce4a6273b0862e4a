package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/caleywoods/wayfindr/internal/monitor"
	"github.com/caleywoods/wayfindr/pkg/core"
	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
)

const (
	HealthPath    = "/healthcheck"
	WaypointsPath = "/api/v1/waypoints"
	StatusPath    = "/api/v1/status"
	SocketPath    = "/ws"
)

// Snapshotter returns the shared waypoint set.
type Snapshotter interface {
	Snapshot() []core.Waypoint
}

// StatusSource returns the current server status.
type StatusSource interface {
	Status() monitor.Status
}

// Routes are the handlers served by NewRouter. Nil fields leave their
// routes unregistered.
type Routes struct {
	Waypoints Snapshotter
	Status    StatusSource
	Socket    http.Handler
	Logger    *slog.Logger
}

// NewRouter builds the server's HTTP router with request logging.
func NewRouter(routes Routes) *mux.Router {
	logger := routes.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			logger.Debug("handled", "method", request.Method, "url", request.URL, "duration", m.Duration, "status", m.Code)
		})
	})

	r.Methods(http.MethodGet).Path(HealthPath).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if routes.Waypoints != nil {
		r.Methods(http.MethodGet).Path(WaypointsPath).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, logger, routes.Waypoints.Snapshot())
		})
	}
	if routes.Status != nil {
		r.Methods(http.MethodGet).Path(StatusPath).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, logger, routes.Status.Status())
		})
	}
	if routes.Socket != nil {
		r.Path(SocketPath).Handler(routes.Socket)
	}
	return r
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}
