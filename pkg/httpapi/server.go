// Package httpapi implements the stable HTTP/JSON facade over the
// orchestrator, routed with github.com/go-chi/chi/v5 the way the rest of
// this corpus's REST surfaces are built, with Prometheus request
// instrumentation matching the teacher's metrics-middleware idiom.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cuemby/conclave/pkg/apierrors"
	"github.com/cuemby/conclave/pkg/ids"
	"github.com/cuemby/conclave/pkg/log"
	"github.com/cuemby/conclave/pkg/metrics"
	"github.com/cuemby/conclave/pkg/orchestrator"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Server wires the orchestrator's operations to HTTP handlers.
type Server struct {
	orch      *orchestrator.Orchestrator
	startedMs int64
	logger    zerolog.Logger
}

// NewServer creates a Server over orch, stamping the process start time used
// by the healthz endpoint's uptime report.
func NewServer(orch *orchestrator.Orchestrator) *Server {
	return &Server{
		orch:      orch,
		startedMs: ids.NowMillis(),
		logger:    log.WithComponent("httpapi"),
	}
}

// Router builds the chi.Mux exposing every route in the facade.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(s.metricsMiddleware)

	r.Get("/v1/healthz", s.handleHealthz)

	r.Route("/v1/agents", func(r chi.Router) {
		r.Post("/spawn", s.handleSpawnAgent)
		r.Get("/", s.handleListAgents)
		r.Get("/stats", s.handleStats)
		r.Get("/{agentID}", s.handleGetAgent)
		r.Delete("/{agentID}", s.handleDeleteAgent)
	})

	r.Route("/v1/tasks", func(r chi.Router) {
		r.Post("/submit", s.handleSubmitTask)
		r.Post("/workflow", s.handleSubmitWorkflow)
		r.Get("/", s.handleListTasks)
		r.Get("/{taskID}", s.handleGetTask)
		r.Delete("/{taskID}", s.handleCancelTask)
	})

	r.Route("/v1/knowledge", func(r chi.Router) {
		r.Post("/", s.handlePutKnowledge)
		r.Get("/query", s.handleQueryKnowledge)
		r.Get("/{key}", s.handleGetKnowledge)
	})

	r.Route("/v1/messages", func(r chi.Router) {
		r.Post("/send", s.handleSendMessage)
		r.Post("/broadcast", s.handleBroadcastMessage)
		r.Get("/{agentID}", s.handleGetMessages)
	})

	r.Route("/v1/consensus/vote", func(r chi.Router) {
		r.Post("/create", s.handleCreateVote)
		r.Post("/{voteID}/cast", s.handleCastVote)
		r.Get("/{voteID}", s.handleGetVote)
	})

	return r
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(route, http.StatusText(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case apierrors.Is(err, apierrors.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case apierrors.Is(err, apierrors.ErrConflict), apierrors.Is(err, apierrors.ErrPolicy):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case apierrors.Is(err, apierrors.ErrInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apierrors.ErrInput
	}
	return nil
}
