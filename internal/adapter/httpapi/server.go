package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mleite/autofund-backend/internal/usecase/engine"
	"github.com/mleite/autofund-backend/internal/usecase/history"
	"github.com/mleite/autofund-backend/internal/usecase/rulemgmt"
)

// Server wires the rule engine services into an HTTP surface.
type Server struct {
	rules   *rulemgmt.Service
	engine  *engine.Engine
	history *history.Service
	logger  *slog.Logger
}

func NewServer(rules *rulemgmt.Service, eng *engine.Engine, hist *history.Service, logger *slog.Logger) *Server {
	return &Server{
		rules:   rules,
		engine:  eng,
		history: hist,
		logger:  logger,
	}
}

// Router builds the API routes. Everything under /api/v1 except health
// requires the bearer token.
func (s *Server) Router(authToken string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(authToken))

			r.Route("/rules", func(r chi.Router) {
				r.Get("/", s.handleListRules)
				r.Post("/", s.handleCreateRule)
				r.Get("/statistics", s.handleRuleStatistics)
				r.Post("/bulk", s.handleBulkRules)

				r.Route("/{ruleId}", func(r chi.Router) {
					r.Get("/", s.handleGetRule)
					r.Put("/", s.handleUpdateRule)
					r.Delete("/", s.handleDeleteRule)
					r.Post("/toggle", s.handleToggleRule)
					r.Post("/duplicate", s.handleDuplicateRule)
				})
			})

			r.Route("/executions", func(r chi.Router) {
				r.Get("/", s.handleHistory)
				r.Post("/", s.handleExecute)
				r.Post("/simulate", s.handleSimulate)
				r.Post("/plan", s.handlePlan)
				r.Get("/readiness", s.handleReadiness)
				r.Get("/statistics", s.handleExecutionStatistics)
				r.Get("/export", s.handleExport)
				r.Post("/undo-last", s.handleUndoLast)
				r.Delete("/", s.handleClearHistory)

				r.Route("/{executionId}", func(r chi.Router) {
					r.Get("/", s.handleGetExecution)
					r.Delete("/", s.handleDeleteExecution)
					r.Post("/undo", s.handleUndo)
				})
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"requestId", middleware.GetReqID(r.Context()))
	})
}
