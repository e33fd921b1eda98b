package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/pendocareer/ragpipeline/internal/api/handlers"
	"github.com/pendocareer/ragpipeline/internal/config"
	"github.com/pendocareer/ragpipeline/internal/core"
	"github.com/pendocareer/ragpipeline/internal/core/pipeline"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, db core.DbClient, obj core.ObjectClient, mgr *pipeline.Manager, log *zap.Logger) *Server {
	r := NewRouter(cfg, db, obj, mgr, log)

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv, log: log}
}

// NewRouter assembles the chi router; split out so tests can drive the full
// HTTP surface without binding a port.
func NewRouter(cfg *config.Config, db core.DbClient, obj core.ObjectClient, mgr *pipeline.Manager, log *zap.Logger) chi.Router {
	processHandler := handlers.NewProcessHandler(mgr, obj, cfg, log)
	resumeHandler := handlers.NewResumeHandler(mgr, db, obj, cfg, log)
	jobHandler := handlers.NewJobHandler(mgr, log)
	healthHandler := handlers.NewHealthHandler(db, cfg.Workers)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Get("/health", healthHandler.Health)

	r.Route("/api", func(api chi.Router) {
		api.Post("/process", processHandler.Process)
		api.Post("/batch", processHandler.Batch)
		api.Post("/resume/upload", resumeHandler.Upload)
		api.Get("/resume/{user_id}", resumeHandler.Get)
		api.Get("/status/{job_id}", jobHandler.Status)
		api.Get("/jobs", jobHandler.List)
	})

	return r
}

// requestLogger emits one structured line per request.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.log.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}
