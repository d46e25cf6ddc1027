package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/Nzyazin/bankflow/internal/core/events"
	"github.com/Nzyazin/bankflow/internal/core/handler"
	"github.com/Nzyazin/bankflow/internal/core/logger"
	middlWre "github.com/Nzyazin/bankflow/internal/core/middleware"
	"github.com/Nzyazin/bankflow/internal/core/querycache"
	"github.com/Nzyazin/bankflow/internal/core/repository/postgres"
	"github.com/Nzyazin/bankflow/internal/core/usecase"
	"github.com/Nzyazin/bankflow/internal/core/view"
	"github.com/Nzyazin/bankflow/pkg/config"
	"github.com/Nzyazin/bankflow/pkg/postgresdb"
	"github.com/gorilla/mux"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"
)

type Server struct {
	router     *mux.Router
	log        logger.Logger
	httpServer *http.Server
	registry   *prom.Registry
	usecase    usecase.OperationsUsecase
	publisher  events.Publisher
	db         *postgresdb.Database
}

func NewServer(ctx context.Context, cfg *config.Config, log logger.Logger) (*Server, error) {
	db, err := postgresdb.NewPostgresDB(ctx, cfg.DB, log)
	if err != nil {
		return nil, err
	}

	if err := postgres.Migrate(ctx, db.DB); err != nil {
		db.Close()
		return nil, err
	}

	publisher, err := events.NewPublisher(events.Config{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
	}, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	registry := newRegistry()
	operationRepository := postgres.NewPostgresOperationRepo(db.DB, log)
	operationsUsecase := usecase.NewOperationsUsecase(
		operationRepository,
		querycache.New(cfg.Cache.TTL, registry),
		publisher,
		registry,
		log,
	)

	server, err := newServer(operationsUsecase, cfg.HTTP.TimeZone, registry, log)
	if err != nil {
		publisher.Close()
		db.Close()
		return nil, err
	}
	server.publisher = publisher
	server.db = db

	return server, nil
}

func newRegistry() *prom.Registry {
	registry := prom.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

func newServer(uc usecase.OperationsUsecase, loc *time.Location, registry *prom.Registry, log logger.Logger) (*Server, error) {
	renderer, err := view.NewRenderer(loc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	server := &Server{
		log:      log,
		router:   mux.NewRouter(),
		registry: registry,
		usecase:  uc,
	}

	server.router.Use(loggingMiddleware(server.log))

	mw := middleware.New(middleware.Config{
		Recorder: prometheus.NewRecorder(prometheus.Config{Registry: registry}),
	})

	server.router.Use(func(next http.Handler) http.Handler {
		return std.Handler("", mw, next)
	})

	server.RegisterRoutes(
		handler.NewOperationHandler(uc, log),
		handler.NewPageHandler(uc, renderer, log),
	)

	return server, nil
}

func (s *Server) RegisterRoutes(operationHandler *handler.OperationHandler, pageHandler *handler.PageHandler) {
	s.router.Use(
		middlWre.WithErrorHandler(s.log),
		middlWre.Recovery(s.log),
	)
	operationHandler.RegisterRoutes(s.router)
	pageHandler.RegisterRoutes(s.router)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.usecase.Ping(ctx); err != nil {
		s.log.Warn("Health check failed", logger.ErrorField("error", err))
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       9 * time.Second,
		WriteTimeout:      12 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 6 * time.Second,
	}

	s.httpServer = srv

	return srv.ListenAndServe()
}

func (s *Server) RunTLS(addr, certFile, keyFile string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       9 * time.Second,
		WriteTimeout:      12 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 6 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
	}

	s.httpServer = srv
	return srv.ListenAndServeTLS(certFile, keyFile)
}

func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	var shutdownErr error

	go func() {
		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(ctx); err != nil {
				s.log.Error("failed to shutdown HTTP server", logger.ErrorField("error", err))
				shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
			}
		}

		if s.publisher != nil {
			if err := s.publisher.Close(); err != nil {
				s.log.Error("failed to close event publisher", logger.ErrorField("error", err))
				shutdownErr = fmt.Errorf("publisher shutdown error: %w", err)
			}
		}

		if s.db != nil {
			if err := s.db.Close(); err != nil {
				s.log.Error("failed to close database connection", logger.ErrorField("error", err))
				shutdownErr = fmt.Errorf("database shutdown error: %w", err)
			}
		}

		close(done)
	}()

	select {
	case <-done:
		return shutdownErr
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func loggingMiddleware(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Info("HTTP request",
				logger.StringField("method", r.Method),
				logger.StringField("path", r.URL.Path),
				logger.StringField("remote_addr", r.RemoteAddr),
				logger.StringField("user_agent", r.UserAgent()),
			)
			next.ServeHTTP(w, r)
		})
	}
}
