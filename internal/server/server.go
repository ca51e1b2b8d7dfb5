// Package server wires handlers, middleware and routes, and owns the process
// lifecycle (listen, background jobs, graceful shutdown).
//
// DEPENDENCY FLOW:
//
//	main.go: config → logger → repository.Store → server.New
//	server.New: Store → services → handlers → chi routes
//
// The store is opened by main and handed over; the server closes it on
// shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sakif/volunteerhub/internal/auth"
	"github.com/sakif/volunteerhub/internal/handler"
	"github.com/sakif/volunteerhub/internal/metrics"
	"github.com/sakif/volunteerhub/internal/middleware"
	"github.com/sakif/volunteerhub/internal/repository"
	"github.com/sakif/volunteerhub/internal/scheduler"
	"github.com/sakif/volunteerhub/internal/service"
)

const (
	shutdownTimeout = 30 * time.Second

	limiterSweepSchedule = "0 * * * * *"
	limiterMaxIdle       = 10 * time.Minute
)

type Config struct {
	Port        int
	Production  bool
	CORSOrigins []string
	// StrictOwnership puts every mutation behind a session and an owner check.
	StrictOwnership bool

	AuthRatePerSec float64
	AuthRateBurst  int

	// ReconcileSchedule is a six-field cron spec; empty disables the job.
	ReconcileSchedule string
}

type Server struct {
	router    chi.Router
	config    Config
	logger    *zap.Logger
	store     repository.Store
	tokens    *auth.TokenService
	metrics   *metrics.Metrics
	limiter   *middleware.RateLimiter
	reconcile *service.ReconcileService
	scheduler *scheduler.Scheduler
}

// New builds the router and registers background jobs. Nothing listens until Start.
func New(cfg Config, store repository.Store, tokens *auth.TokenService, logger *zap.Logger) (*Server, error) {
	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		logger:    logger,
		store:     store,
		tokens:    tokens,
		metrics:   metrics.New(),
		limiter:   middleware.NewRateLimiter(cfg.AuthRatePerSec, cfg.AuthRateBurst, logger),
		reconcile: service.NewReconcileService(store, logger),
		scheduler: scheduler.New(logger),
	}

	s.setupRoutes()

	if err := s.setupJobs(); err != nil {
		return nil, fmt.Errorf("setting up jobs: %w", err)
	}
	return s, nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes installs the middleware stack and every route.
//
// ROUTE MAP:
//
//	POST   /jwt                            rate limited
//	POST   /signout
//	GET    /all-posts?search=&category=
//	GET    /active-posts
//	GET    /active-posts/featured
//	GET    /post/{id}                      session
//	PUT    /post/{id}                      strict: session, owner
//	POST   /posts/new                      strict: session, owner
//	GET    /posts/{email}                  session, email must match
//	DELETE /posts/{id}                     strict: session, owner
//	POST   /users                          rate limited
//	GET    /users/{email}
//	GET    /applications/applicant/{email}
//	GET    /applications/{organizerEmail}
//	PUT    /applications/{id}              strict: session, post owner
//	POST   /applications                   strict: session, applicant
//	GET    /healthz
//	GET    /metrics
//
// /posts/{..} and /applications/{..} name their parameter "ref" because chi
// needs one parameter name per pattern across methods.
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(s.metrics.Instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	policy := service.Policy{Strict: s.config.StrictOwnership}
	prod := s.config.Production

	postHandler := handler.NewPostHandler(
		service.NewPostService(s.store.Posts(), policy, s.logger), s.logger, prod)
	userHandler := handler.NewUserHandler(
		service.NewUserService(s.store.Users(), s.logger), s.logger, prod)
	appHandler := handler.NewApplicationHandler(
		service.NewApplicationService(s.store, policy, s.metrics, s.logger), s.logger, prod)
	authHandler := handler.NewAuthHandler(
		service.NewAuthService(s.tokens, s.logger), s.logger, prod)
	healthHandler := handler.NewHealthHandler(s.store, s.logger)

	requireAuth := auth.RequireAuth(s.tokens)
	// Mutations read the session when present; strict mode demands it.
	mutationAuth := auth.OptionalAuth(s.tokens)
	if s.config.StrictOwnership {
		mutationAuth = requireAuth
	}

	r.Get("/healthz", healthHandler.HandleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	r.With(s.limiter.Handler).Post("/jwt", authHandler.HandleIssue)
	r.Post("/signout", authHandler.HandleSignOut)

	r.Get("/all-posts", postHandler.HandleListAll)
	r.Get("/active-posts", postHandler.HandleListActive)
	r.Get("/active-posts/featured", postHandler.HandleFeatured)

	r.With(requireAuth).Get("/post/{id}", postHandler.HandleGet)
	r.With(mutationAuth).Put("/post/{id}", postHandler.HandleUpdate)
	r.With(mutationAuth).Post("/posts/new", postHandler.HandleCreate)
	r.With(requireAuth).Get("/posts/{ref}", postHandler.HandleListByOrganizer)
	r.With(mutationAuth).Delete("/posts/{ref}", postHandler.HandleDelete)

	r.With(s.limiter.Handler).Post("/users", userHandler.HandleSignUp)
	r.Get("/users/{email}", userHandler.HandleGet)

	r.Get("/applications/applicant/{email}", appHandler.HandleListByApplicant)
	r.Get("/applications/{ref}", appHandler.HandleListByOrganizer)
	r.With(mutationAuth).Put("/applications/{ref}", appHandler.HandleUpdateStatus)
	r.With(mutationAuth).Post("/applications", appHandler.HandleSubmit)
}

func (s *Server) setupJobs() error {
	err := s.scheduler.Add("reconcile", s.config.ReconcileSchedule, func(ctx context.Context) error {
		report, err := s.reconcile.Run(ctx)
		if err != nil {
			return err
		}
		s.logger.Info("reconcile finished",
			zap.Int("posts_checked", report.PostsChecked),
			zap.Int("posts_repaired", report.PostsRepaired),
			zap.Int("users_checked", report.UsersChecked),
			zap.Int("users_repaired", report.UsersRepaired))
		return nil
	})
	if err != nil {
		return err
	}

	return s.scheduler.Add("rate-limiter-sweep", limiterSweepSchedule, func(context.Context) error {
		if n := s.limiter.Sweep(limiterMaxIdle); n > 0 {
			s.logger.Debug("rate limiter swept", zap.Int("removed", n))
		}
		return nil
	})
}

// Start listens until SIGINT/SIGTERM or a listener error.
//
// SHUTDOWN ORDER:
//  1. stop accepting connections and drain in-flight requests (30s)
//  2. stop the scheduler, waiting for a running reconcile
//  3. close the store
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			zap.Int("port", s.config.Port),
			zap.Bool("production", s.config.Production),
			zap.Bool("strict_ownership", s.config.StrictOwnership))
		serverErrors <- srv.ListenAndServe()
	}()
	s.scheduler.Start()

	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}
	case sig := <-quit:
		s.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("graceful shutdown failed: %w", err))
	}
	s.scheduler.Stop(ctx)
	if err := s.store.Close(ctx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("closing store: %w", err))
	}

	if runErr == nil {
		s.logger.Info("server stopped gracefully")
	}
	return runErr
}
