package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/aonescu/kubespresso/internal/policy"
	"github.com/aonescu/kubespresso/internal/state"
)

// Pinger is implemented by the Postgres journal.
type Pinger interface {
	Ping() error
}

type Config struct {
	Journal state.Journal
	Policy  policy.Config
	// Database is checked by /health when set.
	Database Pinger
	// Cluster is checked by /ready when set.
	Cluster func() error
	Logger  *zap.Logger
}

type APIServer struct {
	journal  state.Journal
	policy   policy.Config
	database Pinger
	cluster  func() error
	logger   *zap.Logger
	router   chi.Router
}

func NewAPIServer(cfg Config) *APIServer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	api := &APIServer{
		journal:  cfg.Journal,
		policy:   cfg.Policy,
		database: cfg.Database,
		cluster:  cfg.Cluster,
		logger:   logger.Named("api"),
		router:   chi.NewRouter(),
	}
	api.registerRoutes()
	return api
}

func (api *APIServer) registerRoutes() {
	r := api.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(api.loggingMiddleware)
	r.Use(api.corsMiddleware)

	// Health check
	r.Get("/health", api.handleHealth)
	r.Get("/ready", api.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/decisions", api.handleDecisions)
		r.Get("/decisions/resource", api.handleResourceDecisions)
		r.Get("/stats", api.handleStats)
		r.Get("/policy", api.handlePolicy)
	})
}

func (api *APIServer) Handler() http.Handler {
	return api.router
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (api *APIServer) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		api.logger.Info("Starting API server", zap.String("address", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
