// Package api provides the HTTP REST API for the zmapp authentication core.
//
// It exposes login, registration, session refresh, logout, profile and
// administrative account endpoints to the web and mobile clients.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Go-ku/zmapp/internal/audit"
	"github.com/Go-ku/zmapp/internal/auth"
	"github.com/Go-ku/zmapp/internal/infrastructure/config"
	"github.com/Go-ku/zmapp/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is a dependency whose health is reported by GET /api/health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Auth     *auth.Service

	// LoginThrottle and RegisterThrottle limit attempts per client IP.
	LoginThrottle    *auth.Throttle
	RegisterThrottle *auth.Throttle

	// AuditRepo serves GET /api/admin/audit. Optional.
	AuditRepo audit.Repository

	// Health lists named dependencies reported by the health endpoint.
	Health map[string]HealthChecker

	Version string

	// Clock defaults to time.Now.
	Clock auth.Clock
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes and middleware.
// The server is created with New() and started with Start().
type Server struct {
	cfg              config.APIConfig
	secCfg           config.SecurityConfig
	logger           *logging.Logger
	auth             *auth.Service
	loginThrottle    *auth.Throttle
	registerThrottle *auth.Throttle
	auditRepo        audit.Repository
	health           map[string]HealthChecker
	limiter          *ipRateLimiter
	version          string
	now              auth.Clock
	server           *http.Server
	cancel           context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("auth service is required")
	}
	if deps.LoginThrottle == nil || deps.RegisterThrottle == nil {
		return nil, fmt.Errorf("login and register throttles are required")
	}

	s := &Server{
		cfg:              deps.Config,
		secCfg:           deps.Security,
		logger:           deps.Logger,
		auth:             deps.Auth,
		loginThrottle:    deps.LoginThrottle,
		registerThrottle: deps.RegisterThrottle,
		auditRepo:        deps.AuditRepo,
		health:           deps.Health,
		version:          deps.Version,
		now:              deps.Clock,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if rl := deps.Security.RateLimit; rl.Enabled {
		s.limiter = newIPRateLimiter(rl.RequestsPerMinute, rl.Burst)
		s.limiter.now = s.now
	}

	return s, nil
}

// Handler returns the fully wired router. Start uses it; tests can serve it
// through httptest directly.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.limiter != nil {
		go s.limiter.run(srvCtx, limiterSweepInterval)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
