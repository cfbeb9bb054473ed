// Package api provides the HTTP REST API for the garage core.
//
// The server follows the same lifecycle pattern as the infrastructure
// components:
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

	"github.com/nerrad567/garage-core/internal/audit"
	"github.com/nerrad567/garage-core/internal/auth"
	"github.com/nerrad567/garage-core/internal/devicelink"
	"github.com/nerrad567/garage-core/internal/dispatch"
	"github.com/nerrad567/garage-core/internal/door"
	"github.com/nerrad567/garage-core/internal/infrastructure/config"
	"github.com/nerrad567/garage-core/internal/infrastructure/database"
	"github.com/nerrad567/garage-core/internal/infrastructure/logging"
	"github.com/nerrad567/garage-core/internal/schedule"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Dispatcher sends door commands. *dispatch.Facade satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, action door.Action, userID string, source door.Source) (dispatch.Result, error)
	IsReachable() bool
}

// LogReader reads a user's execution log. *audit.Sink satisfies it.
type LogReader interface {
	Recent(ctx context.Context, userID string) ([]audit.Entry, error)
}

// Schedules manages a user's schedules. *schedule.Service satisfies it.
type Schedules interface {
	Create(ctx context.Context, userID string, action door.Action, cronExpr string) (*schedule.Definition, error)
	List(ctx context.Context, userID string) ([]schedule.Listed, error)
	Delete(ctx context.Context, id, userID string) error
}

// JobCounter reports live schedule jobs. *schedule.Registry satisfies it.
type JobCounter interface {
	Count() int
}

// HealthChecker is implemented by infrastructure clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ConnectionReporter reports broker connectivity. *mqtt.Client satisfies it.
type ConnectionReporter interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config       config.APIConfig
	WS           config.WebSocketConfig
	Device       config.DeviceConfig
	Security     config.SecurityConfig
	Logger       *logging.Logger
	Auth         *auth.Service
	Dispatcher   Dispatcher
	Logs         LogReader
	Schedules    Schedules
	Jobs         JobCounter
	DeviceSocket *devicelink.SocketLink // nil unless device.transport is websocket
	DB           *database.DB           // optional, for metrics
	MQTT         ConnectionReporter     // optional, for metrics
	HealthChecks map[string]HealthChecker
	Version      string
}

// Server is the HTTP API server for the garage core.
//
// It manages the HTTP listener, routes and middleware.
// The server is created with New() and started with Start().
type Server struct {
	cfg          config.APIConfig
	wsCfg        config.WebSocketConfig
	deviceCfg    config.DeviceConfig
	secCfg       config.SecurityConfig
	logger       *logging.Logger
	auth         *auth.Service
	dispatcher   Dispatcher
	logs         LogReader
	schedules    Schedules
	jobs         JobCounter
	deviceSocket *devicelink.SocketLink
	db           *database.DB
	mqtt         ConnectionReporter
	healthChecks map[string]HealthChecker
	limiter      *rateLimiter
	version      string
	startTime    time.Time
	server       *http.Server
	ctx          context.Context    // lifetime of device sockets
	cancel       context.CancelFunc // cancels background goroutines on Close()
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
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Logs == nil {
		return nil, fmt.Errorf("log reader is required")
	}
	if deps.Schedules == nil || deps.Jobs == nil {
		return nil, fmt.Errorf("schedule service and registry are required")
	}

	s := &Server{
		cfg:          deps.Config,
		wsCfg:        deps.WS,
		deviceCfg:    deps.Device,
		secCfg:       deps.Security,
		logger:       deps.Logger,
		auth:         deps.Auth,
		dispatcher:   deps.Dispatcher,
		logs:         deps.Logs,
		schedules:    deps.Schedules,
		jobs:         deps.Jobs,
		deviceSocket: deps.DeviceSocket,
		db:           deps.DB,
		mqtt:         deps.MQTT,
		healthChecks: deps.HealthChecks,
		version:      deps.Version,
		startTime:    time.Now(),
		ctx:          context.Background(),
	}

	if deps.Security.RateLimit.Enabled {
		s.limiter = newRateLimiter(deps.Security.RateLimit.RequestsPerMinute, deps.Security.RateLimit.Burst)
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// Device sockets accepted by the server live until they close or ctx is
// cancelled. The listener runs in a background goroutine and is stopped
// with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	s.ctx = srvCtx

	if s.limiter != nil {
		go s.limiter.cleanupLoop(srvCtx)
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
// Open device sockets are closed first; then in-flight requests get up to
// 10 seconds to complete.
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

// HealthCheck verifies the API server is running and responsive.
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
