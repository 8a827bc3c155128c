package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bluewatt/bluewatt-core/internal/auth"
	"github.com/bluewatt/bluewatt-core/internal/device"
	"github.com/bluewatt/bluewatt-core/internal/infrastructure/config"
	"github.com/bluewatt/bluewatt-core/internal/infrastructure/logging"
	"github.com/bluewatt/bluewatt-core/internal/stream"
	"github.com/bluewatt/bluewatt-core/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Stream   config.StreamConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Resolver *auth.Resolver
	Devices  device.Repository
	Ingestor *telemetry.Ingestor
	Fanout   *stream.Registry
	Version  string
}

// Server is the HTTP API server for BlueWatt Core.
//
// It manages the HTTP listener, routes, and middleware. Live-event
// connections (SSE and WebSocket) register with the shared fanout registry
// and are torn down when the client disconnects or the server closes.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	streamCfg config.StreamConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	resolver  *auth.Resolver
	devices   device.Repository
	ingestor  *telemetry.Ingestor
	fanout    *stream.Registry
	version   string
	server    *http.Server
	ctx       context.Context    // closes live connections on Close()
	cancel    context.CancelFunc // cancels connection-scoped goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, resolver, repositories, fanout)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Resolver == nil {
		return nil, fmt.Errorf("credential resolver is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device repository is required")
	}
	if deps.Ingestor == nil {
		return nil, fmt.Errorf("ingestor is required")
	}
	if deps.Fanout == nil {
		return nil, fmt.Errorf("fanout registry is required")
	}

	return &Server{
		cfg:       deps.Config,
		streamCfg: deps.Stream,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		resolver:  deps.Resolver,
		devices:   deps.Devices,
		ingestor:  deps.Ingestor,
		fanout:    deps.Fanout,
		version:   deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop connection-scoped goroutines
	// independently of the parent context.
	s.ctx, s.cancel = context.WithCancel(ctx)

	router := s.buildRouter()

	// The write timeout covers plain request/response routes. The SSE and
	// WebSocket handlers clear their per-connection deadlines explicitly,
	// since live connections must outlive any single request budget.
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
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
//
// Returns:
//   - error: If shutdown encounters an error
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
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
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
