package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hearth-automation/hearth-core/internal/audit"
	"github.com/hearth-automation/hearth-core/internal/infrastructure/config"
	"github.com/hearth-automation/hearth-core/internal/infrastructure/logging"
	"github.com/hearth-automation/hearth-core/internal/schedule"
	"github.com/hearth-automation/hearth-core/internal/suntimes"
	"github.com/hearth-automation/hearth-core/internal/trigger"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// StateReader exposes the aggregated device state to API handlers.
type StateReader interface {
	AggregateState(ctx context.Context) (trigger.Snapshot, error)
	DeviceCount() int
}

// Reloader triggers a schedule document reload.
type Reloader interface {
	Reload() error
}

// HealthChecker reports component health for the health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ConnectionChecker reports broker connectivity.
type ConnectionChecker interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Security  config.SecurityConfig
	Logger    *logging.Logger
	Store     *schedule.Store
	Scheduler Reloader
	State     StateReader
	Sun       *suntimes.Source
	Actions   audit.Repository
	Recorder  *audit.Sink        // optional: override changes recorded here
	MQTT      ConnectionChecker  // optional: reported in health
	DB        HealthChecker      // optional: reported in health
	Hub       *Hub               // optional: externally created WebSocket hub
	Version   string
}

// Server is the HTTP API server for Hearth Core.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	store     *schedule.Store
	scheduler Reloader
	state     StateReader
	sun       *suntimes.Source
	actions   audit.Repository
	recorder  *audit.Sink
	mqtt      ConnectionChecker
	db        HealthChecker
	version   string

	server      *http.Server
	hub         *Hub
	externalHub bool
	cancel      context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("schedule store is required")
	}
	if deps.State == nil {
		return nil, fmt.Errorf("state reader is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger.With("component", "api"),
		store:     deps.Store,
		scheduler: deps.Scheduler,
		state:     deps.State,
		sun:       deps.Sun,
		actions:   deps.Actions,
		recorder:  deps.Recorder,
		mqtt:      deps.MQTT,
		db:        deps.DB,
		version:   deps.Version,
	}

	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router, starts the WebSocket hub, and launches the
// listener in a background goroutine. Stop with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	router := s.buildRouter()

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
// It waits up to 10 seconds for in-flight requests to complete, then
// forcefully closes remaining connections.
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
