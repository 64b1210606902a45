// Package server wires the session search pipeline into its long-running
// surfaces: the HTTP API, the MCP endpoint and the chat connectors.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	appconfig "github.com/lewisedginton/session_concierge/internal/config"
	"github.com/lewisedginton/session_concierge/internal/connectors/slack"
	"github.com/lewisedginton/session_concierge/internal/connectors/telegram"
	"github.com/lewisedginton/session_concierge/internal/mcpserver"
	"github.com/lewisedginton/session_concierge/pkg/health"
	"github.com/lewisedginton/session_concierge/pkg/httpmiddleware"
	"github.com/lewisedginton/session_concierge/pkg/logger"
	"github.com/lewisedginton/session_concierge/pkg/utils"
)

const (
	shutdownTimeout  = 10 * time.Second
	forceExitTimeout = 30 * time.Second
)

// Connector defines the interface for platform connectors
type Connector interface {
	Start(ctx context.Context) error
	Ready() error
}

// Options selects which surfaces Run starts.
type Options struct {
	HTTP     bool
	Slack    bool
	Telegram bool
}

// Server encapsulates all the server components and lifecycle management
type Server struct {
	cfg        *appconfig.AppConfig
	log        logger.Logger
	opts       Options
	components *Components

	mcp               *mcpserver.Server
	slackConnector    *slack.Connector
	telegramConnector *telegram.Connector

	cancel       context.CancelFunc
	shuttingDown atomic.Bool
}

// New creates a new Server instance with all components initialized
//
//nolint:revive // cognitive-complexity: Server initialization requires sequential component setup
func New(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger, opts Options) (_ *Server, err error) {
	s := &Server{
		cfg:  cfg,
		log:  log,
		opts: opts,
	}

	s.components, err = NewComponents(ctx, cfg, log, NeedAll)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = s.components.Close()
		}
	}()

	if s.components.Pool != nil {
		if err = s.components.Migrate(); err != nil {
			return nil, err
		}
	}

	if opts.HTTP && cfg.MCP.Enabled {
		s.mcp, err = mcpserver.New(s.components.Search, cfg.Version, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create MCP server: %w", err)
		}
	}

	// Create connectors (but don't start yet)
	if opts.Slack && cfg.Slack.Enabled() {
		s.slackConnector, err = slack.NewConnector(slack.Config{
			BotToken: cfg.Slack.BotToken,
			AppToken: cfg.Slack.AppToken,
			Debug:    cfg.Slack.Debug,
			Logger:   log,
		}, s.components.Executor, s.components.Threads)
		if err != nil {
			return nil, fmt.Errorf("failed to create Slack connector: %w", err)
		}
		s.addConnectorCheck("slack_connector", s.slackConnector)
	}

	if opts.Telegram && cfg.Telegram.Enabled() {
		s.telegramConnector, err = telegram.NewConnector(telegram.Config{
			BotToken: cfg.Telegram.BotToken,
			Debug:    cfg.Telegram.Debug,
			Logger:   log,
		}, s.components.Executor, s.components.Threads)
		if err != nil {
			return nil, fmt.Errorf("failed to create Telegram connector: %w", err)
		}
		s.addConnectorCheck("telegram_connector", s.telegramConnector)
	}

	// Fail readiness first so load balancers drain before listeners close
	s.components.Health.Add(health.NewCheckFunc("shutdown", func(context.Context) error {
		if s.shuttingDown.Load() {
			return errors.New("server is shutting down")
		}
		return nil
	}), health.Readiness, health.FailFast())

	return s, nil
}

func (s *Server) addConnectorCheck(name string, c Connector) {
	s.components.Health.Add(health.NewCheckFunc(name, func(context.Context) error {
		return c.Ready()
	}), health.Readiness)
}

// Components exposes the object graph the server was built from.
func (s *Server) Components() *Components {
	return s.components
}

// Handler builds the HTTP API with middleware derived from configuration.
func (s *Server) Handler() http.Handler {
	httpCfg := s.cfg.HTTP

	mw := httpmiddleware.DefaultConfig()
	mw.Logger = s.log
	mw.EnableLogging = true
	cors := httpmiddleware.CORSConfigForOrigins(httpCfg.CORSAllowedOrigins)
	mw.CORS = &cors
	mw.Security = httpmiddleware.APISecurityOptions(s.cfg.IsDevelopment())
	mw.RateLimit = &httpmiddleware.RateLimitConfig{
		RequestsPerMinute: httpCfg.RateLimitRPM,
		Burst:             httpCfg.RateLimitBurst,
	}
	mw.EnableRateLimit = httpCfg.RateLimitEnabled
	mw.Timeout = httpCfg.RequestTimeout
	if s.cfg.BasePath != "" {
		mw.StripPrefix = s.cfg.BasePath
		mw.EnableStripPrefix = true
	}

	rc := RouterConfig{
		Searcher:     s.components.Search,
		Threads:      s.components.Conversation,
		Catalog:      s.components.Catalog,
		Health:       s.components.Health,
		Metrics:      s.components.Metrics,
		Middleware:   mw,
		MaxBodyBytes: httpCfg.MaxBodyBytes,
		Logger:       s.log,
	}
	if s.mcp != nil {
		rc.MCP = s.mcp.HTTPHandler(s.cfg.MCP.Stateless)
		rc.MCPPath = s.cfg.MCP.Path
	}
	return NewRouter(rc)
}

// Run starts the server and blocks until shutdown
//
//nolint:revive // cognitive-complexity: Server orchestration requires managing multiple surfaces
func (s *Server) Run() error {
	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	defer cancel()
	defer func() {
		if err := s.components.Close(); err != nil {
			s.log.Error("Failed to close components", logger.ErrorField(err))
		}
	}()

	s.setupGracefulShutdown()

	var wg sync.WaitGroup
	enabledCount := 0

	if s.opts.HTTP {
		enabledCount++
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.serveHTTP(ctx); err != nil {
				s.log.Error("HTTP server failed", logger.ErrorField(err))
				cancel()
			}
		}()
	}

	if s.cfg.Metrics.ExposeMetrics {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveMetrics(ctx)
		}()
	}

	// Start Slack connector if configured
	if s.slackConnector != nil {
		enabledCount++
		wg.Add(1)
		go func() {
			defer wg.Done()

			botInfo, err := s.slackConnector.GetBotInfo(ctx)
			if err != nil {
				s.log.Warn("Failed to get Slack bot info", logger.ErrorField(err))
			} else {
				s.log.Info("Slack bot connected", logger.StringField("bot_name", botInfo.Name))
			}

			if err := s.slackConnector.Start(ctx); err != nil {
				s.log.Error("Slack connector error", logger.ErrorField(err))
				cancel() // Trigger shutdown on error
			}
		}()
	} else if s.opts.Slack {
		s.log.Info("Slack connector disabled (missing SLACK_BOT_TOKEN or SLACK_APP_TOKEN)")
	}

	// Start Telegram connector if configured
	if s.telegramConnector != nil {
		enabledCount++
		wg.Add(1)
		go func() {
			defer wg.Done()

			botInfo, err := s.telegramConnector.GetBotInfo(ctx)
			if err != nil {
				s.log.Warn("Failed to get Telegram bot info", logger.ErrorField(err))
			} else {
				s.log.Info("Telegram bot connected",
					logger.StringField("bot_username", botInfo.Username),
					logger.StringField("bot_first_name", botInfo.FirstName))
			}

			if err := s.telegramConnector.Start(ctx); err != nil {
				s.log.Error("Telegram connector error", logger.ErrorField(err))
				cancel() // Trigger shutdown on error
			}
		}()
	} else if s.opts.Telegram {
		s.log.Info("Telegram connector disabled (missing TELEGRAM_BOT_TOKEN)")
	}

	if enabledCount == 0 {
		cancel()
		wg.Wait()
		return fmt.Errorf("nothing to run: enable the HTTP API or configure Slack or Telegram")
	}

	s.log.Info("All enabled surfaces started", logger.IntField("count", enabledCount))

	wg.Wait()
	s.log.Info("Server stopped")

	return nil
}

// serveHTTP listens until ctx is cancelled, then drains in-flight requests.
func (s *Server) serveHTTP(ctx context.Context) error {
	httpCfg := s.cfg.HTTP
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", httpCfg.Port),
		Handler:           s.Handler(),
		ReadTimeout:       httpCfg.ReadTimeout,
		ReadHeaderTimeout: httpCfg.ReadTimeout,
		WriteTimeout:      httpCfg.WriteTimeout,
		IdleTimeout:       httpCfg.IdleTimeout,
		MaxHeaderBytes:    httpCfg.MaxHeaderBytes,
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Starting HTTP server", logger.StringField("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err, ok := <-errChan:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("Gracefully closing HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout) //nolint:contextcheck // New context needed for shutdown
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil { //nolint:contextcheck // Using new context for graceful shutdown
		s.log.Error("Error during graceful shutdown", logger.ErrorField(err))
		if err := srv.Close(); err != nil {
			s.log.Error("Error during forced shutdown", logger.ErrorField(err))
		}
		return err
	}
	s.log.Info("HTTP server stopped")
	return nil
}

func (s *Server) serveMetrics(ctx context.Context) {
	m := s.components.Metrics
	if err := utils.WaitFirstError(ctx, m.Listen(s.cfg.Metrics.Port)); err != nil {
		s.log.Error("Metrics listener failed", logger.ErrorField(err))
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout) //nolint:contextcheck // New context needed for shutdown
	defer cancel()
	if err := m.Shutdown(shutdownCtx); err != nil { //nolint:contextcheck // Using new context for graceful shutdown
		s.log.Error("Metrics listener shutdown error", logger.ErrorField(err))
	}
}

// setupGracefulShutdown sets up signal handling for graceful shutdown
func (s *Server) setupGracefulShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		s.log.Info("Received shutdown signal", logger.StringField("signal", sig.String()))
		s.Shutdown()

		// Give processes time to shutdown gracefully, then force exit
		time.AfterFunc(forceExitTimeout, func() {
			s.log.Warn("Force exiting due to timeout")
			os.Exit(1)
		})
	}()
}

// Shutdown marks the server unready and stops Run.
func (s *Server) Shutdown() {
	s.shuttingDown.Store(true)
	if s.cancel != nil {
		s.cancel()
	}
}
