package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/trustdirectory/internal/api"
	"github.com/Togather-Foundation/trustdirectory/internal/config"
	"github.com/Togather-Foundation/trustdirectory/internal/metrics"
	"github.com/Togather-Foundation/trustdirectory/internal/orchestrator"
	"github.com/Togather-Foundation/trustdirectory/internal/search"
	"github.com/Togather-Foundation/trustdirectory/internal/voting"
)

var (
	// Server flags (override config/env)
	serverHost string
	serverPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server and begin accepting API requests.

In "api" mode (RUN_MODE=api, the default) the server only answers requests;
ingestion never runs on its own. In "worker" mode it additionally runs the
scheduled refresh loop (REFRESH_INTERVAL_MINUTES) alongside the listener.

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  server serve --log-level debug`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 8080)")
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("mode", cfg.Server.Mode).Msg("starting trustdirectory server")

	metrics.Init(Version, GitCommit, BuildDate)
	logger.Info().Str("version", Version).Msg("metrics initialized")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	repo, closeRepo, err := buildRepository(ctx, cfg)
	cancel()
	if err != nil {
		return fmt.Errorf("repository setup failed: %w", err)
	}
	defer closeRepo()

	conns := buildConnectors(cfg, logger)
	orch := orchestrator.New(repo, conns, cfg.Jobs.FetchTimeout, logger)

	var scheduler *orchestrator.Scheduler
	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	if cfg.Server.Mode == "worker" {
		scheduler = orchestrator.NewScheduler(orch, cfg.Jobs.RefreshInterval, logger)
		go scheduler.Run(runCtx)
		logger.Info().Dur("interval", cfg.Jobs.RefreshInterval).Msg("ingestion scheduler started")
	}

	searchSvc := search.New(repo)
	voteSvc := voting.New(repo, voting.Limits{
		Cooldown:        cfg.RateLimit.VoteCooldown,
		Window:          cfg.RateLimit.VoteWindow,
		MaxPerWindow:    cfg.RateLimit.VoteMaxPerWindow,
		CleanupInterval: cfg.RateLimit.CleanupInterval,
	})

	handler := api.NewRouter(repo, searchSvc, voteSvc, scheduler, cfg, logger, Version, GitCommit, BuildDate)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	return gracefulShutdown(server, logger)
}

func gracefulShutdown(server *http.Server, logger zerolog.Logger) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}
