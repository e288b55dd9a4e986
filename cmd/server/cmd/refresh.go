package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/trustdirectory/internal/config"
	"github.com/Togather-Foundation/trustdirectory/internal/metrics"
	"github.com/Togather-Foundation/trustdirectory/internal/orchestrator"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run a single ingestion refresh and exit",
	Long: `Run one ingestion pass across every jurisdiction connector, merge the
results into the repository, and exit (RUN_MODE=refresh_once, section 6).

Exit codes:
  0  at least one connector succeeded
  1  the refresh failed on a repository error
  2  every connector failed`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRefreshOnce()
	},
}

func runRefreshOnce() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Msg("running one-off ingestion refresh")

	metrics.Init(Version, GitCommit, BuildDate)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	repo, closeRepo, err := buildRepository(ctx, cfg)
	cancel()
	if err != nil {
		return fmt.Errorf("repository setup failed: %w", err)
	}
	defer closeRepo()

	conns := buildConnectors(cfg, logger)
	orch := orchestrator.New(repo, conns, cfg.Jobs.FetchTimeout, logger)

	runCtx, runCancel := context.WithTimeout(context.Background(), cfg.Jobs.FetchTimeout*time.Duration(len(conns)+1))
	defer runCancel()

	result, err := orch.RunRefresh(runCtx)
	if err != nil {
		logger.Error().Err(err).Msg("refresh failed")
		os.Exit(1)
	}

	code := orchestrator.ExitCode(result)
	logger.Info().Int("exit_code", code).Int("facilities", result.UniqueFacilities).Msg("refresh complete")
	os.Exit(code)
	return nil
}
