package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler drives the orchestrator on an interval (worker mode, section
// 4.5/4.9) and coalesces manual refresh requests (section 9: an operator or
// the /api/v1/system/refresh endpoint asking for an out-of-band refresh)
// into a single-slot mailbox so a burst of requests triggers at most one
// extra run instead of one run per request.
type Scheduler struct {
	orchestrator *Orchestrator
	interval     time.Duration
	logger       zerolog.Logger

	manual chan struct{}
}

func NewScheduler(o *Orchestrator, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		orchestrator: o,
		interval:     interval,
		logger:       logger,
		manual:       make(chan struct{}, 1),
	}
}

// RequestRefresh enqueues a manual refresh. It reports whether the request
// was newly queued; false means a refresh was already pending and this
// request coalesced into it rather than scheduling a second run.
func (s *Scheduler) RequestRefresh() bool {
	select {
	case s.manual <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run blocks, triggering a refresh on every tick of interval and whenever a
// manual refresh is queued, until ctx is cancelled. Refreshes never overlap:
// the select loop only starts the next one after the previous RunRefresh call
// returns.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, "scheduled")
		case <-s.manual:
			s.runOnce(ctx, "manual")
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, trigger string) {
	result, err := s.orchestrator.RunRefresh(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("trigger", trigger).Msg("refresh failed")
		return
	}
	s.logger.Info().
		Str("trigger", trigger).
		Int("unique_facilities", result.UniqueFacilities).
		Bool("any_succeeded", result.AnySucceeded).
		Int("connectors_run", len(result.ConnectorStats)).
		Dur("elapsed", result.CompletedAt.Sub(result.StartedAt)).
		Msg("refresh completed")
}

// ExitCode maps a refresh_once result to the process exit code contract from
// section 6: 0 when at least one connector succeeded, 2 when every connector
// failed. A repository/startup error is reported separately by the caller as
// exit code 1 and never reaches this function.
func ExitCode(result RefreshResult) int {
	if result.AnySucceeded {
		return 0
	}
	return 2
}
