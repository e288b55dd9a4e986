// Package orchestrator implements the Ingestion Orchestrator (component E,
// section 4.5): it runs every configured connector concurrently, then
// applies the merge engine and writes to the repository sequentially, one
// connector's results at a time in connector-completion order. Writes are
// individual upserts, not one transaction, so readers can observe a refresh
// while it is being applied.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/trustdirectory/internal/connectors"
	"github.com/Togather-Foundation/trustdirectory/internal/domain/facility"
	"github.com/Togather-Foundation/trustdirectory/internal/ingest/merge"
)

// Orchestrator owns the connector fan-out and the sequential repository
// writes for one refresh.
type Orchestrator struct {
	repo         facility.Repository
	connectors   []connectors.Connector
	fetchTimeout time.Duration
	logger       zerolog.Logger
}

func New(repo facility.Repository, conns []connectors.Connector, fetchTimeout time.Duration, logger zerolog.Logger) *Orchestrator {
	if fetchTimeout <= 0 {
		fetchTimeout = connectors.DefaultTimeout
	}
	return &Orchestrator{repo: repo, connectors: conns, fetchTimeout: fetchTimeout, logger: logger}
}

// RefreshResult summarizes one completed refresh (section 8 scenario S6).
type RefreshResult struct {
	StartedAt        time.Time
	CompletedAt      time.Time
	UniqueFacilities int
	ConnectorStats   []facility.ConnectorStatus
	AnySucceeded     bool
}

type fetchOutcome struct {
	connector connectors.Connector
	records   []connectors.RawRecord
	warnings  []string
	err       error
	ranAt     time.Time
}

// RunRefresh runs every connector concurrently (section 5: independent
// network I/O), then folds each connector's result into the repository
// sequentially as it arrives, in whatever order fetches happen to complete.
// A connector's UpstreamFetchError is recorded on its connector status and
// never aborts the run (section 7 propagation policy); RunRefresh itself
// only returns an error for a repository failure, which aborts the refresh;
// facilities upserted before the failure stay written.
func (o *Orchestrator) RunRefresh(ctx context.Context) (RefreshResult, error) {
	start := time.Now().UTC()

	outcomes := make(chan fetchOutcome, len(o.connectors))
	var wg sync.WaitGroup
	for _, c := range o.connectors {
		wg.Add(1)
		go func(c connectors.Connector) {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, o.fetchTimeout)
			defer cancel()

			records, warnings, err := c.Fetch(fetchCtx)
			outcomes <- fetchOutcome{connector: c, records: records, warnings: warnings, err: err, ranAt: time.Now().UTC()}
		}(c)
	}
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	lookup := merge.RepositoryLookup(o.repo)

	result := RefreshResult{StartedAt: start}
	for outcome := range outcomes {
		status := facility.ConnectorStatus{
			Source:         outcome.connector.Name(),
			FetchedRecords: len(outcome.records),
			RanAt:          outcome.ranAt,
		}
		if outcome.err != nil {
			status.Error = outcome.err.Error()
			o.logger.Warn().Str("connector", status.Source).Err(outcome.err).Msg("connector fetch failed")
		} else {
			result.AnySucceeded = true
		}
		for _, w := range outcome.warnings {
			o.logger.Warn().Str("connector", status.Source).Str("warning", w).Msg("connector parse warning")
		}

		if len(outcome.records) > 0 {
			facilities, mergeWarnings, err := merge.Reconcile(ctx, outcome.records, lookup, outcome.ranAt)
			if err != nil {
				return RefreshResult{}, fmt.Errorf("orchestrator: reconcile %s: %w", status.Source, err)
			}
			for _, w := range mergeWarnings {
				o.logger.Warn().Str("connector", status.Source).Str("warning", w).Msg("merge warning")
			}
			for _, f := range facilities {
				if err := o.repo.UpsertFacility(ctx, f); err != nil {
					return RefreshResult{}, fmt.Errorf("orchestrator: upsert facility from %s: %w", status.Source, err)
				}
			}
		}

		if err := o.repo.RecordConnectorStatus(ctx, status); err != nil {
			return RefreshResult{}, fmt.Errorf("orchestrator: record connector status for %s: %w", status.Source, err)
		}
		result.ConnectorStats = append(result.ConnectorStats, status)
	}

	stats, err := o.repo.IngestionStats(ctx)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("orchestrator: read ingestion stats: %w", err)
	}
	result.UniqueFacilities = stats.UniqueFacilities
	result.CompletedAt = time.Now().UTC()

	if err := o.repo.RecordRefreshCompleted(ctx, result.CompletedAt, result.UniqueFacilities); err != nil {
		return RefreshResult{}, fmt.Errorf("orchestrator: record refresh completed: %w", err)
	}

	return result, nil
}
