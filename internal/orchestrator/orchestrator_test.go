package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/trustdirectory/internal/connectors"
	"github.com/Togather-Foundation/trustdirectory/internal/domain/trust"
	"github.com/Togather-Foundation/trustdirectory/internal/storage/memory"
)

type fakeConnector struct {
	name    string
	records int
	fail    error
}

func (f fakeConnector) Name() string { return f.name }

func (f fakeConnector) Fetch(ctx context.Context) ([]connectors.RawRecord, []string, error) {
	out := make([]connectors.RawRecord, 0, f.records)
	for i := 0; i < f.records; i++ {
		score := trust.NewNumeric(5)
		out = append(out, connectors.RawRecord{
			Jurisdiction: f.name,
			SourceKey:    fmt.Sprintf("rec-%d", i),
			Name:         fmt.Sprintf("%s facility %d", f.name, i),
			Score:        &score,
		})
	}
	if f.fail != nil {
		return out, nil, f.fail
	}
	return out, nil, nil
}

// S6 from the spec's seeded end-to-end scenarios: 3 of 5 connectors succeed
// with 10 records each, 2 fail outright.
func TestRunRefreshScenarioS6(t *testing.T) {
	repo := memory.New()

	conns := []connectors.Connector{
		fakeConnector{name: "los_angeles_county", records: 10},
		fakeConnector{name: "san_diego_county", records: 10},
		fakeConnector{name: "long_beach", records: 10},
		fakeConnector{name: "riverside_county", fail: errors.New("upstream unreachable")},
		fakeConnector{name: "san_bernardino_county", fail: errors.New("upstream timed out")},
	}

	o := New(repo, conns, time.Second, zerolog.Nop())
	result, err := o.RunRefresh(context.Background())
	require.NoError(t, err)

	require.True(t, result.AnySucceeded)
	require.GreaterOrEqual(t, result.UniqueFacilities, 30)
	require.Len(t, result.ConnectorStats, 5)

	failedCount := 0
	for _, stat := range result.ConnectorStats {
		if stat.Error != "" {
			failedCount++
		}
	}
	require.Equal(t, 2, failedCount)

	stats, err := repo.IngestionStats(context.Background())
	require.NoError(t, err)
	require.False(t, stats.LastRefreshAt.Before(result.StartedAt))
}

func TestRunRefreshAllConnectorsFailedYieldsExitCodeTwo(t *testing.T) {
	repo := memory.New()
	conns := []connectors.Connector{
		fakeConnector{name: "los_angeles_county", fail: errors.New("down")},
		fakeConnector{name: "san_diego_county", fail: errors.New("down")},
	}

	o := New(repo, conns, time.Second, zerolog.Nop())
	result, err := o.RunRefresh(context.Background())
	require.NoError(t, err)
	require.False(t, result.AnySucceeded)
	require.Equal(t, 2, ExitCode(result))
}

func TestRunRefreshPartialSuccessYieldsExitCodeZero(t *testing.T) {
	repo := memory.New()
	conns := []connectors.Connector{
		fakeConnector{name: "los_angeles_county", records: 3},
		fakeConnector{name: "san_diego_county", fail: errors.New("down")},
	}

	o := New(repo, conns, time.Second, zerolog.Nop())
	result, err := o.RunRefresh(context.Background())
	require.NoError(t, err)
	require.True(t, result.AnySucceeded)
	require.Equal(t, 0, ExitCode(result))
}

func TestSchedulerCoalescesManualRequests(t *testing.T) {
	repo := memory.New()
	conns := []connectors.Connector{fakeConnector{name: "los_angeles_county", records: 2}}
	o := New(repo, conns, time.Second, zerolog.Nop())
	s := NewScheduler(o, time.Hour, zerolog.Nop())

	require.True(t, s.RequestRefresh())
	require.False(t, s.RequestRefresh(), "a second request while one is pending must coalesce, not queue a duplicate run")
}
