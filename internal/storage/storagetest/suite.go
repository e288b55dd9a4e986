// Package storagetest holds the repository property suite shared by the
// durable and ephemeral backends (section 4.4: "both must pass the same
// property tests"). RunSuite is called once per backend with a factory that
// returns a fresh, empty facility.Repository.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/trustdirectory/internal/domain/facility"
)

func ptr(f float64) *float64 { return &f }

// RunSuite exercises every universal property from section 8 against repo.
func RunSuite(t *testing.T, newRepo func() facility.Repository) {
	t.Run("UpsertAndGet", func(t *testing.T) { testUpsertAndGet(t, newRepo()) })
	t.Run("IdempotentIngestion", func(t *testing.T) { testIdempotentIngestion(t, newRepo()) })
	t.Run("GeoSearchScenarioS2", func(t *testing.T) { testGeoSearchS2(t, newRepo()) })
	t.Run("KeywordSearchScenarioS3", func(t *testing.T) { testKeywordSearchS3(t, newRepo()) })
	t.Run("StablePaginationScenarioS4", func(t *testing.T) { testPaginationS4(t, newRepo()) })
	t.Run("VoteMonotonicity", func(t *testing.T) { testVoteMonotonicity(t, newRepo()) })
	t.Run("TopVotedOrdering", func(t *testing.T) { testTopVotedOrdering(t, newRepo()) })
	t.Run("GetFacilityNotFound", func(t *testing.T) { testGetFacilityNotFound(t, newRepo()) })
	t.Run("ApplyVoteNotFound", func(t *testing.T) { testApplyVoteNotFound(t, newRepo()) })
	t.Run("IngestionStatsTracksConnectors", func(t *testing.T) { testIngestionStats(t, newRepo()) })
}

func testUpsertAndGet(t *testing.T, repo facility.Repository) {
	ctx := context.Background()
	f := facility.Facility{
		ID:           "fac-1",
		Jurisdiction: "los_angeles_county",
		SourceKey:    "src-1",
		Name:         "Test Diner",
		TrustScore:   90,
		Band:         "excellent",
	}
	require.NoError(t, repo.UpsertFacility(ctx, f))

	got, err := repo.GetFacility(ctx, "fac-1")
	require.NoError(t, err)
	require.Equal(t, "Test Diner", got.Name)
	require.Equal(t, 90, got.TrustScore)
}

// Property 2: idempotent ingestion. Upserting the same facility twice keeps
// its id and descriptive fields overwritten, but votes collected in between
// survive.
func testIdempotentIngestion(t *testing.T, repo facility.Repository) {
	ctx := context.Background()
	f := facility.Facility{
		ID:           "fac-2",
		Jurisdiction: "los_angeles_county",
		SourceKey:    "src-2",
		Name:         "First Pass",
		TrustScore:   70,
		Band:         "good",
	}
	require.NoError(t, repo.UpsertFacility(ctx, f))

	_, err := repo.ApplyVote(ctx, "fac-2", facility.VoteLike)
	require.NoError(t, err)

	f.Name = "Second Pass"
	f.TrustScore = 95
	f.Band = "excellent"
	require.NoError(t, repo.UpsertFacility(ctx, f))

	got, err := repo.GetFacility(ctx, "fac-2")
	require.NoError(t, err)
	require.Equal(t, "Second Pass", got.Name)
	require.Equal(t, 95, got.TrustScore)
	require.Equal(t, 1, got.Likes, "vote collected between ingestions must survive re-upsert")
}

// S2 from the spec's seeded end-to-end scenarios.
func testGeoSearchS2(t *testing.T, repo facility.Repository) {
	ctx := context.Background()

	a := facility.Facility{ID: "A", Jurisdiction: "los_angeles_county", SourceKey: "a", Name: "A",
		Latitude: ptr(34.05), Longitude: ptr(-118.24), TrustScore: 92, Band: "excellent"}
	b := facility.Facility{ID: "B", Jurisdiction: "los_angeles_county", SourceKey: "b", Name: "B",
		Latitude: ptr(34.10), Longitude: ptr(-118.30), TrustScore: 78, Band: "needs_attention"}
	c := facility.Facility{ID: "C", Jurisdiction: "los_angeles_county", SourceKey: "c", Name: "C",
		TrustScore: 88, Band: "excellent"}

	require.NoError(t, repo.UpsertFacility(ctx, a))
	require.NoError(t, repo.UpsertFacility(ctx, b))
	require.NoError(t, repo.UpsertFacility(ctx, c))

	lat, lon := 34.05, -118.24
	page, err := repo.Search(ctx, facility.Query{
		Latitude: &lat, Longitude: &lon, RadiusMiles: 5,
		Slice: facility.SliceElite, Page: 1, PageSize: 24,
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "A", page.Items[0].ID)
	require.Equal(t, 1, page.TotalCount)
	require.Equal(t, 2, page.SliceCounts[facility.SliceAll], "C has no coordinates and must be excluded from a geo query's slice counts")
	require.Equal(t, 1, page.SliceCounts[facility.SliceElite])
	require.Equal(t, 0, page.SliceCounts[facility.SliceSolid])
	require.Equal(t, 1, page.SliceCounts[facility.SliceWatch])
}

// S3 from the spec's seeded end-to-end scenarios.
func testKeywordSearchS3(t *testing.T, repo facility.Repository) {
	ctx := context.Background()

	sushi := facility.Facility{ID: "sushi", Jurisdiction: "los_angeles_county", SourceKey: "sushi",
		Name: "Sushi Palace", TrustScore: 91, Band: "excellent"}
	other := facility.Facility{ID: "other", Jurisdiction: "los_angeles_county", SourceKey: "other",
		Name: "Burger Joint", Latitude: ptr(34.0), Longitude: ptr(-118.0), TrustScore: 80, Band: "good"}

	require.NoError(t, repo.UpsertFacility(ctx, sushi))
	require.NoError(t, repo.UpsertFacility(ctx, other))

	lat, lon := 0.0, 0.0
	page, err := repo.Search(ctx, facility.Query{
		Keyword: "sush", Latitude: &lat, Longitude: &lon, RadiusMiles: 1,
		Page: 1, PageSize: 24,
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "sushi", page.Items[0].ID)
}

// S4 from the spec's seeded end-to-end scenarios.
func testPaginationS4(t *testing.T, repo facility.Repository) {
	ctx := context.Background()
	for i := 0; i < 30; i++ {
		f := facility.Facility{
			ID:           factorID(i),
			Jurisdiction: "los_angeles_county",
			SourceKey:    factorID(i),
			Name:         factorID(i),
			TrustScore:   50,
			Band:         "needs_attention",
		}
		require.NoError(t, repo.UpsertFacility(ctx, f))
	}

	seen := map[string]bool{}
	expectedCounts := []int{12, 12, 6, 0}
	for page := 1; page <= 4; page++ {
		got, err := repo.Search(ctx, facility.Query{Page: page, PageSize: 12})
		require.NoError(t, err)
		require.Equal(t, 30, got.TotalCount)
		require.Len(t, got.Items, expectedCounts[page-1])
		for _, item := range got.Items {
			require.False(t, seen[item.ID], "facility %s returned on more than one page", item.ID)
			seen[item.ID] = true
		}
	}
	require.Len(t, seen, 30)
}

func factorID(i int) string {
	return "facility-" + string(rune('a'+i%26)) + string(rune('0'+i/26))
}

// Property 6: vote monotonicity.
func testVoteMonotonicity(t *testing.T, repo facility.Repository) {
	ctx := context.Background()
	f := facility.Facility{ID: "vote-1", Jurisdiction: "los_angeles_county", SourceKey: "vote-1",
		Name: "Vote Target", TrustScore: 80, Band: "good"}
	require.NoError(t, repo.UpsertFacility(ctx, f))

	for i := 1; i <= 3; i++ {
		summary, err := repo.ApplyVote(ctx, "vote-1", facility.VoteLike)
		require.NoError(t, err)
		require.Equal(t, i, summary.Likes)
		require.Equal(t, 0, summary.Dislikes)
		require.Equal(t, i, summary.VoteScore)
	}

	summary, err := repo.ApplyVote(ctx, "vote-1", facility.VoteDislike)
	require.NoError(t, err)
	require.Equal(t, 3, summary.Likes)
	require.Equal(t, 1, summary.Dislikes)
	require.Equal(t, 2, summary.VoteScore)
}

func testTopVotedOrdering(t *testing.T, repo facility.Repository) {
	ctx := context.Background()
	low := facility.Facility{ID: "low", Jurisdiction: "los_angeles_county", SourceKey: "low", Name: "Low", TrustScore: 60, Band: "needs_attention"}
	high := facility.Facility{ID: "high", Jurisdiction: "los_angeles_county", SourceKey: "high", Name: "High", TrustScore: 99, Band: "excellent"}
	require.NoError(t, repo.UpsertFacility(ctx, low))
	require.NoError(t, repo.UpsertFacility(ctx, high))

	_, err := repo.ApplyVote(ctx, "high", facility.VoteLike)
	require.NoError(t, err)
	_, err = repo.ApplyVote(ctx, "high", facility.VoteLike)
	require.NoError(t, err)
	_, err = repo.ApplyVote(ctx, "low", facility.VoteLike)
	require.NoError(t, err)

	top, err := repo.TopVoted(ctx, 10)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(top), 2)
	require.Equal(t, "high", top[0].ID)
}

func testGetFacilityNotFound(t *testing.T, repo facility.Repository) {
	_, err := repo.GetFacility(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, facility.ErrNotFound)
}

func testApplyVoteNotFound(t *testing.T, repo facility.Repository) {
	_, err := repo.ApplyVote(context.Background(), "does-not-exist", facility.VoteLike)
	require.ErrorIs(t, err, facility.ErrNotFound)
}

// Property 7: partial-failure tolerance at the repository's own bookkeeping
// surface (the orchestrator-level scenario S6 is covered separately).
func testIngestionStats(t *testing.T, repo facility.Repository) {
	ctx := context.Background()

	require.NoError(t, repo.RecordConnectorStatus(ctx, facility.ConnectorStatus{Source: "los_angeles_county", FetchedRecords: 10, RanAt: time.Now()}))
	require.NoError(t, repo.RecordConnectorStatus(ctx, facility.ConnectorStatus{Source: "san_diego_county", Error: "timeout", RanAt: time.Now()}))

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.RecordRefreshCompleted(ctx, start, 0))

	stats, err := repo.IngestionStats(ctx)
	require.NoError(t, err)
	require.Equal(t, start, stats.LastRefreshAt.UTC())
	require.Len(t, stats.ConnectorStats, 2)

	var errored int
	for _, s := range stats.ConnectorStats {
		if s.Error != "" {
			errored++
		}
	}
	require.Equal(t, 1, errored)
}
