package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/trustdirectory/internal/domain/facility"
	"github.com/Togather-Foundation/trustdirectory/internal/storage/storagetest"
)

func ptr(f float64) *float64 { return &f }

func TestRepositorySuite(t *testing.T) {
	storagetest.RunSuite(t, func() facility.Repository { return New() })
}

func TestUpsertFacilityRejectsInvalidRecord(t *testing.T) {
	repo := New()
	err := repo.UpsertFacility(context.Background(), facility.Facility{TrustScore: 200})
	require.Error(t, err)
}

func TestGridCandidatesExcludeDistantCells(t *testing.T) {
	repo := New()
	ctx := context.Background()

	near := facility.Facility{ID: "near", Jurisdiction: "los_angeles_county", SourceKey: "near",
		Name: "Near", Latitude: ptr(34.05), Longitude: ptr(-118.24), TrustScore: 90, Band: "excellent"}
	far := facility.Facility{ID: "far", Jurisdiction: "los_angeles_county", SourceKey: "far",
		Name: "Far", Latitude: ptr(40.71), Longitude: ptr(-74.01), TrustScore: 90, Band: "excellent"}

	require.NoError(t, repo.UpsertFacility(ctx, near))
	require.NoError(t, repo.UpsertFacility(ctx, far))

	lat, lon := 34.05, -118.24
	page, err := repo.Search(ctx, facility.Query{Latitude: &lat, Longitude: &lon, RadiusMiles: 10, Page: 1, PageSize: 24})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "near", page.Items[0].ID)
}
