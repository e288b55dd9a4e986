package merge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/trustdirectory/internal/connectors"
	"github.com/Togather-Foundation/trustdirectory/internal/domain/facility"
	"github.com/Togather-Foundation/trustdirectory/internal/domain/trust"
)

func numeric(v float64) *trust.RawScore {
	s := trust.NewNumeric(v)
	return &s
}

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func noMatch(ctx context.Context, id string) (facility.Facility, bool, error) {
	return facility.Facility{}, false, nil
}

func TestCollapseIntraSourceKeepsLatestDate(t *testing.T) {
	records := []connectors.RawRecord{
		{Jurisdiction: "los_angeles_county", SourceKey: "A1", Name: "Old Name", InspectionDate: day(2024, 1, 1), Score: numeric(70)},
		{Jurisdiction: "los_angeles_county", SourceKey: "A1", Name: "New Name", InspectionDate: day(2024, 6, 1), Score: numeric(90)},
	}

	out := CollapseIntraSource(records)
	require.Len(t, out, 1)
	require.Equal(t, "New Name", out[0].Name)
}

func TestCollapseIntraSourceOrderIndependent(t *testing.T) {
	a := connectors.RawRecord{Jurisdiction: "los_angeles_county", SourceKey: "A1", Name: "First", InspectionDate: day(2024, 1, 1), Score: numeric(70)}
	b := connectors.RawRecord{Jurisdiction: "los_angeles_county", SourceKey: "A1", Name: "Second", InspectionDate: day(2024, 6, 1), Score: numeric(90)}

	forward := CollapseIntraSource([]connectors.RawRecord{a, b})
	backward := CollapseIntraSource([]connectors.RawRecord{b, a})

	require.Equal(t, forward, backward)
	require.Equal(t, "Second", forward[0].Name)
}

func TestCollapseIntraSourceDistinctJurisdictionsNeverMerge(t *testing.T) {
	records := []connectors.RawRecord{
		{Jurisdiction: "los_angeles_county", SourceKey: "SAME", Name: "LA Diner", InspectionDate: day(2024, 1, 1), Score: numeric(80)},
		{Jurisdiction: "san_diego_county", SourceKey: "SAME", Name: "SD Diner", InspectionDate: day(2024, 1, 1), Score: numeric(80)},
	}

	out := CollapseIntraSource(records)
	require.Len(t, out, 2)
}

func TestReconcileBuildsFacilitiesFromRawRecords(t *testing.T) {
	records := []connectors.RawRecord{
		{
			Jurisdiction:  "los_angeles_county",
			SourceKey:     "F100",
			Name:          "Taco Stand",
			StreetAddress: "123 Main St",
			City:          "Los Angeles",
			State:         "CA",
			InspectionDate: day(2024, 3, 1),
			Score:         numeric(92),
		},
	}

	out, warnings, err := Reconcile(context.Background(), records, noMatch, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, out, 1)

	f := out[0]
	require.Equal(t, facility.DeriveID("los_angeles_county", "F100"), f.ID)
	require.Equal(t, 92, f.TrustScore)
	require.Equal(t, trust.BandExcellent, f.Band)
	require.Equal(t, 0, f.Likes)
	require.Equal(t, 0, f.Dislikes)
}

func TestReconcilePreservesIDAndVoteCountersOnReingestion(t *testing.T) {
	id := facility.DeriveID("los_angeles_county", "F100")
	existing := facility.Facility{
		ID:        id,
		Likes:     12,
		Dislikes:  3,
		CreatedAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	lookup := func(ctx context.Context, lookupID string) (facility.Facility, bool, error) {
		require.Equal(t, id, lookupID)
		return existing, true, nil
	}

	records := []connectors.RawRecord{
		{
			Jurisdiction:  "los_angeles_county",
			SourceKey:     "F100",
			Name:          "Taco Stand Reborn",
			InspectionDate: day(2024, 6, 1),
			Score:         numeric(55),
		},
	}

	out, _, err := Reconcile(context.Background(), records, lookup, time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, out, 1)

	f := out[0]
	require.Equal(t, id, f.ID)
	require.Equal(t, 12, f.Likes)
	require.Equal(t, 3, f.Dislikes)
	require.Equal(t, existing.CreatedAt, f.CreatedAt)
	require.Equal(t, "Taco Stand Reborn", f.Name)
	require.Equal(t, 55, f.TrustScore)
}

func TestReconcileSkipsRecordsMissingScore(t *testing.T) {
	records := []connectors.RawRecord{
		{Jurisdiction: "los_angeles_county", SourceKey: "F1", Name: "No Score Yet"},
	}

	out, warnings, err := Reconcile(context.Background(), records, noMatch, time.Now())
	require.NoError(t, err)
	require.Empty(t, out)
	require.Len(t, warnings, 1)
}

func TestReconcileSkipsInvalidLatitude(t *testing.T) {
	badLat := 500.0
	records := []connectors.RawRecord{
		{Jurisdiction: "los_angeles_county", SourceKey: "F1", Name: "Bad Coords", Latitude: &badLat, Score: numeric(80)},
	}

	out, warnings, err := Reconcile(context.Background(), records, noMatch, time.Now())
	require.NoError(t, err)
	require.Empty(t, out)
	require.Len(t, warnings, 1)
}

func TestRepositoryLookupTranslatesNotFound(t *testing.T) {
	repo := &stubRepository{err: facility.ErrNotFound}
	lookup := RepositoryLookup(repo)

	_, ok, err := lookup(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

type stubRepository struct {
	facility.Repository
	f   facility.Facility
	err error
}

func (s *stubRepository) GetFacility(ctx context.Context, id string) (facility.Facility, error) {
	return s.f, s.err
}
