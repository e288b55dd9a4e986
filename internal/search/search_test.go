package search

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/trustdirectory/internal/domain/facility"
	"github.com/Togather-Foundation/trustdirectory/internal/storage/memory"
)

func TestParseQueryDefaults(t *testing.T) {
	svc := New(memory.New())
	q, err := svc.ParseQuery(url.Values{})
	require.NoError(t, err)
	require.Equal(t, facility.SliceAll, q.Slice)
	require.Equal(t, facility.SortTrustDesc, q.Sort)
	require.Equal(t, 1, q.Page)
	require.Equal(t, 12, q.PageSize)
	require.False(t, q.UsesGeo())
}

func TestParseQueryRejectsInvalidScoreSlice(t *testing.T) {
	svc := New(memory.New())
	_, err := svc.ParseQuery(url.Values{"score_slice": {"bogus"}})
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestParseQueryRejectsInvalidSort(t *testing.T) {
	svc := New(memory.New())
	_, err := svc.ParseQuery(url.Values{"sort": {"bogus"}})
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestParseQueryRejectsDisallowedPageSize(t *testing.T) {
	svc := New(memory.New())
	_, err := svc.ParseQuery(url.Values{"page_size": {"13"}})
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestParseQueryRejectsNonPositivePage(t *testing.T) {
	svc := New(memory.New())
	_, err := svc.ParseQuery(url.Values{"page": {"0"}})
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestParseQueryRejectsOutOfRangeCoordinates(t *testing.T) {
	svc := New(memory.New())
	_, err := svc.ParseQuery(url.Values{"latitude": {"91"}, "longitude": {"-118"}})
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestParseQueryRejectsNonFiniteCoordinates(t *testing.T) {
	svc := New(memory.New())
	_, err := svc.ParseQuery(url.Values{"latitude": {"NaN"}, "longitude": {"-118"}})
	require.ErrorIs(t, err, ErrInvalidQuery)

	_, err = svc.ParseQuery(url.Values{"latitude": {"34"}, "longitude": {"Inf"}})
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestParseQueryRejectsNonFiniteRadius(t *testing.T) {
	svc := New(memory.New())
	_, err := svc.ParseQuery(url.Values{
		"latitude": {"34"}, "longitude": {"-118"}, "radius_miles": {"NaN"},
	})
	require.ErrorIs(t, err, ErrInvalidQuery)
}

// Section 4.6 edge case: radius<=0 is accepted and yields an empty geo
// window, not a validation error and not a fallback to the default radius.
func TestParseQueryZeroOrNegativeRadiusStaysGeoButEmpty(t *testing.T) {
	svc := New(memory.New())

	q, err := svc.ParseQuery(url.Values{
		"latitude": {"34.05"}, "longitude": {"-118.25"}, "radius_miles": {"0"},
	})
	require.NoError(t, err)
	require.True(t, q.UsesGeo())
	require.Equal(t, float64(0), q.RadiusMiles)

	q, err = svc.ParseQuery(url.Values{
		"latitude": {"34.05"}, "longitude": {"-118.25"}, "radius_miles": {"-5"},
	})
	require.NoError(t, err)
	require.True(t, q.UsesGeo())
	require.Equal(t, float64(-5), q.RadiusMiles)
}

func TestParseQueryDefaultsRadiusWhenCoordinatesGivenWithoutRadius(t *testing.T) {
	svc := New(memory.New())
	q, err := svc.ParseQuery(url.Values{"latitude": {"34.05"}, "longitude": {"-118.25"}})
	require.NoError(t, err)
	require.Equal(t, float64(10), q.RadiusMiles)
}

func TestSearchZeroRadiusReturnsNoResults(t *testing.T) {
	repo := memory.New()
	lat, lon := 34.05, -118.25
	require.NoError(t, repo.UpsertFacility(context.Background(), facility.Facility{
		ID: "fac-1", Jurisdiction: "los_angeles_county", SourceKey: "fac-1",
		Name: "Close Diner", TrustScore: 80, Band: "good",
		Latitude: &lat, Longitude: &lon,
	}))

	svc := New(repo)
	q, err := svc.ParseQuery(url.Values{
		"latitude": {"34.05"}, "longitude": {"-118.25"}, "radius_miles": {"0"},
	})
	require.NoError(t, err)

	page, err := svc.Search(context.Background(), q)
	require.NoError(t, err)
	require.Empty(t, page.Items)
	require.Equal(t, 0, page.TotalCount)
}

func TestTopPicksRejectsLimitAboveFifty(t *testing.T) {
	svc := New(memory.New())
	_, err := svc.TopPicks(context.Background(), 51)
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestTopPicksDefaultsLimit(t *testing.T) {
	repo := memory.New()
	for i := 0; i < 3; i++ {
		id := string(rune('a' + i))
		require.NoError(t, repo.UpsertFacility(context.Background(), facility.Facility{
			ID: id, Jurisdiction: "los_angeles_county", SourceKey: id,
			Name: "Place " + id, TrustScore: 80, Band: "good",
		}))
	}
	svc := New(repo)
	picks, err := svc.TopPicks(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, picks, 3)
}
