// Package search implements the Search Service (section 4.6): it parses and
// validates the query surface, enforces pagination bounds, and delegates to
// facility.Repository.Search for the actual filtering/ordering.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Togather-Foundation/trustdirectory/internal/domain/facility"
)

// ErrInvalidQuery marks a malformed request; handlers map it to ValidationError/400.
var ErrInvalidQuery = errors.New("search: invalid query")

var allowedPageSizes = map[int]bool{12: true, 24: true, 48: true}

// rawQuery carries validator tags for the bounds validator.Validate enforces
// once the request's individual fields have been type-converted from the
// query string (section 4.6's fields are not all strings, so binding happens
// by hand below; validator.Struct only checks the post-conversion bounds).
type rawQuery struct {
	Latitude  float64 `validate:"omitempty,gte=-90,lte=90"`
	Longitude float64 `validate:"omitempty,gte=-180,lte=180"`
	Page      int     `validate:"gte=1"`
	PageSize  int     `validate:"required"`
}

// Service wraps a facility.Repository with request parsing/validation.
type Service struct {
	repo     facility.Repository
	validate *validator.Validate
}

func New(repo facility.Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// ParseQuery converts an HTTP query string into a facility.Query, enforcing
// every bound from section 4.6: finite coordinates, allowed page sizes, the
// sort/slice enums, and radius<=0 meaning an empty geo window.
func (s *Service) ParseQuery(values url.Values) (facility.Query, error) {
	q := facility.Query{
		Keyword:      strings.TrimSpace(values.Get("q")),
		Jurisdiction: strings.TrimSpace(values.Get("jurisdiction")),
		Slice:        facility.ScoreSlice(orDefault(values.Get("score_slice"), "all")),
		RecentOnly:   values.Get("recent_only") == "true",
		Sort:         facility.SortOrder(orDefault(values.Get("sort"), string(facility.SortTrustDesc))),
		Page:         1,
		PageSize:     12,
	}

	switch q.Slice {
	case facility.SliceAll, facility.SliceElite, facility.SliceSolid, facility.SliceWatch:
	default:
		return facility.Query{}, fmt.Errorf("%w: score_slice must be one of all, elite, solid, watch", ErrInvalidQuery)
	}

	switch q.Sort {
	case facility.SortTrustDesc, facility.SortRecentDesc, facility.SortNameAsc:
	default:
		return facility.Query{}, fmt.Errorf("%w: sort must be one of trust_desc, recent_desc, name_asc", ErrInvalidQuery)
	}

	if raw := values.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return facility.Query{}, fmt.Errorf("%w: page must be a positive integer", ErrInvalidQuery)
		}
		q.Page = page
	}

	if raw := values.Get("page_size"); raw != "" {
		pageSize, err := strconv.Atoi(raw)
		if err != nil || !allowedPageSizes[pageSize] {
			return facility.Query{}, fmt.Errorf("%w: page_size must be one of 12, 24, 48", ErrInvalidQuery)
		}
		q.PageSize = pageSize
	}

	latRaw, lonRaw, radiusRaw := values.Get("latitude"), values.Get("longitude"), values.Get("radius_miles")
	if latRaw != "" || lonRaw != "" {
		lat, lon, err := parseCoordinates(latRaw, lonRaw)
		if err != nil {
			return facility.Query{}, err
		}
		q.Latitude = &lat
		q.Longitude = &lon
	}

	if radiusRaw != "" {
		radius, err := strconv.ParseFloat(radiusRaw, 64)
		if err != nil || math.IsNaN(radius) || math.IsInf(radius, 0) {
			return facility.Query{}, fmt.Errorf("%w: radius_miles must be a finite number", ErrInvalidQuery)
		}
		// radius<=0 yields an empty geo window (section 4.6 edge case); the
		// coordinates stay set so the repository still routes this through
		// its geo path, which must return zero matches for a non-positive radius.
		q.RadiusMiles = radius
	} else if q.Latitude != nil {
		q.RadiusMiles = 10
	}

	raw := rawQuery{Page: q.Page, PageSize: q.PageSize}
	if q.Latitude != nil {
		raw.Latitude = *q.Latitude
	}
	if q.Longitude != nil {
		raw.Longitude = *q.Longitude
	}
	if err := s.validate.Struct(raw); err != nil {
		return facility.Query{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}

	return q, nil
}

func parseCoordinates(latRaw, lonRaw string) (float64, float64, error) {
	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return 0, 0, fmt.Errorf("%w: latitude must be a finite number", ErrInvalidQuery)
	}
	lon, err := strconv.ParseFloat(lonRaw, 64)
	if err != nil || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return 0, 0, fmt.Errorf("%w: longitude must be a finite number", ErrInvalidQuery)
	}
	if lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("%w: latitude %v out of range [-90,90]", ErrInvalidQuery, lat)
	}
	if lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("%w: longitude %v out of range [-180,180]", ErrInvalidQuery, lon)
	}
	return lat, lon, nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// Search runs the parsed query against the repository.
func (s *Service) Search(ctx context.Context, q facility.Query) (facility.Page, error) {
	return s.repo.Search(ctx, q)
}

// TopPicks returns the community's top-voted facilities (section 6
// top-picks endpoint); limit<=0 defaults to 10 and limit>50 is a
// validation error.
func (s *Service) TopPicks(ctx context.Context, limit int) ([]facility.Facility, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		return nil, fmt.Errorf("%w: limit must be <= 50", ErrInvalidQuery)
	}
	return s.repo.TopVoted(ctx, limit)
}

// Get fetches a single facility by id.
func (s *Service) Get(ctx context.Context, id string) (facility.Facility, error) {
	return s.repo.GetFacility(ctx, id)
}
