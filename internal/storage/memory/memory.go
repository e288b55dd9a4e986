// Package memory implements the ephemeral Repository backend: an
// in-process map keyed by id, with secondary indexes by jurisdiction and by
// a coarse spatial grid bucket, guarded by a single writer lock so readers
// never block one another (section 4.4).
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Togather-Foundation/trustdirectory/internal/domain/facility"
)

const earthRadiusMiles = 3958.8

// gridCellDegrees sizes the spatial index bucket. Coarse enough to keep the
// index small, fine enough that a radius search only ever has to scan a
// handful of neighboring cells before the exact haversine check.
const gridCellDegrees = 0.5

const defaultRadiusMiles = 10.0
const defaultPageSize = 24
const recentWindow = 90 * 24 * time.Hour

type gridKey struct{ latCell, lonCell int }

func gridKeyFor(lat, lon float64) gridKey {
	return gridKey{int(math.Floor(lat / gridCellDegrees)), int(math.Floor(lon / gridCellDegrees))}
}

// Repository is the ephemeral facility.Repository implementation.
type Repository struct {
	mu sync.RWMutex

	facilities     map[string]facility.Facility
	byJurisdiction map[string]map[string]struct{}
	byGrid         map[gridKey]map[string]struct{}

	lastRefreshAt   time.Time
	connectorStatus map[string]facility.ConnectorStatus
	connectorOrder  []string
}

var _ facility.Repository = (*Repository)(nil)

// New returns an empty ephemeral repository.
func New() *Repository {
	return &Repository{
		facilities:      make(map[string]facility.Facility),
		byJurisdiction:  make(map[string]map[string]struct{}),
		byGrid:          make(map[gridKey]map[string]struct{}),
		connectorStatus: make(map[string]facility.ConnectorStatus),
	}
}

func (r *Repository) UpsertFacility(ctx context.Context, f facility.Facility) error {
	if err := f.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.facilities[f.ID]; ok {
		r.unindex(old)
	}

	r.facilities[f.ID] = f
	r.index(f)
	return nil
}

func (r *Repository) index(f facility.Facility) {
	set, ok := r.byJurisdiction[f.Jurisdiction]
	if !ok {
		set = make(map[string]struct{})
		r.byJurisdiction[f.Jurisdiction] = set
	}
	set[f.ID] = struct{}{}

	if f.HasCoordinates() {
		key := gridKeyFor(*f.Latitude, *f.Longitude)
		cell, ok := r.byGrid[key]
		if !ok {
			cell = make(map[string]struct{})
			r.byGrid[key] = cell
		}
		cell[f.ID] = struct{}{}
	}
}

func (r *Repository) unindex(f facility.Facility) {
	if set, ok := r.byJurisdiction[f.Jurisdiction]; ok {
		delete(set, f.ID)
	}
	if f.HasCoordinates() {
		key := gridKeyFor(*f.Latitude, *f.Longitude)
		if cell, ok := r.byGrid[key]; ok {
			delete(cell, f.ID)
		}
	}
}

func (r *Repository) GetFacility(ctx context.Context, id string) (facility.Facility, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.facilities[id]
	if !ok {
		return facility.Facility{}, facility.ErrNotFound
	}
	return f, nil
}

func (r *Repository) Search(ctx context.Context, q facility.Query) (facility.Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now().UTC()
	keyword := strings.ToLower(strings.TrimSpace(q.Keyword))
	candidates := r.candidateIDs(q)

	sliceCounts := map[facility.ScoreSlice]int{
		facility.SliceAll:   0,
		facility.SliceElite: 0,
		facility.SliceSolid: 0,
		facility.SliceWatch: 0,
	}

	var matched []facility.Facility
	for id := range candidates {
		f := r.facilities[id]
		if !matchesFilters(f, q, keyword, now) {
			continue
		}
		for _, slice := range []facility.ScoreSlice{facility.SliceAll, facility.SliceElite, facility.SliceSolid, facility.SliceWatch} {
			if facility.SliceMatches(f, slice) {
				sliceCounts[slice]++
			}
		}
		if !facility.SliceMatches(f, q.Slice) {
			continue
		}
		matched = append(matched, f)
	}

	sortFacilities(matched, q.Sort)

	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	start := (page - 1) * pageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}

	items := make([]facility.Facility, end-start)
	copy(items, matched[start:end])

	return facility.Page{
		Items:       items,
		TotalCount:  len(matched),
		Page:        page,
		PageSize:    pageSize,
		SliceCounts: sliceCounts,
	}, nil
}

// candidateIDs narrows the scan to an index before the per-record filter
// pass: the grid index for geo queries, the jurisdiction index for a
// jurisdiction filter, or the full set otherwise.
func (r *Repository) candidateIDs(q facility.Query) map[string]struct{} {
	if q.UsesGeo() {
		return r.gridCandidates(*q.Latitude, *q.Longitude, q.RadiusMiles)
	}
	if q.Jurisdiction != "" && q.Jurisdiction != "all" {
		out := make(map[string]struct{})
		for id := range r.byJurisdiction[q.Jurisdiction] {
			out[id] = struct{}{}
		}
		return out
	}
	out := make(map[string]struct{}, len(r.facilities))
	for id := range r.facilities {
		out[id] = struct{}{}
	}
	return out
}

func (r *Repository) gridCandidates(lat, lon, radiusMiles float64) map[string]struct{} {
	if radiusMiles <= 0 {
		// Section 4.6 edge case: radius<=0 is an empty geo window, not a
		// fallback to some default radius.
		return map[string]struct{}{}
	}
	cellSpanMiles := gridCellDegrees * 69.0
	cellRadius := int(math.Ceil(radiusMiles/cellSpanMiles)) + 1

	center := gridKeyFor(lat, lon)
	out := make(map[string]struct{})
	for dLat := -cellRadius; dLat <= cellRadius; dLat++ {
		for dLon := -cellRadius; dLon <= cellRadius; dLon++ {
			key := gridKey{center.latCell + dLat, center.lonCell + dLon}
			for id := range r.byGrid[key] {
				out[id] = struct{}{}
			}
		}
	}
	return out
}

func matchesFilters(f facility.Facility, q facility.Query, keyword string, now time.Time) bool {
	if q.Jurisdiction != "" && q.Jurisdiction != "all" && f.Jurisdiction != q.Jurisdiction {
		return false
	}

	switch {
	case keyword != "":
		if !containsKeyword(f, keyword) {
			return false
		}
	case q.UsesGeo():
		if !f.HasCoordinates() {
			return false
		}
		if q.RadiusMiles <= 0 {
			return false
		}
		if haversineMiles(*q.Latitude, *q.Longitude, *f.Latitude, *f.Longitude) > q.RadiusMiles {
			return false
		}
	}

	if q.RecentOnly {
		if f.LastInspectedAt == nil || now.Sub(*f.LastInspectedAt) > recentWindow {
			return false
		}
	}

	return true
}

func containsKeyword(f facility.Facility, keyword string) bool {
	for _, field := range []string{f.Name, f.StreetAddress, f.City, f.PostalCode} {
		if strings.Contains(strings.ToLower(field), keyword) {
			return true
		}
	}
	return false
}

func haversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMiles * c
}

func sortFacilities(items []facility.Facility, order facility.SortOrder) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch order {
		case facility.SortRecentDesc:
			at, bt := timeOrZero(a.LastInspectedAt), timeOrZero(b.LastInspectedAt)
			if !at.Equal(bt) {
				return at.After(bt)
			}
		case facility.SortNameAsc:
			if a.Name != b.Name {
				return a.Name < b.Name
			}
		default: // SortTrustDesc and the zero value
			if a.TrustScore != b.TrustScore {
				return a.TrustScore > b.TrustScore
			}
		}
		return a.ID < b.ID
	})
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func (r *Repository) TopVoted(ctx context.Context, limit int) ([]facility.Facility, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]facility.Facility, 0, len(r.facilities))
	for _, f := range r.facilities {
		items = append(items, f)
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Likes != b.Likes {
			return a.Likes > b.Likes
		}
		if a.VoteScore() != b.VoteScore() {
			return a.VoteScore() > b.VoteScore()
		}
		if a.TrustScore != b.TrustScore {
			return a.TrustScore > b.TrustScore
		}
		return a.ID < b.ID
	})

	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items, nil
}

func (r *Repository) ApplyVote(ctx context.Context, id string, kind facility.VoteKind) (facility.VoteSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.facilities[id]
	if !ok {
		return facility.VoteSummary{}, facility.ErrNotFound
	}

	switch kind {
	case facility.VoteLike:
		f.Likes++
	case facility.VoteDislike:
		f.Dislikes++
	default:
		return facility.VoteSummary{}, fmt.Errorf("memory: unknown vote kind %q", kind)
	}
	f.UpdatedAt = time.Now().UTC()
	r.facilities[id] = f

	return facility.VoteSummary{Likes: f.Likes, Dislikes: f.Dislikes, VoteScore: f.VoteScore()}, nil
}

func (r *Repository) IngestionStats(ctx context.Context) (facility.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := facility.Stats{
		LastRefreshAt:    r.lastRefreshAt,
		UniqueFacilities: len(r.facilities),
	}
	for _, source := range r.connectorOrder {
		stats.ConnectorStats = append(stats.ConnectorStats, r.connectorStatus[source])
	}
	return stats, nil
}

func (r *Repository) RecordConnectorStatus(ctx context.Context, status facility.ConnectorStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connectorStatus[status.Source]; !ok {
		r.connectorOrder = append(r.connectorOrder, status.Source)
	}
	r.connectorStatus[status.Source] = status
	return nil
}

// RecordRefreshCompleted stamps last_refresh_at. uniqueFacilities is not
// stored separately: IngestionStats always reports the live len of the
// facility map, which is authoritative for this backend.
func (r *Repository) RecordRefreshCompleted(ctx context.Context, at time.Time, uniqueFacilities int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastRefreshAt = at
	return nil
}
