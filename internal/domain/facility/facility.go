// Package facility holds the core Facility/Inspection entities (section 3) and the
// Repository contract (section 4.4) both storage backends implement.
package facility

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/trustdirectory/internal/domain/trust"
)

// ErrNotFound is returned by Repository lookups that find nothing.
var ErrNotFound = errors.New("facility: not found")

// Facility is the primary directory entity (section 3).
type Facility struct {
	ID               string
	Jurisdiction     string
	SourceKey        string
	Name             string
	StreetAddress    string
	City             string
	State            string
	PostalCode       string
	Latitude         *float64
	Longitude        *float64
	TrustScore       int
	Band             trust.Band
	LastInspectedAt  *time.Time
	Likes            int
	Dislikes         int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// VoteScore is the derived likes-minus-dislikes signal.
func (f Facility) VoteScore() int { return f.Likes - f.Dislikes }

// HasCoordinates reports whether the facility can participate in geo search.
func (f Facility) HasCoordinates() bool { return f.Latitude != nil && f.Longitude != nil }

// Validate enforces the section 3 invariants. Called by both repository
// implementations before a write is accepted.
func (f Facility) Validate() error {
	if f.ID == "" {
		return errors.New("facility: id is required")
	}
	if f.TrustScore < 0 || f.TrustScore > 100 {
		return fmt.Errorf("facility: trust_score %d out of range [0,100]", f.TrustScore)
	}
	if f.Likes < 0 {
		return errors.New("facility: likes must be >= 0")
	}
	if f.Dislikes < 0 {
		return errors.New("facility: dislikes must be >= 0")
	}
	if f.Latitude != nil && (*f.Latitude < -90 || *f.Latitude > 90) {
		return fmt.Errorf("facility: latitude %f out of range [-90,90]", *f.Latitude)
	}
	if f.Longitude != nil && (*f.Longitude < -180 || *f.Longitude > 180) {
		return fmt.Errorf("facility: longitude %f out of range [-180,180]", *f.Longitude)
	}
	return nil
}

// DeriveID computes the stable, deterministic facility identifier from
// (jurisdiction, source_facility_key), per section 3's identity rule: re-ingesting
// the same upstream record must always resolve to the same id.
func DeriveID(jurisdiction, sourceKey string) string {
	sum := sha256.Sum256([]byte(jurisdiction + "\x00" + sourceKey))
	return hex.EncodeToString(sum[:])[:26]
}

// InspectionRecord is an observation attached to a facility by a connector
// (section 3). Only the latest inspection's fields are guaranteed to be durable;
// the postgres backend additionally appends to an inspection_history table
// (section 6 "Open Questions" decision #2 in SPEC_FULL.md).
type InspectionRecord struct {
	FacilityID string
	Date       time.Time
	Score      trust.RawScore
}

// ConnectorStatus is the persisted per-run outcome for one connector (section 3).
type ConnectorStatus struct {
	Source         string
	FetchedRecords int
	Error          string // empty when the run succeeded
	RanAt          time.Time
}

// Stats is the process-wide ingestion singleton (section 3).
type Stats struct {
	LastRefreshAt    time.Time
	UniqueFacilities int
	ConnectorStats   []ConnectorStatus
}

// VoteKind distinguishes the two vote operations (section 4.7).
type VoteKind string

const (
	VoteLike    VoteKind = "like"
	VoteDislike VoteKind = "dislike"
)

// VoteSummary is the response to a successful apply_vote call.
type VoteSummary struct {
	Likes     int
	Dislikes  int
	VoteScore int
}

// ScoreSlice partitions the search result set by band (section 4.6 / GLOSSARY).
type ScoreSlice string

const (
	SliceAll   ScoreSlice = "all"
	SliceElite ScoreSlice = "elite"
	SliceSolid ScoreSlice = "solid"
	SliceWatch ScoreSlice = "watch"
)

// SliceMatches reports whether a facility's band falls under the given
// slice. SliceAll always matches. A facility with no valid inspection
// (TrustScore == 0, a sentinel also naturally landing in "watch") is only
// excluded from non-"all" slices when the caller applies score_slice
// filtering explicitly -- SliceAll never excludes it, matching section 4.1's rule
// that score-less facilities remain keyword-searchable.
func SliceMatches(f Facility, slice ScoreSlice) bool {
	switch slice {
	case SliceAll, "":
		return true
	case SliceElite:
		return f.Band == trust.BandExcellent
	case SliceSolid:
		return f.Band == trust.BandGood
	case SliceWatch:
		return f.Band == trust.BandNeedsAttention
	default:
		return false
	}
}

// SortOrder is the section 4.6 sort enum.
type SortOrder string

const (
	SortTrustDesc  SortOrder = "trust_desc"
	SortRecentDesc SortOrder = "recent_desc"
	SortNameAsc    SortOrder = "name_asc"
)

// Query is the parsed, validated search request (section 4.6).
type Query struct {
	Keyword      string
	Latitude     *float64
	Longitude    *float64
	RadiusMiles  float64
	Jurisdiction string // "" or "all" means unfiltered
	Slice        ScoreSlice
	RecentOnly   bool
	Sort         SortOrder
	Page         int
	PageSize     int
}

// UsesGeo reports whether the query carries a valid geo window. Per section 4.6,
// geo parameters are ignored entirely when a keyword is present.
func (q Query) UsesGeo() bool {
	return q.Keyword == "" && q.Latitude != nil && q.Longitude != nil
}

// Page is one page of search results plus the counts needed to render
// pagination controls and slice tabs (section 4.6 response contract).
type Page struct {
	Items       []Facility
	TotalCount  int
	Page        int
	PageSize    int
	SliceCounts map[ScoreSlice]int
}

// Repository is the storage abstraction both backends (durable, ephemeral)
// implement (section 4.4). The orchestrator and search/vote services depend only
// on this interface.
type Repository interface {
	UpsertFacility(ctx context.Context, f Facility) error
	GetFacility(ctx context.Context, id string) (Facility, error)
	Search(ctx context.Context, q Query) (Page, error)
	TopVoted(ctx context.Context, limit int) ([]Facility, error)
	ApplyVote(ctx context.Context, id string, kind VoteKind) (VoteSummary, error)

	IngestionStats(ctx context.Context) (Stats, error)
	RecordConnectorStatus(ctx context.Context, status ConnectorStatus) error
	RecordRefreshCompleted(ctx context.Context, at time.Time, uniqueFacilities int) error
}
