// Package postgres implements the durable facility.Repository backend:
// rows indexed by id and by (jurisdiction, source_facility_key), geospatial
// predicates executed by PostGIS, vote increments inside one statement
// (section 4.4).
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Togather-Foundation/trustdirectory/internal/domain/facility"
	"github.com/Togather-Foundation/trustdirectory/internal/domain/trust"
)

var _ facility.Repository = (*Repository)(nil)

// Repository implements facility.Repository with a PostgreSQL backend.
type Repository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

// NewRepository wraps an already-connected pool. Run MigrateUp before first
// use.
func NewRepository(pool *pgxpool.Pool) (*Repository, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres repository: pool is nil")
	}
	return &Repository{pool: pool}, nil
}

// WithTx runs fn against a repository bound to one transaction, committing
// on success and rolling back on any returned error. ApplyVote does not use
// it: a vote is applied by a single UPDATE ... RETURNING statement.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, *Repository) error) error {
	if r.tx != nil {
		return fn(ctx, r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	wrapped := &Repository{pool: r.pool, tx: tx}
	if err := fn(ctx, wrapped); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *Repository) q() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

const upsertFacilitySQL = `
INSERT INTO facilities (
	id, jurisdiction, source_facility_key, name, street_address, city, state,
	postal_code, latitude, longitude, geo_point, trust_score, band,
	last_inspected_at, likes, dislikes, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
	CASE WHEN $9::double precision IS NOT NULL AND $10::double precision IS NOT NULL
		THEN ST_SetSRID(ST_MakePoint($10, $9), 4326)::geography
		ELSE NULL
	END,
	$11, $12, $13, $14, $15, $16, $16
)
ON CONFLICT (id) DO UPDATE SET
	jurisdiction         = EXCLUDED.jurisdiction,
	source_facility_key  = EXCLUDED.source_facility_key,
	name                 = EXCLUDED.name,
	street_address       = EXCLUDED.street_address,
	city                 = EXCLUDED.city,
	state                = EXCLUDED.state,
	postal_code          = EXCLUDED.postal_code,
	latitude             = EXCLUDED.latitude,
	longitude            = EXCLUDED.longitude,
	geo_point            = EXCLUDED.geo_point,
	trust_score          = EXCLUDED.trust_score,
	band                 = EXCLUDED.band,
	last_inspected_at    = EXCLUDED.last_inspected_at,
	updated_at           = EXCLUDED.updated_at
`

func (r *Repository) UpsertFacility(ctx context.Context, f facility.Facility) error {
	if err := f.Validate(); err != nil {
		return err
	}

	createdAt := f.CreatedAt
	if createdAt.IsZero() {
		createdAt = f.UpdatedAt
	}

	_, err := r.q().Exec(ctx, upsertFacilitySQL,
		f.ID, f.Jurisdiction, f.SourceKey, f.Name, f.StreetAddress, f.City, f.State,
		f.PostalCode, f.Latitude, f.Longitude,
		f.TrustScore, string(f.Band), f.LastInspectedAt, f.Likes, f.Dislikes, createdAt, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert facility %s: %w", f.ID, err)
	}

	if f.LastInspectedAt != nil {
		_, err = r.q().Exec(ctx, `
			INSERT INTO inspection_history (facility_id, inspected_at, score_kind, numeric_value)
			VALUES ($1, $2, 'numeric', $3)
		`, f.ID, *f.LastInspectedAt, f.TrustScore)
		if err != nil {
			return fmt.Errorf("postgres: append inspection history for %s: %w", f.ID, err)
		}
	}

	return nil
}

const selectFacilitySQL = `
SELECT id, jurisdiction, source_facility_key, name, street_address, city, state,
       postal_code, latitude, longitude, trust_score, band, last_inspected_at,
       likes, dislikes, created_at, updated_at
FROM facilities
WHERE id = $1
`

func (r *Repository) GetFacility(ctx context.Context, id string) (facility.Facility, error) {
	row := r.q().QueryRow(ctx, selectFacilitySQL, id)
	f, err := scanFacility(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return facility.Facility{}, facility.ErrNotFound
		}
		return facility.Facility{}, fmt.Errorf("postgres: get facility %s: %w", id, err)
	}
	return f, nil
}

func scanFacility(row pgx.Row) (facility.Facility, error) {
	var f facility.Facility
	var band string
	err := row.Scan(
		&f.ID, &f.Jurisdiction, &f.SourceKey, &f.Name, &f.StreetAddress, &f.City, &f.State,
		&f.PostalCode, &f.Latitude, &f.Longitude, &f.TrustScore, &band, &f.LastInspectedAt,
		&f.Likes, &f.Dislikes, &f.CreatedAt, &f.UpdatedAt,
	)
	f.Band = trust.Band(band)
	return f, err
}

const recentWindow = "90 days"

// buildFilters renders every Query field except score_slice into a WHERE
// clause and its positional args; score_slice is applied separately by the
// caller so the same filter set can be reused, once for the page of items
// and once (minus that one clause) for the four slice counts.
func buildFilters(q facility.Query) (string, []any) {
	var clauses []string
	var args []any

	if q.Jurisdiction != "" && q.Jurisdiction != "all" {
		args = append(args, q.Jurisdiction)
		clauses = append(clauses, fmt.Sprintf("jurisdiction = $%d", len(args)))
	}

	keyword := q.Keyword
	switch {
	case keyword != "":
		args = append(args, "%"+keyword+"%")
		idx := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(name ILIKE $%d OR street_address ILIKE $%d OR city ILIKE $%d OR postal_code ILIKE $%d)",
			idx, idx, idx, idx))
	case q.UsesGeo() && q.RadiusMiles <= 0:
		// Section 4.6 edge case: radius<=0 is an empty geo window.
		clauses = append(clauses, "FALSE")
	case q.UsesGeo():
		args = append(args, q.Longitude, q.Latitude)
		lonIdx, latIdx := len(args)-1, len(args)
		args = append(args, q.RadiusMiles*1609.34)
		clauses = append(clauses, fmt.Sprintf(
			"geo_point IS NOT NULL AND ST_DWithin(geo_point, ST_SetSRID(ST_MakePoint($%d, $%d), 4326)::geography, $%d)",
			lonIdx, latIdx, len(args)))
	}

	if q.RecentOnly {
		clauses = append(clauses, fmt.Sprintf("last_inspected_at >= now() - interval '%s'", recentWindow))
	}

	where := "TRUE"
	if len(clauses) > 0 {
		where = strings.Join(clauses, " AND ")
	}
	return where, args
}

func sliceBand(slice facility.ScoreSlice) (string, bool) {
	switch slice {
	case facility.SliceElite:
		return string(trust.BandExcellent), true
	case facility.SliceSolid:
		return string(trust.BandGood), true
	case facility.SliceWatch:
		return string(trust.BandNeedsAttention), true
	default:
		return "", false
	}
}

func orderBySQL(order facility.SortOrder) string {
	switch order {
	case facility.SortRecentDesc:
		return "last_inspected_at DESC NULLS LAST, id ASC"
	case facility.SortNameAsc:
		return "name ASC, id ASC"
	default:
		return "trust_score DESC, id ASC"
	}
}

func (r *Repository) Search(ctx context.Context, q facility.Query) (facility.Page, error) {
	where, args := buildFilters(q)

	countSQL := fmt.Sprintf(`
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE band = '%s'),
			COUNT(*) FILTER (WHERE band = '%s'),
			COUNT(*) FILTER (WHERE band = '%s')
		FROM facilities
		WHERE %s
	`, trust.BandExcellent, trust.BandGood, trust.BandNeedsAttention, where)

	sliceCounts := map[facility.ScoreSlice]int{}
	var all, elite, solid, watch int
	if err := r.q().QueryRow(ctx, countSQL, args...).Scan(&all, &elite, &solid, &watch); err != nil {
		return facility.Page{}, fmt.Errorf("postgres: search slice counts: %w", err)
	}
	sliceCounts[facility.SliceAll] = all
	sliceCounts[facility.SliceElite] = elite
	sliceCounts[facility.SliceSolid] = solid
	sliceCounts[facility.SliceWatch] = watch

	pageWhere := where
	pageArgs := append([]any{}, args...)
	if band, ok := sliceBand(q.Slice); ok {
		pageArgs = append(pageArgs, band)
		pageWhere += fmt.Sprintf(" AND band = $%d", len(pageArgs))
	}

	var total int
	totalSQL := fmt.Sprintf(`SELECT COUNT(*) FROM facilities WHERE %s`, pageWhere)
	if err := r.q().QueryRow(ctx, totalSQL, pageArgs...).Scan(&total); err != nil {
		return facility.Page{}, fmt.Errorf("postgres: search total count: %w", err)
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = 24
	}
	offset := (page - 1) * pageSize

	itemsArgs := append([]any{}, pageArgs...)
	itemsArgs = append(itemsArgs, pageSize, offset)
	itemsSQL := fmt.Sprintf(`
		SELECT id, jurisdiction, source_facility_key, name, street_address, city, state,
		       postal_code, latitude, longitude, trust_score, band, last_inspected_at,
		       likes, dislikes, created_at, updated_at
		FROM facilities
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, pageWhere, orderBySQL(q.Sort), len(itemsArgs)-1, len(itemsArgs))

	rows, err := r.q().Query(ctx, itemsSQL, itemsArgs...)
	if err != nil {
		return facility.Page{}, fmt.Errorf("postgres: search: %w", err)
	}
	defer rows.Close()

	var items []facility.Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return facility.Page{}, fmt.Errorf("postgres: scan search row: %w", err)
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return facility.Page{}, err
	}

	return facility.Page{
		Items:       items,
		TotalCount:  total,
		Page:        page,
		PageSize:    pageSize,
		SliceCounts: sliceCounts,
	}, nil
}

const topVotedSQL = `
SELECT id, jurisdiction, source_facility_key, name, street_address, city, state,
       postal_code, latitude, longitude, trust_score, band, last_inspected_at,
       likes, dislikes, created_at, updated_at
FROM facilities
ORDER BY likes DESC, (likes - dislikes) DESC, trust_score DESC, id ASC
LIMIT $1
`

func (r *Repository) TopVoted(ctx context.Context, limit int) ([]facility.Facility, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.q().Query(ctx, topVotedSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: top voted: %w", err)
	}
	defer rows.Close()

	var out []facility.Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan top voted row: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *Repository) ApplyVote(ctx context.Context, id string, kind facility.VoteKind) (facility.VoteSummary, error) {
	var column string
	switch kind {
	case facility.VoteLike:
		column = "likes"
	case facility.VoteDislike:
		column = "dislikes"
	default:
		return facility.VoteSummary{}, fmt.Errorf("postgres: unknown vote kind %q", kind)
	}

	sql := fmt.Sprintf(`
		UPDATE facilities SET %s = %s + 1, updated_at = now()
		WHERE id = $1
		RETURNING likes, dislikes
	`, column, column)

	var likes, dislikes int
	err := r.q().QueryRow(ctx, sql, id).Scan(&likes, &dislikes)
	if err != nil {
		if err == pgx.ErrNoRows {
			return facility.VoteSummary{}, facility.ErrNotFound
		}
		return facility.VoteSummary{}, fmt.Errorf("postgres: apply vote to %s: %w", id, err)
	}

	return facility.VoteSummary{Likes: likes, Dislikes: dislikes, VoteScore: likes - dislikes}, nil
}

func (r *Repository) IngestionStats(ctx context.Context) (facility.Stats, error) {
	var stats facility.Stats
	var lastRefresh *time.Time

	row := r.q().QueryRow(ctx, `SELECT last_refresh_at, unique_facilities FROM ingestion_state WHERE id = true`)
	var uniqueFacilities int
	if err := row.Scan(&lastRefresh, &uniqueFacilities); err != nil {
		return facility.Stats{}, fmt.Errorf("postgres: ingestion stats: %w", err)
	}
	if lastRefresh != nil {
		stats.LastRefreshAt = *lastRefresh
	}
	stats.UniqueFacilities = uniqueFacilities

	rows, err := r.q().Query(ctx, `SELECT source, fetched_records, error, ran_at FROM connector_status ORDER BY source`)
	if err != nil {
		return facility.Stats{}, fmt.Errorf("postgres: connector statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s facility.ConnectorStatus
		if err := rows.Scan(&s.Source, &s.FetchedRecords, &s.Error, &s.RanAt); err != nil {
			return facility.Stats{}, fmt.Errorf("postgres: scan connector status: %w", err)
		}
		stats.ConnectorStats = append(stats.ConnectorStats, s)
	}

	return stats, rows.Err()
}

func (r *Repository) RecordConnectorStatus(ctx context.Context, status facility.ConnectorStatus) error {
	_, err := r.q().Exec(ctx, `
		INSERT INTO connector_status (source, fetched_records, error, ran_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source) DO UPDATE SET
			fetched_records = EXCLUDED.fetched_records,
			error = EXCLUDED.error,
			ran_at = EXCLUDED.ran_at
	`, status.Source, status.FetchedRecords, status.Error, status.RanAt)
	if err != nil {
		return fmt.Errorf("postgres: record connector status for %s: %w", status.Source, err)
	}
	return nil
}

func (r *Repository) RecordRefreshCompleted(ctx context.Context, at time.Time, uniqueFacilities int) error {
	_, err := r.q().Exec(ctx, `
		UPDATE ingestion_state SET last_refresh_at = $1, unique_facilities = $2 WHERE id = true
	`, at, uniqueFacilities)
	if err != nil {
		return fmt.Errorf("postgres: record refresh completed: %w", err)
	}
	return nil
}
