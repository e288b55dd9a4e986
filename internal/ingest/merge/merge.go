// Package merge implements the merge engine (component C): it collapses a
// connector's raw batch down to one record per facility identity and
// reconciles the result against whatever the repository already holds, so
// that re-ingestion overwrites descriptive fields and the Trust Score while
// preserving a facility's id and vote counters (section 4.3).
package merge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Togather-Foundation/trustdirectory/internal/connectors"
	"github.com/Togather-Foundation/trustdirectory/internal/domain/facility"
	"github.com/Togather-Foundation/trustdirectory/internal/domain/trust"
)

// CollapseIntraSource collapses records sharing the same (jurisdiction,
// source key) into one, keeping the record with the latest inspection date;
// on equal dates the higher normalized score wins (section 4.3 rule 1).
// Records are folded in a stable sort over (jurisdiction, source key) first,
// so survivors come out in that order whatever the input order; of records
// equal in key, date and score, the first in input order is kept.
func CollapseIntraSource(records []connectors.RawRecord) []connectors.RawRecord {
	sorted := make([]connectors.RawRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Jurisdiction != sorted[j].Jurisdiction {
			return sorted[i].Jurisdiction < sorted[j].Jurisdiction
		}
		return sorted[i].SourceKey < sorted[j].SourceKey
	})

	type key struct{ jurisdiction, sourceKey string }
	survivor := make(map[key]connectors.RawRecord, len(sorted))
	order := make([]key, 0, len(sorted))

	for _, rec := range sorted {
		k := key{rec.Jurisdiction, rec.SourceKey}
		prev, seen := survivor[k]
		if !seen {
			order = append(order, k)
			survivor[k] = rec
			continue
		}
		if isNewer(rec, prev) {
			survivor[k] = rec
		}
	}

	out := make([]connectors.RawRecord, 0, len(order))
	for _, k := range order {
		out = append(out, survivor[k])
	}
	return out
}

// isNewer reports whether a should replace b: a's inspection date postdates
// b's, or the dates are equal and a's normalized score is higher. A record
// with no date is never considered newer than one that has a date, so an
// undated re-scrape can't clobber a dated inspection.
func isNewer(a, b connectors.RawRecord) bool {
	if a.InspectionDate == nil {
		return false
	}
	if b.InspectionDate == nil {
		return true
	}
	if a.InspectionDate.Equal(*b.InspectionDate) {
		score := func(r connectors.RawRecord) int {
			if r.Score == nil {
				return -1
			}
			s, _, err := trust.Normalize(*r.Score)
			if err != nil {
				return -1
			}
			return s
		}
		return score(a) > score(b)
	}
	return a.InspectionDate.After(*b.InspectionDate)
}

// Lookup resolves an existing facility by its derived id so the id and vote
// counters survive re-ingestion (section 4.3 rule 3). A miss is reported via
// ok=false, never an error: a brand new facility is an ordinary outcome.
type Lookup func(ctx context.Context, id string) (existing facility.Facility, ok bool, err error)

// RepositoryLookup adapts a Repository's GetFacility into a Lookup, turning
// ErrNotFound into a plain miss instead of propagating it as an error.
func RepositoryLookup(repo facility.Repository) Lookup {
	return func(ctx context.Context, id string) (facility.Facility, bool, error) {
		f, err := repo.GetFacility(ctx, id)
		if errors.Is(err, facility.ErrNotFound) {
			return facility.Facility{}, false, nil
		}
		if err != nil {
			return facility.Facility{}, false, err
		}
		return f, true, nil
	}
}

// Reconcile collapses one connector's raw batch and converts each survivor
// into a facility.Facility ready for Repository.UpsertFacility. A record
// whose score fails to normalize, or that fails the domain invariants, is
// dropped with a warning rather than aborting the whole batch: the
// partial-failure tolerance established at the connector layer carries
// through to merging.
func Reconcile(ctx context.Context, records []connectors.RawRecord, lookup Lookup, now time.Time) ([]facility.Facility, []string, error) {
	collapsed := CollapseIntraSource(records)

	var (
		out      []facility.Facility
		warnings []string
	)

	for _, rec := range collapsed {
		f, err := buildFacility(ctx, rec, lookup, now)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("merge: skipping %s/%s: %v", rec.Jurisdiction, rec.SourceKey, err))
			continue
		}
		out = append(out, f)
	}

	return out, warnings, nil
}

func buildFacility(ctx context.Context, rec connectors.RawRecord, lookup Lookup, now time.Time) (facility.Facility, error) {
	if rec.Score == nil {
		return facility.Facility{}, fmt.Errorf("missing score")
	}

	trustScore, band, err := trust.Normalize(*rec.Score)
	if err != nil {
		return facility.Facility{}, fmt.Errorf("normalize score: %w", err)
	}

	id := facility.DeriveID(rec.Jurisdiction, rec.SourceKey)

	f := facility.Facility{
		ID:              id,
		Jurisdiction:    rec.Jurisdiction,
		SourceKey:       rec.SourceKey,
		Name:            rec.Name,
		StreetAddress:   rec.StreetAddress,
		City:            rec.City,
		State:           rec.State,
		PostalCode:      rec.PostalCode,
		Latitude:        rec.Latitude,
		Longitude:       rec.Longitude,
		TrustScore:      trustScore,
		Band:            band,
		LastInspectedAt: rec.InspectionDate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	existing, ok, err := lookup(ctx, id)
	if err != nil {
		return facility.Facility{}, fmt.Errorf("lookup existing facility: %w", err)
	}
	if ok {
		f.Likes = existing.Likes
		f.Dislikes = existing.Dislikes
		f.CreatedAt = existing.CreatedAt
	}

	if err := f.Validate(); err != nil {
		return facility.Facility{}, err
	}

	return f, nil
}
