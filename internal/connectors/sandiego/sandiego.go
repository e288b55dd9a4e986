// Package sandiego implements the San Diego connector against the county's
// Socrata SODA API. Full inspection line items are frequently absent from
// the public dataset, so the Trust Score is derived from permit status
// metadata when no inspection score is present (section 4.2, section 9 open questions:
// this mapping is explicitly provisional).
package sandiego

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/trustdirectory/internal/connectors"
	"github.com/Togather-Foundation/trustdirectory/internal/domain/trust"
)

const Jurisdiction = "san_diego_county"

type record struct {
	RecordID      string `json:"record_id"`
	FacilityName  string `json:"facility_name"`
	Address       string `json:"address"`
	City          string `json:"city"`
	State         string `json:"state"`
	Zip           string `json:"zip"`
	Latitude      string `json:"latitude"`
	Longitude     string `json:"longitude"`
	InspectionDate string `json:"inspection_date"`
	Score         string `json:"score"`
	PermitStatus  string `json:"permit_status"`
}

type Connector struct {
	cfg    connectors.Config
	client *connectors.HTTPClient
	logger zerolog.Logger
}

func New(cfg connectors.Config, logger zerolog.Logger) *Connector {
	return &Connector{cfg: cfg, client: connectors.NewHTTPClient(cfg, logger), logger: logger}
}

func (c *Connector) Name() string { return Jurisdiction }

func (c *Connector) Fetch(ctx context.Context) ([]connectors.RawRecord, []string, error) {
	pageSize := c.cfg.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}

	headers := map[string]string{}
	if c.cfg.APIToken != "" {
		headers["X-App-Token"] = c.cfg.APIToken
	}

	var (
		records  []connectors.RawRecord
		warnings []string
		offset   int
	)

	for {
		if err := ctx.Err(); err != nil {
			return records, warnings, err
		}

		url := fmt.Sprintf("%s?$limit=%d&$offset=%d", c.cfg.BaseURL, pageSize, offset)

		var page []record
		if err := c.client.GetJSON(ctx, url, headers, &page); err != nil {
			return records, warnings, fmt.Errorf("sandiego: fetch page at offset %d: %w", offset, err)
		}

		if len(page) == 0 && offset == 0 {
			break
		}

		parsedThisPage := 0
		for _, r := range page {
			rec, warn, ok := convert(r)
			if warn != "" {
				warnings = append(warnings, warn)
			}
			if !ok {
				continue
			}
			records = append(records, rec)
			parsedThisPage++
		}

		if len(page) > 0 && parsedThisPage == 0 {
			return records, warnings, fmt.Errorf("sandiego: zero records parsed from non-empty page at offset %d", offset)
		}

		if c.cfg.MaxRecords > 0 && len(records) >= c.cfg.MaxRecords {
			records = records[:c.cfg.MaxRecords]
			break
		}

		if len(page) < pageSize {
			break
		}
		offset += pageSize
	}

	return records, warnings, nil
}

func convert(r record) (connectors.RawRecord, string, bool) {
	if r.RecordID == "" || r.FacilityName == "" {
		return connectors.RawRecord{}, "sandiego: skipping record with no id or name", false
	}

	rec := connectors.RawRecord{
		Jurisdiction:  Jurisdiction,
		SourceKey:     r.RecordID,
		Name:          r.FacilityName,
		StreetAddress: r.Address,
		City:          r.City,
		State:         r.State,
		PostalCode:    r.Zip,
	}

	if lat, err := strconv.ParseFloat(r.Latitude, 64); err == nil {
		rec.Latitude = &lat
	}
	if lon, err := strconv.ParseFloat(r.Longitude, 64); err == nil {
		rec.Longitude = &lon
	}

	if r.InspectionDate != "" {
		if t, err := time.Parse(time.RFC3339, r.InspectionDate); err == nil {
			rec.InspectionDate = &t
		} else if t, err := time.Parse("2006-01-02T15:04:05.000", r.InspectionDate); err == nil {
			rec.InspectionDate = &t
		}
	}

	score := scoreFromRecord(r)
	rec.Score = score
	if score != nil && rec.InspectionDate == nil {
		// Permit-status-derived scores have no real inspection date; stamp
		// "now" so the facility still surfaces under recent_only and the
		// latest-inspection tie-break has something to compare.
		now := time.Now().UTC()
		rec.InspectionDate = &now
	}

	return rec, "", true
}

// scoreFromRecord prefers a true inspection score line; when absent it
// falls back to the provisional permit-status mapping documented in
// SPEC_FULL.md section 6 decision #3.
func scoreFromRecord(r record) *trust.RawScore {
	if r.Score != "" {
		if n, err := strconv.ParseFloat(r.Score, 64); err == nil {
			s := trust.NewNumeric(n)
			return &s
		}
	}

	switch strings.ToLower(strings.TrimSpace(r.PermitStatus)) {
	case "active", "current":
		s := trust.NewNumeric(88)
		return &s
	case "inactive", "suspended", "revoked":
		s := trust.NewNumeric(55)
		return &s
	default:
		return nil
	}
}
