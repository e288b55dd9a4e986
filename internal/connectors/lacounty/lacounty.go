// Package lacounty implements the LA County connector: it pages through one
// ArcGIS FeatureServer layer query at BaseURL and reads each feature as a
// facility with its latest inspection date and numeric score. Separate
// inventory, inspection, and violation layers are not fetched or joined.
package lacounty

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/trustdirectory/internal/connectors"
	"github.com/Togather-Foundation/trustdirectory/internal/domain/trust"
)

const Jurisdiction = "los_angeles_county"

// featureResponse is the shape of one ArcGIS FeatureServer query page.
type featureResponse struct {
	Features []feature `json:"features"`
}

type feature struct {
	Attributes attributes `json:"attributes"`
}

type attributes struct {
	FacilityKey    string  `json:"FACILITY_KEY"`
	FacilityName   string  `json:"FACILITY_NAME"`
	StreetAddress  string  `json:"STREET_ADDRESS"`
	City           string  `json:"CITY"`
	State          string  `json:"STATE"`
	PostalCode     string  `json:"ZIP"`
	Latitude       *float64 `json:"LATITUDE"`
	Longitude      *float64 `json:"LONGITUDE"`
	InspectionDate string  `json:"INSPECTION_DATE"` // epoch millis as string, or RFC3339
	Score          *float64 `json:"SCORE"`
}

// Connector implements connectors.Connector for LA County.
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
		pageSize = 200
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

		url := fmt.Sprintf(
			"%s/query?where=1%%3D1&outFields=*&resultOffset=%d&resultRecordCount=%d&f=json",
			c.cfg.BaseURL, offset, pageSize,
		)

		var page featureResponse
		if err := c.client.GetJSON(ctx, url, nil, &page); err != nil {
			return records, warnings, fmt.Errorf("lacounty: fetch page at offset %d: %w", offset, err)
		}

		if len(page.Features) == 0 && offset == 0 {
			// An empty first page from a live upstream is suspicious but not
			// itself an error (a jurisdiction might legitimately have zero
			// facilities during tests); the strict-parse rule below only
			// fires when the page is non-empty but nothing in it parses.
			break
		}

		parsedThisPage := 0
		for _, f := range page.Features {
			rec, warn, ok := convert(f.Attributes)
			if warn != "" {
				warnings = append(warnings, warn)
			}
			if !ok {
				continue
			}
			records = append(records, rec)
			parsedThisPage++
		}

		if len(page.Features) > 0 && parsedThisPage == 0 {
			return records, warnings, fmt.Errorf("lacounty: zero records parsed from non-empty page at offset %d", offset)
		}

		if c.cfg.MaxRecords > 0 && len(records) >= c.cfg.MaxRecords {
			records = records[:c.cfg.MaxRecords]
			break
		}

		if len(page.Features) < pageSize {
			break
		}
		offset += pageSize
	}

	return records, warnings, nil
}

func convert(a attributes) (connectors.RawRecord, string, bool) {
	if a.FacilityKey == "" || a.FacilityName == "" {
		return connectors.RawRecord{}, "lacounty: skipping feature with no facility key or name", false
	}

	rec := connectors.RawRecord{
		Jurisdiction:  Jurisdiction,
		SourceKey:     a.FacilityKey,
		Name:          a.FacilityName,
		StreetAddress: a.StreetAddress,
		City:          a.City,
		State:         a.State,
		PostalCode:    a.PostalCode,
		Latitude:      a.Latitude,
		Longitude:     a.Longitude,
	}

	if a.InspectionDate != "" {
		if t, err := parseInspectionDate(a.InspectionDate); err == nil {
			rec.InspectionDate = &t
		}
	}
	if a.Score != nil {
		score := trust.NewNumeric(*a.Score)
		rec.Score = &score
	}

	return rec, "", true
}

func parseInspectionDate(raw string) (time.Time, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Parse(time.RFC3339, raw)
}
