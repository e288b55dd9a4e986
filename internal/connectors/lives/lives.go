// Package lives implements the LIVES batch connector: Riverside County and
// San Bernardino County both publish their inspection data through the
// CDPH-standard LIVES ArcGIS schema, so one connector drives both
// jurisdictions' endpoints (section 4.2).
package lives

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/trustdirectory/internal/connectors"
	"github.com/Togather-Foundation/trustdirectory/internal/domain/trust"
)

// Endpoint names the two jurisdictions this connector drives.
type Endpoint struct {
	Jurisdiction string
	URL          string
}

// Config extends the common connector config with the two LIVES endpoints.
type Config struct {
	connectors.Config
	Endpoints []Endpoint
}

type featureResponse struct {
	Features []feature `json:"features"`
}

type feature struct {
	Attributes attributes `json:"attributes"`
}

type attributes struct {
	FacilityID     string   `json:"FACILITYID"`
	Name           string   `json:"PROGRAM_NAME"`
	Address        string   `json:"PROGRAM_ADDRESS"`
	City           string   `json:"PROGRAM_CITY"`
	State          string   `json:"PROGRAM_STATE"`
	Zip            string   `json:"PROGRAM_ZIP"`
	Latitude       *float64 `json:"LATITUDE"`
	Longitude      *float64 `json:"LONGITUDE"`
	InspectionDate string   `json:"ACTIVITY_DATE"`
	Score          *float64 `json:"SCORE"`
}

type Connector struct {
	cfg    Config
	client *connectors.HTTPClient
	logger zerolog.Logger
}

func New(cfg Config, logger zerolog.Logger) *Connector {
	return &Connector{cfg: cfg, client: connectors.NewHTTPClient(cfg.Config, logger), logger: logger}
}

func (c *Connector) Name() string { return "lives_batch" }

func (c *Connector) Fetch(ctx context.Context) ([]connectors.RawRecord, []string, error) {
	var (
		records  []connectors.RawRecord
		warnings []string
		firstErr error
	)

	for _, ep := range c.cfg.Endpoints {
		if err := ctx.Err(); err != nil {
			return records, warnings, err
		}

		recs, warns, err := c.fetchEndpoint(ctx, ep)
		records = append(records, recs...)
		warnings = append(warnings, warns...)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return records, warnings, firstErr
}

func (c *Connector) fetchEndpoint(ctx context.Context, ep Endpoint) ([]connectors.RawRecord, []string, error) {
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

		url := fmt.Sprintf("%s/query?where=1%%3D1&outFields=*&resultOffset=%d&resultRecordCount=%d&f=json",
			ep.URL, offset, pageSize)

		var page featureResponse
		if err := c.client.GetJSON(ctx, url, nil, &page); err != nil {
			return records, warnings, fmt.Errorf("lives(%s): fetch page at offset %d: %w", ep.Jurisdiction, offset, err)
		}

		if len(page.Features) == 0 && offset == 0 {
			break
		}

		parsedThisPage := 0
		for _, f := range page.Features {
			rec, warn, ok := convert(ep.Jurisdiction, f.Attributes)
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
			return records, warnings, fmt.Errorf("lives(%s): zero records parsed from non-empty page at offset %d", ep.Jurisdiction, offset)
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

func convert(jurisdiction string, a attributes) (connectors.RawRecord, string, bool) {
	if a.FacilityID == "" || a.Name == "" {
		return connectors.RawRecord{}, fmt.Sprintf("lives(%s): skipping feature with no facility id or name", jurisdiction), false
	}

	rec := connectors.RawRecord{
		Jurisdiction:  jurisdiction,
		SourceKey:     a.FacilityID,
		Name:          a.Name,
		StreetAddress: a.Address,
		City:          a.City,
		State:         a.State,
		PostalCode:    a.Zip,
		Latitude:      a.Latitude,
		Longitude:     a.Longitude,
	}

	if a.InspectionDate != "" {
		if t, err := time.Parse(time.RFC3339, a.InspectionDate); err == nil {
			rec.InspectionDate = &t
		}
	}
	if a.Score != nil {
		score := trust.NewNumeric(*a.Score)
		rec.Score = &score
	}

	return rec, "", true
}
