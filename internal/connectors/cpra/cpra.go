// Package cpra implements the Orange County / Pasadena connector. Both
// jurisdictions publish a periodic CSV/JSON export (requested once under the
// California Public Records Act and refreshed on a schedule); when that
// export is empty or unreachable the connector falls back to each
// jurisdiction's documented live endpoint (section 4.2).
package cpra

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/trustdirectory/internal/connectors"
	"github.com/Togather-Foundation/trustdirectory/internal/domain/trust"
)

// Source configures one jurisdiction's export-first, live-fallback pair.
type Source struct {
	Jurisdiction string
	ExportURL    string // CSV or JSON export; empty skips straight to LiveURL
	ExportFormat string // "csv" or "json"
	LiveURL      string
}

// Config extends the common connector config with the per-jurisdiction
// export/live source list.
type Config struct {
	connectors.Config
	Sources []Source
}

type liveRecord struct {
	FacilityKey    string   `json:"facility_key"`
	Name           string   `json:"name"`
	Address        string   `json:"address"`
	City           string   `json:"city"`
	State          string   `json:"state"`
	Zip            string   `json:"zip"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	InspectionDate string   `json:"inspection_date"`
	Score          *float64 `json:"score"`
}

type Connector struct {
	cfg    Config
	client *connectors.HTTPClient
	logger zerolog.Logger
}

func New(cfg Config, logger zerolog.Logger) *Connector {
	return &Connector{cfg: cfg, client: connectors.NewHTTPClient(cfg.Config, logger), logger: logger}
}

func (c *Connector) Name() string { return "cpra_fallback" }

func (c *Connector) Fetch(ctx context.Context) ([]connectors.RawRecord, []string, error) {
	var (
		records  []connectors.RawRecord
		warnings []string
		firstErr error
	)

	for _, src := range c.cfg.Sources {
		if err := ctx.Err(); err != nil {
			return records, warnings, err
		}

		recs, warns, err := c.fetchSource(ctx, src)
		records = append(records, recs...)
		warnings = append(warnings, warns...)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if c.cfg.MaxRecords > 0 && len(records) > c.cfg.MaxRecords {
		records = records[:c.cfg.MaxRecords]
	}

	return records, warnings, firstErr
}

func (c *Connector) fetchSource(ctx context.Context, src Source) ([]connectors.RawRecord, []string, error) {
	if src.ExportURL != "" {
		recs, warns, err := c.fetchExport(ctx, src)
		if err == nil && len(recs) > 0 {
			return recs, warns, nil
		}
		if err != nil {
			c.logger.Warn().Str("jurisdiction", src.Jurisdiction).Err(err).
				Msg("cpra: export fetch failed, falling back to live endpoint")
		} else {
			c.logger.Info().Str("jurisdiction", src.Jurisdiction).
				Msg("cpra: export returned no rows, falling back to live endpoint")
		}
	}

	if src.LiveURL == "" {
		return nil, nil, fmt.Errorf("cpra(%s): no export data and no live fallback configured", src.Jurisdiction)
	}
	return c.fetchLive(ctx, src)
}

func (c *Connector) fetchExport(ctx context.Context, src Source) ([]connectors.RawRecord, []string, error) {
	body, err := c.client.Get(ctx, src.ExportURL, nil)
	if err != nil {
		return nil, nil, err
	}

	switch strings.ToLower(src.ExportFormat) {
	case "json":
		var rows []liveRecord
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, nil, fmt.Errorf("cpra(%s): decode json export: %w", src.Jurisdiction, err)
		}
		return convertRows(src.Jurisdiction, rows)
	default:
		return parseCSV(src.Jurisdiction, body)
	}
}

func (c *Connector) fetchLive(ctx context.Context, src Source) ([]connectors.RawRecord, []string, error) {
	var rows []liveRecord
	if err := c.client.GetJSON(ctx, src.LiveURL, nil, &rows); err != nil {
		return nil, nil, fmt.Errorf("cpra(%s): fetch live endpoint: %w", src.Jurisdiction, err)
	}
	records, warnings, err := convertRows(src.Jurisdiction, rows)
	if err != nil {
		return records, warnings, err
	}
	if len(rows) > 0 && len(records) == 0 {
		return records, warnings, fmt.Errorf("cpra(%s): zero records parsed from non-empty live response", src.Jurisdiction)
	}
	return records, warnings, nil
}

func parseCSV(jurisdiction string, body []byte) ([]connectors.RawRecord, []string, error) {
	reader := csv.NewReader(strings.NewReader(string(body)))
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("cpra(%s): parse csv export: %w", jurisdiction, err)
	}
	if len(rows) < 2 {
		return nil, nil, nil // header only or empty: not an error, triggers live fallback
	}

	header := rows[0]
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}

	get := func(row []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var (
		records  []connectors.RawRecord
		warnings []string
	)
	for _, row := range rows[1:] {
		key := get(row, "facility_key")
		name := get(row, "name")
		if key == "" || name == "" {
			warnings = append(warnings, fmt.Sprintf("cpra(%s): skipping csv row with no key or name", jurisdiction))
			continue
		}

		rec := connectors.RawRecord{
			Jurisdiction:  jurisdiction,
			SourceKey:     key,
			Name:          name,
			StreetAddress: get(row, "address"),
			City:          get(row, "city"),
			State:         get(row, "state"),
			PostalCode:    get(row, "zip"),
		}
		if lat, err := strconv.ParseFloat(get(row, "latitude"), 64); err == nil {
			rec.Latitude = &lat
		}
		if lon, err := strconv.ParseFloat(get(row, "longitude"), 64); err == nil {
			rec.Longitude = &lon
		}
		if d := get(row, "inspection_date"); d != "" {
			if t, err := time.Parse("2006-01-02", d); err == nil {
				rec.InspectionDate = &t
			}
		}
		if s := get(row, "score"); s != "" {
			if n, err := strconv.ParseFloat(s, 64); err == nil {
				score := trust.NewNumeric(n)
				rec.Score = &score
			}
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, warnings, fmt.Errorf("cpra(%s): zero records parsed from non-empty csv export", jurisdiction)
	}
	return records, warnings, nil
}

func convertRows(jurisdiction string, rows []liveRecord) ([]connectors.RawRecord, []string, error) {
	var (
		records  []connectors.RawRecord
		warnings []string
	)
	for _, r := range rows {
		if r.FacilityKey == "" || r.Name == "" {
			warnings = append(warnings, fmt.Sprintf("cpra(%s): skipping row with no facility key or name", jurisdiction))
			continue
		}
		rec := connectors.RawRecord{
			Jurisdiction:  jurisdiction,
			SourceKey:     r.FacilityKey,
			Name:          r.Name,
			StreetAddress: r.Address,
			City:          r.City,
			State:         r.State,
			PostalCode:    r.Zip,
			Latitude:      r.Latitude,
			Longitude:     r.Longitude,
		}
		if r.InspectionDate != "" {
			if t, err := time.Parse(time.RFC3339, r.InspectionDate); err == nil {
				rec.InspectionDate = &t
			}
		}
		if r.Score != nil {
			score := trust.NewNumeric(*r.Score)
			rec.Score = &score
		}
		records = append(records, rec)
	}
	return records, warnings, nil
}
