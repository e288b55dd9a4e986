// Package longbeach scrapes the City of Long Beach's public closures
// listing page. Unlike the other four connectors this source has no JSON
// API: records are extracted from posted placard-style status entries
// (section 4.2).
package longbeach

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/trustdirectory/internal/connectors"
	"github.com/Togather-Foundation/trustdirectory/internal/domain/trust"
	"github.com/Togather-Foundation/trustdirectory/internal/sanitize"
)

const Jurisdiction = "long_beach"

// Selectors controls which CSS selectors locate each field on the closures
// page. Kept configurable (mirrors the teacher scraper's per-source
// SelectorConfig) since the city periodically redesigns the page markup.
type Selectors struct {
	Item    string
	Name    string
	Address string
	Status  string
	Date    string
}

// DefaultSelectors match the page structure observed at the time this
// connector was written.
func DefaultSelectors() Selectors {
	return Selectors{
		Item:    ".closure-item",
		Name:    ".facility-name",
		Address: ".facility-address",
		Status:  ".closure-status",
		Date:    ".closure-date",
	}
}

type Connector struct {
	cfg       connectors.Config
	selectors Selectors
	userAgent string
	logger    zerolog.Logger
}

func New(cfg connectors.Config, logger zerolog.Logger) *Connector {
	return &Connector{
		cfg:       cfg,
		selectors: DefaultSelectors(),
		userAgent: "trustdirectory-longbeach-connector/1.0 (+https://example.invalid/contact)",
		logger:    logger,
	}
}

func (c *Connector) Name() string { return Jurisdiction }

func (c *Connector) Fetch(ctx context.Context) ([]connectors.RawRecord, []string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var (
		records    []connectors.RawRecord
		warnings   []string
		rawEntries int
	)

	collector := colly.NewCollector(
		colly.UserAgent(c.userAgent),
	)
	collector.SetRequestTimeout(c.cfg.EffectiveTimeout())

	collector.OnHTML(c.selectors.Item, func(e *colly.HTMLElement) {
		if ctx.Err() != nil {
			return
		}
		rawEntries++

		name := sanitize.Text(strings.TrimSpace(e.ChildText(c.selectors.Name)))
		address := sanitize.Text(strings.TrimSpace(e.ChildText(c.selectors.Address)))
		statusText := strings.TrimSpace(e.ChildText(c.selectors.Status))
		dateText := strings.TrimSpace(e.ChildText(c.selectors.Date))

		if name == "" {
			warnings = append(warnings, "longbeach: skipping entry with no facility name")
			return
		}

		placard, ok := parsePlacard(statusText)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("longbeach: unrecognized status %q for %q", statusText, name))
			return
		}

		rec := connectors.RawRecord{
			Jurisdiction:  Jurisdiction,
			SourceKey:     sourceKey(name, address),
			Name:          name,
			StreetAddress: address,
			City:          "Long Beach",
			State:         "CA",
		}
		score := trust.NewPlacard(placard)
		rec.Score = &score
		if t, err := parseDate(dateText); err == nil {
			rec.InspectionDate = &t
		} else {
			now := time.Now().UTC()
			rec.InspectionDate = &now
		}

		if c.cfg.MaxRecords > 0 && len(records) >= c.cfg.MaxRecords {
			return
		}
		records = append(records, rec)
	})

	var fetchErr error
	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("longbeach: fetch %s: %w", c.cfg.BaseURL, err)
	})

	if err := collector.Visit(c.cfg.BaseURL); err != nil {
		return records, warnings, fmt.Errorf("longbeach: visit %s: %w", c.cfg.BaseURL, err)
	}
	collector.Wait()

	if fetchErr != nil {
		return records, warnings, fetchErr
	}

	if rawEntries > 0 && len(records) == 0 {
		return records, warnings, fmt.Errorf("longbeach: zero records parsed from non-empty closures page")
	}

	return records, warnings, nil
}

func parsePlacard(status string) (trust.Placard, bool) {
	s := strings.ToLower(status)
	switch {
	case strings.Contains(s, "red") || strings.Contains(s, "closed"):
		return trust.PlacardRed, true
	case strings.Contains(s, "yellow") || strings.Contains(s, "warning"):
		return trust.PlacardYellow, true
	case strings.Contains(s, "green") || strings.Contains(s, "reopen"):
		return trust.PlacardGreen, true
	default:
		return "", false
	}
}

func parseDate(raw string) (time.Time, error) {
	layouts := []string{"January 2, 2006", "2006-01-02", time.RFC3339}
	var lastErr error
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

func sourceKey(name, address string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "|" + strings.ToLower(strings.TrimSpace(address))
}
