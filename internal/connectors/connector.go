// Package connectors defines the pluggable jurisdiction-connector contract
// (section 4.2) shared by all five upstream-source implementations.
package connectors

import (
	"context"
	"time"

	"github.com/Togather-Foundation/trustdirectory/internal/domain/trust"
)

// RawRecord is the uniform intermediate shape every connector parses its
// upstream payload into, before normalization and merge.
type RawRecord struct {
	Jurisdiction    string
	SourceKey       string
	Name            string
	StreetAddress   string
	City            string
	State           string
	PostalCode      string
	Latitude        *float64
	Longitude       *float64
	InspectionDate  *time.Time
	Score           *trust.RawScore
}

// Connector is the single-operation capability every jurisdiction adapter
// implements (section 9 design notes: prefer an interface over a class hierarchy).
type Connector interface {
	// Name identifies the connector in ingestion stats and logs.
	Name() string
	// Fetch retrieves and parses the upstream payload. It returns whatever
	// records were successfully parsed even when it also returns a non-nil
	// error (section 4.2: "previously accumulated rows are still returned alongside
	// the error"). Parse warnings are informational and never fail the run.
	Fetch(ctx context.Context) ([]RawRecord, []string, error)
}

// Config is the common per-source configuration every connector accepts.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	PageSize    int
	MaxRecords  int // 0 = no cap
	APIToken    string
	UserAgent   string
}

// DefaultTimeout is used when a connector's Config.Timeout is zero.
const DefaultTimeout = 20 * time.Second

// EffectiveTimeout returns cfg.Timeout, falling back to DefaultTimeout.
func (cfg Config) EffectiveTimeout() time.Duration {
	if cfg.Timeout <= 0 {
		return DefaultTimeout
	}
	return cfg.Timeout
}
