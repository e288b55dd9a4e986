package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/trustdirectory/internal/config"
	"github.com/Togather-Foundation/trustdirectory/internal/connectors"
	"github.com/Togather-Foundation/trustdirectory/internal/connectors/cpra"
	"github.com/Togather-Foundation/trustdirectory/internal/connectors/lacounty"
	"github.com/Togather-Foundation/trustdirectory/internal/connectors/lives"
	"github.com/Togather-Foundation/trustdirectory/internal/connectors/longbeach"
	"github.com/Togather-Foundation/trustdirectory/internal/connectors/sandiego"
	"github.com/Togather-Foundation/trustdirectory/internal/domain/facility"
	"github.com/Togather-Foundation/trustdirectory/internal/storage/memory"
	"github.com/Togather-Foundation/trustdirectory/internal/storage/postgres"
)

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	return cfg, nil
}

// buildRepository picks the durable or ephemeral Repository backend
// depending on whether a database connection string is configured (section
// 4.4): "the repository is chosen at startup based on whether a connection
// string is configured". The returned closer releases any pool the durable
// backend opened.
func buildRepository(ctx context.Context, cfg config.Config) (facility.Repository, func(), error) {
	if cfg.Database.URL == "" {
		return memory.New(), func() {}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.Database.MaxConnections > 0 {
		poolCfg.MaxConns = int32(cfg.Database.MaxConnections)
	}
	if cfg.Database.MaxIdle > 0 {
		poolCfg.MinConns = int32(cfg.Database.MaxIdle)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}

	if err := postgres.MigrateUp(cfg.Database.URL, postgres.DefaultMigrationsPath); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return repo, pool.Close, nil
}

// buildConnectors constructs one connector per section 4.2 source family,
// applying each jurisdiction's env-var override on top of the connector's
// own defaults.
func buildConnectors(cfg config.Config, logger zerolog.Logger) []connectors.Connector {
	src := cfg.Connectors
	fetchTimeout := cfg.Jobs.FetchTimeout

	la := toConnectorConfig(src.LosAngelesCounty, fetchTimeout)
	sd := toConnectorConfig(src.SanDiegoCounty, fetchTimeout)
	lb := toConnectorConfig(src.LongBeach, fetchTimeout)

	livesCfg := lives.Config{
		Config: toConnectorConfig(src.RiversideCounty, fetchTimeout),
		Endpoints: []lives.Endpoint{
			{Jurisdiction: "riverside_county", URL: src.RiversideCounty.BaseURL},
			{Jurisdiction: "san_bernardino_county", URL: src.SanBernardinoCounty.BaseURL},
		},
	}

	cpraCfg := cpra.Config{
		Config: toConnectorConfig(src.OrangeCounty, fetchTimeout),
		Sources: []cpra.Source{
			{Jurisdiction: "orange_county", ExportURL: src.OrangeCounty.BaseURL, ExportFormat: "json", LiveURL: src.OrangeCounty.APIToken},
			{Jurisdiction: "pasadena", ExportURL: src.Pasadena.BaseURL, ExportFormat: "csv", LiveURL: src.Pasadena.APIToken},
		},
	}

	return []connectors.Connector{
		lacounty.New(la, logger),
		sandiego.New(sd, logger),
		longbeach.New(lb, logger),
		lives.New(livesCfg, logger),
		cpra.New(cpraCfg, logger),
	}
}

func toConnectorConfig(src config.ConnectorSourceConfig, fetchTimeout time.Duration) connectors.Config {
	timeout := src.Timeout
	if timeout <= 0 {
		timeout = fetchTimeout
	}
	return connectors.Config{
		BaseURL:    src.BaseURL,
		Timeout:    timeout,
		PageSize:   src.PageSize,
		MaxRecords: src.MaxRecords,
		APIToken:   src.APIToken,
	}
}
