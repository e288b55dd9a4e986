package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Togather-Foundation/trustdirectory/internal/validation"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Connectors  ConnectorsConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Jobs        JobsConfig
	Logging     LoggingConfig
	Environment string
}

// ServerConfig controls the HTTP listener and process mode.
type ServerConfig struct {
	Host string
	Port int
	// Mode is one of "api", "worker", "refresh_once" (spec section 4.5).
	Mode string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MaxIdle        int
}

// ConnectorSourceConfig is the env-var override layer for one jurisdiction
// connector; zero values mean "use the connector's own default".
type ConnectorSourceConfig struct {
	BaseURL    string
	PageSize   int
	MaxRecords int
	Timeout    time.Duration
	APIToken   string
}

type ConnectorsConfig struct {
	LosAngelesCounty    ConnectorSourceConfig
	SanDiegoCounty      ConnectorSourceConfig
	LongBeach           ConnectorSourceConfig
	RiversideCounty     ConnectorSourceConfig
	SanBernardinoCounty ConnectorSourceConfig
	OrangeCounty        ConnectorSourceConfig
	Pasadena            ConnectorSourceConfig
}

// RateLimitConfig configures the vote service's per-client buckets (spec
// section 4.7): a cooldown between successive votes and a rolling-window cap.
type RateLimitConfig struct {
	VoteCooldown     time.Duration
	VoteWindow       time.Duration
	VoteMaxPerWindow int
	CleanupInterval  time.Duration
}

type JobsConfig struct {
	RefreshInterval time.Duration
	FetchTimeout    time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

type CORSConfig struct {
	AllowAllOrigins bool
	AllowedOrigins  []string
}

func Load() (Config, error) {
	if os.Getenv("DATABASE_URL") == "" {
		env := strings.TrimSpace(strings.ToLower(os.Getenv("ENVIRONMENT")))
		switch env {
		case "", "development", "dev", "test":
			LoadEnvFile(".env")
		default:
			if path := strings.TrimSpace(os.Getenv("ENV_FILE")); path != "" {
				LoadEnvFile(path)
			}
		}
	}

	cfg := Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvInt("SERVER_PORT", 8080),
			Mode: getEnv("RUN_MODE", "api"),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConnections: getEnvInt("DATABASE_MAX_CONNECTIONS", 25),
			MaxIdle:        getEnvInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
		},
		Connectors: ConnectorsConfig{
			LosAngelesCounty:    connectorSourceFromEnv("LA_COUNTY"),
			SanDiegoCounty:      connectorSourceFromEnv("SAN_DIEGO_COUNTY"),
			LongBeach:           connectorSourceFromEnv("LONG_BEACH"),
			RiversideCounty:     connectorSourceFromEnv("RIVERSIDE_COUNTY"),
			SanBernardinoCounty: connectorSourceFromEnv("SAN_BERNARDINO_COUNTY"),
			OrangeCounty:        connectorSourceFromEnv("ORANGE_COUNTY"),
			Pasadena:            connectorSourceFromEnv("PASADENA"),
		},
		RateLimit: RateLimitConfig{
			VoteCooldown:     time.Duration(getEnvInt("VOTE_COOLDOWN_SECONDS", 60)) * time.Second,
			VoteWindow:       time.Duration(getEnvInt("VOTE_WINDOW_MINUTES", 10)) * time.Minute,
			VoteMaxPerWindow: getEnvInt("VOTE_MAX_PER_WINDOW", 20),
			CleanupInterval:  time.Duration(getEnvInt("VOTE_CLEANUP_MINUTES", 5)) * time.Minute,
		},
		Jobs: JobsConfig{
			RefreshInterval: time.Duration(getEnvInt("REFRESH_INTERVAL_MINUTES", 60)) * time.Minute,
			FetchTimeout:    time.Duration(getEnvInt("CONNECTOR_FETCH_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	env := cfg.Environment
	if env == "development" || env == "test" {
		cfg.CORS = CORSConfig{AllowAllOrigins: true}
	} else {
		allowedOrigins := getEnv("CORS_ALLOWED_ORIGIN", "")
		if allowedOrigins == "" {
			return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGIN is required in production environment (use '*' for all origins or a single origin)")
		}
		if strings.TrimSpace(allowedOrigins) == "*" {
			cfg.CORS = CORSConfig{AllowAllOrigins: true}
		} else {
			cfg.CORS = CORSConfig{AllowedOrigins: []string{strings.TrimSpace(allowedOrigins)}}
		}
	}

	switch cfg.Server.Mode {
	case "api", "worker", "refresh_once":
	default:
		return Config{}, fmt.Errorf("RUN_MODE must be one of api, worker, refresh_once (got %q)", cfg.Server.Mode)
	}

	if err := cfg.Connectors.validateURLs(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// validateURLs rejects malformed connector base-URL overrides at startup
// rather than letting a typo surface later as an opaque fetch failure.
func (c ConnectorsConfig) validateURLs() error {
	sources := map[string]string{
		"LA_COUNTY_URL":            c.LosAngelesCounty.BaseURL,
		"SAN_DIEGO_COUNTY_URL":     c.SanDiegoCounty.BaseURL,
		"LONG_BEACH_URL":           c.LongBeach.BaseURL,
		"RIVERSIDE_COUNTY_URL":     c.RiversideCounty.BaseURL,
		"SAN_BERNARDINO_COUNTY_URL": c.SanBernardinoCounty.BaseURL,
		"ORANGE_COUNTY_URL":        c.OrangeCounty.BaseURL,
		"PASADENA_URL":             c.Pasadena.BaseURL,
	}
	for field, raw := range sources {
		if err := validation.ValidateURL(raw, field, false); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

func connectorSourceFromEnv(prefix string) ConnectorSourceConfig {
	return ConnectorSourceConfig{
		BaseURL:    getEnv(prefix+"_URL", ""),
		PageSize:   getEnvInt(prefix+"_PAGE_SIZE", 0),
		MaxRecords: getEnvInt(prefix+"_MAX_RECORDS", 0),
		Timeout:    time.Duration(getEnvInt(prefix+"_TIMEOUT_SECONDS", 0)) * time.Second,
		APIToken:   getEnv(prefix+"_API_TOKEN", ""),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// LoadEnvFile loads environment variables from a .env file. Silently ignores
// a missing file; not all deployments use one.
func LoadEnvFile(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, value)
		}
	}
}
