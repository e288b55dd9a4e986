package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestServeCommand_Help(t *testing.T) {
	buf := new(bytes.Buffer)
	serveCmd.SetOut(buf)
	serveCmd.SetErr(buf)
	serveCmd.SetArgs([]string{"--help"})

	if err := serveCmd.Execute(); err != nil {
		t.Fatalf("serve --help failed: %v", err)
	}

	output := buf.String()
	for _, expected := range []string{"--host", "--port", "server host address", "server port"} {
		if !strings.Contains(output, expected) {
			t.Errorf("expected help text to contain %q, got:\n%s", expected, output)
		}
	}
}

func TestServeCommand_Flags(t *testing.T) {
	for _, flag := range []string{"host", "port"} {
		if f := serveCmd.Flags().Lookup(flag); f == nil {
			t.Errorf("expected flag %q to be defined on serve command", flag)
		}
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("DATABASE_URL", "")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig should succeed with env-var defaults: %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected default host 0.0.0.0, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.Mode != "api" {
		t.Errorf("expected default mode api, got %s", cfg.Server.Mode)
	}
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")

	logLevel = "debug"
	logFormat = "console"
	defer func() {
		logLevel = ""
		logFormat = ""
	}()

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("expected log format 'console', got %s", cfg.Logging.Format)
	}
}

func TestLoadConfig_InvalidRunMode(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("RUN_MODE", "bogus")
	defer t.Setenv("RUN_MODE", "")

	if _, err := loadConfig(); err == nil {
		t.Error("expected error for an invalid RUN_MODE")
	}
}

func TestLoadConfig_ProductionRequiresCORSOrigin(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("CORS_ALLOWED_ORIGIN", "")
	defer t.Setenv("ENVIRONMENT", "test")

	if _, err := loadConfig(); err == nil {
		t.Error("expected error when CORS_ALLOWED_ORIGIN is unset in production")
	}
}
