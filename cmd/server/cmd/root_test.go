package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommand_Help(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"--help"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("--help failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "Trust Directory aggregates") {
		t.Errorf("expected help text to describe the server, got:\n%s", output)
	}
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	for _, flag := range []string{"log-level", "log-format"} {
		if f := rootCmd.PersistentFlags().Lookup(flag); f == nil {
			t.Errorf("expected persistent flag %q to be defined", flag)
		}
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	expected := []string{"serve", "refresh", "version"}
	for _, name := range expected {
		found := false
		for _, sub := range rootCmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected subcommand %q to be registered", name)
		}
	}
}

func TestDefaultRunMode(t *testing.T) {
	t.Setenv("RUN_MODE", "")
	if mode := defaultRunMode(); mode != "api" {
		t.Errorf("expected default mode api, got %q", mode)
	}

	t.Setenv("RUN_MODE", "refresh_once")
	if mode := defaultRunMode(); mode != "refresh_once" {
		t.Errorf("expected mode refresh_once, got %q", mode)
	}
}
