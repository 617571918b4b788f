package cmd

import (
	"testing"
)

func TestRootCommandSubcommands(t *testing.T) {
	expected := []string{"serve", "migrate", "version", "healthcheck", "submit"}

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

func TestRootCommandGlobalFlags(t *testing.T) {
	flags := []string{"log-level", "log-format"}
	for _, flag := range flags {
		if f := rootCmd.PersistentFlags().Lookup(flag); f == nil {
			t.Errorf("expected global flag %q to be defined", flag)
		}
	}
}

func TestRootCommandUse(t *testing.T) {
	if rootCmd.Use != "riskserver" {
		t.Errorf("expected command name riskserver, got %q", rootCmd.Use)
	}
}
