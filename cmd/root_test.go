package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"ingest", "learn", "analyze", "corrections", "serve", "status", "resolve"} {
		assert.True(t, names[want], "command %q must be registered", want)
	}
}

func TestCorrectionsSubcommands(t *testing.T) {
	sub := map[string]bool{}
	for _, c := range correctionsCmd.Commands() {
		sub[c.Name()] = true
	}

	for _, want := range []string{"submit", "approve", "reject", "list", "verify", "export"} {
		assert.True(t, sub[want], "corrections subcommand %q must be registered", want)
	}
}

func TestResolveConsensusFlags(t *testing.T) {
	for _, name := range []string{"lat", "lon", "zip", "street", "category"} {
		assert.NotNil(t, resolveCmd.Flags().Lookup(name), "flag %q must be registered", name)
	}
}

func TestSubmitRequiredFlags(t *testing.T) {
	for _, name := range []string{"category", "provider", "state", "zip"} {
		f := correctionsSubmitCmd.Flags().Lookup(name)
		require.NotNil(t, f, "flag %q", name)
		_, required := f.Annotations[cobra.BashCompOneRequiredFlag]
		assert.True(t, required, "flag %q must be required", name)
	}
}
