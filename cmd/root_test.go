package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"serve", "migrate", "regions", "import", "infer", "infer-all"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "tower-jumps", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestRegionsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range regionsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["load"])
	assert.True(t, names["list"])

	for _, flagName := range []string{"url", "file", "force"} {
		assert.NotNil(t, regionsLoadCmd.Flags().Lookup(flagName), "regions load should have --%s flag", flagName)
	}
}

func TestImportCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"subscriber", "file", "encoding", "sheet", "append", "format"} {
		assert.NotNil(t, importCmd.Flags().Lookup(flagName), "import should have --%s flag", flagName)
	}
	assert.Equal(t, "utf-8", importCmd.Flags().Lookup("encoding").DefValue)
}

func TestInferCommands_Flags(t *testing.T) {
	for _, flagName := range []string{"subscriber", "method", "start", "end", "output", "format", "pings"} {
		assert.NotNil(t, inferCmd.Flags().Lookup(flagName), "infer should have --%s flag", flagName)
	}
	for _, flagName := range []string{"method", "start", "end", "concurrency", "out", "format"} {
		assert.NotNil(t, inferAllCmd.Flags().Lookup(flagName), "infer-all should have --%s flag", flagName)
	}
	assert.Equal(t, "0", inferAllCmd.Flags().Lookup("concurrency").DefValue)
}
