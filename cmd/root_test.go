package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/label-audit/internal/config"
)

// testConfig installs a valid in-memory configuration for the test.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	prev := cfg
	cfg = &config.Config{
		Log: config.LogConfig{Level: "info", Format: "json"},
		OCR: config.OCRConfig{Provider: "mistral", MistralKey: "test-key"},
		Vision: config.VisionConfig{
			MinMatches: 1, MaxImages: 5, Workers: 2,
		},
		Extract:  config.ExtractConfig{Workers: 2, LicenseWindow: 25, LicenseContext: 50},
		AI:       config.AIConfig{Provider: "none"},
		Pipeline: config.PipelineConfig{DeadlineSecs: 120, SaveRuns: true},
		Store:    config.StoreConfig{Driver: "memory", CacheEnabled: true, CacheTTLHours: 1},
	}
	t.Cleanup(func() { cfg = prev })
	return cfg
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"analyze", "score-images", "extract", "cache", "runs"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "label-audit", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestAnalyzeCommand_Flags(t *testing.T) {
	for _, name := range []string{"manifest", "image", "url", "title", "field", "min-matches", "max-images", "format", "no-ai"} {
		require.NotNil(t, analyzeCmd.Flags().Lookup(name), "analyze should have --%s", name)
	}
	assert.Equal(t, "json", analyzeCmd.Flags().Lookup("format").DefValue)
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["show"])
}

func TestCacheCommand_HasPrune(t *testing.T) {
	require.Len(t, cacheCmd.Commands(), 1)
	assert.Equal(t, "prune", cacheCmd.Commands()[0].Name())
}
