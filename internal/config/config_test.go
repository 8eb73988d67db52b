package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemaforge/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Oracle.BaseURL)
	assert.Equal(t, 2, cfg.Oracle.MaxRetries)
	assert.Equal(t, "gpt-4o-mini", cfg.Oracle.Selection.Model)
	assert.Equal(t, "gpt-4o", cfg.Oracle.Generation.Model)
	assert.Equal(t, 0.0, cfg.Oracle.Generation.Temperature)
	assert.Equal(t, 0.5, cfg.Inference.ConfidenceFloor)
	assert.Equal(t, 0.6, cfg.Inference.MajorityThreshold)
	assert.Equal(t, 5, cfg.Inference.SampleRows)
	assert.Equal(t, []string{"json"}, cfg.Output.Formats)
	assert.True(t, cfg.History.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SCHEMAFORGE_ORACLE_API_KEY", "sk-test")
	t.Setenv("SCHEMAFORGE_ORACLE_GENERATION_MODEL", "gpt-4.1")
	t.Setenv("SCHEMAFORGE_INFERENCE_MAJORITY_THRESHOLD", "0.75")
	t.Setenv("SCHEMAFORGE_OUTPUT_FORMATS", "json, yaml ,xlsx")
	t.Setenv("SCHEMAFORGE_HISTORY_ENABLED", "false")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Oracle.APIKey)
	assert.Equal(t, "gpt-4.1", cfg.Oracle.Generation.Model)
	assert.Equal(t, 0.75, cfg.Inference.MajorityThreshold)
	assert.Equal(t, []string{"json", "yaml", "xlsx"}, cfg.Output.Formats)
	assert.False(t, cfg.History.Enabled)
}

func TestLoad_PlatformPortFallback(t *testing.T) {
	t.Setenv("PORT", "9090")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Port)
}

func TestLoad_ExplicitPortWinsOverPlatformPort(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SCHEMAFORGE_SERVER_PORT", ":7070")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Port)
}
