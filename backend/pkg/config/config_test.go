package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "sysdesign-assistant/backend/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, HandleStoreEnv, cfg.HandleStore)
	assert.Equal(t, PipelineModeMulti, cfg.PipelineMode)
	assert.Equal(t, DesignerModePipeline, cfg.DesignerMode)
	assert.Equal(t, 5, cfg.MaxToolRounds)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Zero(t, cfg.RunTimeout)
	assert.Equal(t, DefaultPrompt, cfg.DesignPrompt)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, apperrors.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("HANDLE_STORE", "FILE")
	t.Setenv("HANDLE_FILE", "/tmp/handles.env")
	t.Setenv("PIPELINE_MODE", "single")
	t.Setenv("MAX_TOOL_ROUNDS", "2")
	t.Setenv("POLL_INTERVAL", "250ms")
	t.Setenv("RUN_TIMEOUT", "3m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, HandleStoreFile, cfg.HandleStore)
	assert.Equal(t, "/tmp/handles.env", cfg.HandleFile)
	assert.Equal(t, PipelineModeSingle, cfg.PipelineMode)
	assert.Equal(t, 2, cfg.MaxToolRounds)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 3*time.Minute, cfg.RunTimeout)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			OpenAIAPIKey:  "sk-test",
			ModelID:       "gpt-4o-mini",
			HandleStore:   HandleStoreMemory,
			PipelineMode:  PipelineModeMulti,
			DesignerMode:  DesignerModePipeline,
			MaxToolRounds: 1,
			PollInterval:  time.Second,
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"unknown store", func(c *Config) { c.HandleStore = "redis" }, "HANDLE_STORE"},
		{"neo4j without password", func(c *Config) { c.HandleStore = HandleStoreNeo4j; c.Neo4jURI = "bolt://x" }, "NEO4J_PASSWORD"},
		{"unknown pipeline mode", func(c *Config) { c.PipelineMode = "parallel" }, "PIPELINE_MODE"},
		{"zero tool rounds", func(c *Config) { c.MaxToolRounds = 0 }, "MAX_TOOL_ROUNDS"},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }, "POLL_INTERVAL"},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, apperrors.IsConfigurationError(err))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}
