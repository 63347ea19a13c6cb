package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sysdesign-assistant/backend/internal/agent"
	"sysdesign-assistant/backend/internal/assistant/assistanttest"
	"sysdesign-assistant/backend/internal/store"
	"sysdesign-assistant/backend/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{
		ModelID:       "gpt-test",
		HandleStore:   config.HandleStoreMemory,
		PipelineMode:  config.PipelineModeMulti,
		MaxToolRounds: 3,
	}
}

func TestOpenHandleStore(t *testing.T) {
	ctx := context.Background()
	log := zap.NewNop()

	tests := []struct {
		kind string
		want interface{}
	}{
		{config.HandleStoreEnv, &store.EnvStore{}},
		{config.HandleStoreFile, &store.FileStore{}},
		{config.HandleStoreMemory, &store.MemoryStore{}},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			cfg := testConfig()
			cfg.HandleStore = tt.kind
			cfg.HandleFile = filepath.Join(t.TempDir(), ".assistants.env")

			hs, closeFn, err := OpenHandleStore(ctx, cfg, log)
			require.NoError(t, err)
			assert.IsType(t, tt.want, hs)
			assert.Nil(t, closeFn)
		})
	}

	cfg := testConfig()
	cfg.HandleStore = "redis"
	_, _, err := OpenHandleStore(ctx, cfg, log)
	assert.Error(t, err)
}

func TestServiceManager_StagesByMode(t *testing.T) {
	cfg := testConfig()
	sm := NewServiceManagerWithService(cfg, zap.NewNop(), assistanttest.New(), store.NewMemoryStore(nil))

	assert.Len(t, sm.Stages(), 3)

	cfg.PipelineMode = config.PipelineModeSingle
	require.Len(t, sm.Stages(), 1)
	assert.Equal(t, agent.RoleDesigner, sm.Stages()[0].Definition.Role)

	stages, err := sm.StagesFor(config.PipelineModeMulti)
	require.NoError(t, err)
	assert.Len(t, stages, 3)

	_, err = sm.StagesFor("parallel")
	assert.Error(t, err)
}

func TestServiceManager_PipelinesShareRegistry(t *testing.T) {
	fake := assistanttest.New().
		Script(agent.RoleDesigner, assistanttest.Complete(`{"diagram": "graph TD", "explain": "x"}`))
	sm := NewServiceManagerWithService(testConfig(), zap.NewNop(), fake, store.NewMemoryStore(nil))
	defer sm.Close()

	for i := 0; i < 3; i++ {
		result, err := sm.Pipeline(agent.SystemDesignerStages(), true).Run(context.Background(), "design a chat app")
		require.NoError(t, err)
		assert.True(t, result.Completed)
	}

	assert.Equal(t, 1, fake.CreateAgentCalls)
	assert.Equal(t, 3, fake.CreateThreadCalls)
	assert.Equal(t, "gpt-test", sm.Config().ModelID)
	assert.Nil(t, sm.Chat())
}

func TestServiceManager_CloseIsIdempotent(t *testing.T) {
	calls := 0
	sm := NewServiceManagerWithService(testConfig(), zap.NewNop(), assistanttest.New(), store.NewMemoryStore(nil))
	sm.closers = append(sm.closers, func() error {
		calls++
		return nil
	})

	sm.Close()
	sm.Close()
	assert.Equal(t, 1, calls)
}
