package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"sysdesign-assistant/backend/internal/adapter"
	"sysdesign-assistant/backend/internal/agent"
	"sysdesign-assistant/backend/internal/assistant"
	"sysdesign-assistant/backend/internal/graph"
	"sysdesign-assistant/backend/internal/store"
	"sysdesign-assistant/backend/pkg/config"
)

// ServiceManager owns the long-lived dependencies shared by the CLI, the HTTP
// server and the Discord bot
type ServiceManager struct {
	cfg      *config.Config
	logger   *zap.Logger
	handles  store.HandleStore
	chat     *adapter.ChatAdapter
	session  *agent.Session
	registry *agent.Registry
	closers  []func() error
	mu       sync.Mutex
	closed   bool
}

// NewServiceManager builds the production dependency graph from cfg
func NewServiceManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*ServiceManager, error) {
	handles, closeStore, err := OpenHandleStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	service := adapter.NewAssistantsAdapter(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.PollInterval)

	sm := NewServiceManagerWithService(cfg, logger, service, handles)
	sm.chat = adapter.NewChatAdapter(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.ChatModelID)
	if closeStore != nil {
		sm.closers = append(sm.closers, closeStore)
	}

	logger.Info("Services initialized",
		zap.String("handle_store", cfg.HandleStore),
		zap.String("pipeline_mode", cfg.PipelineMode),
		zap.String("model", cfg.ModelID),
	)
	return sm, nil
}

// NewServiceManagerWithService wires a session around any assistant service.
// Tests pass a fake; no chat adapter is configured.
func NewServiceManagerWithService(cfg *config.Config, logger *zap.Logger, service assistant.Service, handles store.HandleStore) *ServiceManager {
	session := agent.NewSession(service, handles, cfg.ModelID,
		agent.WithLogger(logger.Named("agent")),
		agent.WithMaxToolRounds(cfg.MaxToolRounds),
	)
	return &ServiceManager{
		cfg:      cfg,
		logger:   logger,
		handles:  handles,
		session:  session,
		registry: agent.NewRegistry(session),
	}
}

// OpenHandleStore builds the handle store selected by cfg.HandleStore. The
// returned close func is nil unless the store holds a connection.
func OpenHandleStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.HandleStore, func() error, error) {
	switch cfg.HandleStore {
	case config.HandleStoreEnv:
		return store.NewEnvStore(), nil, nil
	case config.HandleStoreFile:
		return store.NewFileStore(cfg.HandleFile), nil, nil
	case config.HandleStoreMemory:
		return store.NewMemoryStore(nil), nil, nil
	case config.HandleStoreNeo4j:
		driver, err := neo4j.NewDriverWithContext(
			cfg.Neo4jURI,
			neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
		}
		if err := driver.VerifyConnectivity(ctx); err != nil {
			_ = driver.Close(ctx)
			return nil, nil, fmt.Errorf("failed to verify Neo4j connectivity: %w", err)
		}
		hs := graph.NewHandleStore(driver)
		if err := hs.EnsureSchema(ctx); err != nil {
			logger.Warn("Failed to ensure handle schema", zap.Error(err))
		}
		logger.Info("Connected to Neo4j handle store", zap.String("uri", cfg.Neo4jURI))
		return hs, hs.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown handle store %q", cfg.HandleStore)
	}
}

// Stages returns the stage preset selected by PIPELINE_MODE
func (sm *ServiceManager) Stages() []agent.Stage {
	if sm.cfg.PipelineMode == config.PipelineModeSingle {
		return agent.SystemDesignerStages()
	}
	return agent.DefaultStages()
}

// StagesFor returns the preset for mode, falling back to the configured one
func (sm *ServiceManager) StagesFor(mode string) ([]agent.Stage, error) {
	switch mode {
	case "":
		return sm.Stages(), nil
	case config.PipelineModeMulti:
		return agent.DefaultStages(), nil
	case config.PipelineModeSingle:
		return agent.SystemDesignerStages(), nil
	default:
		return nil, fmt.Errorf("unknown pipeline mode %q", mode)
	}
}

// Pipeline returns a pipeline over stages that shares the manager's registry.
// Fresh pipelines open a new thread per run.
func (sm *ServiceManager) Pipeline(stages []agent.Stage, fresh bool) *agent.Pipeline {
	opts := []agent.PipelineOption{agent.WithRegistry(sm.registry)}
	if fresh {
		opts = append(opts, agent.WithFreshConversation())
	}
	return agent.NewPipeline(sm.session, stages, opts...)
}

// Chat returns the chat completion adapter, or nil when none was configured
func (sm *ServiceManager) Chat() *adapter.ChatAdapter {
	return sm.chat
}

// Store returns the handle store
func (sm *ServiceManager) Store() store.HandleStore {
	return sm.handles
}

// Config returns the configuration the manager was built from
func (sm *ServiceManager) Config() *config.Config {
	return sm.cfg
}

// Close releases held connections. It is safe to call more than once.
func (sm *ServiceManager) Close() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.closed {
		return
	}
	sm.closed = true

	for _, closeFn := range sm.closers {
		if err := closeFn(); err != nil {
			sm.logger.Warn("Failed to close service", zap.Error(err))
		}
	}
	sm.logger.Info("All services stopped")
}
