package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"sysdesign-assistant/backend/internal/agent"
	"sysdesign-assistant/backend/internal/services"
	"sysdesign-assistant/backend/pkg/config"
	"sysdesign-assistant/backend/pkg/logger"
)

func main() {
	mode := flag.String("mode", "all", "Which agents to create: multi, single or all")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Provisioning assistants...", zap.String("mode", *mode))

	var stages []agent.Stage
	switch *mode {
	case config.PipelineModeMulti:
		stages = agent.DefaultStages()
	case config.PipelineModeSingle:
		stages = agent.SystemDesignerStages()
	case "all":
		stages = append(agent.DefaultStages(), agent.SystemDesignerStages()...)
	default:
		log.Fatal("Unknown mode", zap.String("mode", *mode))
	}

	ctx := context.Background()
	sm, err := services.NewServiceManager(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer sm.Close()

	handles, err := sm.Pipeline(stages, false).Provision(ctx)
	if err != nil {
		log.Error("Failed to provision assistants", zap.Error(err))
		sm.Close()
		logger.Sync()
		os.Exit(1)
	}

	lines := make([]string, 0, len(handles))
	for role, handle := range handles {
		lines = append(lines, fmt.Sprintf("%s=%s", agent.AgentKey(role), handle))
	}
	sort.Strings(lines)

	// stdout carries only the .env lines so it can be redirected
	for _, line := range lines {
		fmt.Println(line)
	}
	log.Info("Provisioning complete",
		zap.Int("assistants", len(lines)),
		zap.String("handle_store", cfg.HandleStore),
	)
}
