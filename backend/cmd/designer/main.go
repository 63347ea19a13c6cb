package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"sysdesign-assistant/backend/internal/agent"
	"sysdesign-assistant/backend/internal/assistant"
	"sysdesign-assistant/backend/internal/promptsource"
	"sysdesign-assistant/backend/internal/services"
	"sysdesign-assistant/backend/internal/state"
	"sysdesign-assistant/backend/pkg/config"
	apperrors "sysdesign-assistant/backend/pkg/errors"
	"sysdesign-assistant/backend/pkg/logger"
)

func main() {
	prompt := flag.String("prompt", "", "Design request (overrides DESIGN_PROMPT)")
	url := flag.String("url", "", "Fetch the design request from this page (overrides DESIGN_PROMPT_URL)")
	mode := flag.String("mode", "", "pipeline or chat (overrides DESIGNER_MODE)")
	pipelineMode := flag.String("pipeline", "", "multi or single (overrides PIPELINE_MODE)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, *prompt, *url, *mode, *pipelineMode)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid flags: %v\n", err)
		os.Exit(2)
	}

	// Initialize logger
	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
	}

	sm, err := services.NewServiceManager(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize services", zap.Error(err))
	}

	err = run(ctx, os.Stdout, sm, cfg)
	sm.Close()
	if err != nil {
		log.Error("Design run failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// applyFlags lets non-empty flags override the environment
func applyFlags(cfg *config.Config, prompt, url, mode, pipelineMode string) {
	if prompt != "" {
		cfg.DesignPrompt = prompt
		cfg.PromptURL = ""
	}
	if url != "" {
		cfg.PromptURL = url
	}
	if mode != "" {
		cfg.DesignerMode = strings.ToLower(mode)
	}
	if pipelineMode != "" {
		cfg.PipelineMode = strings.ToLower(pipelineMode)
	}
}

func run(ctx context.Context, out io.Writer, sm *services.ServiceManager, cfg *config.Config) error {
	prompt, err := resolvePrompt(ctx, cfg, promptsource.FetchWebpage)
	if err != nil {
		return err
	}

	if cfg.DesignerMode == config.DesignerModeChat {
		system := agent.SystemDesignerStages()[0].Definition.Instructions
		content, err := sm.Chat().Complete(ctx, system, prompt)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, content)
		return nil
	}

	// the CLI keeps reusing the cached thread between invocations
	result, err := sm.Pipeline(sm.Stages(), false).Run(ctx, prompt)
	printResult(out, result)

	// a run that ended badly is reported, not raised
	if status, ok := stoppedStatus(err); ok {
		fmt.Fprintf(out, "Run status: %s\n", status)
		logger.Get().Warn("Pipeline stopped early", zap.String("status", string(status)), zap.Error(err))
		return nil
	}
	return err
}

// stoppedStatus reports the terminal status of a run that ended without completing
func stoppedStatus(err error) (assistant.RunStatus, bool) {
	var statusErr *apperrors.ErrRunUnexpectedStatus
	if !errors.As(err, &statusErr) {
		return "", false
	}
	status := assistant.RunStatus(statusErr.Status)
	if !status.IsTerminal() || status == assistant.RunStatusCompleted {
		return "", false
	}
	return status, true
}

// resolvePrompt prefers a page URL over the literal prompt
func resolvePrompt(ctx context.Context, cfg *config.Config, fetch func(context.Context, string) (string, error)) (string, error) {
	if cfg.PromptURL != "" {
		text, err := fetch(ctx, cfg.PromptURL)
		if err != nil {
			return "", fmt.Errorf("fetch prompt from %s: %w", cfg.PromptURL, err)
		}
		return text, nil
	}
	if strings.TrimSpace(cfg.DesignPrompt) == "" {
		return config.DefaultPrompt, nil
	}
	return cfg.DesignPrompt, nil
}

// printResult writes one status line per stage, then the final payload
func printResult(out io.Writer, result *state.PipelineResult) {
	if result == nil {
		return
	}
	for i, stage := range result.Stages {
		line := fmt.Sprintf("[%d/%d] %s: %s", i+1, len(result.Stages), stage.Role, stage.Status)
		if stage.ToolRounds > 0 {
			line += fmt.Sprintf(" (%d tool rounds)", stage.ToolRounds)
		}
		if stage.LastError != "" {
			line += " - " + stage.LastError
		}
		fmt.Fprintln(out, line)
	}
	if result.Completed {
		fmt.Fprintln(out)
		fmt.Fprintln(out, result.Final)
	}
}
