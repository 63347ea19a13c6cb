package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"sysdesign-assistant/backend/internal/assistant"
	"sysdesign-assistant/backend/internal/state"
	apperrors "sysdesign-assistant/backend/pkg/errors"
)

var (
	ErrNoStages = errors.New("pipeline has no stages")
	ErrNoOutput = errors.New("stage completed without output")
)

// Pipeline runs its stages in order on one thread. Each stage's extracted
// field is the next stage's input.
type Pipeline struct {
	session       *Session
	stages        []Stage
	registry      *Registry
	conversations *ConversationManager
	runner        *TurnRunner
	bridge        *ToolBridge
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithFreshConversation runs every execution on a new, uncached thread
func WithFreshConversation() PipelineOption {
	return func(p *Pipeline) {
		p.conversations = p.conversations.Fresh()
	}
}

// WithRegistry shares one registry between pipelines so concurrent cache
// misses for the same role create a single agent
func WithRegistry(r *Registry) PipelineOption {
	return func(p *Pipeline) {
		if r != nil {
			p.registry = r
		}
	}
}

// NewPipeline creates a pipeline over stages
func NewPipeline(session *Session, stages []Stage, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		session:       session,
		stages:        stages,
		registry:      NewRegistry(session),
		conversations: NewConversationManager(session),
		runner:        NewTurnRunner(session),
		bridge:        NewToolBridge(session),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stages returns the pipeline's stages in execution order
func (p *Pipeline) Stages() []Stage {
	return p.stages
}

// Provision resolves every stage's agent handle, creating missing agents.
// The result maps role to handle.
func (p *Pipeline) Provision(ctx context.Context) (map[string]string, error) {
	handles := make(map[string]string, len(p.stages))
	for _, stage := range p.stages {
		handle, err := p.registry.GetOrCreateAgent(ctx, stage.Definition)
		if err != nil {
			return nil, err
		}
		handles[stage.Definition.Role] = handle
	}
	return handles, nil
}

// Run executes every stage in order starting from prompt. On failure the
// partial result is returned together with the error; stages after the
// failing one are never started.
func (p *Pipeline) Run(ctx context.Context, prompt string) (*state.PipelineResult, error) {
	if len(p.stages) == 0 {
		return nil, ErrNoStages
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyTurn
	}

	handles, err := p.Provision(ctx)
	if err != nil {
		return nil, err
	}

	threadID, err := p.conversations.GetOrCreateConversation(ctx)
	if err != nil {
		return nil, err
	}
	unlock := p.session.lockThread(threadID)
	defer unlock()

	result := &state.PipelineResult{ThreadID: threadID}
	input := prompt
	for i, stage := range p.stages {
		role := stage.Definition.Role
		p.session.logger.Info("Starting stage",
			zap.Int("stage", i+1),
			zap.String("role", role),
			zap.String("thread_id", threadID),
		)

		sr, err := p.runStage(ctx, threadID, handles[role], stage, input)
		result.Stages = append(result.Stages, sr)
		if err != nil {
			return result, fmt.Errorf("stage %d (%s): %w", i+1, role, err)
		}

		p.session.logger.Info("Stage completed",
			zap.String("role", role),
			zap.String("run_id", sr.RunID),
			zap.Int("tool_rounds", sr.ToolRounds),
		)
		input = sr.Value
		result.Final = sr.Payload
	}

	result.Completed = true
	return result, nil
}

func (p *Pipeline) runStage(ctx context.Context, threadID, agentID string, stage Stage, input string) (state.StageResult, error) {
	sr := state.StageResult{
		Role:  stage.Definition.Role,
		Field: stage.Field,
	}
	log := p.session.logger.With(zap.String("role", sr.Role))

	run, err := p.runner.RunTurn(ctx, assistant.Turn{
		ThreadID: threadID,
		AgentID:  agentID,
		Text:     input,
	})
	if err != nil {
		sr.LastError = err.Error()
		return sr, err
	}
	sr.RunID = run.ID

	var echoed []assistant.ToolOutput
	for run.Status.IsActionable() {
		if sr.ToolRounds >= p.session.maxToolRounds {
			sr.Status = string(run.Status)
			return sr, apperrors.NewToolRoundsExceeded(run.ID, sr.ToolRounds)
		}

		res := p.bridge.ResolveToolCalls(ctx, run, stage.FunctionName())
		if !res.Submitted {
			sr.Status = string(run.Status)
			log.Warn("Run stuck waiting on tool outputs", zap.String("run_id", run.ID))
			statusErr := apperrors.NewRunUnexpectedStatus(run.ID, string(run.Status))
			if res.Err != nil {
				sr.LastError = res.Err.Error()
				return sr, errors.Join(statusErr, res.Err)
			}
			return sr, statusErr
		}
		sr.ToolRounds++
		if res.Err != nil {
			sr.Status = string(res.Run.Status)
			sr.LastError = res.Err.Error()
			return sr, res.Err
		}
		echoed = res.Outputs
		run = res.Run
	}

	sr.Status = string(run.Status)
	sr.LastError = run.LastError
	if run.Status != assistant.RunStatusCompleted {
		log.Warn("Run did not complete",
			zap.String("run_id", run.ID),
			zap.String("status", sr.Status),
			zap.String("last_error", run.LastError),
		)
		return sr, apperrors.NewRunUnexpectedStatus(run.ID, sr.Status)
	}

	payload, err := p.latestReply(ctx, threadID, run.ID)
	if err != nil {
		return sr, err
	}
	if payload == "" && len(echoed) > 0 {
		log.Debug("No assistant message, using echoed tool arguments", zap.String("run_id", run.ID))
		payload = echoed[len(echoed)-1].Output
	}
	if payload == "" {
		return sr, ErrNoOutput
	}

	sr.Payload = payload
	sr.Value = p.extractValue(stage, payload)
	return sr, nil
}

// latestReply returns the newest assistant text the run produced
func (p *Pipeline) latestReply(ctx context.Context, threadID, runID string) (string, error) {
	messages, err := p.session.service.ListMessages(ctx, threadID, runID)
	if err != nil {
		return "", apperrors.NewRemoteRequestFailed("list_messages", err)
	}
	for _, m := range messages {
		if m.Role == assistant.RoleAssistant && strings.TrimSpace(m.Text) != "" {
			return m.Text, nil
		}
	}
	return "", nil
}

// extractValue picks the stage's field out of payload, falling back to the raw payload
func (p *Pipeline) extractValue(stage Stage, payload string) string {
	log := p.session.logger.With(zap.String("role", stage.Definition.Role))

	obj, err := parsePayload(payload)
	if err != nil {
		log.Warn("Stage output is not a JSON object, passing it through", zap.Error(err))
		return payload
	}

	if fn := stage.Definition.Function; fn != nil {
		if violations := schemaViolations(fn.Parameters, obj); len(violations) > 0 {
			log.Warn("Stage output does not match declared schema", zap.Strings("violations", violations))
		}
	}

	value, ok := fieldValue(obj, stage.Field)
	if !ok {
		log.Warn("Stage output lacks its field, passing it through", zap.String("field", stage.Field))
		return payload
	}
	return value
}
