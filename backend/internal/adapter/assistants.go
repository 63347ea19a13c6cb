package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"sysdesign-assistant/backend/internal/assistant"
	apperrors "sysdesign-assistant/backend/pkg/errors"
	"sysdesign-assistant/backend/pkg/logger"
)

const listMessagesLimit = 20

// AssistantsAdapter implements assistant.Service on the OpenAI Assistants API
type AssistantsAdapter struct {
	client       *openai.Client
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewAssistantsAdapter creates an adapter that polls runs every pollInterval
func NewAssistantsAdapter(baseURL, apiKey string, pollInterval time.Duration) *AssistantsAdapter {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &AssistantsAdapter{
		client:       newClient(baseURL, apiKey),
		pollInterval: pollInterval,
		logger:       logger.Named("assistants"),
	}
}

// CreateAgent creates a remote assistant named after the role
func (a *AssistantsAdapter) CreateAgent(ctx context.Context, def assistant.AgentDefinition, model string) (string, error) {
	name := def.Role
	instructions := def.Instructions
	req := openai.AssistantRequest{
		Model:        model,
		Name:         &name,
		Instructions: &instructions,
	}
	if def.Function != nil {
		req.Tools = []openai.AssistantTool{{
			Type: openai.AssistantToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Function.Name,
				Description: def.Function.Description,
				Parameters:  def.Function.Parameters,
			},
		}}
	}
	if def.JSONResponse {
		req.ResponseFormat = map[string]string{"type": "json_object"}
	}

	resp, err := a.client.CreateAssistant(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create assistant: %w", err)
	}

	a.logger.Debug("Assistant created",
		zap.String("assistant_id", resp.ID),
		zap.String("role", def.Role),
		zap.String("model", model),
	)
	return resp.ID, nil
}

// CreateThread creates an empty thread
func (a *AssistantsAdapter) CreateThread(ctx context.Context) (string, error) {
	resp, err := a.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return resp.ID, nil
}

// CreateMessage appends a message to a thread
func (a *AssistantsAdapter) CreateMessage(ctx context.Context, threadID, role, text string) (*assistant.Message, error) {
	resp, err := a.client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    role,
		Content: text,
	})
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	msg := convertMessage(resp)
	return &msg, nil
}

// CreateRun starts a run of agentID on threadID
func (a *AssistantsAdapter) CreateRun(ctx context.Context, threadID, agentID, instructions string) (*assistant.Run, error) {
	resp, err := a.client.CreateRun(ctx, threadID, openai.RunRequest{
		AssistantID:            agentID,
		AdditionalInstructions: instructions,
	})
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return convertRun(resp), nil
}

// PollRun retrieves the run every pollInterval until it leaves the pending statuses
func (a *AssistantsAdapter) PollRun(ctx context.Context, threadID, runID string) (*assistant.Run, error) {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	polls := 0
	for {
		resp, err := a.client.RetrieveRun(ctx, threadID, runID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, contextError("poll run", ctxErr)
			}
			return nil, fmt.Errorf("retrieve run: %w", err)
		}
		polls++

		run := convertRun(resp)
		if !run.Status.IsPending() {
			a.logger.Debug("Run settled",
				zap.String("run_id", runID),
				zap.String("status", string(run.Status)),
				zap.Int("polls", polls),
			)
			return run, nil
		}

		select {
		case <-ctx.Done():
			return nil, contextError("poll run", ctx.Err())
		case <-ticker.C:
		}
	}
}

// SubmitToolOutputs answers a run paused in requires_action
func (a *AssistantsAdapter) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []assistant.ToolOutput) (*assistant.Run, error) {
	req := openai.SubmitToolOutputsRequest{
		ToolOutputs: make([]openai.ToolOutput, 0, len(outputs)),
	}
	for _, out := range outputs {
		req.ToolOutputs = append(req.ToolOutputs, openai.ToolOutput{
			ToolCallID: out.ToolCallID,
			Output:     out.Output,
		})
	}

	resp, err := a.client.SubmitToolOutputs(ctx, threadID, runID, req)
	if err != nil {
		return nil, fmt.Errorf("submit tool outputs: %w", err)
	}
	return convertRun(resp), nil
}

// ListMessages returns the newest messages of a thread, optionally limited to one run
func (a *AssistantsAdapter) ListMessages(ctx context.Context, threadID, runID string) ([]assistant.Message, error) {
	limit := listMessagesLimit
	order := "desc"
	var runFilter *string
	if runID != "" {
		runFilter = &runID
	}

	resp, err := a.client.ListMessage(ctx, threadID, &limit, &order, nil, nil, runFilter)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	messages := make([]assistant.Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		messages = append(messages, convertMessage(m))
	}
	return messages, nil
}

func convertRun(r openai.Run) *assistant.Run {
	run := &assistant.Run{
		ID:       r.ID,
		ThreadID: r.ThreadID,
		AgentID:  r.AssistantID,
		Status:   assistant.RunStatus(r.Status),
	}
	if r.LastError != nil {
		run.LastError = fmt.Sprintf("%s: %s", r.LastError.Code, r.LastError.Message)
	}
	if r.RequiredAction != nil && r.RequiredAction.SubmitToolOutputs != nil {
		action := &assistant.RequiredAction{}
		for _, tc := range r.RequiredAction.SubmitToolOutputs.ToolCalls {
			action.ToolCalls = append(action.ToolCalls, assistant.ToolCall{
				ID:           tc.ID,
				FunctionName: tc.Function.Name,
				Arguments:    tc.Function.Arguments,
			})
		}
		run.RequiredAction = action
	}
	return run
}

func convertMessage(m openai.Message) assistant.Message {
	var parts []string
	for _, c := range m.Content {
		if c.Type == "text" && c.Text != nil {
			parts = append(parts, c.Text.Value)
		}
	}
	msg := assistant.Message{
		ID:   m.ID,
		Role: m.Role,
		Text: strings.Join(parts, "\n"),
	}
	if m.RunID != nil {
		msg.RunID = *m.RunID
	}
	return msg
}

func contextError(operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewContextTimeout(operation, 0, err)
	}
	return apperrors.NewContextCancelled(operation, err)
}

var _ assistant.Service = (*AssistantsAdapter)(nil)
