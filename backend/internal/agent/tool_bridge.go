package agent

import (
	"context"

	"go.uber.org/zap"

	"sysdesign-assistant/backend/internal/assistant"
	apperrors "sysdesign-assistant/backend/pkg/errors"
)

// ToolResolution is the outcome of one pass over a paused run
type ToolResolution struct {
	Run       *assistant.Run
	Outputs   []assistant.ToolOutput
	Submitted bool
	// Err is a swallowed submission or poll failure, in which case Run is the
	// original run, or an illegal status change after a submission
	Err error
}

// ToolBridge answers a paused run's tool calls. The declared function has no
// local implementation: its output is the model's own arguments, echoed back.
type ToolBridge struct {
	session *Session
}

// NewToolBridge creates a tool bridge
func NewToolBridge(session *Session) *ToolBridge {
	return &ToolBridge{session: session}
}

// ResolveToolCalls echoes the arguments of every call to functionName, submits
// them and polls the run to its next actionable or terminal status. A run that
// is not waiting on tools is returned untouched.
func (b *ToolBridge) ResolveToolCalls(ctx context.Context, run *assistant.Run, functionName string) *ToolResolution {
	calls := run.PendingToolCalls()
	if len(calls) == 0 {
		return &ToolResolution{Run: run}
	}
	log := b.session.logger.With(zap.String("run_id", run.ID), zap.String("function", functionName))

	outputs := make([]assistant.ToolOutput, 0, len(calls))
	for _, call := range calls {
		if call.FunctionName != functionName {
			log.Warn("Skipping call to undeclared function",
				zap.String("tool_call_id", call.ID),
				zap.String("called", call.FunctionName),
			)
			continue
		}
		outputs = append(outputs, assistant.ToolOutput{
			ToolCallID: call.ID,
			Output:     call.Arguments,
		})
	}

	if len(outputs) == 0 {
		log.Warn("No tool outputs produced", zap.Int("tool_calls", len(calls)))
		return &ToolResolution{Run: run}
	}

	svc := b.session.service
	next, err := svc.SubmitToolOutputs(ctx, run.ThreadID, run.ID, outputs)
	if err != nil {
		log.Error("Failed to submit tool outputs", zap.Error(err))
		return &ToolResolution{Run: run, Outputs: outputs, Err: apperrors.NewRemoteRequestFailed("submit_tool_outputs", err)}
	}

	if !run.Status.CanTransition(next.Status) {
		return b.illegalTransition(log, run, next, outputs)
	}

	if next.Status.IsPending() {
		polled, err := svc.PollRun(ctx, run.ThreadID, run.ID)
		if err != nil {
			log.Error("Failed to poll run after submitting tool outputs", zap.Error(err))
			return &ToolResolution{Run: run, Outputs: outputs, Err: apperrors.NewRemoteRequestFailed("poll_run", err)}
		}
		if !next.Status.CanTransition(polled.Status) {
			return b.illegalTransition(log, next, polled, outputs)
		}
		next = polled
	}

	log.Debug("Tool outputs submitted",
		zap.Int("outputs", len(outputs)),
		zap.String("status", string(next.Status)),
	)
	return &ToolResolution{Run: next, Outputs: outputs, Submitted: true}
}

func (b *ToolBridge) illegalTransition(log *zap.Logger, from, to *assistant.Run, outputs []assistant.ToolOutput) *ToolResolution {
	log.Error("Run moved to an unexpected status after tool outputs",
		zap.String("from", string(from.Status)),
		zap.String("to", string(to.Status)),
	)
	return &ToolResolution{
		Run:       to,
		Outputs:   outputs,
		Submitted: true,
		Err:       apperrors.NewRunUnexpectedStatus(to.ID, string(to.Status)),
	}
}
