package agent

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"sysdesign-assistant/backend/internal/assistant"
	apperrors "sysdesign-assistant/backend/pkg/errors"
)

// ErrEmptyTurn is returned when a turn has nothing to send or nowhere to send it
var ErrEmptyTurn = errors.New("turn needs a thread, an agent and text")

// TurnRunner posts one message and runs one agent on it.
// Callers must not start a second turn on the same thread while a run returned
// here is still requires_action; Pipeline holds the thread lock for that.
type TurnRunner struct {
	session *Session
}

// NewTurnRunner creates a turn runner
func NewTurnRunner(session *Session) *TurnRunner {
	return &TurnRunner{session: session}
}

// RunTurn posts turn.Text as a user message, starts a run of turn.AgentID and
// blocks until the run is no longer queued or in progress. Any deadline comes
// from ctx.
func (t *TurnRunner) RunTurn(ctx context.Context, turn assistant.Turn) (*assistant.Run, error) {
	if turn.ThreadID == "" || turn.AgentID == "" || turn.Text == "" {
		return nil, ErrEmptyTurn
	}
	instructions := turn.ResponseInstructions
	if instructions == "" {
		instructions = t.session.responseInstructions
	}
	svc := t.session.service

	if _, err := svc.CreateMessage(ctx, turn.ThreadID, assistant.RoleUser, turn.Text); err != nil {
		return nil, apperrors.NewRemoteRequestFailed("create_message", err)
	}

	run, err := svc.CreateRun(ctx, turn.ThreadID, turn.AgentID, instructions)
	if err != nil {
		return nil, apperrors.NewRemoteRequestFailed("create_run", err)
	}
	t.session.logger.Debug("Run started",
		zap.String("thread_id", turn.ThreadID),
		zap.String("agent_id", turn.AgentID),
		zap.String("run_id", run.ID),
	)

	if run.Status.IsPending() {
		run, err = svc.PollRun(ctx, turn.ThreadID, run.ID)
		if err != nil {
			return nil, apperrors.NewRemoteRequestFailed("poll_run", err)
		}
	}

	t.session.logger.Debug("Run settled",
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status)),
	)
	return run, nil
}
