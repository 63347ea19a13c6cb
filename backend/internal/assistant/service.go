package assistant

import "context"

// Service is the remote assistant API. Implementations must be safe for
// concurrent use; the orchestration keeps one run per thread in flight.
type Service interface {
	// CreateAgent registers a new agent and returns its handle.
	CreateAgent(ctx context.Context, def AgentDefinition, model string) (string, error)
	// CreateThread opens an empty conversation.
	CreateThread(ctx context.Context) (string, error)
	// CreateMessage appends a message to a thread.
	CreateMessage(ctx context.Context, threadID, role, text string) (*Message, error)
	// CreateRun starts an agent on the thread's current history.
	CreateRun(ctx context.Context, threadID, agentID, instructions string) (*Run, error)
	// PollRun blocks until the run is no longer pending.
	PollRun(ctx context.Context, threadID, runID string) (*Run, error)
	// SubmitToolOutputs answers a paused run. The returned run may still be pending.
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (*Run, error)
	// ListMessages returns messages newest first. An empty runID lists the whole thread.
	ListMessages(ctx context.Context, threadID, runID string) ([]Message, error)
}
