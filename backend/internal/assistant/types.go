// Package assistant defines the boundary to the remote assistant service:
// agents, threads, runs and the tool calls a run can pause on.
//
// Everything here is a plain value. The service owns the real state; the
// types only carry what the orchestration needs to decide its next call.
package assistant

// FunctionSchema declares the one callable function an agent may invoke.
type FunctionSchema struct {
	Name        string
	Description string
	Parameters  map[string]interface{} // JSON Schema object
}

// AgentDefinition is what the service needs to create an agent.
// Role doubles as the remote assistant name.
type AgentDefinition struct {
	Role         string
	Instructions string
	Function     *FunctionSchema
	// JSONResponse asks the service to force a JSON object response
	JSONResponse bool
}

// Turn is one user message handed to one agent on one thread.
type Turn struct {
	ThreadID             string
	AgentID              string
	Text                 string
	ResponseInstructions string
}

// RequiredAction is the batch of tool calls a paused run waits on.
type RequiredAction struct {
	ToolCalls []ToolCall
}

// ToolCall is a model-initiated function call.
type ToolCall struct {
	ID           string
	FunctionName string
	Arguments    string // raw JSON as produced by the model
}

// ToolOutput answers a ToolCall.
type ToolOutput struct {
	ToolCallID string
	Output     string
}

// Run is a snapshot of one remote execution.
type Run struct {
	ID             string
	ThreadID       string
	AgentID        string
	Status         RunStatus
	RequiredAction *RequiredAction
	LastError      string
}

// PendingToolCalls returns the tool calls the run waits on, or nil.
func (r *Run) PendingToolCalls() []ToolCall {
	if r == nil || r.Status != RunStatusRequiresAction || r.RequiredAction == nil {
		return nil
	}
	return r.RequiredAction.ToolCalls
}

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a thread's history, flattened to text.
type Message struct {
	ID    string
	Role  string
	Text  string
	RunID string
}
