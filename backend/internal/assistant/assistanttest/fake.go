// Package assistanttest provides a scripted in-memory assistant.Service.
package assistanttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"sysdesign-assistant/backend/internal/assistant"
)

// Step is what a run turns into on its next poll.
type Step struct {
	Status    assistant.RunStatus
	ToolCalls []assistant.ToolCall // used when Status is requires_action
	Reply     string               // assistant message appended when Status is completed
	LastError string
}

// Behavior scripts every run started by one agent role. Runs that exhaust
// their steps complete with an empty reply.
type Behavior struct {
	Steps []Step
}

// Complete is a behavior that finishes on the first poll with reply.
func Complete(reply string) Behavior {
	return Behavior{Steps: []Step{{Status: assistant.RunStatusCompleted, Reply: reply}}}
}

// End is a behavior that stops on the first poll with a non-completed status.
func End(status assistant.RunStatus, lastError string) Behavior {
	return Behavior{Steps: []Step{{Status: status, LastError: lastError}}}
}

// ToolThenComplete pauses once on a call to function with args, then completes with reply.
func ToolThenComplete(function, args, reply string) Behavior {
	return Behavior{Steps: []Step{
		{
			Status:    assistant.RunStatusRequiresAction,
			ToolCalls: []assistant.ToolCall{{ID: "call_" + uuid.NewString(), FunctionName: function, Arguments: args}},
		},
		{Status: assistant.RunStatusCompleted, Reply: reply},
	}}
}

type fakeRun struct {
	run   assistant.Run
	role  string
	step  int
	input string
}

// Fake is an in-memory assistant.Service. Zero value is not usable; call New.
type Fake struct {
	mu sync.Mutex

	behaviors map[string]Behavior // by role
	agents    map[string]assistant.AgentDefinition
	models    map[string]string
	threads   map[string][]assistant.Message // oldest first
	runs      map[string]*fakeRun

	// Injected failures
	CreateAgentErr error
	CreateRunErr   error
	SubmitErr      error

	// Call accounting
	CreateAgentCalls  int
	CreateThreadCalls int
	CreateRunCalls    int
	PollCalls         int
	Submissions       [][]assistant.ToolOutput
	Inputs            map[string][]string // role -> user text each run saw
}

// New returns an empty fake.
func New() *Fake {
	return &Fake{
		behaviors: make(map[string]Behavior),
		agents:    make(map[string]assistant.AgentDefinition),
		models:    make(map[string]string),
		threads:   make(map[string][]assistant.Message),
		runs:      make(map[string]*fakeRun),
		Inputs:    make(map[string][]string),
	}
}

// Script sets the behavior of every run started by agents with this role.
func (f *Fake) Script(role string, b Behavior) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.behaviors[role] = b
	return f
}

// Agent returns the definition registered under handle.
func (f *Fake) Agent(handle string) (assistant.AgentDefinition, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	def, ok := f.agents[handle]
	return def, ok
}

// Model returns the model an agent was created with.
func (f *Fake) Model(handle string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.models[handle]
}

// SeedAgent registers an existing agent, as if created in an earlier process.
func (f *Fake) SeedAgent(handle string, def assistant.AgentDefinition) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.agents[handle] = def
}

// SeedThread registers an existing thread.
func (f *Fake) SeedThread(handle string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.threads[handle]; !ok {
		f.threads[handle] = nil
	}
}

// RunsStarted returns how many runs agents with this role started.
func (f *Fake) RunsStarted(role string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Inputs[role])
}

func (f *Fake) CreateAgent(ctx context.Context, def assistant.AgentDefinition, model string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateAgentCalls++
	if f.CreateAgentErr != nil {
		return "", f.CreateAgentErr
	}
	handle := "asst_" + uuid.NewString()
	f.agents[handle] = def
	f.models[handle] = model
	return handle, nil
}

func (f *Fake) CreateThread(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateThreadCalls++
	handle := "thread_" + uuid.NewString()
	f.threads[handle] = nil
	return handle, nil
}

func (f *Fake) CreateMessage(ctx context.Context, threadID, role, text string) (*assistant.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.threads[threadID]; !ok {
		return nil, fmt.Errorf("no such thread: %s", threadID)
	}
	msg := assistant.Message{ID: "msg_" + uuid.NewString(), Role: role, Text: text}
	f.threads[threadID] = append(f.threads[threadID], msg)
	return &msg, nil
}

func (f *Fake) CreateRun(ctx context.Context, threadID, agentID, instructions string) (*assistant.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateRunCalls++
	if f.CreateRunErr != nil {
		return nil, f.CreateRunErr
	}
	history, ok := f.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("no such thread: %s", threadID)
	}
	def, ok := f.agents[agentID]
	if !ok {
		return nil, fmt.Errorf("no such agent: %s", agentID)
	}
	for _, r := range f.runs {
		if r.run.ThreadID == threadID && !r.run.Status.IsTerminal() {
			return nil, fmt.Errorf("thread %s already has active run %s", threadID, r.run.ID)
		}
	}

	input := ""
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == assistant.RoleUser {
			input = history[i].Text
			break
		}
	}
	f.Inputs[def.Role] = append(f.Inputs[def.Role], input)

	r := &fakeRun{
		run: assistant.Run{
			ID:       "run_" + uuid.NewString(),
			ThreadID: threadID,
			AgentID:  agentID,
			Status:   assistant.RunStatusQueued,
		},
		role:  def.Role,
		input: input,
	}
	f.runs[r.run.ID] = r
	out := r.run
	return &out, nil
}

func (f *Fake) PollRun(ctx context.Context, threadID, runID string) (*assistant.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PollCalls++
	r, ok := f.runs[runID]
	if !ok || r.run.ThreadID != threadID {
		return nil, fmt.Errorf("no such run: %s", runID)
	}
	if r.run.Status.IsPending() {
		f.advance(r)
	}
	out := r.run
	return &out, nil
}

// advance applies the next scripted step. Caller holds f.mu.
func (f *Fake) advance(r *fakeRun) {
	steps := f.behaviors[r.role].Steps
	step := Step{Status: assistant.RunStatusCompleted}
	if r.step < len(steps) {
		step = steps[r.step]
	}
	r.step++

	r.run.Status = step.Status
	r.run.LastError = step.LastError
	r.run.RequiredAction = nil
	switch step.Status {
	case assistant.RunStatusRequiresAction:
		r.run.RequiredAction = &assistant.RequiredAction{ToolCalls: step.ToolCalls}
	case assistant.RunStatusCompleted:
		if step.Reply != "" {
			f.threads[r.run.ThreadID] = append(f.threads[r.run.ThreadID], assistant.Message{
				ID:    "msg_" + uuid.NewString(),
				Role:  assistant.RoleAssistant,
				Text:  step.Reply,
				RunID: r.run.ID,
			})
		}
	}
}

func (f *Fake) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []assistant.ToolOutput) (*assistant.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubmitErr != nil {
		return nil, f.SubmitErr
	}
	r, ok := f.runs[runID]
	if !ok || r.run.ThreadID != threadID {
		return nil, fmt.Errorf("no such run: %s", runID)
	}
	if r.run.Status != assistant.RunStatusRequiresAction {
		return nil, fmt.Errorf("run %s is %s, not requires_action", runID, r.run.Status)
	}
	f.Submissions = append(f.Submissions, append([]assistant.ToolOutput(nil), outputs...))
	r.run.Status = assistant.RunStatusQueued
	r.run.RequiredAction = nil
	out := r.run
	return &out, nil
}

func (f *Fake) ListMessages(ctx context.Context, threadID, runID string) ([]assistant.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	history, ok := f.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("no such thread: %s", threadID)
	}
	var out []assistant.Message
	for i := len(history) - 1; i >= 0; i-- {
		if runID == "" || history[i].RunID == runID {
			out = append(out, history[i])
		}
	}
	return out, nil
}

var _ assistant.Service = (*Fake)(nil)
