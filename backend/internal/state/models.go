package state

// StageResult records how one pipeline stage ended
type StageResult struct {
	Role       string `json:"role"`
	Field      string `json:"field"`
	RunID      string `json:"run_id"`
	Status     string `json:"status"`
	Payload    string `json:"payload,omitempty"` // raw assistant output
	Value      string `json:"value,omitempty"`   // extracted field handed to the next stage
	ToolRounds int    `json:"tool_rounds"`
	LastError  string `json:"last_error,omitempty"`
}

// Completed reports whether the stage's run completed
func (s StageResult) Completed() bool {
	return s.Status == "completed"
}

// PipelineResult is everything a pipeline execution produced
type PipelineResult struct {
	ThreadID  string        `json:"thread_id"`
	Stages    []StageResult `json:"stages"`
	Final     string        `json:"final,omitempty"`
	Completed bool          `json:"completed"`
}

// LastStage returns the most recent stage, if any
func (r *PipelineResult) LastStage() (StageResult, bool) {
	if r == nil || len(r.Stages) == 0 {
		return StageResult{}, false
	}
	return r.Stages[len(r.Stages)-1], true
}
