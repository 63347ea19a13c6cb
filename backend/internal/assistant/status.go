package assistant

// RunStatus is the lifecycle state of a remote run.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusExpired        RunStatus = "expired"
	RunStatusIncomplete     RunStatus = "incomplete"
)

// IsPending reports whether the service is still working on the run.
func (s RunStatus) IsPending() bool {
	switch s {
	case RunStatusQueued, RunStatusInProgress, RunStatusCancelling:
		return true
	}
	return false
}

// IsActionable reports whether the run waits on tool outputs.
func (s RunStatus) IsActionable() bool {
	return s == RunStatusRequiresAction
}

// IsTerminal reports whether the run can no longer change.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled, RunStatusExpired, RunStatusIncomplete:
		return true
	}
	return false
}

// IsKnown reports whether s is one of the declared statuses.
func (s RunStatus) IsKnown() bool {
	return s.IsPending() || s.IsActionable() || s.IsTerminal()
}

// CanTransition reports whether a run may move from s to next.
//
//	pending         -> anything
//	requires_action -> pending | terminal
//	terminal        -> nothing
func (s RunStatus) CanTransition(next RunStatus) bool {
	if !s.IsKnown() || !next.IsKnown() {
		return false
	}
	switch {
	case s.IsPending():
		return true
	case s.IsActionable():
		return next.IsPending() || next.IsTerminal()
	default:
		return false
	}
}
