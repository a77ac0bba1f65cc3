package model

// EngineState represents the lifecycle state of a scheduling engine.
type EngineState string

const (
	EngineStateUnsolved EngineState = "UNSOLVED"
	EngineStateSolved   EngineState = "SOLVED"
)

// String returns the string representation of the engine state.
func (s EngineState) String() string {
	return string(s)
}

// ValidEngineTransitions defines the allowed engine state transitions.
// SOLVED → UNSOLVED only happens through an explicit reset.
var ValidEngineTransitions = map[EngineState][]EngineState{
	EngineStateUnsolved: {EngineStateSolved},
	EngineStateSolved:   {EngineStateUnsolved},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s EngineState) CanTransitionTo(next EngineState) bool {
	for _, allowed := range ValidEngineTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SolveStatus is the outcome of a search.
type SolveStatus string

const (
	SolveStatusOptimal    SolveStatus = "OPTIMAL"
	SolveStatusFeasible   SolveStatus = "FEASIBLE"
	SolveStatusInfeasible SolveStatus = "INFEASIBLE"
	SolveStatusUnknown    SolveStatus = "UNKNOWN"
)

// String returns the string representation of the solve status.
func (s SolveStatus) String() string {
	return string(s)
}

// HasSolution returns true if the status carries a valid assignment.
func (s SolveStatus) HasSolution() bool {
	return s == SolveStatusOptimal || s == SolveStatusFeasible
}
