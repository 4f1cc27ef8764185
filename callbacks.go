package asebalink

// Callbacks holds the user-supplied hooks the dispatch goroutine invokes as
// it processes inbound messages. Every field is optional; a nil callback is
// simply skipped. All callbacks run outside the session's input mutex, so
// they may safely call back into the session (e.g. GetScalar, SetArray).
type Callbacks struct {
	// OnConnectionChanged fires when a node transitions to ACTIVE (active
	// true) or is dropped after a liveness timeout (active false).
	OnConnectionChanged func(nodeID uint16, active bool)

	// OnVariablesReceived fires for a VARIABLES or CHANGED_VARIABLES frame
	// whose window reaches the end of the last GET_VARIABLES request; frames
	// that end short of it update the mirror without firing.
	OnVariablesReceived func(nodeID uint16)

	// OnExecutionStateChanged fires on EXECUTION_STATE_CHANGED, with the
	// program counter and the decomposed event-active/step-by-step/
	// event-running flags.
	OnExecutionStateChanged func(nodeID uint16, pc uint16, state ExecutionState)

	// OnUserEvent fires for an inbound message with id below the fixed
	// protocol range, i.e. one produced by an "emit" in robot code.
	OnUserEvent func(nodeID uint16, eventID uint16, args []int16)

	// OnCommError fires for a transport read/write failure, and for an
	// inbound frame that could not be decoded (which is then skipped).
	OnCommError func(err error)
}

// ExecutionState decomposes the EXECUTION_STATE_CHANGED flags word into the
// three independent conditions the firmware reports.
type ExecutionState struct {
	EventActive bool
	StepByStep  bool
	EventRunning bool
}

const (
	execFlagEventActive = 1 << 0
	execFlagStepByStep  = 1 << 1
	execFlagEventRunning = 1 << 2
)

func decodeExecutionState(flags uint16) ExecutionState {
	return ExecutionState{
		EventActive:  flags&execFlagEventActive != 0,
		StepByStep:   flags&execFlagStepByStep != 0,
		EventRunning: flags&execFlagEventRunning != 0,
	}
}
