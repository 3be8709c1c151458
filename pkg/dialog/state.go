package dialog

import "strings"

// State is a node of the call dialog graph.
type State int

const (
	StateIntro State = iota
	StateTaskCheck
	StateRetryTaskCheck
	StateConfirmTask
	StateTaskDone
	StateTaskPending
	StateProblemRecorded
	StateCallbackTime
	StateCallbackConfirm
	StateEscalate
	StateConfirmEnd

	stateCount
)

// InitialState is the state every new session starts in.
const InitialState = StateIntro

var stateNames = [stateCount]string{
	StateIntro:           "INTRO",
	StateTaskCheck:       "TASK_CHECK",
	StateRetryTaskCheck:  "RETRY_TASK_CHECK",
	StateConfirmTask:     "CONFIRM_TASK",
	StateTaskDone:        "TASK_DONE",
	StateTaskPending:     "TASK_PENDING",
	StateProblemRecorded: "PROBLEM_RECORDED",
	StateCallbackTime:    "CALLBACK_TIME",
	StateCallbackConfirm: "CALLBACK_CONFIRM",
	StateEscalate:        "ESCALATE",
	StateConfirmEnd:      "CONFIRM_END",
}

// String returns the upper-case wire name of a State.
func (s State) String() string {
	if !s.Valid() {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Valid reports whether s is a member of the declared state set.
func (s State) Valid() bool {
	return s >= 0 && s < stateCount
}

// Terminal reports whether entering s should end the call (after confirmation).
func (s State) Terminal() bool {
	switch s {
	case StateTaskDone, StateEscalate, StateProblemRecorded:
		return true
	default:
		return false
	}
}

// ParseState resolves a state name case-insensitively.
func ParseState(name string) (State, bool) {
	n := strings.ToUpper(strings.TrimSpace(name))
	for i, v := range stateNames {
		if v == n {
			return State(i), true
		}
	}
	return 0, false
}

// States lists every declared state in declaration order.
func States() []State {
	out := make([]State, 0, stateCount)
	for s := State(0); s < stateCount; s++ {
		out = append(out, s)
	}
	return out
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	st, ok := ParseState(string(b))
	if !ok {
		return &UnknownStateError{Name: string(b)}
	}
	*s = st
	return nil
}

// UnknownStateError is returned when a state name is not part of the graph.
type UnknownStateError struct {
	Name string
}

func (e *UnknownStateError) Error() string {
	return "unknown dialog state " + e.Name
}
