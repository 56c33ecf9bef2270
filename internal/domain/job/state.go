package job

import "fmt"

// State is the lifecycle state of a printing job.
//
//	DRAFT ──► OPEN ──► IN_PROGRESS ──► COMPLETED
//	            │
//	            └────► CLOSED
//
// CLOSED and COMPLETED are terminal.
type State int

const (
	StateDraft State = iota
	StateOpen
	StateClosed
	StateInProgress
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateDraft:
		return "DRAFT"
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	case StateInProgress:
		return "IN_PROGRESS"
	case StateCompleted:
		return "COMPLETED"
	default:
		return "unknown"
	}
}

// ParseState converts a stored state name to a State
func ParseState(s string) (State, error) {
	switch s {
	case "DRAFT":
		return StateDraft, nil
	case "OPEN":
		return StateOpen, nil
	case "CLOSED":
		return StateClosed, nil
	case "IN_PROGRESS":
		return StateInProgress, nil
	case "COMPLETED":
		return StateCompleted, nil
	}
	return StateDraft, fmt.Errorf("unknown job state %q", s)
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	if s < StateDraft || s > StateCompleted {
		return nil, fmt.Errorf("unknown job state %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

var validTransitions = map[State][]State{
	StateDraft:      {StateOpen},
	StateOpen:       {StateClosed, StateInProgress},
	StateInProgress: {StateCompleted},
}

// CanTransition reports whether moving from → to is permitted
func CanTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal is true for states with no outgoing transitions
func (s State) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// HasBiddingWindow is true for every state reached through publish.
func (s State) HasBiddingWindow() bool {
	return s != StateDraft
}
