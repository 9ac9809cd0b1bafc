package session

import "fmt"

// State is the lifecycle position of a Session
type State int

const (
	StateIdle       State = iota
	StateSelected   State = iota
	StateSubmitting State = iota
	StateCompleted  State = iota
	StateFailed     State = iota
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSelected:
		return "Selected"
	case StateSubmitting:
		return "Submitting"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	}
	panic(fmt.Errorf("invalid State value: %d", s))
}

func (s State) MarshalJSON() ([]byte, error) {
	jsonString := fmt.Sprintf(`"%s"`, s.String())
	return []byte(jsonString), nil
}

func (s State) MarshalText() (text []byte, err error) {
	return []byte(s.String()), nil
}

var legalTransitions = map[State]map[State]bool{
	StateIdle: {
		StateSelected: true,
	},
	StateSelected: {
		StateIdle:       true,
		StateSelected:   true,
		StateSubmitting: true,
	},
	// only the transport outcome can leave Submitting
	StateSubmitting: {
		StateCompleted: true,
		StateFailed:    true,
	},
	StateCompleted: {
		StateIdle:       true,
		StateSelected:   true,
		StateSubmitting: true,
	},
	StateFailed: {
		StateIdle:       true,
		StateSelected:   true,
		StateSubmitting: true,
	},
}

// IsLegalTransition reports whether a session may move from one state to another.
func IsLegalTransition(from State, to State) bool {
	stateMap, ok := legalTransitions[from]
	if !ok {
		panic(fmt.Errorf("expected to find state transition map for %s but did not", from))
	}
	return stateMap[to]
}
