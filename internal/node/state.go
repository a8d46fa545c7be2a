package node

import "fmt"

// State is the lifecycle state of a node.
type State int

// Node lifecycle states.
const (
	StatePending State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// transitions lists the allowed successor states.
var transitions = map[State][]State{
	StatePending:  {StateStarting, StateStopped},
	StateStarting: {StateRunning, StateStopping, StateFailed},
	StateRunning:  {StateStopping, StateFailed},
	StateStopping: {StateStopped},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
