// Package report runs the two-stage game report workflow: fetch the
// play-by-play table, then have an LLM narrate it.
package report

import "time"

// State is a workflow stage.
type State int

// Workflow states. Done and Failed are terminal.
const (
	Idle State = iota
	Fetching
	Fetched
	Narrating
	Done
	Failed
)

var stateNames = [...]string{"idle", "fetching", "fetched", "narrating", "done", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}

// CanTransition reports whether the workflow may move from s to to.
func (s State) CanTransition(to State) bool {
	switch s {
	case Idle:
		return to == Fetching
	case Fetching:
		return to == Fetched || to == Failed
	case Fetched:
		return to == Narrating
	case Narrating:
		return to == Done || to == Failed
	default:
		return false
	}
}

// Transition records one state change.
type Transition struct {
	RunID string
	From  State
	To    State
	At    time.Time
	// Err is set on transitions to Failed.
	Err error
}

// Observer is notified of every transition, in order, on the goroutine that
// runs the workflow.
type Observer interface {
	Observe(Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Transition)

// Observe implements Observer.
func (f ObserverFunc) Observe(t Transition) { f(t) }
