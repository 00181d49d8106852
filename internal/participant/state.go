package participant

import "fmt"

// Kind identifies what role a Participant plays (spec.md §3).
type Kind string

const (
	KindInterface Kind = "INTERFACE"
	KindAgent     Kind = "AGENT"
	KindService   Kind = "SERVICE"
)

// State is a position in the Participant Runtime's state machine (spec.md
// §4.1).
type State string

const (
	StateJoining     State = "JOINING"
	StateDiscovering State = "DISCOVERING"
	StateReady       State = "READY"
	StateBusy        State = "BUSY"
	StateDegraded    State = "DEGRADED"
	StateOffline     State = "OFFLINE"
)

// validTransitions enumerates every edge of the state diagram in spec.md
// §4.1. OFFLINE has no outgoing edges: once reached, a new identity is
// required to rejoin.
var validTransitions = map[State]map[State]bool{
	StateJoining:     {StateDiscovering: true, StateDegraded: true, StateOffline: true},
	StateDiscovering: {StateReady: true, StateDegraded: true, StateOffline: true},
	StateReady:       {StateBusy: true, StateDegraded: true, StateOffline: true},
	StateBusy:        {StateReady: true, StateDegraded: true, StateOffline: true},
	StateDegraded:    {StateOffline: true},
	StateOffline:     {},
}

// ErrTerminalState is returned when a transition is attempted out of
// OFFLINE.
var ErrTerminalState = fmt.Errorf("participant: state is terminal (OFFLINE)")

func checkTransition(from, to State) error {
	if from == StateOffline {
		return ErrTerminalState
	}
	if validTransitions[from][to] {
		return nil
	}
	return fmt.Errorf("participant: invalid transition %s -> %s", from, to)
}
