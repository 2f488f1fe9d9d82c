package session

// State is the lifecycle stage of a Session
type State int

const (
	StateDiscovered State = iota
	StateConnecting
	StateServiceDiscovery
	StateCharacteristicDiscovery
	StateSubscribing
	StateReady
	StateDisconnecting
	StateClosed
	StateFailed
)

var stateNames = [...]string{
	StateDiscovered:              "Discovered",
	StateConnecting:              "Connecting",
	StateServiceDiscovery:        "ServiceDiscovery",
	StateCharacteristicDiscovery: "CharacteristicDiscovery",
	StateSubscribing:             "Subscribing",
	StateReady:                   "Ready",
	StateDisconnecting:           "Disconnecting",
	StateClosed:                  "Closed",
	StateFailed:                  "Failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// IsTerminal reports whether no further transition can leave s
func (s State) IsTerminal() bool {
	return s == StateClosed || s == StateFailed
}

// forward lists the single successor of each pipeline state.
// Failed and Disconnecting are reachable from any non-terminal state and are
// handled separately in canTransition.
var forward = map[State]State{
	StateDiscovered:              StateConnecting,
	StateConnecting:              StateServiceDiscovery,
	StateServiceDiscovery:        StateCharacteristicDiscovery,
	StateCharacteristicDiscovery: StateSubscribing,
	StateSubscribing:             StateReady,
	StateDisconnecting:           StateClosed,
}

func canTransition(from, to State) bool {
	if from.IsTerminal() {
		return false
	}
	switch to {
	case StateFailed:
		return from != StateDisconnecting
	case StateDisconnecting:
		return from != StateDisconnecting
	}
	next, ok := forward[from]
	return ok && next == to
}
