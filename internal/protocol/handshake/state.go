package handshake

import "fmt"

// State is a handshake step.
type State uint8

const (
	StateInit State = iota
	StatePIDSent
	StateKeySent
	StateListening
	StatePIDReceived
	StateKeysIssued
	StateKeyExchanged
	StateEstablished
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StatePIDSent:
		return "pid-sent"
	case StateKeySent:
		return "key-sent"
	case StateListening:
		return "listening"
	case StatePIDReceived:
		return "pid-received"
	case StateKeysIssued:
		return "keys-issued"
	case StateKeyExchanged:
		return "key-exchanged"
	case StateEstablished:
		return "established"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// next lists the legal successors of each state. Aborted is reachable from
// anywhere and is handled separately.
var next = map[State]State{
	StateInit:         StatePIDSent,
	StatePIDSent:      StateKeySent,
	StateKeySent:      StateKeyExchanged,
	StateListening:    StatePIDReceived,
	StatePIDReceived:  StateKeysIssued,
	StateKeysIssued:   StateKeyExchanged,
	StateKeyExchanged: StateEstablished,
}
