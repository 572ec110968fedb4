package domain

import "fmt"

// Role says what an asymmetric key pair is used for.
type Role uint8

const (
	// RoleExchange keys only transport a symmetric key.
	RoleExchange Role = iota + 1
	// RoleSignature keys only sign and verify digests.
	RoleSignature
)

// String returns the lower-case role name.
func (r Role) String() string {
	switch r {
	case RoleExchange:
		return "exchange"
	case RoleSignature:
		return "signature"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Side identifies which end of a channel or handshake a process is.
type Side uint8

const (
	// Initiator opens an existing channel and starts the handshake.
	Initiator Side = iota + 1
	// Responder creates the channel and issues the session key.
	Responder
)

// String returns the lower-case side name.
func (s Side) String() string {
	switch s {
	case Initiator:
		return "initiator"
	case Responder:
		return "responder"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

// Fingerprint is a short identifier for public keys shown in logs.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }
