package domain

import "errors"

// Kind classifies a failure for reporting. Every handshake error carries
// exactly one kind.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindTransport
	KindProtocol
	KindCrypto
	KindAuthentication
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindCrypto:
		return "crypto"
	case KindAuthentication:
		return "authentication"
	default:
		return "unknown"
	}
}

// kindError is a sentinel tagged with its Kind.
type kindError struct {
	kind Kind
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func newError(kind Kind, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Transport errors.
var (
	ErrAlreadyExists   = newError(KindTransport, "channel already exists")
	ErrNotFound        = newError(KindTransport, "channel not found")
	ErrQueueFull       = newError(KindTransport, "channel queue full")
	ErrMessageTooLarge = newError(KindTransport, "message exceeds channel limit")
	ErrClosed          = newError(KindTransport, "channel closed")
	ErrTimeout         = newError(KindTransport, "receive timed out")
	ErrCanceled        = newError(KindTransport, "receive canceled")
	ErrInvalidName     = newError(KindTransport, "invalid channel name")
	ErrTransport       = newError(KindTransport, "transport failure")
)

// ErrProtocolViolation covers wrong message types, length mismatches and
// out-of-order messages. It is never retryable.
var ErrProtocolViolation = newError(KindProtocol, "protocol violation")

// ErrCrypto reports key generation, import or export failures.
var ErrCrypto = newError(KindCrypto, "crypto failure")

// ErrAuthenticationFailed is returned when a sealed payload does not verify.
// No plaintext accompanies it.
var ErrAuthenticationFailed = newError(KindAuthentication, "authentication failed")

// KindOf returns the kind of the first tagged sentinel found in err's chain.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindUnknown
}
