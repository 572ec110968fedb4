package domain

import "context"

// Conn is the message transport the protocol and handshake layers run on.
// Each Send delivers exactly one message; each Receive returns exactly one,
// in send order.
type Conn interface {
	Send(msg []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}
