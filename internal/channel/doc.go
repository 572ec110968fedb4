// Package channel implements the named, bounded, two-party message queue the
// handshake runs on.
//
// # Overview
//
// A channel is a local stream socket at <dir>/<name>.sock. The responder
// creates it (Create) and the initiator attaches to it (Open). Exactly one
// peer may attach; later connections are refused. A connection that hangs
// up before the hello reaches it does not take the slot. Messages are
// delivered whole and in send order in each direction.
//
// # Frames
//
//	kind u8 | length u32 LE | body
//
//	data   (1)  one application message
//	credit (2)  empty; the receiver consumed one data frame
//	hello  (3)  creator -> opener on attach: max_messages u32, max_message_size u32
//
// # Capacity
//
// Each side may have at most max_messages data frames that the peer has not
// yet consumed. Send fails with domain.ErrQueueFull when the window is
// exhausted and succeeds again once the peer's Receive returns a credit.
// Messages above max_message_size never leave the sender
// (domain.ErrMessageTooLarge), and an inbound frame that breaks either limit
// drops the connection before its body is buffered.
//
// Both ends agree on the limits out of band. Open refuses a hello announcing
// more than its own limits (WithLimits, default 1024 x 4096) before sizing
// anything from it.
//
// # Signals
//
// Each side has its own inbound queue; a non-empty queue is that side's
// "data available" signal, so a write by one side never wakes the other
// side's own reader. Receive blocks on it until a message arrives, the
// context ends (domain.ErrTimeout, domain.ErrCanceled) or the peer goes away
// (domain.ErrClosed). PeerGone exposes the last condition as a channel.
//
// # Teardown
//
// Close is idempotent. The creator stops accepting and removes the socket
// file if it is still the one it bound; a name taken over by a newer creator
// is left alone. The opener only closes its connection.
package channel
