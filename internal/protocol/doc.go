// Package protocol defines the message catalogue and framing shared by both
// ends of the secure channel.
//
// # Wire format
//
// Every logical message is two channel messages:
//
//	1. header  {type u32 LE, length u32 LE}   (HeaderSize bytes)
//	2. payload length raw bytes
//
// The type is one of Payload, PublicKey or SymmetricKey. There is no version
// or sequence field; ordering comes from the channel.
//
// # Errors
//
// ReceiveTyped fails with domain.ErrProtocolViolation when the header is
// malformed, names a different type than expected, or when the payload length
// differs from the declared one. A type mismatch is detected before the
// payload is read, so the payload remains queued on the channel.
package protocol
