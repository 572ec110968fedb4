package protocol

import (
	"context"
	"encoding/binary"
	"fmt"

	"secchannel/internal/domain"
	"secchannel/internal/securebuf"
	"secchannel/internal/util/memzero"
)

// HeaderSize is the encoded size of Header.
const HeaderSize = 8

// Header precedes every payload on the channel.
type Header struct {
	Type   MessageType
	Length uint32
}

// Marshal encodes h little-endian.
func (h Header) Marshal() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], uint32(h.Type))
	binary.LittleEndian.PutUint32(b[4:8], h.Length)
	return b
}

// ParseHeader decodes a header and rejects unknown types.
func ParseHeader(b []byte) (Header, error) {
	if len(b) != HeaderSize {
		return Header{}, fmt.Errorf("%w: header is %d bytes, want %d", domain.ErrProtocolViolation, len(b), HeaderSize)
	}
	h := Header{
		Type:   MessageType(binary.LittleEndian.Uint32(b[0:4])),
		Length: binary.LittleEndian.Uint32(b[4:8]),
	}
	if !h.Type.Valid() {
		return Header{}, fmt.Errorf("%w: unknown message %s", domain.ErrProtocolViolation, h.Type)
	}
	return h, nil
}

// Send writes one logical message as a header send followed by a payload
// send.
func Send(conn domain.Conn, t MessageType, payload []byte) error {
	if !t.Valid() {
		return fmt.Errorf("%w: cannot send %s", domain.ErrProtocolViolation, t)
	}
	h := Header{Type: t, Length: uint32(len(payload))}
	if err := conn.Send(h.Marshal()); err != nil {
		return fmt.Errorf("send %s header: %w", t, err)
	}
	if err := conn.Send(payload); err != nil {
		return fmt.Errorf("send %s payload: %w", t, err)
	}
	return nil
}

// ReceiveTyped reads one logical message of type want. The payload is
// returned in a secure buffer owned by the caller.
func ReceiveTyped(ctx context.Context, conn domain.Conn, want MessageType) (*securebuf.Buffer, error) {
	raw, err := conn.Receive(ctx)
	if err != nil {
		return nil, fmt.Errorf("receive %s header: %w", want, err)
	}
	h, err := ParseHeader(raw)
	if err != nil {
		return nil, err
	}
	if h.Type != want {
		return nil, fmt.Errorf("%w: got %s, want %s", domain.ErrProtocolViolation, h.Type, want)
	}

	body, err := conn.Receive(ctx)
	if err != nil {
		return nil, fmt.Errorf("receive %s payload: %w", want, err)
	}
	if uint64(len(body)) != uint64(h.Length) {
		memzero.Zero(body)
		return nil, fmt.Errorf("%w: %s payload is %d bytes, header says %d", domain.ErrProtocolViolation, want, len(body), h.Length)
	}
	return securebuf.Wrap(body), nil
}
