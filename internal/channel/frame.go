package channel

import (
	"encoding/binary"
	"fmt"
	"io"

	"secchannel/internal/domain"
	"secchannel/internal/util/memzero"
)

type frameKind byte

const (
	frameData   frameKind = 1
	frameCredit frameKind = 2
	frameHello  frameKind = 3

	frameHeaderSize = 5
	helloSize       = 8
)

func (k frameKind) String() string {
	switch k {
	case frameData:
		return "data"
	case frameCredit:
		return "credit"
	case frameHello:
		return "hello"
	default:
		return fmt.Sprintf("frame(%d)", byte(k))
	}
}

// writeFrame writes one frame with a single Write call and wipes the
// staging copy of body afterwards.
func writeFrame(w io.Writer, kind frameKind, body []byte) error {
	buf := make([]byte, frameHeaderSize+len(body))
	buf[0] = byte(kind)
	binary.LittleEndian.PutUint32(buf[1:frameHeaderSize], uint32(len(body)))
	copy(buf[frameHeaderSize:], body)
	_, err := w.Write(buf)
	memzero.Zero(buf)
	return err
}

// readFrame reads one frame, refusing bodies longer than max before reading
// them.
func readFrame(r io.Reader, max int) (frameKind, []byte, error) {
	var hdr [frameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	kind := frameKind(hdr[0])
	n := binary.LittleEndian.Uint32(hdr[1:])
	if uint64(n) > uint64(max) {
		return kind, nil, fmt.Errorf("%w: inbound %s frame of %d bytes, limit %d", domain.ErrMessageTooLarge, kind, n, max)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return kind, nil, err
	}
	return kind, body, nil
}

func marshalHello(l Limits) []byte {
	b := make([]byte, helloSize)
	binary.LittleEndian.PutUint32(b[0:4], uint32(l.MaxMessages))
	binary.LittleEndian.PutUint32(b[4:8], uint32(l.MaxMessageSize))
	return b
}

func parseHello(b []byte) (Limits, error) {
	if len(b) != helloSize {
		return Limits{}, fmt.Errorf("%w: hello of %d bytes", domain.ErrTransport, len(b))
	}
	l := Limits{
		MaxMessages:    int(binary.LittleEndian.Uint32(b[0:4])),
		MaxMessageSize: int(binary.LittleEndian.Uint32(b[4:8])),
	}
	return l, l.validate()
}
