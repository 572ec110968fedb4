package crypto

import (
	"encoding/binary"
	"fmt"

	"secchannel/internal/domain"
)

const (
	blobPublicKey byte = 0x06
	blobSimple    byte = 0x01
	blobVersion   byte = 0x01

	blobHeaderSize = 4
)

type blobHeader struct {
	kind    byte
	version byte
	alg     Algorithm
}

func (h blobHeader) marshal() []byte {
	b := make([]byte, blobHeaderSize)
	b[0] = h.kind
	b[1] = h.version
	binary.LittleEndian.PutUint16(b[2:], uint16(h.alg))
	return b
}

// parseBlob splits a blob of the wanted kind into header and body.
func parseBlob(b []byte, kind byte) (blobHeader, []byte, error) {
	if len(b) < blobHeaderSize {
		return blobHeader{}, nil, fmt.Errorf("%w: blob too short (%d bytes)", domain.ErrCrypto, len(b))
	}
	h := blobHeader{
		kind:    b[0],
		version: b[1],
		alg:     Algorithm(binary.LittleEndian.Uint16(b[2:4])),
	}
	if h.kind != kind {
		return blobHeader{}, nil, fmt.Errorf("%w: blob type 0x%02x, want 0x%02x", domain.ErrCrypto, h.kind, kind)
	}
	if h.version != blobVersion {
		return blobHeader{}, nil, fmt.Errorf("%w: unsupported blob version %d", domain.ErrCrypto, h.version)
	}
	return h, b[blobHeaderSize:], nil
}
