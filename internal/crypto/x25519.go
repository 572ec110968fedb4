package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"secchannel/internal/securebuf"
	"secchannel/internal/util/memzero"
)

const x25519KeyTransportInfo = "secchannel x25519 key transport"

type x25519Private struct {
	priv [32]byte
	pub  x25519Public
}

type x25519Public [32]byte

// generateX25519 returns a fresh Curve25519 key pair.
// The private key is clamped per RFC 7748.
func generateX25519(r io.Reader) (*x25519Private, error) {
	k := &x25519Private{}
	if _, err := io.ReadFull(r, k.priv[:]); err != nil {
		return nil, err
	}
	clamp(&k.priv)
	pb, err := curve25519.X25519(k.priv[:], curve25519.Basepoint)
	if err != nil {
		memzero.Zero(k.priv[:])
		return nil, err
	}
	copy(k.pub[:], pb)
	return k, nil
}

func clamp(k *[32]byte) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}

func parseX25519Public(b []byte) (x25519Public, error) {
	var pub x25519Public
	if len(b) != len(pub) {
		return pub, fmt.Errorf("x25519 public: want %d bytes, got %d", len(pub), len(b))
	}
	copy(pub[:], b)
	return pub, nil
}

func (k *x25519Private) public() exchangePublic { return k.pub }

func (k *x25519Private) destroy() { memzero.Zero(k.priv[:]) }

// unwrap expects eph_pub(32) || nonce || AEAD(key).
func (k *x25519Private) unwrap(ad, wrapped []byte) (*securebuf.Buffer, error) {
	if len(wrapped) < 32+chacha20poly1305.NonceSize+chacha20poly1305.Overhead {
		return nil, errors.New("x25519 wrapped key too short")
	}
	eph := wrapped[:32]
	nonce := wrapped[32 : 32+chacha20poly1305.NonceSize]
	ct := wrapped[32+chacha20poly1305.NonceSize:]

	kek, err := deriveKEK(k.priv[:], eph, eph, k.pub[:])
	if err != nil {
		return nil, err
	}
	defer kek.Release()

	aead, err := chacha20poly1305.New(kek.Bytes())
	if err != nil {
		return nil, err
	}
	raw, err := aead.Open(nil, nonce, ct, ad)
	if err != nil {
		return nil, err
	}
	return securebuf.Wrap(raw), nil
}

func (p x25519Public) marshal() ([]byte, error) {
	return append([]byte(nil), p[:]...), nil
}

// wrap seals key under a KEK agreed between a one-off ephemeral key and p.
func (p x25519Public) wrap(r io.Reader, ad, key []byte) ([]byte, error) {
	eph, err := generateX25519(r)
	if err != nil {
		return nil, err
	}
	defer eph.destroy()

	kek, err := deriveKEK(eph.priv[:], p[:], eph.pub[:], p[:])
	if err != nil {
		return nil, err
	}
	defer kek.Release()

	aead, err := chacha20poly1305.New(kek.Bytes())
	if err != nil {
		return nil, err
	}
	out := make([]byte, 32+aead.NonceSize(), 32+aead.NonceSize()+len(key)+aead.Overhead())
	copy(out, eph.pub[:])
	nonce := out[32 : 32+aead.NonceSize()]
	if _, err := io.ReadFull(r, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(out, nonce, key, ad), nil
}

// deriveKEK runs X25519(priv, peer) and expands the shared secret with
// HKDF-SHA256, salted with the ephemeral and recipient public keys.
func deriveKEK(priv, peer, ephPub, recipientPub []byte) (*securebuf.Buffer, error) {
	shared, err := curve25519.X25519(priv, peer)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(shared)

	salt := make([]byte, 0, len(ephPub)+len(recipientPub))
	salt = append(salt, ephPub...)
	salt = append(salt, recipientPub...)

	kek := securebuf.New(chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, shared, salt, []byte(x25519KeyTransportInfo))
	if _, err := io.ReadFull(kdf, kek.Bytes()); err != nil {
		kek.Release()
		return nil, err
	}
	return kek, nil
}
