package crypto

import (
	stdcrypto "crypto"
	"crypto/ed25519"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"

	"secchannel/internal/util/memzero"
)

// Ed25519ph: the accumulator is SHA-512 and the signature covers its digest.
var ed25519phOptions = &ed25519.Options{Hash: stdcrypto.SHA512}

type ed25519Private struct {
	key ed25519.PrivateKey
}

type ed25519Public ed25519.PublicKey

// generateEd25519 returns a new Ed25519 signing key pair.
func generateEd25519(r io.Reader) (*ed25519Private, error) {
	_, sk, err := ed25519.GenerateKey(r)
	if err != nil {
		return nil, err
	}
	return &ed25519Private{key: sk}, nil
}

func parseEd25519Public(b []byte) (ed25519Public, error) {
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("ed25519 public: want %d bytes, got %d", ed25519.PublicKeySize, len(b))
	}
	return ed25519Public(append([]byte(nil), b...)), nil
}

func (k *ed25519Private) public() verifyingPublic {
	return ed25519Public(k.key.Public().(ed25519.PublicKey))
}

func (k *ed25519Private) sign(_ io.Reader, digest []byte) ([]byte, error) {
	return k.key.Sign(nil, digest, ed25519phOptions)
}

func (k *ed25519Private) destroy() { memzero.Zero(k.key) }

func (p ed25519Public) marshal() ([]byte, error) {
	return append([]byte(nil), p...), nil
}

func (p ed25519Public) newHash() hash.Hash { return sha512.New() }

func (p ed25519Public) verify(digest, sig []byte) bool {
	return ed25519.VerifyWithOptions(ed25519.PublicKey(p), digest, sig, ed25519phOptions) == nil
}
