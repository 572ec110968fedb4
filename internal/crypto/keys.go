package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"hash"
	"io"

	"secchannel/internal/domain"
	"secchannel/internal/securebuf"
)

type exchangePrivate interface {
	public() exchangePublic
	// unwrap recovers a key wrapped for this private key. ad must match the
	// associated data used when wrapping.
	unwrap(ad, wrapped []byte) (*securebuf.Buffer, error)
	destroy()
}

type exchangePublic interface {
	marshal() ([]byte, error)
	wrap(rand io.Reader, ad, key []byte) ([]byte, error)
}

type signingPrivate interface {
	public() verifyingPublic
	sign(rand io.Reader, digest []byte) ([]byte, error)
	destroy()
}

type verifyingPublic interface {
	marshal() ([]byte, error)
	newHash() hash.Hash
	verify(digest, sig []byte) bool
}

// KeyPair is an asymmetric key owned by the side that generated it.
type KeyPair struct {
	role domain.Role
	alg  Algorithm
	exch exchangePrivate
	sig  signingPrivate
}

// Role returns what the key pair may be used for.
func (k *KeyPair) Role() domain.Role { return k.role }

// Algorithm returns the key algorithm.
func (k *KeyPair) Algorithm() Algorithm { return k.alg }

// Public returns the public half as an import-free handle.
func (k *KeyPair) Public() *PublicKey {
	pub := &PublicKey{role: k.role, alg: k.alg}
	switch k.role {
	case domain.RoleExchange:
		pub.exch = k.exch.public()
	case domain.RoleSignature:
		pub.sig = k.sig.public()
	}
	return pub
}

// Destroy zeroes the private key bytes it can reach and drops the key. For
// RSA and ECDSA that is the exported big integers; internal copies kept by the
// standard library are released, not wiped. The key pair is unusable
// afterwards.
func (k *KeyPair) Destroy() {
	if k == nil {
		return
	}
	if k.exch != nil {
		k.exch.destroy()
		k.exch = nil
	}
	if k.sig != nil {
		k.sig.destroy()
		k.sig = nil
	}
}

func (k *KeyPair) destroyed() bool {
	return k == nil || (k.exch == nil && k.sig == nil)
}

// PublicKey is an imported (or derived) public key. Exchange public keys can
// only wrap session keys toward their owner; signature public keys can only
// verify.
type PublicKey struct {
	role domain.Role
	alg  Algorithm
	exch exchangePublic
	sig  verifyingPublic
}

// Role returns what the public key may be used for.
func (p *PublicKey) Role() domain.Role { return p.role }

// Algorithm returns the key algorithm.
func (p *PublicKey) Algorithm() Algorithm { return p.alg }

// Blob returns the exported public key blob.
func (p *PublicKey) Blob() ([]byte, error) {
	var (
		body []byte
		err  error
	)
	switch p.role {
	case domain.RoleExchange:
		body, err = p.exch.marshal()
	case domain.RoleSignature:
		body, err = p.sig.marshal()
	default:
		return nil, fmt.Errorf("%w: public key has no role", domain.ErrCrypto)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: marshal %s public key: %w", domain.ErrCrypto, p.alg, err)
	}
	h := blobHeader{kind: blobPublicKey, version: blobVersion, alg: p.alg}
	return append(h.marshal(), body...), nil
}

// Fingerprint returns the short fingerprint of the exported blob, or an
// empty string if the key cannot be exported.
func (p *PublicKey) Fingerprint() domain.Fingerprint {
	blob, err := p.Blob()
	if err != nil {
		return ""
	}
	return Fingerprint(blob)
}

// SessionKey is the symmetric key of one session.
type SessionKey struct {
	alg        Algorithm
	key        *securebuf.Buffer
	block      cipher.Block
	exportable bool
}

// Algorithm returns the cipher algorithm.
func (k *SessionKey) Algorithm() Algorithm { return k.alg }

// BlockSize returns the cipher block length.
func (k *SessionKey) BlockSize() int {
	if k.block == nil {
		return 0
	}
	return k.block.BlockSize()
}

// Exportable reports whether ExportSymmetric accepts the key. Generated keys
// are exportable, imported ones are not.
func (k *SessionKey) Exportable() bool { return k.exportable }

// Destroy wipes the raw key. The key is unusable afterwards.
func (k *SessionKey) Destroy() {
	if k == nil {
		return
	}
	k.key.Release()
	k.key = nil
	k.block = nil
}

func newSessionKey(alg Algorithm, key *securebuf.Buffer, exportable bool) (*SessionKey, error) {
	if key.Len() != algorithms[alg].keyLen {
		return nil, fmt.Errorf("%w: %s key must be %d bytes, got %d", domain.ErrCrypto, alg, algorithms[alg].keyLen, key.Len())
	}
	block, err := aes.NewCipher(key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrCrypto, alg, err)
	}
	return &SessionKey{alg: alg, key: key, block: block, exportable: exportable}, nil
}

// GenerateKeyPair creates a key pair for role using the suite algorithm.
func (p *Provider) GenerateKeyPair(role domain.Role) (*KeyPair, error) {
	kp := &KeyPair{role: role}
	var err error
	switch role {
	case domain.RoleExchange:
		kp.alg = p.suite.Exchange
		switch kp.alg {
		case AlgX25519:
			kp.exch, err = generateX25519(p.rand)
		case AlgRSAOAEP:
			kp.exch, err = generateRSA(p.rand)
		}
	case domain.RoleSignature:
		kp.alg = p.suite.Signature
		switch kp.alg {
		case AlgEd25519ph:
			kp.sig, err = generateEd25519(p.rand)
		case AlgECDSAP256:
			kp.sig, err = generateECDSA(p.rand)
		}
	default:
		return nil, fmt.Errorf("%w: unknown key role %s", domain.ErrCrypto, role)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: generate %s key: %w", domain.ErrCrypto, kp.alg, err)
	}
	if kp.destroyed() {
		return nil, fmt.Errorf("%w: no generator for %s", domain.ErrCrypto, kp.alg)
	}
	return kp, nil
}

// ExportPublic returns the public half of kp as a blob.
func (p *Provider) ExportPublic(kp *KeyPair) ([]byte, error) {
	if kp.destroyed() {
		return nil, fmt.Errorf("%w: export of destroyed key", domain.ErrCrypto)
	}
	return kp.Public().Blob()
}

// ImportPublic parses a public key blob produced by ExportPublic.
func (p *Provider) ImportPublic(blob []byte) (*PublicKey, error) {
	h, body, err := parseBlob(blob, blobPublicKey)
	if err != nil {
		return nil, err
	}
	pub := &PublicKey{role: h.alg.Role(), alg: h.alg}
	switch h.alg {
	case AlgX25519:
		pub.exch, err = parseX25519Public(body)
	case AlgRSAOAEP:
		pub.exch, err = parseRSAPublic(body)
	case AlgEd25519ph:
		pub.sig, err = parseEd25519Public(body)
	case AlgECDSAP256:
		pub.sig, err = parseECDSAPublic(body)
	default:
		return nil, fmt.Errorf("%w: unsupported public key algorithm %s", domain.ErrCrypto, h.alg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: import %s public key: %w", domain.ErrCrypto, h.alg, err)
	}
	return pub, nil
}

// GenerateSymmetricKey creates a fresh exportable session key for the suite
// cipher.
func (p *Provider) GenerateSymmetricKey() (*SessionKey, error) {
	raw := securebuf.New(algorithms[p.suite.Cipher].keyLen)
	if _, err := io.ReadFull(p.rand, raw.Bytes()); err != nil {
		raw.Release()
		return nil, fmt.Errorf("%w: generate %s key: %w", domain.ErrCrypto, p.suite.Cipher, err)
	}
	key, err := newSessionKey(p.suite.Cipher, raw, true)
	if err != nil {
		raw.Release()
		return nil, err
	}
	return key, nil
}

// ExportSymmetric wraps key for the holder of recipient's private exchange
// key.
func (p *Provider) ExportSymmetric(key *SessionKey, recipient *PublicKey) ([]byte, error) {
	if key == nil || key.key == nil {
		return nil, fmt.Errorf("%w: export of destroyed session key", domain.ErrCrypto)
	}
	if !key.exportable {
		return nil, fmt.Errorf("%w: session key is not exportable", domain.ErrCrypto)
	}
	if recipient.role != domain.RoleExchange {
		return nil, fmt.Errorf("%w: %s key cannot transport a session key", domain.ErrCrypto, recipient.role)
	}
	ad := sessionBlobPrefix(key.alg, recipient.alg)
	wrapped, err := recipient.exch.wrap(p.rand, ad, key.key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: wrap session key with %s: %w", domain.ErrCrypto, recipient.alg, err)
	}
	return append(ad, wrapped...), nil
}

// ImportSymmetric recovers a session key wrapped for own.
func (p *Provider) ImportSymmetric(blob []byte, own *KeyPair) (*SessionKey, error) {
	if own.destroyed() || own.role != domain.RoleExchange {
		return nil, fmt.Errorf("%w: session key import needs a live exchange key pair", domain.ErrCrypto)
	}
	h, body, err := parseBlob(blob, blobSimple)
	if err != nil {
		return nil, err
	}
	if !h.alg.isCipher() {
		return nil, fmt.Errorf("%w: %s is not a cipher", domain.ErrCrypto, h.alg)
	}
	if len(body) < 2 {
		return nil, fmt.Errorf("%w: truncated session key blob", domain.ErrCrypto)
	}
	exchAlg := Algorithm(binary.LittleEndian.Uint16(body))
	if exchAlg != own.alg {
		return nil, fmt.Errorf("%w: session key wrapped with %s, own key is %s", domain.ErrCrypto, exchAlg, own.alg)
	}
	raw, err := own.exch.unwrap(blob[:blobHeaderSize+2], body[2:])
	if err != nil {
		return nil, fmt.Errorf("%w: unwrap session key: %w", domain.ErrCrypto, err)
	}
	key, err := newSessionKey(h.alg, raw, false)
	if err != nil {
		raw.Release()
		return nil, err
	}
	return key, nil
}

func sessionBlobPrefix(cipherAlg, exchAlg Algorithm) []byte {
	h := blobHeader{kind: blobSimple, version: blobVersion, alg: cipherAlg}
	b := h.marshal()
	return binary.LittleEndian.AppendUint16(b, uint16(exchAlg))
}
