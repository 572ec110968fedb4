package crypto

import (
	"crypto/cipher"
	"crypto/subtle"
	"fmt"
	"hash"
	"io"

	"secchannel/internal/domain"
	"secchannel/internal/securebuf"
	"secchannel/internal/util/memzero"
)

// SealedPayload is the output of Seal: iv || ciphertext plus a detached
// signature over the digest of the plaintext. Callers Release it once sent.
type SealedPayload struct {
	Data      []byte
	Signature []byte
}

// Release zeroes both parts and drops them. It is safe on nil and repeated
// calls.
func (s *SealedPayload) Release() {
	if s == nil {
		return
	}
	memzero.Zero(s.Data)
	memzero.Zero(s.Signature)
	s.Data, s.Signature = nil, nil
}

// SealedLen returns len(iv || ciphertext) for an n-byte plaintext.
func (p *Provider) SealedLen(n int) int {
	bs := p.BlockSize()
	return bs + (n/bs+1)*bs
}

// Seal encrypts plaintext with key in CBC mode under a fresh random IV and
// signs the digest accumulated while the cipher consumed it.
//
// The accumulator is the hash of the signer's algorithm (SHA-512 for
// ed25519ph, SHA-256 for ecdsa-p256). It covers the unpadded plaintext.
func (p *Provider) Seal(key *SessionKey, signer *KeyPair, plaintext *securebuf.Buffer) (*SealedPayload, error) {
	if key == nil || key.block == nil {
		return nil, fmt.Errorf("%w: seal with destroyed session key", domain.ErrCrypto)
	}
	if signer.destroyed() || signer.sig == nil {
		return nil, fmt.Errorf("%w: seal needs a live signature key pair", domain.ErrCrypto)
	}

	bs := key.block.BlockSize()
	pt := plaintext.Bytes()
	ctLen := (len(pt)/bs + 1) * bs

	data := make([]byte, bs+ctLen)
	iv := data[:bs]
	if _, err := io.ReadFull(p.rand, iv); err != nil {
		memzero.Zero(data)
		return nil, fmt.Errorf("%w: generate iv: %w", domain.ErrCrypto, err)
	}

	h := signer.sig.public().newHash()
	encryptHashing(cipher.NewCBCEncrypter(key.block, iv), h, data[bs:], pt)

	digest := h.Sum(nil)
	sig, err := signer.sig.sign(p.rand, digest)
	memzero.Zero(digest)
	if err != nil {
		memzero.Zero(data)
		return nil, fmt.Errorf("%w: sign with %s: %w", domain.ErrCrypto, signer.alg, err)
	}
	return &SealedPayload{Data: data, Signature: sig}, nil
}

// encryptHashing runs mode over pt block by block, writing each plaintext
// block into h just before it is encrypted. The final block carries the
// PKCS#5 padding, which is not hashed. dst must hold len(pt)/bs+1 blocks.
func encryptHashing(mode cipher.BlockMode, h hash.Hash, dst, pt []byte) {
	bs := mode.BlockSize()
	full := len(pt) / bs * bs
	for off := 0; off < full; off += bs {
		blk := pt[off : off+bs]
		h.Write(blk)
		mode.CryptBlocks(dst[off:off+bs], blk)
	}

	last := securebuf.New(bs)
	defer last.Release()
	tail := pt[full:]
	h.Write(tail)
	n := copy(last.Bytes(), tail)
	pad := byte(bs - n)
	for i := n; i < bs; i++ {
		last.Bytes()[i] = pad
	}
	mode.CryptBlocks(dst[full:full+bs], last.Bytes())
}

// Unseal decrypts sealed with key, hashing the plaintext as each block is
// produced, and verifies the signature over the digest with verifier.
//
// Every failure after the key checks (bad length, bad padding, bad
// signature) is ErrAuthenticationFailed and the decrypted bytes are wiped
// before returning.
func (p *Provider) Unseal(key *SessionKey, verifier *PublicKey, sealed *SealedPayload) (*securebuf.Buffer, error) {
	if key == nil || key.block == nil {
		return nil, fmt.Errorf("%w: unseal with destroyed session key", domain.ErrCrypto)
	}
	if verifier == nil || verifier.role != domain.RoleSignature {
		return nil, fmt.Errorf("%w: unseal needs a signature verification key", domain.ErrCrypto)
	}
	if sealed == nil {
		return nil, domain.ErrAuthenticationFailed
	}

	bs := key.block.BlockSize()
	if len(sealed.Data) < 2*bs || len(sealed.Data)%bs != 0 {
		return nil, domain.ErrAuthenticationFailed
	}
	iv, ct := sealed.Data[:bs], sealed.Data[bs:]

	out := securebuf.New(len(ct))
	h := verifier.sig.newHash()
	n, padOK := decryptHashing(cipher.NewCBCDecrypter(key.block, iv), h, out.Bytes(), ct)

	digest := h.Sum(nil)
	sigOK := verifier.sig.verify(digest, sealed.Signature)
	memzero.Zero(digest)
	if padOK != 1 || !sigOK {
		out.Release()
		return nil, domain.ErrAuthenticationFailed
	}
	out.Resize(n)
	return out, nil
}

// decryptHashing decrypts ct into dst, hashing every block but the last as it
// is produced and the unpadded part of the last once its padding has been
// checked. It returns the plaintext length and 1 if the padding was valid.
func decryptHashing(mode cipher.BlockMode, h hash.Hash, dst, ct []byte) (int, int) {
	bs := mode.BlockSize()
	lastOff := len(ct) - bs
	for off := 0; off < lastOff; off += bs {
		mode.CryptBlocks(dst[off:off+bs], ct[off:off+bs])
		h.Write(dst[off : off+bs])
	}
	last := dst[lastOff:]
	mode.CryptBlocks(last, ct[lastOff:])

	pad, ok := unpadLen(last)
	h.Write(last[:bs-pad])
	return lastOff + bs - pad, ok
}

// unpadLen checks PKCS#5 padding on the final block in constant time. On bad
// padding it reports length 0 and ok 0.
func unpadLen(last []byte) (int, int) {
	bs := len(last)
	pad := int(last[bs-1])
	ok := subtle.ConstantTimeLessOrEq(1, pad) & subtle.ConstantTimeLessOrEq(pad, bs)
	for i := 0; i < bs; i++ {
		inPad := subtle.ConstantTimeLessOrEq(i+1, pad)
		match := subtle.ConstantTimeByteEq(last[bs-1-i], byte(pad))
		ok &= subtle.ConstantTimeSelect(inPad, match, 1)
	}
	return subtle.ConstantTimeSelect(ok, pad, 0), ok
}
