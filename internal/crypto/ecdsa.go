package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"hash"
	"io"
)

// ECDSA P-256 over a SHA-256 accumulator, ASN.1 DER signatures.
type ecdsaPrivate struct {
	key *ecdsa.PrivateKey
}

type ecdsaPublic struct {
	key *ecdsa.PublicKey
}

func generateECDSA(r io.Reader) (*ecdsaPrivate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), r)
	if err != nil {
		return nil, err
	}
	return &ecdsaPrivate{key: key}, nil
}

func parseECDSAPublic(der []byte) (ecdsaPublic, error) {
	pk, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return ecdsaPublic{}, err
	}
	key, ok := pk.(*ecdsa.PublicKey)
	if !ok || key.Curve != elliptic.P256() {
		return ecdsaPublic{}, fmt.Errorf("not a P-256 public key (%T)", pk)
	}
	return ecdsaPublic{key: key}, nil
}

func (k *ecdsaPrivate) public() verifyingPublic { return ecdsaPublic{key: &k.key.PublicKey} }

func (k *ecdsaPrivate) sign(r io.Reader, digest []byte) ([]byte, error) {
	return ecdsa.SignASN1(r, k.key, digest)
}

func (k *ecdsaPrivate) destroy() {
	if k.key == nil {
		return
	}
	wipeBig(k.key.D)
	k.key = nil
}

func (p ecdsaPublic) marshal() ([]byte, error) {
	return x509.MarshalPKIXPublicKey(p.key)
}

func (p ecdsaPublic) newHash() hash.Hash { return sha256.New() }

func (p ecdsaPublic) verify(digest, sig []byte) bool {
	return ecdsa.VerifyASN1(p.key, digest, sig)
}
