package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"io"
	"math/big"

	"secchannel/internal/securebuf"
)

const rsaKeyBits = 2048

type rsaPrivate struct {
	key *rsa.PrivateKey
}

type rsaPublic struct {
	key *rsa.PublicKey
}

func generateRSA(r io.Reader) (*rsaPrivate, error) {
	key, err := rsa.GenerateKey(r, rsaKeyBits)
	if err != nil {
		return nil, err
	}
	return &rsaPrivate{key: key}, nil
}

func parseRSAPublic(der []byte) (rsaPublic, error) {
	pk, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return rsaPublic{}, err
	}
	key, ok := pk.(*rsa.PublicKey)
	if !ok {
		return rsaPublic{}, fmt.Errorf("not an RSA public key (%T)", pk)
	}
	if key.N.BitLen() < rsaKeyBits {
		return rsaPublic{}, fmt.Errorf("RSA modulus too small: %d bits", key.N.BitLen())
	}
	return rsaPublic{key: key}, nil
}

func (k *rsaPrivate) public() exchangePublic { return rsaPublic{key: &k.key.PublicKey} }

// unwrap decrypts an OAEP(SHA-256) ciphertext whose label is ad.
func (k *rsaPrivate) unwrap(ad, wrapped []byte) (*securebuf.Buffer, error) {
	raw, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, k.key, wrapped, ad)
	if err != nil {
		return nil, err
	}
	return securebuf.Wrap(raw), nil
}

// destroy zeroes the exported private integers and drops the key. Values
// the standard library precomputes in unexported fields cannot be reached;
// they go with the last reference.
func (k *rsaPrivate) destroy() {
	if k.key == nil {
		return
	}
	wipeBig(k.key.D)
	for _, p := range k.key.Primes {
		wipeBig(p)
	}
	wipeBig(k.key.Precomputed.Dp)
	wipeBig(k.key.Precomputed.Dq)
	wipeBig(k.key.Precomputed.Qinv)
	k.key = nil
}

func (p rsaPublic) marshal() ([]byte, error) {
	return x509.MarshalPKIXPublicKey(p.key)
}

func (p rsaPublic) wrap(r io.Reader, ad, key []byte) ([]byte, error) {
	return rsa.EncryptOAEP(sha256.New(), r, p.key, key, ad)
}

// wipeBig zeroes the words backing x.
func wipeBig(x *big.Int) {
	if x == nil {
		return
	}
	words := x.Bits()
	for i := range words {
		words[i] = 0
	}
	x.SetInt64(0)
}
