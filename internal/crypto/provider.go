package crypto

import (
	"crypto/aes"
	"crypto/rand"
	"fmt"
	"io"
	"sort"

	"golang.org/x/crypto/chacha20poly1305"

	"secchannel/internal/domain"
)

// Algorithm identifies a key or cipher algorithm inside blobs.
type Algorithm uint16

const (
	AlgX25519    Algorithm = 0xAA01
	AlgRSAOAEP   Algorithm = 0xA400
	AlgEd25519ph Algorithm = 0x2E01
	AlgECDSAP256 Algorithm = 0x2203
	AlgAES128CBC Algorithm = 0x660E
	AlgAES256CBC Algorithm = 0x6610
)

type algorithmInfo struct {
	name   string
	role   domain.Role // zero for ciphers
	keyLen int         // ciphers only
}

var algorithms = map[Algorithm]algorithmInfo{
	AlgX25519:    {name: "x25519", role: domain.RoleExchange},
	AlgRSAOAEP:   {name: "rsa-oaep", role: domain.RoleExchange},
	AlgEd25519ph: {name: "ed25519ph", role: domain.RoleSignature},
	AlgECDSAP256: {name: "ecdsa-p256", role: domain.RoleSignature},
	AlgAES128CBC: {name: "aes-128-cbc", keyLen: 16},
	AlgAES256CBC: {name: "aes-256-cbc", keyLen: 32},
}

// String returns the configuration name of the algorithm.
func (a Algorithm) String() string {
	if info, ok := algorithms[a]; ok {
		return info.name
	}
	return fmt.Sprintf("alg(0x%04x)", uint16(a))
}

// Role returns the key role of an asymmetric algorithm, or zero for ciphers
// and unknown values.
func (a Algorithm) Role() domain.Role {
	return algorithms[a].role
}

func (a Algorithm) isCipher() bool {
	return algorithms[a].keyLen > 0
}

// ParseAlgorithm maps a configuration name such as "x25519" to its Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	for alg, info := range algorithms {
		if info.name == name {
			return alg, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown algorithm %q", domain.ErrCrypto, name)
}

// Algorithms lists the names of every supported algorithm for role, or of
// the ciphers when role is zero.
func Algorithms(role domain.Role) []string {
	var out []string
	for _, info := range algorithms {
		if info.role == role {
			out = append(out, info.name)
		}
	}
	sort.Strings(out)
	return out
}

// Suite selects the algorithms a Provider generates keys for. Imports are
// driven by the blob header, so peers only need to agree on what they can
// parse.
type Suite struct {
	Exchange  Algorithm
	Signature Algorithm
	Cipher    Algorithm
}

// DefaultSuite is x25519 / ed25519ph / aes-256-cbc.
func DefaultSuite() Suite {
	return Suite{
		Exchange:  AlgX25519,
		Signature: AlgEd25519ph,
		Cipher:    AlgAES256CBC,
	}
}

// ParseSuite builds a Suite from configuration names.
func ParseSuite(exchange, signature, cipherName string) (Suite, error) {
	var (
		s   Suite
		err error
	)
	if s.Exchange, err = ParseAlgorithm(exchange); err != nil {
		return Suite{}, err
	}
	if s.Signature, err = ParseAlgorithm(signature); err != nil {
		return Suite{}, err
	}
	if s.Cipher, err = ParseAlgorithm(cipherName); err != nil {
		return Suite{}, err
	}
	return s, s.Validate()
}

// Validate checks that every slot holds an algorithm of the right kind.
func (s Suite) Validate() error {
	if s.Exchange.Role() != domain.RoleExchange {
		return fmt.Errorf("%w: %s is not an exchange algorithm", domain.ErrCrypto, s.Exchange)
	}
	if s.Signature.Role() != domain.RoleSignature {
		return fmt.Errorf("%w: %s is not a signature algorithm", domain.ErrCrypto, s.Signature)
	}
	if !s.Cipher.isCipher() {
		return fmt.Errorf("%w: %s is not a cipher", domain.ErrCrypto, s.Cipher)
	}
	return nil
}

// String renders the suite as "exchange/signature/cipher".
func (s Suite) String() string {
	return s.Exchange.String() + "/" + s.Signature.String() + "/" + s.Cipher.String()
}

// Provider is the crypto context all key and sealing operations run in.
// A Provider is safe for concurrent use; the keys it hands out are not.
type Provider struct {
	suite Suite
	rand  io.Reader
}

// Option customises a Provider.
type Option func(*Provider)

// WithRand replaces crypto/rand as the randomness source.
func WithRand(r io.Reader) Option {
	return func(p *Provider) { p.rand = r }
}

// NewProvider returns a Provider for suite.
func NewProvider(suite Suite, opts ...Option) (*Provider, error) {
	if err := suite.Validate(); err != nil {
		return nil, err
	}
	p := &Provider{suite: suite, rand: rand.Reader}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Suite returns the algorithms the provider generates keys for.
func (p *Provider) Suite() Suite { return p.suite }

// BlockSize reports the block length of the suite cipher.
func (p *Provider) BlockSize() int {
	return cipherBlockSize(p.suite.Cipher)
}

func cipherBlockSize(alg Algorithm) int {
	switch alg {
	case AlgAES128CBC, AlgAES256CBC:
		return aes.BlockSize
	default:
		return 0
	}
}

// Encoded public key sizes, without the blob header.
const (
	x25519PublicSize   = 32
	ed25519PublicSize  = 32
	rsaPublicDERSize   = 294 // PKIX, 2048-bit modulus
	ecdsaPublicDERSize = 91  // PKIX, P-256 uncompressed
)

// MaxBlobSize bounds the largest single message a handshake with this suite
// sends: a public key blob or the session key blob.
func (s Suite) MaxBlobSize() int {
	pub := map[Algorithm]int{
		AlgX25519:    x25519PublicSize,
		AlgRSAOAEP:   rsaPublicDERSize,
		AlgEd25519ph: ed25519PublicSize,
		AlgECDSAP256: ecdsaPublicDERSize,
	}
	wrapped := rsaKeyBits / 8
	if s.Exchange == AlgX25519 {
		wrapped = x25519PublicSize + chacha20poly1305.NonceSize + algorithms[s.Cipher].keyLen + chacha20poly1305.Overhead
	}
	return blobHeaderSize + max(pub[s.Exchange], pub[s.Signature], 2+wrapped)
}
