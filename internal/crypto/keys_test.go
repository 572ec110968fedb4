package crypto_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"secchannel/internal/crypto"
	"secchannel/internal/domain"
)

func newProvider(t *testing.T, suite crypto.Suite) *crypto.Provider {
	t.Helper()
	p, err := crypto.NewProvider(suite)
	if err != nil {
		t.Fatalf("NewProvider(%s): %v", suite, err)
	}
	return p
}

func allSuites() []crypto.Suite {
	var out []crypto.Suite
	for _, x := range []crypto.Algorithm{crypto.AlgX25519, crypto.AlgRSAOAEP} {
		for _, s := range []crypto.Algorithm{crypto.AlgEd25519ph, crypto.AlgECDSAP256} {
			for _, c := range []crypto.Algorithm{crypto.AlgAES256CBC, crypto.AlgAES128CBC} {
				out = append(out, crypto.Suite{Exchange: x, Signature: s, Cipher: c})
			}
		}
	}
	return out
}

func TestParseSuite_DefaultNames(t *testing.T) {
	s, err := crypto.ParseSuite("x25519", "ed25519ph", "aes-256-cbc")
	require.NoError(t, err)
	require.Equal(t, crypto.DefaultSuite(), s)
	require.Equal(t, "x25519/ed25519ph/aes-256-cbc", s.String())
}

func TestParseSuite_RejectsWrongSlot(t *testing.T) {
	_, err := crypto.ParseSuite("ed25519ph", "ed25519ph", "aes-256-cbc")
	require.ErrorIs(t, err, domain.ErrCrypto)

	_, err = crypto.ParseSuite("x25519", "ed25519ph", "des")
	require.ErrorIs(t, err, domain.ErrCrypto)
}

func TestAlgorithms_ByRole(t *testing.T) {
	require.Equal(t, []string{"rsa-oaep", "x25519"}, crypto.Algorithms(domain.RoleExchange))
	require.Equal(t, []string{"ecdsa-p256", "ed25519ph"}, crypto.Algorithms(domain.RoleSignature))
	require.Equal(t, []string{"aes-128-cbc", "aes-256-cbc"}, crypto.Algorithms(0))
}

func TestPublicKey_ExportImport(t *testing.T) {
	for _, suite := range []crypto.Suite{
		crypto.DefaultSuite(),
		{Exchange: crypto.AlgRSAOAEP, Signature: crypto.AlgECDSAP256, Cipher: crypto.AlgAES128CBC},
	} {
		t.Run(suite.String(), func(t *testing.T) {
			p := newProvider(t, suite)
			for _, role := range []domain.Role{domain.RoleExchange, domain.RoleSignature} {
				kp, err := p.GenerateKeyPair(role)
				if err != nil {
					t.Fatalf("GenerateKeyPair(%s): %v", role, err)
				}
				blob, err := p.ExportPublic(kp)
				if err != nil {
					t.Fatalf("ExportPublic: %v", err)
				}
				pub, err := p.ImportPublic(blob)
				if err != nil {
					t.Fatalf("ImportPublic: %v", err)
				}
				if pub.Role() != role || pub.Algorithm() != kp.Algorithm() {
					t.Fatalf("imported %s/%s, want %s/%s", pub.Role(), pub.Algorithm(), role, kp.Algorithm())
				}
				if pub.Fingerprint() != kp.Public().Fingerprint() {
					t.Fatalf("fingerprint changed across export/import")
				}
				kp.Destroy()
				if _, err := p.ExportPublic(kp); !errors.Is(err, domain.ErrCrypto) {
					t.Fatalf("export after destroy: want ErrCrypto, got %v", err)
				}
			}
		})
	}
}

func TestImportPublic_RejectsMalformed(t *testing.T) {
	p := newProvider(t, crypto.DefaultSuite())
	kp, err := p.GenerateKeyPair(domain.RoleExchange)
	require.NoError(t, err)
	blob, err := p.ExportPublic(kp)
	require.NoError(t, err)

	cases := map[string][]byte{
		"empty":     nil,
		"short":     blob[:3],
		"truncated": blob[:len(blob)-1],
		"wrongType": append([]byte{0x01}, blob[1:]...),
		"version":   append([]byte{blob[0], 0x02}, blob[2:]...),
		"unknownAlg": append([]byte{blob[0], blob[1], 0xFF, 0xFF},
			blob[4:]...),
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := p.ImportPublic(b); !errors.Is(err, domain.ErrCrypto) {
				t.Fatalf("want ErrCrypto, got %v", err)
			}
		})
	}
}

func TestSymmetricKey_TransportRoundTrip(t *testing.T) {
	for _, suite := range allSuites() {
		t.Run(suite.String(), func(t *testing.T) {
			responder := newProvider(t, suite)
			initiator := newProvider(t, suite)

			exch, err := initiator.GenerateKeyPair(domain.RoleExchange)
			require.NoError(t, err)
			defer exch.Destroy()
			exchBlob, err := initiator.ExportPublic(exch)
			require.NoError(t, err)

			recipient, err := responder.ImportPublic(exchBlob)
			require.NoError(t, err)
			sk, err := responder.GenerateSymmetricKey()
			require.NoError(t, err)
			defer sk.Destroy()
			require.True(t, sk.Exportable())

			wrapped, err := responder.ExportSymmetric(sk, recipient)
			require.NoError(t, err)

			got, err := initiator.ImportSymmetric(wrapped, exch)
			require.NoError(t, err)
			defer got.Destroy()
			require.False(t, got.Exportable())
			require.Equal(t, sk.Algorithm(), got.Algorithm())
			require.Equal(t, initiator.BlockSize(), got.BlockSize())

			// Imported keys do not travel further.
			_, err = initiator.ExportSymmetric(got, recipient)
			require.ErrorIs(t, err, domain.ErrCrypto)
		})
	}
}

func TestImportSymmetric_WrongRecipient(t *testing.T) {
	p := newProvider(t, crypto.DefaultSuite())
	intended, err := p.GenerateKeyPair(domain.RoleExchange)
	require.NoError(t, err)
	other, err := p.GenerateKeyPair(domain.RoleExchange)
	require.NoError(t, err)

	sk, err := p.GenerateSymmetricKey()
	require.NoError(t, err)
	wrapped, err := p.ExportSymmetric(sk, intended.Public())
	require.NoError(t, err)

	_, err = p.ImportSymmetric(wrapped, other)
	require.ErrorIs(t, err, domain.ErrCrypto)
}

func TestImportSymmetric_HeaderIsBound(t *testing.T) {
	p := newProvider(t, crypto.DefaultSuite())
	exch, err := p.GenerateKeyPair(domain.RoleExchange)
	require.NoError(t, err)
	sk, err := p.GenerateSymmetricKey()
	require.NoError(t, err)
	wrapped, err := p.ExportSymmetric(sk, exch.Public())
	require.NoError(t, err)

	// Relabel the cipher as aes-128-cbc; the wrap must refuse to open.
	tampered := append([]byte(nil), wrapped...)
	tampered[2], tampered[3] = 0x0E, 0x66
	_, err = p.ImportSymmetric(tampered, exch)
	require.ErrorIs(t, err, domain.ErrCrypto)
}

func TestExportSymmetric_RejectsSignatureRecipient(t *testing.T) {
	p := newProvider(t, crypto.DefaultSuite())
	sig, err := p.GenerateKeyPair(domain.RoleSignature)
	require.NoError(t, err)
	sk, err := p.GenerateSymmetricKey()
	require.NoError(t, err)

	_, err = p.ExportSymmetric(sk, sig.Public())
	require.ErrorIs(t, err, domain.ErrCrypto)
	require.Equal(t, domain.KindCrypto, domain.KindOf(err))
}

func TestFingerprint_Stable(t *testing.T) {
	a := crypto.Fingerprint([]byte("blob"))
	require.Len(t, a.String(), 20)
	require.Equal(t, a, crypto.Fingerprint([]byte("blob")))
	require.NotEqual(t, a, crypto.Fingerprint([]byte("blob2")))
}

func TestSuite_MaxBlobSizeCoversBlobs(t *testing.T) {
	for _, suite := range allSuites() {
		t.Run(suite.String(), func(t *testing.T) {
			p := newProvider(t, suite)
			limit := suite.MaxBlobSize()

			exch, err := p.GenerateKeyPair(domain.RoleExchange)
			require.NoError(t, err)
			sig, err := p.GenerateKeyPair(domain.RoleSignature)
			require.NoError(t, err)
			exchBlob, err := p.ExportPublic(exch)
			require.NoError(t, err)
			sigBlob, err := p.ExportPublic(sig)
			require.NoError(t, err)
			sk, err := p.GenerateSymmetricKey()
			require.NoError(t, err)
			wrapped, err := p.ExportSymmetric(sk, exch.Public())
			require.NoError(t, err)

			require.LessOrEqual(t, len(exchBlob), limit)
			require.LessOrEqual(t, len(sigBlob), limit)
			require.LessOrEqual(t, len(wrapped), limit)
		})
	}
}
