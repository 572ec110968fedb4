package crypto

import (
	"testing"

	"secchannel/internal/domain"
)

func TestDestroy_RSAAndECDSADropPrivateKey(t *testing.T) {
	p, err := NewProvider(Suite{Exchange: AlgRSAOAEP, Signature: AlgECDSAP256, Cipher: AlgAES256CBC})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	exch, err := p.GenerateKeyPair(domain.RoleExchange)
	if err != nil {
		t.Fatalf("GenerateKeyPair(exchange): %v", err)
	}
	rk := exch.exch.(*rsaPrivate)
	d := rk.key.D
	primes := rk.key.Primes

	sig, err := p.GenerateKeyPair(domain.RoleSignature)
	if err != nil {
		t.Fatalf("GenerateKeyPair(signature): %v", err)
	}
	ek := sig.sig.(*ecdsaPrivate)
	ed := ek.key.D

	exch.Destroy()
	sig.Destroy()

	if rk.key != nil || ek.key != nil {
		t.Fatal("private key still referenced after Destroy")
	}
	if d.Sign() != 0 || ed.Sign() != 0 {
		t.Fatal("private exponent not zeroed")
	}
	for i, q := range primes {
		if q.Sign() != 0 {
			t.Fatalf("prime %d not zeroed", i)
		}
	}

	// A second destroy on the inner keys must not touch the dropped pointer.
	rk.destroy()
	ek.destroy()
}
