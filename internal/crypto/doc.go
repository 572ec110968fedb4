// Package crypto is the key and sealing engine of the secure channel.
//
// Contents
//
//   - Provider: the crypto context. It carries the algorithm Suite and the
//     randomness source and reports the cipher block length.
//   - KeyPair / PublicKey: asymmetric keys with a fixed Role (exchange or
//     signature). Public halves travel as opaque blobs (ExportPublic,
//     ImportPublic).
//   - SessionKey: the symmetric key of one session. It only leaves the
//     provider wrapped under a recipient's exchange key (ExportSymmetric,
//     ImportSymmetric).
//   - Seal / Unseal: CBC encryption with PKCS#5 padding whose plaintext is
//     fed into a hash accumulator block by block while the cipher runs; the
//     accumulator digest is then signed (Seal) or verified (Unseal).
//
// # Algorithms
//
//	exchange   x25519 (HKDF-SHA256 + ChaCha20-Poly1305 key wrap), rsa-oaep
//	signature  ed25519ph (SHA-512 accumulator), ecdsa-p256 (SHA-256 accumulator)
//	cipher     aes-256-cbc, aes-128-cbc
//
// # Blobs
//
// Every exported blob starts with {type u8, version u8, alg u16 LE}. Public
// key blobs carry the raw key (x25519, ed25519) or PKIX DER (rsa, ecdsa).
// Session key blobs add the u16 exchange algorithm and the wrapped key; the
// first six bytes are bound to the wrap as associated data.
//
// # Errors
//
// Key generation, import and export failures wrap domain.ErrCrypto. Unseal
// returns domain.ErrAuthenticationFailed for any padding, length or
// signature problem and never returns plaintext alongside it.
package crypto
