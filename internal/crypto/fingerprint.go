package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"secchannel/internal/domain"
)

// Fingerprint returns a short hex fingerprint of an exported public key blob.
//
// It hashes with SHA-256 and truncates to 10 bytes (20 hex chars).
func Fingerprint(blob []byte) domain.Fingerprint {
	sum := sha256.Sum256(blob)
	return domain.Fingerprint(hex.EncodeToString(sum[:10]))
}
