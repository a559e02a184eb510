package crypto

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns a short hex fingerprint of key material.
//
// It hashes with BLAKE2b-256 and truncates to 10 bytes (20 hex chars).
func Fingerprint(b []byte) string {
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:10])
}
