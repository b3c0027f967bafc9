// Package digest computes the content fingerprint used as image identity and
// as the on-disk file-name stem.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
)

// Size is the length of a hex digest returned by Sum.
const Size = sha256.Size * 2

// Sum returns the lowercase hex SHA-256 of b.
func Sum(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// Valid reports whether s looks like a digest produced by Sum.
func Valid(s string) bool {
	if len(s) != Size {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
