package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ShortHash returns the first 16 hex chars of SHA-256 over parts joined by
// a unit separator, so ("ab","c") and ("a","bc") hash differently.
func ShortHash(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:8])
}
