package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashKey returns a stable hex digest of s, used to log identifiers such as
// phone numbers without exposing them.
func HashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ShortHash is the first 12 hex characters of HashKey.
func ShortHash(s string) string {
	if s == "" {
		return ""
	}
	return HashKey(s)[:12]
}
