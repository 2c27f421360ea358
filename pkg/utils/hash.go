package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashString returns the hex sha256 of input.
func HashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// CacheKey joins parts with a separator that cannot appear in language codes
// and hashes the result, so arbitrary user text yields a fixed-size key.
func CacheKey(parts ...string) string {
	return HashString(strings.Join(parts, "\x1f"))
}
