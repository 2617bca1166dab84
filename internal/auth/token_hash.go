package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken returns the SHA-256 hex digest of a raw token. Tokens carry
// their own entropy, so a fast content hash is enough for storage and
// exact-match lookup; bcrypt is reserved for low-entropy secrets.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
