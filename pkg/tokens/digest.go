package tokens

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest is the storage form of a refresh token. Equal digests mean equal tokens.
func Digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
