package v1

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
)

const tokenBytes = 32

// GenerateToken returns a high-entropy opaque bearer token and its hash.
// The raw token goes to the client once; only the hash is persisted.
func GenerateToken() (raw, hash string, err error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", "", fmt.Errorf("read random: %w", err)
	}

	raw = base64.RawURLEncoding.EncodeToString(buf)
	return raw, HashToken(raw), nil
}

// HashToken returns the hex sha256 digest of a raw token, the form stored
// and looked up in the database. Tokens carry 256 bits of entropy, so a fast
// unsalted digest is the right tool here (unlike passwords).
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
