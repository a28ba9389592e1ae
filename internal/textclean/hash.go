package textclean

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashContent returns the hex SHA-256 digest of text.
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// HashFields hashes the pipe-joined fields after collapsing whitespace in each,
// so formatting differences do not change the digest.
func HashFields(fields ...string) string {
	normalized := make([]string, len(fields))
	for i, f := range fields {
		normalized[i] = SingleLine(f)
	}
	return HashContent(strings.Join(normalized, "|"))
}
