package llm

import "fmt"

// AuthError reports a rejected API key without leaking it.
type AuthError struct {
	Provider    string
	StatusCode  int
	Fingerprint string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed (http %d, key %s)", e.Provider, e.StatusCode, e.Fingerprint)
}

// Fingerprint redacts a secret to its first and last four characters plus
// its length, enough to tell keys apart in logs.
func Fingerprint(secret string) string {
	if secret == "" {
		return "<empty>"
	}
	if len(secret) <= 8 {
		return fmt.Sprintf("****(len=%d)", len(secret))
	}
	return fmt.Sprintf("%s...%s(len=%d)", secret[:4], secret[len(secret)-4:], len(secret))
}
