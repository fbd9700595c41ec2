package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// stateBytes is the entropy carried by an OAuth state value (256 bits).
const stateBytes = 32

// StateLength is the length of every value returned by GenerateState.
var StateLength = base64.RawURLEncoding.EncodedLen(stateBytes)

// GenerateState creates an OAuth state parameter. The value is URL and
// cookie safe and always StateLength characters long.
func GenerateState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// EqualConstantTime reports whether a and b are identical without leaking
// the position of the first difference through timing.
func EqualConstantTime(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
