// random.go -- URL-safe random tokens.
package signing

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// MinTokenBytes is the smallest entropy accepted for opaque state tokens.
const MinTokenBytes = 24

// RandomToken returns n bytes from crypto/rand encoded as base64url without padding.
func RandomToken(n int) (string, error) {
	if n < MinTokenBytes {
		return "", fmt.Errorf("token size %d below minimum %d", n, MinTokenBytes)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token with rand: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
