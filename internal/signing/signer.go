// signer.go -- HMAC-SHA256 message authenticator.
//
// Signatures are base64url without padding. Verification never short-circuits on
// the first differing byte and does not branch on the supplied signature's length.
package signing

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ErrEmptyKey is returned by NewSigner and DeriveKey when no key material is supplied.
var ErrEmptyKey = errors.New("signing key is empty")

// Signer computes and verifies keyed MACs over arbitrary bytes.
// Immutable after construction; safe for concurrent use.
type Signer struct {
	key []byte
	// blind re-keys both sides of a comparison so the compared values have a fixed
	// length regardless of what the caller supplied.
	blind []byte
}

// NewSigner returns a Signer keyed with a private copy of key.
func NewSigner(key []byte) (*Signer, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	blind := make([]byte, sha256.Size)
	if _, err := rand.Read(blind); err != nil {
		return nil, fmt.Errorf("generating comparison key: %w", err)
	}
	return &Signer{key: append([]byte(nil), key...), blind: blind}, nil
}

// Sign returns base64url(HMAC-SHA256(key, data)).
func (s *Signer) Sign(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(mac(s.key, data))
}

// Verify reports whether signature is the MAC of data. Malformed input returns false.
func (s *Signer) Verify(signature string, data []byte) bool {
	expected := mac(s.blind, []byte(s.Sign(data)))
	supplied := mac(s.blind, []byte(signature))
	return hmac.Equal(expected, supplied)
}

func mac(key, data []byte) []byte {
	m := hmac.New(sha256.New, key)
	m.Write(data)
	return m.Sum(nil)
}

// DeriveKey expands master into a 32-byte key bound to purpose (HKDF-SHA256).
// Different purposes yield independent keys from one configured secret.
func DeriveKey(master []byte, purpose string) ([]byte, error) {
	if len(master) == 0 {
		return nil, ErrEmptyKey
	}
	out := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(purpose)), out); err != nil {
		return nil, fmt.Errorf("deriving %s key: %w", purpose, err)
	}
	return out, nil
}
