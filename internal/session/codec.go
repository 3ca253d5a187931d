// codec.go -- Signed, self-verifying session values.
//
// Wire format: signature "." expiresAtMillis "." urlencoded(json(value))
// The signature covers the exact bytes after the first separator. The value segment
// may itself contain separators, so tokens are cut at most twice by index.
package session

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Separator joins the three token fields. Base64url signatures and decimal
// timestamps never contain it.
const Separator = '.'

// MaxTokenLen bounds the attacker-controlled input Decode will look at.
// Browsers cap a single cookie near 4KB.
const MaxTokenLen = 4096

// Status is the outcome of Decode. Only Valid means the value was populated.
type Status int

const (
	Valid Status = iota
	InvalidSignature
	Expired
	Malformed
)

func (s Status) String() string {
	switch s {
	case Valid:
		return "valid"
	case InvalidSignature:
		return "invalid_signature"
	case Expired:
		return "expired"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Authenticator signs and verifies byte strings.
// Satisfied by *signing.Signer.
type Authenticator interface {
	Sign(data []byte) string
	Verify(signature string, data []byte) bool
}

// Codec encodes values with an absolute expiry into signed strings and back.
type Codec struct {
	auth Authenticator
}

// NewCodec returns a Codec that signs with auth.
func NewCodec(auth Authenticator) *Codec {
	return &Codec{auth: auth}
}

// Encode serializes value as JSON, URL-component escapes it, and binds it to
// expiresAt (millisecond precision) under one signature.
func (c *Codec) Encode(value any, expiresAt time.Time) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("marshaling session value: %w", err)
	}
	signed := strconv.FormatInt(expiresAt.UnixMilli(), 10) + string(Separator) + url.QueryEscape(string(raw))
	return c.auth.Sign([]byte(signed)) + string(Separator) + signed, nil
}

// Decode verifies token and, on Valid, unmarshals its value into v.
// The signature is checked before the expiry or value is interpreted.
// A token is Expired when expiresAt <= now.
func (c *Codec) Decode(token string, now time.Time, v any) Status {
	if token == "" || len(token) > MaxTokenLen {
		return Malformed
	}

	// First separator isolates the signature; the remainder is the signed string.
	i := strings.IndexByte(token, Separator)
	if i < 0 {
		return Malformed
	}
	signature, signed := token[:i], token[i+1:]

	// Second separator splits expiry from value. Later separators belong to the value.
	j := strings.IndexByte(signed, Separator)
	if j < 0 {
		return Malformed
	}

	if !c.auth.Verify(signature, []byte(signed)) {
		return InvalidSignature
	}

	expiresAt, err := strconv.ParseInt(signed[:j], 10, 64)
	if err != nil {
		return Malformed
	}
	if expiresAt <= now.UnixMilli() {
		return Expired
	}

	raw, err := url.QueryUnescape(signed[j+1:])
	if err != nil {
		return Malformed
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return Malformed
	}
	return Valid
}
