// minter.go -- Sign-in token minting.
//
// Tokens are HS256 JWTs the downstream identity service redeems to open a session
// for the given provider-qualified UID.
package signin

import (
	"errors"
	"fmt"
	"time"

	"github.com/MGallo-Code/obol/internal/signing"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the decoded form of a sign-in token.
type Claims struct {
	jwt.RegisteredClaims
	UID string `json:"uid"`
}

// Config configures a Minter. Key must be non-empty; TTL defaults to one hour.
type Config struct {
	Key      []byte
	Issuer   string
	Audience string
	TTL      time.Duration
}

// Minter issues and parses sign-in tokens.
type Minter struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
}

// NewMinter validates cfg and returns a Minter.
func NewMinter(cfg Config) (*Minter, error) {
	if len(cfg.Key) == 0 {
		return nil, errors.New("sign-in key is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	return &Minter{key: cfg.Key, issuer: cfg.Issuer, audience: cfg.Audience, ttl: cfg.TTL}, nil
}

// Mint returns a signed token for uid, issued at now.
func (m *Minter) Mint(uid string, now time.Time) (string, error) {
	if uid == "" {
		return "", errors.New("uid is required")
	}
	jti, err := signing.RandomToken(signing.MinTokenBytes)
	if err != nil {
		return "", err
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        jti,
		},
		UID: uid,
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("signing sign-in token: %w", err)
	}
	return signed, nil
}

// Parse verifies token's signature, issuer, audience and expiry as of now.
func (m *Minter) Parse(token string, now time.Time) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}
	var claims Claims
	if _, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.key, nil
	}, opts...); err != nil {
		return nil, fmt.Errorf("parsing sign-in token: %w", err)
	}
	return &claims, nil
}
