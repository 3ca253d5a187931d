// broker.go -- Two-phase PKCE login state machine.
//
// BeginLogin issues a signed state cookie and the provider redirect.
// CompleteLogin verifies the cookie against the submitted state, redeems the
// code, provisions the user and returns a sign-in token. No state is kept
// between the two calls except what travels in the cookie and the URL.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/MGallo-Code/obol/internal/oauth"
	"github.com/MGallo-Code/obol/internal/session"
	"github.com/MGallo-Code/obol/internal/signing"
	"github.com/MGallo-Code/obol/internal/store"
	"golang.org/x/oauth2"
)

// SessionCookieName is the cookie carrying the signed login state.
const SessionCookieName = "__session"

// TokenPath scopes the session cookie so it is only sent to the token endpoint.
const TokenPath = "/token"

var (
	// ErrBadRequest covers every client validation failure. Surfaced as a bodyless 400.
	ErrBadRequest = errors.New("bad request")

	// ErrUpstream marks an identity provider failure. Surfaced as a 502.
	ErrUpstream = errors.New("upstream failure")
)

// Provisioner creates or updates local users and mints sign-in tokens.
// Satisfied by *directory.Directory.
type Provisioner interface {
	CreateOrUpdate(ctx context.Context, uid string, p oauth.Profile) error
	IssueSignInToken(ctx context.Context, uid string) (string, error)
}

// StateLedger records states that have completed a login.
// Satisfied by *store.RedisStateLedger and store.NoopStateLedger.
type StateLedger interface {
	// Consume returns store.ErrStateConsumed if state was already consumed.
	Consume(ctx context.Context, state string, ttl time.Duration) error
	CheckHealth(ctx context.Context) error
}

// Broker holds the immutable dependencies shared by every login.
type Broker struct {
	Codec    *session.Codec
	Provider oauth.Provider
	Users    Provisioner
	Ledger   StateLedger

	StateTTL        time.Duration
	StateBytes      int
	UpstreamTimeout time.Duration

	// LocalDev matches hostnames served over plain HTTP.
	LocalDev *regexp.Regexp

	// Now defaults to time.Now. Tests override it to move across expiry.
	Now func() time.Time
}

// LoginRequest is the parsed GET /login request.
type LoginRequest struct {
	Method              string
	Origin              callbackOrigin
	CodeChallenge       string
	CodeChallengeMethod string
}

// LoginResult is what BeginLogin asks the handler to send back.
type LoginResult struct {
	Cookie      *http.Cookie
	RedirectURL string
}

// TokenRequest is the parsed POST /token request.
// HasCookie is false when no __session cookie was sent at all.
type TokenRequest struct {
	Method       string
	Origin       callbackOrigin
	Code         string
	State        string
	CodeVerifier string
	Cookie       string
	HasCookie    bool
}

func (b *Broker) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// BeginLogin generates a fresh state, seals it into the session cookie and
// builds the provider authorize URL.
func (b *Broker) BeginLogin(req LoginRequest) (*LoginResult, error) {
	if req.Method != http.MethodGet {
		return nil, fmt.Errorf("%w: method %s", ErrBadRequest, req.Method)
	}
	if req.CodeChallenge == "" {
		return nil, fmt.Errorf("%w: missing code_challenge", ErrBadRequest)
	}

	state, err := signing.RandomToken(b.StateBytes)
	if err != nil {
		return nil, fmt.Errorf("generating state: %w", err)
	}
	sealed, err := b.Codec.Encode(state, b.now().Add(b.StateTTL))
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}

	return &LoginResult{
		Cookie: &http.Cookie{
			Name:     SessionCookieName,
			Value:    sealed,
			Path:     TokenPath,
			HttpOnly: true,
			Secure:   req.Origin.secure,
			SameSite: http.SameSiteStrictMode,
			MaxAge:   int(b.StateTTL.Seconds()),
		},
		RedirectURL: b.Provider.AuthCodeURL(oauth.AuthRequest{
			State:               state,
			RedirectURI:         req.Origin.redirectURI,
			CodeChallenge:       req.CodeChallenge,
			CodeChallengeMethod: req.CodeChallengeMethod,
		}),
	}, nil
}

// CompleteLogin validates the request against its session cookie, then
// redeems the code and returns a sign-in token for the provisioned user.
func (b *Broker) CompleteLogin(ctx context.Context, req TokenRequest) (string, error) {
	if req.Method != http.MethodPost {
		return "", fmt.Errorf("%w: method %s", ErrBadRequest, req.Method)
	}
	if req.Code == "" || req.State == "" || req.CodeVerifier == "" {
		return "", fmt.Errorf("%w: missing code, state or code_verifier", ErrBadRequest)
	}
	if !req.HasCookie {
		return "", fmt.Errorf("%w: missing session cookie", ErrBadRequest)
	}

	var state string
	if status := b.Codec.Decode(req.Cookie, b.now(), &state); status != session.Valid {
		return "", fmt.Errorf("%w: session %s", ErrBadRequest, status)
	}
	if subtle.ConstantTimeCompare([]byte(state), []byte(req.State)) != 1 {
		return "", fmt.Errorf("%w: state mismatch", ErrBadRequest)
	}

	if err := b.Ledger.Consume(ctx, state, b.StateTTL); err != nil {
		if errors.Is(err, store.ErrStateConsumed) {
			return "", fmt.Errorf("%w: state already used", ErrBadRequest)
		}
		return "", fmt.Errorf("consuming state: %w", err)
	}

	token, err := b.exchange(ctx, req.Code, req.CodeVerifier, req.Origin.redirectURI)
	if err != nil {
		return "", err
	}
	profile, err := b.profile(ctx, token)
	if err != nil {
		return "", err
	}

	uid := b.Provider.Name() + ":" + profile.ID

	upCtx, cancel := b.withTimeout(ctx)
	defer cancel()
	if err := b.Users.CreateOrUpdate(upCtx, uid, *profile); err != nil {
		return "", fmt.Errorf("provisioning user: %w", err)
	}
	signIn, err := b.Users.IssueSignInToken(upCtx, uid)
	if err != nil {
		return "", fmt.Errorf("issuing sign-in token: %w", err)
	}
	return signIn, nil
}

func (b *Broker) exchange(ctx context.Context, code, verifier, redirectURI string) (*oauth2.Token, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	tok, err := b.Provider.Exchange(ctx, code, verifier, redirectURI)
	if err != nil {
		return nil, fmt.Errorf("%w: exchanging code: %w", ErrUpstream, err)
	}
	return tok, nil
}

func (b *Broker) profile(ctx context.Context, tok *oauth2.Token) (*oauth.Profile, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	p, err := b.Provider.Profile(ctx, tok)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching profile: %w", ErrUpstream, err)
	}
	return p, nil
}

// withTimeout bounds a single outbound call. Zero disables the bound.
func (b *Broker) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.UpstreamTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, b.UpstreamTimeout)
}
