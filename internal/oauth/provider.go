// provider.go -- OAuth provider interface and shared types.
package oauth

import (
	"context"

	"golang.org/x/oauth2"
)

// Profile is the authenticated user's profile as reported by the provider.
// AvatarURL is empty when the user has no avatar.
type Profile struct {
	ID          string // provider-specific stable user ID
	DisplayName string
	AvatarURL   string
}

// AuthRequest carries the per-login values forwarded to the authorize endpoint.
// CodeChallenge and CodeChallengeMethod are passed through unmodified;
// an empty CodeChallengeMethod is omitted.
type AuthRequest struct {
	State               string
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod string
}

// Provider is an OAuth2 identity provider using the authorization-code flow with PKCE.
// The broker never computes or checks the challenge/verifier relationship; the provider does.
type Provider interface {
	// Name returns the provider identifier used to qualify user IDs.
	Name() string

	// AuthCodeURL returns the authorize endpoint URL the browser is redirected to.
	AuthCodeURL(req AuthRequest) string

	// Exchange redeems an authorization code. redirectURI must equal the one sent to AuthCodeURL.
	Exchange(ctx context.Context, code, codeVerifier, redirectURI string) (*oauth2.Token, error)

	// Profile fetches the profile of the user the token was issued to.
	Profile(ctx context.Context, token *oauth2.Token) (*Profile, error)
}
