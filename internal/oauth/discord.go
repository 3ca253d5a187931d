// discord.go -- Discord OAuth2 provider implementation.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Default Discord endpoints. Overridable via DiscordOptions for tests.
const (
	discordAuthURL  = "https://discord.com/oauth2/authorize"
	discordTokenURL = "https://discord.com/api/oauth2/token"
	discordAPIURL   = "https://discord.com/api"
	discordCDNURL   = "https://cdn.discordapp.com"
)

// DiscordOptions overrides endpoints and transport. Zero values use the defaults.
type DiscordOptions struct {
	AuthURL    string
	TokenURL   string
	APIBaseURL string
	CDNBaseURL string
	HTTPClient *http.Client
}

// DiscordProvider implements Provider for Discord (plain OAuth2, no ID token).
// Requests only the "identify" scope with prompt=none.
type DiscordProvider struct {
	config     oauth2.Config
	apiBaseURL string
	cdnBaseURL string
	httpClient *http.Client
}

// NewDiscordProvider returns a DiscordProvider for the given client credentials.
// All outbound calls share one pooled, keep-alive http.Client.
func NewDiscordProvider(clientID, clientSecret string, opts DiscordOptions) *DiscordProvider {
	p := &DiscordProvider{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   orDefault(opts.AuthURL, discordAuthURL),
				TokenURL:  orDefault(opts.TokenURL, discordTokenURL),
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: []string{"identify"},
		},
		apiBaseURL: orDefault(opts.APIBaseURL, discordAPIURL),
		cdnBaseURL: orDefault(opts.CDNBaseURL, discordCDNURL),
		httpClient: opts.HTTPClient,
	}
	if p.httpClient == nil {
		p.httpClient = NewHTTPClient(10 * time.Second)
	}
	return p
}

// NewHTTPClient returns an http.Client with connection reuse across requests.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
		},
	}
}

// Name returns "discord".
func (p *DiscordProvider) Name() string { return "discord" }

// AuthCodeURL builds the consent URL: client_id, response_type=code, scope, prompt,
// state, redirect_uri and code_challenge.
func (p *DiscordProvider) AuthCodeURL(req AuthRequest) string {
	cfg := p.config
	cfg.RedirectURL = req.RedirectURI
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("prompt", "none"),
		oauth2.SetAuthURLParam("code_challenge", req.CodeChallenge),
	}
	if req.CodeChallengeMethod != "" {
		opts = append(opts, oauth2.SetAuthURLParam("code_challenge_method", req.CodeChallengeMethod))
	}
	return cfg.AuthCodeURL(req.State, opts...)
}

// Exchange trades an authorization code + PKCE verifier for an access token.
func (p *DiscordProvider) Exchange(ctx context.Context, code, codeVerifier, redirectURI string) (*oauth2.Token, error) {
	cfg := p.config
	cfg.RedirectURL = redirectURI
	token, err := cfg.Exchange(p.clientContext(ctx), code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, fmt.Errorf("exchanging code: %w", err)
	}
	return token, nil
}

// discordUser is the subset of GET /users/@me used here.
type discordUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Avatar     string `json:"avatar"`
}

// Profile fetches /users/@me with the access token.
func (p *DiscordProvider) Profile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	client := p.config.Client(p.clientContext(ctx), token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBaseURL+"/users/@me", nil)
	if err != nil {
		return nil, fmt.Errorf("building profile request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching profile: status %d", resp.StatusCode)
	}

	var u discordUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	if u.ID == "" {
		return nil, fmt.Errorf("profile response has no user id")
	}

	name := u.GlobalName
	if name == "" {
		name = u.Username
	}
	var avatar string
	if u.Avatar != "" {
		avatar = fmt.Sprintf("%s/avatars/%s/%s.png", p.cdnBaseURL, u.ID, u.Avatar)
	}
	return &Profile{ID: u.ID, DisplayName: name, AvatarURL: avatar}, nil
}

// clientContext makes x/oauth2 use the shared pooled client.
func (p *DiscordProvider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
