// handler.go -- HTTP handlers for /login and /token.
package auth

import (
	"context"
	"net/http"
)

// maxFormBytes bounds the /token body. Three short fields fit comfortably.
const maxFormBytes = 16 << 10

// HealthChecker is anything /health can ping.
// Satisfied by *store.PostgresStore.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// AuthHandler adapts the Broker to HTTP.
type AuthHandler struct {
	Broker *Broker
	PS     HealthChecker
}

// Login handles GET /login?code_challenge=... -- sets the session cookie and
// redirects to the provider.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.Broker.BeginLogin(LoginRequest{
		Method:              r.Method,
		Origin:              newCallbackOrigin(r, h.Broker.LocalDev),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	http.SetCookie(w, res.Cookie)
	logInfo(r, "login started")
	http.Redirect(w, r, res.RedirectURL, http.StatusFound)
}

// Token handles POST /token -- form fields code, state, code_verifier plus the
// session cookie. Responds with the sign-in token as text/plain.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	origin := newCallbackOrigin(r, h.Broker.LocalDev)
	req := TokenRequest{Method: r.Method, Origin: origin}

	if r.Method == http.MethodPost {
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if err := r.ParseForm(); err != nil {
			logWarn(r, "unreadable form", "error", err)
			BadRequest(w)
			return
		}
		req.Code = r.PostForm.Get("code")
		req.State = r.PostForm.Get("state")
		req.CodeVerifier = r.PostForm.Get("code_verifier")
	}

	if c, err := r.Cookie(SessionCookieName); err == nil {
		req.Cookie = c.Value
		req.HasCookie = true
		// Single round trip: the cookie is spent whatever the outcome.
		clearSessionCookie(w, origin.secure)
	}

	token, err := h.Broker.CompleteLogin(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logInfo(r, "login completed", "provider", h.Broker.Provider.Name())
	SignInToken(w, token)
}

// clearSessionCookie overwrites __session with MaxAge=-1 to trigger browser deletion.
func clearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     TokenPath,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}
