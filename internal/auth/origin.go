// origin.go -- Callback origin derived once per request.
package auth

import (
	"net"
	"net/http"
	"regexp"
	"strings"
)

// callbackOrigin is where the provider sends the browser back to.
// Computed once at request entry and passed down unchanged.
type callbackOrigin struct {
	host        string
	secure      bool
	redirectURI string
}

// newCallbackOrigin reads X-Forwarded-Host (first entry), falling back to Host.
// Hosts matching localDev get plain http and a non-Secure cookie.
func newCallbackOrigin(r *http.Request, localDev *regexp.Regexp) callbackOrigin {
	host := r.Header.Get("X-Forwarded-Host")
	if i := strings.IndexByte(host, ','); i >= 0 {
		host = host[:i]
	}
	host = strings.TrimSpace(host)
	if host == "" {
		host = r.Host
	}

	local := localDev != nil && localDev.MatchString(hostname(host))
	scheme := "https"
	if local {
		scheme = "http"
	}
	return callbackOrigin{
		host:        host,
		secure:      !local,
		redirectURI: scheme + "://" + host + "/",
	}
}

// hostname strips the port, keeping IPv6 literals bracketed.
func hostname(host string) string {
	h, _, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}
	if strings.Contains(h, ":") {
		return "[" + h + "]"
	}
	return h
}
