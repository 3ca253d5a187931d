// responses.go -- HTTP response helpers.
//
// Failure bodies are fixed strings. Nothing from the request or the error is echoed back.
package auth

import (
	"errors"
	"net/http"
)

// BadRequest returns a 400 with no body. The reason is only logged.
func BadRequest(w http.ResponseWriter) {
	w.WriteHeader(http.StatusBadRequest)
}

// BadGateway logs the error and returns a generic 502 JSON response.
func BadGateway(w http.ResponseWriter, r *http.Request, err error) {
	logError(r, "upstream failure", "error", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	w.Write([]byte(`{"message":"upstream failure"}`))
}

// InternalServerError logs the error and returns a generic 500 JSON response.
func InternalServerError(w http.ResponseWriter, r *http.Request, err error) {
	logError(r, "internal server error", "error", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte(`{"message":"internal server error"}`))
}

// SignInToken returns the minted token as a plain-text 200.
func SignInToken(w http.ResponseWriter, token string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(token))
}

// writeError maps broker errors onto status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrBadRequest):
		logWarn(r, "rejected request", "reason", err)
		BadRequest(w)
	case errors.Is(err, ErrUpstream):
		BadGateway(w, r, err)
	default:
		InternalServerError(w, r, err)
	}
}
