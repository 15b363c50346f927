package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller address, preferring the first X-Forwarded-For hop.
func ClientIP(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// UserID derives the reactor identity of a connection. An explicit ?user=
// query parameter wins so several local clients can be told apart.
func UserID(r *http.Request) string {
	if user := strings.TrimSpace(r.URL.Query().Get("user")); user != "" {
		return "user_" + user
	}
	return "user_" + ClientIP(r)
}
