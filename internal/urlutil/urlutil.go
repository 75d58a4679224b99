// Package urlutil answers questions about the URL a browser actually used,
// which behind a TLS-terminating proxy differs from what the server sees.
package urlutil

import (
	"net/http"
	"strings"
)

// RequestScheme returns "https" or "http". A valid X-Forwarded-Proto wins
// over the connection state; only its first hop is considered.
func RequestScheme(r *http.Request) string {
	proto := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto"))
	if proto != "" {
		if comma := strings.Index(proto, ","); comma >= 0 {
			proto = strings.TrimSpace(proto[:comma])
		}
		proto = strings.ToLower(proto)
		if proto == "http" || proto == "https" {
			return proto
		}
	}

	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// IsSecureRequest reports whether the browser reached us over HTTPS, so
// cookies set in the response can be marked Secure.
func IsSecureRequest(r *http.Request) bool {
	return r != nil && RequestScheme(r) == "https"
}
