package common

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resolves the originating client address, used for rate limit
// keys on unauthenticated requests. Proxy-set headers win over the socket
// peer address.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		// The first hop in the chain is the original client.
		first, _, found := strings.Cut(forwarded, ",")
		if found {
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
		return forwarded
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr)); err == nil {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
