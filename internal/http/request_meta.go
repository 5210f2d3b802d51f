package httpx

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the originating client address from a request. The first
// hop in X-Forwarded-For wins when a proxy set it, otherwise the socket peer.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
