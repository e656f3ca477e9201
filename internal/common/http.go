package common

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller's address in canonical form. Proxy headers are
// trusted only through chi's RealIP middleware, which rewrites RemoteAddr.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	if ip := net.ParseIP(addr); ip != nil {
		return ip.String()
	}
	return addr
}
