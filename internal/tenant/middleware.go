package tenant

import (
	"net"
	"net/http"
	"strings"
)

// Resolver finds the store key of a request. The key is either a store id
// or slug from a header, or the slug in <slug>.<RootDomain>. Hosts are
// ignored when RootDomain is empty.
type Resolver struct {
	HeaderName    string
	RootDomain    string
	DefaultTenant string
	// QueryParam, when set, is consulted after the header. Websocket
	// handshakes from browsers cannot carry custom headers.
	QueryParam string
}

// NewResolver builds a Resolver reading headerName, or X-Tenant-ID when empty.
func NewResolver(headerName, rootDomain, defaultTenant string) *Resolver {
	if headerName == "" {
		headerName = "X-Tenant-ID"
	}
	return &Resolver{
		HeaderName:    headerName,
		RootDomain:    strings.ToLower(strings.TrimSpace(rootDomain)),
		DefaultTenant: strings.TrimSpace(defaultTenant),
	}
}

// Middleware puts the resolved key, or DefaultTenant, on the request context.
// Requests without either pass through untouched.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		key := r.Resolve(req)
		if key == "" {
			key = r.DefaultTenant
		}
		if key != "" {
			req = req.WithContext(With(req.Context(), key))
		}
		next.ServeHTTP(w, req)
	})
}

// Resolve checks the header, then QueryParam, then the subdomain.
func (r *Resolver) Resolve(req *http.Request) string {
	if r == nil || req == nil {
		return ""
	}
	if key := strings.TrimSpace(req.Header.Get(r.HeaderName)); key != "" {
		return key
	}
	if r.QueryParam != "" {
		if key := strings.TrimSpace(req.URL.Query().Get(r.QueryParam)); key != "" {
			return key
		}
	}
	return r.subdomain(req.Host)
}

func (r *Resolver) subdomain(hostport string) string {
	if r.RootDomain == "" {
		return ""
	}
	host := strings.ToLower(strings.TrimSpace(hostport))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}
	host, ok := strings.CutSuffix(host, "."+r.RootDomain)
	if !ok {
		return ""
	}
	label, _, _ := strings.Cut(host, ".")
	return label
}
