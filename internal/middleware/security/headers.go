package security

import (
	"fmt"
	"net/http"
	"strings"
)

// HeadersConfig lists the response headers set on every page. An empty
// value leaves the header unset.
type HeadersConfig struct {
	// CSPDirectives are joined with "; ".
	CSPDirectives []string
	// HSTSMaxAge in seconds; sent over TLS only.
	HSTSMaxAge int
	Static     map[string]string
}

// DefaultHeadersConfig serves everything from the same origin. Charts are
// PNGs from this server, so img-src needs only self and data URIs.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSPDirectives: []string{
			"default-src 'self'",
			"script-src 'self'",
			"style-src 'self'",
			"img-src 'self' data:",
			"connect-src 'self'",
			"object-src 'none'",
			"frame-ancestors 'none'",
			"base-uri 'self'",
			"form-action 'self'",
		},
		HSTSMaxAge: 365 * 24 * 60 * 60,
		Static: map[string]string{
			"X-Content-Type-Options":       "nosniff",
			"X-Frame-Options":              "DENY",
			"Referrer-Policy":              "strict-origin-when-cross-origin",
			"Permissions-Policy":           "geolocation=(), microphone=(), camera=(), payment=()",
			"Cross-Origin-Opener-Policy":   "same-origin",
			"Cross-Origin-Resource-Policy": "same-origin",
		},
	}
}

// Headers writes a header set computed once from a HeadersConfig.
type Headers struct {
	fixed http.Header
	hsts  string
}

func NewHeaders(cfg HeadersConfig) *Headers {
	h := &Headers{fixed: make(http.Header, len(cfg.Static)+1)}
	for name, value := range cfg.Static {
		if value != "" {
			h.fixed.Set(name, value)
		}
	}
	if len(cfg.CSPDirectives) > 0 {
		h.fixed.Set("Content-Security-Policy", strings.Join(cfg.CSPDirectives, "; "))
	}
	if cfg.HSTSMaxAge > 0 {
		h.hsts = fmt.Sprintf("max-age=%d; includeSubDomains", cfg.HSTSMaxAge)
	}
	return h
}

func (h *Headers) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out := w.Header()
		for name, values := range h.fixed {
			out[name] = values
		}
		if r.TLS != nil && h.hsts != "" {
			out.Set("Strict-Transport-Security", h.hsts)
		}
		next.ServeHTTP(w, r)
	})
}

// CacheFor marks responses cacheable by browsers and proxies for maxAge seconds.
func CacheFor(maxAge int) func(http.Handler) http.Handler {
	value := fmt.Sprintf("public, max-age=%d", maxAge)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", value)
			next.ServeHTTP(w, r)
		})
	}
}
