// Package security flags probing traffic, resolves client addresses behind
// trusted proxies and sets browser hardening headers.
package security

import (
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"slices"
	"strings"
	"sync/atomic"

	"indicadores/internal/log"
)

const (
	maxURLLength  = 2048
	maxProxyHops  = 6
	reasonPath    = "path"
	reasonQuery   = "query"
	reasonAgent   = "user_agent"
	reasonMethod  = "method"
	reasonLength  = "url_length"
	reasonForward = "forward_chain"
)

var (
	scanPatterns = []string{
		"../", "..\\", ".env", ".git", ".ssh", "wp-admin", "phpmyadmin",
		"admin.php", "config.php", "etc/passwd", "cmd.exe",
		"<script", "javascript:", "eval(", "union select",
	}
	// Scripts are expected on the JSON API, so plain HTTP clients pass.
	scannerAgents = []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab"}
	scanMethods   = []string{"TRACE", "TRACK", "DEBUG", "CONNECT"}

	privateNetworks = []netip.Prefix{
		netip.MustParsePrefix("127.0.0.0/8"),
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("172.16.0.0/12"),
		netip.MustParsePrefix("192.168.0.0/16"),
		netip.MustParsePrefix("::1/128"),
	}
)

// Detector is safe for concurrent use once built.
type Detector struct {
	trusted []netip.Prefix
	flagged atomic.Int64
}

// NewDetector trusts loopback and private networks as proxies, plus extra.
func NewDetector(extra ...netip.Prefix) *Detector {
	return &Detector{trusted: append(slices.Clone(privateNetworks), extra...)}
}

// Inspect returns why r looks like a scanner, or "" for ordinary traffic.
// The query string is matched after decoding.
func (d *Detector) Inspect(r *http.Request) string {
	query := r.URL.RawQuery
	if decoded, err := url.QueryUnescape(query); err == nil {
		query = decoded
	}
	var reason string
	switch {
	case matchesAny(r.URL.Path, scanPatterns):
		reason = reasonPath
	case matchesAny(query, scanPatterns):
		reason = reasonQuery
	case matchesAny(r.UserAgent(), scannerAgents):
		reason = reasonAgent
	case slices.Contains(scanMethods, r.Method):
		reason = reasonMethod
	case len(r.URL.String()) > maxURLLength:
		reason = reasonLength
	case strings.Count(r.Header.Get("X-Forwarded-For"), ",") >= maxProxyHops:
		reason = reasonForward
	}
	if reason != "" {
		d.flagged.Add(1)
	}
	return reason
}

func matchesAny(s string, needles []string) bool {
	s = strings.ToLower(s)
	return slices.ContainsFunc(needles, func(n string) bool { return strings.Contains(s, n) })
}

// Flagged returns how many requests Inspect has flagged.
func (d *Detector) Flagged() int64 {
	return d.flagged.Load()
}

// ExtractClientIP returns the peer address, or the first forwarded address
// when the peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil || !d.trustedPeer(peer.Unmap()) {
		return host
	}
	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	for _, candidate := range []string{first, r.Header.Get("X-Real-IP")} {
		if addr, err := netip.ParseAddr(strings.TrimSpace(candidate)); err == nil {
			return addr.String()
		}
	}
	return host
}

func (d *Detector) trustedPeer(addr netip.Addr) bool {
	return slices.ContainsFunc(d.trusted, func(p netip.Prefix) bool { return p.Contains(addr) })
}

// Middleware logs flagged requests and lets them through; onSuspicious,
// when set, is called for each one.
func (d *Detector) Middleware(onSuspicious func(*http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if reason := d.Inspect(r); reason != "" {
				log.FromContext(r.Context()).WithComponent(log.ComponentSecurity).WarnContext(r.Context(), "Suspicious request",
					"reason", reason,
					log.FieldMethod, r.Method,
					log.FieldPath, r.URL.Path,
					log.FieldClientIP, d.ExtractClientIP(r),
					log.FieldUserAgent, r.UserAgent())
				if onSuspicious != nil {
					onSuspicious(r)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
