package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// RealIPMiddleware resolves the client IP into X-Real-IP. Forwarding headers
// are honoured only when the direct peer is a configured trusted proxy;
// otherwise any client-supplied X-Real-IP is overwritten with the peer address.
type RealIPMiddleware struct {
	trusted []netip.Prefix
}

// NewRealIPMiddleware creates a RealIPMiddleware. trustedProxies may hold
// single addresses ("192.168.1.1") or CIDRs ("10.0.0.0/8"); invalid entries
// are ignored.
func NewRealIPMiddleware(trustedProxies []string) *RealIPMiddleware {
	m := &RealIPMiddleware{}

	for _, proxy := range trustedProxies {
		proxy = strings.TrimSpace(proxy)
		if proxy == "" {
			continue
		}
		if prefix, err := netip.ParsePrefix(proxy); err == nil {
			m.trusted = append(m.trusted, prefix.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(proxy); err == nil {
			m.trusted = append(m.trusted, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
		}
	}

	return m
}

// Handler returns the middleware handler
func (m *RealIPMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ip := m.clientIP(r); ip != "" {
			r.Header.Set("X-Real-IP", ip)
		} else {
			r.Header.Del("X-Real-IP")
		}
		next.ServeHTTP(w, r)
	})
}

func (m *RealIPMiddleware) clientIP(r *http.Request) string {
	peer := remoteHost(r.RemoteAddr)
	if !m.isTrusted(peer) {
		return peer
	}

	if cf := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); cf != "" {
		return cf
	}

	// Walk X-Forwarded-For right to left, skipping our own proxies.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !m.isTrusted(hop) || i == 0 {
				return hop
			}
		}
	}

	return peer
}

func (m *RealIPMiddleware) isTrusted(ip string) bool {
	if len(m.trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range m.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
