package http

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// IPConfig decides which forwarding headers may be trusted when resolving
// the client address. The zero value trusts no proxy.
type IPConfig struct {
	trusted []netip.Prefix
}

// NewIPConfig parses the CIDR ranges of trusted reverse proxies
func NewIPConfig(trustedProxies []string) (*IPConfig, error) {
	config := &IPConfig{}
	for _, cidr := range trustedProxies {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy CIDR %q: %w", cidr, err)
		}
		config.trusted = append(config.trusted, prefix.Masked())
	}
	return config, nil
}

func (c *IPConfig) isTrusted(addr netip.Addr) bool {
	if c == nil {
		return false
	}
	for _, prefix := range c.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ExtractClientIP resolves the address a request originated from.
//
// Forwarding headers are only honoured when the direct peer is a trusted
// proxy. X-Forwarded-For is walked from the right, skipping trusted hops, so
// the result is the first address appended by infrastructure we control
// rather than whatever the client wrote into the header. X-Real-IP is the
// fallback when X-Forwarded-For is absent.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remote, ok := parseRemoteAddr(r.RemoteAddr)
	if !ok {
		if r.RemoteAddr == "" {
			return "unknown"
		}
		return r.RemoteAddr
	}

	if !config.isTrusted(remote) {
		return remote.String()
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				// A garbled hop means the chain can no longer be followed
				return remote.String()
			}
			addr = addr.Unmap()
			if !config.isTrusted(addr) {
				return addr.String()
			}
		}
		return remote.String()
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if addr, err := netip.ParseAddr(xri); err == nil {
			return addr.Unmap().String()
		}
	}

	return remote.String()
}

func parseRemoteAddr(remoteAddr string) (netip.Addr, bool) {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
