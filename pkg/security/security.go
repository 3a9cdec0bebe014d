// Package security guards outbound HTTP fetches of compiler inputs
// (spec/catalog/probe JSON) against SSRF: a spec URI pointing at a
// cloud metadata endpoint or an internal service must not be fetchable
// just because it parses as http(s).
package security

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// BlockedNetworks are IP ranges a fetched URI must never resolve to.
var BlockedNetworks = []string{
	"127.0.0.0/8",    // Localhost
	"10.0.0.0/8",     // Private network
	"172.16.0.0/12",  // Private network
	"192.168.0.0/16", // Private network
	"169.254.0.0/16", // Link-local (cloud metadata services)
}

// IsBlockedIP reports whether ipStr falls in a blocked network.
func IsBlockedIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, cidr := range BlockedNetworks {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// ValidateHTTPURI resolves uri's hostname and rejects it if any
// resolved address is blocked.
func ValidateHTTPURI(uri string) error {
	parsed, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("security: invalid URI: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("security: expected http or https scheme, got %q", parsed.Scheme)
	}

	hostname := parsed.Hostname()
	ips, err := net.LookupIP(hostname)
	if err != nil {
		return fmt.Errorf("security: failed to resolve hostname %q: %w", hostname, err)
	}

	for _, ip := range ips {
		ipStr := ip.String()
		if IsBlockedIP(ipStr) {
			return fmt.Errorf("security: access denied: %s resolves to %s (%s)", hostname, ipStr, blockReason(ipStr))
		}
	}
	return nil
}

func blockReason(ipStr string) string {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return "invalid IP"
	}
	if ip.IsLoopback() || strings.HasPrefix(ipStr, "127.") {
		return "localhost access not allowed"
	}
	for _, cidr := range BlockedNetworks {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil || !network.Contains(ip) {
			continue
		}
		switch {
		case strings.HasPrefix(cidr, "10.") || strings.HasPrefix(cidr, "172.16") || strings.HasPrefix(cidr, "192.168"):
			return "private network access not allowed"
		case strings.HasPrefix(cidr, "169.254"):
			return "link-local access not allowed"
		}
	}
	return "blocked network"
}
