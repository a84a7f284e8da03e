package mediaproxy

import (
	"net"
	"net/url"
	"strings"
)

// NormalizeBaseURL reduces raw to its http(s) origin. It returns "" for blank,
// unparsable, or non-http input.
func NormalizeBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return ""
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}
	return scheme + "://" + strings.ToLower(parsed.Host)
}

// IsPublicBaseURL reports whether raw names a host reachable from outside the
// local network. Loopback, .local names and private IPv4 ranges are rejected.
func IsPublicBaseURL(raw string) bool {
	normalized := NormalizeBaseURL(raw)
	if normalized == "" {
		return false
	}
	parsed, err := url.Parse(normalized)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "localhost" || host == "::1" || strings.HasSuffix(host, ".local") {
		return false
	}
	if ip := net.ParseIP(host); ip != nil && ip.To4() != nil {
		return !isPrivateIPv4(ip.To4())
	}
	return true
}

func isPrivateIPv4(ip net.IP) bool {
	switch {
	case ip[0] == 10, ip[0] == 127:
		return true
	case ip[0] == 192 && ip[1] == 168:
		return true
	case ip[0] == 172 && ip[1] >= 16 && ip[1] <= 31:
		return true
	case ip[0] == 169 && ip[1] == 254:
		return true
	}
	return false
}
