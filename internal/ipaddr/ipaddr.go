package ipaddr

import (
	"errors"
	"net"
	"strings"
)

// ErrInvalidAddress is returned for input that parses as neither an IP nor a CIDR.
var ErrInvalidAddress = errors.New("invalid IP address or CIDR")

// Normalize canonicalizes an IP literal or CIDR block. IPv4-mapped IPv6
// addresses fold to their IPv4 form so list membership and log keys stay
// consistent regardless of which family the client arrived on
// (::ffff:10.0.0.5 and 10.0.0.5 normalize identically).
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidAddress
	}

	if strings.Contains(raw, "/") {
		_, ipNet, err := net.ParseCIDR(raw)
		if err != nil {
			return "", ErrInvalidAddress
		}
		return ipNet.String(), nil
	}

	ip := net.ParseIP(raw)
	if ip == nil {
		return "", ErrInvalidAddress
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.String(), nil
	}
	return ip.String(), nil
}

// NormalizeIP canonicalizes a single host address, rejecting CIDR notation.
func NormalizeIP(raw string) (string, error) {
	if strings.Contains(raw, "/") {
		return "", ErrInvalidAddress
	}
	return Normalize(raw)
}

// Matches reports whether candidate (a single host address) falls under entry,
// which may be a single address or a CIDR block. A family mismatch between the
// two sides is a non-match, never an error; so is any malformed input.
func Matches(candidate, entry string) bool {
	ip := net.ParseIP(strings.TrimSpace(candidate))
	if ip == nil {
		return false
	}

	entry = strings.TrimSpace(entry)
	if strings.Contains(entry, "/") {
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			return false
		}
		// Prefix comparison only makes sense within one address family.
		if (ip.To4() == nil) != (ipNet.IP.To4() == nil) {
			return false
		}
		return ipNet.Contains(ip)
	}

	entryIP := net.ParseIP(entry)
	if entryIP == nil {
		return false
	}
	return ip.Equal(entryIP)
}

// MatchesAny reports whether candidate matches at least one entry in a
// comma-separated list of addresses and CIDR blocks. Malformed entries are
// skipped.
func MatchesAny(candidate, list string) bool {
	for _, entry := range SplitList(list) {
		if Matches(candidate, entry) {
			return true
		}
	}
	return false
}

// SplitList splits a comma-separated address list, dropping empty fields.
func SplitList(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// NormalizeList canonicalizes and deduplicates a comma-separated list of
// addresses and CIDR blocks. Malformed entries are dropped rather than
// failing the whole list.
func NormalizeList(list string) string {
	seen := make(map[string]bool)
	var out []string
	for _, part := range SplitList(list) {
		norm, err := Normalize(part)
		if err != nil {
			continue
		}
		if seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, norm)
	}
	return strings.Join(out, ",")
}
