package enrichment

import (
	"net/netip"
	"regexp"
	"strings"
)

// EDGAR replaces the last octet of every IPv4 address with three letters, e.g. 101.81.133.jja
var anonymisedIpv4 = regexp.MustCompile(`^(\d{1,3}\.\d{1,3}\.\d{1,3})\.[A-Za-z]+$`)

// CleanIp returns the address used to look up the location of raw.
// Anonymised addresses resolve to the first address of their /24 (a.b.c.0),
// valid addresses resolve to themselves and anything else is returned trimmed but unchanged.
func CleanIp(raw string) string {
	raw = strings.TrimSpace(raw)
	if addr, err := netip.ParseAddr(raw); err == nil {
		return addr.String()
	}
	if m := anonymisedIpv4.FindStringSubmatch(raw); m != nil {
		candidate := m[1] + ".0"
		if _, err := netip.ParseAddr(candidate); err == nil {
			return candidate
		}
	}
	return raw
}
