package panel

import (
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"go4.org/netipx"
)

var (
	ipv4CIDR = regexp.MustCompile(`^([0-9]{1,3}\.){3}[0-9]{1,3}/([0-9]|[1-2][0-9]|3[0-2])$`)
	ipv6CIDR = regexp.MustCompile(`^[0-9a-fA-F:]+/([0-9]{1,2}|1[0-1][0-9]|12[0-8])$`)
)

// RouteError reports an entry of an advertised routes list that is not a
// well formed CIDR.
type RouteError struct {
	CIDR   string
	Reason string // format string taking the CIDR
}

func (e *RouteError) Error() string {
	return fmt.Sprintf(e.Reason, e.CIDR)
}

const (
	invalidIPv6 = "Invalid IPv6 CIDR format: %s"
	invalidIPv4 = "Invalid IPv4 CIDR format: %s"
	invalidOct  = "Invalid octet in CIDR: %s"
)

// ValidateRoutes checks the syntax of a comma separated list of CIDRs. The
// empty list is valid. The check is syntactic only and leaves semantic
// checks, such as host bits being set, to the backend.
func ValidateRoutes(routes string) error {
	if routes == "" {
		return nil
	}
	for _, cidr := range strings.Split(routes, ",") {
		cidr = strings.TrimSpace(cidr)
		if strings.Contains(cidr, ":") {
			if !ipv6CIDR.MatchString(cidr) {
				return &RouteError{CIDR: cidr, Reason: invalidIPv6}
			}
			continue
		}
		if !ipv4CIDR.MatchString(cidr) {
			return &RouteError{CIDR: cidr, Reason: invalidIPv4}
		}
		addr, _, _ := strings.Cut(cidr, "/")
		for _, octet := range strings.Split(addr, ".") {
			if n, err := strconv.Atoi(octet); err != nil || n > 255 {
				return &RouteError{CIDR: cidr, Reason: invalidOct}
			}
		}
	}
	return nil
}

// Routes is an advertised routes list in parsed form.
type Routes struct {
	Prefixes []netip.Prefix   `json:"prefixes"`
	Ranges   []netipx.IPRange `json:"ranges"` // merged address ranges covered by Prefixes
}

// ParseRoutes parses a comma separated list of CIDRs as applied by the
// backend.
func ParseRoutes(routes string) (Routes, error) {
	r := Routes{Prefixes: []netip.Prefix{}, Ranges: []netipx.IPRange{}}
	routes = strings.TrimSpace(routes)
	if routes == "" {
		return r, nil
	}
	var b netipx.IPSetBuilder
	for _, s := range strings.Split(routes, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		prefix, err := netip.ParsePrefix(s)
		if err != nil {
			return Routes{}, fmt.Errorf("invalid route %q: %w", s, err)
		}
		r.Prefixes = append(r.Prefixes, prefix)
		b.AddPrefix(prefix.Masked())
	}
	set, err := b.IPSet()
	if err != nil {
		return Routes{}, err
	}
	r.Ranges = append(r.Ranges, set.Ranges()...)
	return r, nil
}
