package netproto

import (
	"fmt"
	"net/netip"
)

// maxIfnameLen is the longest interface name the kernel accepts.
const maxIfnameLen = 15

// LinkState is the live state of a network interface.
type LinkState struct {
	Name      string         `json:"name"`
	Present   bool           `json:"present"`
	Up        bool           `json:"up"`
	MTU       int            `json:"mtu,omitempty"`
	Addresses []netip.Prefix `json:"addresses"`
}

// GetLinkState returns the state of ifname. A missing interface is not an
// error; it is reported with Present false.
func GetLinkState(ifname string) (LinkState, error) {
	if ifname == "" || len(ifname) > maxIfnameLen {
		return LinkState{}, fmt.Errorf("invalid interface name %q", ifname)
	}
	st := LinkState{Name: ifname, Addresses: []netip.Prefix{}}
	if err := st.load(); err != nil {
		return LinkState{}, err
	}
	return st, nil
}
