//go:build !linux
// +build !linux

package netproto

import (
	"fmt"
	"net"

	"go4.org/netipx"
)

func (st *LinkState) load() error {
	intf, err := net.InterfaceByName(st.Name)
	if err != nil {
		// The error does not say why the lookup failed, so any failure
		// counts as absent.
		return nil
	}
	st.Present = true
	st.Up = intf.Flags&net.FlagUp != 0
	st.MTU = intf.MTU
	addrs, err := intf.Addrs()
	if err != nil {
		return fmt.Errorf("failed to list addresses of %s: %w", st.Name, err)
	}
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		if prefix, ok := netipx.FromStdIPNet(ipnet); ok {
			st.Addresses = append(st.Addresses, prefix)
		}
	}
	return nil
}
