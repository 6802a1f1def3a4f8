//go:build linux
// +build linux

package netproto

import (
	"errors"
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
	"go4.org/netipx"
)

func (st *LinkState) load() error {
	link, err := netlink.LinkByName(st.Name)
	if err != nil {
		var notFound netlink.LinkNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("netlink.LinkByName: %w", err)
	}
	attrs := link.Attrs()
	st.Present = true
	st.Up = attrs.Flags&net.FlagUp != 0
	st.MTU = attrs.MTU
	addrs, err := netlink.AddrList(link, netlink.FAMILY_ALL)
	if err != nil {
		return fmt.Errorf("netlink.AddrList: %w", err)
	}
	for _, addr := range addrs {
		if prefix, ok := netipx.FromStdIPNet(addr.IPNet); ok {
			st.Addresses = append(st.Addresses, prefix)
		}
	}
	return nil
}
