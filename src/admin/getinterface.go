package admin

import (
	"context"

	"github.com/coreyleavitt/tailscale-openwrt/src/netproto"
)

type GetInterfaceRequest struct {
	Interface string `json:"interface,omitempty"`
}

type GetInterfaceResponse struct {
	Protocol netproto.Descriptor `json:"protocol"`
	Link     netproto.LinkState  `json:"link"`
	Managed  bool                `json:"managed"`
}

func (a *AdminSocket) getInterfaceHandler(_ context.Context, req *GetInterfaceRequest, res *GetInterfaceResponse) error {
	ifname := req.Interface
	if ifname == "" {
		ifname = string(a.config.ifname)
	}
	if ifname == "" {
		ifname = netproto.TailscaleInterface
	}
	proto, _ := netproto.Lookup(netproto.TailscaleName)
	link, err := netproto.GetLinkState(ifname)
	if err != nil {
		return err
	}
	res.Protocol = netproto.Describe(proto)
	res.Link = link
	res.Managed = proto.ContainsDevice(ifname)
	return nil
}
