package netproto

const (
	TailscaleName      = "tailscale"
	TailscaleInterface = "tailscale0"
)

// Tailscale is the protocol of the interface created by tailscaled. The
// daemon owns the device, so there is nothing to configure beyond a status
// note.
type Tailscale struct{}

func init() {
	if err := Register(Tailscale{}); err != nil {
		panic(err)
	}
}

func (Tailscale) Name() string        { return TailscaleName }
func (Tailscale) I18n() string        { return "Tailscale VPN" }
func (Tailscale) Ifname() string      { return TailscaleInterface }
func (Tailscale) OpkgPackage() string { return "tailscale" }
func (Tailscale) IsFloating() bool    { return true }
func (Tailscale) IsVirtual() bool     { return true }
func (Tailscale) Devices() []string   { return nil }

func (Tailscale) ContainsDevice(ifname string) bool {
	return ifname == TailscaleInterface
}

func (Tailscale) FormOptions() []FormOption {
	return []FormOption{{
		Tab:      "general",
		Name:     "_info",
		Title:    "Status",
		ReadOnly: true,
		Value:    `Tailscale interface is managed by tailscaled. Use "tailscale status" to view connection status.`,
	}}
}
