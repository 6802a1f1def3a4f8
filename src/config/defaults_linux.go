//go:build linux
// +build linux

package config

// Sane defaults for the Linux platform, which in practice means OpenWrt. The
// "default" options may be replaced by the running configuration.
func getDefaults() platformDefaultParameters {
	return platformDefaultParameters{
		// Admin
		DefaultAdminListen: "unix:///var/run/tspanel.sock",

		// Configuration (used for tspanelctl)
		DefaultConfigFile: "/etc/tspanel.conf",

		// rpcd is reached through uhttpd-mod-ubus on the router itself
		DefaultRPCEndpoint: "http://127.0.0.1/ubus",

		// Web UI
		DefaultWebUIListen: "127.0.0.1:8088",

		DefaultInterfaceName: "tailscale0",
	}
}
