//go:build !linux && !windows
// +build !linux,!windows

package config

// Sane defaults for the other platforms. The "default" options may be
// may be replaced by the running configuration.
func getDefaults() platformDefaultParameters {
	return platformDefaultParameters{
		// Admin
		DefaultAdminListen: "tcp://localhost:9002",

		// Configuration (used for tspanelctl)
		DefaultConfigFile: "/etc/tspanel.conf",

		// The router is usually remote on these platforms
		DefaultRPCEndpoint: "http://192.168.1.1/ubus",

		// Web UI
		DefaultWebUIListen: "127.0.0.1:8088",

		DefaultInterfaceName: "tailscale0",
	}
}
